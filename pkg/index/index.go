// Package index drains a dual encoder's lazy corpus-embedding iterator into
// a vector store, one batch at a time, so corpora larger than memory can be
// indexed.
package index

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/comfforts/logger"

	"github.com/hankgalt/dualencoder"
	"github.com/hankgalt/dualencoder/pkg/domain"
)

// Writer persists one embedding per corpus item.
type Writer interface {
	Upsert(ctx context.Context, id string, embedding []float32) error
}

// Source yields tokenized corpus batches together with the item id for each
// row. Next returns io.EOF after the final batch.
type Source interface {
	Next(ctx context.Context) (ids []string, batch domain.Batch, err error)
}

// Indexer embeds a corpus through a dual encoder's query tower and writes
// the result to a Writer.
type Indexer struct {
	w Writer
}

func NewIndexer(w Writer) (*Indexer, error) {
	if w == nil {
		return nil, errors.New("nil writer")
	}
	return &Indexer{w: w}, nil
}

// batchSource adapts a Source to the encoder's BatchSource, remembering the
// ids of the batch it handed out last. EmbedCorpus pulls exactly one source
// batch per Next, so ids and embeddings stay in lockstep.
type batchSource struct {
	src     Source
	lastIDs []string
}

func (a *batchSource) Next(ctx context.Context) (domain.Batch, error) {
	ids, batch, err := a.src.Next(ctx)
	if err != nil {
		return domain.Batch{}, err
	}
	a.lastIDs = ids
	return batch, nil
}

// Run streams the corpus through the encoder and upserts every embedding.
// It returns the number of items written.
func (ix *Indexer) Run(ctx context.Context, m *dualencoder.DualEncoder, src Source) (int, error) {
	l, err := logger.LoggerFromContext(ctx)
	if err != nil {
		l = logger.GetSlogLogger()
	}

	ad := &batchSource{src: src}
	it := m.EmbedCorpus(ad)

	written, batches := 0, 0
	for {
		embs, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			l.Info("Indexer:Run - corpus indexed", "batches", batches, "items", written)
			return written, nil
		}
		if err != nil {
			l.Error("Indexer:Run - embedding failed", "batch", batches, "error", err.Error())
			return written, err
		}
		if len(ad.lastIDs) != len(embs) {
			return written, fmt.Errorf("batch %d: %d ids for %d embeddings", batches, len(ad.lastIDs), len(embs))
		}
		for i, emb := range embs {
			if err := ix.w.Upsert(ctx, ad.lastIDs[i], emb); err != nil {
				l.Error("Indexer:Run - upsert failed", "id", ad.lastIDs[i], "error", err.Error())
				return written, err
			}
			written++
		}
		batches++
	}
}
