// Package dualencoder implements a two-tower semantic retrieval model over
// pretrained transformer backbones: a query encoder and a title encoder
// trained so matching pairs score high against in-batch (and optionally
// cross-batch) negatives.
package dualencoder

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/comfforts/logger"

	"github.com/hankgalt/dualencoder/internal/vecmath"
	"github.com/hankgalt/dualencoder/pkg/distributed"
	"github.com/hankgalt/dualencoder/pkg/domain"
)

// PreconditionError reports a request for an encoder side the dual encoder
// was not configured with.
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string { return e.Msg }

// ProcessGroup is the distributed collective collaborator: the calling
// process's rank, the group size, and a rank-ordered AllGather. Label
// arithmetic in training depends on AllGather preserving rank order.
type ProcessGroup interface {
	Rank() int
	WorldSize() int
	AllGather(ctx context.Context, local [][]float32) ([][]float32, error)
}

// DualEncoder owns one or two pretrained encoders and provides embedding
// extraction, similarity scoring and the contrastive training forward pass.
type DualEncoder struct {
	query *PretrainedEncoder
	title *PretrainedEncoder
	// dropout is carried from the config for subclass-style extensions; it
	// is not applied anywhere in the pooling or forward path.
	dropout       float32
	useCrossBatch bool
	group         ProcessGroup
}

// NewDualEncoder loads the query tower from cfg.Query and, depending on the
// config, shares it with the title side, loads an independent title tower,
// or leaves the title side absent. A nil group defaults to a single-process
// group (rank 0, world size 1).
func NewDualEncoder(ctx context.Context, cfg domain.DualEncoderConfig, group ProcessGroup) (*DualEncoder, error) {
	l, err := logger.LoggerFromContext(ctx)
	if err != nil {
		l = logger.GetSlogLogger()
	}

	query, err := NewPretrainedEncoder(ctx, cfg.Query)
	if err != nil {
		l.Error("NewDualEncoder - error loading query encoder", "error", err.Error())
		return nil, err
	}

	var title *PretrainedEncoder
	if cfg.ShareParameters {
		// same owned instance, not a copy: both sides resolve to one
		// underlying parameter store
		title = query
	} else if cfg.TitleModel != "" {
		titleCfg := cfg.Query
		titleCfg.Model = cfg.TitleModel
		// the query tower already initialized the runtime; don't tear it
		// down when one tower closes
		titleCfg.GlobalRuntime = true
		title, err = NewPretrainedEncoder(ctx, titleCfg)
		if err != nil {
			l.Error("NewDualEncoder - error loading title encoder", "error", err.Error())
			return nil, err
		}
	}

	return newDualEncoder(query, title, cfg, group), nil
}

// NewDualEncoderFromEncoders assembles a dual encoder from already-loaded
// towers. When cfg.ShareParameters is set, title is ignored and the query
// tower serves both sides.
func NewDualEncoderFromEncoders(query, title *PretrainedEncoder, cfg domain.DualEncoderConfig, group ProcessGroup) (*DualEncoder, error) {
	if query == nil {
		return nil, errors.New("nil query encoder")
	}
	if cfg.ShareParameters {
		title = query
	}
	return newDualEncoder(query, title, cfg, group), nil
}

func newDualEncoder(query, title *PretrainedEncoder, cfg domain.DualEncoderConfig, group ProcessGroup) *DualEncoder {
	if group == nil {
		group = distributed.SingleProcess{}
	}
	dropout := cfg.Dropout
	if dropout == 0 {
		dropout = domain.DefaultDropout
	}
	return &DualEncoder{
		query:         query,
		title:         title,
		dropout:       dropout,
		useCrossBatch: cfg.UseCrossBatch,
		group:         group,
	}
}

// QueryEncoder returns the query tower.
func (m *DualEncoder) QueryEncoder() *PretrainedEncoder { return m.query }

// TitleEncoder returns the title tower; nil when the title side is absent.
func (m *DualEncoder) TitleEncoder() *PretrainedEncoder { return m.title }

// GetPooledEmbedding encodes the batch with the requested tower. Requesting
// a side with no encoder fails with *PreconditionError.
func (m *DualEncoder) GetPooledEmbedding(ctx context.Context, batch domain.Batch, isQuery bool) ([][]float32, error) {
	enc := m.query
	if !isQuery {
		enc = m.title
	}
	if enc == nil {
		return nil, &PreconditionError{
			Msg: fmt.Sprintf("isQuery=%t is inconsistent with the dual encoder configuration: no encoder for the requested side", isQuery),
		}
	}
	return enc.Encode(ctx, batch)
}

// CosineSim scores query/title pairs position by position. Each value is the
// raw dot product of the pooled embeddings; embeddings are not normalized
// here, so this is only a true cosine when callers pre-normalize.
func (m *DualEncoder) CosineSim(ctx context.Context, queryBatch, titleBatch domain.Batch) ([]float32, error) {
	q, err := m.GetPooledEmbedding(ctx, queryBatch, true)
	if err != nil {
		return nil, err
	}
	t, err := m.GetPooledEmbedding(ctx, titleBatch, false)
	if err != nil {
		return nil, err
	}
	return vecmath.RowwiseDot(q, t)
}

// Close releases both towers. Shared towers are closed once.
func (m *DualEncoder) Close(ctx context.Context) error {
	var errs []error
	if m.title != nil && m.title != m.query {
		if err := m.title.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if m.query != nil {
		if err := m.query.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BatchSource yields tokenized corpus batches. Next returns io.EOF after the
// final batch; any batching, padding and ordering policy belongs to the
// source.
type BatchSource interface {
	Next(ctx context.Context) (domain.Batch, error)
}

// CorpusIterator lazily produces query-side embedding batches, one per
// source batch. Nothing is encoded until Next is called, so corpora larger
// than memory stream through batch by batch.
type CorpusIterator struct {
	m    *DualEncoder
	src  BatchSource
	done bool
}

// EmbedCorpus returns a lazy iterator over pooled query-side embeddings for
// every batch the source yields, in source order. Encoding runs with
// inference semantics; no training-only behavior applies.
func (m *DualEncoder) EmbedCorpus(src BatchSource) *CorpusIterator {
	return &CorpusIterator{m: m, src: src}
}

// Next pulls one batch from the source and encodes it. It returns io.EOF
// when the source is exhausted; source and encoder errors end the iteration.
func (it *CorpusIterator) Next(ctx context.Context) ([][]float32, error) {
	if it.done {
		return nil, io.EOF
	}
	batch, err := it.src.Next(ctx)
	if err != nil {
		it.done = true
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	embs, err := it.m.GetPooledEmbedding(ctx, batch, true)
	if err != nil {
		it.done = true
		return nil, err
	}
	return embs, nil
}

// ForwardInput carries the batches for one training or prediction step.
// NegTitle is ignored in prediction mode.
type ForwardInput struct {
	Query        domain.Batch
	PosTitle     domain.Batch
	NegTitle     domain.Batch
	IsPrediction bool
}

// ForwardOutput holds the step outputs. Prediction mode sets Probs,
// QueryRep and PosRep; training mode sets Loss and Accuracy.
type ForwardOutput struct {
	Probs    []float32
	QueryRep [][]float32
	PosRep   [][]float32
	Loss     float32
	Accuracy float32
}

// Forward is the training/prediction entry point.
//
// Prediction mode encodes the query and positive-title batches and returns
// their per-pair dot products along with both embedding batches; negatives
// are never encoded and no loss is computed.
//
// Training mode encodes all three batches, concatenates positive and
// negative title embeddings into the candidate set (positives first), and,
// in cross-batch mode, all-gathers candidates across the process group in
// rank order. Every query is scored against every candidate; the label for
// local query i is B*2r+i, the absolute position of its positive in the
// candidate axis. This holds only when every rank contributes exactly B
// positives and B negatives; the caller upholds that invariant.
func (m *DualEncoder) Forward(ctx context.Context, in ForwardInput) (*ForwardOutput, error) {
	l, err := logger.LoggerFromContext(ctx)
	if err != nil {
		l = logger.GetSlogLogger()
	}

	q, err := m.GetPooledEmbedding(ctx, in.Query, true)
	if err != nil {
		return nil, err
	}
	pos, err := m.GetPooledEmbedding(ctx, in.PosTitle, false)
	if err != nil {
		return nil, err
	}

	if in.IsPrediction {
		probs, err := vecmath.RowwiseDot(q, pos)
		if err != nil {
			return nil, err
		}
		return &ForwardOutput{Probs: probs, QueryRep: q, PosRep: pos}, nil
	}

	neg, err := m.GetPooledEmbedding(ctx, in.NegTitle, false)
	if err != nil {
		return nil, err
	}

	candidates := vecmath.ConcatRows(pos, neg)
	if m.useCrossBatch {
		candidates, err = m.group.AllGather(ctx, candidates)
		if err != nil {
			l.Error("DualEncoder:Forward - all-gather failed", "rank", m.group.Rank(), "error", err.Error())
			return nil, err
		}
	}

	logits, err := vecmath.MatMulTransposed(q, candidates)
	if err != nil {
		return nil, err
	}

	B := len(q)
	labels := make([]int, B)
	base := B * 2 * m.group.Rank()
	for i := range labels {
		labels[i] = base + i
	}

	loss, err := vecmath.SoftmaxCrossEntropy(logits, labels)
	if err != nil {
		return nil, err
	}
	acc, err := vecmath.Accuracy(logits, labels)
	if err != nil {
		return nil, err
	}
	return &ForwardOutput{Loss: loss, Accuracy: acc}, nil
}
