package dualencoder

import (
	"path/filepath"

	"github.com/hankgalt/dualencoder/internal/transformer/onnx"
	"github.com/hankgalt/dualencoder/pkg/domain"
)

// BatchTokenizer turns raw texts into padded tokenized batches. Padding and
// truncation live here; the encoders only ever see finished batches.
type BatchTokenizer interface {
	EncodeBatch(texts []string, maxLen int) (domain.Batch, error)
	VocabSize() (int, error)
}

// NewBatchTokenizer loads the HuggingFace tokenizer shipped alongside the
// given model id or checkpoint directory.
func NewBatchTokenizer(model string) (BatchTokenizer, error) {
	dir, err := onnx.ResolveModelDir(model)
	if err != nil {
		return nil, err
	}
	return onnx.NewHFTokenizerFromLocal(filepath.Join(dir, "tokenizer.json"))
}
