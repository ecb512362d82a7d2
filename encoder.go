package dualencoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/comfforts/logger"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/hankgalt/dualencoder/internal/transformer/onnx"
	"github.com/hankgalt/dualencoder/pkg/domain"
)

// Backbone is a loadable pretrained transformer: it maps a tokenized batch
// to per-token hidden states. Concrete implementations own weights and
// sessions; the encoder layer above only pools their output.
type Backbone interface {
	Forward(ctx context.Context, batch domain.Batch) (domain.HiddenStates, error)
	HiddenSize() int
	Close(ctx context.Context) error
}

// PretrainedEncoder wraps one pretrained backbone and pools its sequence
// output at position 0 (the classification token).
type PretrainedEncoder struct {
	backbone Backbone
	ckpt     domain.BackboneConfig
}

// normEps overrides whatever normalization epsilon the checkpoint config
// carries; encoders trained with differing eps values must still score
// consistently at retrieval time.
const normEps = 1e-5

// NewPretrainedEncoder resolves cfg.Model to a checkpoint directory and opens
// an ONNX-backed encoder over it. The checkpoint's normalization epsilon is
// forced to 1e-5 after loading, overriding the stored value.
func NewPretrainedEncoder(ctx context.Context, cfg domain.EncoderConfig) (*PretrainedEncoder, error) {
	l, err := logger.LoggerFromContext(ctx)
	if err != nil {
		l = logger.GetSlogLogger()
	}

	if p := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); p != "" {
		ort.SetSharedLibraryPath(p)
	} else {
		l.Error("NewPretrainedEncoder - missing path to onnxruntime")
		return nil, errors.New("missing path to onnxruntime")
	}

	dir, err := onnx.ResolveModelDir(cfg.Model)
	if err != nil {
		l.Error("NewPretrainedEncoder - error resolving model", "model", cfg.Model, "error", err.Error())
		return nil, err
	}

	ckpt, err := onnx.LoadCheckpointConfig(dir)
	if err != nil {
		l.Error("NewPretrainedEncoder - error loading checkpoint config", "error", err.Error())
		return nil, err
	}
	ckpt.NormEps = normEps

	bb, err := onnx.NewBackbone(cfg, filepath.Join(dir, "model.onnx"), ckpt)
	if err != nil {
		l.Error("NewPretrainedEncoder - error loading backbone", "error", err.Error())
		return nil, err
	}

	return &PretrainedEncoder{backbone: bb, ckpt: ckpt}, nil
}

// NewPretrainedEncoderFromBackbone wraps an already-loaded backbone. The
// same epsilon override applies to the recorded checkpoint config.
func NewPretrainedEncoderFromBackbone(b Backbone, ckpt domain.BackboneConfig) (*PretrainedEncoder, error) {
	if b == nil {
		return nil, errors.New("nil backbone")
	}
	ckpt.NormEps = normEps
	return &PretrainedEncoder{backbone: b, ckpt: ckpt}, nil
}

// Encode runs the backbone and returns the pooled embedding per batch item:
// the hidden state at sequence position 0. Backbone errors propagate
// unchanged.
func (e *PretrainedEncoder) Encode(ctx context.Context, batch domain.Batch) ([][]float32, error) {
	h, err := e.backbone.Forward(ctx, batch)
	if err != nil {
		return nil, err
	}
	return onnx.CLSPool(h), nil
}

// HiddenSize returns the embedding dimension.
func (e *PretrainedEncoder) HiddenSize() int {
	return e.backbone.HiddenSize()
}

// Config returns the checkpoint config as loaded, with the epsilon override
// applied.
func (e *PretrainedEncoder) Config() domain.BackboneConfig {
	return e.ckpt
}

// Close releases the underlying backbone.
func (e *PretrainedEncoder) Close(ctx context.Context) error {
	return e.backbone.Close(ctx)
}
