package onnx

import (
	"context"
	"errors"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hankgalt/dualencoder/pkg/domain"
)

// Backbone runs a pretrained transformer ONNX graph and returns per-token
// hidden states. The graph must expose a rank-3 sequence output [B, T, H];
// pooling is the caller's concern.
type Backbone struct {
	cfg        domain.EncoderConfig
	modelPath  string
	sess       *ort.DynamicAdvancedSession
	takesTypes bool
	hiddenSize int
}

// NewBackbone opens an ONNX session over modelPath. The hidden size is
// discovered from the declared output shape, falling back to the checkpoint
// config when the graph leaves it dynamic.
func NewBackbone(cfg domain.EncoderConfig, modelPath string, ckpt domain.BackboneConfig) (*Backbone, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("missing model path")
	}

	// Initialize global ORT env once per process (safe to call multiple times).
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("init ORT env: %w", err)
	}

	infosIn, infosOut, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("GetInputOutputInfo: %w", err)
	}

	var outInfo *ort.InputOutputInfo
	for i := range infosOut {
		if infosOut[i].Name == cfg.OutputName {
			outInfo = &infosOut[i]
			break
		}
	}
	if outInfo == nil {
		return nil, fmt.Errorf("output %q not found in model", cfg.OutputName)
	}
	outDims := outInfo.Dimensions
	if len(outDims) != 3 {
		return nil, fmt.Errorf("output %q has rank %d (dims=%v), want sequence output [B,T,H]",
			cfg.OutputName, len(outDims), outDims)
	}
	H := int(outDims[2])
	if H <= 0 {
		H = ckpt.HiddenSize
	}
	if H <= 0 {
		return nil, fmt.Errorf("can't resolve hidden size from dims %v or checkpoint config", outDims)
	}

	inputNames := []string{cfg.InputNameIDs}
	takesTypes := false
	if cfg.InputNameTypeIDs != "" {
		for i := range infosIn {
			if infosIn[i].Name == cfg.InputNameTypeIDs {
				takesTypes = true
				inputNames = append(inputNames, cfg.InputNameTypeIDs)
				break
			}
		}
	}
	inputNames = append(inputNames, cfg.InputNameMask)

	sess, err := ort.NewDynamicAdvancedSession(
		modelPath,
		inputNames,
		[]string{cfg.OutputName},
		nil, // no special SessionOptions
	)
	if err != nil {
		return nil, fmt.Errorf("NewDynamicAdvancedSession: %w", err)
	}

	return &Backbone{
		cfg:        cfg,
		modelPath:  modelPath,
		sess:       sess,
		takesTypes: takesTypes,
		hiddenSize: H,
	}, nil
}

// HiddenSize returns the backbone hidden dimension H.
func (b *Backbone) HiddenSize() int {
	return b.hiddenSize
}

// Forward runs the graph over one tokenized batch. A nil attention mask is
// treated as all-ones; a nil token-type batch as all-zeros. Position ids are
// baked into exported graphs and are ignored here.
func (b *Backbone) Forward(ctx context.Context, batch domain.Batch) (domain.HiddenStates, error) {
	if b.sess == nil {
		return domain.HiddenStates{}, fmt.Errorf("backbone not initialized")
	}
	if err := batch.Validate(); err != nil {
		return domain.HiddenStates{}, err
	}
	B, T, H := batch.Size(), batch.SeqLen(), b.hiddenSize
	if B == 0 {
		return domain.HiddenStates{B: 0, T: T, H: H}, nil
	}

	shape2 := ort.NewShape(int64(B), int64(T))
	idTensor, err := ort.NewTensor(shape2, flattenInt32ToInt64(batch.InputIDs))
	if err != nil {
		return domain.HiddenStates{}, fmt.Errorf("input_ids tensor: %w", err)
	}
	defer idTensor.Destroy()

	inputs := []ort.Value{idTensor}

	if b.takesTypes {
		typeIDs := batch.TokenTypeIDs
		if typeIDs == nil {
			typeIDs = zeroRows(B, T)
		}
		typeTensor, err := ort.NewTensor(shape2, flattenInt32ToInt64(typeIDs))
		if err != nil {
			return domain.HiddenStates{}, fmt.Errorf("token_type_ids tensor: %w", err)
		}
		defer typeTensor.Destroy()
		inputs = append(inputs, typeTensor)
	}

	mask := batch.AttentionMask
	if mask == nil {
		mask = onesRows(B, T)
	}
	maskTensor, err := ort.NewTensor(shape2, flattenInt32ToInt64(mask))
	if err != nil {
		return domain.HiddenStates{}, fmt.Errorf("attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	inputs = append(inputs, maskTensor)

	outTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(B), int64(T), int64(H)))
	if err != nil {
		return domain.HiddenStates{}, fmt.Errorf("alloc out tensor: %w", err)
	}
	defer outTensor.Destroy()

	if err := b.sess.Run(inputs, []ort.Value{outTensor}); err != nil {
		return domain.HiddenStates{}, fmt.Errorf("ORT Run: %w", err)
	}

	data := outTensor.GetData()
	out := make([]float32, len(data))
	copy(out, data)
	return domain.HiddenStates{Data: out, B: B, T: T, H: H}, nil
}

// Close destroys the session and, unless the runtime is managed globally,
// shuts the ONNX runtime down.
func (b *Backbone) Close(ctx context.Context) error {
	var err error
	if b.sess != nil {
		err = b.sess.Destroy()
		b.sess = nil
	}
	if b.cfg.GlobalRuntime {
		return err
	}
	if eErr := ort.DestroyEnvironment(); eErr != nil {
		if err != nil {
			return errors.Join(err, eErr)
		}
		return eErr
	}
	return err
}

func flattenInt32ToInt64(xs [][]int32) []int64 {
	if len(xs) == 0 {
		return nil
	}
	out := make([]int64, 0, len(xs)*len(xs[0]))
	for _, row := range xs {
		for _, v := range row {
			out = append(out, int64(v))
		}
	}
	return out
}

func zeroRows(b, t int) [][]int32 {
	rows := make([][]int32, b)
	for i := range rows {
		rows[i] = make([]int32, t)
	}
	return rows
}

func onesRows(b, t int) [][]int32 {
	rows := make([][]int32, b)
	for i := range rows {
		rows[i] = make([]int32, t)
		for j := range rows[i] {
			rows[i][j] = 1
		}
	}
	return rows
}
