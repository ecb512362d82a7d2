package domain

// EncoderConfig configures a single pretrained encoder tower.
type EncoderConfig struct {
	// model registry id (resolved under DUALENCODER_MODEL_HOME) or a
	// directory containing model.onnx, tokenizer.json and config.json
	Model string
	// e.g. "input_ids"
	InputNameIDs string
	// e.g. "token_type_ids"; empty if the model takes no segment input
	InputNameTypeIDs string
	// e.g. "attention_mask"
	InputNameMask string
	// e.g. "last_hidden_state"
	OutputName string
	// e.g. 256
	MaxSeqLen int
	// if true, this instance will skip shutting down the ONNX runtime on close.
	// This is useful if multiple encoders are used in the same process.
	// In that case, the application should manage the ONNX runtime lifecycle.
	// Default: false (each encoder manages its own runtime lifecycle & shuts runtime down on Close)
	GlobalRuntime bool
}

// DualEncoderConfig configures the query and title towers of a dual encoder.
type DualEncoderConfig struct {
	// Query is required; its Model names the query tower checkpoint.
	Query EncoderConfig
	// TitleModel names an independent title tower checkpoint. Ignored when
	// ShareParameters is set; when empty and parameters are not shared,
	// the title tower is absent and title-side operations fail.
	TitleModel string
	// ShareParameters makes the title tower the same owned instance as the
	// query tower (weight identity, not a copy).
	ShareParameters bool
	// Dropout is retained on the model but not applied in the pooling path.
	// Zero means the 0.1 default.
	Dropout float32
	// UseCrossBatch enables all-gathering candidate embeddings across the
	// process group during training.
	UseCrossBatch bool
}

// DefaultDropout is used when DualEncoderConfig.Dropout is zero.
const DefaultDropout float32 = 0.1

// BackboneConfig is the checkpoint configuration read from config.json.
type BackboneConfig struct {
	HiddenSize      int     `json:"hidden_size"`
	NumHiddenLayers int     `json:"num_hidden_layers"`
	MaxPosition     int     `json:"max_position_embeddings"`
	VocabSize       int     `json:"vocab_size"`
	TypeVocabSize   int     `json:"type_vocab_size"`
	NormEps         float64 `json:"layer_norm_eps"`
}
