package onnx

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hankgalt/dualencoder/pkg/domain"
)

// ModelHomeEnv points the model-id registry at a directory of checkpoints.
const ModelHomeEnv = "DUALENCODER_MODEL_HOME"

// ResolveModelDir maps a model identifier to a checkpoint directory. A path
// that exists on disk is used as-is; anything else is looked up under
// DUALENCODER_MODEL_HOME.
func ResolveModelDir(model string) (string, error) {
	if model == "" {
		return "", fmt.Errorf("missing model identifier")
	}
	if info, err := os.Stat(model); err == nil && info.IsDir() {
		return model, nil
	}
	home := os.Getenv(ModelHomeEnv)
	if home == "" {
		return "", fmt.Errorf("model %q is not a local directory and %s is unset", model, ModelHomeEnv)
	}
	dir := filepath.Join(home, model)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("model %q not found under %s", model, home)
	}
	return dir, nil
}

// LoadCheckpointConfig reads the checkpoint's config.json.
func LoadCheckpointConfig(dir string) (domain.BackboneConfig, error) {
	var cfg domain.BackboneConfig
	raw, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		return cfg, fmt.Errorf("read checkpoint config: %w", err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse checkpoint config: %w", err)
	}
	return cfg, nil
}
