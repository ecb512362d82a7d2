package onnx

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCheckpoint(t *testing.T, dir, config string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(config), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadCheckpointConfig(t *testing.T) {
	dir := t.TempDir()
	writeCheckpoint(t, dir, `{
		"hidden_size": 768,
		"num_hidden_layers": 12,
		"max_position_embeddings": 512,
		"vocab_size": 18000,
		"type_vocab_size": 2,
		"layer_norm_eps": 1e-12
	}`)

	cfg, err := LoadCheckpointConfig(dir)
	if err != nil {
		t.Fatalf("LoadCheckpointConfig: %v", err)
	}
	if cfg.HiddenSize != 768 || cfg.NumHiddenLayers != 12 || cfg.VocabSize != 18000 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.NormEps != 1e-12 {
		t.Errorf("NormEps = %v, want the stored 1e-12 (the override happens at encoder construction)", cfg.NormEps)
	}
}

func TestLoadCheckpointConfig_Missing(t *testing.T) {
	if _, err := LoadCheckpointConfig(t.TempDir()); err == nil {
		t.Error("missing config.json must error")
	}
}

func TestLoadCheckpointConfig_Malformed(t *testing.T) {
	dir := t.TempDir()
	writeCheckpoint(t, dir, `{"hidden_size": `)
	if _, err := LoadCheckpointConfig(dir); err == nil {
		t.Error("malformed config.json must error")
	}
}

func TestResolveModelDir(t *testing.T) {
	home := t.TempDir()
	if err := os.Mkdir(filepath.Join(home, "ernie-base-query"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ModelHomeEnv, home)

	t.Run("local path wins", func(t *testing.T) {
		dir := t.TempDir()
		got, err := ResolveModelDir(dir)
		if err != nil {
			t.Fatalf("ResolveModelDir: %v", err)
		}
		if got != dir {
			t.Errorf("got %q, want %q", got, dir)
		}
	})

	t.Run("registry id", func(t *testing.T) {
		got, err := ResolveModelDir("ernie-base-query")
		if err != nil {
			t.Fatalf("ResolveModelDir: %v", err)
		}
		if got != filepath.Join(home, "ernie-base-query") {
			t.Errorf("got %q", got)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		if _, err := ResolveModelDir("no-such-model"); err == nil {
			t.Error("unknown model id must error")
		}
	})

	t.Run("empty id", func(t *testing.T) {
		if _, err := ResolveModelDir(""); err == nil {
			t.Error("empty model id must error")
		}
	})

	t.Run("unset home", func(t *testing.T) {
		t.Setenv(ModelHomeEnv, "")
		if _, err := ResolveModelDir("ernie-base-query"); err == nil {
			t.Error("registry lookup without a model home must error")
		}
	})
}
