package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const validYAML = `
epochs: 200
batch_size: 128
optimizer:
  kind: sgd
  lr: 0.1
  momentum: 0.9
  weight_decay: 0.0005
  nesterov: true
augmentation: trivial
dataset:
  name: cifar10
  root: data
  holdout: 0.1
lr_schedule:
  kind: cosine
checkpoint_interval: 20
seed: 42
`

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Epochs != 200 {
		t.Errorf("Epochs: expected 200, got %d", cfg.Epochs)
	}
	if cfg.BatchSize != 128 {
		t.Errorf("BatchSize: expected 128, got %d", cfg.BatchSize)
	}
	if cfg.Optimizer.Kind != "sgd" || !cfg.Optimizer.Nesterov {
		t.Errorf("optimizer not parsed: %+v", cfg.Optimizer)
	}
	if cfg.Optimizer.Momentum != 0.9 {
		t.Errorf("Momentum: expected 0.9, got %v", cfg.Optimizer.Momentum)
	}
	if cfg.Augmentation != "trivial" {
		t.Errorf("Augmentation: expected trivial, got %q", cfg.Augmentation)
	}
	if cfg.Dataset.Name != "cifar10" {
		t.Errorf("Dataset.Name: expected cifar10, got %q", cfg.Dataset.Name)
	}
	if cfg.CheckpointInterval != 20 {
		t.Errorf("CheckpointInterval: expected 20, got %d", cfg.CheckpointInterval)
	}
	if cfg.Seed != 42 {
		t.Errorf("Seed: expected 42, got %d", cfg.Seed)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "epochs: 10\nbatch_size: 32\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Optimizer.Kind != "sgd" || cfg.Optimizer.LR != 0.1 {
		t.Errorf("optimizer defaults not applied: %+v", cfg.Optimizer)
	}
	if cfg.Augmentation != "trivial" {
		t.Errorf("augmentation default not applied: %q", cfg.Augmentation)
	}
	if cfg.CheckpointInterval != 20 {
		t.Errorf("checkpoint_interval default: expected 20, got %d", cfg.CheckpointInterval)
	}
	if cfg.Model.Hidden != 128 {
		t.Errorf("model defaults not applied: %+v", cfg.Model)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantSub string
	}{
		{"missing epochs", "batch_size: 32\n", "epochs"},
		{"missing batch_size", "epochs: 10\n", "batch_size"},
		{"bad optimizer", "epochs: 10\nbatch_size: 32\noptimizer:\n  kind: lbfgs\n  lr: 0.1\n", "optimizer"},
		{"bad augmentation", "epochs: 10\nbatch_size: 32\naugmentation: randaugment\n", "augmentation"},
		{"bad schedule", "epochs: 10\nbatch_size: 32\nlr_schedule:\n  kind: plateau\n", "lr_schedule"},
		{"bad dataset", "epochs: 10\nbatch_size: 32\ndataset:\n  name: imagenet\n  holdout: 0.1\n", "dataset"},
		{"malformed yaml", "epochs: [unclosed\n", "YAML"},
		{"negative interval", "epochs: 10\nbatch_size: 32\ncheckpoint_interval: -1\n", "checkpoint_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got: %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for missing file, got: %v", err)
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	out := cfg.Apply(Overrides{DataRoot: "/mnt/datasets", Seed: 7, SeedSet: true})
	if out.Dataset.Root != "/mnt/datasets" {
		t.Errorf("DataRoot override not applied: %q", out.Dataset.Root)
	}
	if out.Seed != 7 {
		t.Errorf("Seed override not applied: %d", out.Seed)
	}

	// Original stays untouched.
	if cfg.Dataset.Root != "data" || cfg.Seed != 42 {
		t.Errorf("Apply mutated the original config: %+v", cfg)
	}

	// No overrides set leaves everything alone.
	same := cfg.Apply(Overrides{})
	if same.Dataset.Root != "data" || same.Seed != 42 {
		t.Errorf("empty overrides changed the config: %+v", same)
	}
}

func TestDigest(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Digest() == "" {
		t.Fatal("Digest returned empty string")
	}
	if cfg.Digest() != cfg.Digest() {
		t.Error("Digest is not deterministic")
	}

	other := cfg.Apply(Overrides{Seed: 99, SeedSet: true})
	if other.Digest() == cfg.Digest() {
		t.Error("different seeds should produce different digests")
	}
}
