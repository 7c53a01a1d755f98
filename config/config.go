// Package config loads and validates run configurations from YAML files,
// applying defaults and command-line overrides.
package config

import (
	"crypto/sha256"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Valid configuration values
var (
	validOptimizers = map[string]bool{
		"sgd": true, "adam": true,
	}
	validAugmentations = map[string]bool{
		"identity": true, "trivial": true, "trivial-wide": true,
	}
	validSchedules = map[string]bool{
		"constant": true, "step": true, "cosine": true,
	}
	validDatasets = map[string]bool{
		"cifar10": true, "synthetic": true,
	}
)

// ConfigError reports a malformed or incomplete configuration. It is always
// fatal and is surfaced before any training begins.
type ConfigError struct {
	Path   string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration %s: %s", e.Path, e.Reason)
}

// Config is the immutable record of hyperparameters for one training run.
// It is created once per process from the config file plus overrides and is
// read-only afterwards.
type Config struct {
	Epochs             int             `yaml:"epochs"`
	BatchSize          int             `yaml:"batch_size"`
	Optimizer          OptimizerConfig `yaml:"optimizer"`
	Augmentation       string          `yaml:"augmentation"`
	Dataset            DatasetConfig   `yaml:"dataset"`
	LRSchedule         ScheduleConfig  `yaml:"lr_schedule"`
	Model              ModelConfig     `yaml:"model"`
	CheckpointInterval int             `yaml:"checkpoint_interval"`
	Seed               uint64          `yaml:"seed"`
}

// OptimizerConfig selects the optimizer kind and its hyperparameters.
type OptimizerConfig struct {
	Kind        string  `yaml:"kind"`
	LR          float64 `yaml:"lr"`
	Momentum    float64 `yaml:"momentum"`
	WeightDecay float64 `yaml:"weight_decay"`
	Nesterov    bool    `yaml:"nesterov"`
	Beta1       float64 `yaml:"beta1"`
	Beta2       float64 `yaml:"beta2"`
	Epsilon     float64 `yaml:"epsilon"`
}

// DatasetConfig names the dataset and where to find it.
type DatasetConfig struct {
	Name string `yaml:"name"`
	Root string `yaml:"root"`
	// Holdout is the fraction of samples reserved for evaluation when the
	// dataset does not ship a dedicated test split.
	Holdout float64 `yaml:"holdout"`
	// Samples sizes the synthetic dataset; ignored for on-disk datasets.
	Samples int `yaml:"samples"`
}

// ScheduleConfig selects the learning-rate schedule.
type ScheduleConfig struct {
	Kind     string  `yaml:"kind"`
	StepSize int     `yaml:"step_size"`
	Gamma    float64 `yaml:"gamma"`
	MinLR    float64 `yaml:"min_lr"`
}

// ModelConfig shapes the classifier.
type ModelConfig struct {
	Features int `yaml:"features"`
	Hidden   int `yaml:"hidden"`
	Classes  int `yaml:"classes"`
}

// Default returns a configuration with every optional field at its default.
// Required fields (epochs, batch_size) are left zero and fail validation if
// the file does not provide them.
func Default() Config {
	return Config{
		Optimizer: OptimizerConfig{
			Kind:    "sgd",
			LR:      0.1,
			Beta1:   0.9,
			Beta2:   0.999,
			Epsilon: 1e-8,
		},
		Augmentation: "trivial",
		Dataset: DatasetConfig{
			Name:    "synthetic",
			Root:    "data",
			Holdout: 0.1,
			Samples: 2048,
		},
		LRSchedule: ScheduleConfig{
			Kind:  "cosine",
			Gamma: 0.1,
		},
		Model: ModelConfig{
			Features: 3072, // 32x32 RGB
			Hidden:   128,
			Classes:  10,
		},
		CheckpointInterval: 20,
		Seed:               1,
	}
}

// Load reads a YAML configuration file, fills in defaults, and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("cannot read file: %v", err)}
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("cannot parse YAML: %v", err)}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Path: path, Reason: err.Error()}
	}

	return &cfg, nil
}

// Validate checks required keys and recognized values.
func (c *Config) Validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if !validOptimizers[c.Optimizer.Kind] {
		return fmt.Errorf("unknown optimizer kind %q (valid: sgd, adam)", c.Optimizer.Kind)
	}
	if c.Optimizer.LR <= 0 {
		return fmt.Errorf("optimizer lr must be positive, got %v", c.Optimizer.LR)
	}
	if !validAugmentations[c.Augmentation] {
		return fmt.Errorf("unknown augmentation %q (valid: identity, trivial, trivial-wide)", c.Augmentation)
	}
	if !validDatasets[c.Dataset.Name] {
		return fmt.Errorf("unknown dataset %q (valid: cifar10, synthetic)", c.Dataset.Name)
	}
	if c.Dataset.Holdout <= 0 || c.Dataset.Holdout >= 1 {
		return fmt.Errorf("dataset holdout must be in (0, 1), got %v", c.Dataset.Holdout)
	}
	if !validSchedules[c.LRSchedule.Kind] {
		return fmt.Errorf("unknown lr_schedule kind %q (valid: constant, step, cosine)", c.LRSchedule.Kind)
	}
	if c.LRSchedule.Kind == "step" && c.LRSchedule.StepSize <= 0 {
		return fmt.Errorf("step lr_schedule requires a positive step_size")
	}
	if c.Model.Features <= 0 || c.Model.Hidden <= 0 || c.Model.Classes <= 1 {
		return fmt.Errorf("model requires positive features and hidden sizes and at least 2 classes")
	}
	if c.CheckpointInterval < 0 {
		return fmt.Errorf("checkpoint_interval cannot be negative, got %d", c.CheckpointInterval)
	}
	return nil
}

// Overrides carries the command-line values that take precedence over the
// configuration file.
type Overrides struct {
	DataRoot string
	Seed     uint64
	SeedSet  bool
}

// Apply returns a copy of the configuration with overrides applied.
func (c Config) Apply(o Overrides) Config {
	if o.DataRoot != "" {
		c.Dataset.Root = o.DataRoot
	}
	if o.SeedSet {
		c.Seed = o.Seed
	}
	return c
}

// Digest fingerprints the configuration so checkpoints can reject a resume
// under different hyperparameters. The seed is included: resuming a run with
// a different seed would not reproduce the interrupted run.
func (c Config) Digest() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		// Config is plain data; Marshal cannot realistically fail.
		return ""
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
