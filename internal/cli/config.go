package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds the training run configuration. Values merge in order:
// defaults, then the YAML config file, then NEURAL_PIPELINE_* environment
// variables, then command-line flags.
type Config struct {
	CheckpointDir string  `koanf:"checkpoint_dir"`
	Format        string  `koanf:"format"`
	Epochs        int     `koanf:"epochs"`
	BatchSize     int     `koanf:"batch_size"`
	LearningRate  float64 `koanf:"learning_rate"`
	Momentum      float64 `koanf:"momentum"`
	Optimizer     string  `koanf:"optimizer"`
	Scheduler     string  `koanf:"scheduler"`
	HiddenSize    int     `koanf:"hidden_size"`
	Samples       int     `koanf:"samples"`
	Seed          int64   `koanf:"seed"`
	Resume        bool    `koanf:"resume"`
	Verbose       bool    `koanf:"verbose"`
}

const envPrefix = "NEURAL_PIPELINE_"

// LoadConfig merges configuration from defaults, an optional YAML file,
// the environment, and the given flag set.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"checkpoint_dir": "checkpoints",
		"format":         "json",
		"epochs":         10,
		"batch_size":     8,
		"learning_rate":  0.01,
		"momentum":       0.9,
		"optimizer":      "sgd",
		"scheduler":      "constant",
		"hidden_size":    16,
		"samples":        128,
		"seed":           42,
		"resume":         false,
		"verbose":        false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return nil, fmt.Errorf("config file %s: %w", cfgFile, err)
		}
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", cfgFile, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %f", c.LearningRate)
	}
	if c.Samples < c.BatchSize {
		return fmt.Errorf("samples (%d) must be at least the batch size (%d)", c.Samples, c.BatchSize)
	}
	switch c.Format {
	case "json", "binary":
	default:
		return fmt.Errorf("format must be json or binary, got %q", c.Format)
	}
	switch c.Optimizer {
	case "sgd", "adam":
	default:
		return fmt.Errorf("optimizer must be sgd or adam, got %q", c.Optimizer)
	}
	switch c.Scheduler {
	case "constant", "step", "exponential", "cosine":
	default:
		return fmt.Errorf("scheduler must be constant, step, exponential or cosine, got %q", c.Scheduler)
	}
	return nil
}
