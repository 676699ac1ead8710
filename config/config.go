package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/pipeflow/types"
)

// Config holds the orchestrator runtime settings.
// Precedence: defaults → YAML file → PIPEFLOW_* environment variables.
type Config struct {
	// MaxConcurrency caps the number of agents in flight within one level.
	MaxConcurrency int `yaml:"max_concurrency"`

	// ValidationEnabled gates runs behind pre-execution validation.
	ValidationEnabled bool `yaml:"validation_enabled"`

	// StopPollInterval is the drain poll period of Stop.
	StopPollInterval time.Duration `yaml:"stop_poll_interval"`

	// EventBufferSize sizes the in-process event bus channel.
	EventBufferSize int `yaml:"event_buffer_size"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		MaxConcurrency:    5,
		ValidationEnabled: true,
		StopPollInterval:  100 * time.Millisecond,
		EventBufferSize:   100,
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.MaxConcurrency < 1 {
		return types.NewErrorf(types.ErrInvalidConfig, "max_concurrency must be >= 1, got %d", c.MaxConcurrency)
	}
	if c.StopPollInterval <= 0 {
		return types.NewErrorf(types.ErrInvalidConfig, "stop_poll_interval must be positive, got %s", c.StopPollInterval)
	}
	if c.EventBufferSize < 1 {
		return types.NewErrorf(types.ErrInvalidConfig, "event_buffer_size must be >= 1, got %d", c.EventBufferSize)
	}
	return nil
}

// fileConfig mirrors Config with optional fields so an absent key keeps the
// default instead of zeroing it.
type fileConfig struct {
	MaxConcurrency    *int           `yaml:"max_concurrency"`
	ValidationEnabled *bool          `yaml:"validation_enabled"`
	StopPollInterval  *time.Duration `yaml:"stop_poll_interval"`
	EventBufferSize   *int           `yaml:"event_buffer_size"`
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment overrides. An empty path skips the file layer.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		fc.apply(&cfg)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (fc fileConfig) apply(cfg *Config) {
	if fc.MaxConcurrency != nil {
		cfg.MaxConcurrency = *fc.MaxConcurrency
	}
	if fc.ValidationEnabled != nil {
		cfg.ValidationEnabled = *fc.ValidationEnabled
	}
	if fc.StopPollInterval != nil {
		cfg.StopPollInterval = *fc.StopPollInterval
	}
	if fc.EventBufferSize != nil {
		cfg.EventBufferSize = *fc.EventBufferSize
	}
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PIPEFLOW_MAX_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return types.NewErrorf(types.ErrInvalidConfig, "PIPEFLOW_MAX_CONCURRENCY: %v", err)
		}
		cfg.MaxConcurrency = n
	}
	if v := os.Getenv("PIPEFLOW_VALIDATION_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return types.NewErrorf(types.ErrInvalidConfig, "PIPEFLOW_VALIDATION_ENABLED: %v", err)
		}
		cfg.ValidationEnabled = b
	}
	if v := os.Getenv("PIPEFLOW_STOP_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return types.NewErrorf(types.ErrInvalidConfig, "PIPEFLOW_STOP_POLL_INTERVAL: %v", err)
		}
		cfg.StopPollInterval = d
	}
	if v := os.Getenv("PIPEFLOW_EVENT_BUFFER_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return types.NewErrorf(types.ErrInvalidConfig, "PIPEFLOW_EVENT_BUFFER_SIZE: %v", err)
		}
		cfg.EventBufferSize = n
	}
	return nil
}
