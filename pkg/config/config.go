package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up in the working directory.
const DefaultPath = "config.yaml"

// ErrInvalidConfig marks a configuration that violates a field invariant.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds application configuration
type Config struct {
	TargetAddress      string        `yaml:"target_address" default:"B8:59:CE:33:0F:93"`
	ScanTimeout        time.Duration `yaml:"scan_timeout" default:"20s"`
	ScanPause          time.Duration `yaml:"scan_pause" default:"20s"`
	DuplicateThreshold time.Duration `yaml:"duplicate_threshold" default:"30s"`
	ContinuousMode     bool          `yaml:"continuous_mode" default:"true"`

	// Continuous mode keeps one scan open for ContinuousScanWindow and pauses
	// ContinuousPause between scans; AdapterRetryDelay is its back-off after a
	// failed manager open.
	ContinuousScanWindow time.Duration `yaml:"continuous_scan_window" default:"60s"`
	ContinuousPause      time.Duration `yaml:"continuous_pause" default:"1s"`
	AdapterRetryDelay    time.Duration `yaml:"adapter_retry_delay" default:"1s"`

	// Presentation only
	TempWarnHigh   float64 `yaml:"temp_warn_high" default:"30"`
	TempWarnLow    float64 `yaml:"temp_warn_low" default:"10"`
	LoadAllHistory bool    `yaml:"load_all_history" default:"true"`
	HistoryLimit   int     `yaml:"history_limit" default:"200"`

	LogDir   string `yaml:"log_dir" default:"."`
	LogLevel string `yaml:"log_level" default:"info"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Validate checks the field invariants: every duration is non-negative.
func (c *Config) Validate() error {
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"scan_timeout", c.ScanTimeout},
		{"scan_pause", c.ScanPause},
		{"duplicate_threshold", c.DuplicateThreshold},
		{"continuous_scan_window", c.ContinuousScanWindow},
		{"continuous_pause", c.ContinuousPause},
		{"adapter_retry_delay", c.AdapterRetryDelay},
	}
	for _, f := range durations {
		if f.d < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %s", ErrInvalidConfig, f.name, f.d)
		}
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("%w: history_limit must not be negative, got %d", ErrInvalidConfig, c.HistoryLimit)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ScanWindow is the scan deadline for the configured mode.
func (c *Config) ScanWindow() time.Duration {
	if c.ContinuousMode {
		return c.ContinuousScanWindow
	}
	return c.ScanTimeout
}

// MinPause bounds every sleep between cycles, so a zero pause cannot reopen
// the controller in a tight loop.
const MinPause = 100 * time.Millisecond

// PauseDuration is the sleep between scan cycles for the configured mode,
// never less than MinPause.
func (c *Config) PauseDuration() time.Duration {
	if c.ContinuousMode {
		return max(c.ContinuousPause, MinPause)
	}
	return max(c.ScanPause, MinPause)
}

// RetryDelay is the sleep after a failed manager open for the configured mode,
// never less than MinPause.
func (c *Config) RetryDelay() time.Duration {
	if c.ContinuousMode {
		return max(c.AdapterRetryDelay, MinPause)
	}
	return max(c.ScanPause, MinPause)
}

// Parse decodes YAML over the defaults; fields absent from data keep their default.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the configuration file at path. It always returns a usable
// configuration: when the file is absent, corrupt or invalid the defaults are
// returned together with the error that caused the fallback.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
