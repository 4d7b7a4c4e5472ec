package opqueue

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/inventakit/go-opqueue/logging"
)

// Config is the file-based configuration for the engine. YAML is the
// canonical format; JSON documents parse as well.
type Config struct {
	Store   StoreConfig    `yaml:"store" json:"store"`
	Sync    SyncConfig     `yaml:"sync" json:"sync"`
	Logging logging.Config `yaml:"logging" json:"logging"`
}

// StoreConfig configures the durable storage collaborator.
type StoreConfig struct {
	// Path to the SQLite database file holding the operation pools
	Path string `yaml:"path" json:"path"`
}

// SyncConfig configures orchestrator timing.
type SyncConfig struct {
	CoolDownMs       int `yaml:"cool_down_ms" json:"cool_down_ms"`
	SettleDelayMs    int `yaml:"settle_delay_ms" json:"settle_delay_ms"`
	OperationDelayMs int `yaml:"operation_delay_ms" json:"operation_delay_ms"`
}

// LoadConfig reads and validates a configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Sync.CoolDownMs < 0 {
		return fmt.Errorf("sync.cool_down_ms must not be negative, got %d", c.Sync.CoolDownMs)
	}
	if c.Sync.SettleDelayMs < 0 {
		return fmt.Errorf("sync.settle_delay_ms must not be negative, got %d", c.Sync.SettleDelayMs)
	}
	if c.Sync.OperationDelayMs < 0 {
		return fmt.Errorf("sync.operation_delay_ms must not be negative, got %d", c.Sync.OperationDelayMs)
	}
	return nil
}

// Options converts the sync section into orchestrator options. Zero values
// fall back to the built-in defaults.
func (c *Config) Options() *Options {
	return &Options{
		CoolDown:       time.Duration(c.Sync.CoolDownMs) * time.Millisecond,
		SettleDelay:    time.Duration(c.Sync.SettleDelayMs) * time.Millisecond,
		OperationDelay: time.Duration(c.Sync.OperationDelayMs) * time.Millisecond,
	}
}
