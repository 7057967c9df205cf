package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all application settings. Values can be overridden through
// environment variables after the file is loaded.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		HTTPAddr string `yaml:"http_addr"`
	} `yaml:"server"`

	Market struct {
		// IncrementPct is the floor increase after each accepted bid.
		IncrementPct int64 `yaml:"increment_pct"`
		// MinDurationSec is the shortest auction the API accepts.
		MinDurationSec int64 `yaml:"min_duration_sec"`
		// EscrowAccount is the identity holding escrowed assets and value.
		EscrowAccount string `yaml:"escrow_account"`
	} `yaml:"market"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server http_addr is required")
	}
	if c.Market.IncrementPct < 0 || c.Market.IncrementPct > 100 {
		return fmt.Errorf("market increment_pct must be within [0,100], got %d", c.Market.IncrementPct)
	}
	if c.Market.MinDurationSec < 0 {
		return fmt.Errorf("market min_duration_sec must not be negative")
	}
	if c.Market.EscrowAccount == "" {
		return fmt.Errorf("market escrow_account is required")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	return nil
}

// overrideWithEnv applies environment variables over file values.
func overrideWithEnv(cfg *Config) {
	if addr := os.Getenv("CELO_HTTP_ADDR"); addr != "" {
		cfg.Server.HTTPAddr = addr
	}
	if path := os.Getenv("CELO_DATA_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if level := os.Getenv("CELO_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
