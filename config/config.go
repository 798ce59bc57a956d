// Package config loads the eventgraphd configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration.
type Config struct {
	Listen string `yaml:"listen"`
	// DatabaseURL selects the Postgres store. Empty means in-memory.
	DatabaseURL  string     `yaml:"databaseUrl"`
	LogLevel     string     `yaml:"logLevel"`
	LogFormat    string     `yaml:"logFormat"`
	TemplatesDir string     `yaml:"templatesDir"`
	Compositor   Compositor `yaml:"compositor"`
}

// Compositor configures the built-in payload checker.
type Compositor struct {
	// MaxRecords caps the records per pipeline; 0 means unlimited.
	MaxRecords int `yaml:"maxRecords"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen:    ":3000",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads a YAML file over the defaults, then applies the DATABASE_URL
// environment variable when set. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.DatabaseURL = url
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Unmarshal parses YAML content over the defaults without touching the
// environment.
func Unmarshal(content []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("config: listen must not be empty"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: invalid logLevel %q: must be debug, info, warn or error", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: invalid logFormat %q: must be text or json", c.LogFormat))
	}
	if c.Compositor.MaxRecords < 0 {
		errs = append(errs, errors.New("config: compositor.maxRecords must not be negative"))
	}
	return errors.Join(errs...)
}
