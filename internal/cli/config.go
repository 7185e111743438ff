package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the weft.yaml file. Every field is optional; zero values
// fall back to kernel defaults.
type Config struct {
	// Store is the SQLite database path; empty or ":memory:" selects
	// the in-memory store.
	Store string `yaml:"store,omitempty"`

	// Rules lists CUE rule files to register, resolved relative to
	// the config file.
	Rules []string `yaml:"rules,omitempty"`

	// Budget caps sync firings per flow.
	Budget int `yaml:"budget,omitempty"`

	// InvokeTimeout bounds one concept invocation ("5s", "250ms").
	InvokeTimeout string `yaml:"invoke_timeout,omitempty"`
}

// LoadConfig reads a weft.yaml. Unknown fields are rejected; rule
// paths come back resolved relative to the config's directory.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i, rule := range cfg.Rules {
		if !filepath.IsAbs(rule) {
			cfg.Rules[i] = filepath.Join(base, rule)
		}
	}
	if cfg.Store != "" && cfg.Store != ":memory:" && !filepath.IsAbs(cfg.Store) {
		cfg.Store = filepath.Join(base, cfg.Store)
	}

	if _, err := cfg.invokeTimeout(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if cfg.Budget < 0 {
		return nil, fmt.Errorf("config %s: budget must be non-negative", path)
	}
	return &cfg, nil
}

// loadConfigOrDefault resolves the --config flag: no flag means an
// empty config, a named file must parse.
func loadConfigOrDefault(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "load config", Err: err}
	}
	return cfg, nil
}

func (c *Config) invokeTimeout() (time.Duration, error) {
	if c.InvokeTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.InvokeTimeout)
	if err != nil {
		return 0, fmt.Errorf("invoke_timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invoke_timeout must be positive")
	}
	return d, nil
}
