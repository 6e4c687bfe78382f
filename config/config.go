// Package config loads the CaseTrail server configuration from a YAML file.
//
// The config defines:
//   - Server bind address (host:port)
//   - Database file path
//   - Audit append timeout and the per-event-class failure policy
//
// Secrets and environment-specific overrides stay in the environment (.env),
// loaded by main; this file is for structural configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level CaseTrail configuration, loaded from config.yaml
// with defaults applied for fields that are not explicitly set.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Audit    AuditConfig    `yaml:"audit"`
}

// ServerConfig defines where the HTTP API listens.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig points at the embedded SQLite database file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuditConfig controls the append engine.
//
// FailurePolicies maps an event-class prefix ("session", "gdpr", "case", …)
// to "block" or "best-effort". Blocking classes fail their primary operation
// when the audit write fails; best-effort classes log and proceed. Classes
// left unset fall back to the engine's defaults.
type AuditConfig struct {
	AppendTimeoutMs int               `yaml:"appendTimeoutMs"`
	FailurePolicies map[string]string `yaml:"failurePolicies"`
}

// Load reads and parses the config file at the given path.
// A missing file returns defaults (not an error); invalid YAML or
// validation failures return an error.
func Load(path string) (*Config, error) {
	cfg := applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func applyDefaults() *Config {
	return &Config{
		Server:   ServerConfig{Host: "127.0.0.1", Port: 8080},
		Database: DatabaseConfig{Path: "casetrail.db"},
		Audit:    AuditConfig{AppendTimeoutMs: 5000},
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", cfg.Server.Port)
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if cfg.Audit.AppendTimeoutMs < 0 {
		return fmt.Errorf("audit append timeout must not be negative")
	}
	for class, policy := range cfg.Audit.FailurePolicies {
		if policy != "block" && policy != "best-effort" {
			return fmt.Errorf("failure policy for class %q must be block or best-effort, got %q", class, policy)
		}
	}
	return nil
}
