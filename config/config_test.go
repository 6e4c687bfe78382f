package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Expected defaults for missing file, got error: %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 8080 {
		t.Errorf("Expected default server address, got %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Database.Path != "casetrail.db" {
		t.Errorf("Expected default database path, got %s", cfg.Database.Path)
	}
	if cfg.Audit.AppendTimeoutMs != 5000 {
		t.Errorf("Expected default append timeout 5000, got %d", cfg.Audit.AppendTimeoutMs)
	}
}

func TestLoadParsesConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9090
database:
  path: /var/lib/casetrail/data.db
audit:
  appendTimeoutMs: 2500
  failurePolicies:
    case: block
    note: best-effort
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9090 {
		t.Errorf("Expected configured server address, got %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Database.Path != "/var/lib/casetrail/data.db" {
		t.Errorf("Expected configured database path, got %s", cfg.Database.Path)
	}
	if cfg.Audit.AppendTimeoutMs != 2500 {
		t.Errorf("Expected append timeout 2500, got %d", cfg.Audit.AppendTimeoutMs)
	}
	if cfg.Audit.FailurePolicies["case"] != "block" || cfg.Audit.FailurePolicies["note"] != "best-effort" {
		t.Errorf("Expected configured failure policies, got %v", cfg.Audit.FailurePolicies)
	}
}

func TestLoadPartialConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 3000\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Expected port 3000, got %d", cfg.Server.Port)
	}
	if cfg.Database.Path != "casetrail.db" {
		t.Errorf("Expected default database path to survive, got %s", cfg.Database.Path)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "server: [not a map"},
		{"port out of range", "server:\n  port: 70000\n"},
		{"empty database path", "database:\n  path: \"\"\n"},
		{"negative timeout", "audit:\n  appendTimeoutMs: -1\n"},
		{"unknown policy", "audit:\n  failurePolicies:\n    case: maybe\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("Expected load to fail")
			}
		})
	}
}
