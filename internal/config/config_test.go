package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  host: "127.0.0.1"
  port: 9040
  mode: reactor
monitor:
  threshold: 250.5
observer:
  enabled: true
  port: 9041
  snapshot_interval: 2s
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 9040 {
		t.Errorf("Server.Port = %d, want 9040", cfg.Server.Port)
	}
	if cfg.Server.Mode != ModeReactor {
		t.Errorf("Server.Mode = %q, want reactor", cfg.Server.Mode)
	}
	if cfg.Monitor.Threshold != 250.5 {
		t.Errorf("Monitor.Threshold = %g, want 250.5", cfg.Monitor.Threshold)
	}
	if !cfg.Observer.Enabled {
		t.Error("Observer.Enabled = false, want true")
	}
	if cfg.Observer.SnapshotInterval != 2*time.Second {
		t.Errorf("Observer.SnapshotInterval = %s, want 2s", cfg.Observer.SnapshotInterval)
	}

	// Defaults still apply to unspecified fields.
	if cfg.Observer.Host != "127.0.0.1" {
		t.Errorf("Observer.Host = %q, want default 127.0.0.1", cfg.Observer.Host)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Load() on missing file should return error")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want default %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want default 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Mode != ModeProactor {
		t.Errorf("Server.Mode = %q, want default proactor", cfg.Server.Mode)
	}
	if cfg.Monitor.Threshold != 100.0 {
		t.Errorf("Monitor.Threshold = %g, want default 100", cfg.Monitor.Threshold)
	}
	if cfg.Observer.Enabled {
		t.Error("Observer.Enabled = true, want default false")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(cfgPath, []byte(":::not valid yaml"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(cfgPath)
	if err == nil {
		t.Fatal("Load() with invalid YAML should return error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"reactor mode", func(c *Config) { c.Server.Mode = ModeReactor }, false},
		{"threads mode", func(c *Config) { c.Server.Mode = ModeThreads }, false},
		{"unknown mode", func(c *Config) { c.Server.Mode = "fibers" }, true},
		{"empty mode", func(c *Config) { c.Server.Mode = "" }, true},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, true},
		{"negative port", func(c *Config) { c.Server.Port = -1 }, true},
		{"zero port allowed for tests", func(c *Config) { c.Server.Port = 0 }, false},
		{"zero threshold", func(c *Config) { c.Monitor.Threshold = 0 }, true},
		{"negative threshold", func(c *Config) { c.Monitor.Threshold = -5 }, true},
		{"zero snapshot interval", func(c *Config) { c.Observer.SnapshotInterval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("server:\n  mode: bogus\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Fatal("Load() should reject an invalid mode")
	}
}
