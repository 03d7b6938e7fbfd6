package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFrom_CreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config written to disk: %v", err)
	}
	if cfg.Gate.MaxWait() != time.Hour {
		t.Fatalf("unexpected default max wait: %s", cfg.Gate.MaxWait())
	}
	if len(cfg.Reviewers.Order) != 3 {
		t.Fatalf("unexpected default reviewer order: %v", cfg.Reviewers.Order)
	}
}

func TestLoadFrom_ReadsSnakeCaseKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
		"policy": {"block_severities": ["critical"]},
		"gate": {"max_wait_minutes": 5, "poll_interval_seconds": 10, "approvers": ["alice"]},
		"reviewers": {"order": ["structural"], "timeout_seconds": 15},
		"deploy": {"webhook_url": "https://deploy.example.com/hook"}
	}`
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Gate.MaxWait() != 5*time.Minute {
		t.Fatalf("unexpected max wait: %s", cfg.Gate.MaxWait())
	}
	if cfg.Gate.PollInterval() != 10*time.Second {
		t.Fatalf("unexpected poll interval: %s", cfg.Gate.PollInterval())
	}
	if len(cfg.Gate.Approvers) != 1 || cfg.Gate.Approvers[0] != "alice" {
		t.Fatalf("unexpected approvers: %v", cfg.Gate.Approvers)
	}
	if cfg.Reviewers.Timeout() != 15*time.Second {
		t.Fatalf("unexpected reviewer timeout: %s", cfg.Reviewers.Timeout())
	}
	if cfg.Deploy.WebhookURL != "https://deploy.example.com/hook" {
		t.Fatalf("unexpected webhook url: %q", cfg.Deploy.WebhookURL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"unknown severity", func(c *Config) { c.Policy.BlockSeverities = []string{"fatal"} }, true},
		{"negative max wait", func(c *Config) { c.Gate.MaxWaitMinutes = -1 }, true},
		{"empty reviewer order", func(c *Config) { c.Reviewers.Order = nil }, true},
		{"duplicate reviewer", func(c *Config) { c.Reviewers.Order = []string{"structural", "structural"} }, true},
		{"bad gateway port", func(c *Config) { c.Gateway.Port = 70000 }, true},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, true},
		{"zero poll interval gets default", func(c *Config) { c.Gate.PollIntervalSeconds = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestValidate_ZeroPollIntervalDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gate.PollIntervalSeconds = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Gate.PollIntervalSeconds != 30 {
		t.Fatalf("expected default poll interval, got %d", cfg.Gate.PollIntervalSeconds)
	}
}

func TestWorkspacePathChecked_TildeExpansion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workspace = "~/gatework"

	path, err := cfg.WorkspacePathChecked()
	if err != nil {
		t.Fatalf("WorkspacePathChecked: %v", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir: %v", err)
	}
	if path != filepath.Join(home, "gatework") {
		t.Fatalf("unexpected workspace path: %q", path)
	}
}
