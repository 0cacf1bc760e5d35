package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `{
		// JSON5: comments and trailing commas allowed
		ledger: {
			server_url: "https://ledger.example.com",
			username: "me@example.com",
			account_book_id: "book-1",
		},
		monitor: {
			conversations: ["家庭账本", "出差"],
			poll_interval_ms: 500,
		},
		delivery: {
			workers: 2,
			reply: false,
		},
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ledger.ServerURL != "https://ledger.example.com" {
		t.Errorf("server_url = %q", cfg.Ledger.ServerURL)
	}
	if len(cfg.Monitor.Conversations) != 2 {
		t.Errorf("conversations = %v", cfg.Monitor.Conversations)
	}
	if cfg.Monitor.PollInterval() != 500*time.Millisecond {
		t.Errorf("poll interval = %v", cfg.Monitor.PollInterval())
	}
	// Unset fields keep defaults.
	if cfg.Monitor.ErrorCooldown() != 5*time.Second {
		t.Errorf("error cooldown = %v", cfg.Monitor.ErrorCooldown())
	}
	if cfg.Bridge.BaseURL != "http://127.0.0.1:9910" {
		t.Errorf("bridge url = %q", cfg.Bridge.BaseURL)
	}
	if cfg.Delivery.Workers != 2 {
		t.Errorf("workers = %d", cfg.Delivery.Workers)
	}
	if cfg.Delivery.ReplyEnabled() {
		t.Error("reply should be disabled")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Monitor.PollInterval() != time.Second {
		t.Errorf("poll interval = %v, want default 1s", cfg.Monitor.PollInterval())
	}
	if !cfg.Delivery.ReplyEnabled() {
		t.Error("reply should default to enabled")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, `{ledger: `)
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `{
		ledger: {server_url: "https://file.example.com", username: "file-user"},
	}`)

	t.Setenv("WXLEDGER_SERVER_URL", "https://env.example.com")
	t.Setenv("WXLEDGER_PASSWORD", "env-secret")
	t.Setenv("WXLEDGER_OTLP_ENDPOINT", "http://collector:4318")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ledger.ServerURL != "https://env.example.com" {
		t.Errorf("server_url = %q, env must win over file", cfg.Ledger.ServerURL)
	}
	if cfg.Ledger.Username != "file-user" {
		t.Errorf("username = %q, file value must survive", cfg.Ledger.Username)
	}
	if cfg.Ledger.Password != "env-secret" {
		t.Errorf("password = %q", cfg.Ledger.Password)
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint != "http://collector:4318" {
		t.Errorf("telemetry = %+v, OTLP env should enable export", cfg.Telemetry)
	}
}

func TestPasswordNeverReadFromFile(t *testing.T) {
	path := writeConfig(t, `{ledger: {password: "leaked"}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ledger.Password != "" {
		t.Errorf("password = %q, file values must be ignored", cfg.Ledger.Password)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Ledger.ServerURL = "https://ledger.example.com"
		cfg.Ledger.Username = "me@example.com"
		cfg.Ledger.Password = "secret"
		cfg.Ledger.AccountBookID = "book-1"
		cfg.Monitor.Conversations = []string{"家庭账本"}
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing server url", func(c *Config) { c.Ledger.ServerURL = "" }},
		{"missing username", func(c *Config) { c.Ledger.Username = "" }},
		{"missing password", func(c *Config) { c.Ledger.Password = "" }},
		{"missing book id", func(c *Config) { c.Ledger.AccountBookID = "" }},
		{"no conversations", func(c *Config) { c.Monitor.Conversations = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestWatch(t *testing.T) {
	path := writeConfig(t, `{monitor: {conversations: ["a"]}}`)

	changed := make(chan *Config, 4)
	stop, err := Watch(path, func(cfg *Config) {
		changed <- cfg
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stop()

	if err := os.WriteFile(path, []byte(`{monitor: {conversations: ["a", "b"]}}`), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-changed:
		if len(cfg.Monitor.Conversations) != 2 {
			t.Errorf("conversations = %v, want [a b]", cfg.Monitor.Conversations)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
