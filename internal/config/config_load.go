package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			BaseURL: "http://127.0.0.1:9910",
		},
		Monitor: MonitorConfig{
			PollIntervalMS:     1000,
			ErrorCooldownMS:    5000,
			BaselineAttempts:   3,
			BaselineIntervalMS: 2000,
			DedupCap:           10000,
		},
		Delivery: DeliveryConfig{
			Workers:       4,
			MaxAttempts:   3,
			BackoffBaseMS: 2000,
			RateLimitRPM:  30,
		},
		History: HistoryConfig{
			Path: defaultHistoryPath(),
		},
	}
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "wxledger-history.db"
	}
	return filepath.Join(home, ".wxledger", "history.db")
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is not an error: env vars alone can carry a minimal setup.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Validate checks the fields the pipeline cannot start without.
func (c *Config) Validate() error {
	if c.Ledger.ServerURL == "" {
		return fmt.Errorf("ledger.server_url is required")
	}
	if c.Ledger.Username == "" {
		return fmt.Errorf("ledger.username is required (or WXLEDGER_USERNAME)")
	}
	if c.Ledger.Password == "" {
		return fmt.Errorf("WXLEDGER_PASSWORD is not set")
	}
	if c.Ledger.AccountBookID == "" {
		return fmt.Errorf("ledger.account_book_id is required (run `wxledger login` to list books)")
	}
	if len(c.Monitor.Conversations) == 0 {
		return fmt.Errorf("monitor.conversations is empty")
	}
	return nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("WXLEDGER_SERVER_URL", &c.Ledger.ServerURL)
	envStr("WXLEDGER_USERNAME", &c.Ledger.Username)
	envStr("WXLEDGER_PASSWORD", &c.Ledger.Password)
	envStr("WXLEDGER_ACCOUNT_BOOK_ID", &c.Ledger.AccountBookID)
	envStr("WXLEDGER_BRIDGE_URL", &c.Bridge.BaseURL)
	envStr("WXLEDGER_HISTORY_PATH", &c.History.Path)
	envStr("WXLEDGER_OTLP_ENDPOINT", &c.Telemetry.Endpoint)
	if c.Telemetry.Endpoint != "" && os.Getenv("WXLEDGER_OTLP_ENDPOINT") != "" {
		c.Telemetry.Enabled = true
	}
}

// Watch re-loads the config file whenever it changes and calls onChange with
// the fresh config. Editors often replace the file (rename + create), so the
// watch is on the directory. Returns a stop function.
func Watch(path string, onChange func(*Config)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	abs, _ := filepath.Abs(path)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				evAbs, _ := filepath.Abs(event.Name)
				if evAbs != abs || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					slog.Warn("config reload failed", "path", path, "error", err)
					continue
				}
				slog.Info("config reloaded", "path", path)
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "error", err)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
