// Package config loads and watches the wxledger configuration: a JSON5 file
// overlaid with WXLEDGER_* environment variables. Secrets (the ledger
// password) come from the environment only and are never written back.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Ledger    LedgerConfig    `json:"ledger"`
	Bridge    BridgeConfig    `json:"bridge"`
	Monitor   MonitorConfig   `json:"monitor"`
	Delivery  DeliveryConfig  `json:"delivery"`
	Auth      AuthConfig      `json:"auth"`
	History   HistoryConfig   `json:"history,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
}

// LedgerConfig locates the remote accounting service.
// Password is NEVER read from the config file — only from WXLEDGER_PASSWORD.
type LedgerConfig struct {
	ServerURL      string `json:"server_url"`
	Username       string `json:"username"`
	Password       string `json:"-"` // from env WXLEDGER_PASSWORD only
	AccountBookID  string `json:"account_book_id"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"` // default 30
}

// BridgeConfig locates the local automation bridge.
type BridgeConfig struct {
	BaseURL        string `json:"base_url"` // default http://127.0.0.1:9910
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// MonitorConfig tunes the poll loops.
type MonitorConfig struct {
	Conversations      []string `json:"conversations"`
	PollIntervalMS     int      `json:"poll_interval_ms,omitempty"`     // default 1000
	ErrorCooldownMS    int      `json:"error_cooldown_ms,omitempty"`    // default 5000
	BaselineAttempts   int      `json:"baseline_attempts,omitempty"`    // default 3
	BaselineIntervalMS int      `json:"baseline_interval_ms,omitempty"` // default 2000
	DedupCap           int      `json:"dedup_cap,omitempty"`            // default 10000
}

// DeliveryConfig tunes the delivery pool.
type DeliveryConfig struct {
	Workers       int   `json:"workers,omitempty"`         // default 4
	QueueSize     int   `json:"queue_size,omitempty"`      // default 64
	MaxAttempts   int   `json:"max_attempts,omitempty"`    // default 3
	BackoffBaseMS int   `json:"backoff_base_ms,omitempty"` // default 2000
	RateLimitRPM  int   `json:"rate_limit_rpm,omitempty"`  // 0 = unlimited
	Reply         *bool `json:"reply,omitempty"`           // default true
}

// ReplyEnabled reports whether replies should be sent (default true).
func (d DeliveryConfig) ReplyEnabled() bool {
	return d.Reply == nil || *d.Reply
}

// AuthConfig tunes credential refresh.
type AuthConfig struct {
	CheckIntervalSeconds int `json:"check_interval_seconds,omitempty"` // default 300
	RefreshWindowMinutes int `json:"refresh_window_minutes,omitempty"` // default 30
}

// HistoryConfig configures the local statistics database.
type HistoryConfig struct {
	Path     string `json:"path,omitempty"` // default ~/.wxledger/history.db
	Disabled bool   `json:"disabled,omitempty"`
}

// TelemetryConfig configures optional OTLP trace export.
type TelemetryConfig struct {
	Enabled  bool   `json:"enabled,omitempty"`
	Endpoint string `json:"endpoint,omitempty"` // default http://127.0.0.1:4318
}

// Duration helpers: config keeps plain ints with units in the name; callers
// want time.Duration.

func (m MonitorConfig) PollInterval() time.Duration {
	return msOrDefault(m.PollIntervalMS, 1000)
}

func (m MonitorConfig) ErrorCooldown() time.Duration {
	return msOrDefault(m.ErrorCooldownMS, 5000)
}

func (m MonitorConfig) BaselineInterval() time.Duration {
	return msOrDefault(m.BaselineIntervalMS, 2000)
}

func (d DeliveryConfig) BackoffBase() time.Duration {
	return msOrDefault(d.BackoffBaseMS, 2000)
}

func (a AuthConfig) CheckInterval() time.Duration {
	if a.CheckIntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(a.CheckIntervalSeconds) * time.Second
}

func (a AuthConfig) RefreshWindow() time.Duration {
	if a.RefreshWindowMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(a.RefreshWindowMinutes) * time.Minute
}

func (l LedgerConfig) Timeout() time.Duration {
	if l.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(l.TimeoutSeconds) * time.Second
}

func (b BridgeConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

func msOrDefault(ms, def int) time.Duration {
	if ms <= 0 {
		ms = def
	}
	return time.Duration(ms) * time.Millisecond
}
