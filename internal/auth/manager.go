package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wxledgerhq/wxledger/internal/bus"
	"github.com/wxledgerhq/wxledger/internal/ledger"
)

// Options tunes the refresh behaviour.
type Options struct {
	CheckInterval time.Duration // background expiry check cadence, default 5m
	RefreshWindow time.Duration // refresh this long before expiry, default 30m
}

func (o Options) withDefaults() Options {
	if o.CheckInterval <= 0 {
		o.CheckInterval = 5 * time.Minute
	}
	if o.RefreshWindow <= 0 {
		o.RefreshWindow = 30 * time.Minute
	}
	return o
}

// Manager holds the current Credential behind an atomic pointer. Reads never
// take a lock; the refresh mutex only serializes writers, and is never held
// across anything but the login network call itself, which concurrent
// readers do not wait on — they keep using the stale credential until the
// swap lands.
type Manager struct {
	client   *ledger.Client
	username string
	password string
	opts     Options
	events   bus.EventPublisher

	cur       atomic.Pointer[Credential]
	refreshMu sync.Mutex
}

// NewManager creates a Manager. Login must be called before Token is useful.
func NewManager(client *ledger.Client, username, password string, events bus.EventPublisher, opts Options) *Manager {
	return &Manager{
		client:   client,
		username: username,
		password: password,
		opts:     opts.withDefaults(),
		events:   events,
	}
}

// Login performs the initial login. Failure here is fatal to pipeline
// startup: without any credential nothing can be delivered.
func (m *Manager) Login(ctx context.Context) error {
	res, err := m.client.Login(ctx, m.username, m.password)
	if err != nil {
		return fmt.Errorf("initial login: %w", err)
	}
	cred := newCredential(res.Token, res.User.ID, res.User.Email)
	m.cur.Store(cred)
	slog.Info("logged in to ledger service", "subject", cred.Email, "expires_at", cred.ExpiresAt)
	return nil
}

// Current returns the current credential, or nil before the first login.
func (m *Manager) Current() *Credential {
	return m.cur.Load()
}

// Token returns the current bearer token, or "" before the first login.
func (m *Manager) Token() string {
	if c := m.cur.Load(); c != nil {
		return c.Token
	}
	return ""
}

// ForceRefresh re-logs-in and swaps the credential. rejectedToken is the
// token that just failed: if another caller already replaced it, the refresh
// is skipped and the newer credential wins — N workers hitting 401 on the
// same stale token trigger one login, not N.
//
// On failure the previous credential stays in place (stale but usable for
// whatever the server still accepts) and the error is reported; the
// background loop retries on its next tick.
func (m *Manager) ForceRefresh(ctx context.Context, rejectedToken string) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	if cur := m.cur.Load(); cur != nil && rejectedToken != "" && cur.Token != rejectedToken {
		return nil // already refreshed by someone else
	}
	return m.refreshLocked(ctx)
}

func (m *Manager) refreshLocked(ctx context.Context) error {
	res, err := m.client.Login(ctx, m.username, m.password)
	if err != nil {
		slog.Error("credential refresh failed", "error", err)
		m.events.Broadcast(bus.Event{
			Name:    bus.EventCredentialRefreshed,
			Payload: bus.CredentialRefreshedPayload{Success: false, Error: err.Error()},
		})
		return fmt.Errorf("refresh login: %w", err)
	}

	cred := newCredential(res.Token, res.User.ID, res.User.Email)
	m.cur.Store(cred)
	slog.Info("credential refreshed", "subject", cred.Email, "expires_at", cred.ExpiresAt)
	m.events.Broadcast(bus.Event{
		Name:    bus.EventCredentialRefreshed,
		Payload: bus.CredentialRefreshedPayload{Success: true, Subject: cred.Email},
	})
	return nil
}

// Run is the background refresh loop: every CheckInterval it refreshes the
// credential if it is missing, expired, or inside the refresh window.
// Returns when ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.opts.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkAndRefresh(ctx)
		}
	}
}

func (m *Manager) checkAndRefresh(ctx context.Context) {
	cur := m.cur.Load()
	if cur != nil && !cur.ExpiresWithin(m.opts.RefreshWindow) {
		return
	}

	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	// Re-check under the writer lock; a forced refresh may have just run.
	if cur := m.cur.Load(); cur != nil && !cur.ExpiresWithin(m.opts.RefreshWindow) {
		return
	}
	if err := m.refreshLocked(ctx); err != nil {
		slog.Warn("scheduled credential refresh failed, keeping previous credential", "error", err)
	}
}
