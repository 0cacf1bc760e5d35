package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wxledgerhq/wxledger/internal/bus"
	"github.com/wxledgerhq/wxledger/internal/history"
	"github.com/wxledgerhq/wxledger/internal/wechat"
)

// Options configures the supervisor and its watchers.
type Options struct {
	PollInterval     time.Duration // default 1s
	ErrorCooldown    time.Duration // default 5s
	BaselineAttempts int           // default 3
	BaselineInterval time.Duration // default 2s
	DedupCap         int           // default DefaultDedupCap
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.PollInterval <= 0 {
		out.PollInterval = time.Second
	}
	if out.ErrorCooldown <= 0 {
		out.ErrorCooldown = 5 * time.Second
	}
	if out.BaselineAttempts <= 0 {
		out.BaselineAttempts = 3
	}
	if out.BaselineInterval <= 0 {
		out.BaselineInterval = 2 * time.Second
	}
	return out
}

// WatcherStats is a point-in-time snapshot of one conversation's watcher.
type WatcherStats struct {
	Conversation string
	Admitted     int64
	BaselineSize int
	DedupSize    int
	LastPollAt   time.Time
}

// Supervisor owns the map of watched conversations. All per-conversation
// state lives here, keyed and passed by handle; there is no package-level
// registry.
type Supervisor struct {
	driver wechat.Driver
	dedup  *DedupStore
	sink   Sink
	events bus.EventPublisher
	store  history.Store
	opts   Options

	mu       sync.Mutex
	watchers map[string]*watcherHandle
}

type watcherHandle struct {
	w      *watcher
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor creates a supervisor. sink receives admitted messages;
// events and store observe them.
func NewSupervisor(driver wechat.Driver, sink Sink, events bus.EventPublisher, store history.Store, opts Options) *Supervisor {
	o := opts.withDefaults()
	return &Supervisor{
		driver:   driver,
		dedup:    NewDedupStore(o.DedupCap),
		sink:     sink,
		events:   events,
		store:    store,
		opts:     o,
		watchers: make(map[string]*watcherHandle),
	}
}

// Watch captures the conversation's baseline and starts its poll loop. The
// baseline capture blocks the caller (it must complete before any poll runs,
// or backlog would leak through) and is bounded by ctx. The poll loop's
// lifetime is NOT tied to ctx: callers routinely capture under a short-lived
// startup context (an errgroup's, cancelled once every capture returns), and
// the watcher must outlive it. The loop runs on its own goroutine until
// Unwatch or Stop.
func (s *Supervisor) Watch(ctx context.Context, conversation string) error {
	s.mu.Lock()
	if _, exists := s.watchers[conversation]; exists {
		s.mu.Unlock()
		return fmt.Errorf("conversation %q already watched", conversation)
	}
	s.mu.Unlock()

	baseline, err := CaptureBaseline(ctx, s.driver, conversation, s.opts.BaselineAttempts, s.opts.BaselineInterval)
	if err != nil {
		return fmt.Errorf("capture baseline for %q: %w", conversation, err)
	}

	w := &watcher{
		conversation:  conversation,
		driver:        s.driver,
		baseline:      baseline,
		dedup:         s.dedup,
		sink:          s.sink,
		events:        s.events,
		store:         s.store,
		interval:      s.opts.PollInterval,
		errorCooldown: s.opts.ErrorCooldown,
	}

	wctx, cancel := context.WithCancel(context.Background())
	h := &watcherHandle{w: w, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	if _, exists := s.watchers[conversation]; exists {
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("conversation %q already watched", conversation)
	}
	s.watchers[conversation] = h
	s.mu.Unlock()

	go func() {
		defer close(h.done)
		w.run(wctx)
	}()
	return nil
}

// Unwatch stops the conversation's poll loop and discards its dedup state.
// In-flight deliveries for the conversation are not cancelled; they drain in
// the delivery pool.
func (s *Supervisor) Unwatch(conversation string) {
	s.mu.Lock()
	h, ok := s.watchers[conversation]
	if ok {
		delete(s.watchers, conversation)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	h.cancel()
	<-h.done
	s.dedup.Drop(conversation)
	slog.Info("conversation unwatched", "conversation", conversation)
}

// Watched returns the currently watched conversation names.
func (s *Supervisor) Watched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.watchers))
	for name := range s.watchers {
		out = append(out, name)
	}
	return out
}

// Reconcile watches conversations in want that are not yet watched and
// unwatches ones no longer listed. Used by config reload.
func (s *Supervisor) Reconcile(ctx context.Context, want []string) {
	wanted := make(map[string]struct{}, len(want))
	for _, name := range want {
		wanted[name] = struct{}{}
	}

	for _, name := range s.Watched() {
		if _, ok := wanted[name]; !ok {
			s.Unwatch(name)
		}
	}
	for name := range wanted {
		s.mu.Lock()
		_, exists := s.watchers[name]
		s.mu.Unlock()
		if exists {
			continue
		}
		if err := s.Watch(ctx, name); err != nil {
			slog.Error("failed to watch conversation", "conversation", name, "error", err)
		}
	}
}

// Stop cancels every watcher and waits for their loops to exit. Poll
// scheduling stops immediately; draining in-flight deliveries is the
// delivery pool's job.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	handles := make([]*watcherHandle, 0, len(s.watchers))
	for _, h := range s.watchers {
		handles = append(handles, h)
	}
	s.watchers = make(map[string]*watcherHandle)
	s.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
	for _, h := range handles {
		<-h.done
	}
}

// Stats snapshots every watcher.
func (s *Supervisor) Stats() []WatcherStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WatcherStats, 0, len(s.watchers))
	for name, h := range s.watchers {
		st := WatcherStats{
			Conversation: name,
			Admitted:     h.w.admitted.Load(),
			BaselineSize: h.w.baseline.Size(),
			DedupSize:    s.dedup.Len(name),
		}
		if ns := h.w.lastPollAt.Load(); ns > 0 {
			st.LastPollAt = time.Unix(0, ns)
		}
		out = append(out, st)
	}
	return out
}
