package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wxledgerhq/wxledger/internal/auth"
	"github.com/wxledgerhq/wxledger/internal/bus"
	"github.com/wxledgerhq/wxledger/internal/config"
	"github.com/wxledgerhq/wxledger/internal/delivery"
	"github.com/wxledgerhq/wxledger/internal/history"
	"github.com/wxledgerhq/wxledger/internal/ledger"
	"github.com/wxledgerhq/wxledger/internal/monitor"
	"github.com/wxledgerhq/wxledger/internal/schedule"
	"github.com/wxledgerhq/wxledger/internal/telemetry"
	"github.com/wxledgerhq/wxledger/internal/wechat"
)

const drainTimeout = 15 * time.Second

// runMonitor wires the pipeline and blocks until interrupted.
func runMonitor(parent context.Context) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		return err
	}

	events := bus.New()
	events.Subscribe("log-sink", func(ev bus.Event) {
		slog.Debug("event", "name", ev.Name, "payload", ev.Payload)
	})

	store, err := openHistory(cfg.History)
	if err != nil {
		return err
	}
	defer store.Close()

	ledgerClient := ledger.NewClient(cfg.Ledger.ServerURL, cfg.Ledger.Timeout())
	creds := auth.NewManager(ledgerClient, cfg.Ledger.Username, cfg.Ledger.Password, events, auth.Options{
		CheckInterval: cfg.Auth.CheckInterval(),
		RefreshWindow: cfg.Auth.RefreshWindow(),
	})
	if err := creds.Login(ctx); err != nil {
		return fmt.Errorf("cannot start without a credential: %w", err)
	}

	driver := wechat.NewBridgeClient(cfg.Bridge.BaseURL, cfg.Bridge.Timeout())
	if err := driver.Ping(ctx); err != nil {
		slog.Warn("automation bridge not reachable yet, polling will retry", "error", err)
	}

	replier := delivery.NewReplier(driver, events)
	pool := delivery.NewPool(ledgerClient, creds, replier, events, store, delivery.Options{
		Workers:      cfg.Delivery.Workers,
		QueueSize:    cfg.Delivery.QueueSize,
		MaxAttempts:  cfg.Delivery.MaxAttempts,
		BackoffBase:  cfg.Delivery.BackoffBase(),
		RateLimitRPM: cfg.Delivery.RateLimitRPM,
		ReplyEnabled: cfg.Delivery.ReplyEnabled(),
		BookID:       cfg.Ledger.AccountBookID,
	})

	// Delivery runs on its own context so that in-flight tasks survive the
	// interrupt signal and drain; the drain timeout bounds how long.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()
	pool.Start(workCtx)

	sup := monitor.NewSupervisor(driver, pool, events, store, monitor.Options{
		PollInterval:     cfg.Monitor.PollInterval(),
		ErrorCooldown:    cfg.Monitor.ErrorCooldown(),
		BaselineAttempts: cfg.Monitor.BaselineAttempts,
		BaselineInterval: cfg.Monitor.BaselineInterval(),
		DedupCap:         cfg.Monitor.DedupCap,
	})

	// Baseline captures are slow (stabilising refetch loop); run them in
	// parallel so many conversations do not serialize startup. gctx bounds
	// only the captures — the watchers' poll loops live until sup.Stop.
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range cfg.Monitor.Conversations {
		name := name
		g.Go(func() error {
			return sup.Watch(gctx, name)
		})
	}
	if err := g.Wait(); err != nil {
		sup.Stop()
		pool.Drain(drainTimeout)
		return fmt.Errorf("start monitoring: %w", err)
	}

	go creds.Run(ctx)

	sched, err := schedule.New([]schedule.Job{
		{Name: "daily-summary", Expr: "0 0 * * *", Run: func(jctx context.Context) {
			logDailySummary(jctx, store, sup)
		}},
	})
	if err != nil {
		return err
	}
	go sched.Run(ctx)

	stopWatch, err := config.Watch(cfgPath, func(fresh *config.Config) {
		sup.Reconcile(ctx, fresh.Monitor.Conversations)
	})
	if err != nil {
		slog.Warn("config watch unavailable", "error", err)
	} else {
		defer stopWatch()
	}

	slog.Info("wxledger running", "conversations", len(cfg.Monitor.Conversations), "version", Version)
	<-ctx.Done()

	slog.Info("shutting down, draining deliveries", "timeout", drainTimeout)
	sup.Stop()
	pool.Drain(drainTimeout)
	cancelWork()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTelemetry(flushCtx); err != nil {
		slog.Warn("telemetry shutdown failed", "error", err)
	}
	return nil
}

func openHistory(cfg config.HistoryConfig) (history.Store, error) {
	if cfg.Disabled {
		return history.Noop{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	store, err := history.OpenSQLite(cfg.Path)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func logDailySummary(ctx context.Context, store history.Store, sup *monitor.Supervisor) {
	stats, err := store.Stats(ctx)
	if err != nil {
		slog.Warn("daily summary query failed", "error", err)
		return
	}
	for _, st := range stats {
		slog.Info("daily summary",
			"conversation", st.Conversation,
			"admitted", st.Admitted,
			"delivered", st.Delivered,
			"failed", st.Failed,
		)
	}
	for _, ws := range sup.Stats() {
		slog.Info("watcher state",
			"conversation", ws.Conversation,
			"admitted", ws.Admitted,
			"baseline", ws.BaselineSize,
			"dedup", ws.DedupSize,
			"last_poll", ws.LastPollAt,
		)
	}
}
