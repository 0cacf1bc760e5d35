// Package history records admitted messages and delivery outcomes for
// statistics and operator diagnostics. It is observability only: the dedup
// and baseline filters are in-memory and never consult history, so a corrupt
// or missing database cannot re-admit or suppress messages.
package history

import (
	"context"
	"time"
)

// AdmittedRecord is one message that passed the filter chain.
type AdmittedRecord struct {
	Conversation string
	Sender       string
	Fingerprint  string
	Text         string
	AdmittedAt   time.Time
}

// OutcomeRecord is the terminal result of one delivery task.
type OutcomeRecord struct {
	Conversation string
	Fingerprint  string
	Success      bool
	Attempts     int
	ResultText   string
	FailureKind  string
	CompletedAt  time.Time
}

// ConversationStats is the per-conversation roll-up shown by the daily
// summary and the doctor command.
type ConversationStats struct {
	Conversation string
	Admitted     int
	Delivered    int
	Failed       int
}

// Store persists pipeline history.
type Store interface {
	RecordAdmitted(ctx context.Context, rec AdmittedRecord) error
	RecordOutcome(ctx context.Context, rec OutcomeRecord) error
	Stats(ctx context.Context) ([]ConversationStats, error)
	Close() error
}

// Noop discards everything. Used when history is disabled in config and as
// the default in tests.
type Noop struct{}

func (Noop) RecordAdmitted(context.Context, AdmittedRecord) error { return nil }
func (Noop) RecordOutcome(context.Context, OutcomeRecord) error   { return nil }
func (Noop) Stats(context.Context) ([]ConversationStats, error)   { return nil, nil }
func (Noop) Close() error                                         { return nil }
