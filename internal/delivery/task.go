// Package delivery submits admitted messages to the ledger service on a
// bounded worker pool, with authentication retry, bounded backoff on
// transient failures, and reply dispatch on success.
package delivery

import (
	"time"

	"github.com/google/uuid"

	"github.com/wxledgerhq/wxledger/internal/monitor"
)

// Task is one admitted message on its way to the ledger service. Owned by
// the pool until terminal; a task is created at most once per admitted
// fingerprint, so retries always re-attempt the same logical submission.
type Task struct {
	ID        uuid.UUID
	Msg       monitor.AdmittedMessage
	Attempt   int
	CreatedAt time.Time
}

func newTask(msg monitor.AdmittedMessage) Task {
	return Task{
		ID:        uuid.New(),
		Msg:       msg,
		CreatedAt: time.Now(),
	}
}
