// Package schedule runs the pipeline's periodic housekeeping jobs on cron
// expressions: the daily statistics summary and any future maintenance
// sweeps. It is deliberately coarse (minute granularity); anything tighter
// runs on its own ticker.
package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
)

// Job is one scheduled maintenance task.
type Job struct {
	Name string
	Expr string // standard 5-field cron expression
	Run  func(context.Context)
}

// Scheduler evaluates job expressions once per minute.
type Scheduler struct {
	gron *gronx.Gronx
	jobs []Job
}

// New creates a scheduler and validates every job expression.
func New(jobs []Job) (*Scheduler, error) {
	g := gronx.New()
	for _, job := range jobs {
		if !g.IsValid(job.Expr) {
			return nil, &InvalidExprError{Job: job.Name, Expr: job.Expr}
		}
	}
	return &Scheduler{gron: g, jobs: jobs}, nil
}

// InvalidExprError reports a malformed cron expression at construction time.
type InvalidExprError struct {
	Job  string
	Expr string
}

func (e *InvalidExprError) Error() string {
	return "schedule: invalid cron expression " + e.Expr + " for job " + e.Job
}

// Run ticks once per minute until ctx is cancelled. Due jobs run inline, one
// after another; maintenance jobs are expected to be quick and must tolerate
// being skipped when the process is down at their scheduled minute.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, job := range s.jobs {
				due, err := s.gron.IsDue(job.Expr, now)
				if err != nil {
					slog.Warn("cron evaluation failed", "job", job.Name, "error", err)
					continue
				}
				if due {
					slog.Debug("running maintenance job", "job", job.Name)
					job.Run(ctx)
				}
			}
		}
	}
}
