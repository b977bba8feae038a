// Package scheduler drives the worker's background loops: the check sweep
// that re-fetches due products, the notification delivery loop, the
// tracking-gauge refresh, and the retention cleanup. Each loop follows the
// teacher's Config-with-defaults()/ticker/Run(ctx) shape
// (domkeeper/internal/schedule.Scheduler, veille/internal/scheduler.Scheduler),
// generalized from a single poll loop to several independently toggled
// ones sharing one advisory-lock-guarded database.
package scheduler

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/lattani/trackwright/internal/config"
	"github.com/lattani/trackwright/internal/fetch"
	"github.com/lattani/trackwright/internal/notify"
	"github.com/lattani/trackwright/internal/store"
	"github.com/lattani/trackwright/observability"
)

// Scheduler owns every background loop the worker runs once it holds the
// MAIN_SCHEDULER advisory lock.
type Scheduler struct {
	store   *store.Store
	pool    *sql.DB
	fetcher *fetch.Fetcher
	sink    notify.Sink
	metrics *observability.MetricsManager
	cfg     config.SchedulerConfig
	logger  *slog.Logger

	status *Status
}

// New builds a Scheduler. pool must be the same *sql.DB backing s (s.Pool())
// — it's threaded separately because advisory locks need a raw connection
// checkout, outside the Execer abstraction store.Store otherwise presents.
func New(s *store.Store, pool *sql.DB, fetcher *fetch.Fetcher, sink notify.Sink, metrics *observability.MetricsManager, cfg config.SchedulerConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:   s,
		pool:    pool,
		fetcher: fetcher,
		sink:    sink,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
		status:  newStatus(),
	}
}

// Status returns the live status snapshot consumed by the worker's
// /status and /metrics handlers.
func (sch *Scheduler) Status() *Status {
	return sch.status
}

// RunAll starts every loop enabled in cfg as its own goroutine and blocks
// until ctx is cancelled. Callers that want finer-grained control can call
// the individual Run*Loop methods instead.
func (sch *Scheduler) RunAll(ctx context.Context) {
	done := make(chan struct{})
	running := 0

	start := func(name string, fn func(context.Context)) {
		running++
		sch.status.setEnabled(name, true)
		go func() {
			fn(ctx)
			done <- struct{}{}
		}()
	}

	if sch.cfg.EnableScheduler {
		if sch.cfg.EnableCheckScheduler {
			start("check", sch.RunCheckLoop)
		}
		if sch.cfg.EnableEmailScheduler {
			start("email", sch.RunEmailLoop)
		}
		if sch.cfg.EnableTrackingScheduler {
			start("tracking", sch.RunTrackingLoop)
		}
		if sch.cfg.EnableRetentionScheduler {
			start("retention", sch.RunRetentionLoop)
		}
	}

	for i := 0; i < running; i++ {
		<-done
	}
}
