package scheduler

import (
	"context"
	"time"

	"github.com/lattani/trackwright/observability"
)

// RunRetentionLoop deletes check_runs, scheduler_logs, and history rows
// older than RetentionDays on the configured cadence, reusing
// observability.Cleanup's allowlisted table/column map (extended to this
// domain's tables — see observability/logger.go's RetentionConfig doc).
func (sch *Scheduler) RunRetentionLoop(ctx context.Context) {
	ticker := time.NewTicker(sch.cfg.RetentionInterval())
	defer ticker.Stop()

	sch.runRetention(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sch.runRetention(ctx)
		}
	}
}

func (sch *Scheduler) runRetention(ctx context.Context) {
	sch.status.setRunning("retention", true)
	defer sch.status.setRunning("retention", false)

	cfg := observability.RetentionConfig{
		CheckRunsDays:     sch.cfg.RetentionDays,
		SchedulerLogsDays: sch.cfg.RetentionDays,
		PriceHistoryDays:  sch.cfg.RetentionDays,
		StockHistoryDays:  sch.cfg.RetentionDays,
		RunVacuumAfter:    sch.cfg.RunVacuumAfter,
	}

	if err := observability.Cleanup(ctx, sch.pool, cfg); err != nil {
		sch.logger.Error("scheduler: retention cleanup", "error", err)
		return
	}
	if sch.metrics != nil {
		if _, err := sch.metrics.Cleanup(ctx, sch.cfg.RetentionDays); err != nil {
			sch.logger.Warn("scheduler: metrics retention cleanup", "error", err)
		}
	}
}
