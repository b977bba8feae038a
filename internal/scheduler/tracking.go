package scheduler

import (
	"context"
	"time"

	"github.com/lattani/trackwright/observability"
)

// RunTrackingLoop recomputes the set of actively tracked products on the
// configured cadence and records it as a gauge, following the teacher's
// MetricsManager buffered-recording idiom: each tick calls RecordSimple
// rather than writing a gauge directly, keeping this number queryable
// through the same Query path as every other metric. It mutates no
// product/variant rows — a pure observability refresh.
func (sch *Scheduler) RunTrackingLoop(ctx context.Context) {
	ticker := time.NewTicker(sch.cfg.TrackingInterval())
	defer ticker.Stop()

	sch.refreshTrackingGauge(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sch.refreshTrackingGauge(ctx)
		}
	}
}

func (sch *Scheduler) refreshTrackingGauge(ctx context.Context) {
	sch.status.setRunning("tracking", true)
	defer sch.status.setRunning("tracking", false)

	ids, err := sch.store.DistinctTrackedProductIDs(ctx)
	if err != nil {
		sch.logger.Warn("scheduler: refresh tracking gauge", "error", err)
		return
	}
	if sch.metrics != nil {
		sch.metrics.RecordSimple(observability.MetricActiveTrackedProducts, float64(len(ids)), "count")
	}
}
