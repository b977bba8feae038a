package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// runOnCadence invokes fn once immediately, then again every time the
// cadence fires, until ctx is cancelled. When cronExpr is non-empty it's
// parsed with robfig/cron/v3's standard (5-field) format and takes priority
// over interval; a malformed expression falls back to interval rather than
// failing the loop outright, logging the parse error.
func runOnCadence(ctx context.Context, interval time.Duration, cronExpr string, onParseError func(error), fn func(context.Context)) {
	var sched cron.Schedule
	if cronExpr != "" {
		parsed, err := cron.ParseStandard(cronExpr)
		if err != nil {
			onParseError(err)
		} else {
			sched = parsed
		}
	}

	fn(ctx)

	for {
		var wait time.Duration
		if sched != nil {
			wait = time.Until(sched.Next(time.Now()))
		} else {
			wait = interval
		}
		if wait <= 0 {
			wait = time.Second
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			fn(ctx)
		}
	}
}
