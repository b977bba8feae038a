package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunOnCadence_FiresImmediatelyThenStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int64
	done := make(chan struct{})
	go func() {
		runOnCadence(ctx, 10*time.Millisecond, "", func(error) {}, func(context.Context) {
			atomic.AddInt64(&calls, 1)
		})
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	if atomic.LoadInt64(&calls) != 1 {
		t.Fatalf("expected one immediate call, got %d", calls)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runOnCadence did not return after cancellation")
	}
}

func TestRunOnCadence_FallsBackToIntervalOnBadCron(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var parseErrors int64
	done := make(chan struct{})
	go func() {
		runOnCadence(ctx, 5*time.Millisecond, "not a cron expression", func(error) {
			atomic.AddInt64(&parseErrors, 1)
		}, func(context.Context) {})
		close(done)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()
	<-done

	if atomic.LoadInt64(&parseErrors) != 1 {
		t.Fatalf("expected exactly one parse-error callback, got %d", parseErrors)
	}
}
