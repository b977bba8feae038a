package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lattani/trackwright/internal/extractor"
	"github.com/lattani/trackwright/internal/ingestion"
	"github.com/lattani/trackwright/internal/lock"
	"github.com/lattani/trackwright/internal/store"
	"github.com/lattani/trackwright/observability"
)

// RunCheckLoop runs the product re-check sweep on the configured cadence
// until ctx is cancelled.
func (sch *Scheduler) RunCheckLoop(ctx context.Context) {
	runOnCadence(ctx, sch.cfg.CheckInterval(), sch.cfg.CheckScheduleCron,
		func(err error) { sch.logger.Warn("scheduler: invalid check_schedule_cron, falling back to interval", "error", err) },
		func(ctx context.Context) {
			sch.status.setRunning("check", true)
			defer sch.status.setRunning("check", false)
			sch.sweep(ctx)
		})
}

// sweep performs one check-sweep pass: find due products, fan out to
// checkProductWithLock bounded by CheckConcurrency, and record a
// SchedulerLog summarizing the run.
func (sch *Scheduler) sweep(ctx context.Context) {
	started := time.Now().UTC()
	log := &store.SchedulerLog{RunStartedAt: started}

	// Over-fetch 2x max_products_per_run to tolerate lock contention: some
	// candidates will be skipped because another replica is already
	// checking them, or because they slipped under the throttle window
	// between the query and the lock attempt.
	candidates, err := sch.store.DueProductIDs(ctx, sch.cfg.MinCheckInterval(), sch.cfg.MaxProductsPerRun*2)
	if err != nil {
		log.RunFinishedAt = time.Now().UTC()
		log.Success = false
		log.Error = fmt.Sprintf("query due products: %v", err)
		sch.finishSweep(ctx, log)
		return
	}

	sem := make(chan struct{}, sch.cfg.CheckConcurrency)
	results := make(chan productCheckResult, len(candidates))
	dispatched := 0

	for _, productID := range candidates {
		if dispatched >= sch.cfg.MaxProductsPerRun {
			break
		}
		dispatched++
		sem <- struct{}{}
		go func(productID string) {
			defer func() { <-sem }()
			sch.status.incActiveJobs()
			defer sch.status.decActiveJobs()

			err := sch.checkProductWithLock(ctx, productID)
			results <- productCheckResult{productID: productID, err: err}
		}(productID)
	}

	var checked, itemsChecked, failed int
	for i := 0; i < dispatched; i++ {
		r := <-results
		if r.err == nil {
			checked++
			itemsChecked++
		} else if !errors.Is(r.err, lock.ErrNotAcquired) && !errors.Is(r.err, errThrottled) {
			failed++
			sch.logger.Warn("scheduler: check failed", "product_id", r.productID, "error", r.err)
		}
	}

	log.RunFinishedAt = time.Now().UTC()
	log.ProductsChecked = checked
	log.ItemsChecked = itemsChecked
	log.Success = failed == 0
	if failed > 0 {
		log.Error = fmt.Sprintf("%d of %d products failed", failed, dispatched)
	}

	if sch.metrics != nil {
		sch.metrics.RecordSimple(observability.MetricCheckSweepDurationMs, float64(log.RunFinishedAt.Sub(started).Milliseconds()), "milliseconds")
		sch.metrics.RecordSimple(observability.MetricCheckSweepSkipped, float64(len(candidates)-dispatched), "count")
	}

	sch.finishSweep(ctx, log)
}

type productCheckResult struct {
	productID string
	err       error
}

var errThrottled = errors.New("scheduler: product re-checked within throttle window by another session")

func (sch *Scheduler) finishSweep(ctx context.Context, log *store.SchedulerLog) {
	if err := sch.store.InsertSchedulerLog(ctx, log); err != nil {
		sch.logger.Error("scheduler: record scheduler log", "error", err)
	}
}

// checkProductWithLock acquires the per-product advisory lock, re-verifies
// the throttle window inside the lock, then runs Fetch → Extract → Ingest
// for productID, recording a CheckRun for the attempt. Returns
// lock.ErrNotAcquired or errThrottled when the product was legitimately
// skipped this sweep — neither counts as a sweep failure.
func (sch *Scheduler) checkProductWithLock(ctx context.Context, productID string) error {
	jobID := lock.JobIDFromString(productID)
	lockTimeout := time.Duration(sch.cfg.CheckLockTimeoutSeconds) * time.Second

	return lock.WithLock(ctx, sch.pool, lock.ProductNamespace, jobID, lockTimeout, func(ctx context.Context) error {
		last, err := sch.store.LastFinishedCheckRun(ctx, productID)
		if err != nil {
			return fmt.Errorf("scheduler: last finished check run: %w", err)
		}
		if last != nil && time.Since(last.FinishedAt) < sch.cfg.MinCheckInterval() {
			return errThrottled
		}

		return sch.checkProduct(ctx, productID)
	})
}

func (sch *Scheduler) checkProduct(ctx context.Context, productID string) error {
	cr, err := sch.store.StartCheckRun(ctx, productID)
	if err != nil {
		return fmt.Errorf("scheduler: start check run: %w", err)
	}

	if err := sch.runCheck(ctx, productID, cr); err != nil {
		cr.Status = store.CheckRunFailed
		cr.ErrorMessage = err.Error()
		if finishErr := sch.store.FinishCheckRun(ctx, cr); finishErr != nil {
			sch.logger.Error("scheduler: finish failed check run", "error", finishErr)
		}
		return err
	}

	cr.Status = store.CheckRunSuccess
	if finishErr := sch.store.FinishCheckRun(ctx, cr); finishErr != nil {
		sch.logger.Error("scheduler: finish check run", "error", finishErr)
	}
	return nil
}

func (sch *Scheduler) runCheck(ctx context.Context, productID string, cr *store.CheckRun) error {
	product, err := sch.store.GetProduct(ctx, productID)
	if err != nil {
		return fmt.Errorf("load product: %w", err)
	}
	if product == nil {
		return fmt.Errorf("product %s no longer exists", productID)
	}

	url := product.CanonicalURL
	if url == "" {
		url = product.URL
	}

	res, err := sch.fetcher.Fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if !res.Success {
		return fmt.Errorf("fetch did not produce usable content: %s", res.Error)
	}

	snap := extractor.Extract(ctx, res)

	result, err := ingestion.Ingest(ctx, sch.store, snap)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	cr.Metadata = checkRunMetadata(result)
	return nil
}

func checkRunMetadata(result *ingestion.Result) json.RawMessage {
	meta := map[string]any{
		"variants_checked":     len(result.Variants),
		"notifications_queued": len(result.Notifications),
	}
	if result.ProductLevelPriceUnattributed != nil {
		meta["product_level_price"] = map[string]any{
			"amount":   result.ProductLevelPriceUnattributed.Amount,
			"currency": result.ProductLevelPriceUnattributed.Currency,
		}
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}
