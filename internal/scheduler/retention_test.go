package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/lattani/trackwright/internal/store"
)

func TestRunRetention_DeletesOldCheckRuns(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := &store.Product{URL: "https://example.com/widget"}
	if err := s.InsertProduct(ctx, p); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	old, err := s.StartCheckRun(ctx, p.ID)
	if err != nil {
		t.Fatalf("start check run: %v", err)
	}
	if _, execErr := s.Pool().ExecContext(ctx,
		`UPDATE check_runs SET started_at = $1 WHERE id = $2`,
		time.Now().UTC().AddDate(0, 0, -100), old.ID); execErr != nil {
		t.Fatalf("backdate check run: %v", execErr)
	}

	recent, err := s.StartCheckRun(ctx, p.ID)
	if err != nil {
		t.Fatalf("start recent check run: %v", err)
	}

	cfg := testConfig()
	cfg.RetentionDays = 90
	sch := New(s, s.Pool(), nil, nil, nil, cfg, nil)
	sch.runRetention(ctx)

	var count int
	row := s.Pool().QueryRowContext(ctx, `SELECT count(*) FROM check_runs WHERE id IN ($1, $2)`, old.ID, recent.ID)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count check runs: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the recent check run to survive retention, got %d rows", count)
	}
}
