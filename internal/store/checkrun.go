package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lattani/trackwright/idgen"
)

// CheckRun statuses.
const (
	CheckRunSuccess = "success"
	CheckRunFailed  = "failed"
	CheckRunPartial = "partial"
)

// CheckRun is one attempt (in flight or completed) to refresh one product.
type CheckRun struct {
	ID           string
	ProductID    string
	StartedAt    time.Time
	FinishedAt   time.Time // zero while in flight
	Status       string
	ErrorMessage string
	Metadata     json.RawMessage
}

// StartCheckRun creates a CheckRun row at the start of a check attempt.
func (s *Store) StartCheckRun(ctx context.Context, productID string) (*CheckRun, error) {
	cr := &CheckRun{
		ID:        idgen.New(),
		ProductID: productID,
		StartedAt: time.Now().UTC(),
		Metadata:  json.RawMessage("{}"),
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO check_runs (id, product_id, started_at, finished_at, status, error_message, metadata)
		VALUES ($1,$2,$3,NULL,'','',$4::jsonb)`,
		cr.ID, cr.ProductID, cr.StartedAt, []byte(cr.Metadata),
	)
	if err != nil {
		return nil, err
	}
	return cr, nil
}

// FinishCheckRun marks a check run complete with its final status.
func (s *Store) FinishCheckRun(ctx context.Context, cr *CheckRun) error {
	cr.FinishedAt = time.Now().UTC()
	if cr.Metadata == nil {
		cr.Metadata = json.RawMessage("{}")
	}
	_, err := s.DB.ExecContext(ctx, `
		UPDATE check_runs
		SET finished_at=$1, status=$2, error_message=$3, metadata=$4::jsonb
		WHERE id=$5`,
		cr.FinishedAt, cr.Status, cr.ErrorMessage, []byte(cr.Metadata), cr.ID,
	)
	return err
}

// LastFinishedCheckRun returns the most recently finished check run for a
// product, or nil if the product has never completed a check. This is the
// throttle anchor used by the scheduler.
func (s *Store) LastFinishedCheckRun(ctx context.Context, productID string) (*CheckRun, error) {
	cr := &CheckRun{}
	var finishedAt sql.NullTime
	var metadata []byte

	err := s.DB.QueryRowContext(ctx, `
		SELECT id, product_id, started_at, finished_at, status, error_message, metadata
		FROM check_runs
		WHERE product_id = $1 AND finished_at IS NOT NULL
		ORDER BY finished_at DESC
		LIMIT 1`, productID).Scan(
		&cr.ID, &cr.ProductID, &cr.StartedAt, &finishedAt, &cr.Status, &cr.ErrorMessage, &metadata,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cr.FinishedAt = finishedAt.Time
	cr.Metadata = metadata
	return cr, nil
}

// DueProductIDs returns product ids referenced by at least one tracked_item
// whose last finished check run is older than staleness (or has never been
// checked), oldest-checked first, bounded by limit.
func (s *Store) DueProductIDs(ctx context.Context, staleness time.Duration, limit int) ([]string, error) {
	cutoff := time.Now().UTC().Add(-staleness)
	rows, err := s.DB.QueryContext(ctx, `
		SELECT p.id
		FROM products p
		WHERE EXISTS (SELECT 1 FROM tracked_items t WHERE t.product_id = p.id)
		  AND NOT EXISTS (
		      SELECT 1 FROM check_runs c
		      WHERE c.product_id = p.id AND c.finished_at IS NOT NULL AND c.finished_at > $1
		  )
		ORDER BY (
		    SELECT max(c2.finished_at) FROM check_runs c2
		    WHERE c2.product_id = p.id AND c2.finished_at IS NOT NULL
		) ASC NULLS FIRST
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
