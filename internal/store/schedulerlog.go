package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lattani/trackwright/idgen"
)

// SchedulerLog summarizes one scheduler sweep.
type SchedulerLog struct {
	ID              string
	RunStartedAt    time.Time
	RunFinishedAt   time.Time
	ProductsChecked int
	ItemsChecked    int
	Success         bool
	Error           string
	Metadata        json.RawMessage
}

// InsertSchedulerLog records a completed sweep.
func (s *Store) InsertSchedulerLog(ctx context.Context, l *SchedulerLog) error {
	if l.ID == "" {
		l.ID = idgen.New()
	}
	if l.Metadata == nil {
		l.Metadata = json.RawMessage("{}")
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO scheduler_logs (id, run_started_at, run_finished_at, products_checked,
		                            items_checked, success, error, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8::jsonb)`,
		l.ID, l.RunStartedAt, l.RunFinishedAt, l.ProductsChecked, l.ItemsChecked,
		l.Success, l.Error, []byte(l.Metadata),
	)
	return err
}
