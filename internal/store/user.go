package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lattani/trackwright/idgen"
)

// User is a minimal reference row joined against by tracked_items and
// notifications. No auth semantics: see SPEC_FULL.md §3.
type User struct {
	ID                   string
	Email                string
	ThresholdPercentage  float64
	CreatedAt            time.Time
}

// GetUser retrieves a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	u := &User{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, email, threshold_percentage, created_at FROM users WHERE id = $1`, id).Scan(
		&u.ID, &u.Email, &u.ThresholdPercentage, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// InsertUser creates a new user row, defaulting ThresholdPercentage to 10
// when unset.
func (s *Store) InsertUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = idgen.New()
	}
	if u.ThresholdPercentage == 0 {
		u.ThresholdPercentage = 10
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO users (id, email, threshold_percentage, created_at)
		VALUES ($1,$2,$3,$4)`,
		u.ID, u.Email, u.ThresholdPercentage, u.CreatedAt,
	)
	return err
}
