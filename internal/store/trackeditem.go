package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lattani/trackwright/idgen"
)

// TrackedItem is a user's subscription to a product, optionally scoped to a
// single variant.
type TrackedItem struct {
	ID        string
	UserID    string
	ProductID string
	VariantID string // empty means "the whole product"
	CreatedAt time.Time
}

// InsertTrackedItem creates a subscription. Duplicate (user, product,
// variant) combinations are rejected by the schema's unique indexes.
func (s *Store) InsertTrackedItem(ctx context.Context, t *TrackedItem) error {
	if t.ID == "" {
		t.ID = idgen.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO tracked_items (id, user_id, product_id, variant_id, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		t.ID, t.UserID, t.ProductID, nullStr(t.VariantID), t.CreatedAt,
	)
	return err
}

// TrackedItemRecipient pairs a tracked item's owning user with the user's
// notification threshold, as returned by RecipientsFor.
type TrackedItemRecipient struct {
	UserID              string
	Email               string
	ThresholdPercentage float64
	VariantID           string // empty if the tracked_item covers the whole product
}

// RecipientsFor returns every user tracking productID, either at the whole-
// product level or scoped to variantID specifically. Used by ingestion to
// translate a detected diff into pending notifications.
func (s *Store) RecipientsFor(ctx context.Context, productID, variantID string) ([]TrackedItemRecipient, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT u.id, u.email, u.threshold_percentage, t.variant_id
		FROM tracked_items t
		JOIN users u ON u.id = t.user_id
		WHERE t.product_id = $1 AND (t.variant_id IS NULL OR t.variant_id = $2)`,
		productID, nullStr(variantID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrackedItemRecipient
	for rows.Next() {
		var r TrackedItemRecipient
		var vid sql.NullString
		if err := rows.Scan(&r.UserID, &r.Email, &r.ThresholdPercentage, &vid); err != nil {
			return nil, err
		}
		r.VariantID = vid.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// DistinctTrackedProductIDs returns the set of product ids with at least one
// tracked_item, used by the tracking loop to refresh its gauge.
func (s *Store) DistinctTrackedProductIDs(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT DISTINCT product_id FROM tracked_items`)
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
