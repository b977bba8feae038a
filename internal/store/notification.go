package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lattani/trackwright/idgen"
	"github.com/lattani/trackwright/internal/money"
)

// Notification event types.
const (
	NotificationStock   = "STOCK"
	NotificationPrice   = "PRICE"
	NotificationRestock = "RESTOCK"
)

// Notification is an event pending (or already) delivered to a user.
type Notification struct {
	ID         string
	UserID     string
	ProductID  string
	VariantID  string // empty when the event is product-level
	Type       string
	Message    string
	OldPrice   money.Amount
	HasOldPrice bool
	NewPrice   money.Amount
	HasNewPrice bool
	OldStatus  string
	NewStatus  string
	CreatedAt  time.Time
	Sent       bool
	SentAt     time.Time
	Read       bool
	Metadata   json.RawMessage
}

// InsertNotification creates a notification row with sent=false, read=false.
func (s *Store) InsertNotification(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = idgen.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Metadata == nil {
		n.Metadata = json.RawMessage("{}")
	}

	var oldPrice, newPrice any
	if n.HasOldPrice {
		oldPrice = n.OldPrice.Decimal()
	}
	if n.HasNewPrice {
		newPrice = n.NewPrice.Decimal()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, product_id, variant_id, type, message,
		                            old_price, new_price, old_status, new_status,
		                            created_at, sent, read, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,false,false,$12::jsonb)`,
		n.ID, n.UserID, n.ProductID, nullStr(n.VariantID), n.Type, n.Message,
		oldPrice, newPrice, nullStr(n.OldStatus), nullStr(n.NewStatus),
		n.CreatedAt, []byte(n.Metadata),
	)
	return err
}

// PendingNotifications returns notifications not yet marked sent, oldest
// first, bounded by limit — consumed by the delivery loop.
func (s *Store) PendingNotifications(ctx context.Context, limit int) ([]*Notification, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, user_id, product_id, variant_id, type, message,
		       old_price, new_price, old_status, new_status, created_at, sent, read, metadata
		FROM notifications
		WHERE sent = false
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationSent flips sent=true and stamps sent_at.
func (s *Store) MarkNotificationSent(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE notifications SET sent = true, sent_at = $1 WHERE id = $2`,
		time.Now().UTC(), id)
	return err
}

func scanNotification(rows *sql.Rows) (*Notification, error) {
	n := &Notification{}
	var variantID, oldStatus, newStatus sql.NullString
	var oldPrice, newPrice sql.NullString
	var metadata []byte

	err := rows.Scan(
		&n.ID, &n.UserID, &n.ProductID, &variantID, &n.Type, &n.Message,
		&oldPrice, &newPrice, &oldStatus, &newStatus, &n.CreatedAt, &n.Sent, &n.Read, &metadata,
	)
	if err != nil {
		return nil, err
	}
	n.VariantID = variantID.String
	n.OldStatus = oldStatus.String
	n.NewStatus = newStatus.String
	n.Metadata = metadata

	currency := "" // notifications don't carry a currency column; callers resolve via variant
	if oldPrice.Valid {
		amt, err := money.Parse(oldPrice.String, currency)
		if err != nil {
			return nil, err
		}
		n.OldPrice = amt
		n.HasOldPrice = true
	}
	if newPrice.Valid {
		amt, err := money.Parse(newPrice.String, currency)
		if err != nil {
			return nil, err
		}
		n.NewPrice = amt
		n.HasNewPrice = true
	}
	return n, nil
}
