package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lattani/trackwright/internal/money"
)

// PriceHistoryEntry is one append-only price observation.
type PriceHistoryEntry struct {
	ID         int64
	VariantID  string
	RecordedAt time.Time
	Price      money.Amount
	HasPrice   bool
	Currency   string
	Raw        string
	Metadata   json.RawMessage
}

// StockHistoryEntry is one append-only stock observation.
type StockHistoryEntry struct {
	ID         int64
	VariantID  string
	RecordedAt time.Time
	Status     string
	Raw        string
	Metadata   json.RawMessage
}

// AppendPriceHistory inserts one price observation for a variant.
func (s *Store) AppendPriceHistory(ctx context.Context, e *PriceHistoryEntry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	if e.Metadata == nil {
		e.Metadata = json.RawMessage("{}")
	}
	var price any
	if e.HasPrice {
		price = e.Price.Decimal()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO variant_price_history (variant_id, recorded_at, price, currency, raw, metadata)
		VALUES ($1,$2,$3,$4,$5,$6::jsonb)`,
		e.VariantID, e.RecordedAt, price, e.Currency, e.Raw, []byte(e.Metadata),
	)
	return err
}

// AppendStockHistory inserts one stock observation for a variant.
func (s *Store) AppendStockHistory(ctx context.Context, e *StockHistoryEntry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	if e.Metadata == nil {
		e.Metadata = json.RawMessage("{}")
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO variant_stock_history (variant_id, recorded_at, status, raw, metadata)
		VALUES ($1,$2,$3,$4,$5::jsonb)`,
		e.VariantID, e.RecordedAt, e.Status, e.Raw, []byte(e.Metadata),
	)
	return err
}

// PriceHistory returns the most recent price observations for a variant,
// newest first, bounded by limit.
func (s *Store) PriceHistory(ctx context.Context, variantID string, limit int) ([]*PriceHistoryEntry, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, variant_id, recorded_at, price, currency, raw, metadata
		FROM variant_price_history
		WHERE variant_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2`, variantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PriceHistoryEntry
	for rows.Next() {
		e := &PriceHistoryEntry{}
		var price *string
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.VariantID, &e.RecordedAt, &price, &e.Currency, &e.Raw, &metadata); err != nil {
			return nil, err
		}
		e.Metadata = metadata
		if price != nil {
			amt, perr := money.Parse(*price, e.Currency)
			if perr != nil {
				return nil, perr
			}
			e.Price = amt
			e.HasPrice = true
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// StockHistory returns the most recent stock observations for a variant,
// newest first, bounded by limit.
func (s *Store) StockHistory(ctx context.Context, variantID string, limit int) ([]*StockHistoryEntry, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, variant_id, recorded_at, status, raw, metadata
		FROM variant_stock_history
		WHERE variant_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2`, variantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*StockHistoryEntry
	for rows.Next() {
		e := &StockHistoryEntry{}
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.VariantID, &e.RecordedAt, &e.Status, &e.Raw, &metadata); err != nil {
			return nil, err
		}
		e.Metadata = metadata
		out = append(out, e)
	}
	return out, rows.Err()
}
