package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lattani/trackwright/idgen"
	"github.com/lattani/trackwright/internal/money"
)

// Variant is a purchasable configuration of a product.
type Variant struct {
	ID                 string
	ProductID          string
	SKU                string
	Attributes         json.RawMessage // canonical attribute map, e.g. {"color":"Blue","size":"M"}
	Currency           string
	CurrentPrice       money.Amount
	HasPrice           bool
	CurrentStockStatus string
	IsAvailable        bool
	LastCheckedAt      time.Time
	Metadata           json.RawMessage
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// FindVariantByAttributes looks up the variant matching the attribute set
// (the natural key within a product). Postgres's JSONB storage normalizes
// key order and whitespace internally, so an exact-equality match against a
// differently-ordered-but-equal attribute map still succeeds.
func (s *Store) FindVariantByAttributes(ctx context.Context, productID string, attributes json.RawMessage) (*Variant, error) {
	if len(attributes) == 0 {
		attributes = json.RawMessage("{}")
	}
	return s.scanVariant(ctx, `
		SELECT id, product_id, sku, attributes, currency, current_price,
		       current_stock_status, is_available, last_checked_at, metadata,
		       created_at, updated_at
		FROM variants WHERE product_id = $1 AND attributes = $2::jsonb`,
		productID, []byte(attributes))
}

// GetVariant retrieves a variant by id.
func (s *Store) GetVariant(ctx context.Context, id string) (*Variant, error) {
	return s.scanVariant(ctx, `
		SELECT id, product_id, sku, attributes, currency, current_price,
		       current_stock_status, is_available, last_checked_at, metadata,
		       created_at, updated_at
		FROM variants WHERE id = $1`, id)
}

// ListVariants returns all variants of a product.
func (s *Store) ListVariants(ctx context.Context, productID string) ([]*Variant, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, product_id, sku, attributes, currency, current_price,
		       current_stock_status, is_available, last_checked_at, metadata,
		       created_at, updated_at
		FROM variants WHERE product_id = $1 ORDER BY created_at`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var variants []*Variant
	for rows.Next() {
		v, err := scanVariantRow(rows)
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// CountVariants returns the number of variants currently recorded for a
// product, used to enforce the MAX_VARIANTS cardinality cap before insert.
func (s *Store) CountVariants(ctx context.Context, productID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM variants WHERE product_id = $1`, productID).Scan(&n)
	return n, err
}

// InsertVariant creates a new variant row.
func (s *Store) InsertVariant(ctx context.Context, v *Variant) error {
	if v.ID == "" {
		v.ID = idgen.New()
	}
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	if v.Attributes == nil {
		v.Attributes = json.RawMessage("{}")
	}
	if v.Metadata == nil {
		v.Metadata = json.RawMessage("{}")
	}

	price := variantPriceParam(v)
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO variants (id, product_id, sku, attributes, currency, current_price,
		                       current_stock_status, is_available, last_checked_at,
		                       metadata, created_at, updated_at)
		VALUES ($1,$2,$3,$4::jsonb,$5,$6,$7,$8,$9,$10::jsonb,$11,$12)`,
		v.ID, v.ProductID, nullStr(v.SKU), []byte(v.Attributes), v.Currency, price,
		v.CurrentStockStatus, v.IsAvailable, nullTime(v.LastCheckedAt),
		[]byte(v.Metadata), v.CreatedAt, v.UpdatedAt,
	)
	return err
}

// UpdateVariant updates a variant's current observation fields in place.
func (s *Store) UpdateVariant(ctx context.Context, v *Variant) error {
	v.UpdatedAt = time.Now().UTC()
	if v.Metadata == nil {
		v.Metadata = json.RawMessage("{}")
	}
	price := variantPriceParam(v)
	_, err := s.DB.ExecContext(ctx, `
		UPDATE variants
		SET sku=$1, currency=$2, current_price=$3, current_stock_status=$4,
		    is_available=$5, last_checked_at=$6, metadata=$7::jsonb, updated_at=$8
		WHERE id=$9`,
		nullStr(v.SKU), v.Currency, price, v.CurrentStockStatus, v.IsAvailable,
		nullTime(v.LastCheckedAt), []byte(v.Metadata), v.UpdatedAt, v.ID,
	)
	return err
}

func variantPriceParam(v *Variant) any {
	if !v.HasPrice {
		return nil
	}
	return v.CurrentPrice.Decimal()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanVariant(ctx context.Context, query string, args ...any) (*Variant, error) {
	row := s.DB.QueryRowContext(ctx, query, args...)
	v, err := scanVariantRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func scanVariantRow(row rowScanner) (*Variant, error) {
	v := &Variant{}
	var sku sql.NullString
	var attributes, metadata []byte
	var price sql.NullString
	var lastCheckedAt sql.NullTime

	err := row.Scan(
		&v.ID, &v.ProductID, &sku, &attributes, &v.Currency, &price,
		&v.CurrentStockStatus, &v.IsAvailable, &lastCheckedAt, &metadata,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.SKU = sku.String
	v.Attributes = attributes
	v.Metadata = metadata
	v.LastCheckedAt = lastCheckedAt.Time
	if price.Valid {
		amt, perr := money.Parse(price.String, v.Currency)
		if perr != nil {
			return nil, perr
		}
		v.CurrentPrice = amt
		v.HasPrice = true
	}
	return v, nil
}
