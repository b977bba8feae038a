package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lattani/trackwright/idgen"
)

// Product is a logical offering at one canonical URL.
type Product struct {
	ID            string
	URL           string
	CanonicalURL  string // empty if not yet known
	Name          string
	Description   string
	Vendor        string
	MainImageURL  string
	Metadata      json.RawMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FindProductByURL looks up a product by its original URL or canonical URL,
// matching canonical_url first when it's known to be more specific.
func (s *Store) FindProductByURL(ctx context.Context, url, canonicalURL string) (*Product, error) {
	if canonicalURL != "" {
		if p, err := s.findProduct(ctx, "canonical_url = $1", canonicalURL); err != nil || p != nil {
			return p, err
		}
	}
	return s.findProduct(ctx, "url = $1", url)
}

func (s *Store) findProduct(ctx context.Context, where string, arg any) (*Product, error) {
	p := &Product{}
	var canonicalURL sql.NullString
	var metadata []byte

	err := s.DB.QueryRowContext(ctx, `
		SELECT id, url, canonical_url, name, description, vendor, main_image_url,
		       metadata, created_at, updated_at
		FROM products WHERE `+where, arg).Scan(
		&p.ID, &p.URL, &canonicalURL, &p.Name, &p.Description, &p.Vendor,
		&p.MainImageURL, &metadata, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.CanonicalURL = canonicalURL.String
	p.Metadata = metadata
	return p, nil
}

// GetProduct retrieves a product by id.
func (s *Store) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.findProduct(ctx, "id = $1", id)
}

// InsertProduct creates a new product row.
func (s *Store) InsertProduct(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = idgen.New()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Metadata == nil {
		p.Metadata = json.RawMessage("{}")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO products (id, url, canonical_url, name, description, vendor,
		                       main_image_url, metadata, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.URL, nullStr(p.CanonicalURL), p.Name, p.Description, p.Vendor,
		p.MainImageURL, []byte(p.Metadata), p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// UpdateProduct updates a product's mutable fields (name, description,
// vendor, main image, canonical URL once learned, and metadata).
func (s *Store) UpdateProduct(ctx context.Context, p *Product) error {
	p.UpdatedAt = time.Now().UTC()
	if p.Metadata == nil {
		p.Metadata = json.RawMessage("{}")
	}
	_, err := s.DB.ExecContext(ctx, `
		UPDATE products
		SET canonical_url=$1, name=$2, description=$3, vendor=$4,
		    main_image_url=$5, metadata=$6, updated_at=$7
		WHERE id=$8`,
		nullStr(p.CanonicalURL), p.Name, p.Description, p.Vendor,
		p.MainImageURL, []byte(p.Metadata), p.UpdatedAt, p.ID,
	)
	return err
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
