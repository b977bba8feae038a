package store

// Schema contains the complete DDL for the tracking domain's tables.
const Schema = `
-- Products: one logical offering per canonical URL.
CREATE TABLE IF NOT EXISTS products (
    id             TEXT PRIMARY KEY,
    url            TEXT NOT NULL,
    canonical_url  TEXT,
    name           TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    vendor         TEXT NOT NULL DEFAULT '',
    main_image_url TEXT NOT NULL DEFAULT '',
    metadata       JSONB NOT NULL DEFAULT '{}',
    created_at     TIMESTAMPTZ NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_url ON products(url);
CREATE UNIQUE INDEX IF NOT EXISTS idx_products_canonical_url
    ON products(canonical_url) WHERE canonical_url IS NOT NULL;

-- Variants: purchasable configurations of a product. The attribute map is
-- stored canonicalized (keys sorted) so the unique index below enforces the
-- "no two variants share the same attribute set" invariant by plain JSONB
-- text equality, without a jsonb comparison operator class.
CREATE TABLE IF NOT EXISTS variants (
    id                   TEXT PRIMARY KEY,
    product_id           TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    sku                  TEXT,
    attributes           JSONB NOT NULL DEFAULT '{}',
    currency             TEXT NOT NULL DEFAULT '',
    current_price        NUMERIC(12,2),
    current_stock_status TEXT NOT NULL DEFAULT 'unknown',
    is_available         BOOLEAN NOT NULL DEFAULT false,
    last_checked_at      TIMESTAMPTZ,
    metadata             JSONB NOT NULL DEFAULT '{}',
    created_at           TIMESTAMPTZ NOT NULL,
    updated_at           TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_variants_product ON variants(product_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_variants_natural_key
    ON variants(product_id, attributes);

-- Append-only price history.
CREATE TABLE IF NOT EXISTS variant_price_history (
    id          BIGSERIAL PRIMARY KEY,
    variant_id  TEXT NOT NULL REFERENCES variants(id) ON DELETE CASCADE,
    recorded_at TIMESTAMPTZ NOT NULL,
    price       NUMERIC(12,2),
    currency    TEXT NOT NULL DEFAULT '',
    raw         TEXT NOT NULL DEFAULT '',
    metadata    JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_price_history_variant
    ON variant_price_history(variant_id, recorded_at DESC, id DESC);

-- Append-only stock history.
CREATE TABLE IF NOT EXISTS variant_stock_history (
    id          BIGSERIAL PRIMARY KEY,
    variant_id  TEXT NOT NULL REFERENCES variants(id) ON DELETE CASCADE,
    recorded_at TIMESTAMPTZ NOT NULL,
    status      TEXT NOT NULL DEFAULT 'unknown',
    raw         TEXT NOT NULL DEFAULT '',
    metadata    JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_stock_history_variant
    ON variant_stock_history(variant_id, recorded_at DESC, id DESC);

-- One completed (or in-flight) attempt to refresh one product.
CREATE TABLE IF NOT EXISTS check_runs (
    id            TEXT PRIMARY KEY,
    product_id    TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    started_at    TIMESTAMPTZ NOT NULL,
    finished_at   TIMESTAMPTZ,
    status        TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    metadata      JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_check_runs_product
    ON check_runs(product_id, finished_at DESC);

-- Minimal user reference table. No auth semantics: see SPEC_FULL.md §3.
CREATE TABLE IF NOT EXISTS users (
    id                   TEXT PRIMARY KEY,
    email                TEXT NOT NULL UNIQUE,
    threshold_percentage NUMERIC(5,2) NOT NULL DEFAULT 10,
    created_at           TIMESTAMPTZ NOT NULL
);

-- A user's subscription to a product, optionally scoped to one variant.
CREATE TABLE IF NOT EXISTS tracked_items (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    variant_id TEXT REFERENCES variants(id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tracked_items_product ON tracked_items(product_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_tracked_items_unique_variant
    ON tracked_items(user_id, product_id, variant_id) WHERE variant_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_tracked_items_unique_product
    ON tracked_items(user_id, product_id) WHERE variant_id IS NULL;

-- An event pending (or already) delivered to a user.
CREATE TABLE IF NOT EXISTS notifications (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    product_id  TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    variant_id  TEXT REFERENCES variants(id) ON DELETE CASCADE,
    type        TEXT NOT NULL,
    message     TEXT NOT NULL DEFAULT '',
    old_price   NUMERIC(12,2),
    new_price   NUMERIC(12,2),
    old_status  TEXT,
    new_status  TEXT,
    created_at  TIMESTAMPTZ NOT NULL,
    sent        BOOLEAN NOT NULL DEFAULT false,
    sent_at     TIMESTAMPTZ,
    read        BOOLEAN NOT NULL DEFAULT false,
    metadata    JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_notifications_pending
    ON notifications(sent, created_at) WHERE sent = false;
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id);

-- One scheduler sweep summary.
CREATE TABLE IF NOT EXISTS scheduler_logs (
    id               TEXT PRIMARY KEY,
    run_started_at   TIMESTAMPTZ NOT NULL,
    run_finished_at  TIMESTAMPTZ,
    products_checked INTEGER NOT NULL DEFAULT 0,
    items_checked    INTEGER NOT NULL DEFAULT 0,
    success          BOOLEAN NOT NULL DEFAULT false,
    error            TEXT NOT NULL DEFAULT '',
    metadata         JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_scheduler_logs_time ON scheduler_logs(run_started_at DESC);
`
