package shield

import "database/sql"

// Schema defines the Postgres tables used by shield middlewares:
//   - rate_limits: per-endpoint rate limiting rules (used by RateLimiter)
//   - maintenance: global maintenance mode flag (used by MaintenanceMode)
//
// Apply with Init(db) or execute manually. All statements are idempotent
// (CREATE IF NOT EXISTS).
const Schema = `
CREATE TABLE IF NOT EXISTS rate_limits (
    endpoint       TEXT PRIMARY KEY,
    max_requests   INTEGER NOT NULL DEFAULT 60,
    window_seconds INTEGER NOT NULL DEFAULT 60,
    enabled        BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS maintenance (
    id      INTEGER PRIMARY KEY CHECK (id = 1),
    active  BOOLEAN NOT NULL DEFAULT false,
    message TEXT NOT NULL DEFAULT 'Maintenance en cours, veuillez patienter.'
);

INSERT INTO maintenance (id, active, message)
VALUES (1, false, 'Maintenance en cours, veuillez patienter.')
ON CONFLICT (id) DO NOTHING;
`

// Init creates the shield tables if they don't exist.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
