package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lattani/trackwright/idgen"
)

// BusinessEvent represents a domain-level event to record.
type BusinessEvent struct {
	EventType   string
	ServiceName string
	EntityType  string
	EntityID    string
	UserID      string
	Action      string
	Details     string // optional JSON
	Success     bool
}

// EventLogger writes business events and manages retention cleanup.
type EventLogger struct {
	db    *sql.DB
	newID idgen.Generator
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// NewEventLogger creates a logger backed by the given observability database.
func NewEventLogger(db *sql.DB, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:    db,
		newID: idgen.Prefixed("evt_", idgen.Default),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records a business event. The insert runs synchronously; errors
// are logged via slog and not returned, so a failing observability store
// never fails the caller.
func (l *EventLogger) LogEvent(ctx context.Context, event BusinessEvent) {
	eventID := l.newID()
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO business_event_logs (
			event_id, event_type, service_name, entity_type, entity_id,
			user_id, action, details, success, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		eventID, event.EventType, event.ServiceName, event.EntityType, event.EntityID,
		event.UserID, event.Action, event.Details, event.Success, time.Now().UTC())
	if err != nil {
		slog.Error("observability event log failed", "error", err, "event_type", event.EventType)
	}
}

// LogHeartbeat records a lightweight heartbeat row without runtime metrics
// (a simpler alternative to HeartbeatWriter).
func (l *EventLogger) LogHeartbeat(ctx context.Context, workerName string, workerPID int, machineName string) {
	heartbeatID := l.newID()
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO worker_heartbeats (
			heartbeat_id, worker_name, hostname, worker_pid, timestamp
		) VALUES ($1,$2,$3,$4,$5)`,
		heartbeatID, workerName, machineName, workerPID, time.Now().UTC())
	if err != nil {
		slog.Warn("heartbeat log failed", "error", err, "worker", workerName)
	}
}

// RetentionConfig specifies per-table retention in days. Zero means no
// cleanup for that table. The ambient tables (http/event/heartbeat logs) are
// the teacher's own concerns; CheckRuns/SchedulerLogs/*History extend the
// same allowlisted-cleanup idiom to the tracking domain's own append-only
// tables, driven by the worker's retention loop.
type RetentionConfig struct {
	HTTPLogsDays       int
	EventLogsDays      int
	HeartbeatsDays     int
	CheckRunsDays      int
	SchedulerLogsDays  int
	PriceHistoryDays   int
	StockHistoryDays   int
	RunVacuumAfter     bool
}

// Cleanup deletes records exceeding the retention thresholds.
func Cleanup(ctx context.Context, db *sql.DB, cfg RetentionConfig) error {
	now := time.Now().UTC()

	// allowedTables and allowedColumns are whitelists to prevent SQL injection
	// if this pattern is ever refactored to accept external input.
	allowedTables := map[string]bool{
		"http_request_logs":        true,
		"business_event_logs":      true,
		"worker_heartbeats":        true,
		"check_runs":               true,
		"scheduler_logs":           true,
		"variant_price_history":    true,
		"variant_stock_history":    true,
	}
	allowedColumns := map[string]bool{
		"created_at":   true,
		"timestamp":    true,
		"started_at":   true,
		"run_started_at": true,
		"recorded_at":  true,
	}

	type cleanupTarget struct {
		table  string
		column string
		days   int
	}
	targets := []cleanupTarget{
		{"http_request_logs", "created_at", cfg.HTTPLogsDays},
		{"business_event_logs", "created_at", cfg.EventLogsDays},
		{"worker_heartbeats", "timestamp", cfg.HeartbeatsDays},
		{"check_runs", "started_at", cfg.CheckRunsDays},
		{"scheduler_logs", "run_started_at", cfg.SchedulerLogsDays},
		{"variant_price_history", "recorded_at", cfg.PriceHistoryDays},
		{"variant_stock_history", "recorded_at", cfg.StockHistoryDays},
	}

	for _, t := range targets {
		if t.days <= 0 {
			continue
		}
		if !allowedTables[t.table] || !allowedColumns[t.column] {
			return fmt.Errorf("cleanup: invalid table/column %s/%s", t.table, t.column)
		}
		cutoff := now.AddDate(0, 0, -t.days)
		q := fmt.Sprintf("DELETE FROM %s WHERE %s < $1", t.table, t.column)
		if _, err := db.ExecContext(ctx, q, cutoff); err != nil {
			return fmt.Errorf("cleanup %s: %w", t.table, err)
		}
	}

	if cfg.RunVacuumAfter {
		for _, t := range targets {
			if t.days <= 0 {
				continue
			}
			if _, err := db.ExecContext(ctx, fmt.Sprintf("VACUUM (ANALYZE) %s", t.table)); err != nil {
				return fmt.Errorf("vacuum %s: %w", t.table, err)
			}
		}
	}
	return nil
}
