// Package sqlite provides a SQLite-backed implementation of paylog.Repository.
//
// WAL mode is enabled on Open so that readers never block writers and vice
// versa — the webhook handler writes while a support query may be reading.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jcmexdev/gameshop/internal/paylog"

	// Register the pure-Go SQLite driver.
	// modernc.org/sqlite avoids CGO, keeping Docker (Alpine) builds simple.
	_ "modernc.org/sqlite"
)

// schema is the DDL executed once on startup. The table is append-only:
// each row is an immutable observation of the payment pipeline.
const schema = `
CREATE TABLE IF NOT EXISTS payment_events (
    -- Surrogate primary key — auto-incremented by SQLite.
    id           INTEGER PRIMARY KEY AUTOINCREMENT,

    -- Gateway charge reference (intent id / wallet order id). Not unique:
    -- one charge produces several events over its lifetime.
    gateway_ref  TEXT NOT NULL DEFAULT '',

    -- Shop order id (idempotency key), when known at event time.
    order_id     TEXT NOT NULL DEFAULT '',

    -- Event classification, e.g. "WEBHOOK_VERIFIED".
    event_type   TEXT NOT NULL,

    -- Short free-form context (webhook event type, error string, amount).
    detail       TEXT NOT NULL DEFAULT '',

    -- W3C trace_id (32 hex chars) from the active OTel span.
    trace_id     TEXT NOT NULL DEFAULT '',

    -- W3C span_id (16 hex chars).
    span_id      TEXT NOT NULL DEFAULT '',

    -- Wall-clock timestamp (RFC3339 stored as TEXT, SQLite idiom).
    recorded_at  TEXT NOT NULL
);

-- The support query: "show me everything for this charge".
CREATE INDEX IF NOT EXISTS idx_payment_events_ref ON payment_events(gateway_ref, recorded_at);

-- The reconciliation query: "show me everything for this order id".
CREATE INDEX IF NOT EXISTS idx_payment_events_order ON payment_events(order_id, recorded_at);
`

// Repository is the SQLite implementation of paylog.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at the given path and applies
// the schema. WAL mode is enabled for concurrent read/write performance.
func Open(path string) (*Repository, error) {
	// The pure-Go driver uses _pragma query parameters to configure connection
	// state. busy_timeout waits for locks instead of failing immediately.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply payment_events schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close releases the database connection. Call it with defer in main().
func (r *Repository) Close() error {
	return r.db.Close()
}

// Record inserts a new payment event. Safe to call concurrently.
func (r *Repository) Record(ctx context.Context, entry *paylog.Entry) error {
	const q = `
		INSERT INTO payment_events
			(gateway_ref, order_id, event_type, detail, trace_id, span_id, recorded_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.GatewayRef,
		entry.OrderID,
		string(entry.Type),
		entry.Detail,
		entry.TraceID,
		entry.SpanID,
		entry.RecordedAt.UTC().Format("2006-01-02T15:04:05.999999999Z"),
	)
	if err != nil {
		return fmt.Errorf("sqlite: record payment event %s/%s: %w", entry.Type, entry.GatewayRef, err)
	}
	return nil
}

// ListByRef returns every event recorded for a gateway reference, oldest
// first. Backs the support/reconciliation lookups.
func (r *Repository) ListByRef(ctx context.Context, gatewayRef string) ([]*paylog.Entry, error) {
	const q = `
		SELECT gateway_ref, order_id, event_type, detail, trace_id, span_id, recorded_at
		FROM   payment_events
		WHERE  gateway_ref = ?
		ORDER  BY recorded_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, q, gatewayRef)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list payment events for %q: %w", gatewayRef, err)
	}
	defer rows.Close()

	var out []*paylog.Entry
	for rows.Next() {
		var entry paylog.Entry
		var recordedAt string
		if err := rows.Scan(
			&entry.GatewayRef,
			&entry.OrderID,
			&entry.Type,
			&entry.Detail,
			&entry.TraceID,
			&entry.SpanID,
			&recordedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan payment event: %w", err)
		}
		entry.RecordedAt, err = parseRFC3339(recordedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, &entry)
	}
	return out, rows.Err()
}

var _ paylog.Repository = (*Repository)(nil)
