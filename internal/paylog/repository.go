package paylog

import "context"

// Repository is the port for persisting payment event entries.
// The pipeline depends on this abstraction, not on SQLite directly, so the
// implementation can be swapped for Postgres or an in-memory fake in tests.
type Repository interface {
	// Record appends an entry. The log is append-only; entries are never
	// updated or deleted.
	Record(ctx context.Context, entry *Entry) error
}

// Nop discards every entry. Used where audit logging is not configured;
// callers never need a nil check.
type Nop struct{}

func (Nop) Record(context.Context, *Entry) error { return nil }

var _ Repository = Nop{}
