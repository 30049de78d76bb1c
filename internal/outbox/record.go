// Package outbox implements C1 (the durable record) and C4 (the polling
// consumer that drains it), grounded on the teacher's
// internal/infrastructure/db/postgres/outbox.go claim-check worker.
package outbox

import "time"

// Record is one row of the outbox table.
type Record struct {
	ID            int64
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	Processed     bool
	ProcessedAt   *time.Time
	RetryCount    int
	NextAttemptAt time.Time
	LastError     string
}

// NewMessage describes a row to be inserted co-transactionally with a
// caller's own business write: the writer owns the transaction boundary,
// and this is what it hands to InsertTx.
type NewMessage struct {
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
}
