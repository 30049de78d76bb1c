// Package dlq implements C6: the second-order store for events that
// exceeded the outbox retry budget or failed schema validation, grounded on
// the teacher's markOutboxDeadSQL/markOutboxFailedSQL pair
// (internal/infrastructure/db/postgres/outbox.go) and the email-service's
// app/retry/dlq.go DLQ-with-reason convention, generalized from AMQP
// messages to rows.
package dlq

import "time"

type Status string

const (
	StatusParked       Status = "parked"
	StatusReprocessing Status = "reprocessing"
	StatusResolved     Status = "resolved"
	StatusExpired      Status = "expired"
)

const (
	ReasonSchemaViolation    = "schema_violation"
	ReasonMaxRetriesExceeded = "max_retries_exceeded"
)

// Record is one row of the DLQ table.
type Record struct {
	EventID       int64
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	FailedAt      time.Time
	RetryCount    int
	FailureReason string
	Status        Status
	OperatorID    string
	ResolvedAt    *time.Time
	Attempts      int
}

// Stats aggregates the DLQ for the monitoring surface.
type Stats struct {
	Total           int
	ByAggregateType map[string]int
	ByStatus        map[string]int
	FailureRate     float64
	OldestAge       time.Duration
}

// Alert is an operational threshold breach.
type Alert struct {
	Kind    string
	Message string
}

// Filters constrains List.
type Filters struct {
	AggregateType string
	Status        Status
	OlderThan     time.Duration
	Page          int
	PageSize      int
}

// Page is a paginated browse result.
type Page struct {
	Records  []Record
	Total    int
	Page     int
	PageSize int
}

// BatchResult summarizes a batch reprocess call.
type BatchResult struct {
	Attempted int
	Succeeded int
	Failed    int
}
