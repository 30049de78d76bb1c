package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const insertOutboxSQL = `
INSERT INTO outbox_events (
  aggregate_id, aggregate_type, event_type, payload, created_at, next_attempt_at
) VALUES ($1, $2, $3, $4::jsonb, $5, $5)
`

// InsertTx writes one outbox row as part of the caller's own business
// transaction: the row insert must be in the same ACID transaction as the
// business state change, so the writer owns the transaction boundary. This
// is exposed here so the core's own tests and any in-repo writer can
// exercise it without duplicating the schema.
func InsertTx(ctx context.Context, tx *sql.Tx, msg NewMessage) error {
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, insertOutboxSQL,
		msg.AggregateID, msg.AggregateType, msg.EventType, string(payload), msg.CreatedAt.UTC(),
	)
	return err
}

// selectClaimSQL selects due, unprocessed rows, ordered by id so
// per-aggregate publish order is preserved, using SKIP LOCKED so concurrent
// poller instances claim disjoint rows and can scale horizontally.
const selectClaimSQL = `
SELECT id, aggregate_id, aggregate_type, event_type, payload, created_at, retry_count
FROM outbox_events
WHERE processed = false AND next_attempt_at <= $1
ORDER BY id ASC
LIMIT $2
FOR UPDATE SKIP LOCKED
`

const markProcessedSQL = `
UPDATE outbox_events SET processed = true, processed_at = $2 WHERE id = $1
`

const markRetrySQL = `
UPDATE outbox_events
SET retry_count = $2, next_attempt_at = $3, last_error = $4
WHERE id = $1
`

// Store is the C4 data-access layer: claim-and-lock plus the two mark
// operations (processed, retry), all driven through a caller-supplied transaction so the
// claim, the publish outcome, and (when parking) the DLQ insert commit
// atomically, guaranteeing a row is never marked processed twice.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// ClaimBatch selects up to limit due, unprocessed rows within tx.
func (s *Store) ClaimBatch(ctx context.Context, tx *sql.Tx, limit int, now time.Time) ([]Record, error) {
	rows, err := tx.QueryContext(ctx, selectClaimSQL, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batch []Record
	for rows.Next() {
		var r Record
		var payloadJSON []byte
		if err := rows.Scan(&r.ID, &r.AggregateID, &r.AggregateType, &r.EventType, &payloadJSON, &r.CreatedAt, &r.RetryCount); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payloadJSON, &r.Payload); err != nil {
			// Malformed JSON in a jsonb column should not happen, but if it
			// does, treat it like any other unparseable payload: the caller
			// classifies it as a schema violation.
			r.Payload = nil
		}
		batch = append(batch, r)
	}
	return batch, rows.Err()
}

func (s *Store) MarkProcessed(ctx context.Context, tx *sql.Tx, id int64, now time.Time) error {
	_, err := tx.ExecContext(ctx, markProcessedSQL, id, now.UTC())
	return err
}

func (s *Store) MarkRetry(ctx context.Context, tx *sql.Tx, id int64, retryCount int, nextAttemptAt time.Time, lastErr string) error {
	_, err := tx.ExecContext(ctx, markRetrySQL, id, retryCount, nextAttemptAt.UTC(), lastErr)
	return err
}
