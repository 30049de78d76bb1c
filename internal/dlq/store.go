package dlq

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const insertParkedSQL = `
INSERT INTO dlq_events (
  event_id, aggregate_id, aggregate_type, event_type, payload,
  failed_at, retry_count, failure_reason, status
) VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, 'parked')
ON CONFLICT (event_id) DO NOTHING
`

// Store is the C6 data-access layer. Status transitions are compare-and-set
// on the status column so concurrent reprocess attempts on the same row
// serialize without a read-modify-write race.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// ParkTx inserts a parked row using the caller's transaction, so it commits
// atomically with the outbox mark that produced it.
func ParkTx(ctx context.Context, tx *sql.Tx, r Record) error {
	payload, err := json.Marshal(r.Payload)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, insertParkedSQL,
		r.EventID, r.AggregateID, r.AggregateType, r.EventType, string(payload),
		r.FailedAt.UTC(), r.RetryCount, r.FailureReason,
	)
	return err
}

const casToReprocessingSQL = `
UPDATE dlq_events SET status = 'reprocessing' WHERE event_id = $1 AND status = 'parked'
`

// CASToReprocessing transitions parked->reprocessing iff the row is still
// parked. Returns false if another operator already moved it.
func (s *Store) CASToReprocessing(ctx context.Context, eventID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, casToReprocessingSQL, eventID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

const markResolvedSQL = `
UPDATE dlq_events SET status = 'resolved', resolved_at = $2, operator_id = $3
WHERE event_id = $1 AND status = $4
`

func (s *Store) markResolved(ctx context.Context, eventID int64, operatorID string, from Status) (bool, error) {
	res, err := s.db.ExecContext(ctx, markResolvedSQL, eventID, time.Now().UTC(), operatorID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

const backToParkedSQL = `
UPDATE dlq_events
SET status = 'parked', failure_reason = $2, attempts = attempts + 1
WHERE event_id = $1 AND status = 'reprocessing'
`

func (s *Store) backToParked(ctx context.Context, eventID int64, reason string) error {
	_, err := s.db.ExecContext(ctx, backToParkedSQL, eventID, reason)
	return err
}

const getByIDSQL = `
SELECT event_id, aggregate_id, aggregate_type, event_type, payload,
       failed_at, retry_count, failure_reason, status, attempts
FROM dlq_events WHERE event_id = $1
`

func (s *Store) getByID(ctx context.Context, eventID int64) (Record, error) {
	row := s.db.QueryRowContext(ctx, getByIDSQL, eventID)
	var r Record
	var payloadJSON []byte
	var status string
	if err := row.Scan(&r.EventID, &r.AggregateID, &r.AggregateType, &r.EventType,
		&payloadJSON, &r.FailedAt, &r.RetryCount, &r.FailureReason, &status, &r.Attempts); err != nil {
		return Record{}, err
	}
	r.Status = Status(status)
	if err := json.Unmarshal(payloadJSON, &r.Payload); err != nil {
		return Record{}, fmt.Errorf("decode dlq payload: %w", err)
	}
	return r, nil
}

const listSQL = `
SELECT event_id, aggregate_id, aggregate_type, event_type, payload,
       failed_at, retry_count, failure_reason, status, attempts
FROM dlq_events
WHERE ($1 = '' OR aggregate_type = $1)
  AND ($2 = '' OR status = $2)
  AND ($3 <= 0 OR failed_at <= now() - ($3 || ' seconds')::interval)
ORDER BY failed_at DESC
LIMIT $4 OFFSET $5
`

const countSQL = `
SELECT count(*) FROM dlq_events
WHERE ($1 = '' OR aggregate_type = $1)
  AND ($2 = '' OR status = $2)
  AND ($3 <= 0 OR failed_at <= now() - ($3 || ' seconds')::interval)
`

func (s *Store) list(ctx context.Context, f Filters) (Page, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize
	olderThanSeconds := int(f.OlderThan.Seconds())

	rows, err := s.db.QueryContext(ctx, listSQL, f.AggregateType, string(f.Status), olderThanSeconds, pageSize, offset)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var payloadJSON []byte
		var status string
		if err := rows.Scan(&r.EventID, &r.AggregateID, &r.AggregateType, &r.EventType,
			&payloadJSON, &r.FailedAt, &r.RetryCount, &r.FailureReason, &status, &r.Attempts); err != nil {
			return Page{}, err
		}
		r.Status = Status(status)
		_ = json.Unmarshal(payloadJSON, &r.Payload)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, f.AggregateType, string(f.Status), olderThanSeconds).Scan(&total); err != nil {
		return Page{}, err
	}

	return Page{Records: records, Total: total, Page: page, PageSize: pageSize}, nil
}

const statsSQL = `
SELECT aggregate_type, status, count(*)
FROM dlq_events
GROUP BY aggregate_type, status
`

const oldestParkedSQL = `
SELECT min(failed_at) FROM dlq_events WHERE status = 'parked'
`

func (s *Store) stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, statsSQL)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	out := Stats{
		ByAggregateType: map[string]int{},
		ByStatus:        map[string]int{},
	}
	for rows.Next() {
		var aggType, status string
		var n int
		if err := rows.Scan(&aggType, &status, &n); err != nil {
			return Stats{}, err
		}
		out.Total += n
		out.ByAggregateType[aggType] += n
		out.ByStatus[status] += n
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	var oldest sql.NullTime
	if err := s.db.QueryRowContext(ctx, oldestParkedSQL).Scan(&oldest); err != nil {
		return Stats{}, err
	}
	if oldest.Valid {
		out.OldestAge = time.Since(oldest.Time)
	}
	return out, nil
}

const expireSQL = `
UPDATE dlq_events
SET status = 'expired'
WHERE status IN ('resolved', 'parked') AND failed_at < $1
`

func (s *Store) expire(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, expireSQL, olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
