package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/arc-self/eventcore/internal/dlq"
	"github.com/arc-self/eventcore/internal/envelope"
	"github.com/arc-self/eventcore/internal/logging"
	"github.com/arc-self/eventcore/internal/metrics"
)

// Publisher is the C5 write path the consumer hands validated envelopes to.
type Publisher interface {
	Publish(ctx context.Context, aggregateType, eventType string, e *envelope.Envelope) (string, error)
}

// Consumer is C4: the polling loop that claims due outbox rows, validates
// and publishes them, and classifies every failure as retryable (bounded
// backoff) or terminal (parked to the DLQ), all within one transaction per
// claimed batch so a row's processed mark and any DLQ insert commit together.
// Unlike the teacher's claim-check worker, which claims a whole batch under
// a short transaction, releases the lock, and publishes out-of-band before a
// second update transaction, this consumer keeps claim, publish, and mark in
// a single transaction per batch: the stricter durability guarantee this
// system promises (no row is ever marked processed without its outcome
// being durable in the same commit) is worth the longer-held row locks at
// this throughput.
type Consumer struct {
	store      *Store
	publisher  Publisher
	backoff    BackoffConfig
	batchSize  int
	maxRetries int
	poll       time.Duration
}

func NewConsumer(store *Store, publisher Publisher, backoff BackoffConfig, batchSize, maxRetries int, poll time.Duration) *Consumer {
	return &Consumer{
		store:      store,
		publisher:  publisher,
		backoff:    backoff,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		poll:       poll,
	}
}

// Run polls until ctx is cancelled. A small startup jitter avoids a
// thundering herd when several instances boot together.
func (c *Consumer) Run(ctx context.Context) {
	time.Sleep(time.Duration(rand.Intn(500)) * time.Millisecond)

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Tick(ctx); err != nil {
				logging.WithCtx(ctx).Error().Err(err).Msg("outbox tick failed")
			}
		}
	}
}

// Tick claims one batch and drives each row through validate-publish-mark
// inside a single transaction that commits once, after the last row. A
// database error or crash mid-batch rolls back the marks of every row in the
// batch, so those rows are claimed again (and may be republished) later.
func (c *Consumer) Tick(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.ObserveOutboxTick(time.Since(start)) }()

	now := time.Now().UTC()

	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	batch, err := c.store.ClaimBatch(ctx, tx, c.batchSize, now)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return tx.Commit()
	}

	for _, rec := range batch {
		if err := c.processOne(ctx, tx, rec, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (c *Consumer) processOne(ctx context.Context, tx *sql.Tx, rec Record, now time.Time) error {
	payloadJSON, err := json.Marshal(rec.Payload)
	if err != nil || rec.Payload == nil {
		return c.park(ctx, tx, rec, now, rec.RetryCount, dlq.ReasonSchemaViolation, "payload is not valid json")
	}

	env, parseErr := envelope.Parse(payloadJSON)
	if parseErr != nil {
		return c.park(ctx, tx, rec, now, rec.RetryCount, dlq.ReasonSchemaViolation, parseErr.Error())
	}

	_, pubErr := c.publisher.Publish(ctx, rec.AggregateType, rec.EventType, env)
	if pubErr == nil {
		metrics.RecordOutboxOutcome("published")
		return c.store.MarkProcessed(ctx, tx, rec.ID, now)
	}

	nextRetry := rec.RetryCount + 1
	if nextRetry >= c.maxRetries {
		return c.park(ctx, tx, rec, now, nextRetry, dlq.ReasonMaxRetriesExceeded, pubErr.Error())
	}

	metrics.RecordOutboxOutcome("retried")
	nextAttemptAt := now.Add(c.backoff.Delay(nextRetry))
	return c.store.MarkRetry(ctx, tx, rec.ID, nextRetry, nextAttemptAt, pubErr.Error())
}

// park parks rec in the DLQ with retryCount total attempts made before
// parking: the pre-increment count for a schema violation (the row never
// attempted a publish), or the post-increment count for a budget exhaustion
// (the final, failed attempt counts per §3.4's "total attempts before
// parking").
func (c *Consumer) park(ctx context.Context, tx *sql.Tx, rec Record, now time.Time, retryCount int, reason, detail string) error {
	metrics.RecordOutboxOutcome("parked")
	metrics.RecordDLQParked(reason)
	if err := dlq.ParkTx(ctx, tx, dlq.Record{
		EventID:       rec.ID,
		AggregateID:   rec.AggregateID,
		AggregateType: rec.AggregateType,
		EventType:     rec.EventType,
		Payload:       rec.Payload,
		FailedAt:      now,
		RetryCount:    retryCount,
		FailureReason: reason + ": " + detail,
	}); err != nil {
		return err
	}
	return c.store.MarkProcessed(ctx, tx, rec.ID, now)
}
