// Package stream specifies and implements the C2 stream-log usage contract:
// bounded append-only per-topic logs with consumer groups, per-consumer
// pending lists, explicit acknowledgement, and idle-pending claim. The
// teacher's redis wrapper
// (internal/infrastructure/caching/redis/client.go) is generalized here from
// a cache-aside client into a stream client over the same go-redis driver.
package stream

import (
	"context"
	"time"
)

// Message is one entry read off a topic.
type Message struct {
	ID     string
	Fields map[string]string
}

// Log is the consumed contract: append with trim, consumer-group reads,
// acknowledgement, and idle-pending reclaim. Any backing transport meeting
// this contract is interchangeable.
type Log interface {
	// Append writes fields to topic, trimming to maxLen (approximate trim is
	// acceptable; only the bound needs to be enforced, not exact eviction
	// order beyond "oldest evicted first").
	Append(ctx context.Context, topic string, maxLen int64, fields map[string]string) (messageID string, err error)

	// EnsureGroup creates the consumer group if absent. A "group already
	// exists" response is treated as success.
	EnsureGroup(ctx context.Context, topic, group string) error

	// ReadGroup blocks up to blockMs for up to count new messages for this
	// consumer group/consumer name.
	ReadGroup(ctx context.Context, topic, group, consumer string, count int64, blockMs time.Duration) ([]Message, error)

	// Ack acknowledges messageIDs, releasing them from the group's pending list.
	Ack(ctx context.Context, topic, group string, messageIDs ...string) error

	// AutoClaim reassigns pending messages idle longer than minIdle to
	// consumer, starting from cursor (empty string on first call), returning
	// the claimed messages and the next cursor.
	AutoClaim(ctx context.Context, topic, group, consumer string, minIdle time.Duration, count int64, cursor string) (messages []Message, nextCursor string, err error)
}
