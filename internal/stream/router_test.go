package stream

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/eventcore/internal/envelope"
)

// fakeLog is an in-memory Log used by unit tests that don't need a real
// Redis instance, mirroring the teacher's memRepo test fake.
type fakeLog struct {
	appended []appendCall
	nextID   int
}

type appendCall struct {
	topic  string
	maxLen int64
	fields map[string]string
}

func (f *fakeLog) Append(ctx context.Context, topic string, maxLen int64, fields map[string]string) (string, error) {
	f.nextID++
	f.appended = append(f.appended, appendCall{topic: topic, maxLen: maxLen, fields: fields})
	return uuid.NewString(), nil
}

func (f *fakeLog) EnsureGroup(ctx context.Context, topic, group string) error { return nil }

func (f *fakeLog) ReadGroup(ctx context.Context, topic, group, consumer string, count int64, blockMs time.Duration) ([]Message, error) {
	return nil, nil
}

func (f *fakeLog) Ack(ctx context.Context, topic, group string, messageIDs ...string) error {
	return nil
}

func (f *fakeLog) AutoClaim(ctx context.Context, topic, group, consumer string, minIdle time.Duration, count int64, cursor string) ([]Message, string, error) {
	return nil, "", nil
}

func TestTopicFor_KnownAndUnknownAggregates(t *testing.T) {
	cases := map[string]string{
		"order":      "orders",
		"Order":      "orders",
		"USER":       "users",
		"product":    "products",
		"email":      "notifications",
		"billing":    "payments",
		"warehouse":  "inventory",
		"spaceship":  "orders", // unknown -> default
		"":           "orders",
	}
	for agg, want := range cases {
		assert.Equal(t, want, TopicFor(agg, "whatever"), "aggregate=%q", agg)
	}
}

func TestRouter_Publish_RoutesByAggregateType(t *testing.T) {
	log := &fakeLog{}
	topics := map[string]Topic{
		"orders": {Name: "orders", MaxLen: 50_000},
	}
	r := NewRouter(log, topics)

	e := &envelope.Envelope{
		Event:       envelope.EventOrderStatus,
		Version:     "1.0",
		TenantID:    uuid.NewString(),
		AggregateID: uuid.NewString(),
		Status:      "created",
		TS:          time.Now().UTC(),
	}

	id, err := r.Publish(context.Background(), "order", "order_status", e)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.Len(t, log.appended, 1)
	assert.Equal(t, "orders", log.appended[0].topic)
	assert.Equal(t, int64(50_000), log.appended[0].maxLen)
	assert.Equal(t, string(envelope.EventOrderStatus), log.appended[0].fields["event"])
}

func TestRouter_Publish_UnconfiguredTopicFallsBackToDefaultMaxLen(t *testing.T) {
	log := &fakeLog{}
	r := NewRouter(log, map[string]Topic{})

	e := &envelope.Envelope{
		Event:       envelope.EventOrderStatus,
		Version:     "1.0",
		TenantID:    uuid.NewString(),
		AggregateID: uuid.NewString(),
		Status:      "created",
		TS:          time.Now().UTC(),
	}

	_, err := r.Publish(context.Background(), "order", "order_status", e)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), log.appended[0].maxLen)
}
