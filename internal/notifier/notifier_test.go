package notifier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/eventcore/internal/envelope"
	"github.com/arc-self/eventcore/internal/registry"
	"github.com/arc-self/eventcore/internal/stream"
)

func zeroLog() zerolog.Logger { return zerolog.Nop() }

type fakeLog struct {
	mu       sync.Mutex
	pending  []stream.Message
	acked    []string
	groupErr error
}

func (f *fakeLog) Append(ctx context.Context, topic string, maxLen int64, fields map[string]string) (string, error) {
	return "", nil
}

func (f *fakeLog) EnsureGroup(ctx context.Context, topic, group string) error { return f.groupErr }

func (f *fakeLog) ReadGroup(ctx context.Context, topic, group, consumer string, count int64, blockMs time.Duration) ([]stream.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		time.Sleep(5 * time.Millisecond)
		return nil, nil
	}
	out := f.pending
	f.pending = nil
	return out, nil
}

func (f *fakeLog) Ack(ctx context.Context, topic, group string, messageIDs ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, messageIDs...)
	return nil
}

func (f *fakeLog) AutoClaim(ctx context.Context, topic, group, consumer string, minIdle time.Duration, count int64, cursor string) ([]stream.Message, string, error) {
	return nil, "0-0", nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent [][]byte
}

func (f *fakeSender) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeSender) Close(reason string) {}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testEnvelopeFields(tenant string) map[string]string {
	e := &envelope.Envelope{
		Event:       envelope.EventOrderStatus,
		Version:     "1.0",
		TenantID:    tenant,
		AggregateID: "11111111-1111-1111-1111-111111111111",
		Status:      "created",
		TS:          time.Now().UTC(),
	}
	return envelope.ToStreamFields(e)
}

func TestProcessOne_DispatchesToMatchingTenantAndAcks(t *testing.T) {
	reg := registry.New(registry.Limits{MaxPerUser: 10, MaxPerTenant: 1000})
	senderA := &fakeSender{}
	senderB := &fakeSender{}
	require.True(t, reg.Add(registry.NewConnection("sA", "uA", "11111111-1111-1111-1111-111111111112", registry.TransportSSE, []string{"all"}, senderA)))
	require.True(t, reg.Add(registry.NewConnection("sB", "uB", "other-tenant", registry.TransportSSE, []string{"all"}, senderB)))

	log := &fakeLog{pending: []stream.Message{{ID: "1-0", Fields: testEnvelopeFields("11111111-1111-1111-1111-111111111112")}}}
	n := New(log, reg, "test-consumer", 10240)

	topic := stream.Topic{Name: "orders", ConsumerGroup: "notifier-orders", BatchCount: 4, BlockMs: 10 * time.Millisecond}
	pool := newWorkerPool(2)
	defer pool.stop()

	n.processOne(context.Background(), topic, pool, log.pendingFirst(), zeroLog())

	assert.Equal(t, 1, senderA.count())
	assert.Equal(t, 0, senderB.count())
	assert.Equal(t, []string{"1-0"}, log.acked)
}

func TestProcessOne_NoRecipientsStillAcks(t *testing.T) {
	reg := registry.New(registry.Limits{MaxPerUser: 10, MaxPerTenant: 1000})
	log := &fakeLog{}
	n := New(log, reg, "test-consumer", 10240)
	topic := stream.Topic{Name: "orders", ConsumerGroup: "notifier-orders", BatchCount: 4}
	pool := newWorkerPool(2)
	defer pool.stop()

	msg := stream.Message{ID: "5-0", Fields: testEnvelopeFields("11111111-1111-1111-1111-111111111112")}
	n.processOne(context.Background(), topic, pool, msg, zeroLog())

	assert.Equal(t, []string{"5-0"}, log.acked)
}

func TestProcessOne_MalformedMessageAcksWithoutDispatch(t *testing.T) {
	reg := registry.New(registry.Limits{MaxPerUser: 10, MaxPerTenant: 1000})
	log := &fakeLog{}
	n := New(log, reg, "test-consumer", 10240)
	topic := stream.Topic{Name: "orders", ConsumerGroup: "notifier-orders", BatchCount: 4}
	pool := newWorkerPool(2)
	defer pool.stop()

	msg := stream.Message{ID: "9-0", Fields: map[string]string{"event": "order_status"}} // missing required fields
	n.processOne(context.Background(), topic, pool, msg, zeroLog())

	assert.Equal(t, []string{"9-0"}, log.acked)
}

func (f *fakeLog) pendingFirst() stream.Message {
	return f.pending[0]
}
