package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/eventcore/internal/envelope"
)

type fakeSender struct {
	sent   [][]byte
	closed string
}

func (f *fakeSender) Send(frame []byte) error {
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeSender) Close(reason string) { f.closed = reason }

func TestAdd_EnforcesPerUserCap(t *testing.T) {
	r := New(Limits{MaxPerUser: 2, MaxPerTenant: 1000})

	require.True(t, r.Add(NewConnection("s1", "u1", "t1", TransportSSE, nil, &fakeSender{})))
	require.True(t, r.Add(NewConnection("s2", "u1", "t1", TransportSSE, nil, &fakeSender{})))
	assert.False(t, r.Add(NewConnection("s3", "u1", "t1", TransportSSE, nil, &fakeSender{})))
	assert.Equal(t, 2, r.Len())
}

func TestAdd_EnforcesPerTenantCap(t *testing.T) {
	r := New(Limits{MaxPerUser: 1000, MaxPerTenant: 1})

	require.True(t, r.Add(NewConnection("s1", "u1", "t1", TransportSSE, nil, &fakeSender{})))
	assert.False(t, r.Add(NewConnection("s2", "u2", "t1", TransportSSE, nil, &fakeSender{})))
}

func TestSelectRecipients_TenantGateIsMandatory(t *testing.T) {
	r := New(Limits{MaxPerUser: 10, MaxPerTenant: 1000})
	require.True(t, r.Add(NewConnection("s1", "u1", "t_A", TransportSSE, []string{"all"}, &fakeSender{})))
	require.True(t, r.Add(NewConnection("s2", "u2", "t_B", TransportSSE, []string{"all"}, &fakeSender{})))

	recipients := r.SelectRecipients(&envelope.Envelope{TenantID: "t_A", Event: envelope.EventOrderStatus})
	require.Len(t, recipients, 1)
	assert.Equal(t, "s1", recipients[0].SessionID)
}

func TestSelectRecipients_RequiresMatchingSubscription(t *testing.T) {
	r := New(Limits{MaxPerUser: 10, MaxPerTenant: 1000})
	require.True(t, r.Add(NewConnection("s1", "u1", "t_A", TransportSSE, []string{"profile_updated"}, &fakeSender{})))

	recipients := r.SelectRecipients(&envelope.Envelope{TenantID: "t_A", Event: envelope.EventOrderStatus})
	assert.Empty(t, recipients)

	r.SetSubscriptions("s1", []string{"order_status"})
	recipients = r.SelectRecipients(&envelope.Envelope{TenantID: "t_A", Event: envelope.EventOrderStatus})
	require.Len(t, recipients, 1)
}

func TestRemove_ClearsAllIndexes(t *testing.T) {
	r := New(Limits{MaxPerUser: 10, MaxPerTenant: 1000})
	require.True(t, r.Add(NewConnection("s1", "u1", "t1", TransportSSE, nil, &fakeSender{})))

	r.Remove("s1")

	assert.Zero(t, r.Len())
	assert.Empty(t, r.LookupByTenant("t1"))
	assert.Empty(t, r.LookupByUser("u1"))
}

func TestMarkUnhealthy_RemovesAtThreeMissedHeartbeats(t *testing.T) {
	r := New(Limits{MaxPerUser: 10, MaxPerTenant: 1000})
	conn := NewConnection("s1", "u1", "t1", TransportSSE, nil, &fakeSender{})
	require.True(t, r.Add(conn))

	conn.MissHeartbeat()
	conn.MissHeartbeat()
	assert.Nil(t, r.MarkUnhealthy("s1"))
	assert.Equal(t, 1, r.Len())

	conn.MissHeartbeat()
	removed := r.MarkUnhealthy("s1")
	require.NotNil(t, removed)
	assert.Equal(t, "s1", removed.SessionID)
	assert.Zero(t, r.Len())
}

func TestReapStale_DropsIdleAndUnhealthy(t *testing.T) {
	r := New(Limits{MaxPerUser: 10, MaxPerTenant: 1000})
	fresh := NewConnection("fresh", "u1", "t1", TransportSSE, nil, &fakeSender{})
	stale := NewConnection("stale", "u2", "t1", TransportSSE, nil, &fakeSender{})
	stale.lastActivityAt = time.Now().Add(-time.Hour)

	require.True(t, r.Add(fresh))
	require.True(t, r.Add(stale))

	reaped := r.ReapStale(time.Minute)
	require.Len(t, reaped, 1)
	assert.Equal(t, "stale", reaped[0].SessionID)
	assert.Equal(t, 1, r.Len())
}
