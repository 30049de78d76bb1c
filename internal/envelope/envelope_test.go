package envelope

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnvelope() *Envelope {
	return &Envelope{
		Event:       EventOrderStatus,
		Version:     "1.0",
		TenantID:    uuid.NewString(),
		AggregateID: uuid.NewString(),
		Status:      "created",
		TS:          time.Now().UTC().Truncate(time.Second),
		Meta:        map[string]any{"reason": "card_declined"},
	}
}

func TestParse_RejectsBadVersion(t *testing.T) {
	raw := []byte(`{
		"event":"order_status","version":"abc","tenant_id":"` + uuid.NewString() + `",
		"aggregate_id":"` + uuid.NewString() + `","status":"created","ts":"2025-01-01T00:00:00Z"
	}`)
	_, err := Parse(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestParse_RejectsMissingTimezone(t *testing.T) {
	raw := []byte(`{
		"event":"order_status","version":"1.0","tenant_id":"` + uuid.NewString() + `",
		"aggregate_id":"` + uuid.NewString() + `","status":"created","ts":"2025-01-01T00:00:00"
	}`)
	_, err := Parse(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestParse_RejectsNonUUIDTenant(t *testing.T) {
	raw := []byte(`{
		"event":"order_status","version":"1.0","tenant_id":"not-a-uuid",
		"aggregate_id":"` + uuid.NewString() + `","status":"created","ts":"2025-01-01T00:00:00Z"
	}`)
	_, err := Parse(raw)
	require.Error(t, err)
}

func TestParse_RejectsUnknownStatusForKnownEvent(t *testing.T) {
	e := validEnvelope()
	e.Status = "bogus"
	body, err := Serialize(e)
	require.NoError(t, err)
	_, err = Parse(body)
	assert.Error(t, err)
}

func TestRoundTrip_ParseSerialize(t *testing.T) {
	e := validEnvelope()
	body, err := Serialize(e)
	require.NoError(t, err)

	got, err := Parse(body)
	require.NoError(t, err)

	assert.Equal(t, e.Event, got.Event)
	assert.Equal(t, e.Version, got.Version)
	assert.Equal(t, e.TenantID, got.TenantID)
	assert.Equal(t, e.AggregateID, got.AggregateID)
	assert.Equal(t, e.Status, got.Status)
	assert.True(t, e.TS.Equal(got.TS))
	assert.Equal(t, e.Meta["reason"], got.Meta["reason"])
}

func TestRoundTrip_StreamFields(t *testing.T) {
	e := validEnvelope()
	fields := ToStreamFields(e)

	for _, v := range fields {
		_ = v // every value on the wire is a string by construction
	}

	got, err := FromStreamFields(fields, EventOrderStatus)
	require.NoError(t, err)
	assert.Equal(t, e.Event, got.Event)
	assert.Equal(t, e.TenantID, got.TenantID)
	assert.Equal(t, e.AggregateID, got.AggregateID)
	assert.Equal(t, e.Status, got.Status)
	assert.True(t, e.TS.Equal(got.TS))
	assert.Equal(t, e.Meta["reason"], got.Meta["reason"])
}

func TestFromStreamFields_WrongKindRejected(t *testing.T) {
	e := validEnvelope()
	fields := ToStreamFields(e)
	_, err := FromStreamFields(fields, EventType("profile_updated"))
	assert.Error(t, err)
}

func TestSupportsMajor(t *testing.T) {
	e := validEnvelope()
	e.Version = "1.7"
	assert.True(t, e.SupportsMajor(1))
	assert.False(t, e.SupportsMajor(2))
}

func TestStrip_RemovesEnrichedFields(t *testing.T) {
	e := validEnvelope()
	e.SourceService = "order-service"
	e.CorrelationID = "corr-1"
	e.RetryCount = 3

	stripped := e.Strip()
	assert.Empty(t, stripped.SourceService)
	assert.Empty(t, stripped.CorrelationID)
	assert.Zero(t, stripped.RetryCount)
	// original still intact (Strip has value receiver)
	assert.Equal(t, "order-service", e.SourceService)
}
