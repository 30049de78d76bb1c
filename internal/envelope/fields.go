package envelope

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ToStreamFields projects an envelope onto the flat string-keyed,
// string-valued field map a stream log message carries: every field becomes
// a named field; nested maps/arrays are serialized to JSON text under their
// parent key; all values are strings on the wire.
func ToStreamFields(e *Envelope) map[string]string {
	fields := map[string]string{
		"event":        string(e.Event),
		"version":      e.Version,
		"tenant_id":    e.TenantID,
		"aggregate_id": e.AggregateID,
		"status":       e.Status,
		"ts":           e.TS.UTC().Format(time.RFC3339Nano),
	}
	if e.Meta != nil {
		b, _ := json.Marshal(e.Meta)
		fields["meta"] = string(b)
	}
	if e.SourceService != "" {
		fields["source_service"] = e.SourceService
	}
	if e.CorrelationID != "" {
		fields["correlation_id"] = e.CorrelationID
	}
	if e.CausationID != "" {
		fields["causation_id"] = e.CausationID
	}
	if e.UserID != "" {
		fields["user_id"] = e.UserID
	}
	if e.RetryCount != 0 {
		fields["retry_count"] = strconv.Itoa(e.RetryCount)
	}
	if e.ProcessedAt != nil {
		fields["processed_at"] = e.ProcessedAt.UTC().Format(time.RFC3339Nano)
	}
	return fields
}

// FromStreamFields reverses ToStreamFields, attempting a JSON parse on any
// value that begins with '{' or '['. A non-empty expectedKind must equal the
// wire value of the event field; a mismatch is rejected with
// ErrSchemaViolation. An empty expectedKind accepts any kind.
func FromStreamFields(fields map[string]string, expectedKind EventType) (*Envelope, error) {
	e := &Envelope{
		Event:       EventType(fields["event"]),
		Version:     fields["version"],
		TenantID:    fields["tenant_id"],
		AggregateID: fields["aggregate_id"],
		Status:      fields["status"],
	}

	if raw, ok := fields["ts"]; ok && raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed ts field %q: %v", ErrSchemaViolation, raw, err)
		}
		e.TS = ts
	}

	if raw, ok := fields["meta"]; ok && looksLikeJSON(raw) {
		var meta map[string]any
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return nil, fmt.Errorf("%w: malformed meta field: %v", ErrSchemaViolation, err)
		}
		e.Meta = meta
	}

	e.SourceService = fields["source_service"]
	e.CorrelationID = fields["correlation_id"]
	e.CausationID = fields["causation_id"]
	e.UserID = fields["user_id"]
	if raw, ok := fields["retry_count"]; ok && raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed retry_count field %q: %v", ErrSchemaViolation, raw, err)
		}
		e.RetryCount = n
	}
	if raw, ok := fields["processed_at"]; ok && raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed processed_at field %q: %v", ErrSchemaViolation, raw, err)
		}
		e.ProcessedAt = &t
	}

	if expectedKind != "" && e.Event != expectedKind {
		return nil, fmt.Errorf("%w: expected event kind %q, got %q", ErrSchemaViolation, expectedKind, e.Event)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}
