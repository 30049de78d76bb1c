// Package envelope implements the versioned event wire contract: parse,
// serialize, and the stream-field projection used to hand events to C2.
package envelope

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the semantic class of an event envelope.
type EventType string

const (
	EventOrderStatus     EventType = "order_status"
	EventProfileUpdated  EventType = "profile_updated"
	EventProductUpdated  EventType = "product_updated"
	EventPaymentUpdated  EventType = "payment_updated"
	EventInventoryUpdate EventType = "inventory_update"
)

var versionPattern = regexp.MustCompile(`^[0-9]+\.[0-9]+$`)

// Envelope is the external wire contract.
type Envelope struct {
	Event      EventType      `json:"event"`
	Version    string         `json:"version"`
	TenantID   string         `json:"tenant_id"`
	AggregateID string        `json:"aggregate_id"`
	Status     string         `json:"status"`
	TS         time.Time      `json:"ts"`
	Meta       map[string]any `json:"meta,omitempty"`

	// Enriched fields: internal-only, stripped before external publication
	// by Strip().
	SourceService string `json:"source_service,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	CausationID   string `json:"causation_id,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	RetryCount    int    `json:"retry_count,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}

// Validate enforces the envelope's field invariants. It does not mutate the
// receiver.
func (e *Envelope) Validate() error {
	if e.Event == "" {
		return fmt.Errorf("%w: missing event", ErrSchemaViolation)
	}
	if !versionPattern.MatchString(e.Version) {
		return fmt.Errorf("%w: version %q does not match %s", ErrSchemaViolation, e.Version, versionPattern.String())
	}
	if _, err := uuid.Parse(e.TenantID); err != nil {
		return fmt.Errorf("%w: tenant_id is not a uuid: %v", ErrSchemaViolation, err)
	}
	if _, err := uuid.Parse(e.AggregateID); err != nil {
		return fmt.Errorf("%w: aggregate_id is not a uuid: %v", ErrSchemaViolation, err)
	}
	if e.Status == "" {
		return fmt.Errorf("%w: missing status", ErrSchemaViolation)
	}
	if !validStatus(e.Event, e.Status) {
		return fmt.Errorf("%w: status %q is not valid for event %q", ErrSchemaViolation, e.Status, e.Event)
	}
	if e.TS.IsZero() {
		return fmt.Errorf("%w: missing ts", ErrSchemaViolation)
	}
	return nil
}

// MajorVersion returns the integral major component of Version.
func (e *Envelope) MajorVersion() (int, error) {
	parts := strings.SplitN(e.Version, ".", 2)
	var major int
	if _, err := fmt.Sscanf(parts[0], "%d", &major); err != nil {
		return 0, fmt.Errorf("%w: malformed version %q", ErrSchemaViolation, e.Version)
	}
	return major, nil
}

// SupportsMajor reports whether this envelope's major version matches the
// compiled-for major. A consumer must reject a higher major and may accept
// any minor.
func (e *Envelope) SupportsMajor(compiledMajor int) bool {
	major, err := e.MajorVersion()
	if err != nil {
		return false
	}
	return major == compiledMajor
}

// Strip removes enriched, internal-only fields before external publication.
func (e Envelope) Strip() Envelope {
	e.SourceService = ""
	e.CorrelationID = ""
	e.CausationID = ""
	e.UserID = ""
	e.RetryCount = 0
	e.ProcessedAt = nil
	return e
}

// Parse decodes and validates a wire-format event envelope.
func Parse(data []byte) (*Envelope, error) {
	var raw struct {
		TS string `json:"ts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if raw.TS != "" && !hasTZOffset(raw.TS) {
		return nil, fmt.Errorf("%w: ts must carry a timezone offset", ErrSchemaViolation)
	}

	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

func hasTZOffset(ts string) bool {
	return strings.HasSuffix(ts, "Z") || tzOffsetPattern.MatchString(ts)
}

var tzOffsetPattern = regexp.MustCompile(`[+-]\d{2}:\d{2}$`)

// Serialize encodes an envelope to its canonical wire form: UTC timestamp,
// lowercase UUIDs.
func Serialize(e *Envelope) ([]byte, error) {
	canon := *e
	canon.TenantID = strings.ToLower(canon.TenantID)
	canon.AggregateID = strings.ToLower(canon.AggregateID)
	canon.TS = canon.TS.UTC()
	return json.Marshal(canon)
}

func validStatus(kind EventType, status string) bool {
	statuses, ok := statusesByEvent[kind]
	if !ok {
		// Unrecognized event types carry free-form status; schema only
		// constrains the well-known kinds enumerated in statusesByEvent.
		return status != ""
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

var statusesByEvent = map[EventType][]string{
	EventOrderStatus: {"created", "confirmed", "failed"},
}
