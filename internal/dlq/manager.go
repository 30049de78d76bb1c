package dlq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arc-self/eventcore/internal/metrics"
)

// ErrNotParked is returned when a reprocess or resolve call targets a row
// that is not (or is no longer) parked.
var ErrNotParked = errors.New("dlq: event is not parked")

// Republisher is the callback the manager invokes to retry a parked event
// through the same path the outbox consumer uses (C5). Returning nil means
// the event was accepted by the stream log and the row can resolve.
type Republisher func(ctx context.Context, r Record) error

// Manager implements C6: browse, alert, and manually or batch reprocess
// parked events, grounded on the email-service's app/retry/dlq.go
// park/resolve lifecycle, generalized from AMQP messages to outbox rows.
type Manager struct {
	store       *Store
	republish   Republisher
	alertConfig AlertConfig
}

// AlertConfig mirrors config.DLQ's alert thresholds without importing the
// config package, keeping dlq free of a dependency on process wiring.
type AlertConfig struct {
	TotalThreshold    int
	OldestAgeThresh   time.Duration
	FailureRateThresh float64
}

func NewManager(store *Store, republish Republisher, alertConfig AlertConfig) *Manager {
	return &Manager{store: store, republish: republish, alertConfig: alertConfig}
}

// List returns a page of DLQ records matching f.
func (m *Manager) List(ctx context.Context, f Filters) (Page, error) {
	return m.store.list(ctx, f)
}

// Stats aggregates current DLQ composition for the monitoring surface.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	stats, err := m.store.stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	if total := stats.ByStatus[string(StatusParked)] + stats.ByStatus[string(StatusResolved)]; total > 0 {
		stats.FailureRate = float64(stats.ByStatus[string(StatusParked)]) / float64(total)
	}
	return stats, nil
}

// Alerts evaluates the configured thresholds against current stats and
// returns any that are breached.
func (m *Manager) Alerts(ctx context.Context) ([]Alert, error) {
	stats, err := m.Stats(ctx)
	if err != nil {
		return nil, err
	}

	var alerts []Alert
	if m.alertConfig.TotalThreshold > 0 && stats.Total >= m.alertConfig.TotalThreshold {
		alerts = append(alerts, Alert{
			Kind:    "dlq_total_high",
			Message: fmt.Sprintf("dlq total %d exceeds threshold %d", stats.Total, m.alertConfig.TotalThreshold),
		})
	}
	if m.alertConfig.OldestAgeThresh > 0 && stats.OldestAge >= m.alertConfig.OldestAgeThresh {
		alerts = append(alerts, Alert{
			Kind:    "dlq_oldest_age_high",
			Message: fmt.Sprintf("oldest parked event is %s old, threshold %s", stats.OldestAge, m.alertConfig.OldestAgeThresh),
		})
	}
	if m.alertConfig.FailureRateThresh > 0 && stats.FailureRate >= m.alertConfig.FailureRateThresh {
		alerts = append(alerts, Alert{
			Kind:    "dlq_failure_rate_high",
			Message: fmt.Sprintf("failure rate %.2f exceeds threshold %.2f", stats.FailureRate, m.alertConfig.FailureRateThresh),
		})
	}
	return alerts, nil
}

// Reprocess attempts to replay one parked event. On success the row is
// marked resolved; on failure it is returned to parked with the new
// failure reason and its attempt count incremented.
func (m *Manager) Reprocess(ctx context.Context, eventID int64) error {
	ok, err := m.store.CASToReprocessing(ctx, eventID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotParked
	}

	rec, err := m.store.getByID(ctx, eventID)
	if err != nil {
		return err
	}

	if err := m.republish(ctx, rec); err != nil {
		metrics.RecordDLQReprocess("parked")
		if backErr := m.store.backToParked(ctx, eventID, err.Error()); backErr != nil {
			return backErr
		}
		return err
	}

	resolved, err := m.store.markResolved(ctx, eventID, "system", StatusReprocessing)
	if err != nil {
		return err
	}
	if !resolved {
		return fmt.Errorf("dlq: event %d changed status during reprocess", eventID)
	}
	metrics.RecordDLQReprocess("resolved")
	return nil
}

// BatchReprocess reprocesses up to limit parked events of aggregateType (all
// types if empty), stopping early if limit is reached.
func (m *Manager) BatchReprocess(ctx context.Context, aggregateType string, limit int) (BatchResult, error) {
	page, err := m.store.list(ctx, Filters{AggregateType: aggregateType, Status: StatusParked, Page: 1, PageSize: limit})
	if err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{}
	for _, rec := range page.Records {
		result.Attempted++
		if err := m.Reprocess(ctx, rec.EventID); err != nil {
			result.Failed++
			continue
		}
		result.Succeeded++
	}
	return result, nil
}

// ManualResolve marks a parked event resolved without replaying it, for
// operator-confirmed false positives or events superseded out of band.
func (m *Manager) ManualResolve(ctx context.Context, eventID int64, operatorID string) error {
	ok, err := m.store.markResolved(ctx, eventID, operatorID, StatusParked)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotParked
	}
	return nil
}

// Expire marks resolved/parked rows older than olderThanDays as expired,
// removing them from the active browse surface while keeping the audit row.
func (m *Manager) Expire(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	return m.store.expire(ctx, cutoff)
}
