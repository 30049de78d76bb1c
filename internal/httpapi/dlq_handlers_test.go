package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/eventcore/internal/dlq"
)

func newTestDLQHandler(t *testing.T) (*DLQHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := dlq.NewStore(db)
	mgr := dlq.NewManager(store, nil, dlq.AlertConfig{
		TotalThreshold:    10,
		OldestAgeThresh:   time.Hour,
		FailureRateThresh: 0.5,
	})
	return NewDLQHandler(mgr), mock, func() { db.Close() }
}

func TestStats_ReturnsAggregatedCounts(t *testing.T) {
	h, mock, closeFn := newTestDLQHandler(t)
	defer closeFn()

	rows := sqlmock.NewRows([]string{"aggregate_type", "status", "count"}).
		AddRow("order", "parked", 3)
	mock.ExpectQuery("SELECT aggregate_type, status, count").WillReturnRows(rows)
	oldest := sqlmock.NewRows([]string{"min"}).AddRow(nil)
	mock.ExpectQuery("SELECT min\\(failed_at\\)").WillReturnRows(oldest)

	req := httptest.NewRequest(http.MethodGet, "/v1/dlq/stats", nil)
	rec := httptest.NewRecorder()

	h.Stats(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"order":3`)
}

func TestBatchReprocess_RejectsNonPositiveLimit(t *testing.T) {
	h, _, closeFn := newTestDLQHandler(t)
	defer closeFn()

	req := httptest.NewRequest(http.MethodPost, "/v1/dlq/reprocess/batch?limit=0", nil)
	rec := httptest.NewRecorder()

	h.BatchReprocess(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_error")
}

func TestResolveEvent_RejectsMissingEventID(t *testing.T) {
	h, _, closeFn := newTestDLQHandler(t)
	defer closeFn()

	req := httptest.NewRequest(http.MethodPost, "/v1/dlq/resolve", strings.NewReader(`{"operator_id":"op-1"}`))
	rec := httptest.NewRecorder()

	h.ResolveEvent(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "event_id is required")
}

func TestResolveEvent_RejectsUnknownFields(t *testing.T) {
	h, _, closeFn := newTestDLQHandler(t)
	defer closeFn()

	req := httptest.NewRequest(http.MethodPost, "/v1/dlq/resolve", strings.NewReader(`{"event_id":1,"bogus":"field"}`))
	rec := httptest.NewRecorder()

	h.ResolveEvent(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
