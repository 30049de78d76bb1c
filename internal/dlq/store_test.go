package dlq

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParkTx_InsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO dlq_events").
		WithArgs(int64(7), "agg-1", "order", "order_status", `{"a":1}`,
			sqlmock.AnyArg(), 5, ReasonMaxRetriesExceeded).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), &sql.TxOptions{})
	require.NoError(t, err)

	err = ParkTx(context.Background(), tx, Record{
		EventID:       7,
		AggregateID:   "agg-1",
		AggregateType: "order",
		EventType:     "order_status",
		Payload:       map[string]any{"a": float64(1)},
		FailedAt:      time.Now(),
		RetryCount:    5,
		FailureReason: ReasonMaxRetriesExceeded,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCASToReprocessing_FalseWhenNotParked(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE dlq_events SET status = 'reprocessing'").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewStore(db)
	ok, err := s.CASToReprocessing(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCASToReprocessing_TrueWhenParked(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE dlq_events SET status = 'reprocessing'").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewStore(db)
	ok, err := s.CASToReprocessing(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStats_AggregatesByTypeAndStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"aggregate_type", "status", "count"}).
		AddRow("order", "parked", 3).
		AddRow("order", "resolved", 1).
		AddRow("payment", "parked", 2)
	mock.ExpectQuery("SELECT aggregate_type, status, count").WillReturnRows(rows)

	oldest := sqlmock.NewRows([]string{"min"}).AddRow(time.Now().Add(-2 * time.Hour))
	mock.ExpectQuery("SELECT min\\(failed_at\\)").WillReturnRows(oldest)

	s := NewStore(db)
	stats, err := s.stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 4, stats.ByAggregateType["order"])
	assert.Equal(t, 2, stats.ByAggregateType["payment"])
	assert.Equal(t, 5, stats.ByStatus["parked"])
	assert.True(t, stats.OldestAge >= 2*time.Hour)
}
