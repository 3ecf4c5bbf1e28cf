package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkd-mataram/padscan/internal/detect"
	"github.com/bkd-mataram/padscan/internal/revenue"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgres_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "parking", "AMPENAN", "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), revenue.CategoryParking, "AMPENAN")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET source`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "complete", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "missing", detect.SourceSatellite, &revenue.Summary{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	source := "Satellite Detection"

	mock.ExpectQuery(`SELECT id, category, district, source, summary, status, error, created_at, updated_at`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "category", "district", "source", "summary", "status", "error", "created_at", "updated_at",
		}).AddRow(
			"run-1", "parking", "AMPENAN", &source, []byte(`{"count":3,"total_annual_idr":9000000}`),
			"complete", (*string)(nil), now, now,
		))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, detect.SourceSatellite, run.Source)
	require.NotNil(t, run.Summary)
	assert.Equal(t, 3, run.Summary.Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, category, district`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveDetectionsCopies(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM detections`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"detections"}, []string{
		"id", "run_id", "detection_id", "category", "source",
		"lat", "lon", "area_m2", "annual_idr", "payload", "created_at",
	}).WillReturnResult(1)

	set := detect.NewSet([]detect.Detection{
		&detect.Parking{
			Base: detect.Base{ID: "PKR-001", Source: detect.SourceSatellite},
			Type: "umum",
		},
	})
	require.NoError(t, s.SaveDetections(context.Background(), "run-1", set))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveDetectionsEmptySet(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	require.NoError(t, s.SaveDetections(context.Background(), "run-1", detect.NewSet()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListDetections(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT category, payload FROM detections`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"category", "payload"}).
			AddRow("land_change", []byte(`{"id":"LND-001","from_class":"crops","to_class":"built"}`)))

	got, err := s.ListDetections(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)

	lnd, ok := got[0].(*detect.LandChange)
	require.True(t, ok)
	assert.Equal(t, "crops", lnd.FromClass)
	assert.NoError(t, mock.ExpectationsWereMet())
}
