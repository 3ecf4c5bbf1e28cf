package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/bkd-mataram/padscan/internal/db"
	"github.com/bkd-mataram/padscan/internal/detect"
	"github.com/bkd-mataram/padscan/internal/revenue"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	category   TEXT NOT NULL,
	district   TEXT NOT NULL,
	source     TEXT,
	summary    JSONB,
	status     TEXT NOT NULL DEFAULT 'running',
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS detections (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	detection_id TEXT NOT NULL,
	category     TEXT NOT NULL,
	source       TEXT NOT NULL,
	lat          DOUBLE PRECISION NOT NULL,
	lon          DOUBLE PRECISION NOT NULL,
	area_m2      DOUBLE PRECISION NOT NULL,
	annual_idr   BIGINT NOT NULL,
	payload      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_category ON runs(category);
CREATE INDEX IF NOT EXISTS idx_runs_district ON runs(district);
CREATE INDEX IF NOT EXISTS idx_detections_run_id ON detections(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, category revenue.Category, district string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, category, district, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(category), district, string(RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &Run{
		ID:        id,
		Category:  category,
		District:  district,
		Status:    RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, source detect.Source, summary *revenue.Summary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET source = $1, summary = $2, status = $3, updated_at = $4 WHERE id = $5`,
		string(source), summaryJSON, string(RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, cause string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(RunStatusFailed), cause, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, category, district, source, summary, status, error, created_at, updated_at
		 FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, category, district, source, summary, status, error, created_at, updated_at
	          FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Category != "" {
		query += fmt.Sprintf(` AND category = $%d`, argIdx)
		args = append(args, string(filter.Category))
		argIdx++
	}
	if filter.District != "" {
		query += fmt.Sprintf(` AND district = $%d`, argIdx)
		args = append(args, filter.District)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SaveDetections replaces the run's detections, bulk-inserting via COPY.
func (s *PostgresStore) SaveDetections(ctx context.Context, runID string, set *detect.Set) error {
	all := set.All()
	if len(all) == 0 {
		return nil
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM detections WHERE run_id = $1`, runID); err != nil {
		return eris.Wrapf(err, "postgres: clear detections for run %s", runID)
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(all))
	for _, d := range all {
		row, err := flattenDetection(d)
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			uuid.New().String(), runID, row.DetectionID, string(row.Category), string(row.Source),
			row.Lat, row.Lon, row.AreaM2, row.AnnualIDR, row.Payload, now,
		})
	}

	_, err := db.CopyFrom(ctx, s.pool, "detections", []string{
		"id", "run_id", "detection_id", "category", "source",
		"lat", "lon", "area_m2", "annual_idr", "payload", "created_at",
	}, rows)
	return err
}

func (s *PostgresStore) ListDetections(ctx context.Context, runID string) ([]detect.Detection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT category, payload FROM detections WHERE run_id = $1 ORDER BY detection_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list detections")
	}
	defer rows.Close()

	var out []detect.Detection
	for rows.Next() {
		var category string
		var payload []byte
		if err := rows.Scan(&category, &payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan detection")
		}
		d, err := inflateDetection(revenue.Category(category), payload)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list detections iterate")
}

func scanPgRun(row pgx.Row) (*Run, error) {
	var r Run
	var source, errMsg *string
	var summaryJSON []byte

	if err := row.Scan(&r.ID, &r.Category, &r.District, &source, &summaryJSON, &r.Status, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if source != nil {
		r.Source = detect.Source(*source)
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	if len(summaryJSON) > 0 && string(summaryJSON) != "null" {
		r.Summary = &revenue.Summary{}
		if err := json.Unmarshal(summaryJSON, r.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
	}
	return &r, nil
}
