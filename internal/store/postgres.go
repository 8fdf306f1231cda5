package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/db"
	"github.com/sells-group/prospector/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_job":   `INSERT INTO jobs (id, url, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"get_job":      `SELECT id, url, status, result, error, created_at, updated_at FROM jobs WHERE id = $1`,
	"get_analysis": `SELECT key, output, created_at, expires_at FROM analysis_cache WHERE key = $1 AND expires_at > now()`,
	"set_analysis": `INSERT INTO analysis_cache (key, output, created_at, expires_at) VALUES ($1, $2, $3, $4) ON CONFLICT (key) DO UPDATE SET output = EXCLUDED.output, created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at`,
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

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

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

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	url        TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS prospects (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_id     TEXT NOT NULL REFERENCES jobs(id),
	source_url TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS analysis_cache (
	key        TEXT PRIMARY KEY,
	output     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_url ON jobs(url);
CREATE INDEX IF NOT EXISTS idx_prospects_job_id ON prospects(job_id);
CREATE INDEX IF NOT EXISTS idx_analysis_cache_expires_at ON analysis_cache(expires_at);
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

func (s *PostgresStore) CreateJob(ctx context.Context, url string) (*model.ProspectingJob, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, url, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, url, string(model.JobStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}

	return &model.ProspectingJob{
		ID:        id,
		URL:       url,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.ProspectingJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, url, status, result, error, created_at, updated_at FROM jobs WHERE id = $1`,
		jobID,
	)

	var j model.ProspectingJob
	var resultJSON []byte
	var errMsg *string

	err := row.Scan(&j.ID, &j.URL, &j.Status, &resultJSON, &errMsg, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &notFoundError{entity: "job", id: jobID}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", jobID)
	}

	if len(resultJSON) > 0 {
		j.Result = &model.JobResult{}
		if err := json.Unmarshal(resultJSON, j.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal job result")
		}
	}
	if errMsg != nil {
		j.Error = *errMsg
	}
	return &j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.ProspectingJob, error) {
	query := `SELECT id, url, status, result, error, created_at, updated_at FROM jobs WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if filter.URL != "" {
		query += ` AND url = ` + arg(filter.URL)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.ProspectingJob
	for rows.Next() {
		var j model.ProspectingJob
		var resultJSON []byte
		var errMsg *string
		if err := rows.Scan(&j.ID, &j.URL, &j.Status, &resultJSON, &errMsg, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		if len(resultJSON) > 0 {
			j.Result = &model.JobResult{}
			if err := json.Unmarshal(resultJSON, j.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal job result")
			}
		}
		if errMsg != nil {
			j.Error = *errMsg
		}
		jobs = append(jobs, j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

func (s *PostgresStore) transition(ctx context.Context, jobID string, from, to model.JobStatus, set string, args ...any) error {
	// set uses placeholders starting at $5.
	query := `UPDATE jobs SET status = $1, updated_at = $2` + set + ` WHERE id = $3 AND status = $4`
	execArgs := append([]any{string(to), time.Now().UTC(), jobID, string(from)}, args...)

	tag, err := s.pool.Exec(ctx, query, execArgs...)
	if err != nil {
		return eris.Wrapf(err, "postgres: transition job %s to %s", jobID, to)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.GetJob(ctx, jobID); getErr != nil {
			return getErr
		}
		return eris.Errorf("postgres: job %s not in state %s", jobID, from)
	}
	return nil
}

func (s *PostgresStore) ClaimJob(ctx context.Context, jobID string) error {
	return s.transition(ctx, jobID, model.JobStatusQueued, model.JobStatusProcessing, "")
}

func (s *PostgresStore) CompleteJob(ctx context.Context, jobID string, result *model.JobResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal job result")
	}
	return s.transition(ctx, jobID, model.JobStatusProcessing, model.JobStatusComplete,
		", result = $5", resultJSON)
}

func (s *PostgresStore) FailJob(ctx context.Context, jobID string, errMsg string) error {
	return s.transition(ctx, jobID, model.JobStatusProcessing, model.JobStatusFailed,
		", error = $5", errMsg)
}

func (s *PostgresStore) SaveProspects(ctx context.Context, jobID, sourceURL string, prospects []model.ExtractedProspect) ([]model.ProspectRecord, error) {
	if len(prospects) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	records := make([]model.ProspectRecord, 0, len(prospects))
	rows := make([][]any, 0, len(prospects))
	for _, p := range prospects {
		rec := model.ProspectRecord{
			ID:        uuid.New().String(),
			JobID:     jobID,
			SourceURL: sourceURL,
			Prospect:  p,
			CreatedAt: now,
		}
		dataJSON, err := json.Marshal(p)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal prospect")
		}
		rows = append(rows, []any{rec.ID, rec.JobID, rec.SourceURL, dataJSON, rec.CreatedAt})
		records = append(records, rec)
	}

	// COPY is atomic: either the whole batch lands or none of it does.
	n, err := db.CopyFrom(ctx, s.pool, "prospects",
		[]string{"id", "job_id", "source_url", "data", "created_at"}, rows)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: save prospects")
	}
	if n != int64(len(rows)) {
		return nil, eris.Errorf("postgres: save prospects: wrote %d of %d rows", n, len(rows))
	}
	return records, nil
}

func (s *PostgresStore) ListProspects(ctx context.Context, jobID string) ([]model.ProspectRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, source_url, data, created_at FROM prospects WHERE job_id = $1 ORDER BY created_at`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list prospects")
	}
	defer rows.Close()

	var records []model.ProspectRecord
	for rows.Next() {
		var rec model.ProspectRecord
		var dataJSON []byte
		if err := rows.Scan(&rec.ID, &rec.JobID, &rec.SourceURL, &dataJSON, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan prospect")
		}
		if err := json.Unmarshal(dataJSON, &rec.Prospect); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal prospect")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list prospects iterate")
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, key string) (*model.CacheEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT key, output, created_at, expires_at FROM analysis_cache WHERE key = $1 AND expires_at > now()`,
		key,
	)

	var entry model.CacheEntry
	var outputJSON []byte
	err := row.Scan(&entry.Key, &outputJSON, &entry.CreatedAt, &entry.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get analysis")
	}
	if err := json.Unmarshal(outputJSON, &entry.Output); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal analysis")
	}
	return &entry, nil
}

func (s *PostgresStore) SetAnalysis(ctx context.Context, key string, output model.AnalysisReport, ttl time.Duration) error {
	now := time.Now().UTC()
	outputJSON, err := json.Marshal(output)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal analysis")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analysis_cache (key, output, created_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET output = EXCLUDED.output,
		 created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at`,
		key, outputJSON, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set analysis")
}
