package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/prospector/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS prospects (
	id         TEXT PRIMARY KEY,
	job_id     TEXT NOT NULL REFERENCES jobs(id),
	source_url TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS analysis_cache (
	key        TEXT PRIMARY KEY,
	output     TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_url ON jobs(url);
CREATE INDEX IF NOT EXISTS idx_prospects_job_id ON prospects(job_id);
CREATE INDEX IF NOT EXISTS idx_analysis_cache_expires_at ON analysis_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, url string) (*model.ProspectingJob, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, url, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, url, string(model.JobStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}

	return &model.ProspectingJob{
		ID:        id,
		URL:       url,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.ProspectingJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, status, result, error, created_at, updated_at FROM jobs WHERE id = ?`,
		jobID,
	)
	return scanJob(row, jobID)
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.ProspectingJob, error) {
	query := `SELECT id, url, status, result, error, created_at, updated_at FROM jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.URL != "" {
		query += ` AND url = ?`
		args = append(args, filter.URL)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.ProspectingJob
	for rows.Next() {
		j, err := scanJob(rows, "")
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

// transition performs a guarded status update: the row must currently be in
// the `from` state. A terminal job never matches, so terminal states are
// absorbing at the storage layer.
func (s *SQLiteStore) transition(ctx context.Context, jobID string, from, to model.JobStatus, set string, args ...any) error {
	query := `UPDATE jobs SET status = ?, updated_at = ?` + set + ` WHERE id = ? AND status = ?`
	execArgs := append([]any{string(to), time.Now().UTC()}, args...)
	execArgs = append(execArgs, jobID, string(from))

	res, err := s.db.ExecContext(ctx, query, execArgs...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: transition job %s to %s", jobID, to)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		// Either the job doesn't exist or it is not in the expected state.
		if _, getErr := s.GetJob(ctx, jobID); getErr != nil {
			return getErr
		}
		return eris.Errorf("sqlite: job %s not in state %s", jobID, from)
	}
	return nil
}

func (s *SQLiteStore) ClaimJob(ctx context.Context, jobID string) error {
	return s.transition(ctx, jobID, model.JobStatusQueued, model.JobStatusProcessing, "")
}

func (s *SQLiteStore) CompleteJob(ctx context.Context, jobID string, result *model.JobResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal job result")
	}
	return s.transition(ctx, jobID, model.JobStatusProcessing, model.JobStatusComplete,
		", result = ?", string(resultJSON))
}

func (s *SQLiteStore) FailJob(ctx context.Context, jobID string, errMsg string) error {
	return s.transition(ctx, jobID, model.JobStatusProcessing, model.JobStatusFailed,
		", error = ?", errMsg)
}

func (s *SQLiteStore) SaveProspects(ctx context.Context, jobID, sourceURL string, prospects []model.ExtractedProspect) ([]model.ProspectRecord, error) {
	if len(prospects) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin prospect batch")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	records := make([]model.ProspectRecord, 0, len(prospects))
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
			return nil, eris.Wrap(err, "sqlite: marshal prospect")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO prospects (id, job_id, source_url, data, created_at) VALUES (?, ?, ?, ?, ?)`,
			rec.ID, rec.JobID, rec.SourceURL, string(dataJSON), rec.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: insert prospect")
		}
		records = append(records, rec)
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit prospect batch")
	}
	return records, nil
}

func (s *SQLiteStore) ListProspects(ctx context.Context, jobID string) ([]model.ProspectRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, source_url, data, created_at FROM prospects WHERE job_id = ? ORDER BY created_at`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list prospects")
	}
	defer rows.Close()

	var records []model.ProspectRecord
	for rows.Next() {
		var rec model.ProspectRecord
		var dataJSON string
		if err := rows.Scan(&rec.ID, &rec.JobID, &rec.SourceURL, &dataJSON, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prospect")
		}
		if err := json.Unmarshal([]byte(dataJSON), &rec.Prospect); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal prospect")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list prospects iterate")
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, key string) (*model.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, output, created_at, expires_at FROM analysis_cache
		 WHERE key = ? AND expires_at > ?`,
		key, time.Now().UTC(),
	)

	var entry model.CacheEntry
	var outputJSON string
	err := row.Scan(&entry.Key, &outputJSON, &entry.CreatedAt, &entry.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get analysis")
	}
	if err := json.Unmarshal([]byte(outputJSON), &entry.Output); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal analysis")
	}
	return &entry, nil
}

func (s *SQLiteStore) SetAnalysis(ctx context.Context, key string, output model.AnalysisReport, ttl time.Duration) error {
	now := time.Now().UTC()
	outputJSON, err := json.Marshal(output)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal analysis")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis_cache (key, output, created_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET output = excluded.output,
		 created_at = excluded.created_at, expires_at = excluded.expires_at`,
		key, string(outputJSON), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set analysis")
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner, jobID string) (*model.ProspectingJob, error) {
	var j model.ProspectingJob
	var resultJSON, errMsg sql.NullString

	err := row.Scan(&j.ID, &j.URL, &j.Status, &resultJSON, &errMsg, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &notFoundError{entity: "job", id: jobID}
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}

	if resultJSON.Valid {
		j.Result = &model.JobResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), j.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal job result")
		}
	}
	if errMsg.Valid {
		j.Error = errMsg.String
	}
	return &j, nil
}
