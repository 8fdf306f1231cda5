package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetJob_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, url, status, result, error, created_at, updated_at FROM jobs WHERE id = \$1`).
		WithArgs("nonexistent-job").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetJob(context.Background(), "nonexistent-job")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAnalysis_Miss(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT key, output, created_at, expires_at FROM analysis_cache`).
		WithArgs("https://unknown.com").
		WillReturnError(pgx.ErrNoRows)

	entry, err := s.GetAnalysis(context.Background(), "https://unknown.com")
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ClaimJob_WrongState(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE jobs SET status = \$1, updated_at = \$2 WHERE id = \$3 AND status = \$4`).
		WithArgs("processing", pgxmock.AnyArg(), "job-1", "queued").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, url, status, result, error, created_at, updated_at FROM jobs WHERE id = \$1`).
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "url", "status", "result", "error", "created_at", "updated_at"}).
			AddRow("job-1", "https://acme.com", model.JobStatusComplete, []byte(nil), (*string)(nil), now, now))

	err := s.ClaimJob(context.Background(), "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in state")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveProspects_Atomic(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	prospects := []model.ExtractedProspect{
		{CompanyName: "Acme Corp", Emails: []string{"jane@acme.com"}},
		{People: []model.Person{{Name: "Bob"}}},
	}

	mock.ExpectCopyFrom(pgx.Identifier{"prospects"},
		[]string{"id", "job_id", "source_url", "data", "created_at"}).
		WillReturnResult(2)

	records, err := s.SaveProspects(context.Background(), "job-1", "https://acme.com", prospects)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveProspects_ShortWrite(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	prospects := []model.ExtractedProspect{
		{CompanyName: "Acme Corp"},
		{CompanyName: "Globex"},
	}

	mock.ExpectCopyFrom(pgx.Identifier{"prospects"},
		[]string{"id", "job_id", "source_url", "data", "created_at"}).
		WillReturnResult(1)

	_, err := s.SaveProspects(context.Background(), "job-1", "https://acme.com", prospects)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrote 1 of 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}
