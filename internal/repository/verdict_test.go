package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/genomic-case-qc/internal/database"
	"github.com/genomic-case-qc/internal/domain"
	"github.com/genomic-case-qc/internal/logging"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var rejected = domain.QualityVerdict{
	CaseID:   "42",
	Accepted: false,
	Issues:   []string{"no image provided"},
	Checks: []domain.CheckResult{
		{Name: "gestalt_presence", Passed: false, Issues: []string{"no image provided"}},
	},
	Diagnostics:      domain.Diagnostics{BenignExcluded: 1},
	TrainingEligible: true,
}

func TestVerdictRepository_SaveVerdict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewVerdictRepository(db, logging.Discard())

	mock.ExpectExec("INSERT INTO verdicts").
		WithArgs("run-1", "42", false, true, `{"no image provided"}`, sqlmock.AnyArg(), []byte(`{"benign_excluded":1,"diagnosis_gene_missing":false}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.SaveVerdict(context.Background(), "run-1", rejected))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerdictRepository_SaveVerdictError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewVerdictRepository(db, logging.Discard())

	mock.ExpectExec("INSERT INTO verdicts").WillReturnError(errors.New("connection reset"))

	err := repo.SaveVerdict(context.Background(), "run-1", domain.QualityVerdict{CaseID: "7"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "saving verdict for case 7")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerdictRepository_GetVerdicts(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewVerdictRepository(db, logging.Discard())
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"run_id", "case_id", "accepted", "training_eligible", "issues", "checks", "diagnostics", "created_at"}).
		AddRow("run-2", "42", true, true, "{}", []byte(`[{"name":"gestalt_presence","passed":true}]`), []byte(`{}`), now).
		AddRow("run-1", "42", false, true, `{"no image provided","2 syndromes have been selected. Only 1 syndrome should be selected."}`, []byte(`[]`), []byte(`{"benign_excluded":3}`), now.Add(-time.Hour))
	mock.ExpectQuery("SELECT (.+) FROM verdicts WHERE case_id = \\$1").
		WithArgs("42", 20).
		WillReturnRows(rows)

	got, err := repo.GetVerdicts(context.Background(), "42", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "run-2", got[0].RunID)
	assert.True(t, got[0].Verdict.Accepted)
	assert.Empty(t, got[0].Verdict.Issues)
	assert.Equal(t, []domain.CheckResult{{Name: "gestalt_presence", Passed: true}}, got[0].Verdict.Checks)

	assert.Equal(t, []string{
		"no image provided",
		"2 syndromes have been selected. Only 1 syndrome should be selected.",
	}, got[1].Verdict.Issues)
	assert.Equal(t, 3, got[1].Verdict.Diagnostics.BenignExcluded)
	assert.Equal(t, now.Add(-time.Hour), got[1].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerdictRepository_GetVerdictsNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewVerdictRepository(db, logging.Discard())

	mock.ExpectQuery("SELECT (.+) FROM verdicts").
		WithArgs("missing", 5).
		WillReturnRows(sqlmock.NewRows([]string{"run_id"}))

	_, err := repo.GetVerdicts(context.Background(), "missing", 5)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerdictRepository_Runs(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewVerdictRepository(db, logging.Discard())
	start := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)
	run := Run{RunID: "run-1", StartedAt: start, FinishedAt: start.Add(time.Minute), Accepted: 3, Rejected: 1}

	mock.ExpectExec("INSERT INTO batch_runs").
		WithArgs("run-1", run.StartedAt, run.FinishedAt, 3, 1, 0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.SaveRun(context.Background(), run))

	mock.ExpectQuery("SELECT (.+) FROM batch_runs").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "started_at", "finished_at", "accepted", "rejected", "errored"}).
			AddRow("run-1", run.StartedAt, run.FinishedAt, 3, 1, 0))
	got, err := repo.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, run, *got)

	mock.ExpectQuery("SELECT (.+) FROM batch_runs").
		WithArgs("run-9").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.GetRun(context.Background(), "run-9")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func setupTestDB(t *testing.T) *database.DB {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("test_"+uuid.NewString()[:8]),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	})

	url, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := logging.Discard()
	migrations, err := database.NewMigrationRunner(url, logger)
	require.NoError(t, err)
	t.Cleanup(func() { migrations.Close() })
	require.NoError(t, migrations.Up(ctx))

	db, err := database.NewConnection(ctx, domain.DatabaseConfig{URL: url}, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestVerdictRepository_Postgres(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVerdictRepository(db.SQL(), logging.Discard())
	ctx := context.Background()
	runID := uuid.NewString()

	require.NoError(t, repo.SaveVerdict(ctx, runID, rejected))
	accepted := rejected
	accepted.Accepted = true
	accepted.Issues = nil
	require.NoError(t, repo.SaveVerdict(ctx, runID, accepted), "same run and case replaces the row")

	got, err := repo.GetVerdicts(ctx, "42", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, runID, got[0].RunID)
	assert.True(t, got[0].Verdict.Accepted)
	assert.Empty(t, got[0].Verdict.Issues)
	assert.Equal(t, rejected.Checks, got[0].Verdict.Checks)

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repo.SaveRun(ctx, Run{RunID: runID, StartedAt: now, FinishedAt: now, Accepted: 1}))
	run, err := repo.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Accepted)
}
