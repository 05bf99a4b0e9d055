package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/genomic-case-qc/internal/domain"
	"github.com/genomic-case-qc/internal/logging"
)

func TestPoolConfig(t *testing.T) {
	tests := []struct {
		name     string
		config   domain.DatabaseConfig
		wantErr  bool
		maxConns int32
	}{
		{"missing url", domain.DatabaseConfig{}, true, 0},
		{"bad url", domain.DatabaseConfig{URL: "postgres://%zz"}, true, 0},
		{"limits applied", domain.DatabaseConfig{URL: "postgres://u:p@db:5432/caseqc", MaxConns: 7, ConnMaxLifetime: time.Minute}, false, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := poolConfig(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.maxConns, cfg.MaxConns)
			assert.Equal(t, time.Minute, cfg.MaxConnLifetime)
			assert.Equal(t, "db", cfg.ConnConfig.Host)
			assert.Equal(t, "caseqc", cfg.ConnConfig.Database)
		})
	}
}

func TestDatabaseConnectionAndMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	url, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := logging.Discard()
	migrations, err := NewMigrationRunner(url, logger)
	require.NoError(t, err)
	defer migrations.Close()
	require.NoError(t, migrations.Up(ctx))
	require.NoError(t, migrations.Up(ctx), "second run has nothing to do")

	version, dirty, err := migrations.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	db, err := NewConnection(ctx, domain.DatabaseConfig{URL: url, MaxConns: 4}, logger)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Health(ctx))
	assert.NotZero(t, db.Stats().TotalConns())

	var count int
	require.NoError(t, db.SQL().QueryRowContext(ctx, "SELECT COUNT(*) FROM verdicts").Scan(&count))
	assert.Zero(t, count)

	require.NoError(t, migrations.Down(ctx))
}
