// Package database manages the Postgres pool the verdict repository writes to
// and the embedded schema migrations.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"

	"github.com/genomic-case-qc/internal/domain"
)

// DB wraps the pgxpool.Pool with a database/sql handle over the same pool.
type DB struct {
	Pool *pgxpool.Pool
	sql  *sql.DB
	log  *logrus.Logger
}

// poolConfig turns the configured URL and limits into a pool config.
func poolConfig(config domain.DatabaseConfig) (*pgxpool.Config, error) {
	if config.URL == "" {
		return nil, errors.New("database url is required")
	}
	poolConfig, err := pgxpool.ParseConfig(config.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	}
	return poolConfig, nil
}

// NewConnection creates the pool and checks it with a ping.
func NewConnection(ctx context.Context, config domain.DatabaseConfig, logger *logrus.Logger) (*DB, error) {
	cfg, err := poolConfig(config)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"host":      cfg.ConnConfig.Host,
		"port":      cfg.ConnConfig.Port,
		"database":  cfg.ConnConfig.Database,
		"max_conns": cfg.MaxConns,
	}).Info("Database connection pool established")

	return &DB{
		Pool: pool,
		sql:  stdlib.OpenDBFromPool(pool),
		log:  logger,
	}, nil
}

// SQL returns a database/sql handle backed by the pool.
func (db *DB) SQL() *sql.DB {
	return db.sql
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.sql != nil {
		db.sql.Close()
	}
	if db.Pool != nil {
		db.Pool.Close()
		db.log.Info("Database connection pool closed")
	}
}

// Health checks the database connection health
func (db *DB) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Stats returns connection pool statistics
func (db *DB) Stats() *pgxpool.Stat {
	return db.Pool.Stat()
}
