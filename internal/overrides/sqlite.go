package overrides

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/genomic-case-qc/internal/domain"
	"github.com/genomic-case-qc/internal/logging"
)

// sqliteBackend keeps one row per entry and the version in a single-row meta
// table. Each change is written in one transaction.
type sqliteBackend struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLite opens a SQLite override store, creating the database file and
// schema if they don't exist.
func OpenSQLite(dbPath string, minVersion int, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	b := &sqliteBackend{db: db, dbPath: dbPath}
	ctx := context.Background()

	version, err := b.loadVersion(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	data, err := b.loadEntries(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	if version == nil {
		if len(data) > 0 {
			db.Close()
			return nil, &domain.MissingVersionError{Path: dbPath}
		}
		v := minVersion
		if _, err := db.ExecContext(ctx, "INSERT INTO store_meta (id, version) VALUES (1, ?)", v); err != nil {
			db.Close()
			return nil, fmt.Errorf("initializing store version: %w", err)
		}
		version = &v
	}
	if err := checkVersion(dbPath, version, minVersion); err != nil {
		db.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"path":    dbPath,
		"version": *version,
		"entries": len(data),
	}).Info("Loaded SQLite override store")
	return newStore(dbPath, *version, minVersion, data, b, logger), nil
}

// createSchema creates the database tables.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS store_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS override_entries (
		entry_id TEXT PRIMARY KEY,
		info TEXT NOT NULL DEFAULT '[]',
		correct TEXT NOT NULL DEFAULT '[]',
		wrong TEXT NOT NULL DEFAULT '[]',
		cleaned TEXT NOT NULL DEFAULT '[]',
		correct_gene TEXT,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_override_entries_updated_at ON override_entries(updated_at);
	`

	_, err := db.Exec(schema)
	return err
}

func (b *sqliteBackend) loadVersion(ctx context.Context) (*int, error) {
	var version int
	err := b.db.QueryRowContext(ctx, "SELECT version FROM store_meta WHERE id = 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading store version: %w", err)
	}
	return &version, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanEntry scans a row into an Entry.
func scanEntry(s scanner) (string, *Entry, error) {
	var (
		key                           string
		info, correct, wrong, cleaned string
		gene                          sql.NullString
	)
	if err := s.Scan(&key, &info, &correct, &wrong, &cleaned, &gene); err != nil {
		return "", nil, err
	}

	e := &Entry{}
	for _, col := range []struct {
		raw  string
		dest interface{}
	}{
		{info, &e.Info},
		{correct, &e.Correct},
		{wrong, &e.Wrong},
		{cleaned, &e.Cleaned},
	} {
		if err := unmarshalColumn(col.raw, col.dest); err != nil {
			return "", nil, fmt.Errorf("decoding entry %s: %w", key, err)
		}
	}
	if gene.Valid && gene.String != "" {
		var g domain.Gene
		if err := json.Unmarshal([]byte(gene.String), &g); err != nil {
			return "", nil, fmt.Errorf("decoding gene of entry %s: %w", key, err)
		}
		e.CorrectGene = &g
	}
	return key, e, nil
}

func unmarshalColumn(raw string, dest interface{}) error {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(dest)
}

func (b *sqliteBackend) loadEntries(ctx context.Context) (map[string]*Entry, error) {
	rows, err := b.db.QueryContext(ctx,
		"SELECT entry_id, info, correct, wrong, cleaned, correct_gene FROM override_entries")
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	data := make(map[string]*Entry)
	for rows.Next() {
		key, e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		data[key] = e
	}
	return data, rows.Err()
}

func (b *sqliteBackend) persist(ctx context.Context, version int, data map[string]*Entry, changed []string) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, key := range changed {
		e := data[key]
		cols, err := marshalColumns(e)
		if err != nil {
			return fmt.Errorf("encoding entry %s: %w", key, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO override_entries (entry_id, info, correct, wrong, cleaned, correct_gene, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(entry_id) DO UPDATE SET
				info = excluded.info,
				correct = excluded.correct,
				wrong = excluded.wrong,
				cleaned = excluded.cleaned,
				correct_gene = excluded.correct_gene,
				updated_at = CURRENT_TIMESTAMP`,
			key, cols[0], cols[1], cols[2], cols[3], cols[4],
		)
		if err != nil {
			return fmt.Errorf("saving entry %s: %w", key, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE store_meta SET version = ?, updated_at = CURRENT_TIMESTAMP WHERE id = 1", version,
	); err != nil {
		return fmt.Errorf("saving store version: %w", err)
	}

	return tx.Commit()
}

func marshalColumns(e *Entry) ([5]interface{}, error) {
	var cols [5]interface{}
	lists := []interface{}{nonNilDocs(e.Info), nonNil(e.Correct), nonNil(e.Wrong), nonNil(e.Cleaned)}
	for i, v := range lists {
		raw, err := json.Marshal(v)
		if err != nil {
			return cols, err
		}
		cols[i] = string(raw)
	}
	if e.CorrectGene != nil {
		raw, err := json.Marshal(e.CorrectGene)
		if err != nil {
			return cols, err
		}
		cols[4] = string(raw)
	}
	return cols, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilDocs(d []domain.Document) []domain.Document {
	if d == nil {
		return []domain.Document{}
	}
	return d
}

func (b *sqliteBackend) close() error {
	return b.db.Close()
}
