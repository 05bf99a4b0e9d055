// Package repository persists quality verdicts and batch run summaries.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/genomic-case-qc/internal/domain"
)

// StoredVerdict is a verdict as recorded for one batch run.
type StoredVerdict struct {
	RunID     string                `json:"run_id"`
	Verdict   domain.QualityVerdict `json:"verdict"`
	CreatedAt time.Time             `json:"created_at"`
}

// Run summarizes one batch run.
type Run struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Accepted   int       `json:"accepted"`
	Rejected   int       `json:"rejected"`
	Errored    int       `json:"errored"`
}

// VerdictRepository handles verdict persistence
type VerdictRepository struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewVerdictRepository creates a new verdict repository
func NewVerdictRepository(db *sql.DB, logger *logrus.Logger) *VerdictRepository {
	return &VerdictRepository{
		db:  db,
		log: logger,
	}
}

// SaveVerdict stores v for runID. Saving the same case twice within a run
// replaces the earlier row.
func (r *VerdictRepository) SaveVerdict(ctx context.Context, runID string, v domain.QualityVerdict) error {
	checksJSON, err := json.Marshal(v.Checks)
	if err != nil {
		return fmt.Errorf("marshaling checks: %w", err)
	}
	diagnosticsJSON, err := json.Marshal(v.Diagnostics)
	if err != nil {
		return fmt.Errorf("marshaling diagnostics: %w", err)
	}
	issues := v.Issues
	if issues == nil {
		issues = []string{}
	}

	query := `
		INSERT INTO verdicts (
			run_id, case_id, accepted, training_eligible, issues, checks, diagnostics
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		ON CONFLICT (run_id, case_id) DO UPDATE SET
			accepted = EXCLUDED.accepted,
			training_eligible = EXCLUDED.training_eligible,
			issues = EXCLUDED.issues,
			checks = EXCLUDED.checks,
			diagnostics = EXCLUDED.diagnostics`

	_, err = r.db.ExecContext(ctx, query,
		runID,
		v.CaseID,
		v.Accepted,
		v.TrainingEligible,
		pq.Array(issues),
		checksJSON,
		diagnosticsJSON,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"run_id":  runID,
			"case_id": v.CaseID,
			"error":   err,
		}).Error("Failed to save verdict")
		return fmt.Errorf("saving verdict for case %s: %w", v.CaseID, err)
	}

	r.log.WithFields(logrus.Fields{
		"run_id":   runID,
		"case_id":  v.CaseID,
		"accepted": v.Accepted,
	}).Debug("Verdict saved")
	return nil
}

// GetVerdicts returns the most recent verdicts of caseID, newest first.
func (r *VerdictRepository) GetVerdicts(ctx context.Context, caseID string, limit int) ([]StoredVerdict, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT run_id, case_id, accepted, training_eligible, issues, checks, diagnostics, created_at
		FROM verdicts
		WHERE case_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, caseID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying verdicts for case %s: %w", caseID, err)
	}
	defer rows.Close()

	var out []StoredVerdict
	for rows.Next() {
		var (
			s                         StoredVerdict
			checksJSON, diagnosticsJS []byte
		)
		if err := rows.Scan(
			&s.RunID,
			&s.Verdict.CaseID,
			&s.Verdict.Accepted,
			&s.Verdict.TrainingEligible,
			pq.Array(&s.Verdict.Issues),
			&checksJSON,
			&diagnosticsJS,
			&s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning verdict: %w", err)
		}
		if err := json.Unmarshal(checksJSON, &s.Verdict.Checks); err != nil {
			return nil, fmt.Errorf("unmarshaling checks: %w", err)
		}
		if err := json.Unmarshal(diagnosticsJS, &s.Verdict.Diagnostics); err != nil {
			return nil, fmt.Errorf("unmarshaling diagnostics: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating verdicts: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("verdicts for case %s: %w", caseID, domain.ErrNotFound)
	}
	return out, nil
}

// SaveRun records the summary of a finished batch run.
func (r *VerdictRepository) SaveRun(ctx context.Context, run Run) error {
	query := `
		INSERT INTO batch_runs (run_id, started_at, finished_at, accepted, rejected, errored)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.db.ExecContext(ctx, query,
		run.RunID, run.StartedAt, run.FinishedAt, run.Accepted, run.Rejected, run.Errored,
	); err != nil {
		return fmt.Errorf("saving run %s: %w", run.RunID, err)
	}

	r.log.WithFields(logrus.Fields{
		"run_id":   run.RunID,
		"accepted": run.Accepted,
		"rejected": run.Rejected,
		"errored":  run.Errored,
	}).Info("Batch run saved")
	return nil
}

// GetRun returns the summary of runID.
func (r *VerdictRepository) GetRun(ctx context.Context, runID string) (*Run, error) {
	query := `
		SELECT run_id, started_at, finished_at, accepted, rejected, errored
		FROM batch_runs
		WHERE run_id = $1`

	var run Run
	err := r.db.QueryRowContext(ctx, query, runID).Scan(
		&run.RunID, &run.StartedAt, &run.FinishedAt, &run.Accepted, &run.Rejected, &run.Errored,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting run %s: %w", runID, err)
	}
	return &run, nil
}
