// Package pipeline runs batches of cases through loading, variant
// resolution, the quality gate and the optional exports.
package pipeline

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/genomic-case-qc/internal/adapter"
	"github.com/genomic-case-qc/internal/documents"
	"github.com/genomic-case-qc/internal/domain"
	"github.com/genomic-case-qc/internal/metrics"
	"github.com/genomic-case-qc/internal/quality"
	"github.com/genomic-case-qc/pkg/external"
)

// VerdictSink persists verdicts. The Postgres verdict repository implements it.
type VerdictSink interface {
	SaveVerdict(ctx context.Context, runID string, verdict domain.QualityVerdict) error
}

// Projector converts resolved variants into variant call rows.
type Projector interface {
	Project(ctx context.Context, req external.VCFRequest) (*external.VCFResult, error)
}

// Outcome is the result for one case: either a verdict or an error.
type Outcome struct {
	CaseID      string                 `json:"case_id"`
	Verdict     *domain.QualityVerdict `json:"verdict,omitempty"`
	Variants    []string               `json:"variants,omitempty"`
	VCFFailures []string               `json:"vcf_failures,omitempty"`
	ErrorCode   string                 `json:"error_code,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Duration    time.Duration          `json:"duration"`
}

// BatchReport collects the outcomes of one run keyed by case id.
type BatchReport struct {
	RunID      string              `json:"run_id"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Outcomes   map[string]*Outcome `json:"outcomes"`
}

// Accepted returns the sorted ids of accepted cases.
func (r *BatchReport) Accepted() []string {
	return r.filter(func(o *Outcome) bool { return o.Verdict != nil && o.Verdict.Accepted })
}

// Rejected returns the sorted ids of rejected cases.
func (r *BatchReport) Rejected() []string {
	return r.filter(func(o *Outcome) bool { return o.Verdict != nil && !o.Verdict.Accepted })
}

// Errored returns the sorted ids of cases that produced no verdict.
func (r *BatchReport) Errored() []string {
	return r.filter(func(o *Outcome) bool { return o.Verdict == nil })
}

func (r *BatchReport) filter(keep func(*Outcome) bool) []string {
	ids := []string{}
	for id, o := range r.Outcomes {
		if keep(o) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Config wires a Runner. Mapper, Projector, Sink and Metrics are optional.
type Config struct {
	Source      documents.Source
	Loader      *adapter.Loader
	Shape       adapter.Shape
	CasesKind   string
	EntriesKind string

	Resolver quality.EntryResolver
	Mapper   quality.GeneMapper
	Gate     *quality.Gate

	Workers   int
	ExportDir string
	Projector Projector
	Sink      VerdictSink
	Metrics   *metrics.Metrics
}

// Runner processes batches of cases. Cases are independent; the override
// store behind the resolver is the only shared state.
type Runner struct {
	cfg Config
	log *logrus.Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg Config, logger *logrus.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.CasesKind == "" {
		cfg.CasesKind = "cases"
	}
	if cfg.EntriesKind == "" {
		cfg.EntriesKind = "genomic_entries"
	}
	if cfg.Loader == nil {
		cfg.Loader = adapter.NewLoader("", logger)
	}
	return &Runner{cfg: cfg, log: logger}
}

// Run processes caseIDs, or every case in the source when caseIDs is empty.
// A failing case is recorded in the report and never stops the batch. The
// returned error is set only when listing fails or ctx ends before every case
// was started.
func (r *Runner) Run(ctx context.Context, caseIDs []string) (*BatchReport, error) {
	report := &BatchReport{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Outcomes:  make(map[string]*Outcome),
	}

	if len(caseIDs) == 0 {
		ids, err := r.cfg.Source.List(ctx, r.cfg.CasesKind)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", r.cfg.CasesKind, err)
		}
		caseIDs = ids
	}

	log := r.log.WithField("run_id", report.RunID)
	log.WithFields(logrus.Fields{
		"cases":   len(caseIDs),
		"workers": r.cfg.Workers,
	}).Info("Starting batch")

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Workers)
	for _, id := range caseIDs {
		if err := ctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			outcome := r.processCase(ctx, report.RunID, id)
			mu.Lock()
			report.Outcomes[id] = outcome
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	report.FinishedAt = time.Now().UTC()
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.ObserveBatch(report.FinishedAt.Sub(report.StartedAt))
	}
	log.WithFields(logrus.Fields{
		"accepted": len(report.Accepted()),
		"rejected": len(report.Rejected()),
		"errors":   len(report.Errored()),
		"duration": report.FinishedAt.Sub(report.StartedAt).String(),
	}).Info("Batch finished")

	if err := ctx.Err(); err != nil && len(report.Outcomes) < len(caseIDs) {
		return report, fmt.Errorf("batch %s interrupted: %w", report.RunID, err)
	}
	return report, nil
}

// processCase never panics and always returns an outcome.
func (r *Runner) processCase(ctx context.Context, runID, id string) (outcome *Outcome) {
	start := time.Now()
	outcome = &Outcome{CaseID: id}
	log := r.log.WithFields(logrus.Fields{"run_id": runID, "case_id": id})

	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("panic", rec).Error("Case processing panicked")
			outcome = &Outcome{CaseID: id, ErrorCode: domain.ErrCodeInternal, Error: fmt.Sprint(rec)}
		}
		outcome.Duration = time.Since(start)
		r.observe(outcome)
	}()

	c, err := r.evaluate(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Case skipped")
		outcome.ErrorCode = domain.ErrorCode(err)
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Verdict = c.Verdict
	outcome.Variants = c.Variants()

	var vcfPaths []string
	if c.Verdict.Accepted && r.cfg.Projector != nil {
		path, failures := r.project(ctx, c)
		outcome.VCFFailures = failures
		if path != "" {
			vcfPaths = append(vcfPaths, path)
		}
	}
	vcfPaths = append(vcfPaths, c.VCF...)

	if r.cfg.ExportDir != "" {
		if _, err := writeExport(r.cfg.ExportDir, c.CaseID, ExportLegacy(c, vcfPaths)); err != nil {
			log.WithError(err).Error("Legacy export failed")
		}
	}
	if r.cfg.Sink != nil {
		if err := r.cfg.Sink.SaveVerdict(ctx, runID, *c.Verdict); err != nil {
			log.WithError(err).Error("Saving verdict failed")
		}
	}
	return outcome
}

func (r *Runner) evaluate(ctx context.Context, id string) (*quality.Case, error) {
	doc, err := r.cfg.Loader.Load(ctx, r.cfg.Source, r.cfg.CasesKind, id)
	if err != nil {
		return nil, err
	}
	view, err := adapter.Open(ctx, r.cfg.Shape, doc, documents.Linked(r.cfg.Source, r.cfg.EntriesKind, r.log))
	if err != nil {
		return nil, err
	}
	c, err := quality.NewCase(ctx, view, r.cfg.Resolver, r.cfg.Mapper, r.log)
	if err != nil {
		return nil, err
	}
	r.cfg.Gate.Evaluate(c)
	return c, nil
}

// project converts each entry with variants and writes the merged rows to
// <export dir>/vcfs/<case id>.vcf.gz. It returns the written path and the
// per-entry failures.
func (r *Runner) project(ctx context.Context, c *quality.Case) (string, []string) {
	var (
		sets     [][]external.VCFRow
		failures []string
	)
	for _, e := range c.Entries {
		if len(e.Variants) == 0 {
			continue
		}
		result, err := r.cfg.Projector.Project(ctx, external.VCFRequest{
			CaseID:   c.CaseID,
			Zygosity: e.Entry.Zygosity,
			Variants: e.VariantStrings(),
		})
		switch {
		case err != nil:
			failures = append(failures, err.Error())
		case !result.OK():
			failures = append(failures, result.Failure)
		default:
			sets = append(sets, result.Rows)
		}
	}
	if r.cfg.Metrics != nil {
		for range failures {
			r.cfg.Metrics.ObserveVCFFailure()
		}
	}

	rows := external.MergeRows(sets...)
	if len(rows) == 0 || r.cfg.ExportDir == "" {
		return "", failures
	}
	path, err := writeVCF(filepath.Join(r.cfg.ExportDir, "vcfs"), c.CaseID, rows)
	if err != nil {
		r.log.WithError(err).WithField("case_id", c.CaseID).Error("Writing VCF failed")
		return "", append(failures, err.Error())
	}
	return path, failures
}

func writeVCF(dir, caseID string, rows []external.VCFRow) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, caseID+".vcf.gz")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if err := external.WriteVCF(zw, caseID, rows); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return path, f.Close()
}

func (r *Runner) observe(o *Outcome) {
	if r.cfg.Metrics == nil {
		return
	}
	outcome := metrics.OutcomeError
	if o.Verdict != nil {
		outcome = metrics.OutcomeRejected
		if o.Verdict.Accepted {
			outcome = metrics.OutcomeAccepted
		}
		for _, chk := range o.Verdict.Checks {
			if !chk.Passed {
				r.cfg.Metrics.ObserveCheckFailure(chk.Name)
			}
		}
	}
	r.cfg.Metrics.ObserveCase(outcome, o.Duration)
}
