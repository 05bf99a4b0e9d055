package quality

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/genomic-case-qc/internal/domain"
)

// Check names.
const (
	CheckGestalt         = "gestalt_presence"
	CheckSingleDiagnosis = "single_diagnosis"
	CheckMolecularData   = "molecular_data"
	CheckStructural      = "structural_abnormality"
)

// Options switch optional gate behavior.
type Options struct {
	// ConvertFailed clears the genomic entries of a case with a chromosomal abnormality.
	ConvertFailed bool
	// ExcludeBenign ignores entries with a benign result in the molecular data check.
	ExcludeBenign bool
}

type check struct {
	name string
	run  func(c *Case, opts Options) []string
}

// Gate evaluates cases. It holds no per-case state and is safe for concurrent use.
type Gate struct {
	opts   Options
	checks []check
	log    *logrus.Logger
}

// NewGate creates a gate running the four eligibility checks in order.
func NewGate(opts Options, logger *logrus.Logger) *Gate {
	return &Gate{
		opts: opts,
		checks: []check{
			{CheckGestalt, checkGestalt},
			{CheckSingleDiagnosis, checkSingleDiagnosis},
			{CheckMolecularData, checkMolecularData},
			{CheckStructural, checkStructural},
		},
		log: logger,
	}
}

// Evaluate runs every check on c and attaches the verdict. A check that
// panics fails on its own; the others still run.
func (g *Gate) Evaluate(c *Case) domain.QualityVerdict {
	v := domain.QualityVerdict{
		CaseID:           c.CaseID,
		Accepted:         true,
		Issues:           []string{},
		TrainingEligible: len(c.VCF) == 0,
	}

	for _, chk := range g.checks {
		result := g.run(chk, c)
		v.Checks = append(v.Checks, result)
		v.Issues = append(v.Issues, result.Issues...)
		if !result.Passed {
			v.Accepted = false
		}
	}

	v.Diagnostics = g.diagnostics(c)

	if g.opts.ConvertFailed {
		for _, r := range v.Checks {
			if r.Name == CheckStructural && !r.Passed && r.Error == "" {
				c.clearEntries()
			}
		}
	}
	c.Verdict = &v

	g.log.WithFields(logrus.Fields{
		"case_id":  c.CaseID,
		"accepted": v.Accepted,
		"issues":   len(v.Issues),
	}).Debug("Evaluated case")
	return v
}

func (g *Gate) run(chk check, c *Case) (result domain.CheckResult) {
	result.Name = chk.name
	defer func() {
		if rec := recover(); rec != nil {
			g.log.WithFields(logrus.Fields{
				"case_id": c.CaseID,
				"check":   chk.name,
				"panic":   rec,
			}).Error("Quality check panicked")
			result.Passed = false
			result.Error = fmt.Sprint(rec)
			result.Issues = []string{fmt.Sprintf("%s check failed: %v", chk.name, rec)}
		}
	}()
	result.Issues = chk.run(c, g.opts)
	result.Passed = len(result.Issues) == 0
	return result
}

func checkGestalt(c *Case, _ Options) []string {
	var best float64
	for _, row := range c.Diagnoses {
		if row.Detected && row.GestaltScore > best {
			best = row.GestaltScore
		}
	}
	if best <= 0 {
		return []string{"no image provided"}
	}
	return nil
}

func checkSingleDiagnosis(c *Case, _ Options) []string {
	if n := c.View.SelectedCount(); n != 1 {
		return []string{fmt.Sprintf("%d syndromes have been selected. Only 1 syndrome should be selected.", n)}
	}
	return nil
}

func checkMolecularData(c *Case, opts Options) []string {
	for _, e := range c.Entries {
		if opts.ExcludeBenign && domain.BenignResults[e.Entry.Result] {
			continue
		}
		if len(e.Variants) > 0 {
			return nil
		}
	}
	return []string{"no valid genomic entries available"}
}

func checkStructural(c *Case, _ Options) []string {
	var issues []string
	for _, e := range c.Entries {
		if domain.ChromosomalTests[e.Entry.TestType] && domain.PositiveResults[e.Entry.Result] {
			issues = append(issues, fmt.Sprintf("chromosomal abnormality detected in %s with result %s", e.Entry.TestType, e.Entry.Result))
		}
	}
	return issues
}

// diagnostics never affect acceptance; a panic leaves them zero.
func (g *Gate) diagnostics(c *Case) (d domain.Diagnostics) {
	defer func() {
		if rec := recover(); rec != nil {
			g.log.WithField("case_id", c.CaseID).WithField("panic", rec).Error("Diagnostics panicked")
			d = domain.Diagnostics{}
		}
	}()

	molecular := map[string]bool{}
	for _, e := range c.Entries {
		if g.opts.ExcludeBenign && domain.BenignResults[e.Entry.Result] {
			d.BenignExcluded += len(e.Variants)
			continue
		}
		if len(e.Variants) > 0 && e.Gene.GeneSymbol != "" {
			molecular[e.Gene.GeneSymbol] = true
		}
	}
	for sym := range molecular {
		d.MolecularGenes = append(d.MolecularGenes, sym)
	}
	sort.Strings(d.MolecularGenes)

	if c.GeneScores == nil || len(d.MolecularGenes) == 0 {
		return d
	}
	mapped := map[string]bool{}
	for _, s := range c.GeneList() {
		mapped[s] = true
	}
	d.DiagnosisGeneMissing = true
	for _, s := range d.MolecularGenes {
		if mapped[s] {
			d.DiagnosisGeneMissing = false
			break
		}
	}
	return d
}
