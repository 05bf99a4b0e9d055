// Package quality builds the case aggregate and decides whether a case may
// enter the downstream corpus.
package quality

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/genomic-case-qc/internal/adapter"
	"github.com/genomic-case-qc/internal/domain"
	"github.com/genomic-case-qc/internal/resolver"
)

// EntryResolver resolves one genomic entry. *resolver.Resolver implements it.
type EntryResolver interface {
	Resolve(ctx context.Context, e *domain.GenomicEntry) *resolver.Resolution
}

// GeneMapper maps a disease registry id onto genes.
type GeneMapper interface {
	GenesForDisease(ctx context.Context, registryID int) ([]domain.GeneRef, error)
}

// Case is one upstream case with every genomic entry resolved.
type Case struct {
	View      adapter.CaseView
	CaseID    string
	Entries   []*resolver.Resolution
	Diagnoses []domain.DiagnosisRow
	// GeneScores is nil when no gene mapper is configured.
	GeneScores []domain.GeneScore
	VCF        []string

	Verdict *domain.QualityVerdict
}

// NewCase resolves the genomic entries of view and maps its diagnoses onto
// genes. mapper may be nil. A failed gene lookup leaves that row without
// genes.
func NewCase(ctx context.Context, view adapter.CaseView, entries EntryResolver, mapper GeneMapper, logger *logrus.Logger) (*Case, error) {
	c := &Case{
		View:      view,
		CaseID:    view.CaseID(),
		Diagnoses: view.Diagnoses(),
		VCF:       view.VCFDocuments(),
	}

	for _, doc := range view.GenomicEntries() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.Entries = append(c.Entries, entries.Resolve(ctx, domain.GenomicEntryFromDocument(doc)))
	}

	if mapper != nil {
		c.GeneScores = make([]domain.GeneScore, 0, len(c.Diagnoses))
		for _, row := range c.Diagnoses {
			genes, err := mapper.GenesForDisease(ctx, row.RegistryID)
			if err != nil {
				logger.WithError(err).WithFields(logrus.Fields{
					"case_id": c.CaseID,
					"omim_id": row.RegistryID,
				}).Warn("Gene mapping failed")
			}
			c.GeneScores = append(c.GeneScores, domain.GeneScore{
				RegistryID:    row.RegistryID,
				SyndromeName:  row.SyndromeName,
				Genes:         genes,
				GestaltScore:  row.GestaltScore,
				FeatureScore:  row.FeatureScore,
				CombinedScore: row.CombinedScore,
				HasMask:       row.HasMask,
			})
		}
	}
	return c, nil
}

// Variants returns every resolved variant string of the case.
func (c *Case) Variants() []string {
	var out []string
	for _, e := range c.Entries {
		out = append(out, e.VariantStrings()...)
	}
	return out
}

// GeneList returns the sorted distinct gene symbols mapped from the diagnoses.
func (c *Case) GeneList() []string {
	seen := map[string]bool{}
	for _, s := range c.GeneScores {
		for _, g := range s.Genes {
			if g.GeneSymbol != "" {
				seen[g.GeneSymbol] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// clearEntries drops every genomic entry from the case and its view.
func (c *Case) clearEntries() {
	c.Entries = nil
	c.View.SetGenomicEntries(nil)
}
