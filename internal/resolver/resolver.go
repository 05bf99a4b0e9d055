// Package resolver turns genomic entries into parsed HGVS variants, preferring
// curated overrides and recording every failure for later curation.
package resolver

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/genomic-case-qc/internal/domain"
	"github.com/genomic-case-qc/internal/overrides"
	"github.com/genomic-case-qc/pkg/hgvs"
)

// OverrideStore is the part of the override store the resolver needs. Both
// *overrides.Store and *overrides.Writer satisfy it.
type OverrideStore interface {
	GetEntry(key string) (*overrides.Entry, bool)
	RecordFailure(ctx context.Context, key string, info domain.Document, succeeded, failed []string) error
}

// RSLookup resolves a dbSNP rs number into candidate descriptions.
type RSLookup interface {
	DescriptionsForRS(ctx context.Context, rsNumber string) ([]string, error)
}

// Resolution is the outcome for one genomic entry.
type Resolution struct {
	EntryID  string
	Entry    *domain.GenomicEntry
	Gene     domain.Gene
	Variants []*hgvs.Variant

	// Candidates are the cleaned strings that were parsed.
	Candidates []string
	Failed     []string
	// Corrected is true when the variants come from a curated override.
	Corrected bool
	Messages  []string
}

// VariantStrings returns the serialized variants.
func (r *Resolution) VariantStrings() []string {
	out := make([]string, len(r.Variants))
	for i, v := range r.Variants {
		out[i] = v.String()
	}
	return out
}

// add keeps at most one variant per equivalence class, preferring the one
// that carries more reference and alternate text.
func (r *Resolution) add(v *hgvs.Variant) {
	for i, existing := range r.Variants {
		if hgvs.Equivalent(existing, v) {
			if v.Completeness() > existing.Completeness() {
				r.Variants[i] = v
			}
			return
		}
	}
	r.Variants = append(r.Variants, v)
}

func (r *Resolution) fail(candidate string) {
	for _, f := range r.Failed {
		if f == candidate {
			return
		}
	}
	r.Failed = append(r.Failed, candidate)
}

// Resolver resolves genomic entries. It is safe for concurrent use when the
// store is.
type Resolver struct {
	parser *hgvs.Parser
	store  OverrideStore
	rs     RSLookup
	log    *logrus.Logger
}

// New creates a Resolver. rs may be nil to disable rs number lookups.
func New(parser *hgvs.Parser, store OverrideStore, rs RSLookup, logger *logrus.Logger) *Resolver {
	return &Resolver{parser: parser, store: store, rs: rs, log: logger}
}

// ResolveDocument reads a genomic entry document and resolves it.
func (r *Resolver) ResolveDocument(ctx context.Context, doc domain.Document) *Resolution {
	return r.Resolve(ctx, domain.GenomicEntryFromDocument(doc))
}

// Resolve returns the variants of e. It never panics and never fails; every
// candidate that does not parse is recorded in the override store.
func (r *Resolver) Resolve(ctx context.Context, e *domain.GenomicEntry) (res *Resolution) {
	res = &Resolution{EntryID: e.EntryID, Entry: e, Gene: e.AttributedGene()}
	logger := r.log.WithField("entry_id", e.EntryID)

	defer func() {
		if rec := recover(); rec != nil {
			logger.WithField("panic", rec).Error("Variant resolution panicked")
			res.Messages = append(res.Messages, fmt.Sprintf("resolution aborted: %v", rec))
			r.record(ctx, res)
		}
	}()

	override, curated := r.store.GetEntry(e.EntryID)
	if curated && override.CorrectGene != nil && !override.CorrectGene.Empty() {
		res.Gene = *override.CorrectGene
	}

	if curated && override.HasCleaned() {
		res.Corrected = true
		for _, s := range override.Cleaned {
			r.parse(res, s)
		}
		if len(res.Failed) > 0 {
			logger.WithField("failed", res.Failed).Warn("Curated override contains unparseable descriptions")
		}
		return res
	}

	if !e.HasVariants {
		return res
	}

	candidates, notes := r.collect(ctx, e)
	res.Messages = append(res.Messages, notes...)
	for _, c := range candidates {
		cleaned := Clean(c)
		if cleaned == "" {
			continue
		}
		r.parse(res, cleaned)
	}

	if len(res.Failed) > 0 || len(notes) > 0 {
		r.record(ctx, res)
	}
	logger.WithFields(logrus.Fields{
		"variants": len(res.Variants),
		"failed":   len(res.Failed),
	}).Debug("Resolved genomic entry")
	return res
}

func (r *Resolver) parse(res *Resolution, candidate string) {
	res.Candidates = append(res.Candidates, candidate)
	result := r.parser.Parse(candidate)
	if !result.OK() {
		res.fail(candidate)
		res.Messages = append(res.Messages, result.Failure.Error())
		return
	}
	res.add(result.Variant)
}

// record writes the failure context for res into the override store. A store
// error is logged; it does not fail the entry.
func (r *Resolver) record(ctx context.Context, res *Resolution) {
	if res.EntryID == "" {
		r.log.Warn("Cannot record resolution failure for entry without id")
		return
	}
	info := domain.Document{}
	if res.Entry != nil && res.Entry.Raw != nil {
		info = res.Entry.Raw.Clone()
	}
	if len(res.Messages) > 0 {
		messages := make([]interface{}, len(res.Messages))
		for i, m := range res.Messages {
			messages[i] = m
		}
		info["message"] = messages
	}
	failed := res.Failed
	if failed == nil {
		failed = []string{}
	}
	if err := r.store.RecordFailure(ctx, res.EntryID, info, res.VariantStrings(), failed); err != nil {
		r.log.WithError(err).WithField("entry_id", res.EntryID).Error("Failed to record resolution failure")
	}
}
