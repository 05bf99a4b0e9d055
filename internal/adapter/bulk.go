package adapter

import "github.com/genomic-case-qc/internal/domain"

// BulkCase is the bulk export format.
type BulkCase struct {
	doc domain.Document
}

func (c *BulkCase) Shape() Shape        { return ShapeBulk }
func (c *BulkCase) CaseID() string      { return c.doc.Str("case_id") }
func (c *BulkCase) AlgoVersion() string { return c.doc.Str("algo_deploy_version") }
func (c *BulkCase) Raw() domain.Document {
	return c.doc
}

func (c *BulkCase) Features() []string {
	return filterFeatures(c.doc.Strings("features"))
}

func (c *BulkCase) Submitter() domain.Submitter {
	s := c.doc.Obj("submitter")
	return domain.Submitter{
		Name:  s.Str("user_name"),
		Team:  s.Str("user_team"),
		Email: s.Str("user_email"),
	}
}

func (c *BulkCase) DetectedSyndromes() []domain.Document {
	return documentsOf(c.doc.List("detected_syndromes"))
}

func (c *BulkCase) SelectedSyndromes() []domain.Document {
	return documentsOf(c.doc.List("selected_syndromes"))
}

func (c *BulkCase) SelectedCount() int {
	return len(c.SelectedSyndromes())
}

func (c *BulkCase) Diagnoses() []domain.DiagnosisRow {
	return joinDiagnoses(flatSyndromes(c.DetectedSyndromes()), flatSyndromes(c.SelectedSyndromes()))
}

func (c *BulkCase) GenomicEntries() []domain.Document {
	return documentsOf(c.doc.List("genomic_entries"))
}

func (c *BulkCase) SetGenomicEntries(entries []domain.Document) {
	c.doc["genomic_entries"] = toList(entries)
}

func (c *BulkCase) VCFDocuments() []string {
	return vcfNames(c.doc.List("documents"))
}

// flatSyndromes reads syndromes whose attributes sit at the top level of each
// object, as in the bulk and legacy formats.
func flatSyndromes(docs []domain.Document) []syndrome {
	out := make([]syndrome, 0, len(docs))
	for _, d := range docs {
		out = append(out, syndrome{
			ids:      registryIDs(d["omim_id"]),
			name:     d.Str("syndrome_name"),
			gestalt:  d.Float("gestalt_score"),
			feature:  d.Float("feature_score"),
			combined: d.Float("combined_score"),
			hasMask:  d.Bool("has_mask"),
			category: d.Str("diagnosis"),
		})
	}
	return out
}
