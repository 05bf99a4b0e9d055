package adapter

import "github.com/genomic-case-qc/internal/domain"

// LegacyCase reads the flattened compatibility format written after quality
// checking. Its genomic data is already resolved into genomicData blocks, so
// genomic_entries only holds what was inline at export time.
type LegacyCase struct {
	doc domain.Document
}

func (c *LegacyCase) Shape() Shape         { return ShapeLegacy }
func (c *LegacyCase) CaseID() string       { return c.doc.Str("case_id") }
func (c *LegacyCase) AlgoVersion() string  { return c.doc.Str("algo_deploy_version") }
func (c *LegacyCase) Raw() domain.Document { return c.doc }

func (c *LegacyCase) Features() []string {
	return filterFeatures(c.doc.Strings("features"))
}

func (c *LegacyCase) Submitter() domain.Submitter {
	s := c.doc.Obj("submitter")
	return domain.Submitter{
		Name:  s.Str("user_name"),
		Team:  s.Str("user_team"),
		Email: s.Str("user_email"),
	}
}

func (c *LegacyCase) DetectedSyndromes() []domain.Document {
	return documentsOf(c.doc.List("detected_syndromes"))
}

func (c *LegacyCase) SelectedSyndromes() []domain.Document {
	return documentsOf(c.doc.List("selected_syndromes"))
}

func (c *LegacyCase) SelectedCount() int {
	return len(c.SelectedSyndromes())
}

func (c *LegacyCase) Diagnoses() []domain.DiagnosisRow {
	return joinDiagnoses(flatSyndromes(c.DetectedSyndromes()), flatSyndromes(c.SelectedSyndromes()))
}

func (c *LegacyCase) GenomicEntries() []domain.Document {
	return documentsOf(c.doc.List("genomic_entries"))
}

func (c *LegacyCase) SetGenomicEntries(entries []domain.Document) {
	c.doc["genomic_entries"] = toList(entries)
}

// VCFDocuments returns the vcf paths recorded at export.
func (c *LegacyCase) VCFDocuments() []string {
	return c.doc.Strings("vcf")
}

// GenomicData returns the exported Test Information/Mutations blocks.
func (c *LegacyCase) GenomicData() []domain.Document {
	return documentsOf(c.doc.List("genomicData"))
}
