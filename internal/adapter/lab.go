package adapter

import "github.com/genomic-case-qc/internal/domain"

// LabCase is the live lab API format. Case fields sit under case_data,
// syndromes are wrapped in a syndrome object and genomic entries are inline.
type LabCase struct {
	doc domain.Document
}

func (c *LabCase) data() domain.Document { return c.doc.Obj("case_data") }

func (c *LabCase) Shape() Shape         { return ShapeLab }
func (c *LabCase) CaseID() string       { return c.data().Str("case_id") }
func (c *LabCase) Raw() domain.Document { return c.doc }

func (c *LabCase) AlgoVersion() string {
	if v := c.data().Str("algo_deploy_version"); v != "" {
		return v
	}
	return c.data().Str("algo_version")
}

// Features returns the HPO ids of features marked present.
func (c *LabCase) Features() []string {
	var ids []string
	for _, v := range c.data().List("selected_features") {
		f := domain.AsDocument(v)
		if !f.Bool("is_present") {
			continue
		}
		if id := f.Obj("feature").Str("hpo_full_id"); id != "" {
			ids = append(ids, id)
		}
	}
	return filterFeatures(ids)
}

func (c *LabCase) Submitter() domain.Submitter {
	u := c.data().Obj("posting_user")
	return domain.Submitter{
		Name:  u.Str("userDisplayName"),
		Team:  u.Str("userInstitution"),
		Email: u.Str("userEmail"),
	}
}

// DetectedSyndromes converts suggested syndromes into the flat layout.
// Suggestions without a syndrome object are skipped.
func (c *LabCase) DetectedSyndromes() []domain.Document {
	var out []domain.Document
	for _, v := range c.data().List("suggested_syndromes") {
		s := domain.AsDocument(v)
		if len(s.Obj("syndrome")) == 0 {
			continue
		}
		d := convertLabSyndrome(s.Obj("syndrome"))
		d["feature_score"] = s["feature_score"]
		d["gestalt_score"] = s["gestalt_score"]
		d["combined_score"] = 0
		out = append(out, d)
	}
	return out
}

// SelectedSyndromes converts selected syndromes into the flat layout.
func (c *LabCase) SelectedSyndromes() []domain.Document {
	var out []domain.Document
	for _, v := range c.data().List("selected_syndromes") {
		s := domain.AsDocument(v)
		d := convertLabSyndrome(s.Obj("syndrome"))
		d["diagnosis"] = s.Str("diagnosis")
		out = append(out, d)
	}
	return out
}

func (c *LabCase) SelectedCount() int {
	return len(c.data().List("selected_syndromes"))
}

func (c *LabCase) Diagnoses() []domain.DiagnosisRow {
	return joinDiagnoses(flatSyndromes(c.DetectedSyndromes()), flatSyndromes(c.SelectedSyndromes()))
}

func (c *LabCase) GenomicEntries() []domain.Document {
	return documentsOf(c.data().List("genomic_entries"))
}

func (c *LabCase) SetGenomicEntries(entries []domain.Document) {
	c.data()["genomic_entries"] = toList(entries)
}

func (c *LabCase) VCFDocuments() []string {
	if docs := c.data().List("documents"); len(docs) > 0 {
		return vcfNames(docs)
	}
	return vcfNames(c.doc.List("documents"))
}

// convertLabSyndrome maps a lab syndrome object. Group syndromes carry their
// registry ids in omim_ids; app_valid is the mask flag.
func convertLabSyndrome(s domain.Document) domain.Document {
	ids := s["omim_id"]
	if s.Bool("is_group") {
		ids = s["omim_ids"]
	}
	return domain.Document{
		"omim_id":       ids,
		"syndrome_name": s.Str("syndrome_name"),
		"has_mask":      s.Bool("app_valid"),
	}
}
