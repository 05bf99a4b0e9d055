package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/genomic-case-qc/internal/domain"
)

// Shape names an upstream case document format.
type Shape string

const (
	// ShapeBulk is the bulk export format; genomic entries are linked by id.
	ShapeBulk Shape = "bulk"
	// ShapeLab is the live lab API format; everything sits under case_data.
	ShapeLab Shape = "lab"
	// ShapeLegacy is the flattened format written for downstream tooling.
	ShapeLegacy Shape = "legacy"
)

// ParseShape validates a configured shape name.
func ParseShape(s string) (Shape, error) {
	switch Shape(strings.ToLower(strings.TrimSpace(s))) {
	case ShapeBulk:
		return ShapeBulk, nil
	case ShapeLab:
		return ShapeLab, nil
	case ShapeLegacy:
		return ShapeLegacy, nil
	}
	return "", fmt.Errorf("unknown case shape %q", s)
}

// CaseView is the normalized view over one upstream case document.
type CaseView interface {
	Shape() Shape
	CaseID() string
	AlgoVersion() string
	Features() []string
	Submitter() domain.Submitter
	// Diagnoses returns detected and selected diagnoses exploded per
	// registry id and outer-joined on (registry id, syndrome name).
	Diagnoses() []domain.DiagnosisRow
	// SelectedCount is the number of selected diagnoses before exploding.
	SelectedCount() int
	DetectedSyndromes() []domain.Document
	SelectedSyndromes() []domain.Document
	GenomicEntries() []domain.Document
	SetGenomicEntries(entries []domain.Document)
	// VCFDocuments names the attached documents flagged as variant call files.
	VCFDocuments() []string
	Raw() domain.Document
}

// Open wraps doc in the view for shape and resolves linked genomic entries
// through entries. entries may be nil when the document carries them inline.
func Open(ctx context.Context, shape Shape, doc domain.Document, entries LoadFunc) (CaseView, error) {
	var view CaseView
	var directive Fields
	switch shape {
	case ShapeBulk:
		view = &BulkCase{doc: doc}
		if entries != nil {
			directive = Fields{"genomic_entries": Each{Of: entries}}
		}
	case ShapeLab:
		view = &LabCase{doc: doc}
		if entries != nil {
			directive = Fields{"case_data": Fields{"genomic_entries": Each{Of: entries}}}
		}
	case ShapeLegacy:
		view = &LegacyCase{doc: doc}
	default:
		return nil, fmt.Errorf("unknown case shape %q", shape)
	}

	if err := requireStructure(shape, doc); err != nil {
		return nil, err
	}
	if directive != nil {
		if err := ResolveLinked(ctx, doc, directive); err != nil {
			return nil, fmt.Errorf("case %s: %w", view.CaseID(), err)
		}
	}
	return view, nil
}

func requireStructure(shape Shape, doc domain.Document) error {
	if shape == ShapeLab {
		if !doc.Has("case_data") {
			return &domain.SchemaError{CaseID: doc.Str("lab_case_id"), Field: "case_data", Reason: "missing"}
		}
		if doc.Obj("case_data").Str("case_id") == "" {
			return &domain.SchemaError{CaseID: doc.Str("lab_case_id"), Field: "case_data.case_id", Reason: "missing"}
		}
		return nil
	}
	if doc.Str("case_id") == "" {
		return &domain.SchemaError{Field: "case_id", Reason: "missing"}
	}
	return nil
}

func documentsOf(list []interface{}) []domain.Document {
	out := make([]domain.Document, 0, len(list))
	for _, v := range list {
		if d := domain.AsDocument(v); len(d) > 0 {
			out = append(out, d)
		}
	}
	return out
}

func toList(docs []domain.Document) []interface{} {
	out := make([]interface{}, len(docs))
	for i, d := range docs {
		out[i] = map[string]interface{}(d)
	}
	return out
}

func filterFeatures(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !domain.IllegalHPO[id] {
			out = append(out, id)
		}
	}
	return out
}

func vcfNames(docs []interface{}) []string {
	var out []string
	for _, v := range docs {
		d := domain.AsDocument(v)
		if d.Bool("is_vcf") {
			out = append(out, d.Str("document_name"))
		}
	}
	return out
}

// syndrome is one detected or selected diagnosis before exploding.
type syndrome struct {
	ids      []int
	name     string
	gestalt  float64
	feature  float64
	combined float64
	hasMask  bool
	category string
}

// registryIDs reads a single id or a list of ids. Non-numeric ids are skipped;
// no usable id gives the single id 0.
func registryIDs(v interface{}) []int {
	var ids []int
	for _, item := range domain.AsList(v) {
		if id, ok := domain.AsInt(item); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []int{0}
	}
	return ids
}

type joinKey struct {
	id   int
	name string
}

// joinDiagnoses explodes both lists per registry id and outer-joins them.
// Detected rows come first in input order, followed by selected rows that
// matched nothing.
func joinDiagnoses(detected, selected []syndrome) []domain.DiagnosisRow {
	type selRow struct {
		syndrome
		id      int
		matched bool
	}
	var sel []*selRow
	byKey := make(map[joinKey][]*selRow)
	for _, s := range selected {
		for _, id := range s.ids {
			r := &selRow{syndrome: s, id: id}
			sel = append(sel, r)
			k := joinKey{id, s.name}
			byKey[k] = append(byKey[k], r)
		}
	}

	var rows []domain.DiagnosisRow
	for _, d := range detected {
		for _, id := range d.ids {
			base := domain.DiagnosisRow{
				RegistryID:    id,
				SyndromeName:  d.name,
				GestaltScore:  d.gestalt,
				FeatureScore:  d.feature,
				CombinedScore: d.combined,
				HasMask:       d.hasMask,
				Detected:      true,
			}
			matches := byKey[joinKey{id, d.name}]
			if len(matches) == 0 {
				rows = append(rows, base)
				continue
			}
			for _, m := range matches {
				m.matched = true
				row := base
				row.Selected = true
				row.HasMask = d.hasMask || m.hasMask
				row.Category = m.category
				row.Confirmed = domain.ConfirmedDiagnoses[m.category]
				row.Differential = domain.DifferentialDiagnoses[m.category]
				rows = append(rows, row)
			}
		}
	}
	for _, m := range sel {
		if m.matched {
			continue
		}
		rows = append(rows, domain.DiagnosisRow{
			RegistryID:   m.id,
			SyndromeName: m.name,
			HasMask:      m.hasMask,
			Selected:     true,
			Category:     m.category,
			Confirmed:    domain.ConfirmedDiagnoses[m.category],
			Differential: domain.DifferentialDiagnoses[m.category],
		})
	}
	return rows
}
