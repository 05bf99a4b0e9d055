package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/genomic-case-qc/internal/domain"
	"github.com/genomic-case-qc/internal/quality"
)

// Build is the reference assembly named in every exported Mutations block.
const Build = "GRCh37"

// ExportLegacy flattens an evaluated case into the compatibility format read
// by downstream tooling. vcfPaths lists the variant call files belonging to
// the case.
func ExportLegacy(c *quality.Case, vcfPaths []string) domain.Document {
	submitter := c.View.Submitter()

	genomicData := make([]interface{}, 0, len(c.Entries))
	for _, e := range c.Entries {
		hgvsCode := strings.Join(e.VariantStrings(), ", ")
		if e.Gene.GeneSymbol == "" && hgvsCode == "" {
			continue
		}
		genomicData = append(genomicData, map[string]interface{}{
			"Test Information": map[string]interface{}{
				"Molecular Test": e.Entry.TestType,
				"Notation":       e.Entry.VariantInformation,
				"Genotype":       e.Entry.Zygosity,
				"Mutation Type":  e.Entry.TestType,
				"Gene Name":      e.Gene.GeneSymbol,
				"Gene ID":        e.Gene.GeneID,
			},
			"Mutations": map[string]interface{}{
				"additional info":  "",
				"Build":            Build,
				"result":           e.Entry.Result,
				"Inheritance Mode": "",
				"HGVS-code":        hgvsCode,
			},
		})
	}

	if vcfPaths == nil {
		vcfPaths = []string{}
	}
	return domain.Document{
		"algo_deploy_version": c.View.AlgoVersion(),
		"case_id":             c.CaseID,
		"submitter": map[string]interface{}{
			"user_email": submitter.Email,
			"user_team":  submitter.Team,
			"user_name":  submitter.Name,
		},
		"vcf":                vcfPaths,
		"features":           c.View.Features(),
		"geneList":           c.GeneList(),
		"detected_syndromes": detectedRows(c),
		"genomicData":        genomicData,
		"genomic_entries":    documentList(c.View.GenomicEntries()),
		"selected_syndromes": documentList(c.View.SelectedSyndromes()),
	}
}

// detectedRows lists the detected diagnosis rows together with their mapped
// genes when gene mapping ran.
func detectedRows(c *quality.Case) []interface{} {
	rows := make([]interface{}, 0, len(c.Diagnoses))
	for i, d := range c.Diagnoses {
		if !d.Detected {
			continue
		}
		row := map[string]interface{}{
			"omim_id":        d.RegistryID,
			"syndrome_name":  d.SyndromeName,
			"gestalt_score":  d.GestaltScore,
			"feature_score":  d.FeatureScore,
			"combined_score": d.CombinedScore,
			"has_mask":       d.HasMask,
			"confirmed":      d.Confirmed,
			"differential":   d.Differential,
		}
		if c.GeneScores != nil && i < len(c.GeneScores) {
			row["gene"] = c.GeneScores[i].Genes
		}
		rows = append(rows, row)
	}
	return rows
}

func documentList(docs []domain.Document) []interface{} {
	out := make([]interface{}, len(docs))
	for i, d := range docs {
		out[i] = map[string]interface{}(d)
	}
	return out
}

// writeExport stores doc as <dir>/<case id>.json.
func writeExport(dir, caseID string, doc domain.Document) (string, error) {
	path := filepath.Join(dir, caseID+".json")
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding export for case %s: %w", caseID, err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// writeFileAtomic writes through a temporary file in the same directory so a
// reader never sees a partial file.
func writeFileAtomic(path string, data []byte) error {
	return replaceFile(path, data, nil)
}

// replaceFile stages data in a temp file next to path and renames it into
// place. before, if set, runs once the data is on disk and ahead of the
// rename; an error from it leaves path untouched.
func replaceFile(path string, data []byte, before func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if before != nil {
		if err := before(); err != nil {
			return err
		}
	}
	return os.Rename(tmp.Name(), path)
}
