package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/genomic-case-qc/internal/domain"
)

// Verdict log sections. Every section maps case ids to section-specific data.
const (
	SectionPassed            = "passed"
	SectionFailed            = "failed"
	SectionErrors            = "errors"
	SectionBenignExcluded    = "benign_excluded"
	SectionPathogenicMissing = "pathogenic_missing"
	SectionVCFFailed         = "vcf_failed"
)

// logEntry is what the failed and passed sections hold per case.
type logEntry struct {
	Issues           []string             `json:"issues"`
	Checks           []domain.CheckResult `json:"checks,omitempty"`
	TrainingEligible bool                 `json:"training_eligible"`
	Variants         []string             `json:"variants,omitempty"`
}

type errorEntry struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// buildLog groups the outcomes of report into sections.
func buildLog(report *BatchReport) map[string]map[string]interface{} {
	sections := map[string]map[string]interface{}{
		SectionPassed:            {},
		SectionFailed:            {},
		SectionErrors:            {},
		SectionBenignExcluded:    {},
		SectionPathogenicMissing: {},
		SectionVCFFailed:         {},
	}
	for id, o := range report.Outcomes {
		if o.Verdict == nil {
			sections[SectionErrors][id] = errorEntry{Code: o.ErrorCode, Error: o.Error}
			continue
		}
		entry := logEntry{
			Issues:           o.Verdict.Issues,
			Checks:           o.Verdict.Checks,
			TrainingEligible: o.Verdict.TrainingEligible,
			Variants:         o.Variants,
		}
		if o.Verdict.Accepted {
			sections[SectionPassed][id] = entry
		} else {
			sections[SectionFailed][id] = entry
		}
		if n := o.Verdict.Diagnostics.BenignExcluded; n > 0 {
			sections[SectionBenignExcluded][id] = n
		}
		if o.Verdict.Diagnostics.DiagnosisGeneMissing {
			sections[SectionPathogenicMissing][id] = o.Verdict.Diagnostics.MolecularGenes
		}
		if len(o.VCFFailures) > 0 {
			sections[SectionVCFFailed][id] = o.VCFFailures
		}
	}
	return sections
}

// WriteVerdictLog writes report to path. A log already at path is kept as
// path + ".old" for DiffVerdictLogs. The rotation happens only after the new
// log is staged, so a failed write leaves the current log in place.
func WriteVerdictLog(path string, report *BatchReport) error {
	data, err := json.MarshalIndent(buildLog(report), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding verdict log: %w", err)
	}

	return replaceFile(path, data, func() error {
		if _, err := os.Stat(path); err != nil {
			return nil
		}
		if err := os.Rename(path, path+".old"); err != nil {
			return fmt.Errorf("rotating verdict log: %w", err)
		}
		return nil
	})
}

// SectionDiff lists the case ids present in only one of two logs.
type SectionDiff struct {
	OldOnly []string `json:"old_only"`
	NewOnly []string `json:"new_only"`
}

// DiffVerdictLogs compares the log at path with the previous run's log at
// path + ".old", section by section. Without a previous log the current one
// is compared with itself.
func DiffVerdictLogs(path string) (map[string]SectionDiff, error) {
	current, err := readLog(path)
	if err != nil {
		return nil, err
	}
	previous, err := readLog(path + ".old")
	if errors.Is(err, os.ErrNotExist) {
		previous = current
	} else if err != nil {
		return nil, err
	}

	diff := make(map[string]SectionDiff, len(current))
	for section, cases := range current {
		diff[section] = diffKeys(cases, previous[section])
	}
	return diff, nil
}

// WriteDiff prints diff grouped by section in a stable order.
func WriteDiff(w io.Writer, diff map[string]SectionDiff) error {
	sections := make([]string, 0, len(diff))
	for s := range diff {
		sections = append(sections, s)
	}
	sort.Strings(sections)
	for _, s := range sections {
		d := diff[s]
		if _, err := fmt.Fprintf(w, "= %s =\nold_only: %v\nnew_only: %v\n", s, d.OldOnly, d.NewOnly); err != nil {
			return err
		}
	}
	return nil
}

func readLog(path string) (map[string]map[string]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sections map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, &domain.MalformedInputError{Source: path, Reason: "invalid verdict log", Err: err}
	}
	return sections, nil
}

func diffKeys(current, previous map[string]json.RawMessage) SectionDiff {
	d := SectionDiff{OldOnly: []string{}, NewOnly: []string{}}
	for id := range current {
		if _, ok := previous[id]; !ok {
			d.NewOnly = append(d.NewOnly, id)
		}
	}
	for id := range previous {
		if _, ok := current[id]; !ok {
			d.OldOnly = append(d.OldOnly, id)
		}
	}
	sort.Strings(d.NewOnly)
	sort.Strings(d.OldOnly)
	return d
}
