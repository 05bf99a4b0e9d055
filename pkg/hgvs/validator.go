package hgvs

import (
	"regexp"
	"strings"

	"github.com/genomic-case-qc/internal/domain"
)

// Patterns for validation and candidate heuristics
var (
	// Reference sequence accessions: NM_000059.3, NC_000017.11, ENST00000357654.9, LRG_292t1, chr17
	accessionPattern = regexp.MustCompile(`^(?:[A-Z]{2}_\d+(?:\.\d+)?|ENS[A-Z]*[GTP]\d+(?:\.\d+)?|LRG_\d+(?:[tp]\d+)?|chr(?:\d{1,2}|[XYM]))$`)

	// Loose "looks like a variant" heuristic: level letter, dot, digits.
	variantLikePattern = regexp.MustCompile(`(?i)[gcmnrp]\.\d+`)

	// Fragment that starts with a level prefix, e.g. c.123A>G or p.Lys41Arg
	editFragmentPattern = regexp.MustCompile(`^[gcmnrp]\.[\w*(?=\-]`)

	// Gene symbol pattern
	geneSymbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9-]*(?:orf\d+)?$`)
)

var whitespaceReplacer = strings.NewReplacer(" ", "", "\t", "", "\n", "", "\r", "")

// Validator provides HGVS validation functionality
type Validator struct{}

// NewValidator creates a new HGVS validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAccession validates the reference sequence part of a description.
func (v *Validator) ValidateAccession(accession string) error {
	if accession == "" {
		return domain.NewValidationError("accession", "reference sequence accession cannot be empty", accession)
	}
	if !accessionPattern.MatchString(accession) {
		return domain.NewValidationError("accession", "unrecognized reference sequence accession", accession)
	}
	return nil
}

// ValidateGeneSymbol validates gene symbol format
func (v *Validator) ValidateGeneSymbol(symbol string) error {
	if symbol == "" {
		return nil // Gene symbol is optional
	}

	if !geneSymbolPattern.MatchString(symbol) {
		return domain.NewValidationError("gene_symbol", "Invalid gene symbol format", symbol)
	}

	return nil
}

// StripWhitespace removes every space, tab and newline.
func StripWhitespace(s string) string {
	return whitespaceReplacer.Replace(s)
}

// LooksLikeVariant is the permissive pre-filter applied to free text before a
// string is treated as a variant candidate.
func LooksLikeVariant(s string) bool {
	return variantLikePattern.MatchString(StripWhitespace(s))
}

// IsAccession reports whether s is a bare reference sequence accession.
func IsAccession(s string) bool {
	return accessionPattern.MatchString(s)
}

// IsEditFragment reports whether s starts with a level prefix followed by an edit.
func IsEditFragment(s string) bool {
	return editFragmentPattern.MatchString(s)
}
