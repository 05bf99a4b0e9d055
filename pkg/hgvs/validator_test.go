package hgvs

import (
	"errors"
	"testing"

	"github.com/genomic-case-qc/internal/domain"
)

func TestValidateAccession(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name      string
		accession string
		wantErr   bool
	}{
		{"RefSeq transcript", "NM_000059.3", false},
		{"RefSeq chromosome", "NC_000017.11", false},
		{"RefSeq protein", "NP_000050.2", false},
		{"Unversioned transcript", "NM_000059", false},
		{"Ensembl transcript", "ENST00000357654.9", false},
		{"LRG", "LRG_292t1", false},
		{"chr alias", "chrX", false},
		{"Empty", "", true},
		{"Gene symbol", "BRCA1", true},
		{"Lowercase prefix", "nm_000059.3", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateAccession(tt.accession)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAccession() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var verr *domain.ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("expected ValidationError, got %T", err)
				}
			}
		})
	}
}

func TestValidateGeneSymbol(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		symbol  string
		wantErr bool
	}{
		{"BRCA1", false},
		{"HLA-A", false},
		{"C9orf72", false},
		{"", false},
		{"brca1", true},
		{"1ABC", true},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			err := validator.ValidateGeneSymbol(tt.symbol)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGeneSymbol(%q) error = %v, wantErr %v", tt.symbol, err, tt.wantErr)
			}
		})
	}
}

func TestLooksLikeVariant(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"NM_000001.1:c.123A>G", true},
		{"c. 123 A>G", true},
		{"G.1234del", true},
		{"p.Lys41Arg", false},
		{"heterozygous, see report", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := LooksLikeVariant(tt.input); got != tt.want {
				t.Errorf("LooksLikeVariant(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFragments(t *testing.T) {
	if !IsAccession("NM_000001.1") || IsAccession("GENE") {
		t.Error("IsAccession misclassified")
	}
	if !IsEditFragment("c.123A>G") || !IsEditFragment("p.(Arg12Ter)") || IsEditFragment("NM_000001.1") {
		t.Error("IsEditFragment misclassified")
	}
}
