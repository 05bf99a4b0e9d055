package domain

import "strings"

// Assay categories whose positive result indicates a chromosomal abnormality.
var ChromosomalTests = map[string]bool{
	"CHROMOSOMAL_MICROARRAY": true,
	"FISH":                   true,
	"KARYOTYPE":              true,
}

// Results that count as positive/abnormal for chromosomal tests.
var PositiveResults = map[string]bool{
	"ABNORMAL":             true,
	"ABNORMAL_DIAGNOSTIC":  true,
	"DELETION_DUPLICATION": true,
	"VARIANTS_DETECTED":    true,
}

// Results excluded from the molecular data check when benign exclusion is enabled.
var BenignResults = map[string]bool{
	"NORMAL":        true,
	"BENIGN":        true,
	"LIKELY_BENIGN": true,
}

// HGVSOperators maps mutation types onto HGVS edit operators.
var HGVSOperators = map[string]string{
	"SUBSTITUTION":       ">",
	"DELETION":           "del",
	"DUPLICATION":        "dup",
	"INSERTION":          "ins",
	"INVERSION":          "inv",
	"DELETION_INSERTION": "delins",
	"UNKNOWN":            "",
}

// HGVSPrefixes maps variant information onto the HGVS level letter.
var HGVSPrefixes = map[string]string{
	"CDNA_LEVEL":        "c",
	"PROTEIN_LEVEL":     "p",
	"GENOMIC_DNA_LEVEL": "g",
	"UNKNOWN":           "",
	"RS_NUMBER":         "",
}

// Diagnosis categories of selected syndromes.
var (
	ConfirmedDiagnoses = map[string]bool{
		"MOLECULARLY_DIAGNOSED": true,
		"CLINICALLY_DIAGNOSED":  true,
		"CORRECTED_DIAGNOSIS":   true,
	}
	DifferentialDiagnoses = map[string]bool{
		"DIFFERENTIAL_DIAGNOSIS": true,
	}
)

// IllegalHPO lists placeholder phenotype terms dropped from feature lists.
var IllegalHPO = map[string]bool{
	"HP:0000001": true, // All
	"HP:0000118": true, // Phenotypic abnormality
}

// Unknown is the default for absent enumerated genomic entry fields.
const Unknown = "UNKNOWN"

// Genotype returns the VCF genotype for a zygosity category.
func Genotype(zygosity string) string {
	switch strings.ToLower(strings.ReplaceAll(zygosity, "_", " ")) {
	case "hemizygous":
		return "1"
	case "homozygous":
		return "1/1"
	}
	return "0/1"
}
