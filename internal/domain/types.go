package domain

// Gene identifies a gene as upstream records and the override store carry it.
type Gene struct {
	GeneID     string `json:"gene_id"`
	GeneSymbol string `json:"gene_symbol"`
	GeneOMIMID string `json:"gene_omim_id"`
}

// Empty reports whether no identifying field is populated.
func (g Gene) Empty() bool {
	return g.GeneID == "" && g.GeneSymbol == "" && g.GeneOMIMID == ""
}

// GeneFromDocument reads a gene object.
func GeneFromDocument(d Document) Gene {
	return Gene{
		GeneID:     d.Str("gene_id"),
		GeneSymbol: d.Str("gene_symbol"),
		GeneOMIMID: d.Str("gene_omim_id"),
	}
}

// Submitter is the clinician who posted a case.
type Submitter struct {
	Name  string `json:"user_name"`
	Team  string `json:"user_team"`
	Email string `json:"user_email"`
}

// DiagnosisRow is one (registry id, syndrome) pair after exploding
// multi-id diagnoses and joining detected with selected diagnoses.
type DiagnosisRow struct {
	RegistryID    int     `json:"omim_id"`
	SyndromeName  string  `json:"syndrome_name"`
	GestaltScore  float64 `json:"gestalt_score"`
	FeatureScore  float64 `json:"feature_score"`
	CombinedScore float64 `json:"combined_score"`
	HasMask       bool    `json:"has_mask"`
	Detected      bool    `json:"detected"`
	Selected      bool    `json:"selected"`
	Category      string  `json:"diagnosis,omitempty"`
	Confirmed     bool    `json:"confirmed"`
	Differential  bool    `json:"differential"`
}

// GeneRef is one (gene registry id, symbol) pair returned by disease-to-gene mapping.
type GeneRef struct {
	GeneID     string `json:"gene_id"`
	GeneSymbol string `json:"gene_symbol"`
}

// GeneScore links a diagnosis row to the genes mapped from its registry id.
type GeneScore struct {
	RegistryID    int       `json:"omim_id"`
	SyndromeName  string    `json:"syndrome_name"`
	Genes         []GeneRef `json:"genes"`
	GestaltScore  float64   `json:"gestalt_score"`
	FeatureScore  float64   `json:"feature_score"`
	CombinedScore float64   `json:"combined_score"`
	HasMask       bool      `json:"has_mask"`
}

// CheckResult is the outcome of one named quality criterion.
type CheckResult struct {
	Name   string   `json:"name"`
	Passed bool     `json:"passed"`
	Issues []string `json:"issues,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Diagnostics are tracked alongside a verdict but never decide it.
type Diagnostics struct {
	BenignExcluded       int      `json:"benign_excluded"`
	DiagnosisGeneMissing bool     `json:"diagnosis_gene_missing"`
	MolecularGenes       []string `json:"molecular_genes,omitempty"`
}

// QualityVerdict is the accept/reject decision for one case.
type QualityVerdict struct {
	CaseID           string        `json:"case_id"`
	Accepted         bool          `json:"accepted"`
	Issues           []string      `json:"issues"`
	Checks           []CheckResult `json:"checks"`
	Diagnostics      Diagnostics   `json:"diagnostics"`
	TrainingEligible bool          `json:"training_eligible"`
}
