package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genomic-case-qc/internal/domain"
	"github.com/genomic-case-qc/internal/overrides"
	"github.com/genomic-case-qc/internal/pipeline"
)

// Flags on the global command tree keep their values between executions, so
// every test passes its settings through a config file.

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func writeConfig(t *testing.T, root string) string {
	t.Helper()
	path := filepath.Join(root, "caseqc.yaml")
	writeFile(t, path, fmt.Sprintf(`
input:
  case_dir: %[1]s
overrides:
  path: %[1]s/hgvs_errors.json
resolver:
  enable_rs_lookup: false
pipeline:
  workers: 2
  verdict_log: %[1]s/qc_output.json
logging:
  level: error
`, root))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "caseqc dev\n", out)
}

func TestRunAndDiffCommands(t *testing.T) {
	root := t.TempDir()
	cfg := writeConfig(t, root)
	writeFile(t, filepath.Join(root, "cases", "1.json"), `{
		"case_id": "1",
		"detected_syndromes": [{"omim_id": 100, "syndrome_name": "CHARGE", "gestalt_score": 0.7}],
		"selected_syndromes": [{"omim_id": 100, "syndrome_name": "CHARGE", "diagnosis": "MOLECULARLY_DIAGNOSED"}],
		"genomic_entries": ["e1"]
	}`)
	writeFile(t, filepath.Join(root, "cases", "2.json"), `{
		"case_id": "2",
		"detected_syndromes": [{"omim_id": 100, "syndrome_name": "CHARGE", "gestalt_score": 0}],
		"selected_syndromes": [],
		"genomic_entries": ["e1"]
	}`)
	writeFile(t, filepath.Join(root, "genomic_entries", "e1.json"), `{
		"entry_id": "e1",
		"test_type": "PANEL",
		"result": "ABNORMAL",
		"gene": {"gene_symbol": "CHD7"},
		"variants": {"variant_information": "CDNA_LEVEL", "hgvs_variant_description": "NM_017780.3:c.2A>G"}
	}`)

	out, err := execute(t, "--config", cfg, "run", "--json")
	require.NoError(t, err)

	var report pipeline.BatchReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, []string{"1"}, report.Accepted())
	assert.Equal(t, []string{"2"}, report.Rejected())
	assert.FileExists(t, filepath.Join(root, "qc_output.json"))

	out, err = execute(t, "--config", cfg, "diff")
	require.NoError(t, err)
	assert.Contains(t, out, "= passed =\nold_only: []\nnew_only: []\n")
}

func TestRunCommand_InvalidConfig(t *testing.T) {
	root := t.TempDir()
	cfg := filepath.Join(root, "caseqc.yaml")
	writeFile(t, cfg, "input:\n  schema: xml\n")

	_, err := execute(t, "--config", cfg, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input schema")
}

func TestOverridesCommands(t *testing.T) {
	root := t.TempDir()
	cfg := writeConfig(t, root)

	store, err := overrides.OpenFile(filepath.Join(root, "hgvs_errors.json"), 1, nil)
	require.NoError(t, err)
	require.NoError(t, store.RecordFailure(context.Background(), "e1",
		domain.Document{"entry_id": "e1"}, nil, []string{"c.12??"}))
	require.NoError(t, store.RecordFailure(context.Background(), "e2",
		domain.Document{"entry_id": "e2"}, []string{"NM_017780.3:c.2A>G"}, nil))
	require.NoError(t, store.Close())

	out, err := execute(t, "--config", cfg, "overrides", "list", "--pending")
	require.NoError(t, err)
	assert.Contains(t, out, "e1")
	assert.NotContains(t, out, "e2")
	assert.Contains(t, out, "version 1")

	_, err = execute(t, "--config", cfg, "overrides", "set-cleaned", "e1", "c.12??")
	require.Error(t, err)

	out, err = execute(t, "--config", cfg, "overrides", "set-cleaned", "e1", "NM_017780.3:c.2A>G")
	require.NoError(t, err)
	assert.Equal(t, "e1 updated, store version 2\n", out)

	out, err = execute(t, "--config", cfg, "overrides", "set-gene", "e1", "--symbol", "CHD7")
	require.NoError(t, err)
	assert.Equal(t, "e1 updated, store version 3\n", out)

	out, err = execute(t, "--config", cfg, "overrides", "show", "e1")
	require.NoError(t, err)
	var entry overrides.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entry))
	assert.Equal(t, []string{"NM_017780.3:c.2A>G"}, entry.Cleaned)
	require.NotNil(t, entry.CorrectGene)
	assert.Equal(t, "CHD7", entry.CorrectGene.GeneSymbol)

	_, err = execute(t, "--config", cfg, "overrides", "show", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	exported := filepath.Join(root, "export.json")
	_, err = execute(t, "--config", cfg, "overrides", "export", exported)
	require.NoError(t, err)
	var file overrides.File
	raw, err := os.ReadFile(exported)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &file))
	assert.Equal(t, 3, file.Version)
	assert.Len(t, file.Data, 2)

	out, err = execute(t, "--config", cfg, "overrides", "import", exported)
	require.NoError(t, err)
	assert.Equal(t, "imported 0, skipped 2, version 3\n", out)
}
