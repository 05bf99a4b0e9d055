package overrides

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genomic-case-qc/internal/domain"
)

func writeStoreFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hgvs_errors.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestOpenFile_CreatesMissingStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hgvs_errors.json")

	store, err := OpenFile(path, 2, nil)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, 2, store.Version())
	assert.Empty(t, store.Keys())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var f File
	require.NoError(t, json.Unmarshal(raw, &f))
	assert.Equal(t, 2, f.Version)
}

func TestOpenFile_VersionContract(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		minVersion int
		check      func(t *testing.T, err error)
	}{
		{
			name:       "missing version",
			content:    `{"data": {}}`,
			minVersion: 1,
			check: func(t *testing.T, err error) {
				var target *domain.MissingVersionError
				assert.True(t, errors.As(err, &target), "got %v", err)
			},
		},
		{
			name:       "null version",
			content:    `{"version": null, "data": {}}`,
			minVersion: 1,
			check: func(t *testing.T, err error) {
				var target *domain.MissingVersionError
				assert.True(t, errors.As(err, &target), "got %v", err)
			},
		},
		{
			name:       "stale version",
			content:    `{"version": 1, "data": {}}`,
			minVersion: 3,
			check: func(t *testing.T, err error) {
				var target *domain.StaleStoreError
				require.True(t, errors.As(err, &target), "got %v", err)
				assert.Equal(t, 1, target.Found)
				assert.Equal(t, 3, target.Required)
			},
		},
		{
			name:       "non integer version",
			content:    `{"version": "two", "data": {}}`,
			minVersion: 1,
			check: func(t *testing.T, err error) {
				var target *domain.MalformedInputError
				assert.True(t, errors.As(err, &target), "got %v", err)
			},
		},
		{
			name:       "not an object",
			content:    `[1, 2, 3]`,
			minVersion: 1,
			check: func(t *testing.T, err error) {
				var target *domain.MalformedInputError
				assert.True(t, errors.As(err, &target), "got %v", err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenFile(writeStoreFile(t, tt.content), tt.minVersion, nil)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestOpenFile_LoadsEntries(t *testing.T) {
	path := writeStoreFile(t, `{
		"version": 4,
		"data": {
			"e1": {"info": [{"entry_id": "e1"}], "correct": [], "wrong": ["NM_1:c.x"], "cleaned": ["NM_000001.1:c.123A>G"]},
			"e2": {"info": [], "correct": [], "wrong": [], "cleaned": [], "correct_gene": {"gene_symbol": "CHD7", "gene_id": "55636"}}
		}
	}`)

	store, err := OpenFile(path, 3, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, store.Version())
	assert.Equal(t, []string{"e1", "e2"}, store.Keys())
	assert.True(t, store.Contains("e1"))
	assert.False(t, store.Contains("e3"))
	assert.Equal(t, []string{"NM_000001.1:c.123A>G"}, store.GetCleaned("e1"))
	assert.Empty(t, store.GetCleaned("e2"))
	assert.Empty(t, store.GetCleaned("missing"))

	e2, ok := store.GetEntry("e2")
	require.True(t, ok)
	require.NotNil(t, e2.CorrectGene)
	assert.Equal(t, "CHD7", e2.CorrectGene.GeneSymbol)
}

func TestStore_RecordFailurePersistsImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	ctx := context.Background()

	store, err := OpenFile(path, 1, nil)
	require.NoError(t, err)

	info := domain.Document{"entry_id": "e1", "variants": map[string]interface{}{"notes": "see report"}}
	require.NoError(t, store.RecordFailure(ctx, "e1", info, nil, []string{"c.??"}))
	require.NoError(t, store.RecordFailure(ctx, "e1", info, []string{"NM_000001.1:c.1A>G"}, []string{"c.??", "x"}))

	// A second process sees the merged entry without any explicit flush.
	reopened, err := OpenFile(path, 1, nil)
	require.NoError(t, err)

	e, ok := reopened.GetEntry("e1")
	require.True(t, ok)
	assert.Len(t, e.Info, 1)
	assert.Equal(t, []string{"NM_000001.1:c.1A>G"}, e.Correct)
	assert.Equal(t, []string{"c.??", "x"}, e.Wrong)
	assert.Empty(t, e.Cleaned)
}

func TestStore_EmptyListsEncodeAsArrays(t *testing.T) {
	ctx := context.Background()
	path := writeStoreFile(t, `{"version": 1, "data": {"old": {"info": null, "correct": null, "wrong": ["c.?"], "cleaned": null}}}`)

	store, err := OpenFile(path, 1, nil)
	require.NoError(t, err)
	require.NoError(t, store.RecordFailure(ctx, "fresh", domain.Document{"entry_id": "fresh"}, nil, nil))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var file struct {
		Data map[string]map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &file))

	tests := []struct {
		id    string
		field string
	}{
		{"fresh", "info"},
		{"fresh", "correct"},
		{"fresh", "wrong"},
		{"fresh", "cleaned"},
		{"old", "info"},
		{"old", "correct"},
		{"old", "cleaned"},
	}
	for _, tt := range tests {
		t.Run(tt.id+"/"+tt.field, func(t *testing.T) {
			require.Contains(t, file.Data, tt.id)
			assert.IsType(t, []interface{}{}, file.Data[tt.id][tt.field])
		})
	}
	assert.NotContains(t, string(raw), "null")
}

func TestStore_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenFile(filepath.Join(dir, "store.json"), 1, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.SetCleaned(context.Background(), "e1", []string{"NM_000001.1:c.1A>G"}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "store.json", entries[0].Name())
}

func TestStore_GetEntryReturnsCopy(t *testing.T) {
	store, err := OpenFile(filepath.Join(t.TempDir(), "store.json"), 1, nil)
	require.NoError(t, err)
	require.NoError(t, store.SetCleaned(context.Background(), "e1", []string{"a"}))

	e, _ := store.GetEntry("e1")
	e.Cleaned[0] = "mutated"

	assert.Equal(t, []string{"a"}, store.GetCleaned("e1"))
}

func TestStore_BumpVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	store, err := OpenFile(path, 1, nil)
	require.NoError(t, err)

	v, err := store.BumpVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	reopened, err := OpenFile(path, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Version())
}

func TestStore_FailedWriteKeepsPreviousState(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, permissions are not enforced")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	store, err := OpenFile(path, 1, nil)
	require.NoError(t, err)

	// A read-only directory makes the temp file creation fail.
	require.NoError(t, os.Chmod(dir, 0500))
	defer os.Chmod(dir, 0755)

	err = store.SetCleaned(context.Background(), "e1", []string{"a"})
	assert.Error(t, err)
	assert.False(t, store.Contains("e1"))
}

func TestStore_ExportImport(t *testing.T) {
	ctx := context.Background()
	src, err := OpenFile(filepath.Join(t.TempDir(), "a.json"), 1, nil)
	require.NoError(t, err)
	require.NoError(t, src.SetCleaned(ctx, "e1", []string{"NM_000001.1:c.1A>G"}))
	require.NoError(t, src.RecordFailure(ctx, "e2", domain.Document{"entry_id": "e2"}, nil, []string{"bad"}))

	var buf bytes.Buffer
	require.NoError(t, src.ExportJSON(ctx, &buf))

	dst, err := OpenFile(filepath.Join(t.TempDir(), "b.json"), 1, nil)
	require.NoError(t, err)
	require.NoError(t, dst.SetCleaned(ctx, "e1", []string{"kept"}))

	imported, skipped, err := dst.ImportJSON(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, []string{"kept"}, dst.GetCleaned("e1"))
	assert.True(t, dst.Contains("e2"))
}

func TestStore_ImportRejectsMissingVersion(t *testing.T) {
	store, err := OpenFile(filepath.Join(t.TempDir(), "a.json"), 1, nil)
	require.NoError(t, err)

	_, _, err = store.ImportJSON(context.Background(), strings.NewReader(`{"data": {"e1": {}}}`))
	var target *domain.MissingVersionError
	assert.True(t, errors.As(err, &target))
	assert.False(t, store.Contains("e1"))
}
