package resolver

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genomic-case-qc/internal/documents"
	"github.com/genomic-case-qc/internal/domain"
	"github.com/genomic-case-qc/internal/logging"
	"github.com/genomic-case-qc/internal/overrides"
	"github.com/genomic-case-qc/pkg/hgvs"
)

type fakeRS struct {
	results map[string][]string
	err     error
	calls   int
}

func (f *fakeRS) DescriptionsForRS(_ context.Context, rs string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results[rs], nil
}

func newStore(t *testing.T) *overrides.Store {
	t.Helper()
	store, err := overrides.OpenFile(filepath.Join(t.TempDir(), "hgvs_errors.json"), 1, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newResolver(t *testing.T, store OverrideStore, rs RSLookup) *Resolver {
	t.Helper()
	return New(hgvs.NewParser(), store, rs, logging.Discard())
}

func entry(t *testing.T, s string) *domain.GenomicEntry {
	t.Helper()
	doc, err := documents.Decode(strings.NewReader(s), "test")
	require.NoError(t, err)
	return domain.GenomicEntryFromDocument(doc)
}

const substitutionEntry = `{
	"entry_id": "e1",
	"test_type": "PANEL",
	"result": "ABNORMAL",
	"gene": {"gene_id": "55636", "gene_symbol": "CHD7"},
	"variants": {
		"variant_information": "CDNA_LEVEL",
		"zygosity": "HETEROZYGOUS",
		"mutation": {
			"mutation_type": "SUBSTITUTION",
			"location": "123",
			"original_base": "a",
			"substituted_base": "g",
			"transcript": "NM_000001.1"
		}
	}
}`

func TestResolve_ReconstructsSubstitution(t *testing.T) {
	store := newStore(t)
	r := newResolver(t, store, nil)

	res := r.Resolve(context.Background(), entry(t, substitutionEntry))

	assert.Equal(t, []string{"NM_000001.1:c.123A>G"}, res.VariantStrings())
	assert.Equal(t, []string{"NM_000001.1:c.123A>G"}, res.Candidates)
	assert.Empty(t, res.Failed)
	assert.False(t, res.Corrected)
	assert.Equal(t, "CHD7", res.Gene.GeneSymbol)
	assert.False(t, store.Contains("e1"), "nothing recorded when every candidate parses")
}

func TestResolve_DeduplicatesAndRecordsInvalidCandidate(t *testing.T) {
	store := newStore(t)
	r := newResolver(t, store, nil)

	e := entry(t, `{
		"entry_id": "e2",
		"variants": {
			"variant_information": "CDNA_LEVEL",
			"hgvs_variant_description": "NM_000001.1:c.123>G",
			"notes": "NM_000001.1: c.123A>G",
			"mutation": {
				"mutation_type": "SUBSTITUTION",
				"location": "123",
				"original_base": "A",
				"substituted_base": "G",
				"transcript": "NM_000001.1"
			}
		}
	}`)
	res := r.Resolve(context.Background(), e)

	require.Len(t, res.Variants, 1)
	assert.Equal(t, "NM_000001.1:c.123A>G", res.Variants[0].String())
	assert.Equal(t, []string{"NM_000001.1:c.123>G"}, res.Failed)

	recorded, ok := store.GetEntry("e2")
	require.True(t, ok)
	assert.Equal(t, []string{"NM_000001.1:c.123A>G"}, recorded.Correct)
	assert.Equal(t, []string{"NM_000001.1:c.123>G"}, recorded.Wrong)
	require.Len(t, recorded.Info, 1)
	assert.Equal(t, "e2", recorded.Info[0].Str("entry_id"))
	assert.NotEmpty(t, recorded.Info[0].List("message"))
}

func TestResolve_KeepsMoreCompleteEquivalent(t *testing.T) {
	store := newStore(t)
	r := newResolver(t, store, nil)

	res := r.Resolve(context.Background(), entry(t, `{
		"entry_id": "e3",
		"variants": {
			"hgvs_variant_description": "NM_000001.1:c.100del",
			"notes": "NM_000001.1:c.100delT"
		}
	}`))

	assert.Equal(t, []string{"NM_000001.1:c.100delT"}, res.VariantStrings())
	assert.Empty(t, res.Failed)
}

func TestResolve_UnparseableNotes(t *testing.T) {
	store := newStore(t)
	r := newResolver(t, store, nil)

	res := r.Resolve(context.Background(), entry(t, `{
		"entry_id": "e4",
		"variants": {"notes": "heterozygous c.1234 somewhere in exon 5"}
	}`))

	assert.Empty(t, res.Variants)
	require.Len(t, res.Failed, 1)

	recorded, ok := store.GetEntry("e4")
	require.True(t, ok)
	assert.NotEmpty(t, recorded.Wrong)
	assert.Empty(t, recorded.Correct)
}

func TestResolve_Idempotent(t *testing.T) {
	store := newStore(t)
	r := newResolver(t, store, nil)
	doc := `{
		"entry_id": "e5",
		"variants": {
			"variant_information": "CDNA_LEVEL",
			"hgvs_variant_description": "NM_000001.1:c.5dupA",
			"notes": "c.12?? unclear",
			"mutation1": {"mutation_type": "DELETION", "location": "10_12", "deleted_bases": "tcc", "transcript": "NM_000001.1"},
			"mutation2": {}
		}
	}`

	first := r.Resolve(context.Background(), entry(t, doc))
	before, _ := store.GetEntry("e5")
	second := r.Resolve(context.Background(), entry(t, doc))
	after, _ := store.GetEntry("e5")

	require.NotNil(t, before)
	assert.Equal(t, first.VariantStrings(), second.VariantStrings())
	assert.Equal(t, first.Failed, second.Failed)
	assert.Equal(t, before, after, "recording the same failure twice changes nothing")
	assert.Equal(t, []string{"NM_000001.1:c.5dupA", "NM_000001.1:c.10_12delTCC"}, first.VariantStrings())
}

func TestResolve_CleanedOverrideShortCircuits(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.SetCleaned(ctx, "e1", []string{"NM_000002.3:c.77G>T", "garbage", "NM_000002.3:c.77G>T"}))
	require.NoError(t, store.SetCorrectGene(ctx, "e1", domain.Gene{GeneID: "1", GeneSymbol: "KMT2D"}))
	rs := &fakeRS{}
	r := newResolver(t, store, rs)

	res := r.Resolve(ctx, entry(t, substitutionEntry))

	assert.True(t, res.Corrected)
	assert.Equal(t, []string{"NM_000002.3:c.77G>T"}, res.VariantStrings())
	assert.Equal(t, []string{"garbage"}, res.Failed)
	assert.Equal(t, "KMT2D", res.Gene.GeneSymbol)
	assert.Zero(t, rs.calls)

	e, _ := store.GetEntry("e1")
	assert.Empty(t, e.Wrong, "curated failures are surfaced, not recorded")
}

func TestResolve_NoVariants(t *testing.T) {
	store := newStore(t)
	r := newResolver(t, store, nil)

	res := r.Resolve(context.Background(), entry(t, `{"entry_id": "e6", "variants": {}, "gene": {"gene_symbol": "X"}}`))
	assert.Empty(t, res.Variants)
	assert.Empty(t, res.Candidates)
	assert.False(t, store.Contains("e6"))

	res = r.Resolve(context.Background(), entry(t, `{"entry_id": "e7", "variants": {"gene": {"gene_symbol": "Y"}}}`))
	assert.Equal(t, "Y", res.Gene.GeneSymbol)
}

func TestResolve_RSLookup(t *testing.T) {
	store := newStore(t)
	rs := &fakeRS{results: map[string][]string{"rs123": {"NC_000001.11:g.1000A>G", "NC_000001.10:g.900A>G"}}}
	r := newResolver(t, store, rs)

	res := r.Resolve(context.Background(), entry(t, `{
		"entry_id": "e8",
		"variants": {"variant_information": "RS_NUMBER", "mutation": {"rs_number": "rs123"}}
	}`))

	assert.Equal(t, []string{"NC_000001.11:g.1000A>G"}, res.VariantStrings())
	assert.Equal(t, 1, rs.calls)
	assert.False(t, store.Contains("e8"))
}

func TestResolve_RSLookupFailureDegrades(t *testing.T) {
	store := newStore(t)
	rs := &fakeRS{err: &domain.LookupTimeoutError{Service: "mutalyzer", Key: "rs1", Attempts: 3, Err: errors.New("timeout")}}
	r := newResolver(t, store, rs)

	res := r.Resolve(context.Background(), entry(t, `{
		"entry_id": "e9",
		"variants": {
			"hgvs_variant_description": "NM_000001.1:c.1A>G",
			"mutation": {"rs_number": "rs1"}
		}
	}`))

	assert.Equal(t, []string{"NM_000001.1:c.1A>G"}, res.VariantStrings())
	assert.Empty(t, res.Failed)
	require.Len(t, res.Messages, 1)
	assert.Contains(t, res.Messages[0], "rs lookup")
	assert.True(t, store.Contains("e9"), "the lookup failure is kept for curation")
}

func TestResolve_ConflictingFieldsNeverPanics(t *testing.T) {
	store := newStore(t)
	r := newResolver(t, store, nil)

	res := r.Resolve(context.Background(), entry(t, `{
		"entry_id": "e10",
		"variants": {
			"variant_information": "PROTEIN_LEVEL",
			"mutation": {
				"mutation_type": "SUBSTITUTION",
				"first_amino_position": "12",
				"last_amino_position": "13",
				"first_amino_acid": "R (Arg)",
				"last_amino_acid": "G (Gly)",
				"transcript": "NP_000001.1"
			}
		}
	}`))

	assert.Empty(t, res.Variants)
	require.Len(t, res.Messages, 1)
	assert.Contains(t, res.Messages[0], "positions 12 and 13 differ")
	assert.True(t, store.Contains("e10"))
}

type panickingStore struct{ OverrideStore }

func (panickingStore) GetEntry(string) (*overrides.Entry, bool) { panic("boom") }

func TestResolve_RecoversFromPanic(t *testing.T) {
	backing := newStore(t)
	r := newResolver(t, panickingStore{OverrideStore: backing}, nil)

	var res *Resolution
	assert.NotPanics(t, func() {
		res = r.Resolve(context.Background(), entry(t, substitutionEntry))
	})
	assert.Empty(t, res.Variants)
	assert.True(t, backing.Contains("e1"))
}

func TestResolve_RoundTrip(t *testing.T) {
	store := newStore(t)
	r := newResolver(t, store, nil)
	parser := hgvs.NewParser()

	res := r.Resolve(context.Background(), entry(t, `{
		"entry_id": "e11",
		"variants": {
			"variant_information": "CDNA_LEVEL",
			"hgvs_variant_description": "NM_000001.1:c.76_78delinsTT",
			"notes": "NM_000001.1:c.88+1G>A",
			"mutation": {"mutation_type": "INSERTION", "location": "5_6", "inserted_bases": "ag", "transcript": "NM_000001.1"}
		}
	}`))
	require.Len(t, res.Variants, 3)

	for _, v := range res.Variants {
		again := parser.Parse(v.String())
		require.True(t, again.OK(), "reparse %s", v)
		assert.True(t, hgvs.Equivalent(v, again.Variant))
	}
}

func TestResolve_MutationWithoutPosition(t *testing.T) {
	tests := []struct {
		name       string
		mutation   string
		wantFailed []string
		recorded   bool
	}{
		{
			name:       "edit without position is recorded",
			mutation:   `{"mutation_type": "SUBSTITUTION", "original_base": "A", "substituted_base": "G", "transcript": "NM_000001.1"}`,
			wantFailed: []string{"NM_000001.1:c.A>G"},
			recorded:   true,
		},
		{
			name:     "empty slot is ignored",
			mutation: `{}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			r := newResolver(t, store, nil)

			res := r.Resolve(context.Background(), entry(t, `{
				"entry_id": "e12",
				"variants": {"variant_information": "CDNA_LEVEL", "mutation": `+tt.mutation+`}
			}`))

			assert.Empty(t, res.Variants)
			assert.Equal(t, tt.wantFailed, res.Failed)
			assert.Equal(t, tt.recorded, store.Contains("e12"))
			if tt.recorded {
				recorded, ok := store.GetEntry("e12")
				require.True(t, ok)
				assert.Equal(t, tt.wantFailed, recorded.Wrong)
			}
		})
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"gene and protein annotations", "NM_000001.1(CHD7):c.1A>G(p.Arg1Gly)", "NM_000001.1:c.1A>G"},
		{"doubled del", "NM_000001.1:c.123deldelA", "NM_000001.1:c.123delA"},
		{"reversed substitution arrow", "NM_000001.1:c.123A<G", "NM_000001.1:c.123A>G"},
		{"single annotation kept", " NM_000001.1(CHD7):c.1A>G", "NM_000001.1(CHD7):c.1A>G"},
		{"inner whitespace", "NM_000001.1:c.1\tA > G\n", "NM_000001.1:c.1A>G"},
		{"already clean", "NM_000001.1:c.1A>G", "NM_000001.1:c.1A>G"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}
