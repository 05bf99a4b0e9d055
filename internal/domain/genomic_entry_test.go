package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) Document {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var doc Document
	require.NoError(t, dec.Decode(&doc))
	return doc
}

func TestGenomicEntryFromDocument(t *testing.T) {
	doc := decode(t, `{
		"entry_id": 17,
		"test_type": "PANEL",
		"result": "",
		"gene": {"gene_symbol": "KMT2D", "gene_id": "8085"},
		"variants": {
			"zygosity": "HETEROZYGOUS",
			"variant_information": "CDNA_LEVEL",
			"notes": "c.123A>G",
			"gene": {"gene_symbol": "OTHER"},
			"mutation1": {"mutation_type": "SUBSTITUTION", "location": 123, "original_base": "A", "substituted_base": "G"},
			"mutation2": {}
		}
	}`)

	e := GenomicEntryFromDocument(doc)

	assert.Equal(t, "17", e.EntryID)
	assert.Equal(t, "PANEL", e.TestType)
	assert.Equal(t, Unknown, e.Result)
	assert.Equal(t, Unknown, e.VariantType)
	assert.Equal(t, "HETEROZYGOUS", e.Zygosity)
	assert.Equal(t, "CDNA_LEVEL", e.VariantInformation)
	assert.True(t, e.HasVariants)
	require.Len(t, e.Mutations, 1)
	assert.Equal(t, "123", e.Mutations[0].Location)
	assert.Equal(t, "SUBSTITUTION", e.Mutations[0].MutationType)
	assert.Equal(t, "KMT2D", e.AttributedGene().GeneSymbol)
}

func TestGenomicEntryDefaults(t *testing.T) {
	e := GenomicEntryFromDocument(Document{"entry_id": "x"})

	assert.Equal(t, Unknown, e.TestType)
	assert.Equal(t, Unknown, e.Zygosity)
	assert.False(t, e.HasVariants)
	assert.Empty(t, e.Mutations)
	assert.True(t, e.AttributedGene().Empty())
}

func TestAttributedGeneFallsBackToVariantGene(t *testing.T) {
	doc := decode(t, `{"entry_id": "1", "variants": {"gene": {"gene_symbol": "CHD7"}}}`)
	assert.Equal(t, "CHD7", GenomicEntryFromDocument(doc).AttributedGene().GeneSymbol)
}

func TestDocumentAccessors(t *testing.T) {
	doc := decode(t, `{"n": 1.5, "s": "2", "flag": "1", "list": "single", "obj": {"a": true}, "null": null}`)

	assert.Equal(t, 1.5, doc.Float("n"))
	assert.Equal(t, 2.0, doc.Float("s"))
	assert.True(t, doc.Bool("flag"))
	assert.Equal(t, []interface{}{"single"}, doc.List("list"))
	assert.Empty(t, doc.List("null"))
	assert.True(t, doc.Obj("obj").Bool("a"))
	assert.Empty(t, doc.Obj("missing"))
	assert.True(t, doc.Has("null"))
	assert.Equal(t, "object", KindOf(doc["obj"]))
	assert.Equal(t, "number", KindOf(doc["n"]))
}

func TestGenotype(t *testing.T) {
	assert.Equal(t, "1", Genotype("HEMIZYGOUS"))
	assert.Equal(t, "1/1", Genotype("homozygous"))
	assert.Equal(t, "0/1", Genotype("COMPOUND_HETEROZYGOUS"))
	assert.Equal(t, "0/1", Genotype("UNKNOWN"))
}
