package domain

// Mutation is one structured mutation sub-record of a genomic entry. Values
// are kept as strings; upstream exports mix numbers and strings freely.
type Mutation struct {
	MutationType       string
	Location           string
	FirstAminoPosition string
	LastAminoPosition  string
	FirstAminoAcid     string
	OriginalBase       string
	LastAminoAcid      string
	SubstitutedBase    string
	InsertedBases      string
	DeletedBases       string
	Transcript         string
	RSNumber           string
}

// GenomicEntry is one molecular test result.
type GenomicEntry struct {
	EntryID     string
	TestType    string
	Result      string
	VariantType string

	// Gene is the entry's top-level gene; VariantGene the one nested under variants.
	Gene        Gene
	VariantGene Gene

	Zygosity           string
	VariantInformation string
	HGVSDescription    string
	Notes              string
	Mutations          []Mutation

	// HasVariants is false when the variants object is absent or empty.
	HasVariants bool

	Raw Document
}

// GenomicEntryFromDocument reads a genomic entry. Missing fields take their
// defaults; the function never fails.
func GenomicEntryFromDocument(doc Document) *GenomicEntry {
	variants := doc.Obj("variants")
	e := &GenomicEntry{
		EntryID:            doc.Str("entry_id"),
		TestType:           orUnknown(doc.Str("test_type")),
		Result:             orUnknown(doc.Str("result")),
		VariantType:        orUnknown(doc.Str("variant_type")),
		Gene:               GeneFromDocument(doc.Obj("gene")),
		VariantGene:        GeneFromDocument(variants.Obj("gene")),
		Zygosity:           orUnknown(variants.Str("zygosity")),
		VariantInformation: orUnknown(variants.Str("variant_information")),
		HGVSDescription:    variants.Str("hgvs_variant_description"),
		Notes:              variants.Str("notes"),
		HasVariants:        len(variants) > 0,
		Raw:                doc,
	}

	var subs []Document
	if variants.Has("mutation") {
		subs = []Document{variants.Obj("mutation")}
	} else if variants.Has("mutation1") {
		subs = []Document{variants.Obj("mutation1"), variants.Obj("mutation2")}
	}
	for _, m := range subs {
		if len(m) == 0 {
			continue
		}
		e.Mutations = append(e.Mutations, mutationFromDocument(m))
	}
	return e
}

func mutationFromDocument(m Document) Mutation {
	return Mutation{
		MutationType:       orUnknown(m.Str("mutation_type")),
		Location:           m.Str("location"),
		FirstAminoPosition: m.Str("first_amino_position"),
		LastAminoPosition:  m.Str("last_amino_position"),
		FirstAminoAcid:     m.Str("first_amino_acid"),
		OriginalBase:       m.Str("original_base"),
		LastAminoAcid:      m.Str("last_amino_acid"),
		SubstitutedBase:    m.Str("substituted_base"),
		InsertedBases:      m.Str("inserted_bases"),
		DeletedBases:       m.Str("deleted_bases"),
		Transcript:         m.Str("transcript"),
		RSNumber:           m.Str("rs_number"),
	}
}

// AttributedGene returns the top-level gene when populated, else the one
// nested under variants.
func (e *GenomicEntry) AttributedGene() Gene {
	if !e.Gene.Empty() {
		return e.Gene
	}
	return e.VariantGene
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
