package hgvs

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	nucleotidePos = `[-*]?\d+(?:[-+]\d+)?`
	bases         = `[ACGTUNacgtun]+`
	base          = `[ACGTUNacgtun]`
	aminoAcid     = `(?:Ala|Arg|Asn|Asp|Cys|Gln|Glu|Gly|His|Ile|Leu|Lys|Met|Phe|Pro|Ser|Thr|Trp|Tyr|Val|Sec|Pyl|Ter|Xaa|\*)`
)

// Grammar tables. The patterns match the part after "<level>." only; the
// accession and level are split off first.
var (
	descriptionPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*(?:\.\d+)?):([cgmnrp])\.(.+)$`)

	nucleotideSubstitutionPattern = regexp.MustCompile(`^(` + nucleotidePos + `)(` + base + `)>(` + base + `)$`)
	nucleotideIdentityPattern     = regexp.MustCompile(`^(` + nucleotidePos + `)(?:_(` + nucleotidePos + `))?(` + bases + `)?=$`)
	nucleotideDelInsPattern       = regexp.MustCompile(`^(` + nucleotidePos + `)(?:_(` + nucleotidePos + `))?del(` + bases + `)?ins(` + bases + `)$`)
	nucleotideDeletionPattern     = regexp.MustCompile(`^(` + nucleotidePos + `)(?:_(` + nucleotidePos + `))?del(` + bases + `)?$`)
	nucleotideDuplicationPattern  = regexp.MustCompile(`^(` + nucleotidePos + `)(?:_(` + nucleotidePos + `))?dup(` + bases + `)?$`)
	nucleotideInsertionPattern    = regexp.MustCompile(`^(` + nucleotidePos + `)(?:_(` + nucleotidePos + `))?ins(` + bases + `)$`)
	nucleotideInversionPattern    = regexp.MustCompile(`^(` + nucleotidePos + `)_(` + nucleotidePos + `)inv(` + bases + `)?$`)

	proteinSubstitutionPattern = regexp.MustCompile(`^(` + aminoAcid + `)(\d+)(` + aminoAcid + `)$`)
	proteinIdentityPattern     = regexp.MustCompile(`^(` + aminoAcid + `)(\d+)=$`)
	proteinFrameshiftPattern   = regexp.MustCompile(`^(` + aminoAcid + `)(\d+)(` + aminoAcid + `)?fs((?:Ter|\*)(?:\d+|\?))?$`)
	proteinDelInsPattern       = regexp.MustCompile(`^(` + aminoAcid + `)(\d+)(?:_(` + aminoAcid + `)(\d+))?delins((?:` + aminoAcid + `)+)$`)
	proteinDeletionPattern     = regexp.MustCompile(`^(` + aminoAcid + `)(\d+)(?:_(` + aminoAcid + `)(\d+))?del$`)
	proteinDuplicationPattern  = regexp.MustCompile(`^(` + aminoAcid + `)(\d+)(?:_(` + aminoAcid + `)(\d+))?dup$`)
	proteinInsertionPattern    = regexp.MustCompile(`^(` + aminoAcid + `)(\d+)_(` + aminoAcid + `)(\d+)ins((?:` + aminoAcid + `)+)$`)

	plainPositionPattern = regexp.MustCompile(`^\d+$`)
)

// Result is the outcome of parsing one description: exactly one of Variant
// and Failure is set.
type Result struct {
	Input   string
	Variant *Variant
	Failure *Failure
}

// OK reports whether the input parsed.
func (r Result) OK() bool { return r.Variant != nil }

// Failure describes why a description did not match the grammar.
type Failure struct {
	Input  string `json:"input"`
	Reason string `json:"reason"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("invalid HGVS %q: %s", f.Input, f.Reason)
}

// Parser parses HGVS descriptions. It is stateless; one instance can be shared
// by any number of goroutines.
type Parser struct {
	validator *Validator
}

// NewParser creates a new HGVS parser
func NewParser() *Parser {
	return &Parser{
		validator: NewValidator(),
	}
}

// Parse parses an HGVS description. Malformed input yields a Result carrying a
// Failure, never an error.
func (p *Parser) Parse(input string) Result {
	res := Result{Input: input}
	fail := func(format string, args ...interface{}) Result {
		res.Failure = &Failure{Input: input, Reason: fmt.Sprintf(format, args...)}
		return res
	}

	if strings.TrimSpace(input) == "" {
		return fail("empty description")
	}
	if strings.ContainsAny(input, " \t\r\n") {
		return fail("description contains whitespace")
	}

	m := descriptionPattern.FindStringSubmatch(input)
	if m == nil {
		return fail("expected <accession>:<level>.<edit>")
	}
	accession, level, edit := m[1], Level(m[2]), m[3]
	if err := p.validator.ValidateAccession(accession); err != nil {
		return fail("%v", err)
	}

	var (
		v   *Variant
		err error
	)
	if level == LevelProtein {
		v, err = parseProteinEdit(edit)
	} else {
		v, err = parseNucleotideEdit(level, edit)
	}
	if err != nil {
		return fail("%v", err)
	}
	v.Accession = accession
	v.Level = level
	res.Variant = v
	return res
}

func parseNucleotideEdit(level Level, edit string) (*Variant, error) {
	var v *Variant
	if m := nucleotideSubstitutionPattern.FindStringSubmatch(edit); m != nil {
		v = &Variant{Start: m[1], Edit: EditSubstitution, Ref: m[2], Alt: m[3]}
	} else if m := nucleotideIdentityPattern.FindStringSubmatch(edit); m != nil {
		v = &Variant{Start: m[1], End: m[2], Edit: EditIdentity, Ref: m[3]}
	} else if m := nucleotideDelInsPattern.FindStringSubmatch(edit); m != nil {
		v = &Variant{Start: m[1], End: m[2], Edit: EditDelIns, Ref: m[3], Alt: m[4]}
	} else if m := nucleotideDeletionPattern.FindStringSubmatch(edit); m != nil {
		v = &Variant{Start: m[1], End: m[2], Edit: EditDeletion, Ref: m[3]}
	} else if m := nucleotideDuplicationPattern.FindStringSubmatch(edit); m != nil {
		v = &Variant{Start: m[1], End: m[2], Edit: EditDuplication, Ref: m[3]}
	} else if m := nucleotideInsertionPattern.FindStringSubmatch(edit); m != nil {
		v = &Variant{Start: m[1], End: m[2], Edit: EditInsertion, Alt: m[3]}
	} else if m := nucleotideInversionPattern.FindStringSubmatch(edit); m != nil {
		v = &Variant{Start: m[1], End: m[2], Edit: EditInversion, Ref: m[3]}
	} else {
		return nil, fmt.Errorf("unrecognized %s. edit %q", level, edit)
	}

	// Genomic and mitochondrial coordinates have no intronic or UTR offsets.
	if level == LevelGenomic || level == LevelMitochondrial {
		for _, pos := range []string{v.Start, v.End} {
			if pos != "" && !plainPositionPattern.MatchString(pos) {
				return nil, fmt.Errorf("position %q not allowed at %s. level", pos, level)
			}
		}
	}
	if level == LevelRNA && strings.ContainsAny(v.Ref+v.Alt, "ACGTUNt") {
		return nil, fmt.Errorf("RNA bases must be lowercase a/c/g/u, got %q", v.Ref+v.Alt)
	}
	if level != LevelRNA && strings.ContainsAny(v.Ref+v.Alt, "acgtun") {
		return nil, fmt.Errorf("DNA bases must be uppercase, got %q", v.Ref+v.Alt)
	}
	return v, nil
}

func parseProteinEdit(edit string) (*Variant, error) {
	switch edit {
	case "?", "(?)":
		return &Variant{Edit: EditUnknown}, nil
	case "0", "(0)":
		return &Variant{Edit: EditUnknown, Start: "0"}, nil
	case "=", "(=)":
		return &Variant{Edit: EditIdentity}, nil
	}

	predicted := false
	if strings.HasPrefix(edit, "(") && strings.HasSuffix(edit, ")") {
		predicted = true
		edit = edit[1 : len(edit)-1]
	}

	var v *Variant
	if m := proteinIdentityPattern.FindStringSubmatch(edit); m != nil {
		v = &Variant{Ref: m[1], Start: m[2], Edit: EditIdentity}
	} else if m := proteinSubstitutionPattern.FindStringSubmatch(edit); m != nil {
		v = &Variant{Ref: m[1], Start: m[2], Alt: m[3], Edit: EditSubstitution}
	} else if m := proteinFrameshiftPattern.FindStringSubmatch(edit); m != nil {
		v = &Variant{Ref: m[1], Start: m[2], Alt: m[3], Tail: m[4], Edit: EditFrameshift}
	} else if m := proteinDelInsPattern.FindStringSubmatch(edit); m != nil {
		v = &Variant{Ref: m[1], Start: m[2], EndResidue: m[3], End: m[4], Alt: m[5], Edit: EditDelIns}
	} else if m := proteinDeletionPattern.FindStringSubmatch(edit); m != nil {
		v = &Variant{Ref: m[1], Start: m[2], EndResidue: m[3], End: m[4], Edit: EditDeletion}
	} else if m := proteinDuplicationPattern.FindStringSubmatch(edit); m != nil {
		v = &Variant{Ref: m[1], Start: m[2], EndResidue: m[3], End: m[4], Edit: EditDuplication}
	} else if m := proteinInsertionPattern.FindStringSubmatch(edit); m != nil {
		v = &Variant{Ref: m[1], Start: m[2], EndResidue: m[3], End: m[4], Alt: m[5], Edit: EditInsertion}
	} else {
		return nil, fmt.Errorf("unrecognized p. edit %q", edit)
	}
	v.Predicted = predicted
	return v, nil
}
