package hgvs

import (
	"strings"
)

// Level is the coordinate system prefix of an HGVS description (the letter before the dot).
type Level string

const (
	LevelCoding        Level = "c"
	LevelGenomic       Level = "g"
	LevelMitochondrial Level = "m"
	LevelNonCoding     Level = "n"
	LevelRNA           Level = "r"
	LevelProtein       Level = "p"
)

// EditType is the kind of sequence change a variant describes.
type EditType string

const (
	EditSubstitution EditType = "substitution"
	EditDeletion     EditType = "deletion"
	EditDuplication  EditType = "duplication"
	EditInsertion    EditType = "insertion"
	EditDelIns       EditType = "delins"
	EditInversion    EditType = "inversion"
	EditIdentity     EditType = "identity"
	EditFrameshift   EditType = "frameshift"
	EditUnknown      EditType = "unknown"
)

// Variant is a syntactically valid HGVS variant description.
//
// For nucleotide levels Ref and Alt hold bases; for the protein level Ref is the
// three-letter residue at Start and Alt the replacement residue(s).
type Variant struct {
	Accession string   `json:"accession"`
	Level     Level    `json:"level"`
	Start     string   `json:"start"`
	End       string   `json:"end,omitempty"`
	Edit      EditType `json:"edit"`
	Ref       string   `json:"ref,omitempty"`
	Alt       string   `json:"alt,omitempty"`

	// protein only
	EndResidue string `json:"end_residue,omitempty"`
	Tail       string `json:"tail,omitempty"`
	Predicted  bool   `json:"predicted,omitempty"`
}

// Position renders the interval the edit applies to, without residues.
func (v *Variant) Position() string {
	if v.End == "" {
		return v.Start
	}
	return v.Start + "_" + v.End
}

// String serializes the variant back into HGVS notation. The output always
// parses again to an equivalent variant.
func (v *Variant) String() string {
	var b strings.Builder
	b.WriteString(v.Accession)
	b.WriteString(":")
	b.WriteString(string(v.Level))
	b.WriteString(".")
	if v.Level == LevelProtein {
		b.WriteString(v.proteinEdit())
	} else {
		b.WriteString(v.nucleotideEdit())
	}
	return b.String()
}

func (v *Variant) nucleotideEdit() string {
	pos := v.Position()
	switch v.Edit {
	case EditSubstitution:
		return pos + v.Ref + ">" + v.Alt
	case EditDeletion:
		return pos + "del" + v.Ref
	case EditDuplication:
		return pos + "dup" + v.Ref
	case EditInsertion:
		return pos + "ins" + v.Alt
	case EditDelIns:
		if v.Ref == "" {
			return pos + "delins" + v.Alt
		}
		return pos + "del" + v.Ref + "ins" + v.Alt
	case EditInversion:
		return pos + "inv" + v.Ref
	case EditIdentity:
		return pos + v.Ref + "="
	}
	return pos
}

func (v *Variant) proteinEdit() string {
	var body string
	switch v.Edit {
	case EditUnknown:
		if v.Start != "" {
			return v.Start
		}
		return "?"
	case EditIdentity:
		if v.Start == "" {
			body = "="
		} else {
			body = v.Ref + v.Start + "="
		}
	case EditSubstitution:
		body = v.Ref + v.Start + v.Alt
	case EditFrameshift:
		body = v.Ref + v.Start + v.Alt + "fs" + v.Tail
	default:
		body = v.Ref + v.Start
		if v.End != "" {
			body += "_" + v.EndResidue + v.End
		}
		switch v.Edit {
		case EditDeletion:
			body += "del"
		case EditDuplication:
			body += "dup"
		case EditInsertion:
			body += "ins" + v.Alt
		case EditDelIns:
			body += "delins" + v.Alt
		}
	}
	if v.Predicted {
		return "(" + body + ")"
	}
	return body
}

// Equivalent reports whether two variants describe the same change. They are
// equivalent when their serialized forms match, or when accession, level,
// position and edit type match and each of ref and alt is either equal on
// both sides or missing on one of them.
func Equivalent(a, b *Variant) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.String() == b.String() {
		return true
	}
	if a.Accession != b.Accession || a.Level != b.Level || a.Position() != b.Position() || a.Edit != b.Edit {
		return false
	}
	return lenientEqual(a.Ref, b.Ref) && lenientEqual(a.Alt, b.Alt)
}

func lenientEqual(x, y string) bool {
	return x == y || x == "" || y == ""
}

// Completeness counts the populated ref/alt fields; used to pick the most
// informative variant among equivalent ones.
func (v *Variant) Completeness() int {
	n := 0
	if v.Ref != "" {
		n++
	}
	if v.Alt != "" {
		n++
	}
	return n
}
