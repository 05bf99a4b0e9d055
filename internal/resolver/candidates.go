package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/genomic-case-qc/internal/domain"
	"github.com/genomic-case-qc/pkg/hgvs"
)

// residuePattern matches the "X (XXX)" amino acid convention of upstream
// exports and captures the three-letter code.
var residuePattern = regexp.MustCompile(`\w \((\w+)\)`)

// extractAmino returns the three-letter code of an "X (XXX)" residue. Stop
// is written as Ter.
func extractAmino(residue string) string {
	m := residuePattern.FindStringSubmatch(residue)
	if m == nil {
		return ""
	}
	if m[1] == "Stop" {
		return "Ter"
	}
	return m[1]
}

// multiField returns the single non-empty value among fields. Two different
// non-empty values are a conflict.
func multiField(fields map[string]string, order ...string) (string, error) {
	var value, from string
	for _, name := range order {
		v := fields[name]
		if v == "" {
			continue
		}
		if value != "" && v != value {
			return "", fmt.Errorf("%s %q and %s %q differ", from, value, name, v)
		}
		value, from = v, name
	}
	return value, nil
}

// collect gathers candidate strings from the description, the notes and
// every mutation sub-record. Problems that prevent a candidate from being
// built are returned as notes.
func (r *Resolver) collect(ctx context.Context, e *domain.GenomicEntry) (candidates, notes []string) {
	if hgvs.LooksLikeVariant(e.HGVSDescription) {
		candidates = append(candidates, e.HGVSDescription)
	}
	if hgvs.LooksLikeVariant(e.Notes) {
		candidates = append(candidates, e.Notes)
	}

	prefix := domain.HGVSPrefixes[e.VariantInformation]
	for i, m := range e.Mutations {
		transcript := m.Transcript
		fullTranscript := hgvs.LooksLikeVariant(transcript)
		if fullTranscript {
			candidates = append(candidates, transcript)
			head, _, _ := strings.Cut(transcript, ":")
			if hgvs.LooksLikeVariant(head) {
				transcript = ""
			} else {
				transcript = head
			}
		}

		if m.RSNumber != "" && r.rs != nil {
			descriptions, err := r.rs.DescriptionsForRS(ctx, m.RSNumber)
			if err != nil {
				r.log.WithError(err).WithFields(logrus.Fields{
					"entry_id":  e.EntryID,
					"rs_number": m.RSNumber,
				}).Warn("rs number lookup failed")
				notes = append(notes, fmt.Sprintf("mutation %d: rs lookup for %s failed: %v", i+1, m.RSNumber, err))
			} else if len(descriptions) > 0 {
				candidates = append(candidates, descriptions[0])
			}
		}
		// A mutation without any position is still reconstructed so the
		// unparseable result reaches the override store, unless it names no
		// edit or the rs number or transcript already supplied its candidate.
		if m.Location == "" && m.FirstAminoPosition == "" && m.LastAminoPosition == "" &&
			(m.RSNumber != "" || fullTranscript || !describesEdit(m)) {
			continue
		}

		candidate, err := reconstruct(transcript, prefix, m)
		if err != nil {
			notes = append(notes, fmt.Sprintf("mutation %d: %v", i+1, err))
			continue
		}
		candidates = append(candidates, candidate)
	}
	return candidates, notes
}

// reconstruct builds a candidate from the structured fields of one mutation.
// describesEdit reports whether m carries a mutation type or any bases.
func describesEdit(m domain.Mutation) bool {
	if m.MutationType != "" && m.MutationType != domain.Unknown {
		return true
	}
	for _, v := range []string{m.FirstAminoAcid, m.OriginalBase, m.LastAminoAcid, m.SubstitutedBase, m.InsertedBases, m.DeletedBases} {
		if v != "" {
			return true
		}
	}
	return false
}

func reconstruct(transcript, prefix string, m domain.Mutation) (string, error) {
	fields := map[string]string{
		"first_amino_acid": m.FirstAminoAcid,
		"original_base":    m.OriginalBase,
		"last_amino_acid":  m.LastAminoAcid,
		"substituted_base": m.SubstitutedBase,
		"inserted_bases":   m.InsertedBases,
		"deleted_bases":    m.DeletedBases,
	}
	orig, err := multiField(fields, "first_amino_acid", "original_base")
	if err != nil {
		return "", err
	}
	sub, err := multiField(fields, "last_amino_acid", "substituted_base", "inserted_bases", "deleted_bases")
	if err != nil {
		return "", err
	}
	op := domain.HGVSOperators[m.MutationType]

	if m.FirstAminoPosition != "" || m.LastAminoPosition != "" {
		return reconstructProtein(transcript, prefix, m.FirstAminoPosition, m.LastAminoPosition, orig, op, sub)
	}
	s := fmt.Sprintf("%s:%s.%s%s%s%s", transcript, prefix, m.Location, strings.ToUpper(orig), op, strings.ToUpper(sub))
	return hgvs.StripWhitespace(s), nil
}

func reconstructProtein(transcript, prefix, pos1, pos2, orig, op, sub string) (string, error) {
	orig = extractAmino(orig)
	sub = extractAmino(sub)

	single := func() (string, error) {
		if pos1 == "" {
			pos1 = pos2
		}
		if pos2 == "" {
			pos2 = pos1
		}
		if pos1 != pos2 {
			return "", fmt.Errorf("amino acid positions %s and %s differ", pos1, pos2)
		}
		return pos1, nil
	}

	var s string
	switch {
	case op == ">":
		pos, err := single()
		if err != nil {
			return "", err
		}
		s = fmt.Sprintf("%s:%s.%s%s%s", transcript, prefix, orig, pos, sub)
	case orig != "" && sub != "":
		s = fmt.Sprintf("%s:%s.%s%s_%s%s%s", transcript, prefix, orig, pos1, sub, pos2, op)
	default:
		pos, err := single()
		if err != nil {
			return "", err
		}
		s = fmt.Sprintf("%s:%s.%s%s%s%s", transcript, prefix, orig, sub, pos, op)
	}
	return hgvs.StripWhitespace(s), nil
}
