package resolver

import (
	"regexp"
	"strings"

	"github.com/genomic-case-qc/pkg/hgvs"
)

var innermostGroup = regexp.MustCompile(`\(([^()]*)\)`)

// Clean normalizes a candidate before parsing: whitespace is removed, the
// known typos deldel and < are fixed, and descriptions carrying several
// bracketed annotations such as NM_000001.1(CHD7):c.1A>G(p.Arg1Gly) are
// reduced to accession:edit.
func Clean(candidate string) string {
	s := hgvs.StripWhitespace(candidate)
	s = strings.ReplaceAll(s, "deldel", "del")
	s = strings.ReplaceAll(s, "<", ">")

	if len(innermostGroup.FindAllStringIndex(s, -1)) < 2 {
		return s
	}
	accession, edit, found := strings.Cut(s, ":")
	if !found {
		return s
	}
	a := lastAccepted(accession, hgvs.IsAccession)
	e := lastAccepted(edit, hgvs.IsEditFragment)
	if a == "" || e == "" {
		return s
	}
	return a + ":" + e
}

// lastAccepted peels bracket groups from the inside out and returns the last
// fragment accept likes. The text left outside all brackets is tried last.
func lastAccepted(s string, accept func(string) bool) string {
	var picked string
	for {
		loc := innermostGroup.FindStringSubmatchIndex(s)
		if loc == nil {
			break
		}
		if fragment := s[loc[2]:loc[3]]; accept(fragment) {
			picked = fragment
		}
		s = s[:loc[0]] + s[loc[1]:]
	}
	if accept(s) {
		picked = s
	}
	return picked
}
