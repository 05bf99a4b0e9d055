// Package overrides provides the versioned curation store for genomic entries.
// Failed variant candidates are recorded here and curators supply cleaned
// replacements that take precedence over automatic reconstruction.
package overrides

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"

	"github.com/genomic-case-qc/internal/domain"
)

// ErrWriterClosed is returned by Writer methods after Close.
var ErrWriterClosed = errors.New("override writer closed")

// Entry is the correction record for one genomic entry id.
type Entry struct {
	Info        []domain.Document `json:"info"`
	Correct     []string          `json:"correct"`
	Wrong       []string          `json:"wrong"`
	Cleaned     []string          `json:"cleaned"`
	CorrectGene *domain.Gene      `json:"correct_gene,omitempty"`
}

// File is the interchange document: {"version": n, "data": {id: entry}}.
type File struct {
	Version int               `json:"version"`
	Data    map[string]*Entry `json:"data"`
}

// HasCleaned reports whether a curator supplied replacement descriptions.
func (e *Entry) HasCleaned() bool {
	return e != nil && len(e.Cleaned) > 0
}

// clone deep-copies e. List fields of the copy are never nil so they encode
// as empty arrays.
func (e *Entry) clone() *Entry {
	if e == nil {
		e = &Entry{}
	}
	out := &Entry{
		Info:    append([]domain.Document{}, e.Info...),
		Correct: append([]string{}, e.Correct...),
		Wrong:   append([]string{}, e.Wrong...),
		Cleaned: append([]string{}, e.Cleaned...),
	}
	if e.CorrectGene != nil {
		g := *e.CorrectGene
		out.CorrectGene = &g
	}
	return out
}

// merge concatenates new context and candidate lists into the entry. Values
// already present are not repeated, so recording the same failure twice
// leaves the entry unchanged.
func (e *Entry) merge(info domain.Document, succeeded, failed []string) {
	if info != nil && !containsDocument(e.Info, info) {
		e.Info = append(e.Info, info)
	}
	e.Correct = appendUnique(e.Correct, succeeded...)
	e.Wrong = appendUnique(e.Wrong, failed...)
}

func appendUnique(list []string, values ...string) []string {
	seen := make(map[string]bool, len(list))
	for _, v := range list {
		seen[v] = true
	}
	for _, v := range values {
		if !seen[v] {
			list = append(list, v)
			seen[v] = true
		}
	}
	return list
}

func containsDocument(list []domain.Document, doc domain.Document) bool {
	want, err := json.Marshal(doc)
	if err != nil {
		return false
	}
	for _, d := range list {
		got, err := json.Marshal(d)
		if err == nil && bytes.Equal(got, want) {
			return true
		}
	}
	return false
}

func sortedKeys(data map[string]*Entry) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
