// Package adapter turns the upstream case document shapes into one case view.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/genomic-case-qc/internal/documents"
	"github.com/genomic-case-qc/internal/domain"
)

// Overlay returns primary with every top-level key of override replacing the
// key of the same name. Values are replaced whole, never merged. The second
// return value lists the replaced keys in sorted order.
func Overlay(primary, override domain.Document) (domain.Document, []string) {
	merged := primary.Clone()
	keys := make([]string, 0, len(override))
	for k, v := range override {
		merged[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return merged, keys
}

// Loader reads case documents and applies manually corrected companions from
// an override directory.
type Loader struct {
	overrideDir string
	log         *logrus.Logger
}

// NewLoader creates a Loader. overrideDir may be empty.
func NewLoader(overrideDir string, logger *logrus.Logger) *Loader {
	return &Loader{overrideDir: overrideDir, log: logger}
}

// LoadFile reads the case at path. The companion lives at
// <overrideDir>/<parent dir of path>/<file name>.
func (l *Loader) LoadFile(path string) (domain.Document, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	if l.overrideDir == "" {
		return doc, nil
	}
	rel := filepath.Join(filepath.Base(filepath.Dir(path)), filepath.Base(path))
	return l.overlayFrom(doc, filepath.Join(l.overrideDir, rel), path)
}

// Load fetches the case id of the given kind from src and applies the
// companion at <overrideDir>/<kind>/<id>.json.
func (l *Loader) Load(ctx context.Context, src documents.Source, kind, id string) (domain.Document, error) {
	doc, err := src.Fetch(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if l.overrideDir == "" {
		return doc, nil
	}
	return l.overlayFrom(doc, filepath.Join(l.overrideDir, kind, id+".json"), kind+"/"+id)
}

func (l *Loader) overlayFrom(doc domain.Document, overridePath, source string) (domain.Document, error) {
	if _, err := os.Stat(overridePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return nil, fmt.Errorf("checking override %s: %w", overridePath, err)
	}
	override, err := readDocument(overridePath)
	if err != nil {
		return nil, err
	}
	merged, keys := Overlay(doc, override)
	l.log.WithFields(logrus.Fields{
		"source":   source,
		"override": overridePath,
		"keys":     keys,
	}).Debug("Applied case override")
	return merged, nil
}

func readDocument(path string) (domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return documents.Decode(f, path)
}
