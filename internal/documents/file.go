package documents

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/genomic-case-qc/internal/domain"
)

// FileSource reads <root>/<kind>/<id>.json. When an override directory is
// set, <override>/<kind>/<id>.json is read instead if it exists.
type FileSource struct {
	root     string
	override string
}

// NewFileSource creates a filesystem source. override may be empty.
func NewFileSource(root, override string) *FileSource {
	return &FileSource{root: root, override: override}
}

func (s *FileSource) path(kind, id string) string {
	name := id + ".json"
	if s.override != "" {
		p := filepath.Join(s.override, kind, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(s.root, kind, name)
}

// Fetch implements Source.
func (s *FileSource) Fetch(ctx context.Context, kind, id string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := s.path(kind, id)
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", p, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", p, err)
	}
	defer f.Close()
	return Decode(f, p)
}

// List implements Source. Ids come back sorted.
func (s *FileSource) List(ctx context.Context, kind string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, kind))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", kind, err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}
