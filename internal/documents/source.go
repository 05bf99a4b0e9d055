// Package documents loads upstream JSON documents (cases and the genomic
// entries they link to) from the filesystem or from object storage.
package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/genomic-case-qc/internal/domain"
)

// Source fetches documents by kind ("cases", "genomic_entries") and id.
// Fetch returns an error wrapping domain.ErrNotFound when the document does
// not exist.
type Source interface {
	Fetch(ctx context.Context, kind, id string) (domain.Document, error)
	List(ctx context.Context, kind string) ([]string, error)
}

// Decode reads one JSON object. Numbers are kept as json.Number so ids keep
// their textual form.
func Decode(r io.Reader, source string) (domain.Document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, &domain.MalformedInputError{Source: source, Reason: "invalid JSON", Err: err}
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, &domain.MalformedInputError{
			Source: source,
			Reason: fmt.Sprintf("expected a JSON object, got %s", domain.KindOf(v)),
		}
	}
	return domain.Document(obj), nil
}

// Chain tries each source in order and returns the first document found.
type Chain []Source

// Fetch implements Source.
func (c Chain) Fetch(ctx context.Context, kind, id string) (domain.Document, error) {
	for _, s := range c {
		doc, err := s.Fetch(ctx, kind, id)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s/%s: %w", kind, id, domain.ErrNotFound)
}

// List implements Source, returning the union of ids in first-seen order.
func (c Chain) List(ctx context.Context, kind string) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range c {
		found, err := s.List(ctx, kind)
		if err != nil {
			return nil, err
		}
		for _, id := range found {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// Linked returns a loader for linked documents of one kind. A missing
// document yields an empty Document and a warning; other errors are returned.
func Linked(src Source, kind string, logger *logrus.Logger) func(ctx context.Context, id string) (domain.Document, error) {
	return func(ctx context.Context, id string) (domain.Document, error) {
		doc, err := src.Fetch(ctx, kind, id)
		if errors.Is(err, domain.ErrNotFound) {
			logger.WithFields(logrus.Fields{
				"kind": kind,
				"id":   id,
			}).Warn("Linked document not found")
			return domain.Document{}, nil
		}
		return doc, err
	}
}
