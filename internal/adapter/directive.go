package adapter

import (
	"context"
	"fmt"
	"sort"

	"github.com/genomic-case-qc/internal/domain"
)

// Directive describes where linked documents sit inside a case document.
// The three forms are Fields (descend into an object), Each (apply to every
// element of an array) and LoadFunc (replace an identifier by its document).
type Directive interface {
	directive()
}

// Fields descends into the named keys of an object. Keys absent from the
// document are skipped.
type Fields map[string]Directive

// Each applies its directive to every element of an array. Elements that
// come back empty are dropped.
type Each struct {
	Of Directive
}

// LoadFunc loads the document an identifier points to. Values that are
// already objects are left as they are.
type LoadFunc func(ctx context.Context, id string) (domain.Document, error)

func (Fields) directive()   {}
func (Each) directive()     {}
func (LoadFunc) directive() {}

// ResolveLinked walks doc according to d and replaces identifiers with the
// documents they refer to. The document is modified in place. A value whose
// shape does not match the directive yields a *domain.StructuralError.
func ResolveLinked(ctx context.Context, doc domain.Document, d Fields) error {
	_, err := walk(ctx, map[string]interface{}(doc), d, "$")
	return err
}

func walk(ctx context.Context, value interface{}, d Directive, path string) (interface{}, error) {
	switch d := d.(type) {
	case Fields:
		obj, ok := asObject(value)
		if !ok {
			return nil, &domain.StructuralError{Path: path, Expected: "object", Actual: domain.KindOf(value)}
		}
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child, present := obj[k]
			if !present {
				continue
			}
			resolved, err := walk(ctx, child, d[k], path+"."+k)
			if err != nil {
				return nil, err
			}
			obj[k] = resolved
		}
		return obj, nil

	case Each:
		if value == nil {
			return []interface{}{}, nil
		}
		list, ok := value.([]interface{})
		if !ok {
			return nil, &domain.StructuralError{Path: path, Expected: "array", Actual: domain.KindOf(value)}
		}
		out := make([]interface{}, 0, len(list))
		for i, item := range list {
			resolved, err := walk(ctx, item, d.Of, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			if isEmpty(resolved) {
				continue
			}
			out = append(out, resolved)
		}
		return out, nil

	case LoadFunc:
		switch domain.KindOf(value) {
		case "object":
			return value, nil
		case "string", "number":
			id := domain.AsString(value)
			doc, err := d(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("loading %s (%s): %w", path, id, err)
			}
			return map[string]interface{}(doc), nil
		case "null":
			return nil, nil
		}
		return nil, &domain.StructuralError{Path: path, Expected: "identifier or object", Actual: domain.KindOf(value)}
	}
	return nil, fmt.Errorf("unsupported directive %T at %s", d, path)
}

func asObject(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case domain.Document:
		return t, true
	}
	return nil, false
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]interface{}:
		return len(t) == 0
	case domain.Document:
		return len(t) == 0
	case []interface{}:
		return len(t) == 0
	case string:
		return t == ""
	}
	return false
}
