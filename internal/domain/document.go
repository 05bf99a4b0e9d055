package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Document is a decoded JSON object. Nested objects keep the
// map[string]interface{} type produced by encoding/json; the accessors below
// convert on the way out and never panic on unexpected shapes.
type Document map[string]interface{}

// Has reports whether key is present, even if its value is null.
func (d Document) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Str returns the value at key rendered as a string, or "" when absent.
func (d Document) Str(key string) string {
	return AsString(d[key])
}

// Float returns the numeric value at key, or 0.
func (d Document) Float(key string) float64 {
	return AsFloat(d[key])
}

// Bool returns the truthiness of the value at key.
func (d Document) Bool(key string) bool {
	return AsBool(d[key])
}

// Obj returns the object at key, or an empty Document.
func (d Document) Obj(key string) Document {
	return AsDocument(d[key])
}

// List returns the array at key. A scalar is wrapped into a one-element list;
// null and absent values give an empty list.
func (d Document) List(key string) []interface{} {
	return AsList(d[key])
}

// Strings returns the array at key as strings, skipping empty values.
func (d Document) Strings(key string) []string {
	var out []string
	for _, v := range d.List(key) {
		if s := AsString(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Clone makes a shallow copy.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// AsString renders JSON scalars as strings.
func AsString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// AsFloat converts numbers and numeric strings.
func AsFloat(v interface{}) float64 {
	switch t := v.(type) {
	case json.Number:
		f, _ := t.Float64()
		return f
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	}
	return 0
}

// AsInt converts numbers and numeric strings, truncating fractions.
func AsInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), true
		}
		if f, err := t.Float64(); err == nil {
			return int(f), true
		}
	case float64:
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// AsBool treats true, non-zero numbers and "1"/"true" strings as true.
func AsBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes":
			return true
		}
		return false
	case nil:
		return false
	}
	return AsFloat(v) != 0
}

// AsDocument converts an object value; anything else gives an empty Document.
func AsDocument(v interface{}) Document {
	switch t := v.(type) {
	case Document:
		return t
	case map[string]interface{}:
		return Document(t)
	}
	return Document{}
}

// AsList converts an array value, wrapping scalars.
func AsList(v interface{}) []interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return t
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	}
	return []interface{}{v}
}

// KindOf names the JSON kind of a decoded value, for error messages.
func KindOf(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]interface{}, Document:
		return "object"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case json.Number, float64, int, int64:
		return "number"
	case bool:
		return "boolean"
	}
	return "unknown"
}
