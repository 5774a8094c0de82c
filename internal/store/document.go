// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// IDField is the document key holding the document identifier.
const IDField = "_id"

// Document is a schema-free record stored in a collection.
type Document map[string]any

// ID returns the document identifier, or "" if the document has not been stored yet.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

// Decode unmarshals the document into v (a pointer to a struct with json tags).
func (d Document) Decode(v any) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	return nil
}

// Encode converts a json-tagged value into a Document.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding value: %w", err)
	}
	var d Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decoding value: %w", err)
	}
	return d, nil
}

// DecodeAll decodes each document into a new T.
func DecodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := doc.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return map[string]any(Document(x).Clone())
	case Document:
		return x.Clone()
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneValue(x[i])
		}
		return out
	case []string:
		return append([]string(nil), x...)
	default:
		return v
	}
}

// Criteria selects documents. Each entry must hold for a document to match.
//
// A plain value matches by equality, or by containment when the document field is an array.
// Ne, In and Lt express the remaining comparisons.
type Criteria map[string]any

// Ne matches documents whose field is absent or differs from Value.
type Ne struct{ Value any }

// In matches documents whose field (or any element of an array field) equals one of the values.
type In []any

// Lt matches documents whose field is present and less than Value.
type Lt struct{ Value any }

// Matches reports whether doc satisfies every condition in c.
func (c Criteria) Matches(doc Document) bool {
	for field, cond := range c {
		v, present := doc[field]
		switch cc := cond.(type) {
		case Ne:
			if present && matchValue(v, cc.Value) {
				return false
			}
		case In:
			if !present || !matchAny(v, cc) {
				return false
			}
		case Lt:
			if !present || compare(v, cc.Value) >= 0 {
				return false
			}
		default:
			if !present || !matchValue(v, cond) {
				return false
			}
		}
	}
	return true
}

func matchAny(field any, values In) bool {
	for _, want := range values {
		if matchValue(field, want) {
			return true
		}
	}
	return false
}

func matchValue(field, want any) bool {
	f, w := normalize(field), normalize(want)
	if arr, ok := f.([]any); ok {
		if _, wantArr := w.([]any); !wantArr {
			for _, elem := range arr {
				if reflect.DeepEqual(elem, w) {
					return true
				}
			}
			return false
		}
	}
	return reflect.DeepEqual(f, w)
}

// compare orders two scalar values. Numbers compare numerically, strings lexically;
// mismatched or non-scalar values compare equal.
func compare(a, b any) int {
	na, nb := normalize(a), normalize(b)
	switch x := na.(type) {
	case float64:
		if y, ok := nb.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
		}
	case string:
		if y, ok := nb.(string); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
		}
	}
	return 0
}

// normalize maps Go values onto the shapes produced by encoding/json so that
// freshly built criteria compare equal to decoded documents.
func normalize(v any) any {
	switch x := v.(type) {
	case nil, string, bool, float64:
		return x
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case Document:
		return normalize(map[string]any(x))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = normalize(iter.Value().Interface())
		}
		return out
	default:
		return v
	}
}

// SortKey orders query results by a document field.
type SortKey struct {
	Field string
	Desc  bool
}

// sortDocuments orders docs by keys; documents missing a key sort after those that have it.
func sortDocuments(docs []Document, keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			vi, iok := docs[i][k.Field]
			vj, jok := docs[j][k.Field]
			switch {
			case iok && !jok:
				return true
			case !iok && jok:
				return false
			case !iok && !jok:
				continue
			}
			c := compare(vi, vj)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}
