// Package document defines the document model for docgo.
//
// A Document is a self-describing JSON-like value decoded from a stored byte
// buffer. Documents are transient: they are materialized per stream element
// and never retained by the engine after being yielded.
package document

import (
	"fmt"
	"strings"
)

// IDField is the reserved identifier field of every document.
const IDField = "_id"

// Document represents a single document in a collection.
type Document map[string]any

// ID returns the document identifier, if present.
func (d Document) ID() (string, bool) {
	v, ok := d[IDField]
	if !ok {
		return "", false
	}
	switch id := v.(type) {
	case string:
		return id, id != ""
	default:
		return fmt.Sprintf("%v", id), true
	}
}

// Lookup resolves a dotted field path (e.g. "address.city") against the
// document. It returns the value and true if every path segment exists.
func (d Document) Lookup(path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var cur any = map[string]any(d)
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}

	return cur, true
}

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
