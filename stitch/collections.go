package stitch

import (
	"strings"

	"carelens.com/stitch/document"
)

// Collections is the decoded patient export: one ordered document sequence
// per resource type. Absent collections read as empty, never as an error.
type Collections map[string][]document.Document

// Get returns the named collection, or nil when the export lacks it.
func (cols Collections) Get(name string) []document.Document {
	return cols[name]
}

// union concatenates the named collections in profile order. Order matters:
// deduplication later keeps the first row per natural key, so earlier
// collections win collisions.
func (cols Collections) union(names []string) []document.Document {
	var docs []document.Document
	for _, name := range names {
		docs = append(docs, cols[name]...)
	}
	return docs
}

// fieldPaths expands a dotted foreign-key field name into the two encodings
// a document may use: nested objects and a single pre-flattened key.
func fieldPaths(field string) []document.Path {
	parts := strings.Split(field, ".")
	nested := make(document.Path, len(parts))
	for i, part := range parts {
		nested[i] = part
	}
	return []document.Path{nested, document.Path{field}}
}

// matches reports whether any candidate foreign-key field of doc resolves to
// a reference inside the membership set.
func matches(doc document.Document, fields []string, members map[string]bool) bool {
	for _, field := range fields {
		value, ok := document.Resolve(doc, fieldPaths(field)...)
		if !ok {
			continue
		}
		if ref := document.NormalizeReference(value); ref != "" && members[ref] {
			return true
		}
	}
	return false
}

// collect filters the source set down to the documents attributable to the
// membership set. Documents with no usable foreign-key field are dropped,
// never attributed by proximity.
func (cols Collections) collect(src SourceSet, members map[string]bool) []document.Document {
	var matched []document.Document
	for _, doc := range cols.union(src.Collections) {
		if matches(doc, src.ReferenceFields, members) {
			matched = append(matched, doc)
		}
	}
	return matched
}
