package document

import (
	"strings"
)

// NormalizeReference reduces the encodings a foreign-key field shows up in
// to the plain "Type/id" string used for membership checks. A reference may
// be the string itself, a {"reference": "..."} object, or a one-element
// sequence holding either of those.
func NormalizeReference(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]interface{}:
		if ref, ok := v["reference"].(string); ok {
			return ref
		}
	case []interface{}:
		if len(v) > 0 {
			return NormalizeReference(v[0])
		}
	}
	return ""
}

// ReferenceID strips the resource-type prefix from a "Type/id" reference.
func ReferenceID(reference, resourceType string) string {
	return strings.TrimPrefix(reference, resourceType+"/")
}
