// Package document holds the schema-free record model shared by every
// collection in a patient export. A Document is decoded JSON: values are
// scalars, []interface{} or nested map[string]interface{}. The same logical
// field may arrive nested ("dosage" -> "dose" -> "value") or pre-flattened
// under a single dotted key ("dosage.dose.value"); Resolve treats both forms
// as plain key sequences, so callers list them as alternative paths.
package document

type Document = map[string]interface{}

// Path addresses one value inside a Document. Elements are string keys or
// int indices into sequences.
type Path []interface{}

// Resolve walks paths in order and returns the first value that exists.
// Missing keys, out-of-range indices and wrong-typed intermediates all count
// as "not found" rather than errors.
func Resolve(doc Document, paths ...Path) (interface{}, bool) {
	for _, path := range paths {
		value, ok := walk(doc, path)
		if ok {
			return value, true
		}
	}
	return nil, false
}

// ResolveString resolves like Resolve but only accepts non-empty string
// values, returning fallback otherwise.
func ResolveString(doc Document, fallback string, paths ...Path) string {
	for _, path := range paths {
		value, ok := walk(doc, path)
		if !ok {
			continue
		}
		s, ok := value.(string)
		if ok && s != "" {
			return s
		}
	}
	return fallback
}

// ResolveDefault resolves like Resolve with a caller-supplied default.
func ResolveDefault(doc Document, fallback interface{}, paths ...Path) interface{} {
	value, ok := Resolve(doc, paths...)
	if !ok {
		return fallback
	}
	return value
}

func walk(doc Document, path Path) (interface{}, bool) {
	var current interface{} = doc
	for _, step := range path {
		switch key := step.(type) {
		case string:
			node, ok := current.(map[string]interface{})
			if !ok {
				return nil, false
			}
			value, ok := node[key]
			if !ok || value == nil {
				return nil, false
			}
			current = value
		case int:
			node, ok := current.([]interface{})
			if !ok || key < 0 || key >= len(node) {
				return nil, false
			}
			if node[key] == nil {
				return nil, false
			}
			current = node[key]
		default:
			return nil, false
		}
	}
	return current, true
}
