package document

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, raw string) Document {
	t.Helper()
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("bad test document: %v", err)
	}
	return doc
}

func TestResolve(t *testing.T) {
	doc := decode(t, `{
		"dosage": {"dose": {"value": 5.0, "unit": "mg"}},
		"dosage.dose.value": 7.5,
		"code": {"coding": [{"display": "Heart Rate", "code": "220045"}]},
		"empty": "",
		"nullField": null
	}`)

	t.Run("nested path", func(t *testing.T) {
		value, ok := Resolve(doc, Path{"dosage", "dose", "unit"})
		if !ok || value != "mg" {
			t.Errorf("got (%v, %v), expected (mg, true)", value, ok)
		}
	})

	t.Run("flattened key", func(t *testing.T) {
		value, ok := Resolve(doc, Path{"dosage.dose.value"})
		if !ok || value != 7.5 {
			t.Errorf("got (%v, %v), expected (7.5, true)", value, ok)
		}
	})

	t.Run("first present path wins", func(t *testing.T) {
		value, ok := Resolve(doc,
			Path{"missing", "field"},
			Path{"dosage", "dose", "value"},
			Path{"dosage.dose.value"})
		if !ok || value != 5.0 {
			t.Errorf("got (%v, %v), expected (5, true)", value, ok)
		}
	})

	t.Run("list index", func(t *testing.T) {
		value, ok := Resolve(doc, Path{"code", "coding", 0, "display"})
		if !ok || value != "Heart Rate" {
			t.Errorf("got (%v, %v), expected (Heart Rate, true)", value, ok)
		}
	})

	t.Run("out of range index", func(t *testing.T) {
		if _, ok := Resolve(doc, Path{"code", "coding", 3, "display"}); ok {
			t.Error("expected miss for out-of-range index")
		}
	})

	t.Run("wrong typed intermediate", func(t *testing.T) {
		if _, ok := Resolve(doc, Path{"empty", "nested"}); ok {
			t.Error("expected miss when walking through a scalar")
		}
	})

	t.Run("null value counts as missing", func(t *testing.T) {
		if _, ok := Resolve(doc, Path{"nullField"}); ok {
			t.Error("expected miss for explicit null")
		}
	})

	t.Run("missing key", func(t *testing.T) {
		if _, ok := Resolve(doc, Path{"nothing"}); ok {
			t.Error("expected miss for absent key")
		}
	})
}

func TestResolveString(t *testing.T) {
	doc := decode(t, `{"status": "completed", "blank": "", "number": 5}`)

	if got := ResolveString(doc, "N/A", Path{"status"}); got != "completed" {
		t.Errorf("got %q, expected completed", got)
	}
	if got := ResolveString(doc, "N/A", Path{"blank"}); got != "N/A" {
		t.Errorf("empty string should fall back, got %q", got)
	}
	if got := ResolveString(doc, "N/A", Path{"number"}); got != "N/A" {
		t.Errorf("non-string should fall back, got %q", got)
	}
	if got := ResolveString(doc, "N/A", Path{"blank"}, Path{"status"}); got != "completed" {
		t.Errorf("later path should win over empty value, got %q", got)
	}
}

func TestResolveDefault(t *testing.T) {
	doc := decode(t, `{"value": 12.5}`)

	if got := ResolveDefault(doc, "", Path{"value"}); got != 12.5 {
		t.Errorf("got %v, expected 12.5", got)
	}
	if got := ResolveDefault(doc, "", Path{"missing"}); got != "" {
		t.Errorf("got %v, expected fallback", got)
	}
}
