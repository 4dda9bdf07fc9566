package record

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	"carelens.com/stitch/document"
	"carelens.com/stitch/stitch"
)

// Assets are the id -> display-name maps built from the export's reference
// collections. They feed stitch.ReferenceMaps and the demographics summary.
type Assets struct {
	Locations     map[string]string
	Medications   map[string]string
	Organizations map[string]string
}

const medicationNameSystem = "mimic-medication-name"

// LoadAssets reads the three reference NDJSON files from dir.
func LoadAssets(dir string) (Assets, error) {
	locations, err := ReadNDJSON(path.Join(dir, "MimicLocation.ndjson"))
	if err != nil {
		return Assets{}, err
	}
	medications, err := ReadNDJSON(path.Join(dir, "MimicMedication.ndjson"))
	if err != nil {
		return Assets{}, err
	}
	organizations, err := ReadNDJSON(path.Join(dir, "MimicOrganization.ndjson"))
	if err != nil {
		return Assets{}, err
	}
	return Assets{
		Locations:     NameMap(locations),
		Medications:   MedicationMap(medications),
		Organizations: NameMap(organizations),
	}, nil
}

// ReferenceMaps adapts the assets to what the stitch engine consumes.
func (a Assets) ReferenceMaps() stitch.ReferenceMaps {
	return stitch.ReferenceMaps{
		Locations:   a.Locations,
		Medications: a.Medications,
	}
}

// ReadNDJSON loads a newline-delimited JSON file into documents. Blank lines
// are skipped; a malformed line is an error because the assets ship with the
// deployment, not with user uploads.
func ReadNDJSON(filePath string) ([]document.Document, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var docs []document.Document
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var doc document.Document
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			return nil, fmt.Errorf("bad line in %s: %w", filePath, err)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// NameMap indexes documents by id over their name field.
func NameMap(docs []document.Document) map[string]string {
	result := make(map[string]string, len(docs))
	for _, doc := range docs {
		id := document.ResolveString(doc, "", document.Path{"id"})
		if id == "" {
			continue
		}
		result[id] = document.ResolveString(doc, "", document.Path{"name"})
	}
	return result
}

// MedicationMap indexes medications by id over the display name hidden in
// their identifier list: the entry whose system mentions the medication-name
// namespace carries it.
func MedicationMap(docs []document.Document) map[string]string {
	result := make(map[string]string, len(docs))
	for _, doc := range docs {
		id := document.ResolveString(doc, "", document.Path{"id"})
		if id == "" {
			continue
		}
		result[id] = medicationDisplayName(doc)
	}
	return result
}

func medicationDisplayName(doc document.Document) string {
	identifiers, ok := document.Resolve(doc, document.Path{"identifier"})
	list, isList := identifiers.([]interface{})
	if !ok || !isList {
		return "Unknown Med"
	}
	for _, item := range list {
		ident, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		system, _ := ident["system"].(string)
		if !strings.Contains(system, medicationNameSystem) {
			continue
		}
		if value, ok := ident["value"].(string); ok {
			return value
		}
		return "Unknown Med"
	}
	return "Unknown Med"
}
