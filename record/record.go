// Package record handles the outer shape of a patient export: the uploaded
// JSON envelope, the NDJSON reference assets, and the patient demographics
// summary. Everything inside the envelope stays schema-free; the stitch
// package does the heavy lifting.
package record

import (
	"encoding/json"
	"fmt"

	"carelens.com/stitch/document"
	"carelens.com/stitch/stitch"
)

// Record is one parsed patient export.
type Record struct {
	PatientID   string
	Collections stitch.Collections
}

type envelope struct {
	PatientID string                     `json:"patient_id"`
	Data      map[string]json.RawMessage `json:"data"`
}

// Parse decodes the uploaded patient file. A failure here is the one fatal
// condition in the whole flow: no partial record ever comes back.
func Parse(data []byte) (*Record, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse patient file: %w", err)
	}
	cols, err := stitch.UnmarshalCollections(env.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse patient file: %w", err)
	}
	patientID := env.PatientID
	if patientID == "" {
		patientID = "Unknown Patient"
	}
	return &Record{PatientID: patientID, Collections: cols}, nil
}

// Patient returns the first entry of the patient collection, or nil when the
// export carries none.
func (r *Record) Patient() document.Document {
	patients := r.Collections.Get("MimicPatient")
	if len(patients) == 0 {
		return nil
	}
	return patients[0]
}
