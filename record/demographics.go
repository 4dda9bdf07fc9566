package record

import (
	"time"

	"carelens.com/stitch/document"
)

// Demographics is the patient summary shown at the top of a stitched result.
// Age is computed against a caller-supplied clock so repeated runs over the
// same input stay reproducible.
type Demographics struct {
	PatientID     string `json:"patient_id"`
	BirthDate     string `json:"birth_date"`
	Age           int    `json:"age"`
	Gender        string `json:"gender"`
	Race          string `json:"race"`
	Ethnicity     string `json:"ethnicity"`
	MaritalStatus string `json:"marital_status"`
	Organization  string `json:"organization"`
}

const notAvailable = "N/A"

// Summarize extracts the demographics of the export's patient document.
// Every field degrades to "N/A" rather than failing.
func Summarize(patientID string, patient document.Document, organizations map[string]string, now time.Time) Demographics {
	demo := Demographics{
		PatientID:     patientID,
		BirthDate:     notAvailable,
		Age:           -1,
		Gender:        notAvailable,
		Race:          notAvailable,
		Ethnicity:     notAvailable,
		MaritalStatus: notAvailable,
		Organization:  "Unknown Org",
	}
	if patient == nil {
		return demo
	}

	if birth, ok := document.ParseTime(document.ResolveDefault(patient, nil, document.Path{"birthDate"})); ok {
		demo.BirthDate = birth.Format("2006-01-02")
		demo.Age = int(now.Sub(birth).Hours() / 24 / 365)
	}
	demo.Gender = document.ResolveString(patient, notAvailable, document.Path{"gender"})
	demo.Race = document.ResolveString(patient, notAvailable,
		document.Path{"extension", 0, "extension", 1, "valueString"})
	demo.Ethnicity = document.ResolveString(patient, notAvailable,
		document.Path{"extension", 1, "extension", 1, "valueString"})
	demo.MaritalStatus = document.ResolveString(patient, notAvailable,
		document.Path{"maritalStatus.coding", 0, "code"},
		document.Path{"maritalStatus", "coding", 0, "code"})

	orgRef := document.ResolveString(patient, "",
		document.Path{"managingOrganization.reference"},
		document.Path{"managingOrganization", "reference"})
	if name, ok := organizations[document.ReferenceID(orgRef, "Organization")]; ok {
		demo.Organization = name
	}
	return demo
}
