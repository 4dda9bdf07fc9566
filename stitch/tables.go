package stitch

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch"

	"carelens.com/stitch/document"
)

type ConditionRow struct {
	Condition string `json:"condition"`
	Code      string `json:"code"`
}

type ProcedureRow struct {
	Procedure string             `json:"procedure"`
	Code      string             `json:"code"`
	Start     document.Timestamp `json:"start"`
	End       document.Timestamp `json:"end"`
}

type MedicationRequestRow struct {
	Time       document.Timestamp `json:"time"`
	Medication string             `json:"medication"`
	Status     string             `json:"status"`
	Period     string             `json:"period"`
	Dose       string             `json:"dose"`
	Route      string             `json:"route"`
}

type MedicationDispenseRow struct {
	Time       document.Timestamp `json:"time"`
	Medication string             `json:"medication"`
	Status     string             `json:"status"`
	Dose       string             `json:"dose"`
	Route      string             `json:"route"`
	Timing     string             `json:"timing"`
}

type MedicationAdministrationRow struct {
	Time       document.Timestamp `json:"time"`
	Medication string             `json:"medication"`
	Status     string             `json:"status"`
	Details    string             `json:"details"`
	Route      string             `json:"route"`
}

type VitalRow struct {
	Timestamp document.Timestamp `json:"timestamp"`
	Vital     string             `json:"vital"`
	Group     string             `json:"group"`
	Value     string             `json:"value"`
}

type ObservationRow struct {
	Timestamp   document.Timestamp `json:"timestamp"`
	Observation string             `json:"observation"`
	Group       string             `json:"group"`
	Value       string             `json:"value"`
}

type LabRow struct {
	Timestamp document.Timestamp `json:"timestamp"`
	LabTest   string             `json:"lab_test"`
	Value     string             `json:"value"`
	LowRef    string             `json:"low_ref"`
	HighRef   string             `json:"high_ref"`
}

type MicrobiologyRow struct {
	Time         document.Timestamp `json:"time"`
	Microbiology string             `json:"microbiology"`
	Value        string             `json:"value"`
}

type DocumentRow struct {
	Date  document.Timestamp `json:"date"`
	Title string             `json:"title"`
	ID    string             `json:"id"`
	Text  string             `json:"text"`
}

// LocationStay is one leg of the patient's movement during a stay, with the
// location reference already resolved to a display name.
type LocationStay struct {
	Location string             `json:"location"`
	Start    document.Timestamp `json:"start"`
	End      document.Timestamp `json:"end"`
}

// Tables holds the normalized, deduplicated, time-sorted category tables of
// one encounter group.
type Tables struct {
	Conditions                []ConditionRow                `json:"conditions"`
	Procedures                []ProcedureRow                `json:"procedures"`
	MedicationRequests        []MedicationRequestRow        `json:"medication_requests"`
	MedicationDispenses       []MedicationDispenseRow       `json:"medication_dispenses"`
	MedicationAdministrations []MedicationAdministrationRow `json:"medication_administrations"`
	Vitals                    []VitalRow                    `json:"vitals"`
	Observations              []ObservationRow              `json:"observations"`
	Labs                      []LabRow                      `json:"labs"`
	Microbiology              []MicrobiologyRow             `json:"microbiology"`
	Documents                 []DocumentRow                 `json:"reports"`
}

// Bundle is the unit of output: one root encounter's own attributes plus its
// category tables. Bundles are value types; once Stitch returns them they
// are never modified.
type Bundle struct {
	Encounter   document.Document  `json:"-"`
	ID          string             `json:"encounter_id"`
	Class       string             `json:"class"`
	PeriodStart document.Timestamp `json:"period_start"`
	PeriodEnd   document.Timestamp `json:"period_end"`
	Locations   []LocationStay     `json:"locations"`
	Tables
}

// MergedJSON renders the bundle as a single JSON object: the encounter's raw
// attributes with the computed fields and tables merge-patched on top, so a
// consumer sees every original encounter field next to the stitched data.
func (b Bundle) MergedJSON() ([]byte, error) {
	encounter, err := json.Marshal(b.Encounter)
	if err != nil {
		return nil, err
	}
	type alias Bundle
	computed, err := json.Marshal(alias(b))
	if err != nil {
		return nil, err
	}
	return jsonpatch.MergePatch(encounter, computed)
}
