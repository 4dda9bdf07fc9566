package stitch

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"carelens.com/stitch/document"
)

// stitchFixture is a two-stay patient: an inpatient admission with an ICU
// sub-stay, and an earlier standalone ED visit.
func stitchFixture(t *testing.T) Collections {
	t.Helper()
	raw := `{
		"MimicEncounter": [{
			"id": "hosp-1",
			"class": {"display": "inpatient encounter"},
			"period": {"start": "2180-07-23T14:00:00Z", "end": "2180-07-30T16:00:00Z"},
			"location": [{"location": {"reference": "Location/loc-1"}, "period": {"start": "2180-07-23T14:00:00Z"}}]
		}],
		"MimicEncounterED": [{
			"id": "ed-1",
			"partOf": {"reference": "Encounter/hosp-1"}
		}, {
			"id": "ed-solo",
			"class": {"display": "emergency"},
			"period": {"start": "2179-03-01T08:00:00Z", "end": "2179-03-01T20:00:00Z"}
		}],
		"MimicEncounterICU": [{
			"id": "icu-1",
			"partOf.reference": "Encounter/hosp-1"
		}],
		"MimicCondition": [{
			"encounter": {"reference": "Encounter/hosp-1"},
			"code": {"coding": [{"display": "Sepsis", "code": "A41.9"}]}
		}],
		"MimicConditionED": [{
			"encounter": {"reference": "Encounter/ed-solo"},
			"code": {"coding": [{"display": "Chest pain", "code": "R07.9"}]}
		}],
		"MimicObservationChartevents": [{
			"context": {"reference": "Encounter/icu-1"},
			"effectiveDateTime": "2180-07-24T02:00:00Z",
			"code": {"coding": [{"display": "Temperature"}]},
			"category": [{"coding": [{"display": "Vital Signs"}]}],
			"valueQuantity": {"value": 98.6, "unit": "F"}
		}, {
			"context": {"reference": "Encounter/icu-1"},
			"effectiveDateTime": "2180-07-24T06:00:00Z",
			"code": {"coding": [{"display": "Glucose"}]},
			"category": [{"coding": [{"display": "Labs"}]}],
			"valueQuantity": {"value": 140.0, "unit": "mg/dL"}
		}, {
			"context": {"reference": "Encounter/icu-1"},
			"effectiveDateTime": "2180-07-24T08:00:00Z",
			"code": {"coding": [{"display": "Urine Output"}]},
			"category": [{"coding": [{"display": "Output Events"}]}],
			"valueQuantity": {"value": 300.0, "unit": "mL"}
		}],
		"MimicObservationLabevents": [{
			"encounter": {"reference": "Encounter/hosp-1"},
			"effectiveDateTime": "2180-07-23T06:00:00Z",
			"code": {"coding": [{"display": "Creatinine"}]},
			"valueQuantity": {"value": 1.2, "unit": "mg/dL"},
			"referenceRange": [{"low": {"value": 0.5}, "high": {"value": 1.2}}]
		}],
		"MimicMedicationRequest": [{
			"medicationCodeableConcept": {"coding": [{"display": "Vancomycin"}]},
			"authoredOn": "2180-07-23T18:00:00Z",
			"status": "completed"
		}],
		"MimicMedicationAdministrationICU": [{
			"context": {"reference": "Encounter/icu-1"},
			"medicationCodeableConcept": {"coding": [{"display": "Propofol"}]},
			"effectiveDateTime": "2180-07-23T21:00:00Z",
			"dosage": {"dose": {"value": 50.0, "unit": "mg"}}
		}],
		"MimicObservationMicroTest": [{
			"encounter": {"reference": "Encounter/hosp-1"},
			"effectiveDateTime": "2180-07-23T08:00:00Z",
			"code": {"coding": [{"display": "Blood Culture"}]},
			"valueCodeableConcept": {"coding": [{"display": "STAPH AUREUS"}]}
		}],
		"MimicDocumentReference": [{
			"id": "doc-1",
			"context": {"encounter": [{"reference": "Encounter/hosp-1"}]},
			"date": "2180-07-30T12:00:00Z",
			"content": [{"attachment": {"title": "Discharge Summary"}}]
		}]
	}`
	var data map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &data))
	cols, err := UnmarshalCollections(data)
	require.NoError(t, err)
	return cols
}

func fixtureRefs() ReferenceMaps {
	return ReferenceMaps{
		Locations:   map[string]string{"loc-1": "MICU"},
		Medications: map[string]string{},
	}
}

func TestStitch(t *testing.T) {
	cols := stitchFixture(t)
	bundles := Stitch(cols, fixtureRefs(), DefaultProfile())
	require.Len(t, bundles, 2)

	edVisit, hospStay := bundles[0], bundles[1]
	require.Equal(t, "ed-solo", edVisit.ID)
	require.Equal(t, "hosp-1", hospStay.ID)

	t.Run("encounter attributes", func(t *testing.T) {
		require.Equal(t, "inpatient encounter", hospStay.Class)
		require.Equal(t, "2180-07-23 14:00:00", hospStay.PeriodStart.String())
		require.Equal(t, "2180-07-30 16:00:00", hospStay.PeriodEnd.String())
		require.Len(t, hospStay.Locations, 1)
		require.Equal(t, "MICU", hospStay.Locations[0].Location)
	})

	t.Run("events reach the bundle through sub-encounter references", func(t *testing.T) {
		require.Len(t, hospStay.Vitals, 1)
		require.Equal(t, "Temperature", hospStay.Vitals[0].Vital)
		require.Equal(t, "98.60F", hospStay.Vitals[0].Value)
	})

	t.Run("labs group folds into the labs table", func(t *testing.T) {
		require.Len(t, hospStay.Labs, 2)
		require.Equal(t, "Creatinine", hospStay.Labs[0].LabTest)
		require.Equal(t, "Glucose", hospStay.Labs[1].LabTest)
		require.Equal(t, "140mg/dL", hospStay.Labs[1].Value)
		require.Empty(t, hospStay.Labs[1].LowRef)
	})

	t.Run("other groups land in observations", func(t *testing.T) {
		require.Len(t, hospStay.Observations, 1)
		require.Equal(t, "Urine Output", hospStay.Observations[0].Observation)
		require.Equal(t, "Output Events", hospStay.Observations[0].Group)
	})

	t.Run("events without a resolvable reference are dropped", func(t *testing.T) {
		// The medication request names no encounter at all.
		require.Empty(t, hospStay.MedicationRequests)
		require.Empty(t, edVisit.MedicationRequests)
	})

	t.Run("attribution is exclusive", func(t *testing.T) {
		require.Len(t, hospStay.Conditions, 1)
		require.Equal(t, "Sepsis", hospStay.Conditions[0].Condition)
		require.Len(t, edVisit.Conditions, 1)
		require.Equal(t, "Chest pain", edVisit.Conditions[0].Condition)
		require.Empty(t, edVisit.Microbiology)
		require.Len(t, hospStay.Microbiology, 1)
	})

	t.Run("icu administration attributed to the root stay", func(t *testing.T) {
		require.Len(t, hospStay.MedicationAdministrations, 1)
		require.Equal(t, "50 mg", hospStay.MedicationAdministrations[0].Details)
	})

	t.Run("documents", func(t *testing.T) {
		require.Len(t, hospStay.Documents, 1)
		require.Equal(t, "Discharge Summary", hospStay.Documents[0].Title)
	})
}

func TestStitchDeterminism(t *testing.T) {
	cols := stitchFixture(t)
	refs := fixtureRefs()
	profile := DefaultProfile()

	first := Stitch(cols, refs, profile)
	second := Stitch(cols, refs, profile)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("two runs over the same input differ:\n%s", diff)
	}
}

func TestStitchDoesNotMutateInput(t *testing.T) {
	cols := stitchFixture(t)
	before, err := json.Marshal(cols)
	require.NoError(t, err)

	Stitch(cols, fixtureRefs(), DefaultProfile())

	after, err := json.Marshal(cols)
	require.NoError(t, err)
	require.JSONEq(t, string(before), string(after))
}

func TestStitchEmptyInput(t *testing.T) {
	require.Empty(t, Stitch(Collections{}, ReferenceMaps{}, DefaultProfile()))
	require.Empty(t, Stitch(nil, ReferenceMaps{}, DefaultProfile()))
}

func TestMarshalBundlesMergesEncounterAttributes(t *testing.T) {
	cols := stitchFixture(t)
	bundles := Stitch(cols, fixtureRefs(), DefaultProfile())
	raw, err := MarshalBundles(bundles)
	require.NoError(t, err)

	var merged []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &merged))
	require.Len(t, merged, 2)

	hospStay := merged[1]
	require.Equal(t, "hosp-1", hospStay["encounter_id"])
	// Raw encounter fields survive next to the computed tables.
	require.Contains(t, hospStay, "period")
	require.Contains(t, hospStay, "conditions")
	require.Contains(t, hospStay, "reports")
}

func TestMarshalBundlesKeepsEmptyTables(t *testing.T) {
	cols := Collections{
		"MimicEncounter": {doc(t, `{"id": "quiet-1", "period": {"start": "2180-01-01"}}`)},
	}
	raw, err := MarshalBundles(Stitch(cols, ReferenceMaps{}, DefaultProfile()))
	require.NoError(t, err)

	var merged []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &merged))
	require.Len(t, merged, 1)

	keys := []string{
		"conditions", "procedures", "medication_requests", "medication_dispenses",
		"medication_administrations", "vitals", "observations", "labs",
		"microbiology", "reports", "locations",
	}
	for _, key := range keys {
		require.Contains(t, merged[0], key)
		// A merge patch deletes keys whose value is null, so every empty
		// table has to arrive as [].
		require.IsType(t, []interface{}{}, merged[0][key], key)
		require.Empty(t, merged[0][key], key)
	}
}

func TestMarshalBundlesEmpty(t *testing.T) {
	raw, err := MarshalBundles(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", string(raw))
}

func TestUnmarshalCollections(t *testing.T) {
	cols, err := UnmarshalCollections(map[string]json.RawMessage{
		"MimicCondition": json.RawMessage(`[{"id": "c1"}]`),
		"MimicProcedure": json.RawMessage(`null`),
		"Empty":          nil,
	})
	require.NoError(t, err)
	require.Len(t, cols.Get("MimicCondition"), 1)
	require.Nil(t, cols.Get("MimicProcedure"))
	require.Nil(t, cols.Get("Missing"))

	_, err = UnmarshalCollections(map[string]json.RawMessage{
		"Bad": json.RawMessage(`{"not": "a list"}`),
	})
	require.Error(t, err)
}

func TestStitchNestedAndFlattenedReferencesEquivalent(t *testing.T) {
	nested := doc(t, `{"encounter": {"reference": "Encounter/e1"}, "code": {"coding": [{"display": "X", "code": "1"}]}}`)
	flattened := doc(t, `{"encounter.reference": "Encounter/e1", "code": {"coding": [{"display": "X", "code": "1"}]}}`)

	for name, condition := range map[string]document.Document{"nested": nested, "flattened": flattened} {
		t.Run(name, func(t *testing.T) {
			cols := Collections{
				"MimicEncounter": {doc(t, `{"id": "e1", "period": {"start": "2180-01-01"}}`)},
				"MimicCondition": {condition},
			}
			bundles := Stitch(cols, ReferenceMaps{}, DefaultProfile())
			require.Len(t, bundles, 1)
			require.Len(t, bundles[0].Conditions, 1)
			require.Equal(t, "X", bundles[0].Conditions[0].Condition)
		})
	}
}
