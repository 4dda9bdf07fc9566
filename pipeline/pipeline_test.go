package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"carelens.com/stitch/record"
	"carelens.com/stitch/stitch"
)

func fixedClock() time.Time {
	return time.Date(2180, 7, 23, 0, 0, 0, 0, time.UTC)
}

func testAssets() record.Assets {
	return record.Assets{
		Locations:     map[string]string{"loc-1": "MICU"},
		Medications:   map[string]string{},
		Organizations: map[string]string{"org-1": "Beth Israel Deaconess Medical Center"},
	}
}

const patientFile = `{
	"patient_id": "10014729",
	"data": {
		"MimicPatient": [{
			"id": "p1",
			"birthDate": "2100-03-15",
			"gender": "female",
			"managingOrganization": {"reference": "Organization/org-1"}
		}],
		"MimicEncounter": [{
			"id": "hosp-1",
			"class": {"display": "inpatient encounter"},
			"period": {"start": "2180-07-23T14:00:00Z", "end": "2180-07-30T16:00:00Z"}
		}],
		"MimicCondition": [{
			"encounter": {"reference": "Encounter/hosp-1"},
			"code": {"coding": [{"display": "Sepsis", "code": "A41.9"}]}
		}]
	}
}`

func TestPipeline(t *testing.T) {
	ppln := New(stitch.DefaultProfile(), testAssets(), fixedClock)

	raw, err := ppln([]byte(patientFile))
	require.NoError(t, err)

	var response Response
	require.NoError(t, json.Unmarshal(raw, &response))
	require.Equal(t, "10014729", response.PatientID)
	require.Equal(t, "female", response.Demographics.Gender)
	require.Equal(t, 80, response.Demographics.Age)
	require.Equal(t, "Beth Israel Deaconess Medical Center", response.Demographics.Organization)

	var encounters []map[string]interface{}
	require.NoError(t, json.Unmarshal(response.Encounters, &encounters))
	require.Len(t, encounters, 1)
	require.Equal(t, "hosp-1", encounters[0]["encounter_id"])
}

func TestPipelineDeterministic(t *testing.T) {
	ppln := New(stitch.DefaultProfile(), testAssets(), fixedClock)

	first, err := ppln([]byte(patientFile))
	require.NoError(t, err)
	second, err := ppln([]byte(patientFile))
	require.NoError(t, err)
	require.JSONEq(t, string(first), string(second))
}

func TestPipelineMalformedInput(t *testing.T) {
	ppln := New(stitch.DefaultProfile(), testAssets(), fixedClock)
	_, err := ppln([]byte("not json"))
	require.Error(t, err)
}

func TestPipelineEmptyRecord(t *testing.T) {
	ppln := New(stitch.DefaultProfile(), testAssets(), fixedClock)
	raw, err := ppln([]byte(`{"data": {}}`))
	require.NoError(t, err)

	var response Response
	require.NoError(t, json.Unmarshal(raw, &response))
	require.Equal(t, "Unknown Patient", response.PatientID)
	require.Equal(t, "[]", string(response.Encounters))
}
