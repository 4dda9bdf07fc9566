package stitch

import (
	"os"

	"gopkg.in/yaml.v3"
)

// SourceSet names the collections one category table is drawn from and the
// candidate foreign-key fields tested against an encounter group's
// membership set. A record matches when any candidate field resolves to a
// member reference. Field names are dotted; both the nested and the
// pre-flattened encoding of the field are accepted at lookup time.
type SourceSet struct {
	Collections     []string `yaml:"collections"`
	ReferenceFields []string `yaml:"reference_fields"`
}

// EncounterSources names the three encounter collections: the inpatient
// collection holding root stays, and the ED/ICU collections whose entries
// may extend a root stay via partOf.
type EncounterSources struct {
	Inpatient string `yaml:"inpatient"`
	ED        string `yaml:"ed"`
	ICU       string `yaml:"icu"`
}

// Profile binds category tables to the collection names of a concrete
// export. The zero profile is unusable; start from DefaultProfile or load
// one from YAML.
type Profile struct {
	Encounters                EncounterSources `yaml:"encounters"`
	Conditions                SourceSet        `yaml:"conditions"`
	Procedures                SourceSet        `yaml:"procedures"`
	MedicationRequests        SourceSet        `yaml:"medication_requests"`
	MedicationDispenses       SourceSet        `yaml:"medication_dispenses"`
	MedicationAdministrations SourceSet        `yaml:"medication_administrations"`
	Observations              SourceSet        `yaml:"observations"`
	Labs                      SourceSet        `yaml:"labs"`
	Microbiology              SourceSet        `yaml:"microbiology"`
	Documents                 SourceSet        `yaml:"documents"`
}

// DefaultProfile covers the MIMIC-IV-on-FHIR export this tool was built
// around. Collection order is fixed: it decides which row survives
// deduplication when two sources carry the same reading.
func DefaultProfile() Profile {
	return Profile{
		Encounters: EncounterSources{
			Inpatient: "MimicEncounter",
			ED:        "MimicEncounterED",
			ICU:       "MimicEncounterICU",
		},
		Conditions: SourceSet{
			Collections:     []string{"MimicCondition", "MimicConditionED"},
			ReferenceFields: []string{"encounter.reference"},
		},
		Procedures: SourceSet{
			Collections:     []string{"MimicProcedure", "MimicProcedureED", "MimicProcedureICU"},
			ReferenceFields: []string{"encounter.reference"},
		},
		MedicationRequests: SourceSet{
			Collections:     []string{"MimicMedicationRequest"},
			ReferenceFields: []string{"encounter.reference"},
		},
		MedicationDispenses: SourceSet{
			Collections:     []string{"MimicMedicationDispense", "MimicMedicationDispenseED"},
			ReferenceFields: []string{"context.reference"},
		},
		MedicationAdministrations: SourceSet{
			Collections:     []string{"MimicMedicationAdministration", "MimicMedicationAdministrationICU"},
			ReferenceFields: []string{"context.reference"},
		},
		Observations: SourceSet{
			Collections: []string{
				"MimicObservationVitalSignsED",
				"MimicObservationChartevents",
				"MimicObservationED",
				"MimicObservationOutputevents",
				"MimicObservationDatetimeevents",
			},
			ReferenceFields: []string{"encounter.reference", "context.reference"},
		},
		Labs: SourceSet{
			Collections:     []string{"MimicObservationLabevents"},
			ReferenceFields: []string{"encounter.reference"},
		},
		Microbiology: SourceSet{
			Collections: []string{
				"MimicObservationMicroSusc",
				"MimicObservationMicroTest",
				"MimicObservationMicroOrg",
			},
			ReferenceFields: []string{"encounter.reference", "context.reference"},
		},
		Documents: SourceSet{
			Collections:     []string{"MimicDocumentReference"},
			ReferenceFields: []string{"context.encounter"},
		},
	}
}

// LoadProfile reads a profile from a YAML file. Fields absent from the file
// fall back to the default profile, so a partial override is enough to
// rename a couple of collections.
func LoadProfile(path string) (Profile, error) {
	profile := DefaultProfile()
	buf, err := os.ReadFile(path)
	if err != nil {
		return profile, err
	}
	if err := yaml.Unmarshal(buf, &profile); err != nil {
		return profile, err
	}
	return profile, nil
}
