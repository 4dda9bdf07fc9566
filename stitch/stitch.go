// Package stitch re-assembles a patient's per-resource collections around
// the hospital stays that produced them. It is a pure, synchronous
// transform: the same collections and reference maps always produce the same
// bundle sequence, and nothing in the input is mutated.
package stitch

import (
	"bytes"
	"encoding/json"

	"carelens.com/stitch/document"
)

var (
	classDisplayPaths = fieldPaths("class.display")
)

// Stitch builds one Bundle per root encounter, in chronological order. Every
// clinical event lands in at most one bundle: membership sets of distinct
// roots are disjoint, and events matching no set are dropped.
func Stitch(cols Collections, refs ReferenceMaps, profile Profile) []Bundle {
	groups := BuildGroups(cols, profile)
	bundles := make([]Bundle, 0, len(groups))
	for _, group := range groups {
		// Sub-encounters never surface as bundles of their own, even if one
		// slipped past the group builder.
		if partOfReference(group.Encounter) != "" {
			continue
		}
		bundles = append(bundles, buildBundle(cols, refs, profile, group))
	}
	return bundles
}

func buildBundle(cols Collections, refs ReferenceMaps, profile Profile, group Group) Bundle {
	pool := projectObservationPool(cols.collect(profile.Observations, group.Members))

	var vitals []VitalRow
	var observations []ObservationRow
	labs := projectLabs(cols.collect(profile.Labs, group.Members))
	for _, row := range pool {
		switch Classify(row.Group) {
		case CategoryVital:
			vitals = append(vitals, row)
		case CategoryLab:
			// Classified lab readings join the dedicated labs table; they
			// carry no reference range and need a present value.
			if row.Value == "" {
				continue
			}
			labs = append(labs, LabRow{
				Timestamp: row.Timestamp,
				LabTest:   row.Vital,
				Value:     row.Value,
			})
		default:
			observations = append(observations, ObservationRow{
				Timestamp:   row.Timestamp,
				Observation: row.Vital,
				Group:       row.Group,
				Value:       row.Value,
			})
		}
	}

	end, _ := document.Resolve(group.Encounter, periodEndPaths...)
	return Bundle{
		Encounter:   group.Encounter,
		ID:          group.ID,
		Class:       document.ResolveString(group.Encounter, "", classDisplayPaths...),
		PeriodStart: group.Start,
		PeriodEnd:   document.ParseTimestamp(end),
		Locations:   projectLocations(group.Encounter, refs.Locations),
		Tables: Tables{
			Conditions:                normalizeConditions(projectConditions(cols.collect(profile.Conditions, group.Members))),
			Procedures:                normalizeProcedures(projectProcedures(cols.collect(profile.Procedures, group.Members))),
			MedicationRequests:        normalizeMedicationRequests(projectMedicationRequests(cols.collect(profile.MedicationRequests, group.Members), refs)),
			MedicationDispenses:       normalizeMedicationDispenses(projectMedicationDispenses(cols.collect(profile.MedicationDispenses, group.Members), refs)),
			MedicationAdministrations: normalizeMedicationAdministrations(projectMedicationAdministrations(cols.collect(profile.MedicationAdministrations, group.Members), refs)),
			Vitals:                    normalizeVitals(vitals),
			Observations:              normalizeObservations(observations),
			Labs:                      normalizeLabs(labs),
			Microbiology:              normalizeMicrobiology(projectMicrobiology(cols.collect(profile.Microbiology, group.Members))),
			Documents:                 normalizeDocuments(projectDocuments(cols.collect(profile.Documents, group.Members))),
		},
	}
}

// MarshalBundles renders the bundle sequence as a JSON array of merged
// encounter objects.
func MarshalBundles(bundles []Bundle) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, bundle := range bundles {
		if i > 0 {
			buf.WriteByte(',')
		}
		merged, err := bundle.MergedJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(merged)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalCollections decodes the "data" object of a patient export into
// Collections.
func UnmarshalCollections(raw map[string]json.RawMessage) (Collections, error) {
	cols := make(Collections, len(raw))
	for name, blob := range raw {
		var docs []document.Document
		if len(blob) == 0 || string(blob) == "null" {
			cols[name] = nil
			continue
		}
		if err := json.Unmarshal(blob, &docs); err != nil {
			return nil, err
		}
		cols[name] = docs
	}
	return cols, nil
}
