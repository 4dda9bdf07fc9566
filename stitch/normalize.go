package stitch

import (
	"sort"

	"carelens.com/stitch/document"
)

// Per-table cleanup: drop rows missing required fields, stable-sort, then
// keep the first row per natural key. Sorting before deduplication plus the
// fixed collection order in the profile makes "first seen" deterministic, so
// a colliding pair always resolves the same way. The returned slices are
// never nil: an empty table must serialize as [] so the merge patch keeps
// its key in the bundle.

const keySep = "\x1f"

func timeKey(ts document.Timestamp) string {
	if !ts.Valid {
		return ""
	}
	return ts.Format("2006-01-02T15:04:05.999999999Z07:00")
}

func normalizeConditions(rows []ConditionRow) []ConditionRow {
	seen := make(map[string]bool, len(rows))
	out := make([]ConditionRow, 0, len(rows))
	for _, row := range rows {
		key := row.Condition + keySep + row.Code
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

func normalizeProcedures(rows []ProcedureRow) []ProcedureRow {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Start.Less(rows[j].Start)
	})
	seen := make(map[string]bool, len(rows))
	out := make([]ProcedureRow, 0, len(rows))
	for _, row := range rows {
		key := row.Procedure + keySep + row.Code + keySep + timeKey(row.Start)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

func normalizeMedicationRequests(rows []MedicationRequestRow) []MedicationRequestRow {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Medication != rows[j].Medication {
			return rows[i].Medication < rows[j].Medication
		}
		return rows[i].Time.Less(rows[j].Time)
	})
	seen := make(map[string]bool, len(rows))
	out := make([]MedicationRequestRow, 0, len(rows))
	for _, row := range rows {
		if !row.Time.Valid || row.Medication == "" {
			continue
		}
		key := row.Medication + keySep + timeKey(row.Time) + keySep + row.Dose
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

func normalizeMedicationDispenses(rows []MedicationDispenseRow) []MedicationDispenseRow {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Medication != rows[j].Medication {
			return rows[i].Medication < rows[j].Medication
		}
		return rows[i].Time.Less(rows[j].Time)
	})
	seen := make(map[string]bool, len(rows))
	out := make([]MedicationDispenseRow, 0, len(rows))
	for _, row := range rows {
		if !row.Time.Valid || row.Medication == "" {
			continue
		}
		key := row.Medication + keySep + timeKey(row.Time) + keySep + row.Dose
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

func normalizeMedicationAdministrations(rows []MedicationAdministrationRow) []MedicationAdministrationRow {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Medication != rows[j].Medication {
			return rows[i].Medication < rows[j].Medication
		}
		return rows[i].Time.Less(rows[j].Time)
	})
	seen := make(map[string]bool, len(rows))
	out := make([]MedicationAdministrationRow, 0, len(rows))
	for _, row := range rows {
		if !row.Time.Valid || row.Medication == "" {
			continue
		}
		key := row.Medication + keySep + timeKey(row.Time) + keySep + row.Details
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

func normalizeVitals(rows []VitalRow) []VitalRow {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Less(rows[j].Timestamp)
	})
	seen := make(map[string]bool, len(rows))
	out := make([]VitalRow, 0, len(rows))
	for _, row := range rows {
		if !row.Timestamp.Valid || row.Value == "" {
			continue
		}
		key := row.Vital + keySep + row.Group + keySep + timeKey(row.Timestamp)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

func normalizeObservations(rows []ObservationRow) []ObservationRow {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Less(rows[j].Timestamp)
	})
	seen := make(map[string]bool, len(rows))
	out := make([]ObservationRow, 0, len(rows))
	for _, row := range rows {
		if !row.Timestamp.Valid || row.Value == "" {
			continue
		}
		key := row.Observation + keySep + row.Group + keySep + timeKey(row.Timestamp)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

func normalizeLabs(rows []LabRow) []LabRow {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].LabTest != rows[j].LabTest {
			return rows[i].LabTest < rows[j].LabTest
		}
		return rows[i].Timestamp.Less(rows[j].Timestamp)
	})
	seen := make(map[string]bool, len(rows))
	out := make([]LabRow, 0, len(rows))
	for _, row := range rows {
		if !row.Timestamp.Valid {
			continue
		}
		key := row.LabTest + keySep + timeKey(row.Timestamp)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

func normalizeMicrobiology(rows []MicrobiologyRow) []MicrobiologyRow {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Time.Less(rows[j].Time)
	})
	seen := make(map[string]bool, len(rows))
	out := make([]MicrobiologyRow, 0, len(rows))
	for _, row := range rows {
		key := row.Microbiology + keySep + timeKey(row.Time) + keySep + row.Value
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

func normalizeDocuments(rows []DocumentRow) []DocumentRow {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date.Less(rows[j].Date)
	})
	seen := make(map[string]bool, len(rows))
	out := make([]DocumentRow, 0, len(rows))
	for _, row := range rows {
		key := row.ID
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}
