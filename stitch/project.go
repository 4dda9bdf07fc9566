package stitch

import (
	"encoding/base64"

	"carelens.com/stitch/document"
)

// ReferenceMaps are the externally supplied id -> display-name lookups built
// from the export's reference collections.
type ReferenceMaps struct {
	Locations   map[string]string
	Medications map[string]string
}

const noValue = "N/A"

func projectConditions(docs []document.Document) []ConditionRow {
	rows := make([]ConditionRow, 0, len(docs))
	for _, doc := range docs {
		rows = append(rows, ConditionRow{
			Condition: document.ResolveString(doc, noValue,
				document.Path{"code.coding", 0, "display"},
				document.Path{"code", "coding", 0, "display"}),
			Code: document.ResolveString(doc, noValue,
				document.Path{"code.coding", 0, "code"},
				document.Path{"code", "coding", 0, "code"}),
		})
	}
	return rows
}

func projectProcedures(docs []document.Document) []ProcedureRow {
	rows := make([]ProcedureRow, 0, len(docs))
	for _, doc := range docs {
		start, _ := document.Resolve(doc,
			document.Path{"performedDateTime"},
			document.Path{"performedPeriod", "start"},
			document.Path{"performedPeriod.start"})
		end, _ := document.Resolve(doc,
			document.Path{"performedPeriod", "end"},
			document.Path{"performedPeriod.end"})
		rows = append(rows, ProcedureRow{
			Procedure: document.ResolveString(doc, noValue,
				document.Path{"code.coding", 0, "display"},
				document.Path{"code", "coding", 0, "display"}),
			Code: document.ResolveString(doc, noValue,
				document.Path{"code.coding", 0, "code"},
				document.Path{"code", "coding", 0, "code"}),
			Start: document.ParseTimestamp(start),
			End:   document.ParseTimestamp(end),
		})
	}
	return rows
}

// medicationName resolves a display name from the coded concept, then falls
// back to the medication reference map. Empty means unresolvable and the row
// is dropped by the caller.
func medicationName(doc document.Document, medications map[string]string, codedPaths ...document.Path) string {
	name := document.ResolveString(doc, "", codedPaths...)
	ref := document.ResolveString(doc, "",
		document.Path{"medicationReference.reference"},
		document.Path{"medicationReference", "reference"})
	if ref != "" {
		if mapped, ok := medications[document.ReferenceID(ref, "Medication")]; ok {
			return mapped
		}
	}
	return name
}

// periodBound renders one bound of a validity period, reformatting it when
// it parses and passing it through when it does not.
func periodBound(doc document.Document, paths ...document.Path) string {
	raw := document.ResolveString(doc, noValue, paths...)
	if raw == noValue {
		return raw
	}
	if ts, ok := document.ParseTime(raw); ok {
		return document.FormatTime(ts)
	}
	return raw
}

func projectMedicationRequests(docs []document.Document, refs ReferenceMaps) []MedicationRequestRow {
	var rows []MedicationRequestRow
	for _, doc := range docs {
		name := medicationName(doc, refs.Medications,
			document.Path{"medicationCodeableConcept", "coding", 0, "display"},
			document.Path{"medicationCodeableConcept.coding", 0, "display"})
		if name == "" {
			continue
		}
		start := periodBound(doc,
			document.Path{"dispenseRequest.validityPeriod.start"},
			document.Path{"dispenseRequest", "validityPeriod", "start"})
		end := periodBound(doc,
			document.Path{"dispenseRequest.validityPeriod.end"},
			document.Path{"dispenseRequest", "validityPeriod", "end"})
		authoredOn, _ := document.Resolve(doc, document.Path{"authoredOn"})
		rows = append(rows, MedicationRequestRow{
			Time:       document.ParseTimestamp(authoredOn),
			Medication: name,
			Status:     document.ResolveString(doc, "", document.Path{"status"}),
			Period:     start + " - " + end,
			Dose: document.ResolveString(doc, "",
				document.Path{"dosageInstruction", 0, "text"}),
			Route: document.ResolveString(doc, noValue,
				document.Path{"dosageInstruction", 0, "route", "coding", 0, "code"}),
		})
	}
	return rows
}

func projectMedicationDispenses(docs []document.Document, refs ReferenceMaps) []MedicationDispenseRow {
	var rows []MedicationDispenseRow
	for _, doc := range docs {
		// Dispense records carry the code, not the display name.
		name := medicationName(doc, refs.Medications,
			document.Path{"medicationCodeableConcept", "coding", 0, "code"},
			document.Path{"medicationCodeableConcept.coding", 0, "code"})
		if name == "" {
			continue
		}
		handedOver, _ := document.Resolve(doc, document.Path{"whenHandedOver"})
		rows = append(rows, MedicationDispenseRow{
			Time:       document.ParseTimestamp(handedOver),
			Medication: name,
			Status:     document.ResolveString(doc, "", document.Path{"status"}),
			Dose: document.ResolveString(doc, "",
				document.Path{"dosageInstruction", 0, "text"}),
			Route: document.ResolveString(doc, noValue,
				document.Path{"dosageInstruction", 0, "route", "coding", 0, "code"}),
			Timing: document.ResolveString(doc, noValue,
				document.Path{"dosageInstruction", 0, "timing", "code", "coding", 0, "code"}),
		})
	}
	return rows
}

func projectMedicationAdministrations(docs []document.Document, refs ReferenceMaps) []MedicationAdministrationRow {
	var rows []MedicationAdministrationRow
	for _, doc := range docs {
		name := medicationName(doc, refs.Medications,
			document.Path{"medicationCodeableConcept", "coding", 0, "display"},
			document.Path{"medicationCodeableConcept.coding", 0, "display"})
		if name == "" {
			continue
		}
		dose := document.Format(document.ResolveDefault(doc, "",
			document.Path{"dosage", "dose", "value"},
			document.Path{"dosage.dose.value"}))
		unit := document.ResolveString(doc, "",
			document.Path{"dosage", "dose", "unit"},
			document.Path{"dosage.dose.unit"})
		effective, _ := document.Resolve(doc, document.Path{"effectiveDateTime"})
		rows = append(rows, MedicationAdministrationRow{
			Time:       document.ParseTimestamp(effective),
			Medication: name,
			Status:     document.ResolveString(doc, "", document.Path{"status"}),
			Details:    dose + " " + unit,
			Route: document.ResolveString(doc, noValue,
				document.Path{"dosage", "method", "coding", 0, "code"},
				document.Path{"dosage.method.coding", 0, "code"}),
		})
	}
	return rows
}

// scalarValue extracts the display value of one observation node (a whole
// document or one panel component). The encodings override each other in a
// fixed order: a pre-flattened quantity beats a nested quantity beats a
// plain string value.
func scalarValue(node document.Document) string {
	value := document.ResolveString(node, "", document.Path{"valueString"})
	if quantity, ok := document.Resolve(node, document.Path{"valueQuantity", "value"}); ok {
		value = document.FormatQuantity(quantity,
			document.ResolveString(node, "", document.Path{"valueQuantity", "unit"}))
	}
	if quantity, ok := document.Resolve(node, document.Path{"valueQuantity.value"}); ok {
		value = document.FormatQuantity(quantity,
			document.ResolveString(node, "", document.Path{"valueQuantity.unit"}))
	}
	return value
}

func groupLabel(node document.Document) string {
	label := document.ResolveString(node, "",
		document.Path{"category", 0, "coding", 0, "display"},
		document.Path{"category", 0, "coding", 0, "code"})
	if label == "" {
		return "Vital Signs"
	}
	return label
}

func entityLabel(node document.Document) string {
	return document.ResolveString(node, "",
		document.Path{"code", "coding", 0, "display"},
		document.Path{"code.coding", 0, "display"})
}

// projectObservationPool maps the generic observation collections into raw
// vital rows, exploding multi-parameter component panels into one row per
// component under the parent's timestamp. Classification into the vitals,
// observations and labs tables happens afterwards.
func projectObservationPool(docs []document.Document) []VitalRow {
	var rows []VitalRow
	for _, doc := range docs {
		raw, ok := document.Resolve(doc, document.Path{"effectiveDateTime"})
		if !ok {
			continue
		}
		ts := document.ParseTimestamp(raw)
		components, ok := document.Resolve(doc, document.Path{"component"})
		if list, isList := components.([]interface{}); ok && isList {
			for _, item := range list {
				comp, isDoc := item.(map[string]interface{})
				if !isDoc {
					continue
				}
				rows = append(rows, VitalRow{
					Timestamp: ts,
					Vital:     entityLabel(comp),
					Group:     groupLabel(comp),
					Value:     scalarValue(comp),
				})
			}
			continue
		}
		rows = append(rows, VitalRow{
			Timestamp: ts,
			Vital:     entityLabel(doc),
			Group:     groupLabel(doc),
			Value:     scalarValue(doc),
		})
	}
	return rows
}

func projectLabs(docs []document.Document) []LabRow {
	rows := make([]LabRow, 0, len(docs))
	for _, doc := range docs {
		effective, _ := document.Resolve(doc, document.Path{"effectiveDateTime"})
		rows = append(rows, LabRow{
			Timestamp: document.ParseTimestamp(effective),
			LabTest: document.ResolveString(doc, noValue,
				document.Path{"code.coding", 0, "display"},
				document.Path{"code", "coding", 0, "display"}),
			Value:   scalarValue(doc),
			LowRef:  document.Format(document.ResolveDefault(doc, "", document.Path{"referenceRange", 0, "low", "value"})),
			HighRef: document.Format(document.ResolveDefault(doc, "", document.Path{"referenceRange", 0, "high", "value"})),
		})
	}
	return rows
}

func projectMicrobiology(docs []document.Document) []MicrobiologyRow {
	rows := make([]MicrobiologyRow, 0, len(docs))
	for _, doc := range docs {
		value := document.ResolveString(doc, "", document.Path{"valueString"})
		if coded := document.ResolveString(doc, "",
			document.Path{"valueCodeableConcept.coding", 0, "display"},
			document.Path{"valueCodeableConcept", "coding", 0, "display"}); coded != "" {
			value = coded
		}
		effective, _ := document.Resolve(doc, document.Path{"effectiveDateTime"})
		rows = append(rows, MicrobiologyRow{
			Time: document.ParseTimestamp(effective),
			Microbiology: document.ResolveString(doc, noValue,
				document.Path{"code.coding", 0, "display"},
				document.Path{"code", "coding", 0, "display"}),
			Value: value,
		})
	}
	return rows
}

func projectDocuments(docs []document.Document) []DocumentRow {
	rows := make([]DocumentRow, 0, len(docs))
	for _, doc := range docs {
		date, _ := document.Resolve(doc, document.Path{"date"})
		text := ""
		if data := document.ResolveString(doc, "",
			document.Path{"content", 0, "attachment", "data"}); data != "" {
			if decoded, err := base64.StdEncoding.DecodeString(data); err == nil {
				text = string(decoded)
			}
		}
		rows = append(rows, DocumentRow{
			Date: document.ParseTimestamp(date),
			Title: document.ResolveString(doc, "Document",
				document.Path{"content", 0, "attachment", "title"}),
			ID:   document.ResolveString(doc, "", document.Path{"id"}),
			Text: text,
		})
	}
	return rows
}

func projectLocations(doc document.Document, locations map[string]string) []LocationStay {
	// Never nil: an empty list must survive the merge patch as [].
	stays := []LocationStay{}
	raw, ok := document.Resolve(doc, document.Path{"location"})
	if !ok {
		return stays
	}
	list, ok := raw.([]interface{})
	if !ok {
		return stays
	}
	for _, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		ref := document.ResolveString(entry, "", document.Path{"location", "reference"})
		name, ok := locations[document.ReferenceID(ref, "Location")]
		if !ok {
			name = "Unknown Location"
		}
		start, _ := document.Resolve(entry, document.Path{"period", "start"})
		end, _ := document.Resolve(entry, document.Path{"period", "end"})
		stays = append(stays, LocationStay{
			Location: name,
			Start:    document.ParseTimestamp(start),
			End:      document.ParseTimestamp(end),
		})
	}
	return stays
}
