package stitch

import (
	"sort"

	"carelens.com/stitch/document"
)

// Group is one root encounter plus the references of every ED/ICU
// sub-encounter linked to it through partOf. Clinical events are attributed
// to a group when any of their foreign-key fields lands in Members.
type Group struct {
	Encounter document.Document
	ID        string
	Members   map[string]bool
	Start     document.Timestamp
}

var (
	partOfPaths      = fieldPaths("partOf.reference")
	periodStartPaths = fieldPaths("period.start")
	periodEndPaths   = fieldPaths("period.end")
)

func encounterID(doc document.Document) string {
	id, _ := document.Resolve(doc, document.Path{"id"})
	s, _ := id.(string)
	return s
}

func partOfReference(doc document.Document) string {
	value, ok := document.Resolve(doc, partOfPaths...)
	if !ok {
		return ""
	}
	return document.NormalizeReference(value)
}

// BuildGroups finds the root encounters (inpatient and ED entries without a
// partOf parent) and assembles each root's membership set from the ED and
// ICU collections. Roots come back sorted ascending by period.start;
// encounters with an unparseable start sort first, ties break on id, so the
// final bundle order is deterministic.
func BuildGroups(cols Collections, profile Profile) []Group {
	ed := cols.Get(profile.Encounters.ED)
	icu := cols.Get(profile.Encounters.ICU)

	var groups []Group
	for _, doc := range cols.union([]string{profile.Encounters.Inpatient, profile.Encounters.ED}) {
		if partOfReference(doc) != "" {
			// Sub-encounters only ever extend a parent's membership set.
			continue
		}
		id := encounterID(doc)
		if id == "" {
			continue
		}
		rootRef := "Encounter/" + id
		members := map[string]bool{rootRef: true}
		for _, sub := range ed {
			if partOfReference(sub) == rootRef {
				if subID := encounterID(sub); subID != "" {
					members["Encounter/"+subID] = true
				}
			}
		}
		for _, sub := range icu {
			if partOfReference(sub) == rootRef {
				if subID := encounterID(sub); subID != "" {
					members["Encounter/"+subID] = true
				}
			}
		}
		start, _ := document.Resolve(doc, periodStartPaths...)
		groups = append(groups, Group{
			Encounter: doc,
			ID:        id,
			Members:   members,
			Start:     document.ParseTimestamp(start),
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Start.Valid != groups[j].Start.Valid || !groups[i].Start.Equal(groups[j].Start.Time) {
			return groups[i].Start.Less(groups[j].Start)
		}
		return groups[i].ID < groups[j].ID
	})
	return groups
}
