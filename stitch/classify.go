package stitch

import (
	"strings"
)

// Category tags one row drawn from the generic observation collections.
type Category int

const (
	CategoryVital Category = iota
	CategoryLab
	CategoryObservation
)

func (c Category) String() string {
	switch c {
	case CategoryVital:
		return "vital"
	case CategoryLab:
		return "lab"
	default:
		return "observation"
	}
}

// Classify routes a generic observation row by its free-text group label:
// anything mentioning "vital" is a vital sign, the literal group "labs" is
// folded into the labs table, everything else is a plain observation. The
// labels are free text, not a controlled vocabulary, so this stays a
// standalone policy function that can be revised without touching the
// extraction code.
func Classify(group string) Category {
	lower := strings.ToLower(group)
	if strings.Contains(lower, "vital") {
		return CategoryVital
	}
	if lower == "labs" {
		return CategoryLab
	}
	return CategoryObservation
}
