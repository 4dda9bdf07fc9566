// Package pipeline composes the full transform applied to one uploaded
// patient file: parse the envelope, stitch the encounters, summarize the
// patient, and render the result document.
package pipeline

import (
	"encoding/json"
	"time"

	"carelens.com/stitch/record"
	"carelens.com/stitch/stitch"
)

// Pipeline turns one patient file into its stitched result document. It is
// safe to call repeatedly and concurrently: the underlying transform is pure
// and never mutates the parsed collections.
type Pipeline func(data []byte) ([]byte, error)

// Response is the stitched result document.
type Response struct {
	PatientID    string              `json:"patient_id"`
	Demographics record.Demographics `json:"demographics"`
	Encounters   json.RawMessage     `json:"encounters"`
}

// New binds a category profile and the reference assets into a Pipeline.
// The clock only feeds the patient-age field of the demographics summary.
func New(profile stitch.Profile, assets record.Assets, clock func() time.Time) Pipeline {
	refs := assets.ReferenceMaps()
	return func(data []byte) ([]byte, error) {
		rec, err := record.Parse(data)
		if err != nil {
			return nil, err
		}
		bundles := stitch.Stitch(rec.Collections, refs, profile)
		encounters, err := stitch.MarshalBundles(bundles)
		if err != nil {
			return nil, err
		}
		return json.Marshal(Response{
			PatientID:    rec.PatientID,
			Demographics: record.Summarize(rec.PatientID, rec.Patient(), assets.Organizations, clock()),
			Encounters:   encounters,
		})
	}
}
