package extraction

import "time"

// FeatureValue is one named feature of a record. Undefined marks values
// the extractor could not compute for this region; Approximate marks
// values that were numerically substituted rather than computed exactly.
type FeatureValue struct {
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	Undefined   bool    `json:"undefined,omitempty"`
	Approximate bool    `json:"approximate,omitempty"`
}

// Record is the result of one successful extraction.
type Record struct {
	CaseID      string
	LesionGroup string
	ROIVolume   float64
	Features    []FeatureValue
	Warnings    []string
	Duration    time.Duration
}
