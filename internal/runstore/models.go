package runstore

import "time"

// Run is one persisted run summary.
type Run struct {
	ID                  string
	Mode                string
	StartedAt           time.Time
	FinishedAt          time.Time
	Submitted           int
	Succeeded           int
	Skipped             int
	Failed              int
	ImageInput          string
	MaskInput           string
	OutputDir           string
	ParamsJSON          string
	CompletedWithErrors bool
}

// CaseOutcome is one persisted per-case result.
type CaseOutcome struct {
	RunID      string
	CaseID     string
	Status     string
	Kind       string
	Message    string
	DurationMS int64
}
