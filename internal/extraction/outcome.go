package extraction

import (
	"context"
	"errors"
	"time"
)

// Status is the terminal state of one job.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// ErrorKind classifies job failures for the failures table.
type ErrorKind string

const (
	KindInput      ErrorKind = "input"
	KindMatch      ErrorKind = "match"
	KindExtraction ErrorKind = "extraction"
	KindResource   ErrorKind = "resource"
	KindTimeout    ErrorKind = "timeout"
	KindCanceled   ErrorKind = "canceled"
)

// Outcome is the tagged result of one job. Record is set only on success;
// Kind and Message are set only on failure. Skipped outcomes carry the
// skip reason in Message.
type Outcome struct {
	CaseID   string
	Status   Status
	Record   *Record
	Kind     ErrorKind
	Message  string
	Duration time.Duration
}

// ErrResource marks environment failures (scratch space, memory, tool
// missing) as opposed to per-case bad data.
var ErrResource = errors.New("resource error")

// ErrExtraction marks a failure reported by the external extractor for one
// case.
var ErrExtraction = errors.New("extraction error")

// kindFor maps a job error to its failure kind.
func kindFor(err error) ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrResource):
		return KindResource
	default:
		return KindExtraction
	}
}
