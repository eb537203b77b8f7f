package model

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedSubmission  = errors.New("malformed submission")
	ErrNotFound             = errors.New("analysis not found")
	ErrStoreFault           = errors.New("store fault")
	ErrPipelineFault        = errors.New("pipeline could not be launched")
	ErrResultsFileMissing   = errors.New("results file missing")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrResultsAlreadyStored = errors.New("results already stored")
)

// MalformedSubmissionError points at the offending entry of a submission.
// Index is -1 when the problem is with the batch as a whole.
type MalformedSubmissionError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedSubmissionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", ErrMalformedSubmission, e.Reason)
	}
	return fmt.Sprintf("%s: sequences[%d].%s %s", ErrMalformedSubmission, e.Index, e.Field, e.Reason)
}

func (e *MalformedSubmissionError) Unwrap() error {
	return ErrMalformedSubmission
}
