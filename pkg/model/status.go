package model

import (
	"encoding/json"
	"fmt"
)

// Status is the lifecycle state of a submission.
type Status int

const (
	StatusQueued Status = iota
	StatusSuccess
	StatusFailed
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "QUEUED"
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailed:
		return "FAILED"
	case StatusCompleted:
		return "COMPLETED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ParseStatus is the inverse of String.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "QUEUED":
		return StatusQueued, nil
	case "SUCCESS":
		return StatusSuccess, nil
	case "FAILED":
		return StatusFailed, nil
	case "COMPLETED":
		return StatusCompleted, nil
	default:
		return 0, fmt.Errorf("unknown status %q", s)
	}
}

var allowedTransitions = map[Status]map[Status]struct{}{
	StatusQueued: {
		StatusSuccess: {},
		StatusFailed:  {},
	},
	StatusSuccess: {
		StatusCompleted: {},
	},
	StatusFailed:    {},
	StatusCompleted: {},
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to Status) bool {
	_, ok := allowedTransitions[from][to]
	return ok
}

// ValidateTransition is CanTransition with an error that names both ends.
func ValidateTransition(from, to Status) error {
	if _, ok := allowedTransitions[from]; !ok {
		return fmt.Errorf("%w: unknown status %s", ErrInvalidTransition, from)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
