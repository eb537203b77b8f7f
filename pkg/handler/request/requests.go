package request

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/yumyai/rrna16s/pkg/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SubmissionRequest is the body of POST /analysis/submission.
type SubmissionRequest struct {
	Sequences []SequenceRequest `json:"sequences" validate:"required,min=1,dive"`
}

type SequenceRequest struct {
	ID       string `json:"id" validate:"required"`
	Sequence string `json:"sequence" validate:"required"`
}

// SubmissionResponse is what the client keeps to poll for status.
type SubmissionResponse struct {
	AnalysisUUID string       `json:"analysis_uuid"`
	Status       model.Status `json:"status"`
}

// Validate checks the shape of the request. The rules that need the whole
// batch (unique ids, blank after trimming) live in model.ValidateSequences.
func (r *SubmissionRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &model.MalformedSubmissionError{Index: -1, Field: "sequences", Reason: err.Error()}
	}
	fe := fieldErrs[0]
	index, field := locate(fe.Namespace())
	reason := fmt.Sprintf("failed %q validation", fe.Tag())
	if index < 0 {
		reason = field + " " + reason
	}
	return &model.MalformedSubmissionError{Index: index, Field: field, Reason: reason}
}

// Entries converts the request into validator input.
func (r *SubmissionRequest) Entries() []model.SequenceEntry {
	entries := make([]model.SequenceEntry, len(r.Sequences))
	for i, s := range r.Sequences {
		entries[i] = model.SequenceEntry{ID: s.ID, Sequence: s.Sequence}
	}
	return entries
}

// locate turns "SubmissionRequest.Sequences[2].ID" into (2, "id").
func locate(namespace string) (int, string) {
	open := strings.Index(namespace, "[")
	closing := strings.Index(namespace, "]")
	if open < 0 || closing < open {
		return -1, "sequences"
	}
	var index int
	if _, err := fmt.Sscanf(namespace[open+1:closing], "%d", &index); err != nil {
		return -1, "sequences"
	}
	field := strings.ToLower(strings.TrimPrefix(namespace[closing+1:], "."))
	return index, field
}
