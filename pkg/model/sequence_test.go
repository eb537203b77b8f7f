package model

import (
	"errors"
	"testing"
)

func TestValidateSequences(t *testing.T) {

	tests := []struct {
		name        string
		entries     []SequenceEntry
		shouldError bool
		errIndex    int
	}{
		{
			name:    "Valid",
			entries: []SequenceEntry{{ID: "s1", Sequence: "ACGT"}, {ID: "s2", Sequence: "GGCC"}},
		},
		{
			name:        "Empty batch",
			entries:     nil,
			shouldError: true,
			errIndex:    -1,
		},
		{
			name:        "Empty id",
			entries:     []SequenceEntry{{ID: "s1", Sequence: "ACGT"}, {ID: "  ", Sequence: "ACGT"}},
			shouldError: true,
			errIndex:    1,
		},
		{
			name:        "Empty sequence",
			entries:     []SequenceEntry{{ID: "s1", Sequence: " \n "}},
			shouldError: true,
			errIndex:    0,
		},
		{
			name:        "Duplicate id",
			entries:     []SequenceEntry{{ID: "s1", Sequence: "ACGT"}, {ID: "s2", Sequence: "A"}, {ID: "s1", Sequence: "T"}},
			shouldError: true,
			errIndex:    2,
		},
		{
			name:        "Id with newline",
			entries:     []SequenceEntry{{ID: "s1\ns2", Sequence: "ACGT"}},
			shouldError: true,
			errIndex:    0,
		},
		{
			name:        "Id with inner space",
			entries:     []SequenceEntry{{ID: "s1", Sequence: "ACGT"}, {ID: "s 2", Sequence: "ACGT"}},
			shouldError: true,
			errIndex:    1,
		},
		{
			name:        "Id with tab",
			entries:     []SequenceEntry{{ID: "s\t1", Sequence: "ACGT"}},
			shouldError: true,
			errIndex:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seqs, err := ValidateSequences(tt.entries)

			if tt.shouldError {
				if !errors.Is(err, ErrMalformedSubmission) {
					t.Fatalf("expected ErrMalformedSubmission, got %v", err)
				}
				var merr *MalformedSubmissionError
				if !errors.As(err, &merr) {
					t.Fatalf("expected *MalformedSubmissionError, got %T", err)
				}
				if merr.Index != tt.errIndex {
					t.Errorf("error index = %d, want %d", merr.Index, tt.errIndex)
				}
				if seqs != nil {
					t.Errorf("expected no sequences on error")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(seqs) != len(tt.entries) {
				t.Fatalf("got %d sequences, want %d", len(seqs), len(tt.entries))
			}
		})
	}
}

func TestValidateSequences_NormalisesInput(t *testing.T) {
	seqs, err := ValidateSequences([]SequenceEntry{{ID: " s1 ", Sequence: "ACGTN\nnRYacgt\r\n"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := seqs[0]
	if s.ID != "s1" {
		t.Errorf("id = %q, want s1", s.ID)
	}
	if s.Sequence != "ACGTNnRYacgt" {
		t.Errorf("sequence = %q", s.Sequence)
	}
	if *s.Length != 12 {
		t.Errorf("length = %d, want 12", *s.Length)
	}
	if *s.NumNBases != 2 {
		t.Errorf("N count = %d, want 2", *s.NumNBases)
	}
	if *s.NumAmbiguousBases != 2 {
		t.Errorf("ambiguous count = %d, want 2", *s.NumAmbiguousBases)
	}
}
