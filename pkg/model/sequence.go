// Input sequence validation and the derived per-sequence counts.

package model

import (
	"fmt"
	"strings"
	"unicode"
)

// SequenceEntry is the raw {id, sequence} pair as a client sends it.
type SequenceEntry struct {
	ID       string `json:"id"`
	Sequence string `json:"sequence"`
}

// IUPAC codes that stand for more than one base. N is counted separately.
var ambiguousBases = map[byte]struct{}{
	'R': {}, 'Y': {}, 'S': {}, 'W': {}, 'K': {}, 'M': {},
	'B': {}, 'D': {}, 'H': {}, 'V': {},
}

// ValidateSequences checks a submission batch and turns it into InputSequences.
// It does not look at the alphabet, the pipeline does that.
func ValidateSequences(entries []SequenceEntry) ([]InputSequence, error) {

	if len(entries) == 0 {
		return nil, &MalformedSubmissionError{Index: -1, Reason: "no sequences submitted"}
	}

	seen := make(map[string]int, len(entries))
	sequences := make([]InputSequence, 0, len(entries))

	for i, e := range entries {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return nil, &MalformedSubmissionError{Index: i, Field: "id", Reason: "is empty"}
		}
		// The id becomes a FASTA header; BLAST cuts it at the first space.
		if strings.IndexFunc(id, unicode.IsSpace) >= 0 {
			return nil, &MalformedSubmissionError{Index: i, Field: "id", Reason: "contains whitespace"}
		}
		if first, dup := seen[id]; dup {
			return nil, &MalformedSubmissionError{
				Index:  i,
				Field:  "id",
				Reason: fmt.Sprintf("duplicates sequences[%d].id %q", first, id),
			}
		}
		seen[id] = i

		seq := stripWhitespace(e.Sequence)
		if seq == "" {
			return nil, &MalformedSubmissionError{Index: i, Field: "sequence", Reason: "is empty"}
		}

		sequences = append(sequences, NewInputSequence(id, seq))
	}

	return sequences, nil
}

// NewInputSequence builds an InputSequence with its derived counts filled.
func NewInputSequence(id, seq string) InputSequence {
	length, ambiguous, n := baseCounts(seq)
	return InputSequence{
		ID:                id,
		Sequence:          seq,
		Length:            &length,
		NumAmbiguousBases: &ambiguous,
		NumNBases:         &n,
	}
}

func baseCounts(seq string) (length, ambiguous, n int) {
	for i := 0; i < len(seq); i++ {
		b := seq[i]
		if 'a' <= b && b <= 'z' {
			b -= 'a' - 'A'
		}
		if b == 'N' {
			n++
		} else if _, ok := ambiguousBases[b]; ok {
			ambiguous++
		}
	}
	return len(seq), ambiguous, n
}

// Sequences pasted from a FASTA file arrive wrapped at 60 or 80 columns.
func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
