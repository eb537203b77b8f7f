package model

import "time"

// Submission is one client batch, identified by UUID.
type Submission struct {
	PK        int64           `json:"-"`
	UUID      string          `json:"analysis_uuid"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Sequences []InputSequence `json:"input_sequences,omitempty"`
}

// InputSequence is one caller supplied sequence. ID is unique only within its
// submission. The derived counts are filled once, at creation.
type InputSequence struct {
	ID                string `json:"id"`
	Sequence          string `json:"sequence"`
	Length            *int   `json:"sequence_length"`
	NumAmbiguousBases *int   `json:"num_ambiguous_bases"`
	NumNBases         *int   `json:"num_n_bases"`
}

// ReferenceDatabase describes the BLAST database a run searched against.
type ReferenceDatabase struct {
	PK            int64  `json:"id"`
	Name          string `json:"database_name"`
	VersionString string `json:"database_version_string"`
	VersionDate   string `json:"database_version_date"`
	Path          string `json:"database_path"`
}

// ResultSet groups the records of one successful pipeline run.
type ResultSet struct {
	PK           int64     `json:"-"`
	SubmissionPK int64     `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// ResultRecord is one subject hit for one query sequence. Numeric fields are
// nil when the pipeline wrote something that did not parse.
type ResultRecord struct {
	QuerySeqID          string   `json:"query_seq_id"`
	SubjectAccession    string   `json:"subject_accession"`
	SubjectStrand       string   `json:"subject_strand"`
	QueryLength         *int64   `json:"query_length"`
	QueryStart          *int64   `json:"query_start"`
	QueryEnd            *int64   `json:"query_end"`
	SubjectLength       *int64   `json:"subject_length"`
	SubjectStart        *int64   `json:"subject_start"`
	SubjectEnd          *int64   `json:"subject_end"`
	AlignmentLength     *int64   `json:"alignment_length"`
	PercentIdentity     *float64 `json:"percent_identity"`
	PercentCoverage     *float64 `json:"percent_coverage"`
	NumMismatch         *int64   `json:"num_mismatch"`
	NumGaps             *int64   `json:"num_gaps"`
	EValue              *float64 `json:"e_value"`
	Bitscore            *int64   `json:"bitscore"`
	SubjectTaxids       string   `json:"subject_taxids"`
	SubjectNames        string   `json:"subject_names"`
	ReferenceDatabaseID *int64   `json:"blast_database_id,omitempty"`
}
