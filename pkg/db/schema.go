package db

import (
	"context"
	"fmt"
	"strings"
)

// Table names follow the original service so an existing database can be
// pointed at directly.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS analysis (
	pk {{PK}},
	analysis_uuid TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_analysis_status ON analysis (status);
CREATE TABLE IF NOT EXISTS input_sequence (
	pk {{PK}},
	id TEXT NOT NULL,
	analysis_fk BIGINT NOT NULL REFERENCES analysis (pk),
	sequence TEXT NOT NULL,
	sequence_length INTEGER,
	num_ambiguous_bases INTEGER,
	num_n_bases INTEGER,
	UNIQUE (analysis_fk, id)
);
CREATE TABLE IF NOT EXISTS analysis_result (
	pk {{PK}},
	analysis_fk BIGINT NOT NULL UNIQUE REFERENCES analysis (pk),
	created_at BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS blast_database (
	pk {{PK}},
	database_name TEXT NOT NULL UNIQUE,
	database_version_string TEXT,
	database_version_date TEXT,
	database_path TEXT
);
CREATE TABLE IF NOT EXISTS blast_record (
	pk {{PK}},
	analysis_result_fk BIGINT NOT NULL REFERENCES analysis_result (pk),
	blast_database_fk BIGINT REFERENCES blast_database (pk),
	query_seq_id TEXT NOT NULL,
	subject_accession TEXT,
	subject_strand TEXT,
	query_length BIGINT,
	query_start BIGINT,
	query_end BIGINT,
	subject_length BIGINT,
	subject_start BIGINT,
	subject_end BIGINT,
	alignment_length BIGINT,
	percent_identity {{FLOAT}},
	percent_coverage {{FLOAT}},
	num_mismatch BIGINT,
	num_gaps BIGINT,
	e_value {{FLOAT}},
	bitscore BIGINT,
	subject_taxids TEXT,
	subject_names TEXT
);
CREATE INDEX IF NOT EXISTS ix_blast_record_result ON blast_record (analysis_result_fk);
`

func (s *Store) schema() string {
	pk, float := "INTEGER PRIMARY KEY AUTOINCREMENT", "REAL"
	if s.dialect == dialectPostgres {
		pk, float = "BIGSERIAL PRIMARY KEY", "DOUBLE PRECISION"
	}
	return strings.NewReplacer("{{PK}}", pk, "{{FLOAT}}", float).Replace(schemaTemplate)
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(s.schema(), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
