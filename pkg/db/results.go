package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/yumyai/rrna16s/pkg/model"
)

const blastRecordColumns = `query_seq_id, subject_accession, subject_strand,
	query_length, query_start, query_end, subject_length, subject_start, subject_end,
	alignment_length, percent_identity, percent_coverage, num_mismatch, num_gaps,
	e_value, bitscore, subject_taxids, subject_names, blast_database_fk`

// AppendResultRecords stores the records of a successful run and moves the
// analysis from SUCCESS to COMPLETED in the same transaction, so a reader sees
// either no result set or the whole of it. It can only succeed once per
// analysis; a second call gets ErrResultsAlreadyStored.
func (s *Store) AppendResultRecords(ctx context.Context, analysisUUID string, records []model.ResultRecord) error {
	unlock := s.locks.Lock(analysisUUID)
	defer unlock()

	return s.withTx(ctx, "append results", func(tx *sql.Tx) error {

		current, err := s.lockedStatus(ctx, tx, analysisUUID)
		if err != nil {
			return err
		}

		var analysisPK int64
		var existing sql.NullInt64
		err = tx.QueryRowContext(ctx, s.rebind(
			`SELECT a.pk, r.pk FROM analysis a LEFT JOIN analysis_result r ON r.analysis_fk = a.pk
			 WHERE a.analysis_uuid = ?`), analysisUUID).Scan(&analysisPK, &existing)
		if err != nil {
			return storeFault("select analysis_result", err)
		}
		if existing.Valid {
			return fmt.Errorf("%w: %s", model.ErrResultsAlreadyStored, analysisUUID)
		}
		if err := model.ValidateTransition(current, model.StatusCompleted); err != nil {
			return err
		}

		var resultPK int64
		if err := tx.QueryRowContext(ctx, s.rebind(
			`INSERT INTO analysis_result (analysis_fk, created_at) VALUES (?, ?) RETURNING pk`),
			analysisPK, s.timestamp()).Scan(&resultPK); err != nil {
			return storeFault("insert analysis_result", err)
		}

		stmt, err := tx.PrepareContext(ctx, s.rebind(
			`INSERT INTO blast_record (analysis_result_fk, `+blastRecordColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return storeFault("prepare blast_record", err)
		}
		defer stmt.Close()

		for i, r := range records {
			if _, err := stmt.ExecContext(ctx, resultPK,
				r.QuerySeqID, r.SubjectAccession, r.SubjectStrand,
				r.QueryLength, r.QueryStart, r.QueryEnd,
				r.SubjectLength, r.SubjectStart, r.SubjectEnd,
				r.AlignmentLength, r.PercentIdentity, r.PercentCoverage,
				r.NumMismatch, r.NumGaps, r.EValue, r.Bitscore,
				r.SubjectTaxids, r.SubjectNames, r.ReferenceDatabaseID,
			); err != nil {
				return storeFault(fmt.Sprintf("insert blast_record %d", i), err)
			}
		}

		return s.setStatus(ctx, tx, analysisUUID, current, model.StatusCompleted)
	})
}

// GetResults returns the stored records of an analysis. An unknown analysis
// and one without a result set (not completed yet, failed, or completed with
// no results file) are both ErrNotFound.
func (s *Store) GetResults(ctx context.Context, analysisUUID string) ([]model.ResultRecord, error) {

	var resultPK sql.NullInt64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT r.pk FROM analysis a LEFT JOIN analysis_result r ON r.analysis_fk = a.pk
		 WHERE a.analysis_uuid = ?`), analysisUUID).Scan(&resultPK)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, analysisUUID)
	}
	if err != nil {
		return nil, storeFault("select analysis_result", err)
	}
	if !resultPK.Valid {
		return nil, fmt.Errorf("%w: no results for %s", model.ErrNotFound, analysisUUID)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+blastRecordColumns+` FROM blast_record WHERE analysis_result_fk = ? ORDER BY pk`),
		resultPK.Int64)
	if err != nil {
		return nil, storeFault("select blast_record", err)
	}
	defer rows.Close()

	records := make([]model.ResultRecord, 0, 32)
	for rows.Next() {
		var r model.ResultRecord
		var accession, strand, taxids, names sql.NullString
		var qlen, qstart, qend, slen, sstart, send, alen, mismatch, gaps, bits, refDB sql.NullInt64
		var pident, pcov, evalue sql.NullFloat64

		if err := rows.Scan(&r.QuerySeqID, &accession, &strand,
			&qlen, &qstart, &qend, &slen, &sstart, &send,
			&alen, &pident, &pcov, &mismatch, &gaps,
			&evalue, &bits, &taxids, &names, &refDB); err != nil {
			return nil, storeFault("scan blast_record", err)
		}

		r.SubjectAccession = accession.String
		r.SubjectStrand = strand.String
		r.QueryLength = nullInt64(qlen)
		r.QueryStart = nullInt64(qstart)
		r.QueryEnd = nullInt64(qend)
		r.SubjectLength = nullInt64(slen)
		r.SubjectStart = nullInt64(sstart)
		r.SubjectEnd = nullInt64(send)
		r.AlignmentLength = nullInt64(alen)
		r.PercentIdentity = nullFloat64(pident)
		r.PercentCoverage = nullFloat64(pcov)
		r.NumMismatch = nullInt64(mismatch)
		r.NumGaps = nullInt64(gaps)
		r.EValue = nullFloat64(evalue)
		r.Bitscore = nullInt64(bits)
		r.SubjectTaxids = taxids.String
		r.SubjectNames = names.String
		r.ReferenceDatabaseID = nullInt64(refDB)

		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFault("iterate blast_record", err)
	}
	return records, nil
}

func nullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullFloat64(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
