package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yumyai/rrna16s/pkg/model"
)

// CreateSubmission stores a new QUEUED analysis with all of its sequences in a
// single transaction; either everything is visible afterwards or nothing is.
func (s *Store) CreateSubmission(ctx context.Context, seqs []model.InputSequence) (*model.Submission, error) {

	now := s.timestamp()
	sub := &model.Submission{
		UUID:      uuid.NewString(),
		Status:    model.StatusQueued,
		CreatedAt: fromTimestamp(now),
		UpdatedAt: fromTimestamp(now),
		Sequences: seqs,
	}

	err := s.withTx(ctx, "create submission", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, s.rebind(
			`INSERT INTO analysis (analysis_uuid, status, created_at, updated_at) VALUES (?, ?, ?, ?) RETURNING pk`),
			sub.UUID, sub.Status.String(), now, now)
		if err := row.Scan(&sub.PK); err != nil {
			return storeFault("insert analysis", err)
		}

		stmt, err := tx.PrepareContext(ctx, s.rebind(
			`INSERT INTO input_sequence (id, analysis_fk, sequence, sequence_length, num_ambiguous_bases, num_n_bases)
			 VALUES (?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return storeFault("prepare input_sequence", err)
		}
		defer stmt.Close()

		for _, seq := range seqs {
			if _, err := stmt.ExecContext(ctx, seq.ID, sub.PK, seq.Sequence,
				seq.Length, seq.NumAmbiguousBases, seq.NumNBases); err != nil {
				return storeFault(fmt.Sprintf("insert input_sequence %q", seq.ID), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// GetSubmission returns the analysis with its input sequences.
func (s *Store) GetSubmission(ctx context.Context, analysisUUID string) (*model.Submission, error) {

	sub, err := s.getAnalysis(ctx, analysisUUID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, sequence, sequence_length, num_ambiguous_bases, num_n_bases
		 FROM input_sequence WHERE analysis_fk = ? ORDER BY pk`), sub.PK)
	if err != nil {
		return nil, storeFault("select input_sequence", err)
	}
	defer rows.Close()

	sub.Sequences = make([]model.InputSequence, 0, 8)
	for rows.Next() {
		var seq model.InputSequence
		var length, ambiguous, n sql.NullInt64
		if err := rows.Scan(&seq.ID, &seq.Sequence, &length, &ambiguous, &n); err != nil {
			return nil, storeFault("scan input_sequence", err)
		}
		seq.Length = nullInt(length)
		seq.NumAmbiguousBases = nullInt(ambiguous)
		seq.NumNBases = nullInt(n)
		sub.Sequences = append(sub.Sequences, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFault("iterate input_sequence", err)
	}
	return sub, nil
}

// ListSubmissions returns every analysis in creation order, without sequences.
func (s *Store) ListSubmissions(ctx context.Context) ([]*model.Submission, error) {
	return s.listAnalyses(ctx, `SELECT pk, analysis_uuid, status, created_at, updated_at FROM analysis ORDER BY pk`)
}

// ListByStatus is used on start up to pick up analyses left QUEUED.
func (s *Store) ListByStatus(ctx context.Context, status model.Status) ([]*model.Submission, error) {
	return s.listAnalyses(ctx,
		`SELECT pk, analysis_uuid, status, created_at, updated_at FROM analysis WHERE status = ? ORDER BY pk`, status.String())
}

func (s *Store) listAnalyses(ctx context.Context, query string, args ...any) ([]*model.Submission, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, storeFault("select analysis", err)
	}
	defer rows.Close()

	subs := make([]*model.Submission, 0, 16)
	for rows.Next() {
		sub, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFault("iterate analysis", err)
	}
	return subs, nil
}

// UpdateStatus moves an analysis along the lifecycle. Transitions that are not
// edges of the lifecycle (including going backwards) fail with
// ErrInvalidTransition and leave the row untouched.
func (s *Store) UpdateStatus(ctx context.Context, analysisUUID string, next model.Status) error {
	unlock := s.locks.Lock(analysisUUID)
	defer unlock()

	return s.withTx(ctx, "update status", func(tx *sql.Tx) error {
		current, err := s.lockedStatus(ctx, tx, analysisUUID)
		if err != nil {
			return err
		}
		if err := model.ValidateTransition(current, next); err != nil {
			return err
		}
		return s.setStatus(ctx, tx, analysisUUID, current, next)
	})
}

// lockedStatus reads the status inside tx. On postgres the row is locked until
// the transaction ends; sqlite transactions here are already IMMEDIATE.
func (s *Store) lockedStatus(ctx context.Context, tx *sql.Tx, analysisUUID string) (model.Status, error) {
	query := `SELECT status FROM analysis WHERE analysis_uuid = ?`
	if s.dialect == dialectPostgres {
		query += ` FOR UPDATE`
	}
	var raw string
	err := tx.QueryRowContext(ctx, s.rebind(query), analysisUUID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", model.ErrNotFound, analysisUUID)
	}
	if err != nil {
		return 0, storeFault("select status", err)
	}
	status, err := model.ParseStatus(raw)
	if err != nil {
		return 0, storeFault("select status", err)
	}
	return status, nil
}

// setStatus is a compare-and-set on the status column.
func (s *Store) setStatus(ctx context.Context, tx *sql.Tx, analysisUUID string, from, to model.Status) error {
	res, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE analysis SET status = ?, updated_at = ? WHERE analysis_uuid = ? AND status = ?`),
		to.String(), s.timestamp(), analysisUUID, from.String())
	if err != nil {
		return storeFault("update status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeFault("update status", err)
	}
	if n != 1 {
		return fmt.Errorf("%w: %s is no longer %s", model.ErrInvalidTransition, analysisUUID, from)
	}
	return nil
}

func (s *Store) getAnalysis(ctx context.Context, analysisUUID string) (*model.Submission, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT pk, analysis_uuid, status, created_at, updated_at FROM analysis WHERE analysis_uuid = ?`),
		analysisUUID)
	sub, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, analysisUUID)
	}
	return sub, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*model.Submission, error) {
	var sub model.Submission
	var status string
	var created, updated int64
	err := row.Scan(&sub.PK, &sub.UUID, &status, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, storeFault("scan analysis", err)
	}
	if sub.Status, err = model.ParseStatus(status); err != nil {
		return nil, storeFault("scan analysis", err)
	}
	sub.CreatedAt = fromTimestamp(created)
	sub.UpdatedAt = fromTimestamp(updated)
	return &sub, nil
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
