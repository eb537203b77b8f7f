package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/yumyai/rrna16s/pkg/model"
)

// UpsertReferenceDatabase registers a BLAST database by name, updating its
// version and path if it is already known, and returns its key.
func (s *Store) UpsertReferenceDatabase(ctx context.Context, ref model.ReferenceDatabase) (int64, error) {
	var pk int64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO blast_database (database_name, database_version_string, database_version_date, database_path)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (database_name) DO UPDATE SET
			database_version_string = excluded.database_version_string,
			database_version_date = excluded.database_version_date,
			database_path = excluded.database_path
		 RETURNING pk`),
		ref.Name, ref.VersionString, ref.VersionDate, ref.Path).Scan(&pk)
	if err != nil {
		return 0, storeFault("upsert blast_database", err)
	}
	return pk, nil
}

// GetReferenceDatabase looks a BLAST database up by name.
func (s *Store) GetReferenceDatabase(ctx context.Context, name string) (*model.ReferenceDatabase, error) {
	var ref model.ReferenceDatabase
	var version, date, path sql.NullString
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT pk, database_name, database_version_string, database_version_date, database_path
		 FROM blast_database WHERE database_name = ?`), name).
		Scan(&ref.PK, &ref.Name, &version, &date, &path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: blast database %s", model.ErrNotFound, name)
	}
	if err != nil {
		return nil, storeFault("select blast_database", err)
	}
	ref.VersionString = version.String
	ref.VersionDate = date.String
	ref.Path = path.String
	return &ref, nil
}
