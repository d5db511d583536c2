package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmorishita/penflow/internal/common"
	"github.com/tmorishita/penflow/internal/dbx"
	"github.com/tmorishita/penflow/internal/models"
)

// recordPtr constrains PT to "pointer to T implementing models.Record",
// which lets the store allocate fresh records when decoding rows.
type recordPtr[T any] interface {
	*T
	models.Record
}

// SQLite is the generic record store backing one collection. The full
// record is persisted as a JSON payload; id, project_id, updated_at and
// version are mirrored into columns for indexing and cheap scans.
type SQLite[T any, PT recordPtr[T]] struct {
	db    dbx.DBTX
	table string
	col   models.Collection
}

// NewSQLite returns a record store for col bound to the given DBTX.
// The table name equals the collection name.
func NewSQLite[T any, PT recordPtr[T]](db dbx.DBTX, col models.Collection) *SQLite[T, PT] {
	return &SQLite[T, PT]{db: db, table: string(col), col: col}
}

// Bind rebinds the store to another handle, typically a transaction.
func (s *SQLite[T, PT]) Bind(db dbx.DBTX) RecordStore {
	return &SQLite[T, PT]{db: db, table: s.table, col: s.col}
}

func (s *SQLite[T, PT]) Collection() models.Collection { return s.col }

func (s *SQLite[T, PT]) Decode(data []byte) (models.Record, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s record: %w", s.col, err)
	}
	return PT(&v), nil
}

func (s *SQLite[T, PT]) Get(ctx context.Context, id string) (models.Record, error) {
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE id = ?`, s.table)
	var payload []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", s.col, id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", s.col, id, err)
	}
	return s.Decode(payload)
}

func (s *SQLite[T, PT]) List(ctx context.Context) ([]models.Record, error) {
	query := fmt.Sprintf(`SELECT payload FROM %s ORDER BY updated_at DESC, id`, s.table)
	return s.scanAll(ctx, query)
}

func (s *SQLite[T, PT]) ListByProject(ctx context.Context, projectID string) ([]models.Record, error) {
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE project_id = ? ORDER BY updated_at, id`, s.table)
	return s.scanAll(ctx, query, projectID)
}

func (s *SQLite[T, PT]) scanAll(ctx context.Context, query string, args ...any) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", s.col, err)
	}
	defer rows.Close()

	var result []models.Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		rec, err := s.Decode(payload)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *SQLite[T, PT]) Insert(ctx context.Context, rec models.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", s.col, err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, project_id, updated_at, version, payload)
		VALUES (?, ?, ?, ?, ?)`, s.table)
	_, err = s.db.ExecContext(ctx, query,
		rec.RecordID(), rec.ProjectRef(), rec.LastUpdated(), rec.RecordVersion(), payload)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s/%s: %w", s.col, rec.RecordID(), common.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert %s/%s: %w", s.col, rec.RecordID(), err)
	}
	return nil
}

func (s *SQLite[T, PT]) Put(ctx context.Context, rec models.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", s.col, err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, project_id, updated_at, version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			updated_at = excluded.updated_at,
			version = excluded.version,
			payload = excluded.payload`, s.table)
	_, err = s.db.ExecContext(ctx, query,
		rec.RecordID(), rec.ProjectRef(), rec.LastUpdated(), rec.RecordVersion(), payload)
	if err != nil {
		return fmt.Errorf("failed to upsert %s/%s: %w", s.col, rec.RecordID(), err)
	}
	return nil
}

func (s *SQLite[T, PT]) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", s.col, id, err)
	}
	return nil
}

// isUniqueViolation matches the driver's constraint error without binding
// to a driver-specific error type.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
