package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tmorishita/penflow/internal/dbx"
	"github.com/tmorishita/penflow/internal/models"
)

// HistoryStore keeps local-only snapshots of entities. Snapshots are taken
// on scene create and on content changes, never uploaded, and trimmed
// periodically.
type HistoryStore struct {
	db dbx.DBTX
}

func NewHistoryStore(db dbx.DBTX) *HistoryStore {
	return &HistoryStore{db: db}
}

// Record stores a snapshot of the entity in its current state.
func (s *HistoryStore) Record(ctx context.Context, entityType models.Collection, entityID, projectID string, snapshot any, changeType string) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode history snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO history (id, entity_type, entity_id, project_id, snapshot, change_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), string(entityType), entityID, projectID, raw, changeType, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

// ByEntity returns snapshots for one entity, newest first.
func (s *HistoryStore) ByEntity(ctx context.Context, entityType models.Collection, entityID string, limit int) ([]models.History, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, project_id, snapshot, change_type, created_at
		FROM history WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, string(entityType), entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()
	return scanHistory(rows)
}

// ByProject returns all snapshots for a project, newest first.
func (s *HistoryStore) ByProject(ctx context.Context, projectID string) ([]models.History, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, project_id, snapshot, change_type, created_at
		FROM history WHERE project_id = ?
		ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()
	return scanHistory(rows)
}

// TrimOlderThan removes snapshots created before the cutoff and returns
// how many were deleted.
func (s *HistoryStore) TrimOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to trim history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func scanHistory(rows *sql.Rows) ([]models.History, error) {
	var out []models.History
	for rows.Next() {
		var h models.History
		var entityType string
		if err := rows.Scan(&h.ID, &entityType, &h.EntityID, &h.ProjectID, &h.Snapshot, &h.ChangeType, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		h.EntityType = models.Collection(entityType)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
