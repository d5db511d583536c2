package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tmorishita/penflow/internal/dbx"
	"github.com/tmorishita/penflow/internal/models"
)

// ProgressStore tracks per-day writing activity. Local-only, one row per
// (project, date); repeated writes on the same day accumulate into the
// existing row.
type ProgressStore struct {
	db dbx.DBTX
}

func NewProgressStore(db dbx.DBTX) *ProgressStore {
	return &ProgressStore{db: db}
}

// AddProgress merges a writing session into today's log for the project.
// Scene IDs are deduplicated; character and minute counts accumulate.
func (s *ProgressStore) AddProgress(ctx context.Context, projectID string, charactersWritten, minutes int, sceneID string) error {
	date := time.Now().Format("2006-01-02")

	existing, err := s.ByDate(ctx, projectID, date)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		log := models.ProgressLog{
			ID:                uuid.New().String(),
			ProjectID:         projectID,
			Date:              date,
			CharactersWritten: charactersWritten,
			TimeSpentMinutes:  minutes,
			CreatedAt:         time.Now().UnixMilli(),
		}
		if sceneID != "" {
			log.SceneIDs = []string{sceneID}
		}
		return s.insert(ctx, log)
	}

	existing.CharactersWritten += charactersWritten
	existing.TimeSpentMinutes += minutes
	if sceneID != "" && !containsString(existing.SceneIDs, sceneID) {
		existing.SceneIDs = append(existing.SceneIDs, sceneID)
	}
	return s.update(ctx, existing)
}

// ByDate returns the log for one project and day, or sql.ErrNoRows.
func (s *ProgressStore) ByDate(ctx context.Context, projectID, date string) (models.ProgressLog, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, date, characters_written, time_spent, scene_ids, created_at
		FROM progress_logs WHERE project_id = ? AND date = ?
	`, projectID, date)
	return scanProgress(row.Scan)
}

// ByProject returns all logs for a project ordered by date ascending.
func (s *ProgressStore) ByProject(ctx context.Context, projectID string) ([]models.ProgressLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, date, characters_written, time_spent, scene_ids, created_at
		FROM progress_logs WHERE project_id = ? ORDER BY date ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress logs: %w", err)
	}
	defer rows.Close()

	var out []models.ProgressLog
	for rows.Next() {
		log, err := scanProgress(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, log)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats aggregates the last n days of activity for a project.
func (s *ProgressStore) Stats(ctx context.Context, projectID string, days int) (models.ProgressStats, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days).Format("2006-01-02")

	logs, err := s.ByProject(ctx, projectID)
	if err != nil {
		return models.ProgressStats{}, err
	}

	var stats models.ProgressStats
	var activeDays int
	for _, log := range logs {
		if log.Date < since {
			continue
		}
		activeDays++
		stats.TotalCharacters += log.CharactersWritten
		if log.CharactersWritten > stats.MaxDaily {
			stats.MaxDaily = log.CharactersWritten
		}
	}
	if activeDays > 0 {
		stats.AverageDaily = float64(stats.TotalCharacters) / float64(activeDays)
	}
	stats.ConsecutiveDays = consecutiveDays(logs)
	return stats, nil
}

// Put upserts a full log row keyed by (project, date). Used by backup
// restore; day-to-day accumulation goes through AddProgress.
func (s *ProgressStore) Put(ctx context.Context, log models.ProgressLog) error {
	sceneIDs, err := json.Marshal(log.SceneIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO progress_logs (id, project_id, date, characters_written, time_spent, scene_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, date) DO UPDATE SET
			characters_written = excluded.characters_written,
			time_spent = excluded.time_spent,
			scene_ids = excluded.scene_ids
	`, log.ID, log.ProjectID, log.Date, log.CharactersWritten, log.TimeSpentMinutes, sceneIDs, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert progress log: %w", err)
	}
	return nil
}

func (s *ProgressStore) insert(ctx context.Context, log models.ProgressLog) error {
	sceneIDs, err := json.Marshal(log.SceneIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO progress_logs (id, project_id, date, characters_written, time_spent, scene_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, log.ID, log.ProjectID, log.Date, log.CharactersWritten, log.TimeSpentMinutes, sceneIDs, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert progress log: %w", err)
	}
	return nil
}

func (s *ProgressStore) update(ctx context.Context, log models.ProgressLog) error {
	sceneIDs, err := json.Marshal(log.SceneIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE progress_logs SET characters_written = ?, time_spent = ?, scene_ids = ?
		WHERE id = ?
	`, log.CharactersWritten, log.TimeSpentMinutes, sceneIDs, log.ID)
	if err != nil {
		return fmt.Errorf("failed to update progress log: %w", err)
	}
	return nil
}

func scanProgress(scan func(dest ...any) error) (models.ProgressLog, error) {
	var log models.ProgressLog
	var sceneIDs []byte
	err := scan(&log.ID, &log.ProjectID, &log.Date, &log.CharactersWritten, &log.TimeSpentMinutes, &sceneIDs, &log.CreatedAt)
	if err != nil {
		return models.ProgressLog{}, err
	}
	if len(sceneIDs) > 0 {
		if err := json.Unmarshal(sceneIDs, &log.SceneIDs); err != nil {
			return models.ProgressLog{}, fmt.Errorf("failed to decode scene ids: %w", err)
		}
	}
	return log, nil
}

// consecutiveDays counts the unbroken run of daily logs ending today or
// yesterday.
func consecutiveDays(logs []models.ProgressLog) int {
	if len(logs) == 0 {
		return 0
	}
	dates := make(map[string]bool, len(logs))
	for _, log := range logs {
		dates[log.Date] = true
	}

	day := time.Now()
	if !dates[day.Format("2006-01-02")] {
		day = day.AddDate(0, 0, -1)
	}
	count := 0
	for dates[day.Format("2006-01-02")] {
		count++
		day = day.AddDate(0, 0, -1)
	}
	return count
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
