package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tmorishita/penflow/internal/dbx"
	"github.com/tmorishita/penflow/internal/models"
)

// SettingsStore persists the single application settings row. A missing
// row reads as the defaults, so fresh databases need no seeding.
type SettingsStore struct {
	db dbx.DBTX
}

func NewSettingsStore(db dbx.DBTX) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(ctx context.Context) (models.AppSettings, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM settings WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultSettings(time.Now().UnixMilli()), nil
	}
	if err != nil {
		return models.AppSettings{}, fmt.Errorf("failed to get settings: %w", err)
	}

	var out models.AppSettings
	if err := json.Unmarshal(payload, &out); err != nil {
		return models.AppSettings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return out, nil
}

func (s *SettingsStore) Put(ctx context.Context, settings models.AppSettings) error {
	settings.UpdatedAt = time.Now().UnixMilli()
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (id, payload) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload
	`, payload)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// SetSyncEnabled flips the flag gating project-scoped realtime sync.
func (s *SettingsStore) SetSyncEnabled(ctx context.Context, enabled bool) error {
	settings, err := s.Get(ctx)
	if err != nil {
		return err
	}
	settings.SyncEnabled = enabled
	return s.Put(ctx, settings)
}

// SetConflictResolution stores the resolver policy name ("local", "remote"
// or "manual").
func (s *SettingsStore) SetConflictResolution(ctx context.Context, policy string) error {
	settings, err := s.Get(ctx)
	if err != nil {
		return err
	}
	settings.ConflictResolution = policy
	return s.Put(ctx, settings)
}
