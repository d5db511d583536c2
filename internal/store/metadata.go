package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/tmorishita/penflow/internal/dbx"
)

const lastSyncTimeKey = "last_sync_time"

// MetadataStore is a small key/value table for sync bookkeeping such as
// the last full-sync watermark.
type MetadataStore struct {
	db dbx.DBTX
}

func NewMetadataStore(db dbx.DBTX) *MetadataStore {
	return &MetadataStore{db: db}
}

func (s *MetadataStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata %q: %w", key, err)
	}
	return value, nil
}

func (s *MetadataStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata %q: %w", key, err)
	}
	return nil
}

// LastSyncTime returns the unix-millisecond watermark of the last
// successful full sync, or zero when no sync has completed yet.
func (s *MetadataStore) LastSyncTime(ctx context.Context) (int64, error) {
	raw, err := s.Get(ctx, lastSyncTimeKey)
	if err != nil || raw == "" {
		return 0, err
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid last sync time %q: %w", raw, err)
	}
	return ts, nil
}

func (s *MetadataStore) SetLastSyncTime(ctx context.Context, ts int64) error {
	return s.Set(ctx, lastSyncTimeKey, strconv.FormatInt(ts, 10))
}
