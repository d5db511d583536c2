package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/tmorishita/penflow/internal/models"
	"github.com/tmorishita/penflow/internal/store/migrations"

	_ "modernc.org/sqlite"
)

// Stores bundles every repository bound to one local database.
type Stores struct {
	DB       *sql.DB
	Registry *Registry
	Settings *SettingsStore
	Metadata *MetadataStore
	History  *HistoryStore
	Progress *ProgressStore
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if necessary) the local SQLite database at dsn,
// applies migrations and wires all repositories.
func Open(ctx context.Context, dsn string) (*Stores, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Stores{
		DB:       db,
		Registry: NewDefaultRegistry(db),
		Settings: NewSettingsStore(db),
		Metadata: NewMetadataStore(db),
		History:  NewHistoryStore(db),
		Progress: NewProgressStore(db),
	}, nil
}

// NewDefaultRegistry wires the six synced collections over one DBTX.
func NewDefaultRegistry(db *sql.DB) *Registry {
	return NewRegistry(
		NewSQLite[models.Project](db, models.CollectionProjects),
		NewSQLite[models.Chapter](db, models.CollectionChapters),
		NewSQLite[models.Scene](db, models.CollectionScenes),
		NewSQLite[models.Character](db, models.CollectionCharacters),
		NewSQLite[models.Plot](db, models.CollectionPlots),
		NewSQLite[models.Worldbuilding](db, models.CollectionWorldbuilding),
	)
}
