package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const migrationsDir = "migrations"

// MigrationState describes how far the database schema is behind the embedded migrations
type MigrationState struct {
	CurrentVersion int64 `json:"current_version"`
	LatestVersion  int64 `json:"latest_version"`
	Pending        int   `json:"pending"`
}

// UpToDate reports whether every embedded migration has been applied
func (s MigrationState) UpToDate() bool {
	return s.Pending == 0
}

func newProvider(db *sql.DB) (*goose.Provider, error) {
	migrations, err := fs.Sub(embedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to create goose provider: %w", err)
	}
	return provider, nil
}

// RunMigrations executes all pending database migrations
func RunMigrations(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	provider, err := newProvider(db)
	if err != nil {
		return err
	}

	logger.Info("Checking for pending migrations...")

	results, err := provider.Up(ctx)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("Applied migration",
			zap.Int64("version", r.Source.Version),
			zap.String("file", r.Source.Path),
			zap.Duration("duration", r.Duration),
		)
	}

	logger.Info("Migrations completed successfully", zap.Int("applied", len(results)))
	return nil
}

// MigrateDown rolls back the most recent migration
func MigrateDown(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	provider, err := newProvider(db)
	if err != nil {
		return err
	}

	result, err := provider.Down(ctx)
	if err != nil {
		if errors.Is(err, goose.ErrNoNextVersion) {
			logger.Info("No migrations to roll back")
			return nil
		}
		return fmt.Errorf("failed to roll back migration: %w", err)
	}

	logger.Info("Rolled back migration",
		zap.Int64("version", result.Source.Version),
		zap.String("file", result.Source.Path),
	)
	return nil
}

// GetMigrationState compares the applied schema version with the embedded migrations
func GetMigrationState(ctx context.Context, db *sql.DB) (*MigrationState, error) {
	provider, err := newProvider(db)
	if err != nil {
		return nil, err
	}

	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}

	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration status: %w", err)
	}

	state := &MigrationState{CurrentVersion: current}
	for _, st := range statuses {
		if st.Source.Version > state.LatestVersion {
			state.LatestVersion = st.Source.Version
		}
		if st.State == goose.StatePending {
			state.Pending++
		}
	}

	return state, nil
}

// SchemaVersion returns a function reporting the applied schema version of db
func SchemaVersion(db *sql.DB) func(ctx context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) {
		provider, err := newProvider(db)
		if err != nil {
			return 0, err
		}
		return provider.GetDBVersion(ctx)
	}
}

// MigrationFiles lists the embedded migration file names
func MigrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(embedMigrations, migrationsDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
