package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

func newMigrationProvider(db *sql.DB, engine string) (*goose.Provider, error) {
	var dialect goose.Dialect
	switch engine {
	case EnginePostgres:
		dialect = goose.DialectPostgres
	case EngineSQLite:
		dialect = goose.DialectSQLite3
	default:
		return nil, fmt.Errorf("unknown datastore engine: %s", engine)
	}
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	provider, err := goose.NewProvider(dialect, db, migrations)
	if err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	return provider, nil
}

// Migrate brings the schema up to targetVersion, or to the latest version
// when targetVersion is zero. It returns the resulting schema version.
func Migrate(ctx context.Context, db *sql.DB, engine string, targetVersion int64) (int64, error) {
	provider, err := newMigrationProvider(db, engine)
	if err != nil {
		return 0, err
	}
	if targetVersion > 0 {
		_, err = provider.UpTo(ctx, targetVersion)
	} else {
		_, err = provider.Up(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// Rollback undoes every applied migration.
func Rollback(ctx context.Context, db *sql.DB, engine string) error {
	provider, err := newMigrationProvider(db, engine)
	if err != nil {
		return err
	}
	if _, err := provider.DownTo(ctx, 0); err != nil {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	return nil
}
