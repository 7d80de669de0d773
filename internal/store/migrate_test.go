package store_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"taskflow/api/internal/store"
)

func TestMigrationsHaveUpAndDownSections(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{5}_[a-z0-9_]+\.sql$`)
	entries, err := os.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries, "no migrations discovered")

	for _, entry := range entries {
		name := entry.Name()
		require.Regexp(t, pattern, name)
		raw, err := fs.ReadFile(os.DirFS("migrations"), name)
		require.NoError(t, err)
		body := string(raw)
		require.Contains(t, body, "-- +goose Up", name)
		require.Contains(t, body, "-- +goose Down", name)
		require.Less(t, strings.Index(body, "-- +goose Up"), strings.Index(body, "-- +goose Down"), name)
	}
}

func TestMigrationsRoundTripSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, store.EngineSQLite, "file:"+filepath.Join(t.TempDir(), "rt.db"), 5*time.Second)
	require.NoError(t, err)
	defer db.Close()

	version, err := store.Migrate(ctx, db, store.EngineSQLite, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), version)

	version, err = store.Migrate(ctx, db, store.EngineSQLite, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), version)

	require.NoError(t, store.Rollback(ctx, db, store.EngineSQLite))

	version, err = store.Migrate(ctx, db, store.EngineSQLite, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), version)
}

func TestMigrateRejectsUnknownEngine(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, store.EngineSQLite, "file:"+filepath.Join(t.TempDir(), "x.db"), 5*time.Second)
	require.NoError(t, err)
	defer db.Close()

	_, err = store.Migrate(ctx, db, "oracle", 0)
	require.Error(t, err)
}
