// Package storetest opens throwaway databases for tests in other packages.
package storetest

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"taskflow/api/internal/logger"
	"taskflow/api/internal/store"
	"taskflow/api/internal/util"
)

// PostgresURIEnv names the variable that enables Postgres-backed tests.
const PostgresURIEnv = "TASKFLOW_TEST_POSTGRES_URI"

// New opens a migrated SQLite database in the test's temp dir.
func New(t testing.TB) *store.Store {
	t.Helper()
	ctx := context.Background()
	uri := "file:" + filepath.Join(t.TempDir(), "taskflow.db")
	db, err := store.Open(ctx, store.EngineSQLite, uri, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = store.Migrate(ctx, db, store.EngineSQLite, 0)
	require.NoError(t, err)
	return store.New(db, store.EngineSQLite, logger.NewNoopLogger())
}

// NewPostgres opens the database named by TASKFLOW_TEST_POSTGRES_URI inside
// a fresh schema dropped at cleanup, or skips the test when the variable is
// unset.
func NewPostgres(t testing.TB) *store.Store {
	t.Helper()
	uri := strings.TrimSpace(os.Getenv(PostgresURIEnv))
	if uri == "" {
		t.Skipf("%s is not set", PostgresURIEnv)
	}
	ctx := context.Background()
	admin, err := store.Open(ctx, store.EnginePostgres, uri, 30*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = admin.Close() })

	schema := util.NewID("test")
	_, err = admin.ExecContext(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = admin.ExecContext(context.Background(), "DROP SCHEMA "+schema+" CASCADE") })

	scoped, err := url.Parse(uri)
	require.NoError(t, err)
	query := scoped.Query()
	query.Set("search_path", schema)
	scoped.RawQuery = query.Encode()

	db, err := store.Open(ctx, store.EnginePostgres, scoped.String(), 30*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = store.Migrate(ctx, db, store.EnginePostgres, 0)
	require.NoError(t, err)
	return store.New(db, store.EnginePostgres, logger.NewNoopLogger())
}

// Engines runs fn against every supported engine. The Postgres run skips
// itself unless TASKFLOW_TEST_POSTGRES_URI is set.
func Engines(t *testing.T, fn func(t *testing.T, s *store.Store)) {
	t.Helper()
	for _, engine := range []struct {
		name string
		open func(testing.TB) *store.Store
	}{
		{store.EngineSQLite, New},
		{store.EnginePostgres, NewPostgres},
	} {
		t.Run(engine.name, func(t *testing.T) {
			fn(t, engine.open(t))
		})
	}
}
