package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"
)

// Open connects to the configured engine and waits for it to answer a ping,
// retrying with exponential backoff for up to connectTimeout.
func Open(ctx context.Context, engine, uri string, connectTimeout time.Duration) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch engine {
	case EnginePostgres:
		db, err = sql.Open("pgx", uri)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		db.SetConnMaxIdleTime(5 * time.Minute)
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetMaxIdleConns(10)
		db.SetMaxOpenConns(20)
	case EngineSQLite:
		dsn, dsnErr := PrepareSQLiteDSN(uri)
		if dsnErr != nil {
			return nil, dsnErr
		}
		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		// One writer at a time; a second connection would only ever wait on
		// the database lock.
		db.SetMaxOpenConns(1)
	case "":
		return nil, fmt.Errorf("missing datastore engine")
	default:
		return nil, fmt.Errorf("unknown datastore engine: %s", engine)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = connectTimeout
	err = backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// PrepareSQLiteDSN adds the pragmas the store depends on unless the caller
// already set them: WAL journaling, a busy timeout, enforced foreign keys
// and immediate transactions.
func PrepareSQLiteDSN(uri string) (string, error) {
	query := url.Values{}
	if i := strings.Index(uri, "?"); i != -1 {
		var err error
		query, err = url.ParseQuery(uri[i+1:])
		if err != nil {
			return uri, fmt.Errorf("parse dsn: %w", err)
		}
		uri = uri[:i]
	}

	want := map[string]string{
		"journal_mode": "journal_mode(WAL)",
		"busy_timeout": "busy_timeout(5000)",
		"foreign_keys": "foreign_keys(1)",
	}
	for _, val := range query["_pragma"] {
		for name := range want {
			if strings.HasPrefix(val, name) {
				delete(want, name)
			}
		}
	}
	for _, name := range []string{"journal_mode", "busy_timeout", "foreign_keys"} {
		if pragma, ok := want[name]; ok {
			query.Add("_pragma", pragma)
		}
	}
	if !query.Has("_txlock") {
		query.Set("_txlock", "immediate")
	}
	return uri + "?" + query.Encode(), nil
}

func builderFor(engine string) sq.StatementBuilderType {
	if engine == EnginePostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}
