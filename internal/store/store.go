package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"taskflow/api/internal/logger"
)

type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every statement the store knows. It runs against the pool
// for Store and against an open transaction for Tx.
type queries struct {
	db  runner
	sb  sq.StatementBuilderType
	now func() time.Time
}

type Store struct {
	*queries
	sqlDB  *sql.DB
	engine string
	logger logger.Logger
}

// Tx is a unit of work handed to InTx callbacks. It must not escape the
// callback.
type Tx struct {
	*queries
}

func New(db *sql.DB, engine string, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Store{
		queries: &queries{db: db, sb: builderFor(engine), now: time.Now},
		sqlDB:   db,
		engine:  engine,
		logger:  log,
	}
}

func (s *Store) DB() *sql.DB {
	return s.sqlDB
}

func (s *Store) Engine() string {
	return s.engine
}

func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// SetClock replaces the time source used for created_at and updated_at.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// InTx runs fn in a single transaction and commits only if fn returns nil.
// Postgres transactions run at REPEATABLE READ so that two writers to the
// same parent row cannot both commit.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	var opts *sql.TxOptions
	if s.engine == EnginePostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	}
	sqlTx, err := s.sqlDB.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", handleSQLError(err))
	}

	tx := &Tx{queries: &queries{db: sqlTx, sb: s.sb, now: s.now}}
	if err := fn(tx); err != nil {
		s.rollback(ctx, sqlTx)
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		s.rollback(ctx, sqlTx)
		return fmt.Errorf("commit tx: %w", handleSQLError(err))
	}
	return nil
}

func (s *Store) rollback(ctx context.Context, tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.WarnWithContext(ctx, "rollback failed", zap.Error(err))
	}
}

func (q *queries) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, handleSQLError(err)
	}
	return res, nil
}

// execOne is exec for statements that must touch exactly one row.
func (q *queries) execOne(ctx context.Context, b sq.Sqlizer) error {
	res, err := q.exec(ctx, b)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *queries) query(ctx context.Context, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, handleSQLError(err)
	}
	return rows, nil
}

func (q *queries) queryRow(ctx context.Context, b sq.Sqlizer, dest ...any) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return handleSQLError(q.db.QueryRowContext(ctx, query, args...).Scan(dest...))
}

func (q *queries) nowMillis() int64 {
	return toMillis(q.now())
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
