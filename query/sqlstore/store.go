// Package sqlstore is a [query.Executor] over database/sql using the
// PostgreSQL dialect. Entity names map to snake_case plural tables and field
// names are used as column names verbatim.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrEthical07/goGuard/query"
	"github.com/jackc/pgx/v5/pgconn"
)

var _ query.Executor = (*Store)(nil)

// Store executes operations against a SQL database.
type Store struct {
	db     *sql.DB
	tables map[string]string
}

// Option configures a [Store].
type Option func(*Store)

// WithTable overrides the table name for entity.
func WithTable(entity, table string) Option {
	return func(s *Store) { s.tables[entity] = table }
}

// New wraps db.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, tables: map[string]string{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Execute implements [query.Executor].
func (s *Store) Execute(ctx context.Context, op query.Operation) (query.Result, error) {
	if op.Kind == query.Upsert {
		return s.upsert(ctx, op)
	}
	return s.run(ctx, s.db, op)
}

func (s *Store) run(ctx context.Context, q querier, op query.Operation) (query.Result, error) {
	stmt, err := Build(op, s.tables)
	if err != nil {
		return query.Result{}, err
	}

	switch op.Kind {
	case query.Count:
		var n int64
		if err := q.QueryRowContext(ctx, stmt.SQL, stmt.Args...).Scan(&n); err != nil {
			return query.Result{}, err
		}
		return query.Result{Affected: n}, nil
	case query.CreateMany, query.UpdateMany, query.DeleteMany:
		res, err := q.ExecContext(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return query.Result{}, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return query.Result{}, err
		}
		return query.Result{Affected: n}, nil
	}

	rows, err := q.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return query.Result{}, err
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return query.Result{}, err
	}
	if len(records) == 0 && (op.Kind == query.Update || op.Kind == query.Delete) {
		return query.Result{}, query.ErrNotFound
	}
	return query.Result{Records: records, Affected: int64(len(records))}, nil
}

// upsertAttempts bounds retries of an upsert that lost a serialization race.
const upsertAttempts = 3

// upsert runs select-then-write in a serializable transaction. Two racing
// upserts cannot both insert: one fails with a serialization error and is
// retried, and then sees the other's row.
func (s *Store) upsert(ctx context.Context, op query.Operation) (query.Result, error) {
	if err := op.Validate(); err != nil {
		return query.Result{}, err
	}
	var err error
	for range upsertAttempts {
		var res query.Result
		if res, err = s.upsertOnce(ctx, op); err == nil || !retryable(err) {
			return res, err
		}
	}
	return query.Result{}, fmt.Errorf("upsert %s: %w", op.Entity, err)
}

func (s *Store) upsertOnce(ctx context.Context, op query.Operation) (result query.Result, err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return query.Result{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	found, err := s.run(ctx, tx, query.Operation{Entity: op.Entity, Kind: query.FindFirst, Where: op.Where})
	if err != nil {
		return query.Result{}, err
	}

	next := query.Operation{Entity: op.Entity, Kind: query.Create, Data: op.Create}
	if len(found.Records) > 0 {
		if len(op.Data) == 0 {
			return found, tx.Commit()
		}
		next = query.Operation{Entity: op.Entity, Kind: query.Update, Where: op.Where, Data: op.Data}
	}
	result, err = s.run(ctx, tx, next)
	if err != nil {
		return query.Result{}, err
	}
	if err = tx.Commit(); err != nil {
		return query.Result{}, fmt.Errorf("commit upsert: %w", err)
	}
	return result, nil
}

// retryable reports a PostgreSQL serialization failure or deadlock.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func scanRecords(rows *sql.Rows) ([]query.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []query.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(query.Record, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[c] = string(b)
				continue
			}
			rec[c] = values[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
