// Package sqldb adapts a database/sql handle to storage.DB. The SQLite,
// DuckDB and SQL Server backends share it; Postgres talks to pgx directly.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/samvalverde/PAAA/internal/storage"
)

// CopyFunc bulk-loads rows inside tx. fqn is name rendered by the dialect.
type CopyFunc func(ctx context.Context, tx *sql.Tx, name storage.Name, fqn string, columns []string, rows [][]any) (int64, error)

// DB wraps *sql.DB with a dialect.
type DB struct {
	db *sql.DB
	d  storage.Dialect
	// wrapErr decorates driver errors with backend detail; may be nil.
	wrapErr func(error) error
	copyFn  CopyFunc
}

var _ storage.DB = (*DB)(nil)

// Option customizes a DB.
type Option func(*DB)

// WithErrorWrapper applies fn to every driver error.
func WithErrorWrapper(fn func(error) error) Option {
	return func(w *DB) { w.wrapErr = fn }
}

// WithCopy replaces the multi-row INSERT used by CopyFrom with a native bulk
// path.
func WithCopy(fn CopyFunc) Option {
	return func(w *DB) { w.copyFn = fn }
}

// New wraps db.
func New(db *sql.DB, d storage.Dialect, opts ...Option) *DB {
	w := &DB{db: db, d: d}
	for _, o := range opts {
		o(w)
	}
	return w
}

// SQL exposes the underlying handle.
func (w *DB) SQL() *sql.DB { return w.db }

func (w *DB) Dialect() storage.Dialect { return w.d }

func (w *DB) Close() error { return w.db.Close() }

func (w *DB) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, w.wrap(err)
	}
	return &Tx{tx: tx, db: w}, nil
}

func (w *DB) wrap(err error) error {
	if err == nil || w.wrapErr == nil {
		return err
	}
	return w.wrapErr(err)
}

// Tx implements storage.Tx over *sql.Tx.
type Tx struct {
	tx *sql.Tx
	db *DB
}

func (t *Tx) Exec(ctx context.Context, query string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, query, args...)
	return t.db.wrap(err)
}

func (t *Tx) Query(ctx context.Context, query string, args ...any) ([]string, [][]any, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, t.db.wrap(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, t.db.wrap(err)
	}
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, t.db.wrap(err)
		}
		for i, v := range vals {
			vals[i] = storage.NormalizeValue(v)
		}
		out = append(out, vals)
	}
	return cols, out, t.db.wrap(rows.Err())
}

// CopyFrom inserts rows with multi-row INSERT statements sized to the
// dialect's bind-parameter limit.
func (t *Tx) CopyFrom(ctx context.Context, name storage.Name, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, errors.New("sqldb: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	d := t.db.d
	if t.db.copyFn != nil {
		n, err := t.db.copyFn(ctx, t.tx, name, d.Table(name), columns, rows)
		return n, t.db.wrap(err)
	}
	per := d.MaxParams() / len(columns)
	if per < 1 {
		return 0, fmt.Errorf("sqldb: %d columns exceed the %d parameter limit", len(columns), d.MaxParams())
	}
	fqn := d.Table(name)

	var total int64
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		chunk := rows[start:end]
		args := make([]any, 0, len(chunk)*len(columns))
		for i, r := range chunk {
			if len(r) != len(columns) {
				return total, fmt.Errorf("sqldb: row %d has %d values, want %d", start+i, len(r), len(columns))
			}
			args = append(args, r...)
		}
		res, err := t.tx.ExecContext(ctx, storage.InsertValuesSQL(d, fqn, columns, len(chunk)), args...)
		if err != nil {
			return total, t.db.wrap(err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		} else {
			total += int64(len(chunk))
		}
	}
	return total, nil
}

func (t *Tx) Commit(context.Context) error { return t.db.wrap(t.tx.Commit()) }

func (t *Tx) Rollback(context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return t.db.wrap(err)
}
