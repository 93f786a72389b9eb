// Package postgres implements the primary storage backend using pgx v5. Rows
// are staged with COPY into a TEMP table and merged with INSERT ... ON
// CONFLICT, all on one pooled connection inside one transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samvalverde/PAAA/internal/storage"
)

// Kind is the registered backend name.
const Kind = "postgres"

// Dialect is the Postgres flavour of storage.ANSI.
type Dialect struct{ storage.ANSI }

func (Dialect) Name() string { return Kind }

func (Dialect) Placeholder(i int) string { return "$" + strconv.Itoa(i) }

// MaxParams is the protocol limit on bind parameters.
func (Dialect) MaxParams() int { return 65535 }

func (Dialect) ColumnsQuery(n storage.Name) (string, []any) {
	schema := n.Schema
	if schema == "" {
		schema = "public"
	}
	return `SELECT column_name, data_type FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2 ORDER BY ordinal_position`, []any{schema, n.Table}
}

// DB is a pgxpool-backed storage.DB.
type DB struct {
	pool *pgxpool.Pool
}

var _ storage.DB = (*DB)(nil)

// NewDB connects a pool to dsn and pings it.
func NewDB(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", wrapErr(err))
	}
	return &DB{pool: pool}, nil
}

func (*DB) Dialect() storage.Dialect { return Dialect{} }

func (d *DB) Close() error {
	d.pool.Close()
	return nil
}

func (d *DB) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &Tx{tx: tx}, nil
}

// Tx implements storage.Tx over pgx.Tx.
type Tx struct {
	tx pgx.Tx
}

func (t *Tx) Exec(ctx context.Context, query string, args ...any) error {
	_, err := t.tx.Exec(ctx, query, args...)
	return wrapErr(err)
}

func (t *Tx) Query(ctx context.Context, query string, args ...any) ([]string, [][]any, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, wrapErr(err)
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = fd.Name
	}
	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, nil, wrapErr(err)
		}
		for i, v := range vals {
			vals[i] = normalize(v)
		}
		out = append(out, vals)
	}
	return cols, out, wrapErr(rows.Err())
}

// CopyFrom uses the COPY protocol.
func (t *Tx) CopyFrom(ctx context.Context, name storage.Name, columns []string, rows [][]any) (int64, error) {
	n, err := t.tx.CopyFrom(ctx, identifier(name), columns, pgx.CopyFromRows(rows))
	return n, wrapErr(err)
}

func (t *Tx) Commit(ctx context.Context) error { return wrapErr(t.tx.Commit(ctx)) }

func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return wrapErr(err)
}

// identifier converts a storage name into a pgx.Identifier; TEMP staging
// tables have no schema.
func identifier(n storage.Name) pgx.Identifier {
	if n.Schema == "" {
		return pgx.Identifier{n.Table}
	}
	return pgx.Identifier{n.Schema, n.Table}
}

// normalize maps pgx decoded values onto the table value set.
func normalize(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		// uuid columns
		return fmt.Sprintf("%x-%x-%x-%x-%x", x[0:4], x[4:6], x[6:8], x[8:10], x[10:16])
	default:
		return storage.NormalizeValue(v)
	}
}

// PgError wraps a server error with its detail and SQLSTATE.
type PgError struct {
	Code   string
	Detail string
	Err    *pgconn.PgError
}

func (e *PgError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Message)
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	b.WriteString(" (SQLSTATE ")
	b.WriteString(e.Code)
	b.WriteByte(')')
	return b.String()
}

func (e *PgError) Unwrap() error { return e.Err }

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &PgError{Code: pgErr.SQLState(), Detail: pgErr.Detail, Err: pgErr}
	}
	return err
}

// newDB is a test hook that points to NewDB by default.
var newDB = NewDB

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.DB, error) {
		db, err := newDB(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return db, nil
	})
}
