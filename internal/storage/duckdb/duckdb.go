// Package duckdb implements the columnar storage backend on
// github.com/duckdb/duckdb-go/v2. The SQL surface matches Postgres closely
// (schemas, TEMP tables, INSERT ... ON CONFLICT), so the dialect only adjusts
// type names and the default schema.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/samvalverde/PAAA/internal/storage"
	"github.com/samvalverde/PAAA/internal/storage/sqldb"
	"github.com/samvalverde/PAAA/internal/table"
)

// Kind is the registered backend name.
const Kind = "duckdb"

// Dialect is the DuckDB flavour of storage.ANSI.
type Dialect struct{ storage.ANSI }

func (Dialect) Name() string { return Kind }

func (Dialect) ColumnType(t table.Type, _ bool) string {
	switch t {
	case table.Int:
		return "BIGINT"
	case table.Float:
		return "DOUBLE"
	case table.Bool:
		return "BOOLEAN"
	case table.Time:
		return "TIMESTAMPTZ"
	default:
		return "VARCHAR"
	}
}

func (d Dialect) ColumnsQuery(n storage.Name) (string, []any) {
	if n.Schema == "" {
		n.Schema = "main"
	}
	return d.ANSI.ColumnsQuery(n)
}

// NewDB opens a DuckDB database file (or an in-memory database for "").
func NewDB(ctx context.Context, dsn string) (*sqldb.DB, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open: %w", err)
	}
	if dsn == "" || dsn == ":memory:" {
		// Each connection to an unnamed in-memory database is separate.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckdb: ping: %w", err)
	}
	return sqldb.New(db, Dialect{}), nil
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
