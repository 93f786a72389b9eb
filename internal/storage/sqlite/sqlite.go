// Package sqlite implements the embedded storage backend on modernc.org/sqlite
// (pure Go, no cgo).
//
// SQLite has no schemas, so schema-qualified names are flattened into one
// identifier: core.egresados is stored as "core__egresados" and CreateSchema is
// a no-op. The ON CONFLICT upsert and TEMP staging tables are native.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/samvalverde/PAAA/internal/ddl"
	"github.com/samvalverde/PAAA/internal/storage"
	"github.com/samvalverde/PAAA/internal/storage/sqldb"
	"github.com/samvalverde/PAAA/internal/table"
)

// Kind is the registered backend name.
const Kind = "sqlite"

// Dialect is the SQLite flavour of storage.ANSI.
type Dialect struct{ storage.ANSI }

func (Dialect) Name() string { return Kind }

// Table flattens schema.table into "schema__table".
func (d Dialect) Table(n storage.Name) string {
	return d.Quote(flatten(n))
}

func (Dialect) ColumnType(t table.Type, _ bool) string {
	switch t {
	case table.Int, table.Bool:
		return "INTEGER"
	case table.Float:
		return "REAL"
	default:
		// Timestamps are stored as text; a NUMERIC cast would truncate them.
		return "TEXT"
	}
}

func (Dialect) CreateSchema(string) string { return "" }

func (Dialect) ColumnsQuery(n storage.Name) (string, []any) {
	return "SELECT name, type FROM pragma_table_info(?) ORDER BY cid", []any{flatten(n)}
}

// AlterColumnType is a no-op: column affinity keeps values that do not fit
// the declared type as they are.
func (Dialect) AlterColumnType(string, ddl.ColumnDef) string { return "" }

// Write renders the ANSI statement without casts. CAST would coerce text
// into the target affinity ('8888-7777' AS INTEGER is 8888) without error.
func (d Dialect) Write(w storage.WriteSpec) string {
	w.Casts = nil
	return d.ANSI.Write(w)
}

func (d Dialect) CreateUniqueIndex(index string, n storage.Name, cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = d.Quote(c)
	}
	return fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
		d.Quote(index), d.Table(n), strings.Join(q, ", "))
}

func flatten(n storage.Name) string {
	if n.Schema == "" {
		return n.Table
	}
	return n.Schema + "__" + n.Table
}

// Open opens a SQLite database pinned to a single connection. SQLite has one
// writer at a time, and every connection to an in-memory database would
// otherwise see its own empty database.
func Open(dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewDB opens dsn and pings it.
func NewDB(ctx context.Context, dsn string) (*sqldb.DB, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON")
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
