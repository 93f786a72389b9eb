// Package storage contains the storage-agnostic contracts, the backend
// registry and the keyed upsert engine.
//
// Backends (postgres, sqlite, duckdb, mssql) register a Factory at init time;
// callers open one through New or Open using only Config.Kind, and every
// read or write goes through a caller-visible transaction (Tx). SQL text is
// produced by the backend's Dialect so the Engine never branches on the
// backend itself.
package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/samvalverde/PAAA/internal/ddl"
	"github.com/samvalverde/PAAA/internal/table"
)

// Config selects and configures a backend.
type Config struct {
	// Kind is the registered backend name, e.g. "postgres".
	Kind string
	// DSN is passed to the backend driver unchanged.
	DSN string
}

// Name is an unquoted schema-qualified table name. Schema may be empty.
type Name struct {
	Schema string
	Table  string
}

func (n Name) String() string {
	if n.Schema == "" {
		return n.Table
	}
	return n.Schema + "." + n.Table
}

// DB is an open backend.
type DB interface {
	Dialect() Dialect
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is a transaction-scoped connection. Query materializes the full result;
// values are normalized with NormalizeValue.
type Tx interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (columns []string, rows [][]any, err error)
	// CopyFrom bulk-inserts rows aligned to columns into name and returns the
	// number of rows written.
	CopyFrom(ctx context.Context, name Name, columns []string, rows [][]any) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// WriteSpec describes the statement that moves staged rows into the target.
// With no Keys it is a plain append.
type WriteSpec struct {
	Target  string // rendered target table
	Stage   string // rendered staging table
	Columns []string
	Keys    []string
	// Casts holds the target SQL type per column ("" = no cast).
	Casts []string
}

// Dialect renders backend-specific SQL.
type Dialect interface {
	Name() string
	Quote(ident string) string
	Table(n Name) string
	// Placeholder returns the i-th (1-based) bind parameter marker.
	Placeholder(i int) string
	// MaxParams bounds the bind parameters per statement.
	MaxParams() int
	ColumnType(t table.Type, key bool) string

	// CreateSchema returns "" when the backend has no schemas.
	CreateSchema(schema string) string
	// ColumnsQuery returns a query yielding (column name, type) rows in
	// ordinal order. No rows means the table does not exist.
	ColumnsQuery(n Name) (string, []any)
	CreateTable(fqn string, cols []ddl.ColumnDef, temp bool) (string, error)
	AddColumn(fqn string, col ddl.ColumnDef) string
	// AlterColumnType changes col.Name to col.SQLType keeping its values. ""
	// means the backend already stores mismatched values unchanged.
	AlterColumnType(fqn string, col ddl.ColumnDef) string
	CreateUniqueIndex(index string, n Name, cols []string) string
	DropTable(fqn string) string
	// Staging turns a generated staging name into a session-scoped table name.
	Staging(base string) Name
	Write(w WriteSpec) string
}

// Factory opens a DB for a registered kind.
type Factory func(ctx context.Context, cfg Config) (DB, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind. Backends call it from
// init.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a backend by kind.
func New(ctx context.Context, cfg Config) (DB, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, &UnknownBackendError{Kind: cfg.Kind}
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
