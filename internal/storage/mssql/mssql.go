// Package mssql implements a Microsoft SQL Server backend using go-mssqldb.
// Staging goes to a session-scoped #temp table through the bulk copy API and
// the merge is a MERGE statement, since SQL Server has no ON CONFLICT.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"github.com/samvalverde/PAAA/internal/ddl"
	"github.com/samvalverde/PAAA/internal/storage"
	"github.com/samvalverde/PAAA/internal/storage/sqldb"
	"github.com/samvalverde/PAAA/internal/table"
)

// Kind is the registered backend name.
const Kind = "mssql"

// Dialect renders T-SQL.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

func (Dialect) Name() string { return Kind }

func (Dialect) Quote(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

func (d Dialect) Table(n storage.Name) string {
	if n.Schema == "" {
		return d.Quote(n.Table)
	}
	return d.Quote(n.Schema) + "." + d.Quote(n.Table)
}

func (Dialect) Placeholder(i int) string { return "@p" + strconv.Itoa(i) }

// MaxParams stays under the 2100 parameter limit per request.
func (Dialect) MaxParams() int { return 2000 }

// ColumnType maps key strings to NVARCHAR(450): an index key cannot exceed
// 900 bytes and NVARCHAR(MAX) cannot be indexed at all.
func (Dialect) ColumnType(t table.Type, key bool) string {
	switch t {
	case table.Int:
		return "BIGINT"
	case table.Float:
		return "FLOAT"
	case table.Bool:
		return "BIT"
	case table.Time:
		return "DATETIME2"
	default:
		if key {
			return "NVARCHAR(450)"
		}
		return "NVARCHAR(MAX)"
	}
}

func (d Dialect) CreateSchema(schema string) string {
	return fmt.Sprintf("IF SCHEMA_ID(N'%s') IS NULL EXEC('CREATE SCHEMA %s')",
		escape(schema), strings.ReplaceAll(d.Quote(schema), "'", "''"))
}

func (Dialect) ColumnsQuery(n storage.Name) (string, []any) {
	schema := n.Schema
	if schema == "" {
		schema = "dbo"
	}
	return `SELECT COLUMN_NAME, DATA_TYPE FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2 ORDER BY ORDINAL_POSITION`, []any{schema, n.Table}
}

func (d Dialect) CreateTable(fqn string, cols []ddl.ColumnDef, _ bool) (string, error) {
	return ddl.BuildCreateTableSQL(ddl.TableDef{FQN: fqn, Columns: cols}, d.Quote)
}

func (d Dialect) AddColumn(fqn string, col ddl.ColumnDef) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s %s NULL", fqn, d.Quote(col.Name), col.SQLType)
}

func (d Dialect) AlterColumnType(fqn string, col ddl.ColumnDef) string {
	null := "NULL"
	if !col.Nullable {
		null = "NOT NULL"
	}
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s %s", fqn, d.Quote(col.Name), col.SQLType, null)
}

func (d Dialect) CreateUniqueIndex(index string, n storage.Name, cols []string) string {
	fqn := d.Table(n)
	return fmt.Sprintf(
		"IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'%s' AND object_id = OBJECT_ID(N'%s')) "+
			"CREATE UNIQUE INDEX %s ON %s (%s)",
		escape(index), escape(fqn), d.Quote(index), fqn, d.list(cols))
}

func (Dialect) DropTable(fqn string) string { return "DROP TABLE IF EXISTS " + fqn }

// Staging returns a local temporary table (#name), visible only to the
// session that owns the transaction.
func (Dialect) Staging(base string) storage.Name { return storage.Name{Table: "#" + base} }

// Write renders a MERGE for keyed writes and INSERT ... SELECT for appends.
// Casts are not needed: the staging table already uses the same type family
// and SQL Server converts implicitly.
func (d Dialect) Write(w storage.WriteSpec) string {
	if len(w.Keys) == 0 {
		return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
			w.Target, d.list(w.Columns), d.list(w.Columns), w.Stage)
	}
	on := make([]string, len(w.Keys))
	for i, k := range w.Keys {
		on[i] = fmt.Sprintf("tgt.%s = src.%s", d.Quote(k), d.Quote(k))
	}
	vals := make([]string, len(w.Columns))
	for i, c := range w.Columns {
		vals[i] = "src." + d.Quote(c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "MERGE INTO %s WITH (HOLDLOCK) AS tgt USING %s AS src ON %s",
		w.Target, w.Stage, strings.Join(on, " AND "))
	if upd := storage.NonKeyColumns(w.Columns, w.Keys); len(upd) > 0 {
		set := make([]string, len(upd))
		for i, c := range upd {
			set[i] = fmt.Sprintf("tgt.%s = src.%s", d.Quote(c), d.Quote(c))
		}
		fmt.Fprintf(&b, " WHEN MATCHED THEN UPDATE SET %s", strings.Join(set, ", "))
	}
	fmt.Fprintf(&b, " WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s);",
		d.list(w.Columns), strings.Join(vals, ", "))
	return b.String()
}

func (d Dialect) list(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = d.Quote(c)
	}
	return strings.Join(q, ", ")
}

func escape(s string) string { return strings.ReplaceAll(s, "'", "''") }

// bulkCopy streams rows through the TDS bulk-load API.
func bulkCopy(ctx context.Context, tx *sql.Tx, name storage.Name, _ string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(name.String(), mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk copy: %w", err)
	}
	defer stmt.Close()

	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx, r...); err != nil {
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	return res.RowsAffected()
}

// wrapErr surfaces the server error number.
func wrapErr(err error) error {
	var e mssql.Error
	if errors.As(err, &e) {
		return fmt.Errorf("mssql %d (state %d): %w", e.Number, e.State, err)
	}
	return err
}

// NewDB validates the DSN, opens and pings the server.
func NewDB(ctx context.Context, dsn string) (*sqldb.DB, error) {
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return sqldb.New(db, Dialect{}, sqldb.WithErrorWrapper(wrapErr), sqldb.WithCopy(bulkCopy)), nil
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
