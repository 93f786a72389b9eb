package storage

import (
	"fmt"
	"strings"

	"github.com/samvalverde/PAAA/internal/ddl"
	"github.com/samvalverde/PAAA/internal/table"
)

// ANSI implements the Dialect methods shared by Postgres, SQLite and DuckDB:
// double-quoted identifiers, "?" placeholders, TEMP staging tables and
// INSERT ... ON CONFLICT merges. Backends embed it and override what differs.
type ANSI struct{}

func (ANSI) Name() string { return "ansi" }

func (ANSI) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (a ANSI) Table(n Name) string {
	if n.Schema == "" {
		return a.Quote(n.Table)
	}
	return a.Quote(n.Schema) + "." + a.Quote(n.Table)
}

func (ANSI) Placeholder(int) string { return "?" }

func (ANSI) MaxParams() int { return 30000 }

func (ANSI) ColumnType(t table.Type, _ bool) string {
	switch t {
	case table.Int:
		return "BIGINT"
	case table.Float:
		return "DOUBLE PRECISION"
	case table.Bool:
		return "BOOLEAN"
	case table.Time:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

func (a ANSI) CreateSchema(schema string) string {
	return "CREATE SCHEMA IF NOT EXISTS " + a.Quote(schema)
}

func (ANSI) ColumnsQuery(n Name) (string, []any) {
	return `SELECT column_name, data_type FROM information_schema.columns
WHERE table_schema = ? AND table_name = ? ORDER BY ordinal_position`, []any{n.Schema, n.Table}
}

func (a ANSI) CreateTable(fqn string, cols []ddl.ColumnDef, temp bool) (string, error) {
	if temp {
		return ddl.BuildCreateTempTableSQL("CREATE TEMP TABLE", ddl.TableDef{FQN: fqn, Columns: cols}, a.Quote)
	}
	return ddl.BuildCreateTableSQL(ddl.TableDef{FQN: fqn, Columns: cols}, a.Quote)
}

func (a ANSI) AddColumn(fqn string, col ddl.ColumnDef) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", fqn, a.Quote(col.Name), col.SQLType)
}

func (a ANSI) AlterColumnType(fqn string, col ddl.ColumnDef) string {
	q := a.Quote(col.Name)
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING CAST(%s AS %s)", fqn, q, col.SQLType, q, col.SQLType)
}

func (a ANSI) CreateUniqueIndex(index string, n Name, cols []string) string {
	return fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
		a.Quote(index), a.Table(n), a.list(cols))
}

func (ANSI) DropTable(fqn string) string { return "DROP TABLE IF EXISTS " + fqn }

func (ANSI) Staging(base string) Name { return Name{Table: base} }

// Write renders
//
//	INSERT INTO t (cols) SELECT CAST(c AS type), ... FROM stage WHERE true
//	ON CONFLICT (keys) DO UPDATE SET c = EXCLUDED.c, ...
//
// with DO NOTHING when every column is a key. "WHERE true" keeps SQLite from
// reading ON CONFLICT as a join constraint.
func (a ANSI) Write(w WriteSpec) string {
	sel := make([]string, len(w.Columns))
	for i, c := range w.Columns {
		sel[i] = a.Quote(c)
		if i < len(w.Casts) && w.Casts[i] != "" {
			sel[i] = fmt.Sprintf("CAST(%s AS %s)", a.Quote(c), w.Casts[i])
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) SELECT %s FROM %s WHERE true",
		w.Target, a.list(w.Columns), strings.Join(sel, ", "), w.Stage)
	if len(w.Keys) == 0 {
		return b.String()
	}
	fmt.Fprintf(&b, " ON CONFLICT (%s)", a.list(w.Keys))
	updates := nonKey(w.Columns, w.Keys)
	if len(updates) == 0 {
		b.WriteString(" DO NOTHING")
		return b.String()
	}
	set := make([]string, len(updates))
	for i, c := range updates {
		set[i] = fmt.Sprintf("%s = EXCLUDED.%s", a.Quote(c), a.Quote(c))
	}
	b.WriteString(" DO UPDATE SET ")
	b.WriteString(strings.Join(set, ", "))
	return b.String()
}

func (a ANSI) list(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = a.Quote(c)
	}
	return strings.Join(q, ", ")
}

// nonKey returns cols minus keys, preserving order.
func nonKey(cols, keys []string) []string {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if !isKey[c] {
			out = append(out, c)
		}
	}
	return out
}

// NonKeyColumns is exported for dialects outside this package.
func NonKeyColumns(cols, keys []string) []string { return nonKey(cols, keys) }

// InsertValuesSQL renders a multi-row INSERT for n rows using d's quoting and
// placeholders.
func InsertValuesSQL(d Dialect, fqn string, cols []string, n int) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = d.Quote(c)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", fqn, strings.Join(q, ", "))
	p := 1
	for r := 0; r < n; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range cols {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Placeholder(p))
			p++
		}
		b.WriteByte(')')
	}
	return b.String()
}
