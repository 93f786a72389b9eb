package ddl

import "github.com/samvalverde/PAAA/internal/table"

// ColumnDef describes a single column in a table definition. It uses simple,
// database-agnostic fields.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, TIMESTAMPTZ)
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Default: raw default expression (e.g., 'anon', CURRENT_TIMESTAMP)
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the rendered, already-quoted table name and an ordered list
// of columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// TypeMapper maps a column type to a dialect SQL type. Key columns may need a
// bounded type (SQL Server cannot index NVARCHAR(MAX)).
type TypeMapper interface {
	ColumnType(t table.Type, key bool) string
}

// Quoter quotes a single identifier.
type Quoter func(ident string) string

// FromTable derives column definitions from a table's typed columns. Key
// columns are NOT NULL; all other columns are nullable.
func FromTable(t *table.Table, keys []string, m TypeMapper) []ColumnDef {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	cols := t.Columns()
	out := make([]ColumnDef, 0, len(cols))
	for _, c := range cols {
		out = append(out, ColumnDef{
			Name:     c.Name,
			SQLType:  m.ColumnType(c.Type, isKey[c.Name]),
			Nullable: !isKey[c.Name],
		})
	}
	return out
}
