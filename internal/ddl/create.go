// Package ddl defines a small, backend-agnostic model for SQL DDL and helpers
// to render CREATE TABLE statements from that model.
//
// The package stays generic: it does not assume a specific SQL dialect. In
// particular, it:
//
//   - Emits TableDef.FQN verbatim; callers render and quote it.
//   - Quotes column names with the Quoter supplied by the dialect.
//   - Does not insert dialect-specific clauses such as IF NOT EXISTS.
//   - Treats ColumnDef.Default as raw SQL.
//
// Dialects in internal/storage/* use this for the target and staging tables.
package ddl

import (
	"fmt"
	"strings"
)

// BuildCreateTableSQL renders a CREATE TABLE statement from a TableDef.
//
// Rules:
//
//   - t.FQN must be non-empty; it is emitted verbatim as the table name.
//
//   - Each column must have a non-empty Name and SQLType.
//
//   - A column is rendered as:
//
//     <quoted Name> <SQLType> [NOT NULL] [DEFAULT <Default>]
//
//   - Columns with PrimaryKey == true are collected into a trailing
//     PRIMARY KEY (...) clause.
//
// A nil quote emits names as-is.
func BuildCreateTableSQL(t TableDef, quote Quoter) (string, error) {
	return buildCreate("CREATE TABLE", t, quote)
}

// BuildCreateTempTableSQL is BuildCreateTableSQL with a caller-supplied
// prefix such as "CREATE TEMP TABLE".
func BuildCreateTempTableSQL(prefix string, t TableDef, quote Quoter) (string, error) {
	return buildCreate(prefix, t, quote)
}

func buildCreate(prefix string, t TableDef, quote Quoter) (string, error) {
	if quote == nil {
		quote = func(s string) string { return s }
	}
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)

		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, quote(name))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf("%s %s (\n  %s\n)", prefix, fqn, strings.Join(cols, ",\n  ")), nil
}
