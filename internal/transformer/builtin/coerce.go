package builtin

import (
	"sort"
	"strings"
	"time"

	"github.com/samvalverde/PAAA/internal/table"
)

// Coerce casts columns to declared semantic types. It never fails on values:
//
//   - "string": every non-null value is rendered as text and trimmed.
//   - "datetime*": values are parsed as dates/timestamps; unparseable values
//     become null.
//   - "int*", "float*", "number", "numeric", "bool*": the column is converted
//     only when every non-null value converts; otherwise it is left as is.
//   - anything else is ignored.
//
// Columns named in Types but absent from the table are skipped.
type Coerce struct {
	Types map[string]string
}

func (Coerce) Name() string { return "coerce_types" }

func (c Coerce) Apply(t *table.Table) (*table.Table, error) {
	cols := make([]string, 0, len(c.Types))
	for k := range c.Types {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	for _, name := range cols {
		col, ok := t.Column(name)
		if !ok {
			continue
		}
		tag := strings.ToLower(strings.TrimSpace(c.Types[name]))
		switch {
		case tag == "string" || tag == "str" || tag == "text":
			for i, v := range col.Values {
				if v != nil {
					col.Values[i] = strings.TrimSpace(table.Format(v))
				}
			}
			col.Type = table.String
		case strings.HasPrefix(tag, "datetime") || tag == "date" || tag == "timestamp":
			for i, v := range col.Values {
				if v == nil {
					continue
				}
				if ts, ok := table.Convert(v, table.Time).(time.Time); ok && !ts.IsZero() {
					col.Values[i] = ts
				} else {
					col.Values[i] = nil
				}
			}
			col.Type = table.Time
		case strings.HasPrefix(tag, "int"):
			castAll(col, table.Int)
		case strings.HasPrefix(tag, "float") || tag == "number" || tag == "numeric":
			castAll(col, table.Float)
		case strings.HasPrefix(tag, "bool"):
			castAll(col, table.Bool)
		}
	}
	return t, nil
}

// castAll converts the column only if every non-null value converts.
func castAll(col *table.Column, typ table.Type) {
	out := make([]any, len(col.Values))
	for i, v := range col.Values {
		if v == nil {
			continue
		}
		cv := table.Convert(v, typ)
		if table.TypeOf(cv) != typ {
			return
		}
		out[i] = cv
	}
	col.Values = out
	col.Type = typ
}
