// Package table provides the in-memory tabular structure that flows through
// the ETL pipeline and the analytics engine.
//
// A Table is an ordered list of named, typed columns. Each column stores its
// values as a slice of any where nil means null. Values inside a column are
// always one of string, int64, float64, bool or time.Time, matching the
// column Type (String columns may hold any of them until InferTypes or
// Convert normalizes them).
package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Type is the semantic type of a column.
type Type int

const (
	String Type = iota
	Int
	Float
	Bool
	Time
)

func (t Type) String() string {
	switch t {
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Time:
		return "time"
	default:
		return "string"
	}
}

// Column is a named value list.
type Column struct {
	Name   string
	Type   Type
	Values []any
}

// NullCount returns the number of nil values.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if v == nil {
			n++
		}
	}
	return n
}

// Table is an ordered collection of equally long columns.
type Table struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New returns an empty table with String columns named names. Duplicate
// names are rejected.
func New(names ...string) (*Table, error) {
	t := &Table{index: make(map[string]int, len(names))}
	for _, n := range names {
		if _, dup := t.index[n]; dup {
			return nil, fmt.Errorf("table: duplicate column %q", n)
		}
		t.index[n] = len(t.cols)
		t.cols = append(t.cols, &Column{Name: n, Type: String})
	}
	return t, nil
}

// MustNew is New for fixed column lists in tests and literals.
func MustNew(names ...string) *Table {
	t, err := New(names...)
	if err != nil {
		panic(err)
	}
	return t
}

// FromRecords builds a table from maps using names as column order.
// Missing keys become null.
func FromRecords(names []string, recs []map[string]any) (*Table, error) {
	t, err := New(names...)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		row := make([]any, len(names))
		for i, n := range names {
			row[i] = r[n]
		}
		if err := t.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.cols) }

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Columns returns the columns in order. The slice is a copy; the columns are
// shared.
func (t *Table) Columns() []*Column {
	return append([]*Column(nil), t.cols...)
}

// Has reports whether a column named name exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column, or false when absent.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// AppendRow appends one row aligned to Names(). Short rows are padded with
// nulls; long rows are an error.
func (t *Table) AppendRow(row []any) error {
	if len(row) > len(t.cols) {
		return fmt.Errorf("table: row has %d values for %d columns", len(row), len(t.cols))
	}
	for i, c := range t.cols {
		var v any
		if i < len(row) {
			v = row[i]
		}
		c.Values = append(c.Values, v)
	}
	t.rows++
	return nil
}

// Value returns the value at (row, column name), or nil.
func (t *Table) Value(row int, name string) any {
	c, ok := t.Column(name)
	if !ok || row < 0 || row >= t.rows {
		return nil
	}
	return c.Values[row]
}

// Row returns the values of one row in column order.
func (t *Table) Row(i int) []any {
	out := make([]any, len(t.cols))
	for j, c := range t.cols {
		out[j] = c.Values[i]
	}
	return out
}

// Rows returns all rows restricted to names, in that column order. Unknown
// names yield nulls.
func (t *Table) Rows(names []string) [][]any {
	cols := make([]*Column, len(names))
	for i, n := range names {
		cols[i], _ = t.Column(n)
	}
	out := make([][]any, t.rows)
	for r := 0; r < t.rows; r++ {
		row := make([]any, len(cols))
		for i, c := range cols {
			if c != nil {
				row[i] = c.Values[r]
			}
		}
		out[r] = row
	}
	return out
}

// Record returns row i as a map.
func (t *Table) Record(i int) map[string]any {
	m := make(map[string]any, len(t.cols))
	for _, c := range t.cols {
		m[c.Name] = c.Values[i]
	}
	return m
}

// Rename renames a column. Renaming onto an existing different column is an
// error.
func (t *Table) Rename(from, to string) error {
	if from == to {
		return nil
	}
	i, ok := t.index[from]
	if !ok {
		return fmt.Errorf("table: no column %q", from)
	}
	if _, clash := t.index[to]; clash {
		return fmt.Errorf("table: column %q already exists", to)
	}
	delete(t.index, from)
	t.index[to] = i
	t.cols[i].Name = to
	return nil
}

// AddColumn appends a column. len(values) must equal Len().
func (t *Table) AddColumn(name string, typ Type, values []any) error {
	if _, dup := t.index[name]; dup {
		return fmt.Errorf("table: column %q already exists", name)
	}
	if len(values) != t.rows {
		return fmt.Errorf("table: column %q has %d values for %d rows", name, len(values), t.rows)
	}
	t.index[name] = len(t.cols)
	t.cols = append(t.cols, &Column{Name: name, Type: typ, Values: values})
	return nil
}

// AddConstant appends a column holding v in every row.
func (t *Table) AddConstant(name string, v any) error {
	vals := make([]any, t.rows)
	for i := range vals {
		vals[i] = v
	}
	return t.AddColumn(name, TypeOf(v), vals)
}

// Select returns a new table holding the given rows in the given order.
func (t *Table) Select(rows []int) *Table {
	out := &Table{index: make(map[string]int, len(t.cols)), rows: len(rows)}
	for i, c := range t.cols {
		vals := make([]any, len(rows))
		for j, r := range rows {
			vals[j] = c.Values[r]
		}
		out.index[c.Name] = i
		out.cols = append(out.cols, &Column{Name: c.Name, Type: c.Type, Values: vals})
	}
	return out
}

// Filter returns the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	idx := make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return t.Select(idx)
}

// Clone returns a deep copy of the column structure. Values are copied by
// assignment.
func (t *Table) Clone() *Table {
	all := make([]int, t.rows)
	for i := range all {
		all[i] = i
	}
	return t.Select(all)
}

// TypeOf maps a Go value to a column Type. nil and unknown values are String.
func TypeOf(v any) Type {
	switch v.(type) {
	case int64, int, int32:
		return Int
	case float64, float32:
		return Float
	case bool:
		return Bool
	case time.Time:
		return Time
	default:
		return String
	}
}

// InferTypes sets each column's Type from the Go types of its non-null
// values. A column whose values disagree becomes String and its values are
// rendered with Format. All-null columns are String.
func (t *Table) InferTypes() {
	for _, c := range t.cols {
		var (
			typ  Type
			seen bool
			mix  bool
		)
		for _, v := range c.Values {
			if v == nil {
				continue
			}
			vt := TypeOf(v)
			if !seen {
				typ, seen = vt, true
				continue
			}
			if vt != typ {
				if (vt == Int && typ == Float) || (vt == Float && typ == Int) {
					typ = Float
					continue
				}
				mix = true
				break
			}
		}
		switch {
		case !seen || mix:
			c.Type = String
		default:
			c.Type = typ
		}
		for i, v := range c.Values {
			if v != nil {
				c.Values[i] = Convert(v, c.Type)
			}
		}
	}
}

// Convert renders v as the Go representation of typ. Values that cannot be
// represented are returned unchanged except for String, which always
// succeeds.
func Convert(v any, typ Type) any {
	if v == nil {
		return nil
	}
	switch typ {
	case String:
		return Format(v)
	case Int:
		switch x := v.(type) {
		case int64:
			return x
		case int:
			return int64(x)
		case int32:
			return int64(x)
		case float64:
			if x == float64(int64(x)) {
				return int64(x)
			}
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
				return n
			}
		}
	case Float:
		if f, ok := AsFloat(v); ok {
			return f
		}
	case Bool:
		switch x := v.(type) {
		case bool:
			return x
		case string:
			if b, ok := parseBool(x); ok {
				return b
			}
		}
	case Time:
		switch x := v.(type) {
		case time.Time:
			return x
		case string:
			if ts, ok := ParseTime(x); ok {
				return ts
			}
		}
	}
	return v
}

// Format renders a value as text. Whole floats print without a fraction.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

// AsFloat coerces numbers and numeric strings to float64.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
