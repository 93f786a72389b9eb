package analytics

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/samvalverde/PAAA/internal/logging"
	"github.com/samvalverde/PAAA/internal/table"
)

// Operators accepted in an operator-object filter, applied in this order.
var Operators = []string{"eq", "neq", "gte", "lte", "gt", "lt", "in"}

// IsYearColumn reports whether comparisons on name use numeric coercion.
func IsYearColumn(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "ano") || strings.Contains(n, "year")
}

// ApplyFilters restricts t to the rows selected by d. Filters on columns the
// table lacks are skipped. Every condition narrows the result further.
func ApplyFilters(t *table.Table, d *Descriptor) *table.Table {
	if d.Programa != nil && t.Has("programa") {
		want, src := *d.Programa, t
		t = src.Filter(func(i int) bool {
			v := src.Value(i, "programa")
			return v != nil && table.Format(v) == want
		})
		logging.Debug().Str("column", "programa").Str("op", "eq").Int("rows", t.Len()).Msg("analytics: filter applied")
	}

	cols := make([]string, 0, len(d.Filtros))
	for c := range d.Filtros {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	for _, col := range cols {
		if !t.Has(col) {
			logging.Warn().Str("column", col).Msg("analytics: filter column not found, skipped")
			continue
		}
		year := IsYearColumn(col)
		for _, p := range predicates(d.Filtros[col], year) {
			cur := t
			t = cur.Filter(func(i int) bool { return p.match(cur.Value(i, col)) })
			logging.Debug().Str("column", col).Str("op", p.op).Int("rows", t.Len()).Msg("analytics: filter applied")
		}
	}
	return t
}

type predicate struct {
	op    string
	match func(v any) bool
}

func predicates(cond any, year bool) []predicate {
	switch c := cond.(type) {
	case map[string]any:
		var out []predicate
		for _, op := range Operators {
			arg, ok := c[op]
			if !ok {
				continue
			}
			out = append(out, operator(op, arg, year))
		}
		return out
	case []any:
		return []predicate{operator("in", c, year)}
	case []string:
		list := make([]any, len(c))
		for i, s := range c {
			list[i] = s
		}
		return []predicate{operator("in", list, year)}
	default:
		return []predicate{operator("eq", c, year)}
	}
}

func operator(op string, arg any, year bool) predicate {
	arg = plain(arg)
	p := predicate{op: op}
	switch op {
	case "eq":
		p.match = func(v any) bool { return equal(v, arg, year) }
	case "neq":
		p.match = func(v any) bool { return !equal(v, arg, year) }
	case "in":
		list, _ := arg.([]any)
		p.match = func(v any) bool {
			for _, a := range list {
				if equal(v, plain(a), year) {
					return true
				}
			}
			return false
		}
	default:
		p.match = func(v any) bool {
			c, ok := compare(v, arg, year)
			if !ok {
				return false
			}
			switch op {
			case "gte":
				return c >= 0
			case "lte":
				return c <= 0
			case "gt":
				return c > 0
			default:
				return c < 0
			}
		}
	}
	return p
}

// plain unwraps json.Number so decoded descriptors compare as numbers.
func plain(v any) any {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	}
	return v
}

func numeric(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}

// equal compares a cell with a condition value. Null cells never match.
// Year columns compare numerically after coercion; otherwise numbers compare
// by value and anything else by its text form.
func equal(v, arg any, year bool) bool {
	if v == nil || arg == nil {
		return false
	}
	if year || (numeric(v) && numeric(arg)) {
		a, ok1 := table.AsFloat(v)
		b, ok2 := table.AsFloat(arg)
		if ok1 && ok2 {
			return a == b
		}
		if year {
			return false
		}
	}
	if b, ok := arg.(bool); ok {
		vb, isBool := v.(bool)
		return isBool && vb == b
	}
	return table.Format(v) == table.Format(arg)
}

// compare orders a cell against arg. ok is false when the pair is not
// comparable, which excludes the row.
func compare(v, arg any, year bool) (int, bool) {
	if v == nil || arg == nil {
		return 0, false
	}
	if year || (numeric(v) && numeric(arg)) {
		a, ok1 := table.AsFloat(v)
		b, ok2 := table.AsFloat(arg)
		if !ok1 || !ok2 {
			return 0, false
		}
		switch {
		case a < b:
			return -1, true
		case a > b:
			return 1, true
		}
		return 0, true
	}
	if numeric(v) != numeric(arg) {
		return 0, false
	}
	return strings.Compare(table.Format(v), table.Format(arg)), true
}
