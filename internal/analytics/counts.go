package analytics

import (
	"sort"

	"github.com/samvalverde/PAAA/internal/table"
)

// NullKey labels nulls in distributions.
const NullKey = "NA"

// Count is one distinct value and its frequency. Value is nil for nulls.
type Count struct {
	Value any
	Label string
	N     int
}

// ValueCounts counts distinct values (nulls included) ordered by frequency,
// ties in first-seen order. Values compare by their text form.
func ValueCounts(values []any) []Count {
	idx := make(map[string]int)
	var out []Count
	for _, v := range values {
		key := "\x00"
		if v != nil {
			key = "v" + table.Format(v)
		}
		i, ok := idx[key]
		if !ok {
			i = len(out)
			idx[key] = i
			out = append(out, Count{Value: v, Label: table.Format(v)})
		}
		out[i].N++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].N > out[j].N })
	return out
}

// Distribution maps each distinct value to its count, nulls under NullKey.
func Distribution(values []any) map[string]int {
	out := make(map[string]int)
	for _, v := range values {
		if v == nil {
			out[NullKey]++
			continue
		}
		out[table.Format(v)]++
	}
	return out
}

// Row is one composition-table row: {<label key>: value, total, porcentaje}.
type Row map[string]any

// Composition builds a composition table over values. Nulls are labelled
// nullLabel. topN > 0 keeps the most frequent topN rows, and percentages are
// then relative to the kept rows so they sum to 100.
func Composition(values []any, labelKey, nullLabel string, topN int) []Row {
	counts := ValueCounts(values)
	total := len(values)
	if topN > 0 && len(counts) > topN {
		counts = counts[:topN]
		total = 0
		for _, c := range counts {
			total += c.N
		}
	}
	out := make([]Row, 0, len(counts))
	for _, c := range counts {
		label := c.Label
		if c.Value == nil {
			label = nullLabel
		}
		pct := 0.0
		if total > 0 {
			pct = round1(float64(c.N) * 100 / float64(total))
		}
		out = append(out, Row{labelKey: label, "total": c.N, "porcentaje": pct})
	}
	return out
}

// nonNull drops nulls.
func nonNull(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

// columnValues returns the values of name, or nil when t lacks it.
func columnValues(t *table.Table, name string) ([]any, bool) {
	c, ok := t.Column(name)
	if !ok {
		return nil, false
	}
	return c.Values, true
}
