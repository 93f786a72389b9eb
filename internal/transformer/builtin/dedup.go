package builtin

// DeDup collapses rows sharing a key tuple and chooses a winner according to
// a configurable policy:
//
//   - "keep-first"   : keep the earliest occurrence in the batch (default)
//   - "keep-last"    : keep the latest occurrence in the batch
//   - "most-complete": keep the row that has the most non-empty fields;
//     ties break by "keep-last"
//
// This runs in-memory on a single batch. It removes intra-batch duplicates
// before the upsert so the merge never sees the same key twice in one
// statement; the unique index in storage remains the backstop.
//
// Keys: a row's key is the concatenation of the key values rendered as text
// (nil -> "\x00"). Run DeDup after Coerce so types and empty values are
// consistent.

import (
	"sort"
	"strings"

	"github.com/samvalverde/PAAA/internal/table"
)

// DeDup implements a configurable, in-memory de-duplication policy.
type DeDup struct {
	// Keys are the column names forming the business key, e.g. ["programa","email"].
	Keys []string

	// Policy selects the winner among duplicates.
	Policy string

	// PreferFields weigh more heavily in "most-complete" selection.
	PreferFields []string

	// Dropped, when non-nil, receives the number of rows removed.
	Dropped *int
}

func (DeDup) Name() string { return "dedup" }

// Apply returns a new table holding the winning rows in ascending input
// order, re-indexed contiguously. Rows missing a key column are kept.
func (d DeDup) Apply(t *table.Table) (*table.Table, error) {
	if t.Len() == 0 || len(d.Keys) == 0 {
		d.report(0)
		return t, nil
	}

	policy := strings.ToLower(strings.TrimSpace(d.Policy))
	if policy == "" {
		policy = "keep-first"
	}

	keyCols := make([]*table.Column, len(d.Keys))
	for i, k := range d.Keys {
		c, ok := t.Column(k)
		if !ok {
			// Cannot key any row; nothing to collapse.
			d.report(0)
			return t, nil
		}
		keyCols[i] = c
	}

	prefer := make(map[string]struct{}, len(d.PreferFields))
	for _, f := range d.PreferFields {
		prefer[f] = struct{}{}
	}
	cols := t.Columns()

	keyOf := func(r int) string {
		var b strings.Builder
		for i, c := range keyCols {
			if i > 0 {
				b.WriteByte('\x1f')
			}
			v := c.Values[r]
			if v == nil {
				b.WriteByte('\x00')
				continue
			}
			b.WriteString(table.Format(v))
		}
		return b.String()
	}

	scoreOf := func(r int) int {
		score, bonus := 0, 0
		for _, c := range cols {
			v := c.Values[r]
			if v == nil {
				continue
			}
			if s, ok := v.(string); ok && s == "" {
				continue
			}
			score++
			if _, ok := prefer[c.Name]; ok {
				bonus++
			}
		}
		return score*10 + bonus
	}

	type slot struct {
		index int
		score int
	}
	winners := make(map[string]slot, t.Len())

	for i := 0; i < t.Len(); i++ {
		key := keyOf(i)
		switch policy {
		case "keep-last":
			winners[key] = slot{index: i}
		case "most-complete":
			s := slot{index: i, score: scoreOf(i)}
			if prev, exists := winners[key]; !exists || s.score > prev.score || (s.score == prev.score && s.index > prev.index) {
				winners[key] = s
			}
		default: // keep-first
			if _, exists := winners[key]; !exists {
				winners[key] = slot{index: i}
			}
		}
	}

	keep := make([]int, 0, len(winners))
	for _, s := range winners {
		keep = append(keep, s.index)
	}
	sort.Ints(keep)
	d.report(t.Len() - len(keep))
	return t.Select(keep), nil
}

func (d DeDup) report(n int) {
	if d.Dropped != nil {
		*d.Dropped = n
	}
}
