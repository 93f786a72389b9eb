package builtin

import (
	"sort"

	"github.com/samvalverde/PAAA/internal/table"
)

// Static injects caller-supplied constant columns (e.g. programa, version).
// A column already present in the source keeps the source values.
type Static struct {
	Values map[string]any
}

func (Static) Name() string { return "static_columns" }

func (s Static) Apply(t *table.Table) (*table.Table, error) {
	keys := make([]string, 0, len(s.Values))
	for k := range s.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if t.Has(k) {
			continue
		}
		if err := t.AddConstant(k, s.Values[k]); err != nil {
			return nil, err
		}
	}
	return t, nil
}
