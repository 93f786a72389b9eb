package builtin

import "github.com/samvalverde/PAAA/internal/table"

// Require fails with *MissingColumnsError when any listed column is absent.
type Require struct {
	Columns []string
}

func (Require) Name() string { return "require_columns" }

func (r Require) Apply(t *table.Table) (*table.Table, error) {
	var missing []string
	for _, c := range r.Columns {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing, Present: t.Names()}
	}
	return t, nil
}
