package builtin

import (
	"strings"

	"github.com/samvalverde/PAAA/internal/table"
)

// TrimStrings trims surrounding whitespace in every string value. When
// EmptyAsNull is set, values that trim to "" become null, which is how blank
// spreadsheet cells end up after a round trip through text.
type TrimStrings struct {
	EmptyAsNull bool
}

func (TrimStrings) Name() string { return "trim_strings" }

func (tr TrimStrings) Apply(t *table.Table) (*table.Table, error) {
	for _, c := range t.Columns() {
		for i, v := range c.Values {
			s, ok := v.(string)
			if !ok {
				continue
			}
			s = strings.TrimSpace(s)
			if s == "" && tr.EmptyAsNull {
				c.Values[i] = nil
				continue
			}
			c.Values[i] = s
		}
	}
	return t, nil
}
