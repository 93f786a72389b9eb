package builtin

import (
	"regexp"

	"github.com/samvalverde/PAAA/internal/table"
)

// KeysNotNull fails with *NullKeyError when a key column holds a null. Keys
// are checked in order and the first offending column is reported.
type KeysNotNull struct {
	Keys []string
}

func (KeysNotNull) Name() string { return "keys_not_null" }

func (k KeysNotNull) Apply(t *table.Table) (*table.Table, error) {
	for _, name := range k.Keys {
		col, ok := t.Column(name)
		if !ok {
			return nil, &MissingColumnsError{Missing: []string{name}, Present: t.Names()}
		}
		var (
			idx   []int
			count int
		)
		for i, v := range col.Values {
			if !isNull(v) {
				continue
			}
			count++
			if len(idx) < sampleSize {
				idx = append(idx, i)
			}
		}
		if count > 0 {
			return nil, &NullKeyError{Column: name, Indices: idx, Count: count}
		}
	}
	return t, nil
}

// emailRe is deliberately loose: one @, no whitespace, a dot in the domain.
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidEmail reports whether s looks like local@domain.tld.
func ValidEmail(s string) bool { return emailRe.MatchString(s) }

// Emails checks the email column when present. Nulls count as malformed.
type Emails struct {
	// Column defaults to "email".
	Column string
}

func (Emails) Name() string { return "validate_emails" }

func (e Emails) Apply(t *table.Table) (*table.Table, error) {
	name := e.Column
	if name == "" {
		name = "email"
	}
	col, ok := t.Column(name)
	if !ok {
		return t, nil
	}
	var (
		sample []any
		count  int
	)
	for _, v := range col.Values {
		s, isStr := v.(string)
		if isStr && ValidEmail(s) {
			continue
		}
		count++
		if len(sample) < sampleSize {
			sample = append(sample, v)
		}
	}
	if count > 0 {
		return nil, &InvalidEmailError{Column: name, Sample: sample, Count: count}
	}
	return t, nil
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	if f, ok := v.(float64); ok && f != f {
		return true
	}
	return false
}
