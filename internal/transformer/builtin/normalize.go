// Package builtin contains the transformers that make up the survey
// transform stage: header normalization, alias resolution, static column
// injection, required-column and key/email validation, type coercion, string
// cleanup and key de-duplication.
package builtin

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/samvalverde/PAAA/internal/table"
)

// stripMarks decomposes and removes nonspacing marks (accents).
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))

// NormalizeName converts a raw header into a storage-safe snake_case name:
// accents stripped, trimmed, lowercased, every run of non-word characters
// replaced by one underscore and leading/trailing underscores removed.
// "Correo Electrónico" becomes "correo_electronico". NormalizeName is
// idempotent. Headers with no word characters normalize to "col".
func NormalizeName(s string) string {
	ascii, _, err := transform.String(stripMarks, s)
	if err != nil {
		ascii = s
	}
	ascii = strings.ToLower(strings.TrimSpace(ascii))

	var b strings.Builder
	b.Grow(len(ascii))
	pendingSep := false
	for _, r := range ascii {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			if r == '_' {
				pendingSep = true
				continue
			}
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return "col"
	}
	return b.String()
}

// NormalizeHeaders renames every column with NormalizeName. Distinct headers
// that normalize to the same name keep their data under "_2", "_3", ...
// suffixes in column order.
type NormalizeHeaders struct{}

func (NormalizeHeaders) Name() string { return "normalize_headers" }

func (NormalizeHeaders) Apply(t *table.Table) (*table.Table, error) {
	names := t.Names()
	targets := make([]string, len(names))
	taken := make(map[string]bool, len(names))
	for i, n := range names {
		base := NormalizeName(n)
		name := base
		for k := 2; taken[name]; k++ {
			name = base + "_" + strconv.Itoa(k)
		}
		taken[name] = true
		targets[i] = name
	}

	// Two-phase rename so a header may take a name another header is leaving.
	for i, n := range names {
		if err := t.Rename(n, "\x00tmp"+strconv.Itoa(i)); err != nil {
			return nil, err
		}
	}
	for i := range names {
		if err := t.Rename("\x00tmp"+strconv.Itoa(i), targets[i]); err != nil {
			return nil, err
		}
	}
	return t, nil
}
