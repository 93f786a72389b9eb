// Package parser turns survey files into tables. Format parsers live in the
// csv, xlsx and json subpackages; all of them return a *table.Table whose
// column types are inferred from the cell text.
package parser

import (
	"io"
	"strconv"
	"strings"

	"github.com/samvalverde/PAAA/internal/table"
)

// Parser reads one file into a table.
type Parser interface {
	Parse(r io.Reader) (*table.Table, error)
}

// Header makes raw header cells usable as column names: blank cells become
// col_N (1-based position) and repeated names get _2, _3 ... suffixes.
func Header(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, h := range raw {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "col_" + strconv.Itoa(i+1)
		}
		base := name
		for k := 2; seen[name]; k++ {
			name = base + "_" + strconv.Itoa(k)
		}
		seen[name] = true
		out[i] = name
	}
	return out
}

// Build assembles a table from a raw header and text rows. Rows whose cells
// are all blank are dropped.
func Build(header []string, rows [][]string) (*table.Table, error) {
	kept := rows[:0:0]
	for _, r := range rows {
		if !blank(r) {
			kept = append(kept, r)
		}
	}
	return table.FromStrings(Header(header), kept)
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
