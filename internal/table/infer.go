package table

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts carry a time component; dateLayouts do not. Slashed and
// dotted dates are always day-first, with or without a time part.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02.01.2006",
	"2006/01/02",
}

// ParseTime parses s with the known timestamp and date layouts.
func ParseTime(s string) (time.Time, bool) {
	st := strings.TrimSpace(s)
	if st == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, st); err == nil {
			return ts, true
		}
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, st); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// parseBool accepts only true/false spellings; survey answers such as "no"
// stay text.
func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return err == nil
}

// isFloat rejects ints so integer columns stay Int, and rejects NaN/Inf
// spellings.
func isFloat(s string) bool {
	if isInt(s) {
		return false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
}

func isBool(s string) bool {
	_, ok := parseBool(s)
	return ok
}

func isTime(s string) bool {
	_, ok := ParseTime(s)
	return ok
}

// InferCells decides the Type of a column of raw text cells. Empty cells are
// ignored; a column with no non-empty cell is String.
func InferCells(cells []string) Type {
	nonEmpty := make([]string, 0, len(cells))
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			nonEmpty = append(nonEmpty, c)
		}
	}
	if len(nonEmpty) == 0 {
		return String
	}
	all := func(fn func(string) bool) bool {
		for _, v := range nonEmpty {
			if !fn(v) {
				return false
			}
		}
		return true
	}
	switch {
	case all(isInt):
		return Int
	case all(isBool):
		return Bool
	case all(func(s string) bool { return isInt(s) || isFloat(s) }):
		return Float
	case all(isTime):
		return Time
	default:
		return String
	}
}

// FromStrings builds a table from a header and text rows, inferring one Type
// per column and converting cells. Empty cells become null. Rows shorter than
// the header are padded with nulls; extra cells are dropped.
func FromStrings(header []string, rows [][]string) (*Table, error) {
	t, err := New(header...)
	if err != nil {
		return nil, err
	}
	width := len(header)
	cells := make([][]string, width)
	for i := range cells {
		cells[i] = make([]string, len(rows))
	}
	for r, row := range rows {
		for c := 0; c < width && c < len(row); c++ {
			cells[c][r] = row[c]
		}
	}
	for c, col := range t.cols {
		typ := InferCells(cells[c])
		col.Type = typ
		col.Values = make([]any, len(rows))
		for r, s := range cells[c] {
			if strings.TrimSpace(s) == "" {
				continue
			}
			col.Values[r] = parseCell(s, typ)
		}
	}
	t.rows = len(rows)
	return t, nil
}

func parseCell(s string, typ Type) any {
	st := strings.TrimSpace(s)
	switch typ {
	case Int:
		n, _ := strconv.ParseInt(st, 10, 64)
		return n
	case Float:
		f, _ := strconv.ParseFloat(st, 64)
		return f
	case Bool:
		b, _ := parseBool(st)
		return b
	case Time:
		ts, _ := ParseTime(st)
		return ts
	default:
		return s
	}
}
