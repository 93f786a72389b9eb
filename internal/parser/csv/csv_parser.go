// Package csv parses delimited survey exports (.csv, .tsv, .txt) into a
// table. Spreadsheet tools export with ',' or ';' depending on locale, so the
// delimiter is sniffed from the header line unless configured.
package csv

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samvalverde/PAAA/internal/logging"
	"github.com/samvalverde/PAAA/internal/parser"
	"github.com/samvalverde/PAAA/internal/table"
)

// Options configures the CSV parser. The zero value sniffs the delimiter and
// keeps cell text as read.
type Options struct {
	// Comma is the field delimiter. When zero, it is sniffed.
	Comma rune

	// TrimSpace trims leading/trailing spaces from each cell.
	TrimSpace bool

	// LazyQuotes tolerates bare quotes inside unquoted fields.
	LazyQuotes bool
}

// Candidates are the delimiters considered by Sniff, in tie-break order.
var Candidates = []rune{',', ';', '\t', '|'}

// sniffBytes bounds how much of the input Sniff looks at.
const sniffBytes = 64 * 1024

// skipLogLimit caps per-row warnings for malformed rows.
const skipLogLimit = 20

// Parser parses CSV input according to Options.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

var _ parser.Parser = (*Parser)(nil)

// Parse reads a header line and every data row. Rows that encoding/csv
// rejects are skipped and logged; short rows are padded with nulls.
func (p *Parser) Parse(r io.Reader) (*table.Table, error) {
	br := bufio.NewReaderSize(decodeBOM(r), sniffBytes)

	comma := p.opt.Comma
	if comma == 0 {
		head, _ := br.Peek(sniffBytes)
		comma = Sniff(head)
	}

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = p.opt.LazyQuotes

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return table.New()
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var (
		rows    [][]string
		skipped int
	)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, fmt.Errorf("read csv: %w", err)
			}
			if skipped < skipLogLimit {
				logging.Warn().Int("line", line).Err(err).Msg("csv: skipping row")
			}
			skipped++
			continue
		}
		if p.opt.TrimSpace {
			for i := range row {
				row[i] = strings.TrimSpace(row[i])
			}
		}
		rows = append(rows, row)
	}
	if skipped > 0 {
		logging.Warn().Int("skipped", skipped).Int("rows", len(rows)).Msg("csv: malformed rows skipped")
	}
	return parser.Build(header, rows)
}

// Sniff picks the delimiter that occurs most often on the first line outside
// quoted sections. Ties resolve in Candidates order; no hit means ','.
func Sniff(head []byte) rune {
	counts := make(map[rune]int, len(Candidates))
	inQuotes := false
	for _, r := range string(head) {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		if r == '\n' || r == '\r' {
			break
		}
		counts[r]++
	}
	best, bestN := ',', 0
	for _, c := range Candidates {
		if counts[c] > bestN {
			best, bestN = c, counts[c]
		}
	}
	return best
}
