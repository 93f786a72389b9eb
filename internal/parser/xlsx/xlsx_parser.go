// Package xlsx parses Excel workbooks (.xlsx, .xlsm, .xltx) into a table using
// excelize. Cells are read as their displayed text and typed by the same
// inference the CSV parser uses.
package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/samvalverde/PAAA/internal/parser"
	"github.com/samvalverde/PAAA/internal/table"
)

// Options selects the worksheet.
type Options struct {
	// Sheet names the worksheet to read. Empty means the first sheet.
	Sheet string
}

// Parser reads one worksheet.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

var _ parser.Parser = (*Parser)(nil)

// Parse uses the first non-blank row of the sheet as the header.
func (p *Parser) Parse(r io.Reader) (*table.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := p.opt.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return table.New()
		}
		sheet = sheets[0]
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("workbook has no sheet %q", sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	for len(rows) > 0 && blank(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return table.New()
	}
	return parser.Build(rows[0], rows[1:])
}

func blank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
