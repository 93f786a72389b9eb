package csv

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeBOM transcodes r to UTF-8 according to its byte-order mark and drops
// the mark. "Unicode text" spreadsheet exports are UTF-16 with a BOM; UTF-8
// exports often start with EF BB BF, which would otherwise stick to the first
// header name or turn a quoted first cell into a bare-quote error. Input
// without a mark passes through untouched.
func decodeBOM(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(transform.Nop))
}
