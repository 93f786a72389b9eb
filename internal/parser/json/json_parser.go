// Package json parses survey exports in JSON form into a table. It accepts a
// single top-level array of objects, a stream of objects (NDJSON), or a mix
// of both. Columns appear in first-seen key order.
package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/samvalverde/PAAA/internal/parser"
	"github.com/samvalverde/PAAA/internal/table"
)

// Parser parses JSON input. The zero value is ready to use.
type Parser struct{}

// NewParser returns a Parser.
func NewParser() *Parser { return &Parser{} }

var _ parser.Parser = (*Parser)(nil)

// Parse reads every object from r. Top-level primitives are skipped; array
// elements that are not objects are an error.
func (p *Parser) Parse(r io.Reader) (*table.Table, error) {
	d := json.NewDecoder(r)
	d.UseNumber()

	c := &collector{seen: map[string]bool{}}
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("json parser: %w", err)
		}
		delim, ok := tok.(json.Delim)
		if !ok {
			continue
		}
		switch delim {
		case '{':
			if err := c.object(d); err != nil {
				return nil, err
			}
		case '[':
			for i := 0; d.More(); i++ {
				tok, err := d.Token()
				if err != nil {
					return nil, fmt.Errorf("json parser: element %d: %w", i, err)
				}
				if tok != json.Delim('{') {
					return nil, fmt.Errorf("json parser: element %d in array is not an object", i)
				}
				if err := c.object(d); err != nil {
					return nil, err
				}
			}
			if _, err := d.Token(); err != nil {
				return nil, fmt.Errorf("json parser: close array: %w", err)
			}
		default:
			return nil, fmt.Errorf("json parser: unexpected %v", delim)
		}
	}

	t, err := table.FromRecords(c.names, c.recs)
	if err != nil {
		return nil, err
	}
	t.InferTypes()
	return t, nil
}

type collector struct {
	names []string
	seen  map[string]bool
	recs  []map[string]any
}

// object consumes the members of an object whose '{' was already read.
func (c *collector) object(d *json.Decoder) error {
	rec := map[string]any{}
	for d.More() {
		tok, err := d.Token()
		if err != nil {
			return fmt.Errorf("json parser: key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("json parser: unexpected key %v", tok)
		}
		var v any
		if err := d.Decode(&v); err != nil {
			return fmt.Errorf("json parser: value of %q: %w", key, err)
		}
		if !c.seen[key] {
			c.seen[key] = true
			c.names = append(c.names, key)
		}
		rec[key] = cell(v)
	}
	if _, err := d.Token(); err != nil {
		return fmt.Errorf("json parser: close object: %w", err)
	}
	c.recs = append(c.recs, rec)
	return nil
}

// cell maps decoded JSON to table values. Nested values are kept as their
// compact JSON text.
func cell(v any) any {
	switch x := v.(type) {
	case nil, string, bool:
		return x
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
