// Package reader is the tabular reader of the ETL pipeline. It resolves a
// source locator to a datasource, picks a parser from the file extension and
// returns the parsed table, refusing empty results.
//
// Locators:
//
//	/data/egresados.xlsx           local path
//	s3://bucket/ATI/egresados/x.csv object store
//	minio://bucket/key             object store (alias of s3://)
//	https://host/export.csv        HTTP GET with retry
package reader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/samvalverde/PAAA/internal/datasource"
	"github.com/samvalverde/PAAA/internal/datasource/file"
	"github.com/samvalverde/PAAA/internal/datasource/httpds"
	"github.com/samvalverde/PAAA/internal/logging"
	"github.com/samvalverde/PAAA/internal/objectstore"
	"github.com/samvalverde/PAAA/internal/parser"
	pcsv "github.com/samvalverde/PAAA/internal/parser/csv"
	pjson "github.com/samvalverde/PAAA/internal/parser/json"
	"github.com/samvalverde/PAAA/internal/parser/xlsx"
	"github.com/samvalverde/PAAA/internal/table"
)

// Options tune format parsing.
type Options struct {
	// Sheet selects the worksheet of spreadsheet sources; empty is the first.
	Sheet string
	// Comma forces the delimiter of text sources; zero sniffs it.
	Comma rune
}

// Reader reads locators into tables. The zero value reads local files only.
type Reader struct {
	store *objectstore.Store
	http  *httpds.Client
	opt   Options
}

// Option configures a Reader.
type Option func(*Reader)

// WithObjectStore enables s3:// and minio:// locators.
func WithObjectStore(s *objectstore.Store) Option { return func(r *Reader) { r.store = s } }

// WithHTTP enables http:// and https:// locators.
func WithHTTP(c *httpds.Client) Option { return func(r *Reader) { r.http = c } }

// WithOptions sets the parsing options.
func WithOptions(o Options) Option { return func(r *Reader) { r.opt = o } }

// New returns a Reader.
func New(opts ...Option) *Reader {
	r := &Reader{}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Read loads locator into a table. Unsupported extensions fail before any
// I/O; a table with zero rows is an *EmptySourceError.
func (r *Reader) Read(ctx context.Context, locator string) (*table.Table, error) {
	src, err := r.Resolve(locator)
	if err != nil {
		return nil, err
	}
	return r.ReadSource(ctx, src)
}

// ReadSource parses an already resolved source, dispatching on its name.
func (r *Reader) ReadSource(ctx context.Context, src datasource.Named) (*table.Table, error) {
	name := src.Name()
	p, err := ParserFor(name, r.opt)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("reader: open %s: %w", name, err)
	}
	defer rc.Close()

	t, err := p.Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("reader: parse %s: %w", name, err)
	}
	if t.Len() == 0 {
		return nil, &EmptySourceError{Source: name}
	}
	logging.Debug().Str("source", name).Int("rows", t.Len()).Int("cols", t.Width()).
		Dur("elapsed", time.Since(start)).Msg("reader: parsed")
	return t, nil
}

// Resolve maps a locator to a datasource.
func (r *Reader) Resolve(locator string) (datasource.Named, error) {
	scheme, rest, ok := strings.Cut(locator, "://")
	if !ok {
		return file.NewLocal(locator), nil
	}
	switch strings.ToLower(scheme) {
	case "s3", "minio":
		if r.store == nil {
			return nil, fmt.Errorf("reader: %s: no object store configured", locator)
		}
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || key == "" {
			return nil, fmt.Errorf("reader: %s: want %s://bucket/key", locator, scheme)
		}
		return r.store.WithBucket(bucket).Source(key), nil
	case "http", "https":
		c := r.http
		if c == nil {
			c = httpds.NewClient(httpds.Config{})
		}
		return c.Source(locator), nil
	case "file":
		return file.NewLocal(rest), nil
	default:
		return nil, fmt.Errorf("reader: unsupported locator scheme %q", scheme)
	}
}

// ParserFor returns the parser for name's extension.
func ParserFor(name string, opt Options) (parser.Parser, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".csv", ".txt":
		return pcsv.NewParser(pcsv.Options{Comma: opt.Comma, LazyQuotes: true}), nil
	case ".tsv":
		comma := opt.Comma
		if comma == 0 {
			comma = '\t'
		}
		return pcsv.NewParser(pcsv.Options{Comma: comma, LazyQuotes: true}), nil
	case ".xlsx", ".xlsm", ".xltx":
		return xlsx.NewParser(xlsx.Options{Sheet: opt.Sheet}), nil
	case ".json", ".ndjson", ".jsonl":
		return pjson.NewParser(), nil
	default:
		return nil, &UnsupportedFormatError{Source: name, Ext: ext}
	}
}
