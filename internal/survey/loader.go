package survey

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/samvalverde/PAAA/internal/etl"
	"github.com/samvalverde/PAAA/internal/logging"
	"github.com/samvalverde/PAAA/internal/objectstore"
	"github.com/samvalverde/PAAA/internal/table"
	"github.com/samvalverde/PAAA/internal/transformer/builtin"
)

// StatusOK is the Summary status of a successful load.
const StatusOK = "ok"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Request is one file load.
type Request struct {
	Programa string `json:"programa" validate:"required"`
	Dataset  string `json:"dataset" validate:"required"`
	// Version defaults to InferVersion(Source).
	Version string `json:"version,omitempty"`
	// Source is a reader locator (path, s3://, http(s)://).
	Source string `json:"source" validate:"required"`
}

// Summary reports a completed load.
type Summary struct {
	Programa   string     `json:"programa"`
	Dataset    string     `json:"dataset"`
	Version    string     `json:"version"`
	Key        []string   `json:"key"`
	Source     string     `json:"source"`
	Status     string     `json:"status"`
	Bucket     string     `json:"bucket,omitempty"`
	ObjectName string     `json:"object_name,omitempty"`
	Result     etl.Result `json:"result"`
}

// Options tune every load run by a Loader.
type Options struct {
	WriteRaw        bool
	RawSchema       string
	CoreSchema      string
	CreateIfMissing bool
	// Aliases overrides builtin.DefaultAliases().
	Aliases builtin.AliasMap
}

// DefaultOptions mirrors the deployed loader.
func DefaultOptions() Options {
	return Options{WriteRaw: true, RawSchema: etl.DefaultRawSchema, CoreSchema: etl.DefaultCoreSchema, CreateIfMissing: true}
}

// Loader runs survey loads.
type Loader struct {
	reader  etl.Reader
	store   etl.Store
	objects *objectstore.Store
	opt     Options
}

// NewLoader returns a Loader. objects may be nil when only local or HTTP
// sources are used.
func NewLoader(r etl.Reader, s etl.Store, objects *objectstore.Store, opt Options) *Loader {
	return &Loader{reader: r, store: s, objects: objects, opt: opt}
}

// Preflight returns the key column chosen for a table of dataset ds and the
// normalized, alias-resolved column names.
func (l *Loader) Preflight(ds Dataset, t *table.Table) (string, []string, error) {
	hdr, err := table.New(t.Names()...)
	if err != nil {
		return "", nil, err
	}
	hdr, err = etl.HeaderChain(etl.Config{Aliases: l.opt.Aliases}).Apply(hdr)
	if err != nil {
		return "", nil, err
	}
	for _, k := range ds.KeyCandidates {
		if hdr.Has(k) {
			return k, hdr.Names(), nil
		}
	}
	return "", nil, &NoKeyCandidateError{Dataset: ds.Name, Candidates: ds.KeyCandidates, Columns: hdr.Names()}
}

// Probe reads src and runs Preflight on it.
func (l *Loader) Probe(ctx context.Context, dataset, src string) (string, []string, error) {
	ds, err := Lookup(dataset)
	if err != nil {
		return "", nil, err
	}
	t, err := l.reader.Read(ctx, src)
	if err != nil {
		return "", nil, err
	}
	return l.Preflight(ds, t)
}

// LoadFile reads req.Source once, chooses the key and runs the pipeline with
// keys (programa, key) and static columns {programa, version}.
func (l *Loader) LoadFile(ctx context.Context, req Request) (Summary, error) {
	if err := validate.Struct(req); err != nil {
		return Summary{}, fmt.Errorf("survey: invalid request: %w", err)
	}
	ds, err := Lookup(req.Dataset)
	if err != nil {
		return Summary{}, err
	}
	version := req.Version
	if version == "" {
		version = InferVersion(path.Base(req.Source))
	}

	t, err := l.reader.Read(ctx, req.Source)
	if err != nil {
		return Summary{}, fmt.Errorf("survey: %s: %w", etl.StepExtract, err)
	}
	key, _, err := l.Preflight(ds, t)
	if err != nil {
		return Summary{}, err
	}
	keys := []string{"programa", key}

	cfg := etl.Config{
		Source:          req.Source,
		Dataset:         ds.Name,
		Keys:            keys,
		Required:        keys,
		Types:           ds.Types,
		Static:          map[string]any{"programa": req.Programa, "version": version},
		Aliases:         l.opt.Aliases,
		WriteRaw:        l.opt.WriteRaw,
		RawSchema:       l.opt.RawSchema,
		CoreSchema:      l.opt.CoreSchema,
		CreateIfMissing: l.opt.CreateIfMissing,
	}
	res, err := etl.New(loaded{t}, l.store).Run(ctx, cfg)
	if err != nil {
		return Summary{Result: res}, err
	}

	logging.Info().Str("programa", req.Programa).Str("dataset", ds.Name).Str("version", version).
		Strs("key", keys).Int64("core_rows", res.CoreRows).Msg("survey: loaded")
	return Summary{
		Programa: req.Programa,
		Dataset:  ds.Name,
		Version:  version,
		Key:      keys,
		Source:   req.Source,
		Status:   StatusOK,
		Result:   res,
	}, nil
}

// LoadFromStore resolves the object to load under {programa}/{dataset}/ with
// objectstore.Pick and loads it. An empty version is inferred from the
// picked object name.
func (l *Loader) LoadFromStore(ctx context.Context, programa, dataset, filename, version string) (Summary, error) {
	if l.objects == nil {
		return Summary{}, errors.New("survey: no object store configured")
	}
	ds, err := Lookup(dataset)
	if err != nil {
		return Summary{}, err
	}
	prefix := programa + "/" + ds.Name + "/"
	obj, err := l.objects.Resolve(ctx, prefix, filename, version)
	if err != nil {
		return Summary{}, err
	}
	if version == "" {
		version = InferVersion(path.Base(obj.Key))
	}
	sum, err := l.LoadFile(ctx, Request{
		Programa: programa,
		Dataset:  ds.Name,
		Version:  version,
		Source:   "s3://" + l.objects.Bucket() + "/" + obj.Key,
	})
	if err != nil {
		return sum, err
	}
	sum.Bucket = l.objects.Bucket()
	sum.ObjectName = obj.Key
	return sum, nil
}

// LoadMany runs reqs with at most parallelism concurrent loads (<= 0 means
// one at a time). The first failure cancels the remaining loads; summaries
// keep request order.
func (l *Loader) LoadMany(ctx context.Context, reqs []Request, parallelism int) ([]Summary, error) {
	if parallelism <= 0 {
		parallelism = 1
	}
	out := make([]Summary, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			sum, err := l.LoadFile(gctx, req)
			if err != nil {
				return fmt.Errorf("%s: %w", req.Source, err)
			}
			out[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// loaded hands an already read table to the pipeline.
type loaded struct{ t *table.Table }

func (r loaded) Read(context.Context, string) (*table.Table, error) { return r.t, nil }
