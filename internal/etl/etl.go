// Package etl runs one survey load: extract a source into a table, transform
// it (normalize, resolve aliases, inject static columns, validate, coerce,
// clean, de-duplicate) and load it into the append-only raw table and the
// keyed core table.
//
// A run moves through Extracted, Transformed, Loaded and Done, or stops in
// Failed. There are no retries; re-running is safe because the core write is
// a keyed upsert. Nothing is written unless extract and transform succeed.
// The raw append and the core upsert are separate transactions, so a failed
// upsert can leave the raw append committed.
package etl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samvalverde/PAAA/internal/logging"
	"github.com/samvalverde/PAAA/internal/metrics"
	"github.com/samvalverde/PAAA/internal/storage"
	"github.com/samvalverde/PAAA/internal/table"
	"github.com/samvalverde/PAAA/internal/transformer"
	"github.com/samvalverde/PAAA/internal/transformer/builtin"
)

// State is the position of a run in the pipeline.
type State string

const (
	StatePending     State = "pending"
	StateExtracted   State = "extracted"
	StateTransformed State = "transformed"
	StateLoaded      State = "loaded"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Step names used in logs, metrics and Result.FailedStep.
const (
	StepExtract   = "extract"
	StepTransform = "transform"
	StepLoadRaw   = "load_raw"
	StepLoadCore  = "load_core"
)

// Default namespaces.
const (
	DefaultRawSchema  = "raw"
	DefaultCoreSchema = "core"
)

// ErrNoDataset is returned when Config.Dataset is empty.
var ErrNoDataset = errors.New("etl: dataset name is required")

// Reader extracts a locator into a table.
type Reader interface {
	Read(ctx context.Context, locator string) (*table.Table, error)
}

// Store is the storage surface a run needs; *storage.Engine satisfies it.
type Store interface {
	EnsureSchemas(ctx context.Context, schemas ...string) error
	Append(ctx context.Context, schema, name string, data *table.Table, createIfMissing bool) (storage.WriteResult, error)
	Upsert(ctx context.Context, req storage.UpsertRequest) (storage.WriteResult, error)
}

// Config describes one run.
type Config struct {
	// Source is the locator handed to the Reader.
	Source string
	// Dataset names the raw and core tables.
	Dataset string
	// Keys is the ordered key column set; it must not be empty.
	Keys []string
	// Required columns must exist after aliasing and static injection.
	// Empty means Keys.
	Required []string
	// Types maps columns to coercion tags (string, datetime, int, ...).
	Types map[string]string
	// Static columns are injected when the source lacks them.
	Static map[string]any
	// Aliases drives alias resolution. Nil means builtin.DefaultAliases().
	Aliases builtin.AliasMap
	// AliasConflicts selects how ambiguous aliases are handled.
	AliasConflicts builtin.ConflictPolicy
	// WriteRaw appends the extracted batch to the raw table.
	WriteRaw bool

	RawSchema  string
	CoreSchema string

	// CreateIfMissing creates absent raw/core tables.
	CreateIfMissing bool
}

// Result reports a run. It is returned on failure too, with State ==
// StateFailed and FailedStep set.
type Result struct {
	Dataset     string
	State       State
	FailedStep  string
	Extracted   int
	Transformed int
	Duplicates  int
	RawRows     int64
	CoreRows    int64
	Elapsed     time.Duration
}

// Pipeline binds a Reader and a Store.
type Pipeline struct {
	reader Reader
	store  Store
}

// New returns a Pipeline.
func New(r Reader, s Store) *Pipeline {
	return &Pipeline{reader: r, store: s}
}

func (c Config) withDefaults() Config {
	if c.RawSchema == "" {
		c.RawSchema = DefaultRawSchema
	}
	if c.CoreSchema == "" {
		c.CoreSchema = DefaultCoreSchema
	}
	if len(c.Required) == 0 {
		c.Required = c.Keys
	}
	if c.Aliases == nil {
		c.Aliases = builtin.DefaultAliases()
	}
	return c
}

// Validate reports configuration errors that must stop a run before I/O.
func (c Config) Validate() error {
	if c.Dataset == "" {
		return ErrNoDataset
	}
	if len(c.Keys) == 0 {
		return fmt.Errorf("etl: %s: %w", c.Dataset, storage.ErrNoKeyColumns)
	}
	return nil
}

// HeaderChain normalizes headers and resolves aliases. The raw copy is taken
// after this chain.
func HeaderChain(cfg Config) transformer.Chain {
	cfg = cfg.withDefaults()
	return transformer.Chain{
		builtin.NormalizeHeaders{},
		builtin.ResolveAliases{Aliases: cfg.Aliases, OnConflict: cfg.AliasConflicts},
	}
}

// CoreChain is everything after HeaderChain. dropped receives the number of
// duplicate rows removed.
func CoreChain(cfg Config, dropped *int) transformer.Chain {
	cfg = cfg.withDefaults()
	return transformer.Chain{
		builtin.Static{Values: cfg.Static},
		builtin.Require{Columns: cfg.Required},
		builtin.Coerce{Types: cfg.Types},
		builtin.TrimStrings{EmptyAsNull: true},
		builtin.KeysNotNull{Keys: cfg.Keys},
		builtin.Emails{},
		builtin.DeDup{Keys: cfg.Keys, Dropped: dropped},
	}
}

// Run executes one load. Errors from lower layers are returned wrapped with
// the failing step so errors.As still reaches their typed payloads.
func (p *Pipeline) Run(ctx context.Context, cfg Config) (res Result, err error) {
	start := time.Now()
	res = Result{Dataset: cfg.Dataset, State: StatePending}
	log := logging.With().Str("dataset", cfg.Dataset).Str("source", cfg.Source).Logger()

	defer func() {
		res.Elapsed = time.Since(start)
		if err != nil {
			res.State = StateFailed
			log.Error().Err(err).Str("step", res.FailedStep).Dur("elapsed", res.Elapsed).Msg("etl: run failed")
		}
	}()

	if err = cfg.Validate(); err != nil {
		return res, err
	}
	cfg = cfg.withDefaults()

	transition := func(s State, rows int) {
		res.State = s
		log.Info().Str("state", string(s)).Int("rows", rows).Msg("etl: state transition")
	}

	// Extract.
	t0 := time.Now()
	data, err := p.reader.Read(ctx, cfg.Source)
	metrics.RecordStep(cfg.Dataset, StepExtract, err, time.Since(t0))
	if err != nil {
		res.FailedStep = StepExtract
		return res, fmt.Errorf("%s: %w", StepExtract, err)
	}
	res.Extracted = data.Len()
	metrics.RecordRows(cfg.Dataset, "extracted", int64(res.Extracted))
	transition(StateExtracted, res.Extracted)

	// Transform.
	t0 = time.Now()
	raw, core, dropped, err := transform(cfg, data)
	metrics.RecordStep(cfg.Dataset, StepTransform, err, time.Since(t0))
	if err != nil {
		res.FailedStep = StepTransform
		return res, fmt.Errorf("%s: %w", StepTransform, err)
	}
	res.Transformed = core.Len()
	res.Duplicates = dropped
	metrics.RecordRows(cfg.Dataset, "duplicates", int64(dropped))
	transition(StateTransformed, res.Transformed)

	// Load.
	if err = p.store.EnsureSchemas(ctx, cfg.RawSchema, cfg.CoreSchema); err != nil {
		res.FailedStep = StepLoadRaw
		return res, fmt.Errorf("%s: %w", StepLoadRaw, err)
	}
	if cfg.WriteRaw {
		t0 = time.Now()
		wr, werr := p.store.Append(ctx, cfg.RawSchema, cfg.Dataset, raw, cfg.CreateIfMissing)
		metrics.RecordStep(cfg.Dataset, StepLoadRaw, werr, time.Since(t0))
		if werr != nil {
			res.FailedStep = StepLoadRaw
			err = fmt.Errorf("%s: %w", StepLoadRaw, werr)
			return res, err
		}
		res.RawRows = wr.Rows
		metrics.RecordRows(cfg.Dataset, "raw_appended", wr.Rows)
	}

	t0 = time.Now()
	wr, werr := p.store.Upsert(ctx, storage.UpsertRequest{
		Schema:          cfg.CoreSchema,
		Table:           cfg.Dataset,
		Keys:            cfg.Keys,
		Data:            core,
		CreateIfMissing: cfg.CreateIfMissing,
	})
	metrics.RecordStep(cfg.Dataset, StepLoadCore, werr, time.Since(t0))
	if werr != nil {
		res.FailedStep = StepLoadCore
		err = fmt.Errorf("%s: %w", StepLoadCore, werr)
		return res, err
	}
	res.CoreRows = wr.Rows
	metrics.RecordRows(cfg.Dataset, "core_upserted", wr.Rows)
	transition(StateLoaded, int(wr.Rows))

	transition(StateDone, res.Transformed)
	return res, nil
}

// transform returns the raw batch (headers normalized and aliased) and the
// fully transformed core batch.
func transform(cfg Config, data *table.Table) (raw, core *table.Table, dropped int, err error) {
	headed, err := HeaderChain(cfg).Apply(data)
	if err != nil {
		return nil, nil, 0, err
	}
	raw = headed.Clone()
	core, err = CoreChain(cfg, &dropped).Apply(headed)
	if err != nil {
		return nil, nil, 0, err
	}
	return raw, core, dropped, nil
}

// Preview applies the transform stage without touching storage.
func Preview(cfg Config, data *table.Table) (*table.Table, int, error) {
	if err := cfg.Validate(); err != nil {
		return nil, 0, err
	}
	_, core, dropped, err := transform(cfg.withDefaults(), data)
	return core, dropped, err
}
