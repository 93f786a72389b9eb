package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samvalverde/PAAA/internal/ddl"
	"github.com/samvalverde/PAAA/internal/logging"
	"github.com/samvalverde/PAAA/internal/table"
)

// DefaultBatchSize bounds the rows per staging copy call.
const DefaultBatchSize = 1000

// EngineConfig tunes an Engine.
type EngineConfig struct {
	// BatchSize bounds the rows per staging copy call (0 = DefaultBatchSize).
	BatchSize int
	// EvolveSchema adds batch columns missing from an existing table. When
	// false such a batch is rejected.
	EvolveSchema bool
}

// Engine performs keyed upserts and appends against one backend.
type Engine struct {
	db  DB
	d   Dialect
	cfg EngineConfig
}

// NewEngine wraps an open DB.
func NewEngine(db DB, cfg EngineConfig) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Engine{db: db, d: db.Dialect(), cfg: cfg}
}

// Open opens the backend named by cfg.Kind and wraps it in an Engine.
func Open(ctx context.Context, cfg Config, ecfg EngineConfig) (*Engine, error) {
	db, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewEngine(db, ecfg), nil
}

// Close closes the underlying DB.
func (e *Engine) Close() error { return e.db.Close() }

// Dialect returns the backend dialect.
func (e *Engine) Dialect() Dialect { return e.d }

// UpsertRequest describes one keyed merge.
type UpsertRequest struct {
	Schema string
	Table  string
	// Keys is the ordered, non-empty key column set.
	Keys []string
	Data *table.Table
	// CreateIfMissing creates an absent target from the batch layout;
	// otherwise an absent target fails with *TableNotFoundError.
	CreateIfMissing bool
}

// WriteResult reports what a write did.
type WriteResult struct {
	Rows         int64
	Created      bool
	AddedColumns []string
	// WidenedColumns had their type broadened to hold the batch values.
	WidenedColumns []string
	// Index is the unique index name; empty for appends.
	Index   string
	Staging string
	Elapsed time.Duration
}

// EnsureSchemas creates the given schemas when missing, in one transaction.
func (e *Engine) EnsureSchemas(ctx context.Context, schemas ...string) (err error) {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	for _, s := range schemas {
		stmt := e.d.CreateSchema(s)
		if stmt == "" {
			continue
		}
		if err = tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("storage: create schema %s: %w", s, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

// Upsert merges req.Data into schema.table by key, inside one transaction:
//
//  1. create the table when absent (or fail with *TableNotFoundError);
//  2. add batch columns the table lacks;
//  3. ensure the unique index over exactly req.Keys;
//  4. stage the batch into a per-call temporary table;
//  5. merge: insert new keys, overwrite non-key columns on conflict
//     (or leave the row untouched when the batch has only key columns);
//  6. drop the staging table.
//
// On any failure the transaction is rolled back, which also discards the
// staging table; a best-effort drop follows for backends that keep it.
func (e *Engine) Upsert(ctx context.Context, req UpsertRequest) (WriteResult, error) {
	if len(req.Keys) == 0 {
		return WriteResult{}, ErrNoKeyColumns
	}
	return e.write(ctx, Name{Schema: req.Schema, Table: req.Table}, req.Keys, req.Data, req.CreateIfMissing)
}

// Append inserts every row of data into schema.table without any key
// handling. The table is created or evolved like Upsert does.
func (e *Engine) Append(ctx context.Context, schema, name string, data *table.Table, createIfMissing bool) (WriteResult, error) {
	return e.write(ctx, Name{Schema: schema, Table: name}, nil, data, createIfMissing)
}

func (e *Engine) write(ctx context.Context, target Name, keys []string, data *table.Table, create bool) (res WriteResult, err error) {
	start := time.Now()
	if data == nil || data.Width() == 0 {
		return res, fmt.Errorf("storage: %s: batch has no columns", target)
	}
	batch := data.Clone()
	batch.InferTypes()
	for _, k := range keys {
		if !batch.Has(k) {
			return res, fmt.Errorf("storage: %s: key column %q not in batch", target, k)
		}
	}

	tfqn := e.d.Table(target)
	stage := e.d.Staging(StagingName(target.Table))
	sfqn := e.d.Table(stage)
	res.Staging = stage.Table
	log := logging.With().Str("table", target.String()).Str("backend", e.d.Name()).Logger()

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("storage: begin: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Warn().Err(rbErr).Msg("upsert: rollback failed")
		}
		e.dropStaging(context.WithoutCancel(ctx), sfqn)
	}()

	catalog, err := e.columns(ctx, tx, target)
	if err != nil {
		return res, err
	}

	defs := ddl.FromTable(batch, keys, e.d)
	if len(catalog) == 0 {
		if !create {
			return res, &TableNotFoundError{Schema: target.Schema, Table: target.Table}
		}
		stmt, cerr := e.d.CreateTable(tfqn, defs, false)
		if cerr != nil {
			return res, cerr
		}
		if err = tx.Exec(ctx, stmt); err != nil {
			return res, fmt.Errorf("storage: create %s: %w", target, err)
		}
		for _, c := range defs {
			catalog[c.Name] = c.SQLType
		}
		res.Created = true
		log.Info().Int("columns", len(defs)).Msg("upsert: table created")
	} else {
		var missing []ddl.ColumnDef
		for _, c := range defs {
			if _, ok := catalog[c.Name]; !ok {
				c.Nullable = true
				missing = append(missing, c)
			}
		}
		if len(missing) > 0 && !e.cfg.EvolveSchema {
			names := make([]string, len(missing))
			for i, c := range missing {
				names[i] = c.Name
			}
			return res, fmt.Errorf("storage: %s lacks columns %v and schema evolution is off", target, names)
		}
		for _, c := range missing {
			if err = tx.Exec(ctx, e.d.AddColumn(tfqn, c)); err != nil {
				return res, fmt.Errorf("storage: add column %s.%s: %w", target, c.Name, err)
			}
			catalog[c.Name] = c.SQLType
			res.AddedColumns = append(res.AddedColumns, c.Name)
		}
		if len(missing) > 0 {
			log.Info().Strs("columns", res.AddedColumns).Msg("upsert: schema evolved")
		}
		if res.WidenedColumns, err = e.widenColumns(ctx, tx, target, batch, keys, catalog); err != nil {
			return res, err
		}
		if len(res.WidenedColumns) > 0 {
			log.Info().Strs("columns", res.WidenedColumns).Msg("upsert: column types widened")
		}
	}

	if len(keys) > 0 {
		res.Index = IndexName(target.Schema, target.Table, keys)
		if err = tx.Exec(ctx, e.d.CreateUniqueIndex(res.Index, target, keys)); err != nil {
			return res, fmt.Errorf("storage: ensure index %s: %w", res.Index, err)
		}
	}

	stageDefs := ddl.FromTable(batch, nil, e.d)
	stmt, err := e.d.CreateTable(sfqn, stageDefs, true)
	if err != nil {
		return res, err
	}
	if err = tx.Exec(ctx, stmt); err != nil {
		return res, fmt.Errorf("storage: create staging %s: %w", stage.Table, err)
	}
	log.Debug().Str("index", res.Index).Str("staging", stage.Table).Msg("upsert: staging ready")

	cols := batch.Names()
	n, err := e.stageRows(ctx, tx, stage, cols, batch.Rows(cols))
	if err != nil {
		return res, fmt.Errorf("storage: stage %s: %w", target, err)
	}
	res.Rows = n

	casts := make([]string, len(cols))
	for i, c := range cols {
		casts[i] = castType(catalog[c])
	}
	merge := e.d.Write(WriteSpec{Target: tfqn, Stage: sfqn, Columns: cols, Keys: keys, Casts: casts})
	log.Debug().Int("keys", len(keys)).Int("columns", len(cols)).Msg("upsert: merging")
	if err = tx.Exec(ctx, merge); err != nil {
		return res, fmt.Errorf("storage: merge into %s: %w", target, err)
	}
	if err = tx.Exec(ctx, e.d.DropTable(sfqn)); err != nil {
		return res, fmt.Errorf("storage: drop staging %s: %w", stage.Table, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("storage: commit: %w", err)
	}

	res.Elapsed = time.Since(start)
	log.Info().Int64("rows", res.Rows).Bool("keyed", len(keys) > 0).Dur("elapsed", res.Elapsed).Msg("upsert: merged")
	return res, nil
}

// widenColumns alters existing columns whose catalog type cannot hold the
// batch values, e.g. text arriving for a BIGINT column. Columns that are null
// throughout the batch are left alone.
func (e *Engine) widenColumns(ctx context.Context, tx Tx, target Name, batch *table.Table, keys []string, catalog map[string]string) ([]string, error) {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	var widened []string
	for _, c := range batch.Columns() {
		cur, ok := catalog[c.Name]
		if !ok || c.NullCount() == len(c.Values) {
			continue
		}
		to, need := Widen(CatalogType(cur), c.Type)
		if !need {
			continue
		}
		def := ddl.ColumnDef{Name: c.Name, SQLType: e.d.ColumnType(to, isKey[c.Name]), Nullable: !isKey[c.Name]}
		stmt := e.d.AlterColumnType(e.d.Table(target), def)
		if stmt == "" {
			continue
		}
		if !e.cfg.EvolveSchema {
			return widened, fmt.Errorf("storage: %s.%s is %s but the batch holds %s values and schema evolution is off", target, c.Name, cur, c.Type)
		}
		if err := tx.Exec(ctx, stmt); err != nil {
			return widened, fmt.Errorf("storage: widen %s.%s to %s: %w", target, c.Name, def.SQLType, err)
		}
		catalog[c.Name] = def.SQLType
		widened = append(widened, c.Name)
	}
	return widened, nil
}

// CatalogType maps a catalog column type name onto the table type family it
// holds. Unknown names are String.
func CatalogType(sqlType string) table.Type {
	u := strings.ToUpper(strings.TrimSpace(sqlType))
	switch {
	case strings.Contains(u, "INTERVAL") || strings.Contains(u, "POINT"):
		return table.String
	case strings.Contains(u, "INT"):
		return table.Int
	case strings.Contains(u, "DOUBLE"), strings.Contains(u, "REAL"), strings.Contains(u, "FLOAT"),
		strings.Contains(u, "NUMERIC"), strings.Contains(u, "DECIMAL"):
		return table.Float
	case strings.Contains(u, "BOOL"), u == "BIT":
		return table.Bool
	case strings.Contains(u, "TIME"), strings.Contains(u, "DATE"):
		return table.Time
	default:
		return table.String
	}
}

// Widen returns the type a column of type cur must take to hold values of
// type in, and whether that differs from cur. Int widens to Float; any other
// mismatch widens to String.
func Widen(cur, in table.Type) (table.Type, bool) {
	switch {
	case cur == in, cur == table.String:
		return cur, false
	case cur == table.Float && in == table.Int:
		return cur, false
	case cur == table.Int && in == table.Float:
		return table.Float, true
	default:
		return table.String, true
	}
}

// stageRows feeds rows through LoadBatches into the staging table.
func (e *Engine) stageRows(ctx context.Context, tx Tx, stage Name, cols []string, rows [][]any) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan []any, e.cfg.BatchSize)
	go func() {
		defer close(in)
		for _, r := range rows {
			select {
			case in <- rowValues(r):
			case <-ctx.Done():
				return
			}
		}
	}()
	return LoadBatches(ctx, cols, in, e.cfg.BatchSize, func(ctx context.Context, columns []string, batch [][]any) (int64, error) {
		return tx.CopyFrom(ctx, stage, columns, batch)
	})
}

func (e *Engine) dropStaging(ctx context.Context, sfqn string) {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return
	}
	if err := tx.Exec(ctx, e.d.DropTable(sfqn)); err != nil {
		_ = tx.Rollback(ctx)
		return
	}
	_ = tx.Commit(ctx)
}

// columns returns the catalog column types of n; empty when n is absent.
func (e *Engine) columns(ctx context.Context, tx Tx, n Name) (map[string]string, error) {
	q, args := e.d.ColumnsQuery(n)
	_, rows, err := tx.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: inspect %s: %w", n, err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		if len(r) < 2 {
			continue
		}
		out[table.Format(r[0])] = table.Format(r[1])
	}
	return out, nil
}

// castType returns typ when it is usable in CAST(... AS typ).
func castType(typ string) string {
	u := strings.ToUpper(strings.TrimSpace(typ))
	if u == "" || u == "USER-DEFINED" || u == "ARRAY" {
		return ""
	}
	return typ
}

// TableExists reports whether schema.name exists.
func (e *Engine) TableExists(ctx context.Context, schema, name string) (bool, error) {
	cols, err := e.readOnly(ctx, func(tx Tx) (map[string]string, error) {
		return e.columns(ctx, tx, Name{Schema: schema, Table: name})
	})
	return len(cols) > 0, err
}

// LoadTable reads schema.name fully into a table with inferred column types.
func (e *Engine) LoadTable(ctx context.Context, schema, name string) (*table.Table, error) {
	n := Name{Schema: schema, Table: name}
	var out *table.Table
	_, err := e.readOnly(ctx, func(tx Tx) (map[string]string, error) {
		cat, err := e.columns(ctx, tx, n)
		if err != nil {
			return nil, err
		}
		if len(cat) == 0 {
			return nil, &TableNotFoundError{Schema: schema, Table: name}
		}
		cols, rows, err := tx.Query(ctx, "SELECT * FROM "+e.d.Table(n))
		if err != nil {
			return nil, fmt.Errorf("storage: read %s: %w", n, err)
		}
		t, err := table.New(cols...)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if err := t.AppendRow(r); err != nil {
				return nil, err
			}
		}
		t.InferTypes()
		out = t
		return cat, nil
	})
	return out, err
}

// Count returns the number of rows in schema.name.
func (e *Engine) Count(ctx context.Context, schema, name string) (int64, error) {
	n := Name{Schema: schema, Table: name}
	var count int64
	_, err := e.readOnly(ctx, func(tx Tx) (map[string]string, error) {
		_, rows, err := tx.Query(ctx, "SELECT COUNT(*) FROM "+e.d.Table(n))
		if err != nil {
			return nil, fmt.Errorf("storage: count %s: %w", n, err)
		}
		if len(rows) != 1 || len(rows[0]) != 1 {
			return nil, errors.New("storage: count returned no rows")
		}
		v, ok := table.Convert(rows[0][0], table.Int).(int64)
		if !ok {
			return nil, fmt.Errorf("storage: count returned %T", rows[0][0])
		}
		count = v
		return nil, nil
	})
	return count, err
}

// readOnly runs fn in a transaction that is always rolled back.
func (e *Engine) readOnly(ctx context.Context, fn func(tx Tx) (map[string]string, error)) (map[string]string, error) {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	return fn(tx)
}
