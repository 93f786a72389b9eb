package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvalverde/PAAA/internal/ddl"
	"github.com/samvalverde/PAAA/internal/storage"
	"github.com/samvalverde/PAAA/internal/table"
)

// newEngine returns an engine over a private in-memory database. BatchSize 2
// forces multi-batch staging.
func newEngine(tb testing.TB) *storage.Engine {
	tb.Helper()
	db, err := NewDB(context.Background(), ":memory:")
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = db.Close() })
	return storage.NewEngine(db, storage.EngineConfig{BatchSize: 2, EvolveSchema: true})
}

func batch(tb testing.TB, names []string, rows ...[]any) *table.Table {
	tb.Helper()
	t, err := table.New(names...)
	require.NoError(tb, err)
	for _, r := range rows {
		require.NoError(tb, t.AppendRow(r))
	}
	return t
}

func rowsByKey(tb testing.TB, e *storage.Engine, schema, name, key string) map[any]map[string]any {
	tb.Helper()
	t, err := e.LoadTable(context.Background(), schema, name)
	require.NoError(tb, err)
	out := make(map[any]map[string]any, t.Len())
	for i := 0; i < t.Len(); i++ {
		rec := t.Record(i)
		out[rec[key]] = rec
	}
	return out
}

func TestUpsertRawCoreScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.EnsureSchemas(ctx, "raw", "core"))

	keys := []string{"programa", "email"}
	first := batch(t, []string{"programa", "email", "nota"},
		[]any{"ATI", "a@x.co", int64(7)},
		[]any{"ATI", "b@x.co", int64(8)},
		[]any{"ATI", "c@x.co", int64(9)},
	)
	run := func(b *table.Table) {
		_, err := e.Append(ctx, "raw", "egresados", b, true)
		require.NoError(t, err)
		_, err = e.Upsert(ctx, storage.UpsertRequest{Schema: "core", Table: "egresados", Keys: keys, Data: b, CreateIfMissing: true})
		require.NoError(t, err)
	}

	run(first)
	count := func(schema string) int64 {
		n, err := e.Count(ctx, schema, "egresados")
		require.NoError(t, err)
		return n
	}
	assert.EqualValues(t, 3, count("raw"))
	assert.EqualValues(t, 3, count("core"))

	second := first.Clone()
	c, _ := second.Column("nota")
	c.Values[1] = int64(10)
	run(second)

	assert.EqualValues(t, 6, count("raw"))
	assert.EqualValues(t, 3, count("core"))
	got := rowsByKey(t, e, "core", "egresados", "email")
	assert.Equal(t, int64(10), got["b@x.co"]["nota"])
	assert.Equal(t, int64(7), got["a@x.co"]["nota"])
}

func TestUpsertMergeAndInsert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEngine(t)

	up := func(k int64, a string) storage.WriteResult {
		res, err := e.Upsert(ctx, storage.UpsertRequest{
			Schema: "core", Table: "t", Keys: []string{"k"},
			Data: batch(t, []string{"k", "a"}, []any{k, a}), CreateIfMissing: true,
		})
		require.NoError(t, err)
		return res
	}

	res := up(1, "x")
	assert.True(t, res.Created)
	assert.Equal(t, "ux_core_t_k", res.Index)

	up(1, "y")
	got := rowsByKey(t, e, "core", "t", "k")
	require.Len(t, got, 1)
	assert.Equal(t, "y", got[int64(1)]["a"])

	up(2, "z")
	got = rowsByKey(t, e, "core", "t", "k")
	require.Len(t, got, 2)
	assert.Equal(t, "y", got[int64(1)]["a"])
	assert.Equal(t, "z", got[int64(2)]["a"])
}

func TestUpsertIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEngine(t)

	b := batch(t, []string{"k", "a", "score"},
		[]any{"1", "x", 1.5}, []any{"2", "y", nil}, []any{"3", "z", 3.0})
	req := storage.UpsertRequest{Schema: "core", Table: "idem", Keys: []string{"k"}, Data: b, CreateIfMissing: true}

	_, err := e.Upsert(ctx, req)
	require.NoError(t, err)
	once := rowsByKey(t, e, "core", "idem", "k")

	_, err = e.Upsert(ctx, req)
	require.NoError(t, err)
	twice := rowsByKey(t, e, "core", "idem", "k")

	assert.Equal(t, once, twice)
	assert.Len(t, twice, 3)
}

func TestUpsertKeyOnlyBatchLeavesRowsUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEngine(t)

	_, err := e.Upsert(ctx, storage.UpsertRequest{
		Schema: "core", Table: "ko", Keys: []string{"k"},
		Data: batch(t, []string{"k", "a"}, []any{"1", "keep"}), CreateIfMissing: true,
	})
	require.NoError(t, err)

	_, err = e.Upsert(ctx, storage.UpsertRequest{
		Schema: "core", Table: "ko", Keys: []string{"k"},
		Data: batch(t, []string{"k"}, []any{"1"}, []any{"2"}),
	})
	require.NoError(t, err)

	got := rowsByKey(t, e, "core", "ko", "k")
	require.Len(t, got, 2)
	assert.Equal(t, "keep", got["1"]["a"])
	assert.Nil(t, got["2"]["a"])
}

func TestUpsertPolicies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEngine(t)
	b := batch(t, []string{"k"}, []any{"1"})

	_, err := e.Upsert(ctx, storage.UpsertRequest{Schema: "core", Table: "p", Data: b, CreateIfMissing: true})
	assert.ErrorIs(t, err, storage.ErrNoKeyColumns)

	_, err = e.Upsert(ctx, storage.UpsertRequest{Schema: "core", Table: "absent", Keys: []string{"k"}, Data: b})
	var nf *storage.TableNotFoundError
	require.True(t, errors.As(err, &nf), "err=%v", err)
	assert.Equal(t, "absent", nf.Table)

	_, err = e.Upsert(ctx, storage.UpsertRequest{Schema: "core", Table: "p", Keys: []string{"missing"}, Data: b, CreateIfMissing: true})
	assert.Error(t, err)
}

func TestUpsertEvolvesSchema(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEngine(t)

	_, err := e.Upsert(ctx, storage.UpsertRequest{
		Schema: "core", Table: "ev", Keys: []string{"k"},
		Data: batch(t, []string{"k", "a"}, []any{"1", "x"}), CreateIfMissing: true,
	})
	require.NoError(t, err)

	res, err := e.Upsert(ctx, storage.UpsertRequest{
		Schema: "core", Table: "ev", Keys: []string{"k"},
		Data: batch(t, []string{"k", "b"}, []any{"2", "new"}),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.AddedColumns)

	got := rowsByKey(t, e, "core", "ev", "k")
	assert.Equal(t, "x", got["1"]["a"])
	assert.Nil(t, got["1"]["b"])
	assert.Equal(t, "new", got["2"]["b"])
}

func TestWriteKeepsValuesWhenColumnTypeChanges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEngine(t)

	_, err := e.Append(ctx, "raw", "tel", batch(t, []string{"tel"}, []any{int64(88887777)}), true)
	require.NoError(t, err)
	_, err = e.Append(ctx, "raw", "tel", batch(t, []string{"tel"}, []any{"8888-7777"}), true)
	require.NoError(t, err)

	got, err := e.LoadTable(ctx, "raw", "tel")
	require.NoError(t, err)
	col, ok := got.Column("tel")
	require.True(t, ok)
	assert.Equal(t, []any{"88887777", "8888-7777"}, col.Values)

	keys := []string{"k"}
	for _, b := range []*table.Table{
		batch(t, []string{"k", "nota"}, []any{"1", int64(7)}),
		batch(t, []string{"k", "nota"}, []any{"1", "siete"}),
		batch(t, []string{"k", "nota"}, []any{"2", 7.5}),
	} {
		_, err := e.Upsert(ctx, storage.UpsertRequest{Schema: "core", Table: "notas", Keys: keys, Data: b, CreateIfMissing: true})
		require.NoError(t, err)
	}
	rows := rowsByKey(t, e, "core", "notas", "k")
	assert.Equal(t, "siete", rows["1"]["nota"])
	assert.Equal(t, "7.5", rows["2"]["nota"])
}

func TestWriteRendersNoCasts(t *testing.T) {
	t.Parallel()
	got := Dialect{}.Write(storage.WriteSpec{
		Target: `"core__t"`, Stage: `"s"`, Columns: []string{"k", "a"}, Keys: []string{"k"},
		Casts: []string{"TEXT", "INTEGER"},
	})
	assert.NotContains(t, got, "CAST")
	assert.Contains(t, got, `SELECT "k", "a" FROM "s"`)
	assert.Empty(t, Dialect{}.AlterColumnType(`"core__t"`, ddl.ColumnDef{Name: "a", SQLType: "TEXT"}))
}

func TestUpsertFailureRollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEngine(t)

	// A null key violates NOT NULL at merge time, after the table, index and
	// staging table were created inside the transaction.
	_, err := e.Upsert(ctx, storage.UpsertRequest{
		Schema: "core", Table: "rb", Keys: []string{"k"},
		Data: batch(t, []string{"k", "a"}, []any{"1", "x"}, []any{nil, "y"}), CreateIfMissing: true,
	})
	require.Error(t, err)

	ok, err := e.TableExists(ctx, "core", "rb")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStagingTableIsDropped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, err := NewDB(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	e := storage.NewEngine(db, storage.EngineConfig{})

	res, err := e.Upsert(ctx, storage.UpsertRequest{
		Schema: "core", Table: "st", Keys: []string{"k"},
		Data: batch(t, []string{"k"}, []any{"1"}), CreateIfMissing: true,
	})
	require.NoError(t, err)
	assert.Contains(t, res.Staging, "_tmp_st_")

	var n int
	require.NoError(t, db.SQL().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_temp_master WHERE name = ?", res.Staging).Scan(&n))
	assert.Zero(t, n)
}

func TestLoadTableMissing(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	_, err := e.LoadTable(context.Background(), "core", "nope")
	var nf *storage.TableNotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestRegistered(t *testing.T) {
	t.Parallel()
	assert.Contains(t, storage.ListKinds(), Kind)
}
