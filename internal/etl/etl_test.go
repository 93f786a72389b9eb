package etl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvalverde/PAAA/internal/reader"
	"github.com/samvalverde/PAAA/internal/storage"
	"github.com/samvalverde/PAAA/internal/storage/sqlite"
	"github.com/samvalverde/PAAA/internal/table"
	"github.com/samvalverde/PAAA/internal/transformer/builtin"
)

// fakeReader returns a fresh copy of a fixed table per read.
type fakeReader struct {
	t     *table.Table
	err   error
	calls int
}

func (f *fakeReader) Read(context.Context, string) (*table.Table, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.t.Clone(), nil
}

// recordingStore counts calls and delegates nothing.
type recordingStore struct {
	ensured, appended, upserted int
	upsertErr                   error
}

func (s *recordingStore) EnsureSchemas(context.Context, ...string) error {
	s.ensured++
	return nil
}

func (s *recordingStore) Append(_ context.Context, _, _ string, data *table.Table, _ bool) (storage.WriteResult, error) {
	s.appended++
	return storage.WriteResult{Rows: int64(data.Len())}, nil
}

func (s *recordingStore) Upsert(_ context.Context, req storage.UpsertRequest) (storage.WriteResult, error) {
	s.upserted++
	if s.upsertErr != nil {
		return storage.WriteResult{}, s.upsertErr
	}
	return storage.WriteResult{Rows: int64(req.Data.Len())}, nil
}

func survey(tb testing.TB, rows ...[]any) *table.Table {
	tb.Helper()
	t, err := table.New("Correo Electrónico", "Nota", "Comentario")
	require.NoError(tb, err)
	for _, r := range rows {
		require.NoError(tb, t.AppendRow(r))
	}
	return t
}

func newEngine(tb testing.TB) *storage.Engine {
	tb.Helper()
	db, err := sqlite.NewDB(context.Background(), ":memory:")
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = db.Close() })
	return storage.NewEngine(db, storage.EngineConfig{BatchSize: 2, EvolveSchema: true})
}

func runConfig() Config {
	return Config{
		Source:          "egresados.xlsx",
		Dataset:         "egresados",
		Keys:            []string{"programa", "email"},
		Types:           map[string]string{"programa": "string", "email": "string", "version": "string"},
		Static:          map[string]any{"programa": "ATI", "version": "v1.0"},
		WriteRaw:        true,
		CreateIfMissing: true,
	}
}

func TestRunRawCoreScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEngine(t)

	first := survey(t,
		[]any{"ana@ucr.ac.cr", int64(7), " bien "},
		[]any{"luis@ucr.ac.cr", int64(8), ""},
		[]any{"eva@ucr.ac.cr", int64(9), "excelente"},
	)
	res, err := New(&fakeReader{t: first}, e).Run(ctx, runConfig())
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 3, res.Extracted)
	assert.Equal(t, 3, res.Transformed)
	assert.Equal(t, int64(3), res.RawRows)
	assert.Equal(t, int64(3), res.CoreRows)

	second := survey(t,
		[]any{"ana@ucr.ac.cr", int64(10), "bien"},
		[]any{"luis@ucr.ac.cr", int64(8), ""},
		[]any{"eva@ucr.ac.cr", int64(9), "excelente"},
	)
	_, err = New(&fakeReader{t: second}, e).Run(ctx, runConfig())
	require.NoError(t, err)

	rawN, err := e.Count(ctx, "raw", "egresados")
	require.NoError(t, err)
	assert.Equal(t, int64(6), rawN, "raw is append-only")

	core, err := e.LoadTable(ctx, "core", "egresados")
	require.NoError(t, err)
	require.Equal(t, 3, core.Len())
	for i := 0; i < core.Len(); i++ {
		rec := core.Record(i)
		assert.Equal(t, "ATI", rec["programa"])
		assert.Equal(t, "v1.0", rec["version"])
		switch rec["email"] {
		case "ana@ucr.ac.cr":
			assert.Equal(t, int64(10), rec["nota"])
			assert.Equal(t, "bien", rec["comentario"])
		case "luis@ucr.ac.cr":
			assert.Nil(t, rec["comentario"], "blank strings are stored as null")
		}
	}

	raw, err := e.LoadTable(ctx, "raw", "egresados")
	require.NoError(t, err)
	assert.False(t, raw.Has("version"), "raw copy is taken before static injection")
	assert.True(t, raw.Has("email"), "raw copy has resolved aliases")
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEngine(t)
	cfg := runConfig()
	cfg.WriteRaw = false

	src := &fakeReader{t: survey(t,
		[]any{"ana@ucr.ac.cr", int64(7), "x"},
		[]any{"luis@ucr.ac.cr", int64(8), "y"},
	)}
	for i := 0; i < 2; i++ {
		_, err := New(src, e).Run(ctx, cfg)
		require.NoError(t, err)
	}
	n, err := e.Count(ctx, "core", "egresados")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, err := e.TableExists(ctx, "raw", "egresados")
	require.NoError(t, err)
	assert.False(t, ok, "write_raw=false must not create the raw table")
}

func TestRunDeduplicatesKeepingFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEngine(t)

	src := &fakeReader{t: survey(t,
		[]any{"ana@ucr.ac.cr", int64(7), "primera"},
		[]any{"ana@ucr.ac.cr", int64(3), "segunda"},
		[]any{"luis@ucr.ac.cr", int64(8), nil},
	)}
	res, err := New(src, e).Run(ctx, runConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, int64(3), res.RawRows, "raw keeps duplicates")
	assert.Equal(t, int64(2), res.CoreRows)

	core, err := e.LoadTable(ctx, "core", "egresados")
	require.NoError(t, err)
	for i := 0; i < core.Len(); i++ {
		if core.Value(i, "email") == "ana@ucr.ac.cr" {
			assert.Equal(t, "primera", core.Value(i, "comentario"))
		}
	}
}

func TestRunValidationFailureWritesNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cases := []struct {
		name  string
		rows  [][]any
		check func(t *testing.T, err error)
	}{
		{
			name: "null_key",
			rows: [][]any{{"ana@ucr.ac.cr", int64(1), nil}, {nil, int64(2), nil}},
			check: func(t *testing.T, err error) {
				var nk *builtin.NullKeyError
				require.True(t, errors.As(err, &nk), "got %v", err)
				assert.Equal(t, "email", nk.Column)
				assert.Equal(t, []int{1}, nk.Indices)
			},
		},
		{
			name: "bad_email",
			rows: [][]any{{"ana@ucr.ac.cr", int64(1), nil}, {"no-es-correo", int64(2), nil}},
			check: func(t *testing.T, err error) {
				var ie *builtin.InvalidEmailError
				require.True(t, errors.As(err, &ie), "got %v", err)
				assert.Equal(t, []any{"no-es-correo"}, ie.Sample)
			},
		},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			store := &recordingStore{}
			res, err := New(&fakeReader{t: survey(t, c.rows...)}, store).Run(ctx, runConfig())
			require.Error(t, err)
			c.check(t, err)
			assert.Equal(t, StateFailed, res.State)
			assert.Equal(t, StepTransform, res.FailedStep)
			assert.Zero(t, store.ensured+store.appended+store.upserted, "storage must not be touched")
		})
	}
}

func TestRunMissingRequiredColumn(t *testing.T) {
	t.Parallel()

	cfg := runConfig()
	cfg.Required = []string{"programa", "email", "id_id_de_respuesta"}
	_, err := New(&fakeReader{t: survey(t, []any{"ana@ucr.ac.cr", int64(1), nil})}, &recordingStore{}).
		Run(context.Background(), cfg)

	var mc *builtin.MissingColumnsError
	require.True(t, errors.As(err, &mc), "got %v", err)
	assert.Equal(t, []string{"id_id_de_respuesta"}, mc.Missing)
	assert.Contains(t, mc.Present, "email")
}

func TestRunConfigErrorsBeforeIO(t *testing.T) {
	t.Parallel()

	src := &fakeReader{t: survey(t)}
	cfg := runConfig()
	cfg.Keys = nil
	res, err := New(src, &recordingStore{}).Run(context.Background(), cfg)
	assert.ErrorIs(t, err, storage.ErrNoKeyColumns)
	assert.Equal(t, StateFailed, res.State)

	cfg = runConfig()
	cfg.Dataset = ""
	_, err = New(src, &recordingStore{}).Run(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrNoDataset)
	assert.Zero(t, src.calls)
}

func TestRunExtractFailure(t *testing.T) {
	t.Parallel()

	store := &recordingStore{}
	src := &fakeReader{err: &reader.EmptySourceError{Source: "vacio.csv"}}
	res, err := New(src, store).Run(context.Background(), runConfig())

	var ese *reader.EmptySourceError
	require.True(t, errors.As(err, &ese))
	assert.Equal(t, StepExtract, res.FailedStep)
	assert.Zero(t, store.ensured)
}

// TestRunCoreFailureKeepsRaw documents the at-least-once audit trail: the
// raw append is already committed when the core upsert fails.
func TestRunCoreFailureKeepsRaw(t *testing.T) {
	t.Parallel()

	store := &recordingStore{upsertErr: errors.New("boom")}
	src := &fakeReader{t: survey(t, []any{"ana@ucr.ac.cr", int64(1), nil})}
	res, err := New(src, store).Run(context.Background(), runConfig())
	require.Error(t, err)
	assert.Equal(t, StepLoadCore, res.FailedStep)
	assert.Equal(t, 1, store.appended)
	assert.Equal(t, int64(1), res.RawRows)
}

func TestPreview(t *testing.T) {
	t.Parallel()

	core, dropped, err := Preview(runConfig(), survey(t,
		[]any{"ana@ucr.ac.cr", int64(1), nil},
		[]any{"ana@ucr.ac.cr", int64(2), nil},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, []string{"email", "nota", "comentario", "programa", "version"}, core.Names())
}
