package builtin

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvalverde/PAAA/internal/table"
)

func mustTable(t *testing.T, names []string, rows ...[]any) *table.Table {
	t.Helper()
	tb, err := table.New(names...)
	require.NoError(t, err)
	for _, r := range rows {
		require.NoError(t, tb.AppendRow(r))
	}
	return tb
}

func TestResolveAliases(t *testing.T) {
	t.Parallel()

	tb := mustTable(t, []string{"correo_electronico", "carne", "nombre"}, []any{"a@b.co", "1", "Ana"})
	out, err := ResolveAliases{Aliases: DefaultAliases()}.Apply(tb)
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "id_estudiante", "nombre"}, out.Names())
}

func TestResolveAliasesKeepsCanonical(t *testing.T) {
	t.Parallel()

	tb := mustTable(t, []string{"email", "correo"}, []any{"a@b.co", "x@y.co"})
	out, err := ResolveAliases{Aliases: DefaultAliases()}.Apply(tb)
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "correo"}, out.Names())
}

func TestResolveAliasesConflict(t *testing.T) {
	t.Parallel()

	tb := mustTable(t, []string{"mail", "correo"}, []any{"a@b.co", "x@y.co"})
	_, err := ResolveAliases{Aliases: DefaultAliases()}.Apply(tb)

	var ce *AliasConflictError
	require.True(t, errors.As(err, &ce), "err=%v", err)
	assert.Equal(t, "email", ce.Canonical)
	assert.Equal(t, []string{"mail", "correo"}, ce.Sources)

	tb = mustTable(t, []string{"mail", "correo"}, []any{"a@b.co", "x@y.co"})
	out, err := ResolveAliases{Aliases: DefaultAliases(), OnConflict: ConflictFirst}.Apply(tb)
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "correo"}, out.Names())
}

func TestDefaultAliasesIsACopy(t *testing.T) {
	t.Parallel()

	a := DefaultAliases()
	a["email"][0] = "changed"
	delete(a, "periodo")
	b := DefaultAliases()
	assert.Equal(t, "email", b["email"][0])
	assert.Contains(t, b, "periodo")
}

func TestStaticAddsOnlyAbsent(t *testing.T) {
	t.Parallel()

	tb := mustTable(t, []string{"email", "programa"}, []any{"a@b.co", "FROM_FILE"}, []any{"c@d.co", "FROM_FILE"})
	out, err := Static{Values: map[string]any{"programa": "ATI", "version": "v2"}}.Apply(tb)
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "programa", "version"}, out.Names())
	assert.Equal(t, "FROM_FILE", out.Value(1, "programa"))
	assert.Equal(t, "v2", out.Value(1, "version"))
}

func TestRequire(t *testing.T) {
	t.Parallel()

	tb := mustTable(t, []string{"email", "nombre"})
	_, err := Require{Columns: []string{"programa", "email", "version"}}.Apply(tb)

	var me *MissingColumnsError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, []string{"programa", "version"}, me.Missing)
	assert.Equal(t, []string{"email", "nombre"}, me.Present)

	_, err = Require{Columns: []string{"email"}}.Apply(tb)
	assert.NoError(t, err)
}

func TestCoerceIsBestEffort(t *testing.T) {
	t.Parallel()

	tb := mustTable(t,
		[]string{"id", "fecha", "nota", "edad"},
		[]any{int64(10), "2024-03-01", "9", "veinte"},
		[]any{" 11 ", "no es fecha", "8.5", "30"},
		[]any{nil, nil, nil, nil},
	)
	out, err := Coerce{Types: map[string]string{
		"id":      "string",
		"fecha":   "datetime64[ns]",
		"nota":    "float64",
		"edad":    "int64",
		"ausente": "string",
	}}.Apply(tb)
	require.NoError(t, err)

	assert.Equal(t, []any{"10", "11", nil}, colValues(t, out, "id"))
	assert.Equal(t, []any{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), nil, nil}, colValues(t, out, "fecha"))
	assert.Equal(t, []any{9.0, 8.5, nil}, colValues(t, out, "nota"))
	// "veinte" does not convert, so the column is left untouched.
	assert.Equal(t, []any{"veinte", "30", nil}, colValues(t, out, "edad"))
	assert.False(t, out.Has("ausente"))
}

func TestTrimStrings(t *testing.T) {
	t.Parallel()

	tb := mustTable(t, []string{"a", "b"}, []any{"  x ", int64(1)}, []any{"   ", nil})
	out, err := TrimStrings{EmptyAsNull: true}.Apply(tb)
	require.NoError(t, err)
	assert.Equal(t, []any{"x", nil}, colValues(t, out, "a"))
	assert.Equal(t, []any{int64(1), nil}, colValues(t, out, "b"))
}

func TestKeysNotNull(t *testing.T) {
	t.Parallel()

	rows := [][]any{}
	for i := 0; i < 8; i++ {
		var email any = "x@y.co"
		if i%2 == 1 {
			email = nil
		}
		rows = append(rows, []any{"ATI", email})
	}
	tb := mustTable(t, []string{"programa", "email"}, rows...)
	_, err := KeysNotNull{Keys: []string{"programa", "email"}}.Apply(tb)

	var ne *NullKeyError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "email", ne.Column)
	assert.Equal(t, []int{1, 3, 5, 7}, ne.Indices)
	assert.Equal(t, 4, ne.Count)
}

func TestKeysNotNullSampleIsBounded(t *testing.T) {
	t.Parallel()

	tb := mustTable(t, []string{"k"})
	for i := 0; i < 9; i++ {
		require.NoError(t, tb.AppendRow([]any{nil}))
	}
	_, err := KeysNotNull{Keys: []string{"k"}}.Apply(tb)

	var ne *NullKeyError
	require.True(t, errors.As(err, &ne))
	assert.Len(t, ne.Indices, 5)
	assert.Equal(t, 9, ne.Count)
}

func TestEmails(t *testing.T) {
	t.Parallel()

	ok := mustTable(t, []string{"email"}, []any{"ana@ucr.ac.cr"}, []any{"x.y+z@dominio.com"})
	_, err := Emails{}.Apply(ok)
	require.NoError(t, err)

	bad := mustTable(t, []string{"email"}, []any{"ana@ucr.ac.cr"}, []any{"sin-arroba"}, []any{nil}, []any{"a b@c.d"}, []any{"a@b"})
	_, err = Emails{}.Apply(bad)
	var ie *InvalidEmailError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 4, ie.Count)
	assert.Equal(t, []any{"sin-arroba", nil, "a b@c.d", "a@b"}, ie.Sample)

	absent := mustTable(t, []string{"token"}, []any{"zzz"})
	_, err = Emails{}.Apply(absent)
	assert.NoError(t, err)
}

func TestDeDupKeepsFirst(t *testing.T) {
	t.Parallel()

	tb := mustTable(t, []string{"k", "v"}, []any{int64(1), "a"}, []any{int64(1), "b"})
	var dropped int
	out, err := DeDup{Keys: []string{"k"}, Dropped: &dropped}.Apply(tb)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, map[string]any{"k": int64(1), "v": "a"}, out.Record(0))
	assert.Equal(t, 1, dropped)
}

func TestDeDupPolicies(t *testing.T) {
	t.Parallel()

	build := func() *table.Table {
		return mustTable(t, []string{"k", "a", "b"},
			[]any{"x", "1", nil},
			[]any{"y", "2", "2"},
			[]any{"x", "3", "3"},
			[]any{"x", "4", nil},
		)
	}

	cases := []struct {
		policy string
		want   []any
	}{
		{"", []any{"1", "2"}},
		{"keep-first", []any{"1", "2"}},
		{"keep-last", []any{"2", "4"}},
		{"most-complete", []any{"2", "3"}},
	}
	for _, c := range cases {
		out, err := DeDup{Keys: []string{"k"}, Policy: c.policy}.Apply(build())
		require.NoError(t, err)
		if got := colValues(t, out, "a"); !reflect.DeepEqual(got, c.want) {
			t.Errorf("policy %q: a=%v want %v", c.policy, got, c.want)
		}
	}
}

func TestDeDupCompositeKey(t *testing.T) {
	t.Parallel()

	tb := mustTable(t, []string{"programa", "email"},
		[]any{"ATI", "a@b.co"},
		[]any{"DOC", "a@b.co"},
		[]any{"ATI", "a@b.co"},
	)
	out, err := DeDup{Keys: []string{"programa", "email"}}.Apply(tb)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len())
}

func colValues(t *testing.T, tb *table.Table, name string) []any {
	t.Helper()
	c, ok := tb.Column(name)
	require.True(t, ok, "missing column %q", name)
	return c.Values
}
