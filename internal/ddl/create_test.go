package ddl

import (
	"strings"
	"testing"

	"github.com/samvalverde/PAAA/internal/table"
)

func dq(s string) string { return `"` + s + `"` }

// TestBuildCreateTableSQL verifies the rendered statements and the errors for
// invalid inputs.
func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		def         TableDef
		quote       Quoter
		wantSQL     string
		errContains string
	}{
		{
			name:        "empty FQN returns error",
			def:         TableDef{Columns: []ColumnDef{{Name: "id", SQLType: "INT"}}},
			errContains: "table FQN must not be empty",
		},
		{
			name:        "no columns returns error",
			def:         TableDef{FQN: "core.t"},
			errContains: "at least one column is required",
		},
		{
			name:        "column with empty name returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{SQLType: "INT"}}},
			errContains: "column with empty name",
		},
		{
			name:        "column with empty type returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id"}}},
			errContains: "missing SQLType",
		},
		{
			name:    "unquoted nullable column",
			def:     TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id", SQLType: "INT", Nullable: true}}},
			wantSQL: "CREATE TABLE t (\n  id INT\n)",
		},
		{
			name: "quoted keys, default and primary key",
			def: TableDef{FQN: `"core"."egresados"`, Columns: []ColumnDef{
				{Name: "programa", SQLType: "TEXT", PrimaryKey: true},
				{Name: "email", SQLType: "TEXT", PrimaryKey: true},
				{Name: "version", SQLType: "TEXT", Nullable: true, Default: "'v1.0'"},
			}},
			quote: dq,
			wantSQL: "CREATE TABLE \"core\".\"egresados\" (\n" +
				"  \"programa\" TEXT NOT NULL,\n" +
				"  \"email\" TEXT NOT NULL,\n" +
				"  \"version\" TEXT DEFAULT 'v1.0',\n" +
				"  PRIMARY KEY (\"programa\", \"email\")\n)",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := BuildCreateTableSQL(tc.def, tc.quote)
			if tc.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tc.errContains) {
					t.Fatalf("err=%v want containing %q", err, tc.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.wantSQL {
				t.Fatalf("SQL mismatch\n got: %q\nwant: %q", got, tc.wantSQL)
			}
		})
	}
}

func TestBuildCreateTempTableSQL(t *testing.T) {
	t.Parallel()
	got, err := BuildCreateTempTableSQL("CREATE TEMP TABLE", TableDef{
		FQN:     `"_tmp_x"`,
		Columns: []ColumnDef{{Name: "a", SQLType: "TEXT", Nullable: true}},
	}, dq)
	if err != nil {
		t.Fatal(err)
	}
	if want := "CREATE TEMP TABLE \"_tmp_x\" (\n  \"a\" TEXT\n)"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

type upperMapper struct{}

func (upperMapper) ColumnType(t table.Type, key bool) string {
	if key {
		return "KEY_" + strings.ToUpper(t.String())
	}
	return strings.ToUpper(t.String())
}

func TestFromTable(t *testing.T) {
	t.Parallel()

	tb := table.MustNew("programa", "edad")
	_ = tb.AppendRow([]any{"ATI", int64(30)})
	tb.InferTypes()

	got := FromTable(tb, []string{"programa"}, upperMapper{})
	want := []ColumnDef{
		{Name: "programa", SQLType: "KEY_STRING"},
		{Name: "edad", SQLType: "INT", Nullable: true},
	}
	if len(got) != len(want) {
		t.Fatalf("len=%d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("col %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}
