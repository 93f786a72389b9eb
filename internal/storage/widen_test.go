package storage

import (
	"testing"

	"github.com/samvalverde/PAAA/internal/ddl"
	"github.com/samvalverde/PAAA/internal/table"
)

func TestCatalogType(t *testing.T) {
	t.Parallel()
	cases := map[string]table.Type{
		"bigint":                   table.Int,
		"INTEGER":                  table.Int,
		"double precision":         table.Float,
		"REAL":                     table.Float,
		"numeric":                  table.Float,
		"boolean":                  table.Bool,
		"bit":                      table.Bool,
		"timestamp with time zone": table.Time,
		"datetime2":                table.Time,
		"text":                     table.String,
		"nvarchar":                 table.String,
		"VARCHAR":                  table.String,
		"interval":                 table.String,
		"":                         table.String,
	}
	for in, want := range cases {
		if got := CatalogType(in); got != want {
			t.Errorf("CatalogType(%q)=%v want %v", in, got, want)
		}
	}
}

func TestWiden(t *testing.T) {
	t.Parallel()
	cases := []struct {
		cur, in table.Type
		want    table.Type
		need    bool
	}{
		{table.Int, table.Int, table.Int, false},
		{table.String, table.Int, table.String, false},
		{table.Float, table.Int, table.Float, false},
		{table.Int, table.Float, table.Float, true},
		{table.Int, table.String, table.String, true},
		{table.Float, table.String, table.String, true},
		{table.Time, table.String, table.String, true},
		{table.Bool, table.Int, table.String, true},
	}
	for _, c := range cases {
		got, need := Widen(c.cur, c.in)
		if got != c.want || need != c.need {
			t.Errorf("Widen(%v, %v)=(%v, %v) want (%v, %v)", c.cur, c.in, got, need, c.want, c.need)
		}
	}
}

func TestANSIAlterColumnType(t *testing.T) {
	t.Parallel()
	got := ANSI{}.AlterColumnType(`"raw"."t"`, ddl.ColumnDef{Name: "tel", SQLType: "TEXT", Nullable: true})
	if want := `ALTER TABLE "raw"."t" ALTER COLUMN "tel" TYPE TEXT USING CAST("tel" AS TEXT)`; got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}
