package table

import (
	"reflect"
	"testing"
	"time"
)

// TestFromStringsInfersTypes verifies per-column inference and that empty
// cells become null rather than zero values.
func TestFromStringsInfersTypes(t *testing.T) {
	t.Parallel()

	tb, err := FromStrings(
		[]string{"id", "score", "ok", "when", "name"},
		[][]string{
			{"1", "9.5", "true", "2024-01-02", "Ana"},
			{"2", "", "false", "2024-01-03 10:00:00", "Luis"},
			{"3", "7"}, // short row
		},
	)
	if err != nil {
		t.Fatalf("FromStrings: %v", err)
	}

	wantTypes := map[string]Type{"id": Int, "score": Float, "ok": Bool, "when": Time, "name": String}
	for name, want := range wantTypes {
		c, ok := tb.Column(name)
		if !ok {
			t.Fatalf("missing column %q", name)
		}
		if c.Type != want {
			t.Errorf("%s: type=%v want %v", name, c.Type, want)
		}
	}
	if got := tb.Value(1, "score"); got != nil {
		t.Errorf("empty cell: got %#v want nil", got)
	}
	if got := tb.Value(2, "score"); got != float64(7) {
		t.Errorf("int cell in float column: got %#v", got)
	}
	if got := tb.Value(2, "name"); got != nil {
		t.Errorf("padded cell: got %#v want nil", got)
	}
	if tb.Len() != 3 {
		t.Fatalf("Len=%d want 3", tb.Len())
	}
}

func TestInferCellsKeepsSurveyWordsAsText(t *testing.T) {
	t.Parallel()
	if got := InferCells([]string{"No", "Sí", ""}); got != String {
		t.Fatalf("got %v want String", got)
	}
	if got := InferCells([]string{"", " "}); got != String {
		t.Fatalf("all empty: got %v want String", got)
	}
}

func TestParseTimeSlashedDatesAreDayFirst(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"03/04/2024", "3/4/2024", "03/04/2024 09:30", "3/4/2024 09:30:15", "03.04.2024"} {
		ts, ok := ParseTime(in)
		if !ok {
			t.Fatalf("ParseTime(%q) failed", in)
		}
		if ts.Day() != 3 || ts.Month() != time.April || ts.Year() != 2024 {
			t.Errorf("ParseTime(%q)=%s want 3 April 2024", in, ts.Format(time.DateOnly))
		}
	}
	for _, in := range []string{"12/31/2024", "12/31/2024 10:00:00"} {
		if ts, ok := ParseTime(in); ok {
			t.Errorf("month-first %q parsed as %s", in, ts)
		}
	}
}

func TestRenameAndAddConstant(t *testing.T) {
	t.Parallel()

	tb := MustNew("a", "b")
	_ = tb.AppendRow([]any{"x", int64(1)})
	_ = tb.AppendRow([]any{"y", int64(2)})

	if err := tb.Rename("a", "b"); err == nil {
		t.Fatalf("rename onto existing column should fail")
	}
	if err := tb.Rename("a", "email"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if err := tb.AddConstant("programa", "ATI"); err != nil {
		t.Fatalf("AddConstant: %v", err)
	}
	if got, want := tb.Names(), []string{"email", "b", "programa"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Names=%v want %v", got, want)
	}
	if got := tb.Record(1); !reflect.DeepEqual(got, map[string]any{"email": "y", "b": int64(2), "programa": "ATI"}) {
		t.Fatalf("Record(1)=%#v", got)
	}
}

// TestInferTypesMixedBecomesString checks that disagreeing Go types collapse
// to a String column with formatted values, and int/float mixes widen.
func TestInferTypesMixedBecomesString(t *testing.T) {
	t.Parallel()

	tb := MustNew("mixed", "num")
	_ = tb.AppendRow([]any{"abc", int64(1)})
	_ = tb.AppendRow([]any{int64(5), 2.5})
	_ = tb.AppendRow([]any{nil, nil})
	tb.InferTypes()

	mixed, _ := tb.Column("mixed")
	if mixed.Type != String || mixed.Values[1] != "5" || mixed.Values[2] != nil {
		t.Fatalf("mixed: %+v", mixed)
	}
	num, _ := tb.Column("num")
	if num.Type != Float || num.Values[0] != float64(1) {
		t.Fatalf("num: %+v", num)
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   any
		want string
	}{
		{int64(2019), "2019"},
		{2019.0, "2019"},
		{2.5, "2.5"},
		{true, "true"},
		{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "2024-01-02"},
	}
	for _, c := range cases {
		if got := Format(c.in); got != c.want {
			t.Errorf("Format(%#v)=%q want %q", c.in, got, c.want)
		}
	}
}

func TestFilterAndSelect(t *testing.T) {
	t.Parallel()
	tb := MustNew("k")
	for i := int64(0); i < 5; i++ {
		_ = tb.AppendRow([]any{i})
	}
	even := tb.Filter(func(r int) bool { return tb.Value(r, "k").(int64)%2 == 0 })
	if even.Len() != 3 {
		t.Fatalf("Len=%d want 3", even.Len())
	}
	if got := even.Rows([]string{"k", "missing"}); !reflect.DeepEqual(got, [][]any{{int64(0), nil}, {int64(2), nil}, {int64(4), nil}}) {
		t.Fatalf("Rows=%#v", got)
	}
}
