package builtin

import (
	"fmt"
	"strings"
)

// sampleSize bounds the diagnostic samples carried by validation errors.
const sampleSize = 5

// MissingColumnsError reports required columns absent after normalization and
// alias resolution, together with the columns that were present.
type MissingColumnsError struct {
	Missing []string
	Present []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns %v; present columns: %v", e.Missing, e.Present)
}

// NullKeyError reports a key column with null values. Indices holds up to
// five zero-based row positions; Count is the total number of nulls.
type NullKeyError struct {
	Column  string
	Indices []int
	Count   int
}

func (e *NullKeyError) Error() string {
	return fmt.Sprintf("key column %q has %d null values; first rows: %v", e.Column, e.Count, e.Indices)
}

// InvalidEmailError reports malformed values in an email column. Sample holds
// up to five offending values; nulls appear as nil.
type InvalidEmailError struct {
	Column string
	Sample []any
	Count  int
}

func (e *InvalidEmailError) Error() string {
	return fmt.Sprintf("column %q has %d malformed emails; examples: %v", e.Column, e.Count, e.Sample)
}

// AliasConflictError reports several present source columns that all resolve
// to the same canonical field.
type AliasConflictError struct {
	Canonical string
	Sources   []string
}

func (e *AliasConflictError) Error() string {
	return fmt.Sprintf("ambiguous alias: columns %s all map to %q", strings.Join(e.Sources, ", "), e.Canonical)
}
