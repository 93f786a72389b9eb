// Package survey wires the ETL pipeline to the two survey instruments the
// program office collects: graduates (egresados) and faculty (profesores).
// It owns the dataset catalog, chooses a key column per file and runs loads
// from local files or from the object store.
package survey

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Dataset describes one supported survey table.
type Dataset struct {
	Name string
	// KeyCandidates are tried in order; the first present column becomes
	// the respondent key next to programa.
	KeyCandidates []string
	// Types are the coercion tags applied on every load.
	Types map[string]string
}

var catalog = map[string]Dataset{
	"egresados":  newDataset("egresados"),
	"profesores": newDataset("profesores"),
}

func newDataset(name string) Dataset {
	return Dataset{
		Name:          name,
		KeyCandidates: []string{"email", "id_id_de_respuesta", "token", "seed_semilla"},
		Types: map[string]string{
			"programa":           "string",
			"email":              "string",
			"id_id_de_respuesta": "string",
			"version":            "string",
		},
	}
}

// Lookup returns the dataset for name, ignoring case and surrounding space.
func Lookup(name string) (Dataset, error) {
	ds, ok := catalog[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Dataset{}, &UnsupportedDatasetError{Name: name}
	}
	return ds, nil
}

// Names lists the supported datasets.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for n := range catalog {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// DefaultVersion is used when a file name carries no version.
const DefaultVersion = "v1.0"

var versionRe = regexp.MustCompile(`(v\d+(?:\.\d+)*|\d{4}[-_.]?\d{2}[-_.]?\d{2})`)

// InferVersion extracts a version label ("v2.1" or a date such as
// "2025-06-22") from a file name.
func InferVersion(filename string) string {
	if m := versionRe.FindString(strings.ToLower(filename)); m != "" {
		return m
	}
	return DefaultVersion
}

// UnsupportedDatasetError reports a dataset outside the catalog.
type UnsupportedDatasetError struct {
	Name string
}

func (e *UnsupportedDatasetError) Error() string {
	return fmt.Sprintf("survey: unsupported dataset %q (want one of %s)", e.Name, strings.Join(Names(), ", "))
}

// NoKeyCandidateError reports a file with none of the key candidates.
type NoKeyCandidateError struct {
	Dataset    string
	Candidates []string
	Columns    []string
}

func (e *NoKeyCandidateError) Error() string {
	return fmt.Sprintf("survey: %s: no key column among %v (columns: %v)", e.Dataset, e.Candidates, e.Columns)
}
