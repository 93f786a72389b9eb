package config

// This file adds a lightweight linter for Config values. It performs static
// checks and returns a list of issues (errors and warnings) that the CLI
// prints before doing any I/O.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding.
//
// Path is a dotted path into the config (e.g. "store.kind").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be returned on its own.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// knownStores lists the storage kinds shipped in internal/storage/all.
var knownStores = map[string]struct{}{
	"postgres": {},
	"sqlite":   {},
	"duckdb":   {},
	"mssql":    {},
}

// Validate lints cfg. It never mutates cfg.
func Validate(cfg Config) []Issue {
	var issues []Issue
	issues = append(issues, structIssues(cfg)...)
	issues = append(issues, validateStore(cfg.Store)...)
	issues = append(issues, validateObjectStore(cfg.ObjectStore)...)
	issues = append(issues, validateMetrics(cfg.Metrics)...)
	issues = append(issues, validateNarrative(cfg.Narrative)...)
	return issues
}

// structIssues converts validator tag failures into error issues.
func structIssues(cfg Config) []Issue {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []Issue{{Severity: SeverityError, Path: "", Message: err.Error()}}
	}
	out := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, Issue{
			Severity: SeverityError,
			Path:     fieldPath(fe.Namespace()),
			Message:  fmt.Sprintf("failed %q rule (value %v)", fe.Tag(), fe.Value()),
		})
	}
	return out
}

// fieldPath turns "Config.Store.RawSchema" into "store.raw_schema".
func fieldPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 0 && parts[0] == "Config" {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	switch s {
	case "ObjectStore":
		return "object_store"
	case "DSN":
		return "dsn"
	case "ETL":
		return "etl"
	case "URL":
		return "url"
	case "APIKey":
		return "api_key"
	case "PushgatewayURL":
		return "pushgateway_url"
	}
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func validateStore(s Store) []Issue {
	var issues []Issue
	if s.Kind != "" {
		if _, ok := knownStores[s.Kind]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "store.kind",
				Message:  fmt.Sprintf("unknown store kind %q", s.Kind),
			})
		}
	}
	if s.RawSchema != "" && s.RawSchema == s.CoreSchema {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "store.raw_schema",
			Message:  "raw and core schemas must differ; the raw copy is append-only",
		})
	}
	if !s.CreateIfMissing {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "store.create_if_missing",
			Message:  "tables will not be created; first loads of a dataset fail until the table exists",
		})
	}
	return issues
}

func validateObjectStore(o ObjectStore) []Issue {
	var issues []Issue
	if o.Endpoint != "" && strings.Contains(o.Endpoint, "://") {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "object_store.endpoint",
			Message:  "endpoint should be host:port; the scheme is derived from object_store.secure",
		})
	}
	if o.Endpoint != "" && o.Bucket == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "object_store.bucket",
			Message:  "bucket must not be empty when an endpoint is configured",
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "pushgateway":
		if m.PushgatewayURL == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend requires a URL",
			})
		}
	case "datadog":
		if m.DatadogAddr == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend requires an agent address",
			})
		}
	}
	return issues
}

func validateNarrative(n Narrative) []Issue {
	if n.URL == "" {
		return []Issue{{
			Severity: SeverityWarning,
			Path:     "narrative.url",
			Message:  "no narrative service configured; narratives will be empty",
		}}
	}
	return nil
}
