// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the ETL orchestrator, the upsert engine and the
// analytics engine.
//
//   - Backend is a narrow interface (counters and duration observations).
//   - A global, pluggable backend defaults to a no-op implementation, so
//     metrics are always safe to call even when nothing is configured.
//   - Concrete systems live in subpackages (prompush, datadog) and are
//     installed once from cmd/etl via SetBackend.
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by all backends.
const (
	StepTotal      = "paaa_step_total"
	StepDuration   = "paaa_step_duration_seconds"
	RowsTotal      = "paaa_rows_total"
	AnalysisTotal  = "paaa_analysis_total"
	NarrativeTotal = "paaa_narrative_total"
	statusSuccess  = "success"
	statusFailure  = "failure"
	statusDegraded = "degraded"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a duration-style value.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

func status(err error) string {
	if err != nil {
		return statusFailure
	}
	return statusSuccess
}

// RecordStep records latency and outcome of one orchestrator step for a
// dataset (extract, transform, load_raw, load_core).
func RecordStep(dataset, step string, err error, d time.Duration) {
	lbls := Labels{"dataset": dataset, "step": step, "status": status(err)}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows adds delta rows of the given kind for a dataset. Typical kinds:
// extracted, duplicates, raw_appended, core_upserted.
func RecordRows(dataset, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{"dataset": dataset, "kind": kind})
}

// RecordAnalysis counts one analytics request by kind and outcome.
func RecordAnalysis(kind string, err error) {
	current().IncCounter(AnalysisTotal, 1, Labels{"kind": kind, "status": status(err)})
}

// RecordNarrative counts narrative generations; degraded marks requests that
// fell back to an empty narrative.
func RecordNarrative(degraded bool) {
	st := statusSuccess
	if degraded {
		st = statusDegraded
	}
	current().IncCounter(NarrativeTotal, 1, Labels{"status": st})
}
