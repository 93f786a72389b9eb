// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// The ETL binary is a batch job, so collected metrics are pushed to a
// Pushgateway on Flush instead of being scraped. All Prometheus-specific
// dependencies stay in this package.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/samvalverde/PAAA/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	steps     *prometheus.CounterVec   // dataset, step, status
	durations *prometheus.HistogramVec // dataset, step, status
	rows      *prometheus.CounterVec   // dataset, kind
	analyses  *prometheus.CounterVec   // kind, status
	narrative *prometheus.CounterVec   // status
}

// NewBackend constructs a Pushgateway backend. jobName is the Pushgateway
// grouping job and defaults to "paaa_etl".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "paaa_etl"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "ETL step executions by dataset, step and status.",
		}, []string{"dataset", "step", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StepDuration,
			Help:    "ETL step duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"dataset", "step", "status"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows by dataset and kind (extracted, duplicates, raw_appended, core_upserted).",
		}, []string{"dataset", "kind"}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.AnalysisTotal,
			Help: "Analytics requests by kind and status.",
		}, []string{"kind", "status"}),
		narrative: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.NarrativeTotal,
			Help: "Narrative generations by status.",
		}, []string{"status"}),
	}

	for _, c := range []prometheus.Collector{b.steps, b.durations, b.rows, b.analyses, b.narrative} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, l metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		b.steps.WithLabelValues(l["dataset"], l["step"], l["status"]).Add(delta)
	case metrics.RowsTotal:
		b.rows.WithLabelValues(l["dataset"], l["kind"]).Add(delta)
	case metrics.AnalysisTotal:
		b.analyses.WithLabelValues(l["kind"], l["status"]).Add(delta)
	case metrics.NarrativeTotal:
		b.narrative.WithLabelValues(l["status"]).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, l metrics.Labels) {
	if name != metrics.StepDuration {
		return
	}
	b.durations.WithLabelValues(l["dataset"], l["step"], l["status"]).Observe(value)
}

// Flush pushes the registry to the Pushgateway, replacing the job group.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}
