package prompush

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/samvalverde/PAAA/internal/metrics"
)

// counterValue reads one child of a CounterVec.
func counterValue(t *testing.T, v *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := v.WithLabelValues(labels...).Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestNewBackend_RequiresURL(t *testing.T) {
	t.Parallel()
	if _, err := NewBackend("job", ""); err == nil {
		t.Fatalf("expected error for empty gateway URL")
	}
	b, err := NewBackend("", "http://localhost:9091")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	if b.jobName != "paaa_etl" {
		t.Fatalf("jobName=%q want default", b.jobName)
	}
}

// TestBackend_RoutesByName verifies that each shared metric name lands on its
// collector and unknown names are ignored.
func TestBackend_RoutesByName(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("job", "http://localhost:9091")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"dataset": "egresados", "step": "extract", "status": "success"})
	b.IncCounter(metrics.RowsTotal, 3, metrics.Labels{"dataset": "egresados", "kind": "core_upserted"})
	b.IncCounter(metrics.RowsTotal, 2, metrics.Labels{"dataset": "egresados", "kind": "core_upserted"})
	b.IncCounter("unknown_metric", 1, nil)
	b.ObserveHistogram(metrics.StepDuration, 0.2, metrics.Labels{"dataset": "egresados", "step": "extract", "status": "success"})

	if got := counterValue(t, b.steps, "egresados", "extract", "success"); got != 1 {
		t.Errorf("steps=%v want 1", got)
	}
	if got := counterValue(t, b.rows, "egresados", "core_upserted"); got != 5 {
		t.Errorf("rows=%v want 5", got)
	}

	mfs, err := b.reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var sawHistogram bool
	for _, mf := range mfs {
		if mf.GetName() == metrics.StepDuration {
			sawHistogram = mf.GetMetric()[0].GetHistogram().GetSampleCount() == 1
		}
	}
	if !sawHistogram {
		t.Errorf("duration histogram not observed")
	}
}

func TestFlush_PushesToGateway(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Method != http.MethodPut {
			t.Errorf("method=%s want PUT", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewBackend("paaa", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.AnalysisTotal, 1, metrics.Labels{"kind": "resumen_general", "status": "success"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("gateway hits=%d want 1", hits)
	}
}
