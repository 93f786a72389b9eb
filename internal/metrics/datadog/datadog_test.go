package datadog

import (
	"reflect"
	"testing"

	"github.com/samvalverde/PAAA/internal/metrics"
)

type call struct {
	kind  string
	name  string
	value float64
	tags  []string
}

type fakeClient struct{ calls []call }

func (f *fakeClient) Count(name string, value int64, tags []string, _ float64) error {
	f.calls = append(f.calls, call{"count", name, float64(value), tags})
	return nil
}

func (f *fakeClient) Histogram(name string, value float64, tags []string, _ float64) error {
	f.calls = append(f.calls, call{"histogram", name, value, tags})
	return nil
}

func (f *fakeClient) Flush() error { return nil }
func (f *fakeClient) Close() error { return nil }

func TestNewBackend_RequiresAddr(t *testing.T) {
	t.Parallel()
	if _, err := NewBackend(Config{}); err == nil {
		t.Fatalf("expected error for empty Addr")
	}
}

// TestBackend_SortedTags checks that labels become deterministic tag lists.
func TestBackend_SortedTags(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{}
	b := &Backend{client: fc}
	b.IncCounter(metrics.StepTotal, 2, metrics.Labels{"step": "extract", "dataset": "egresados"})
	b.ObserveHistogram(metrics.StepDuration, 1.5, nil)

	want := []call{
		{"count", metrics.StepTotal, 2, []string{"dataset:egresados", "step:extract"}},
		{"histogram", metrics.StepDuration, 1.5, nil},
	}
	if !reflect.DeepEqual(fc.calls, want) {
		t.Fatalf("calls=%+v want %+v", fc.calls, want)
	}
}
