package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func sampleCount(t *testing.T, o prometheus.Metric) uint64 {
	t.Helper()
	var m dto.Metric
	if err := o.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	first := timer.Duration()
	if first < 20*time.Millisecond {
		t.Errorf("Duration() = %v, want >= 20ms", first)
	}

	time.Sleep(5 * time.Millisecond)
	if second := timer.Duration(); second <= first {
		t.Errorf("Duration() did not increase: first=%v, second=%v", first, second)
	}
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "test_iteration_seconds",
		Help: "test",
	})

	timer := NewTimer()
	timer.ObserveDuration(histogram)
	timer.ObserveDuration(histogram)

	if got := sampleCount(t, histogram); got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}
}

func TestTimerObserveDurationVec(t *testing.T) {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "test_probe_seconds",
		Help: "test",
	}, []string{"node"})

	NewTimer().ObserveDurationVec(vec, "zk1")

	h, err := vec.GetMetricWithLabelValues("zk1")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues() error = %v", err)
	}
	if got := sampleCount(t, h.(prometheus.Metric)); got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}
