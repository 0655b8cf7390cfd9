package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m.RequestTotal == nil {
		t.Error("RequestTotal should not be nil")
	}
	if m.RequestDurationMs == nil {
		t.Error("RequestDurationMs should not be nil")
	}
	if m.BranchFailureTotal == nil {
		t.Error("BranchFailureTotal should not be nil")
	}
	if m.CacheOpsTotal == nil {
		t.Error("CacheOpsTotal should not be nil")
	}
	if m.FallbackTotal == nil {
		t.Error("FallbackTotal should not be nil")
	}
	if m.BackgroundStepTotal == nil {
		t.Error("BackgroundStepTotal should not be nil")
	}
	if m.BackgroundDropped == nil {
		t.Error("BackgroundDropped should not be nil")
	}
	if m.BackgroundQueueDepth == nil {
		t.Error("BackgroundQueueDepth should not be nil")
	}
	if m.RateLimitHitTotal == nil {
		t.Error("RateLimitHitTotal should not be nil")
	}
}

func TestRecordRequest(t *testing.T) {
	// Use a fresh registry to avoid polluting the default one
	reg := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_chat_request_total",
		Help: "Test counter",
	}, []string{"status", "model", "rag_used"})
	durationMs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "test_chat_request_duration_ms",
		Help: "Test histogram",
	}, []string{"model"})
	reg.MustRegister(requestTotal, durationMs)

	m := &Metrics{RequestTotal: requestTotal, RequestDurationMs: durationMs}
	m.RecordRequest(RequestLabels{
		Status:     "200",
		Model:      "qwen2.5:14b",
		RAGUsed:    true,
		DurationMs: 420,
	})

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	var counter *dto.MetricFamily
	for _, mf := range mfs {
		if mf.GetName() == "test_chat_request_total" {
			counter = mf
		}
	}
	if counter == nil {
		t.Fatal("request counter not gathered")
	}
	if len(counter.Metric) != 1 {
		t.Fatalf("expected 1 metric series, got %d", len(counter.Metric))
	}
	if got := counter.Metric[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("expected counter 1, got %f", got)
	}

	labels := map[string]string{}
	for _, lp := range counter.Metric[0].GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	if labels["rag_used"] != "true" {
		t.Errorf("expected rag_used=true label, got %q", labels["rag_used"])
	}
}

func TestRecordBackgroundStep(t *testing.T) {
	reg := prometheus.NewRegistry()
	stepTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_chat_background_step_total",
		Help: "Test counter",
	}, []string{"step", "outcome"})
	reg.MustRegister(stepTotal)

	m := &Metrics{BackgroundStepTotal: stepTotal}
	m.RecordBackgroundStep("persist", "ok")
	m.RecordBackgroundStep("persist", "ok")
	m.RecordBackgroundStep("learning", "error")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(mfs) != 1 {
		t.Fatalf("expected 1 family, got %d", len(mfs))
	}
	if len(mfs[0].Metric) != 2 {
		t.Errorf("expected 2 series, got %d", len(mfs[0].Metric))
	}
}
