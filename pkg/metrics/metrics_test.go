package metrics

import (
	"strings"
	"testing"
)

func TestCounterRender(t *testing.T) {
	r := New()
	c := r.Counter("engine_edges_total", "Total catchment edges written")
	c.Add(3)

	out := r.Render()
	if !strings.Contains(out, "# TYPE engine_edges_total counter") {
		t.Fatalf("missing TYPE line:\n%s", out)
	}
	if !strings.Contains(out, "engine_edges_total 3") {
		t.Fatalf("missing value line:\n%s", out)
	}
}

func TestLabeledCounters(t *testing.T) {
	r := New()
	r.Counter(WithLabels("engine_ingest_errors_total", "stage", "embed"), "Errors by stage").Inc()
	r.Counter(WithLabels("engine_ingest_errors_total", "stage", "store"), "Errors by stage").Add(2)

	out := r.Render()
	if !strings.Contains(out, `engine_ingest_errors_total{stage="embed"} 1`) {
		t.Fatalf("missing embed line:\n%s", out)
	}
	if !strings.Contains(out, `engine_ingest_errors_total{stage="store"} 2`) {
		t.Fatalf("missing store line:\n%s", out)
	}
	// One TYPE header for the shared base name.
	if strings.Count(out, "# TYPE engine_ingest_errors_total") != 1 {
		t.Fatalf("duplicate TYPE headers:\n%s", out)
	}
}

func TestHistogramCumulativeBuckets(t *testing.T) {
	r := New()
	h := r.Histogram("engine_rebuild_seconds", "Rebuild duration", []float64{1, 5, 10})
	h.Observe(0.5)
	h.Observe(3)
	h.Observe(100)

	out := r.Render()
	for _, want := range []string{
		`engine_rebuild_seconds_bucket{le="1"} 1`,
		`engine_rebuild_seconds_bucket{le="5"} 2`,
		`engine_rebuild_seconds_bucket{le="10"} 2`,
		`engine_rebuild_seconds_bucket{le="+Inf"} 3`,
		`engine_rebuild_seconds_count 3`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestGauge(t *testing.T) {
	r := New()
	g := r.Gauge("engine_active_jobs", "")
	g.Inc()
	g.Inc()
	g.Dec()
	if g.Value() != 1 {
		t.Fatalf("gauge = %d, want 1", g.Value())
	}
}
