package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounterGaugeHistogram(t *testing.T) {
	c := NewMetricsCollector()

	ctr := c.Counter("webpilot_test_total", "test counter", "")
	ctr.Inc()
	ctr.Add(2)
	if ctr.Value() != 3 {
		t.Fatalf("counter = %d, want 3", ctr.Value())
	}

	g := c.Gauge("webpilot_test_active", "test gauge", "")
	g.Set(5)
	g.Inc()
	g.Dec()
	if g.Value() != 5 {
		t.Fatalf("gauge = %d, want 5", g.Value())
	}

	h := c.Histogram("webpilot_test_seconds", "test histogram", "", []float64{0.1, 1, 10})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(100)
}

func TestRegistrationIdempotent(t *testing.T) {
	c := NewMetricsCollector()
	a := c.Counter("webpilot_dup_total", "dup", "")
	b := c.Counter("webpilot_dup_total", "dup", "")
	if a != b {
		t.Fatal("same name returned distinct counters")
	}
}

func TestHandler_PrometheusText(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("webpilot_reqs_total", "requests", "").Add(7)
	c.Gauge("webpilot_tabs", "open tabs", "").Set(2)
	c.Histogram("webpilot_lat_seconds", "latency", "", []float64{1, 5}).Observe(0.3)

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}
	for _, want := range []string{
		"# TYPE webpilot_reqs_total counter",
		"webpilot_reqs_total 7",
		"# TYPE webpilot_tabs gauge",
		"webpilot_tabs 2",
		"# TYPE webpilot_lat_seconds histogram",
		`webpilot_lat_seconds_bucket{le="1"} 1`,
		"webpilot_lat_seconds_count 1",
		"webpilot_uptime_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("output missing %q:\n%s", want, body)
		}
	}
}
