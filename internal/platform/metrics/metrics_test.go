package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMiddlewareCountsByRouteAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTP(reg, "billing")
	handler := m.Middleware(func(*http.Request) string { return "GET /v1/quotes/{id}" })(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}),
	)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/quotes/abc", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/quotes/def", nil))

	got := testutil.ToFloat64(m.requests.WithLabelValues("GET /v1/quotes/{id}", http.MethodGet, "404"))
	if got != 2 {
		t.Fatalf("requests_total = %v, want 2", got)
	}
	if n := testutil.CollectAndCount(m.duration); n != 1 {
		t.Fatalf("duration series = %d, want 1", n)
	}
}

func TestWorkerCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorker(reg)
	m.Processed("quote", "succeeded")
	m.Failed("publish")
	m.ObserveTick(20 * time.Millisecond)

	if got := testutil.ToFloat64(m.processed.WithLabelValues("quote", "succeeded")); got != 1 {
		t.Fatalf("processed = %v", got)
	}
	if got := testutil.ToFloat64(m.failed.WithLabelValues("publish")); got != 1 {
		t.Fatalf("failed = %v", got)
	}

	var nilWorker *Worker
	nilWorker.Processed("quote", "failed")
	nilWorker.ObserveTick(time.Second)
}

func TestHandlerExposesRegistry(t *testing.T) {
	reg := NewRegistry()
	NewWorker(reg).Processed("payment", "retry")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tradebook_reminders_processed_total") {
		t.Fatalf("missing worker metric in output")
	}
}
