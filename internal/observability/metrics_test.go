package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobMetrics(t *testing.T) {
	metrics := NewMetrics()
	_ = metrics.Jobs().Track("manifest:stage_resync").End(nil)
	_ = metrics.Jobs().Track("dashboard:warmup").End(errors.New("redis down"))
	metrics.Jobs().AddRepaired(3)

	body := scrape(t, metrics)
	for _, want := range []string{
		`tracker_jobs_total{job="manifest:stage_resync",status="success"} 1`,
		`tracker_jobs_failures_total{job="dashboard:warmup"} 1`,
		`tracker_stage_resync_repaired_total 3`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected body to contain %s, got: %s", want, body)
		}
	}
}

func TestDomainCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.EventsAppended("manifest_stage", 4)
	metrics.EventsAppended("intake", 1)
	metrics.EventsAppended("intake", 0)
	metrics.ScanRecorded("accepted")
	metrics.ScanRecorded("over_scan")
	metrics.ScanRecorded("accepted")

	body := scrape(t, metrics)
	for _, want := range []string{
		`tracker_shipment_events_total{source="manifest_stage"} 4`,
		`tracker_shipment_events_total{source="intake"} 1`,
		`tracker_depot_scans_total{outcome="accepted"} 2`,
		`tracker_depot_scans_total{outcome="over_scan"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected body to contain %s, got: %s", want, body)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.EventsAppended("intake", 1)
	metrics.ScanRecorded("accepted")
	metrics.Jobs().AddRepaired(1)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/api/track/{trackingNumber}")

	req := httptest.NewRequest(http.MethodGet, "/api/track/TR-12345678", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	metricsBody := scrape(t, metrics)
	if !strings.Contains(metricsBody, "tracker_http_requests_total{code=\"418\",route=\"/api/track/{trackingNumber}\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "tracker_http_request_duration_seconds_bucket{route=\"/api/track/{trackingNumber}\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}
