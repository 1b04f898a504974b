package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// testSetup creates metrics and an in-memory tracer for middleware tests.
// It swaps the global tracer provider, so these tests do not run in parallel.
func testSetup(t *testing.T) (*Metrics, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	return m, reader, exp
}

// apiMux mimics the service's routes.
func apiMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/analyze", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"confidence_score":72.5}`))
	})
	mux.HandleFunc("GET /api/v1/reports/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/v1/transcribe", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "transcription backend down", http.StatusInternalServerError)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader("")))
	return rec
}

func TestMiddleware_SetsCorrelationID(t *testing.T) {
	m, _, _ := testSetup(t)

	var captured string
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = CorrelationID(r.Context())
	}))
	rec := serve(h, http.MethodGet, "/api/v1/")

	if len(captured) != 32 {
		t.Fatalf("correlation ID %q has length %d, want 32", captured, len(captured))
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != captured {
		t.Errorf("X-Correlation-ID = %q, want %q", got, captured)
	}
}

func TestMiddleware_PropagatesW3CTraceContext(t *testing.T) {
	m, _, _ := testSetup(t)
	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"

	var captured string
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = CorrelationID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if captured != traceID {
		t.Errorf("correlation ID = %q, want %q", captured, traceID)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != traceID {
		t.Errorf("X-Correlation-ID = %q, want %q", got, traceID)
	}
}

func TestMiddleware_SpanNamedByRoute(t *testing.T) {
	m, _, exp := testSetup(t)
	h := Middleware(m)(apiMux())

	serve(h, http.MethodGet, "/api/v1/reports/42")
	serve(h, http.MethodGet, "/no/such/page")

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	for i, want := range []string{"HTTP GET /api/v1/reports/{id}", "HTTP GET unmatched"} {
		if spans[i].Name != want {
			t.Errorf("span %d name = %q, want %q", i, spans[i].Name, want)
		}
	}

	attrs := attribute.NewSet(spans[0].Attributes...)
	if v, ok := attrs.Value("http.route"); !ok || v.AsString() != "/api/v1/reports/{id}" {
		t.Errorf("http.route = %v, want /api/v1/reports/{id}", v.AsString())
	}
	if v, ok := attrs.Value("url.path"); !ok || v.AsString() != "/api/v1/reports/42" {
		t.Errorf("url.path = %v, want /api/v1/reports/42", v.AsString())
	}
}

func TestMiddleware_SpanStatusAndSize(t *testing.T) {
	m, _, exp := testSetup(t)
	h := Middleware(m)(apiMux())

	serve(h, http.MethodPost, "/api/v1/analyze")
	serve(h, http.MethodPost, "/api/v1/transcribe")

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}

	ok := attribute.NewSet(spans[0].Attributes...)
	if v, _ := ok.Value("http.response.status_code"); v.AsInt64() != http.StatusOK {
		t.Errorf("status_code = %d, want 200", v.AsInt64())
	}
	if v, _ := ok.Value("http.response.body.size"); v.AsInt64() != int64(len(`{"confidence_score":72.5}`)) {
		t.Errorf("body.size = %d, want %d", v.AsInt64(), len(`{"confidence_score":72.5}`))
	}
	if spans[0].Status.Code == codes.Error {
		t.Error("2xx span marked as error")
	}

	if spans[1].Status.Code != codes.Error {
		t.Errorf("5xx span status = %v, want Error", spans[1].Status.Code)
	}
}

func TestMiddleware_RecordsRouteMetrics(t *testing.T) {
	m, reader, _ := testSetup(t)
	h := Middleware(m)(apiMux())

	serve(h, http.MethodGet, "/api/v1/reports/1")
	serve(h, http.MethodGet, "/api/v1/reports/2")
	serve(h, http.MethodPost, "/api/v1/transcribe")
	serve(h, http.MethodGet, "/favicon.ico")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	met := findMetric(rm, "speechcoach.http.requests")
	if met == nil {
		t.Fatal("speechcoach.http.requests not found")
	}
	got := map[string]int64{}
	for _, dp := range met.Data.(metricdata.Sum[int64]).DataPoints {
		path, _ := dp.Attributes.Value("path")
		status, _ := dp.Attributes.Value("status")
		got[path.AsString()+" "+status.Emit()] += dp.Value
	}
	want := map[string]int64{
		"/api/v1/reports/{id} 200": 2,
		"/api/v1/transcribe 500":   1,
		"unmatched 404":            1,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("requests[%q] = %d, want %d (all: %v)", k, got[k], v, got)
		}
	}

	dur := findMetric(rm, "speechcoach.http.duration")
	if dur == nil {
		t.Fatal("speechcoach.http.duration not found")
	}
	var samples uint64
	for _, dp := range dur.Data.(metricdata.Histogram[float64]).DataPoints {
		samples += dp.Count
	}
	if samples != 4 {
		t.Errorf("duration samples = %d, want 4", samples)
	}
}

func TestRoute(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"", unmatchedRoute},
		{"GET /healthz", "/healthz"},
		{"/api/v1/", "/api/v1/"},
		{"POST /api/v1/analyze", "/api/v1/analyze"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Pattern = tt.pattern
		if got := route(r); got != tt.want {
			t.Errorf("route(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}
