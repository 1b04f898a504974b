package observe

import (
	"bytes"
	"context"
	"encoding/hex"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracerProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

// captureLogs routes the default logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestCorrelationID(t *testing.T) {
	tp, _ := newTestTracerProvider(t)
	tracer := tp.Tracer("analysis")

	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}

	seen := make(map[string]bool)
	for range 50 {
		ctx, span := tracer.Start(context.Background(), "analyze")
		cid := CorrelationID(ctx)
		span.End()

		if b, err := hex.DecodeString(cid); err != nil || len(b) != 16 {
			t.Fatalf("correlation ID %q is not a 16-byte hex trace ID", cid)
		}
		if seen[cid] {
			t.Fatalf("duplicate correlation ID %s", cid)
		}
		seen[cid] = true
	}
}

func TestStartSpan_UsesGlobalProvider(t *testing.T) {
	tp, exp := newTestTracerProvider(t)
	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	ctx, parent := StartSpan(context.Background(), "analysis.audio")
	_, child := StartSpan(ctx, "stt.transcribe")
	child.End()
	parent.End()

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Name != "stt.transcribe" || spans[1].Name != "analysis.audio" {
		t.Errorf("span names = %q, %q", spans[0].Name, spans[1].Name)
	}
	if spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Error("child span is not parented to the analysis span")
	}
	if spans[0].InstrumentationScope.Name != tracerName {
		t.Errorf("scope = %q, want %q", spans[0].InstrumentationScope.Name, tracerName)
	}
}

func TestLogger(t *testing.T) {
	tp, _ := newTestTracerProvider(t)

	tests := []struct {
		name      string
		ctx       func() (context.Context, func())
		wantTrace bool
	}{
		{
			name:      "active span",
			wantTrace: true,
			ctx: func() (context.Context, func()) {
				ctx, span := tp.Tracer("api").Start(context.Background(), "transcribe")
				return ctx, func() { span.End() }
			},
		},
		{
			name: "no span",
			ctx:  func() (context.Context, func()) { return context.Background(), func() {} },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t)
			ctx, done := tt.ctx()
			defer done()

			Logger(ctx).Info("analysis degraded", "component", "relevance")
			out := buf.String()

			for _, key := range []string{"trace_id=", "span_id="} {
				if got := strings.Contains(out, key); got != tt.wantTrace {
					t.Errorf("log contains %s = %v, want %v; log: %s", key, got, tt.wantTrace, out)
				}
			}
			if tt.wantTrace && !strings.Contains(out, "trace_id="+CorrelationID(ctx)) {
				t.Errorf("log trace_id does not match the span; log: %s", out)
			}
		})
	}
}
