package observe

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestInitProvider_ExportsToRegistry(t *testing.T) {
	origMP, origTP, origProp := otel.GetMeterProvider(), otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetMeterProvider(origMP)
		otel.SetTracerProvider(origTP)
		otel.SetTextMapPropagator(origProp)
	})

	reg := prometheus.NewRegistry()
	tel, err := InitProvider(context.Background(), ProviderConfig{
		ServiceVersion: "test",
		Registerer:     reg,
		SampleRatio:    7, // out of range: sample everything
	})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	m, err := NewMetrics(tel.MeterProvider)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.FillersDetected.Add(context.Background(), 3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var found bool
	for _, f := range families {
		if f.GetName() == "speechcoach_fillers_detected_total" {
			found = true
			if got := f.GetMetric()[0].GetCounter().GetValue(); got != 3 {
				t.Errorf("counter value = %v, want 3", got)
			}
		}
	}
	if !found {
		t.Error("speechcoach_fillers_detected_total not exported to the registry")
	}

	if _, ok := otel.GetTextMapPropagator().(propagation.TraceContext); !ok {
		t.Errorf("global propagator = %T, want propagation.TraceContext", otel.GetTextMapPropagator())
	}

	_, span := StartSpan(context.Background(), "analyze")
	defer span.End()
	if !span.SpanContext().IsSampled() {
		t.Error("root span not sampled with ratio 1")
	}
}
