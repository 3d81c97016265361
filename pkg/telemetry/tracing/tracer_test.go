package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/cadence/pkg/config"
)

// restoreGlobals resets the global provider and propagator after a test
// that installs its own.
func restoreGlobals(t *testing.T) {
	t.Helper()
	prevProvider := otel.GetTracerProvider()
	prevPropagator := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevPropagator)
	})
}

func TestNew_Disabled(t *testing.T) {
	tr, err := New(&config.TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.Enabled() {
		t.Error("expected disabled tracer")
	}

	_, span := tr.Named("pipeline").Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("disabled tracer produced a valid span")
	}
	span.End()

	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestNewWithExporter_RecordsSpans(t *testing.T) {
	restoreGlobals(t)
	exporter := tracetest.NewInMemoryExporter()

	tr, err := NewWithExporter(&config.TracingConfig{
		Enabled:     true,
		Sampler:     SamplerAlways,
		ServiceName: "cadence-test",
	}, exporter)
	if err != nil {
		t.Fatalf("NewWithExporter: %v", err)
	}

	if !tr.Enabled() {
		t.Fatal("expected enabled tracer")
	}
	_, span := otel.Tracer("test").Start(context.Background(), "global")
	End(span, errors.New("boom"))

	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported %d spans, want 1", len(spans))
	}
	if spans[0].Name != "global" || spans[0].Status.Code != codes.Error {
		t.Errorf("span = %s status %v", spans[0].Name, spans[0].Status.Code)
	}
	if len(spans[0].Events) == 0 {
		t.Error("error event not recorded")
	}
}

func TestNamed_UsesComponentScope(t *testing.T) {
	restoreGlobals(t)
	exporter := tracetest.NewInMemoryExporter()
	tr, err := NewWithExporter(&config.TracingConfig{Enabled: true, Sampler: SamplerAlways, ServiceName: "cadence-test"}, exporter)
	if err != nil {
		t.Fatalf("NewWithExporter: %v", err)
	}

	_, span := tr.Named("pipeline").Start(context.Background(), "pipeline.process_trigger")
	End(span, nil)
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported %d spans, want 1", len(spans))
	}
	if got := spans[0].InstrumentationScope.Name; got != "mercator-hq/cadence/pipeline" {
		t.Errorf("scope = %q", got)
	}
	if spans[0].Status.Code != codes.Ok {
		t.Errorf("status = %v, want Ok", spans[0].Status.Code)
	}
}

func TestNewWithExporter_InvalidSampler(t *testing.T) {
	_, err := NewWithExporter(&config.TracingConfig{Enabled: true, Sampler: "sometimes"}, tracetest.NewInMemoryExporter())
	if err == nil {
		t.Error("expected sampler error")
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.25, false},
		{SamplerRatio, 1.5, true},
		{"random", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			s, err := createSampler(tt.strategy, tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && s == nil {
				t.Error("nil sampler")
			}
		})
	}
}

func TestHTTPMiddleware_ContinuesTrace(t *testing.T) {
	restoreGlobals(t)
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	otel.SetTextMapPropagator(propagation.TraceContext{})

	var innerTraceID string
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		innerTraceID = TraceID(r.Context())
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/triggers", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if innerTraceID != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("handler trace id = %q", innerTraceID)
	}
	if rec.Header().Get("X-Trace-ID") != innerTraceID {
		t.Errorf("X-Trace-ID = %q", rec.Header().Get("X-Trace-ID"))
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended %d spans, want 1", len(spans))
	}
	if spans[0].Name() != "POST /v1/triggers" || spans[0].Status().Code != codes.Error {
		t.Errorf("span %q status %v", spans[0].Name(), spans[0].Status().Code)
	}
	if spans[0].Parent().SpanID().String() != "00f067aa0ba902b7" {
		t.Errorf("parent = %s", spans[0].Parent().SpanID())
	}
}

func TestInject(t *testing.T) {
	restoreGlobals(t)
	otel.SetTracerProvider(sdktrace.NewTracerProvider())
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx, span := otel.Tracer("test").Start(context.Background(), "client")
	defer span.End()

	h := http.Header{}
	Inject(ctx, h)
	if h.Get("traceparent") == "" {
		t.Error("traceparent not injected")
	}
	if got := TraceID(Extract(context.Background(), h)); got != TraceID(ctx) {
		t.Errorf("round trip trace id = %q, want %q", got, TraceID(ctx))
	}
}
