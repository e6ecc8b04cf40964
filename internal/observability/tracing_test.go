package observability

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

func TestNewTracer_Disabled(t *testing.T) {
	t.Parallel()

	tracer, err := NewTracer(TracerConfig{ServiceName: "test", Enabled: false})

	require.NoError(t, err)
	require.NotNil(t, tracer)
	assert.False(t, tracer.Enabled())
	assert.NotNil(t, tracer.Tracer())
	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestNewTracer_Enabled_NoEndpoint(t *testing.T) {
	tracer, err := NewTracer(TracerConfig{
		ServiceName:  "test",
		Enabled:      true,
		SamplingRate: 1.0,
	})

	require.NoError(t, err)
	assert.True(t, tracer.Enabled())
	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestNewResource(t *testing.T) {
	t.Parallel()

	res, err := newResource("avaroute-test")
	require.NoError(t, err)

	value, ok := res.Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "avaroute-test", value.AsString())
	assert.Equal(t, resource.Default().SchemaURL(), res.SchemaURL())
}

func TestTracer_Start(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	tracer := NewTracerWithProvider(TracerConfig{ServiceName: "test"}, provider)
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })

	ctx, span := tracer.Tracer().Start(context.Background(), "test-span",
		trace.WithSpanKind(trace.SpanKindServer))
	ctx = ContextWithSpan(ctx, span)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "test-span", spans[0].Name)
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind)
	assert.Equal(t, spans[0].SpanContext.TraceID().String(), TraceIDFromContext(ctx))
}

func TestContextWithSpan_NoopSpan(t *testing.T) {
	t.Parallel()

	ctx := ContextWithSpan(context.Background(), trace.SpanFromContext(context.Background()))

	assert.Empty(t, TraceIDFromContext(ctx))
}

func TestExtractTraceContext(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	tracer := NewTracerWithProvider(TracerConfig{ServiceName: "test"}, provider)
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })

	header := http.Header{}
	header.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")

	ctx := ExtractTraceContext(context.Background(), header)
	_, span := tracer.Tracer().Start(ctx, "child")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", spans[0].SpanContext.TraceID().String())
	assert.Equal(t, "b7ad6b7169203331", spans[0].Parent.SpanID().String())
}

func TestCreateSampler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		rate     float64
		expected string
	}{
		{name: "always", rate: 1.0, expected: "AlwaysOnSampler"},
		{name: "above one", rate: 2.0, expected: "AlwaysOnSampler"},
		{name: "never", rate: 0, expected: "AlwaysOffSampler"},
		{name: "negative", rate: -1, expected: "AlwaysOffSampler"},
		{name: "ratio", rate: 0.5, expected: "TraceIDRatioBased{0.5}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, createSampler(tt.rate).Description())
		})
	}
}

func TestBuildOTLPExporterOptions(t *testing.T) {
	t.Parallel()

	opts := buildOTLPExporterOptions(TracerConfig{OTLPEndpoint: "localhost:4317"})

	assert.Len(t, opts, 5)
}
