package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

func TestInitTelemetryOTLP(t *testing.T) {
	shutdown, err := InitTelemetry(context.Background(), Options{
		ServiceName: "voxeld-test",
		Endpoint:    "127.0.0.1:4318",
		SampleRatio: 0.5,
	})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.IsType(t, &sdktrace.TracerProvider{}, otel.GetTracerProvider())

	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTelemetryCustomExporter(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	shutdown, err := InitTelemetry(context.Background(), Options{
		ServiceName:    "voxeld-test",
		ServiceVersion: "test",
		Exporter:       exp,
	})
	require.NoError(t, err)
	defer func() { assert.NoError(t, shutdown(context.Background())) }()

	_, span := otel.Tracer("test").Start(context.Background(), "chunk.generate")
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "chunk.generate", spans[0].Name)
	name, ok := spans[0].Resource.Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "voxeld-test", name.AsString())
}
