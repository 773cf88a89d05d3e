package observability

import (
	"context"
	"testing"

	"github.com/decinco/miniworld/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

func TestInitTelemetry_Disabled(t *testing.T) {
	shutdown, err := InitTelemetry(context.Background(), config.TelemetryConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestTracerProviderResource(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp, err := newTracerProvider(context.Background(), "miniworld-test", trace.WithSpanProcessor(recorder))
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "miniature.Create")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "miniature.Create", spans[0].Name())

	attrs := spans[0].Resource().Attributes()
	assert.Contains(t, attrs, semconv.ServiceName("miniworld-test"))
}
