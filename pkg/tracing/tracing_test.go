package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracing(t *testing.T) {
	t.Run("without a tracer spans are no-ops", func(t *testing.T) {
		SetTracer(nil)

		ctx, span := StartSpan(context.Background(), "test.NoTracer")
		defer span.End()

		assert.False(t, span.SpanContext().IsValid())
		assert.Nil(t, GetActiveSpan(ctx))
		assert.Empty(t, GetTraceID(ctx))
	})

	t.Run("with a provider spans are exported", func(t *testing.T) {
		exporter := tracetest.NewInMemoryExporter()
		shutdown, err := Setup("thistle-test", "dev", exporter)
		require.NoError(t, err)
		defer SetTracer(nil)

		ctx, span := StartSpan(context.Background(), "test.WithTracer")
		assert.NotEmpty(t, GetTraceID(ctx))
		assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceID(ctx))
		span.End()

		require.NoError(t, shutdown(context.Background()))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, "test.WithTracer", spans[0].Name)
	})
}
