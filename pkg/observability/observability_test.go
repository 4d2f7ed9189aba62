package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ajitpratap0/quack/pkg/config"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	setTracer(tp.Tracer("test"))
	t.Cleanup(func() { setTracer(nil) })
	return rec
}

func TestTrace_RecordsErrorStatus(t *testing.T) {
	rec := withRecorder(t)

	boom := errors.New("boom")
	err := Trace(context.Background(), "engine.query", func(ctx context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "engine.query", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestSpan_Attributes(t *testing.T) {
	rec := withRecorder(t)

	_, span := StartSpan(context.Background(), "write_state.open")
	span.SetAttribute("database_id", uint32(5))
	span.SetAttribute("table", "t1")
	span.RecordError(nil)
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	attrs := map[string]interface{}{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, int64(5), attrs["database_id"])
	assert.Equal(t, "t1", attrs["table"])
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
}

func TestInitialize_DisabledIsNoop(t *testing.T) {
	cfg := config.NewDefaultConfig().Observability
	cfg.EnableTracing = false
	require.NoError(t, Initialize(cfg, "test"))
	assert.NoError(t, Shutdown(context.Background()))
}

func TestInitialize_ExportsToWriter(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.NewDefaultConfig().Observability
	cfg.EnableTracing = true
	cfg.TracingSampleRate = 1

	require.NoError(t, initialize(cfg, "test", &buf))
	_, span := StartSpan(context.Background(), "exported")
	span.End()
	require.NoError(t, Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "exported")
}
