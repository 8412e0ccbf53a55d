package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracingConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultTracingConfig().Validate())

	cfg := DefaultTracingConfig()
	cfg.SampleRatio = 1.5
	assert.Error(t, cfg.Validate())

	cfg = DefaultTracingConfig()
	cfg.Exporter = "zipkin"
	assert.Error(t, cfg.Validate())
}

func TestInitTracing_Disabled(t *testing.T) {
	tr, err := InitTracing(context.Background(), DefaultTracingConfig(), nil)
	require.NoError(t, err)
	tr.Shutdown(context.Background())

	_, span := Tracer().Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestInitTracing_UnknownExporter(t *testing.T) {
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.Exporter = "zipkin"
	_, err := InitTracing(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestInitTracing_StdoutFlushesOnShutdown(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.Output = &out
	tr, err := InitTracing(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = InitTracing(context.Background(), DefaultTracingConfig(), nil) })

	_, span := Tracer().Start(context.Background(), "sensitivity.run")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
	tr.Shutdown(context.Background())

	assert.Contains(t, out.String(), "sensitivity.run")
}

func TestTracingShutdown_NilSafe(t *testing.T) {
	var tr *Tracing
	tr.Shutdown(context.Background())
}
