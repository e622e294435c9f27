package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mamadbah2/wacloud/internal/config"
)

func TestDisabledTracingIsNoop(t *testing.T) {
	m := NewManager(config.TracingConfig{}, nil)

	require.NoError(t, m.Initialize(context.Background()))
	assert.NotNil(t, m.TracerProvider())
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestStdoutTracing(t *testing.T) {
	m := NewManager(config.TracingConfig{Enabled: true, Exporter: "stdout"}, nil)

	require.NoError(t, m.Initialize(context.Background()))
	assert.IsType(t, &sdktrace.TracerProvider{}, m.TracerProvider())
	assert.NoError(t, m.Shutdown(context.Background()))
}
