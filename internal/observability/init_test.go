package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sasspipe/internal/observability"
)

func TestInit_NoopByDefault(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Logger)
	assert.Nil(t, providers.MetricsHandler)

	_, span := providers.Tracer.Start(context.Background(), "compiler.Compile")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestInit_MetricsAddrEnablesPrometheus(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.MetricsAddr = "127.0.0.1:0"

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { _ = providers.Shutdown(context.Background()) })

	assert.NotNil(t, providers.MetricsHandler)
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	assert.Nil(t, observability.ParseOTLPHeaders(""))
	assert.Nil(t, observability.ParseOTLPHeaders("garbage"))
	assert.Equal(t,
		map[string]string{"authorization": "Bearer x", "team": "web"},
		observability.ParseOTLPHeaders("authorization=Bearer x, team = web"),
	)
}

func TestInit_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.Mode = "daemon"

	_, err := observability.Init(cfg)
	require.ErrorIs(t, err, observability.ErrUnknownMode)

	cfg = observability.DefaultConfig()
	cfg.SampleRatio = 2

	_, err = observability.Init(cfg)
	require.ErrorIs(t, err, observability.ErrSampleRatio)

	cfg.Mode = observability.ModeMCP
	cfg.SampleRatio = 0.5
	require.NoError(t, cfg.Validate())
}
