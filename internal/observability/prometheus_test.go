package observability_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sasspipe/internal/observability"
)

func TestPrometheusHandler_ExposesPipelineMetrics(t *testing.T) {
	t.Parallel()

	handler, mp, err := observability.PrometheusHandler()
	require.NoError(t, err)

	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	pm, err := observability.NewPipelineMetrics(mp.Meter("test"), nil)
	require.NoError(t, err)

	pm.RecordCache(context.Background(), true)
	pm.RecordCompile(context.Background(), 10*time.Millisecond, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "sasspipe_cache_hits_total")
	assert.Contains(t, string(body), "sasspipe_compile_duration_seconds")
}
