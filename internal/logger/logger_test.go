package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit(t *testing.T) {
	t.Cleanup(func() { Log = zap.NewNop().Sugar() })

	require.NoError(t, Init("debug", true))
	assert.True(t, Log.Desugar().Core().Enabled(zap.DebugLevel))

	require.NoError(t, Init("error", false))
	assert.False(t, Log.Desugar().Core().Enabled(zap.InfoLevel))

	assert.Error(t, Init("loud", false))
}

func TestWithLoggingHTTPMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Log = zap.New(core).Sugar()
	t.Cleanup(func() { Log = zap.NewNop().Sugar() })

	h := WithLoggingHTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "/ping", fields["uri"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.Equal(t, int64(5), fields["size"])
}
