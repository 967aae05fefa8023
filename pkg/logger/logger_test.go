package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_LevelByEnv(t *testing.T) {
	t.Parallel()

	cases := []struct {
		env   string
		debug bool
	}{
		{env: "local", debug: true},
		{env: "dev", debug: true},
		{env: "staging", debug: false},
		{env: "production", debug: false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.env, func(t *testing.T) {
			t.Parallel()
			l, err := New(tc.env)
			require.NoError(t, err)
			assert.Equal(t, tc.debug, l.Core().Enabled(zapcore.DebugLevel))
		})
	}
}

func TestFromFallsBackToGlobal(t *testing.T) {
	assert.Equal(t, zap.L(), From(context.Background()))

	l := zap.NewNop()
	assert.Same(t, l, From(With(context.Background(), l)))
}

func TestMiddleware_PropagatesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(Middleware(zap.New(core)))
	r.GET("/ping", func(c *gin.Context) {
		FromGin(c).Info("inside")
		From(c.Request.Context()).Info("ctx")
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(headerRequestID, "rid-1")
	r.ServeHTTP(w, req)

	assert.Equal(t, "rid-1", w.Header().Get(headerRequestID))
	entries := logs.All()
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, "rid-1", e.ContextMap()["request_id"])
	}
	last := entries[2]
	assert.Equal(t, "request", last.Message)
	assert.Equal(t, int64(http.StatusNoContent), last.ContextMap()["status"])
	assert.Equal(t, "/ping", last.ContextMap()["path"])
}

func TestMiddleware_GeneratesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware(zap.NewNop()))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, w.Header().Get(headerRequestID))
}
