package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pilab-dev/shadow-auth/config"
	"github.com/pilab-dev/shadow-auth/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.ServerConfig {
	return &config.ServerConfig{HTTPPort: "0", OtelServiceName: "test", OAuthHTTPTimeout: 10 * time.Second}
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := log.NewZerologAdapterWithWriter(zerolog.InfoLevel, &buf)

	healthy := true
	router := NewRouter(testConfig(), logger, Deps{Health: func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Contains(t, buf.String(), `"path":"/healthz"`)

	healthy = false
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_requests_total", Help: "test"})
	require.NoError(t, reg.Register(counter))
	counter.Inc()

	logger := log.NewZerologAdapterWithWriter(zerolog.Disabled, &bytes.Buffer{})
	router := NewRouter(testConfig(), logger, Deps{Gatherer: reg})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_requests_total 1")
}

func TestNewHTTPServer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := log.NewZerologAdapterWithWriter(zerolog.Disabled, &bytes.Buffer{})
	srv := NewHTTPServer(testConfig(), logger, Deps{})
	assert.Equal(t, ":0", srv.Addr)
	assert.Equal(t, 30*time.Second, srv.WriteTimeout)
}
