package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	authgin "github.com/pilab-dev/shadow-auth/api/gin"
	"github.com/pilab-dev/shadow-auth/config"
	"github.com/pilab-dev/shadow-auth/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// HealthCheck reports whether a backing dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps holds what the HTTP server needs beyond configuration.
type Deps struct {
	LoginAPI *authgin.LoginAPI
	Gatherer prometheus.Gatherer
	Health   HealthCheck
}

// NewRouter builds the gin engine with middleware and routes registered.
func NewRouter(cfg *config.ServerConfig, appLogger log.Logger, deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	if zl, ok := log.Zerolog(appLogger); ok {
		router.Use(authgin.RequestContext(zl))
	}

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := log.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}
		if id, ok := c.Get(authgin.RequestIDKey); ok {
			fields["request_id"] = id
		}
		if len(c.Errors) > 0 {
			appLogger.Error(c.Request.Context(), "HTTP Request", c.Errors.Last().Err, fields)
		} else {
			appLogger.Info(c.Request.Context(), "HTTP Request", fields)
		}
	})

	router.Use(otelgin.Middleware(cfg.OtelServiceName))

	if deps.LoginAPI != nil {
		deps.LoginAPI.RegisterRoutes(router)
	} else {
		appLogger.Error(context.Background(), "LoginAPI not provided, login routes are not registered", nil)
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	router.GET("/healthz", func(c *gin.Context) {
		if deps.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// NewHTTPServer wraps the router in an http.Server listening on cfg.HTTPPort.
func NewHTTPServer(cfg *config.ServerConfig, appLogger log.Logger, deps Deps) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           NewRouter(cfg, appLogger, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		// Callbacks wait on the provider, so leave room for OAUTH_HTTP_TIMEOUT.
		WriteTimeout: cfg.OAuthHTTPTimeout*2 + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
