package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/metrics"
)

// APIPrefix is the path of the versioned API group.
const APIPrefix = "/api/v1"

// ServerBuilder provides a fluent API for building the HTTP server.
type ServerBuilder struct {
	config       *Config
	logger       logger.Logger
	setupRoutes  func(*gin.RouterGroup)
	healthChecks map[string]HealthChecker
	jwtSecret    string
	metrics      *metrics.Metrics
	gatherer     prometheus.Gatherer
	startedAt    time.Time
}

// NewServerBuilder creates a builder for serviceName listening on port.
func NewServerBuilder(serviceName string, port int) *ServerBuilder {
	return &ServerBuilder{
		config:       NewConfig(serviceName, port),
		healthChecks: make(map[string]HealthChecker),
		startedAt:    time.Now(),
	}
}

// WithLogger sets the logger.
func (b *ServerBuilder) WithLogger(log logger.Logger) *ServerBuilder {
	b.logger = log
	return b
}

// WithDebug enables or disables Gin debug mode.
func (b *ServerBuilder) WithDebug(debug bool) *ServerBuilder {
	b.config.Debug = debug
	return b
}

// WithVersion sets the version reported by /health.
func (b *ServerBuilder) WithVersion(version string) *ServerBuilder {
	b.config.ServiceVersion = version
	return b
}

// WithCORSOrigins sets allowed CORS origins.
func (b *ServerBuilder) WithCORSOrigins(origins []string) *ServerBuilder {
	b.config.CORS.AllowedOrigins = origins
	return b
}

// WithTimeouts sets the read, write and idle timeouts.
func (b *ServerBuilder) WithTimeouts(read, write, idle time.Duration) *ServerBuilder {
	b.config.ReadTimeout = read
	b.config.WriteTimeout = write
	b.config.IdleTimeout = idle
	return b
}

// WithJWTAuth protects the API group. An empty secret leaves it open.
func (b *ServerBuilder) WithJWTAuth(secret string) *ServerBuilder {
	b.jwtSecret = secret
	return b
}

// WithHealthCheck adds a named /health check.
func (b *ServerBuilder) WithHealthCheck(name string, checker HealthChecker) *ServerBuilder {
	b.healthChecks[name] = checker
	return b
}

// WithMetrics records request metrics and serves gatherer on /metrics.
func (b *ServerBuilder) WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) *ServerBuilder {
	b.metrics = m
	b.gatherer = gatherer
	return b
}

// WithRoutes sets the function that registers routes on the API group.
func (b *ServerBuilder) WithRoutes(setup func(api *gin.RouterGroup)) *ServerBuilder {
	b.setupRoutes = setup
	return b
}

// Build creates the server.
func (b *ServerBuilder) Build() *Server {
	if b.logger == nil {
		b.logger = logger.Must(logger.Config{Level: "info", Development: b.config.Debug})
	}

	var extra []gin.HandlerFunc
	if b.metrics != nil {
		extra = append(extra, b.metrics.Middleware())
	}

	setup := func(router *gin.Engine) {
		RegisterHealthRoutes(router, b.config.ServiceName, b.config.ServiceVersion, b.startedAt, b.healthChecks)

		if b.gatherer != nil {
			router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(b.gatherer, promhttp.HandlerOpts{})))
		}

		api := router.Group(APIPrefix)
		if b.jwtSecret != "" {
			api.Use(JWTMiddleware(b.jwtSecret))
		}
		if b.setupRoutes != nil {
			b.setupRoutes(api)
		}
	}

	return NewServer(b.config, b.logger, setup, extra...)
}
