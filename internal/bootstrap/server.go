package bootstrap

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/api"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/server"
)

// ServerComponents holds the HTTP server and its error channel.
type ServerComponents struct {
	Server    *server.Server
	ErrorChan <-chan error
}

// SetupHTTPServer builds the HTTP server and starts it asynchronously.
func SetupHTTPServer(
	deps *CommandDeps,
	db *DatabaseComponents,
	services *ServiceComponents,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
) *ServerComponents {
	cfg := deps.Config

	apiDeps := api.Deps{
		Crawler:      services.Coordinator,
		Jobs:         services.Registry,
		Pages:        db.Pages,
		Changes:      services.Changes,
		Schedule:     services.Schedule,
		DefaultScope: cfg.Crawl.DefaultScope,
		Logger:       deps.Logger,
	}
	if cfg.Discovery.Enabled {
		apiDeps.Documents = db.Documents
	}
	handlers := api.NewHandlers(apiDeps)

	builder := server.NewServerBuilder(cfg.Service.Name, cfg.Service.Port).
		WithLogger(deps.Logger).
		WithDebug(cfg.Service.Debug).
		WithVersion(cfg.Service.Version).
		WithJWTAuth(cfg.Auth.JWTSecret).
		WithMetrics(services.Metrics, gatherer).
		WithHealthCheck("database", server.PingChecker("Database", server.HealthStatusUnhealthy, db.DB.PingContext)).
		WithRoutes(func(group *gin.RouterGroup) {
			handlers.RegisterRoutes(group)
		})

	if redisClient != nil {
		builder.WithHealthCheck("redis", server.PingChecker("Redis", server.HealthStatusDegraded,
			func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }))
	}

	if cfg.Auth.JWTSecret == "" {
		deps.Logger.Warn("AUTH_JWT_SECRET is not set; the API is unauthenticated")
	}

	srv := builder.Build()
	return &ServerComponents{
		Server:    srv,
		ErrorChan: srv.StartAsync(),
	}
}
