package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
)

// Start runs the HTTP service and the scheduler until interrupted.
func Start(configPath string, debug bool) error {
	ctx := context.Background()

	// Phase 1: config and logger
	deps, err := NewCommandDeps(configPath, debug)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer func() { _ = deps.Logger.Sync() }()

	// Phase 2: database
	db, err := SetupDatabase(ctx, deps.Config, deps.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	// Phase 3: Redis (optional)
	redisClient := connectRedis(deps)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	// Phase 4: services
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	services, err := SetupServices(deps, db, redisClient, registry)
	if err != nil {
		return fmt.Errorf("failed to setup services: %w", err)
	}

	if err = services.Schedule.EnsureDefaults(ctx, deps.Config.Schedule.Scopes); err != nil {
		return fmt.Errorf("failed to create default schedules: %w", err)
	}
	if deps.Config.Schedule.Enabled {
		if err = services.Schedule.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		deps.Logger.Info("Schedule poller disabled")
	}

	// Phase 5: HTTP server
	serverComponents := SetupHTTPServer(deps, db, services, redisClient, registry)

	// Phase 6: run until interrupt or error
	return RunUntilInterrupt(
		deps.Logger,
		serverComponents.Server,
		services.Schedule,
		services.Coordinator,
		serverComponents.ErrorChan,
	)
}

// connectRedis returns nil when Redis is disabled or unreachable; every
// Redis-backed feature is optional.
func connectRedis(deps *CommandDeps) *redis.Client {
	client, err := CreateRedisClient(deps.Config.Redis)
	switch {
	case errors.Is(err, ErrRedisDisabled):
		deps.Logger.Info("Redis disabled; job history is in-memory only")
		return nil
	case err != nil:
		deps.Logger.Warn("Redis unavailable; continuing without it", logger.Error(err))
		return nil
	default:
		return client
	}
}
