// Package bootstrap handles application initialization and lifecycle
// management for the page monitor.
//
// The bootstrap process follows these phases:
//   - Phase 1: Config & Logger - Load configuration and create logger
//   - Phase 2: Database - Connect to PostgreSQL, migrate, create repositories
//   - Phase 3: Redis - Connect when enabled (job history, change notifications)
//   - Phase 4: Services - Fetcher, classifier, change log, crawl coordinator, scheduler
//   - Phase 5: Server - Create and start the HTTP server
//   - Phase 6: Run - Wait for interrupt signal or error
package bootstrap

import (
	"errors"
	"fmt"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/config"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
)

var (
	errLoggerRequired = errors.New("logger is required")
	errConfigRequired = errors.New("config is required")
)

// CommandDeps holds the dependencies shared by every command.
type CommandDeps struct {
	Logger logger.Logger
	Config *config.Config
}

// Validate checks that required dependencies are set.
func (d *CommandDeps) Validate() error {
	if d.Logger == nil {
		return errLoggerRequired
	}
	if d.Config == nil {
		return errConfigRequired
	}
	return nil
}

// NewCommandDeps loads config from configPath (CONFIG_PATH wins when set)
// and creates the logger. debug forces debug logging.
func NewCommandDeps(configPath string, debug bool) (*CommandDeps, error) {
	cfg, err := config.Load(config.GetConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if debug {
		cfg.Service.Debug = true
	}

	log, err := CreateLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	log = log.With(logger.String("service", cfg.Service.Name))

	deps := &CommandDeps{Logger: log, Config: cfg}
	if validateErr := deps.Validate(); validateErr != nil {
		return nil, fmt.Errorf("validate deps: %w", validateErr)
	}
	return deps, nil
}

// CreateLogger creates the zap-backed logger from configuration.
func CreateLogger(cfg *config.Config) (logger.Logger, error) {
	level := cfg.Logging.Level
	if cfg.Service.Debug {
		level = "debug"
	}

	return logger.New(logger.Config{
		Level:       level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
}
