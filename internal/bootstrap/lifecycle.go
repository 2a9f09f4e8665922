package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/crawl"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/schedule"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/server"
)

const (
	signalChannelBufferSize = 1
	defaultShutdownTimeout  = 30 * time.Second
)

// RunUntilInterrupt runs until SIGINT/SIGTERM or a server error.
func RunUntilInterrupt(
	log logger.Logger,
	srv *server.Server,
	manager *schedule.Manager,
	coordinator *crawl.Coordinator,
	errChan <-chan error,
) error {
	sigChan := make(chan os.Signal, signalChannelBufferSize)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case serverErr, ok := <-errChan:
		if !ok {
			return nil
		}
		log.Error("Server error", logger.Error(serverErr))
		_ = Shutdown(log, srv, manager, coordinator)
		return fmt.Errorf("server error: %w", serverErr)
	case sig := <-sigChan:
		log.Info("Shutdown signal received", logger.String("signal", sig.String()))
		return Shutdown(log, srv, manager, coordinator)
	}
}

// Shutdown stops the scheduler first so no new jobs start, then the HTTP
// server, then waits for running crawls to record their dispatched pages.
func Shutdown(log logger.Logger, srv *server.Server, manager *schedule.Manager, coordinator *crawl.Coordinator) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if manager != nil {
		log.Info("Stopping schedule manager")
		if err := manager.Stop(ctx); err != nil {
			log.Error("Failed to stop schedule manager", logger.Error(err))
		}
	}

	var serverErr error
	if srv != nil {
		log.Info("Stopping HTTP server")
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to stop server", logger.Error(err))
			serverErr = fmt.Errorf("failed to stop server: %w", err)
		}
	}

	if coordinator != nil {
		log.Info("Stopping crawl jobs")
		if err := coordinator.Shutdown(ctx); err != nil {
			log.Error("Crawl jobs did not stop in time", logger.Error(err))
		}
	}

	if serverErr == nil {
		log.Info("Server stopped successfully")
	}
	return serverErr
}
