package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/crawl"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
)

var errJobVanished = errors.New("job not found in registry after start")

// RunCrawl runs one crawl job in the foreground and returns its final
// snapshot. An interrupt requests a cooperative stop; the job still records
// the pages already dispatched.
func RunCrawl(ctx context.Context, deps *CommandDeps, db *DatabaseComponents, scope string, autoIngest bool) (domain.CrawlJob, error) {
	redisClient := connectRedis(deps)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	services, err := SetupServices(deps, db, redisClient, prometheus.NewRegistry())
	if err != nil {
		return domain.CrawlJob{}, fmt.Errorf("failed to setup services: %w", err)
	}

	if scope == "" {
		scope = deps.Config.Crawl.DefaultScope
	}

	jobID, err := services.Coordinator.Start(ctx, crawl.StartRequest{
		Scope:      scope,
		AutoIngest: autoIngest,
		Trigger:    domain.TriggerCLI,
	})
	if err != nil {
		return domain.CrawlJob{}, err
	}

	run, ok := services.Registry.Run(jobID)
	if !ok {
		return domain.CrawlJob{}, errJobVanished
	}

	sigChan := make(chan os.Signal, signalChannelBufferSize)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-run.Done():
	case sig := <-sigChan:
		deps.Logger.Info("Stopping crawl", logger.String("signal", sig.String()), logger.JobID(jobID))
		_ = services.Coordinator.Stop(ctx, jobID)
		<-run.Done()
	case <-ctx.Done():
		_ = services.Coordinator.Stop(context.WithoutCancel(ctx), jobID)
		<-run.Done()
	}

	// Wait for completion hooks before Redis is closed.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
	defer cancel()
	if shutdownErr := services.Coordinator.Shutdown(shutdownCtx); shutdownErr != nil {
		deps.Logger.Warn("Completion hooks did not finish", logger.Error(shutdownErr))
	}

	return run.Snapshot(), nil
}
