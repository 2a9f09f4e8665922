package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/changelog"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/classifier"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/config"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/crawl"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/discovery"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/fetcher"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/ingest"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/jobs"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/metrics"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/notify"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/schedule"
)

const notifyTimeout = 5 * time.Second

// ServiceComponents holds the constructed services.
type ServiceComponents struct {
	Metrics     *metrics.Metrics
	Registry    *jobs.Registry
	Coordinator *crawl.Coordinator
	Changes     *changelog.Service
	Schedule    *schedule.Manager
}

// SetupServices builds the crawl pipeline on top of the repositories.
// redisClient may be nil. reg receives the Prometheus collectors; nil uses
// the default registerer.
func SetupServices(
	deps *CommandDeps,
	db *DatabaseComponents,
	redisClient *redis.Client,
	reg prometheus.Registerer,
) (*ServiceComponents, error) {
	cfg := deps.Config
	log := deps.Logger

	m := metrics.NewMetrics(reg)

	fetch, err := fetcher.New(fetcher.Config{
		UserAgent:           cfg.Fetcher.UserAgent,
		Timeout:             cfg.Fetcher.Timeout,
		MaxBodyBytes:        cfg.Fetcher.MaxBodyBytes,
		TitleSuffixPattern:  cfg.Fetcher.TitleSuffixPattern,
		BoilerplatePatterns: cfg.Fetcher.BoilerplatePatterns,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}

	policy, err := classifier.NewThresholdPolicy(
		cfg.Classifier.MaxCosmeticLines,
		cfg.Classifier.CosmeticPatterns,
		cfg.Classifier.RequireCosmetic(),
	)
	if err != nil {
		return nil, fmt.Errorf("create classifier policy: %w", err)
	}

	bridge, err := NewBridge(cfg.Ingest, log)
	if err != nil {
		return nil, fmt.Errorf("create ingestion bridge: %w", err)
	}

	changes := changelog.NewService(db.Changes, bridge, log,
		changelog.WithIngestTimeout(cfg.Ingest.Timeout),
		changelog.WithIngestObserver(m.Ingested),
		changelog.WithPageLookup(db.Pages),
	)

	registryOpts := []jobs.Option{jobs.WithRetention(cfg.Crawl.JobRetention)}
	if redisClient != nil {
		registryOpts = append(registryOpts, jobs.WithHistory(jobs.NewRedisHistory(redisClient, cfg.Redis.HistoryTTL)))
	}
	registry := jobs.NewRegistry(log, registryOpts...)

	coordOpts := []crawl.Option{crawl.WithMetrics(m)}
	if cfg.Discovery.Enabled {
		disc, discErr := discovery.New(fetch, discoverySources(cfg.Discovery.Sources), log)
		if discErr != nil {
			return nil, fmt.Errorf("create discovery: %w", discErr)
		}
		coordOpts = append(coordOpts, crawl.WithDiscovery(disc, db.Documents, bridge))
	}

	coordinator := crawl.NewCoordinator(
		crawl.Config{Workers: cfg.Crawl.Workers, RequestDelay: cfg.Crawl.RequestDelay},
		registry,
		db.Pages,
		changes,
		fetch,
		classifier.New(policy.IsSubstantive),
		log,
		coordOpts...,
	)
	coordinator.OnComplete(notifyHook(newNotifier(redisClient, cfg.Redis, log), log))

	manager := schedule.NewManager(schedule.Config{
		PollSpec:          cfg.Schedule.PollSpec,
		DefaultHourUTC:    cfg.Schedule.DefaultHourUTC,
		DefaultMinuteUTC:  cfg.Schedule.DefaultMinuteUTC,
		DefaultRunsPerDay: cfg.Schedule.DefaultRunsPerDay,
	}, db.Schedules, coordinator, log, schedule.WithMetrics(m))
	coordinator.OnComplete(manager.HandleJobFinished)

	return &ServiceComponents{
		Metrics:     m,
		Registry:    registry,
		Coordinator: coordinator,
		Changes:     changes,
		Schedule:    manager,
	}, nil
}

// NewBridge selects the ingestion bridge for the configured driver.
func NewBridge(cfg config.IngestConfig, log logger.Logger) (ingest.Bridge, error) {
	switch cfg.Driver {
	case config.IngestDriverHTTP:
		return ingest.NewHTTPBridge(ingest.HTTPConfig{
			URL:     cfg.HTTP.URL,
			APIKey:  cfg.HTTP.APIKey,
			Timeout: cfg.Timeout,
			Retry:   ingest.RetryConfig{MaxAttempts: cfg.HTTP.MaxAttempts},
			Breaker: ingest.BreakerConfig{
				FailureThreshold: cfg.HTTP.FailureThreshold,
				Cooldown:         cfg.HTTP.Cooldown,
				OnStateChange: func(from, to ingest.BreakerState) {
					log.Warn("Ingestion circuit breaker state changed",
						logger.String("from", from.String()),
						logger.String("to", to.String()),
					)
				},
			},
		}, nil), nil
	case config.IngestDriverElasticsearch:
		bridge, err := ingest.NewElasticsearchBridge(ingest.ElasticsearchConfig{
			URL:      cfg.Elasticsearch.URL,
			Index:    cfg.Elasticsearch.Index,
			APIKey:   cfg.Elasticsearch.APIKey,
			Username: cfg.Elasticsearch.Username,
			Password: cfg.Elasticsearch.Password,
		})
		if err != nil {
			return nil, err
		}
		return bridge, nil
	default:
		log.Info("Ingestion disabled; approvals will record ingestion failures")
		return ingest.NoopBridge{}, nil
	}
}

func discoverySources(in []config.DiscoverySourceConfig) []discovery.Source {
	out := make([]discovery.Source, 0, len(in))
	for _, s := range in {
		out = append(out, discovery.Source{
			Name:  s.Name,
			Kind:  discovery.Kind(s.Kind),
			URL:   s.URL,
			Match: s.Match,
		})
	}
	return out
}

func newNotifier(client *redis.Client, cfg config.RedisConfig, log logger.Logger) notify.Notifier {
	notifiers := notify.Multi{notify.NewLogNotifier(log)}
	if client != nil {
		notifiers = append(notifiers, notify.NewRedisNotifier(client, cfg.NotifyChannel))
	}
	return notifiers
}

func notifyHook(n notify.Notifier, log logger.Logger) crawl.CompletionHook {
	return func(job domain.CrawlJob) {
		summary, ok := notify.SummaryOf(job)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := n.NotifyChanges(ctx, summary); err != nil {
			log.Warn("Failed to publish change summary", logger.JobID(job.JobID), logger.Error(err))
		}
	}
}
