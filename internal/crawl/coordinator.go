// Package crawl runs crawl jobs: it fetches every monitored page of a scope,
// classifies what changed and records the outcome through a single writer.
package crawl

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/classifier"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/database"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/discovery"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/fetcher"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/ingest"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/jobs"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/metrics"
)

const (
	// DefaultWorkers is the fetch concurrency of one job.
	DefaultWorkers = 4
	// DefaultRequestDelay is the minimum gap between page dispatches.
	DefaultRequestDelay = 300 * time.Millisecond
)

// ErrShuttingDown is returned by Start after Shutdown.
var ErrShuttingDown = errors.New("crawl coordinator is shutting down")

// PageStore is the page registry as the coordinator uses it.
type PageStore interface {
	ListForCrawl(ctx context.Context, scope string) ([]domain.MonitoredPage, error)
	UpsertAfterCrawl(ctx context.Context, p database.UpsertParams) error
	Seed(ctx context.Context, scope string, urls []string) (int, error)
}

// ChangeLog records detected changes.
type ChangeLog interface {
	Append(ctx context.Context, entry *domain.ChangeLogEntry) error
	AutoIngest(ctx context.Context, entry *domain.ChangeLogEntry, text string) error
}

// PageFetcher fetches and normalizes one page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Result, error)
}

// DocumentStore tracks documents found by discovery.
type DocumentStore interface {
	RecordNew(ctx context.Context, doc *domain.DiscoveredDocument) (bool, error)
	MarkIngested(ctx context.Context, scope, url string) error
	ListPending(ctx context.Context, scope string, limit int) ([]domain.DiscoveredDocument, error)
}

// Discoverer finds new pages and documents.
type Discoverer interface {
	Discover(ctx context.Context) (discovery.Result, error)
}

// CompletionHook is called with the final snapshot of every job.
type CompletionHook func(job domain.CrawlJob)

// StartRequest describes a crawl to start.
type StartRequest struct {
	Scope      string
	AutoIngest bool
	Trigger    domain.Trigger
}

// Config tunes the coordinator.
type Config struct {
	Workers      int
	RequestDelay time.Duration
}

// Coordinator starts and supervises crawl jobs.
type Coordinator struct {
	cfg      Config
	registry *jobs.Registry
	pages    PageStore
	changes  ChangeLog
	fetch    PageFetcher
	classify *classifier.Classifier
	log      logger.Logger

	discover Discoverer
	docs     DocumentStore
	bridge   ingest.Bridge
	metrics  *metrics.Metrics

	hooksMu sync.RWMutex
	hooks   []CompletionHook

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDiscovery enables the discovery phase. Documents it finds are recorded
// in docs and, for auto-ingest jobs, handed to bridge.
func WithDiscovery(d Discoverer, docs DocumentStore, bridge ingest.Bridge) Option {
	return func(c *Coordinator) {
		c.discover = d
		c.docs = docs
		c.bridge = bridge
	}
}

// WithMetrics records job and page metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// NewCoordinator creates a coordinator. Jobs run on an internal context that
// outlives the callers of Start and is cancelled by Shutdown.
func NewCoordinator(
	cfg Config,
	registry *jobs.Registry,
	pages PageStore,
	changes ChangeLog,
	fetch PageFetcher,
	classify *classifier.Classifier,
	log logger.Logger,
	opts ...Option,
) *Coordinator {
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.RequestDelay < 0 {
		cfg.RequestDelay = 0
	}
	if classify == nil {
		classify = classifier.New(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		cfg:      cfg,
		registry: registry,
		pages:    pages,
		changes:  changes,
		fetch:    fetch,
		classify: classify,
		log:      log,
		baseCtx:  ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnComplete registers a hook run after every job reaches a terminal status.
func (c *Coordinator) OnComplete(hook CompletionHook) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.hooks = append(c.hooks, hook)
}

// Start creates a job and runs it in the background. It returns a
// ConflictError when the scope already has a running job.
func (c *Coordinator) Start(_ context.Context, req StartRequest) (string, error) {
	if c.baseCtx.Err() != nil {
		return "", ErrShuttingDown
	}
	if req.Trigger == "" {
		req.Trigger = domain.TriggerManual
	}

	run, err := c.registry.Create(req.Scope, req.AutoIngest, req.Trigger)
	if err != nil {
		return "", err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(run)
	}()

	return run.ID(), nil
}

// Stop requests a cooperative stop of a job.
func (c *Coordinator) Stop(ctx context.Context, jobID string) error {
	return c.registry.RequestStop(ctx, jobID)
}

// Registry exposes the job registry for status reads.
func (c *Coordinator) Registry() *jobs.Registry {
	return c.registry
}

// Shutdown cancels running jobs and waits for them to finish or for ctx to
// expire.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) run(run *jobs.Run) {
	snap := run.Snapshot()
	log := c.log.With(logger.Scope(snap.Scope), logger.JobID(snap.JobID))
	ctx := logger.WithContext(c.baseCtx, log)

	if c.metrics != nil {
		c.metrics.JobStarted()
	}

	pages, err := c.pages.ListForCrawl(ctx, snap.Scope)
	if err != nil {
		log.Error("Failed to load pages for crawl", logger.Error(err))
		c.finish(run, domain.JobError, err.Error())
		return
	}

	run.Update(func(j *domain.CrawlJob) {
		j.TotalPages = len(pages)
		j.Status = domain.JobRunning
	})
	log.Info("Crawl started", logger.Int("total_pages", len(pages)))

	c.crawlPages(ctx, run, pages, log)

	if !c.stopped(run) && c.discover != nil {
		c.runDiscovery(ctx, run, log)
	}

	status := domain.JobComplete
	if c.stopped(run) {
		status = domain.JobStopped
	}
	c.finish(run, status, "")
}

func (c *Coordinator) stopped(run *jobs.Run) bool {
	return run.StopRequested() || c.baseCtx.Err() != nil
}

func (c *Coordinator) finish(run *jobs.Run, status domain.JobStatus, errMsg string) {
	snap := run.Finish(status, errMsg)

	if c.metrics != nil {
		c.metrics.JobFinished(snap)
	}

	c.hooksMu.RLock()
	hooks := append([]CompletionHook(nil), c.hooks...)
	c.hooksMu.RUnlock()

	for _, hook := range hooks {
		hook(snap)
	}
}
