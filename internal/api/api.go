// Package api implements the HTTP API of the page monitor.
package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/crawl"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/schedule"
)

// Crawler starts and stops crawl jobs.
type Crawler interface {
	Start(ctx context.Context, req crawl.StartRequest) (string, error)
	Stop(ctx context.Context, jobID string) error
}

// JobReader reads crawl job snapshots.
type JobReader interface {
	Get(ctx context.Context, id string) (domain.CrawlJob, error)
	List(ctx context.Context, scope string, limit int) []domain.CrawlJob
}

// PageStore manages monitored pages.
type PageStore interface {
	Add(ctx context.Context, scope, rawURL, category string) (*domain.MonitoredPage, error)
	Get(ctx context.Context, id string) (*domain.MonitoredPage, error)
	List(ctx context.Context, scope string, filter domain.PageFilter) ([]domain.MonitoredPage, int, error)
	SetStatus(ctx context.Context, id string, status domain.PageStatus) error
	Remove(ctx context.Context, id string) error
}

// ChangeService is the change log review workflow.
type ChangeService interface {
	Get(ctx context.Context, id string) (*domain.ChangeLogEntry, error)
	ListPending(ctx context.Context, scope string, limit, offset int) ([]domain.ChangeLogEntry, int, error)
	ListRecent(ctx context.Context, scope string, filter domain.ChangeFilter) ([]domain.ChangeLogEntry, int, error)
	Approve(ctx context.Context, id string) (*domain.ChangeLogEntry, error)
	Dismiss(ctx context.Context, id string) (*domain.ChangeLogEntry, error)
	Reingest(ctx context.Context, id string) (*domain.ChangeLogEntry, error)
}

// Scheduler reads and updates per-scope schedules.
type Scheduler interface {
	Get(ctx context.Context, scope string) (*domain.ScheduleConfig, error)
	Update(ctx context.Context, scope string, req schedule.UpdateRequest) (*domain.ScheduleConfig, error)
	RunNow(ctx context.Context, scope string) (string, error)
}

// DocumentStore lists discovered documents.
type DocumentStore interface {
	ListPending(ctx context.Context, scope string, limit int) ([]domain.DiscoveredDocument, error)
}

// Deps are the services behind the API. Documents may be nil when
// discovery is disabled.
type Deps struct {
	Crawler      Crawler
	Jobs         JobReader
	Pages        PageStore
	Changes      ChangeService
	Schedule     Scheduler
	Documents    DocumentStore
	DefaultScope string
	Logger       logger.Logger
}

// Handlers holds the HTTP handlers.
type Handlers struct {
	crawler      Crawler
	jobs         JobReader
	pages        PageStore
	changes      ChangeService
	schedule     Scheduler
	documents    DocumentStore
	defaultScope string
	logger       logger.Logger
}

// NewHandlers creates the handlers.
func NewHandlers(deps Deps) *Handlers {
	scope := deps.DefaultScope
	if scope == "" {
		scope = domain.DefaultScope
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &Handlers{
		crawler:      deps.Crawler,
		jobs:         deps.Jobs,
		pages:        deps.Pages,
		changes:      deps.Changes,
		schedule:     deps.Schedule,
		documents:    deps.Documents,
		defaultScope: scope,
		logger:       log,
	}
}

// RegisterRoutes registers every endpoint on the API group.
func (h *Handlers) RegisterRoutes(api *gin.RouterGroup) {
	crawlGroup := api.Group("/crawl")
	crawlGroup.POST("/start", h.StartCrawl)
	crawlGroup.GET("/status/:job_id", h.CrawlStatus)
	crawlGroup.GET("/jobs", h.ListJobs)
	crawlGroup.POST("/stop/:job_id", h.StopCrawl)

	pages := api.Group("/pages")
	pages.GET("", h.ListPages)
	pages.POST("", h.AddPage)
	pages.GET("/:id", h.GetPage)
	pages.PATCH("/:id", h.UpdatePage)
	pages.DELETE("/:id", h.DeletePage)

	changes := api.Group("/changes")
	changes.GET("", h.ListChanges)
	changes.GET("/recent", h.RecentChanges)
	changes.GET("/pending", h.PendingChanges)
	changes.GET("/:id", h.GetChange)
	changes.POST("/:id/approve", h.ApproveChange)
	changes.POST("/:id/dismiss", h.DismissChange)
	changes.POST("/:id/reingest", h.ReingestChange)

	sched := api.Group("/schedule")
	sched.GET("", h.GetSchedule)
	sched.POST("", h.UpdateSchedule)
	sched.POST("/run-now", h.RunScheduleNow)

	if h.documents != nil {
		api.GET("/documents/pending", h.PendingDocuments)
	}
}
