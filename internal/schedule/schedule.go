// Package schedule fires recurring crawls from per-scope daily schedules.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/crawl"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/metrics"
)

const (
	// DefaultPollSpec is how often due schedules are checked.
	DefaultPollSpec = "@every 1m"

	hoursPerDay    = 24
	maxHour        = 23
	maxMinute      = 59
	halfDayOffset  = 12
	tickTimeout    = 30 * time.Second
	recordTimeout  = 10 * time.Second
	maxRunsPerDay  = 2
	defaultRunHour = 6
)

// Store persists schedule configs.
type Store interface {
	EnsureDefault(ctx context.Context, cfg domain.ScheduleConfig) error
	Get(ctx context.Context, scope string) (*domain.ScheduleConfig, error)
	Save(ctx context.Context, cfg domain.ScheduleConfig) (*domain.ScheduleConfig, error)
	ListDue(ctx context.Context, now time.Time) ([]domain.ScheduleConfig, error)
	SetNextRun(ctx context.Context, scope string, next *time.Time) error
	RecordRun(ctx context.Context, scope string, finishedAt time.Time, status domain.JobStatus, changes int) error
}

// Starter starts crawl jobs. *crawl.Coordinator satisfies it.
type Starter interface {
	Start(ctx context.Context, req crawl.StartRequest) (string, error)
}

// Config configures a Manager.
type Config struct {
	PollSpec          string
	DefaultHourUTC    int
	DefaultMinuteUTC  int
	DefaultRunsPerDay int
}

// UpdateRequest holds the client-settable schedule fields.
type UpdateRequest struct {
	Enabled    bool `json:"enabled"`
	HourUTC    int  `json:"hour_utc"`
	MinuteUTC  int  `json:"minute_utc"`
	RunsPerDay int  `json:"runs_per_day"`
	AutoIngest bool `json:"auto_ingest"`
}

// Manager owns the poll loop and schedule bookkeeping.
type Manager struct {
	cfg     Config
	store   Store
	starter Starter
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	cron *cron.Cron
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics records schedule trigger metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mg *Manager) { mg.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(mg *Manager) { mg.now = now }
}

// NewManager creates a schedule manager.
func NewManager(cfg Config, store Store, starter Starter, log logger.Logger, opts ...Option) *Manager {
	if cfg.PollSpec == "" {
		cfg.PollSpec = DefaultPollSpec
	}
	if cfg.DefaultRunsPerDay < 1 || cfg.DefaultRunsPerDay > maxRunsPerDay {
		cfg.DefaultRunsPerDay = 1
	}
	if cfg.DefaultHourUTC < 0 || cfg.DefaultHourUTC > maxHour {
		cfg.DefaultHourUTC = defaultRunHour
	}

	m := &Manager{
		cfg:     cfg,
		store:   store,
		starter: starter,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	cronLog := cronLogger{log: log}
	m.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog)),
	)
	return m
}

// Start begins polling. Call Stop to end it.
func (m *Manager) Start() error {
	if _, err := m.cron.AddFunc(m.cfg.PollSpec, m.poll); err != nil {
		return fmt.Errorf("schedule poll %q: %w", m.cfg.PollSpec, err)
	}
	m.cron.Start()
	m.log.Info("Schedule manager started", logger.String("poll_spec", m.cfg.PollSpec))
	return nil
}

// Stop halts polling and waits for an in-flight tick or ctx.
func (m *Manager) Stop(ctx context.Context) error {
	stopped := m.cron.Stop()
	select {
	case <-stopped.Done():
		m.log.Info("Schedule manager stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()
	if err := m.Tick(ctx, m.now()); err != nil {
		m.log.Error("Schedule tick failed", logger.Error(err))
	}
}

// Tick starts a crawl for every enabled schedule due at now and moves each
// schedule's next run forward. A scope whose previous job is still running
// is skipped, not queued.
func (m *Manager) Tick(ctx context.Context, now time.Time) error {
	due, err := m.store.ListDue(ctx, now)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	for i := range due {
		cfg := due[i]
		m.fire(ctx, cfg)

		next := NextRun(cfg, now)
		if setErr := m.store.SetNextRun(ctx, cfg.Scope, &next); setErr != nil {
			m.log.Error("Failed to advance schedule",
				logger.Scope(cfg.Scope),
				logger.Error(setErr),
			)
		}
	}

	return nil
}

func (m *Manager) fire(ctx context.Context, cfg domain.ScheduleConfig) {
	jobID, err := m.starter.Start(ctx, crawl.StartRequest{
		Scope:      cfg.Scope,
		AutoIngest: cfg.AutoIngest,
		Trigger:    domain.TriggerSchedule,
	})

	result := "started"
	switch {
	case errors.Is(err, domain.ErrConflict):
		result = "skipped"
		m.log.Info("Scheduled crawl skipped, job already running", logger.Scope(cfg.Scope))
	case err != nil:
		result = "error"
		m.log.Error("Scheduled crawl failed to start", logger.Scope(cfg.Scope), logger.Error(err))
	default:
		m.log.Info("Scheduled crawl started",
			logger.Scope(cfg.Scope),
			logger.JobID(jobID),
			logger.Bool("auto_ingest", cfg.AutoIngest),
		)
	}

	if m.metrics != nil {
		m.metrics.ScheduleTriggered(result)
	}
}

// RunNow starts the scope's crawl immediately with the scope's auto-ingest
// setting. It fails with a ConflictError when a job is already running.
func (m *Manager) RunNow(ctx context.Context, scope string) (string, error) {
	if scope == "" {
		scope = domain.DefaultScope
	}

	autoIngest := false
	cfg, err := m.store.Get(ctx, scope)
	switch {
	case err == nil:
		autoIngest = cfg.AutoIngest
	case !errors.Is(err, domain.ErrNotFound):
		return "", err
	}

	return m.starter.Start(ctx, crawl.StartRequest{
		Scope:      scope,
		AutoIngest: autoIngest,
		Trigger:    domain.TriggerRunNow,
	})
}

// Get returns the schedule for scope with next_run_at derived.
func (m *Manager) Get(ctx context.Context, scope string) (*domain.ScheduleConfig, error) {
	if scope == "" {
		scope = domain.DefaultScope
	}

	cfg, err := m.store.Get(ctx, scope)
	if err != nil {
		return nil, err
	}

	if !cfg.Enabled {
		cfg.NextRunAt = nil
	} else if cfg.NextRunAt == nil {
		next := NextRun(*cfg, m.now())
		cfg.NextRunAt = &next
	}
	return cfg, nil
}

// Update validates and stores the client-settable fields and recomputes
// next_run_at.
func (m *Manager) Update(ctx context.Context, scope string, req UpdateRequest) (*domain.ScheduleConfig, error) {
	if scope == "" {
		scope = domain.DefaultScope
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	cfg := domain.ScheduleConfig{
		Scope:      scope,
		Enabled:    req.Enabled,
		HourUTC:    req.HourUTC,
		MinuteUTC:  req.MinuteUTC,
		RunsPerDay: req.RunsPerDay,
		AutoIngest: req.AutoIngest,
	}
	if cfg.Enabled {
		next := NextRun(cfg, m.now())
		cfg.NextRunAt = &next
	}

	saved, err := m.store.Save(ctx, cfg)
	if err != nil {
		return nil, err
	}

	m.log.Info("Schedule updated",
		logger.Scope(scope),
		logger.Bool("enabled", saved.Enabled),
		logger.Int("hour_utc", saved.HourUTC),
		logger.Int("minute_utc", saved.MinuteUTC),
		logger.Int("runs_per_day", saved.RunsPerDay),
	)
	return saved, nil
}

func validate(req UpdateRequest) error {
	switch {
	case req.HourUTC < 0 || req.HourUTC > maxHour:
		return &domain.ValidationError{Field: "hour_utc", Message: "must be between 0 and 23"}
	case req.MinuteUTC < 0 || req.MinuteUTC > maxMinute:
		return &domain.ValidationError{Field: "minute_utc", Message: "must be between 0 and 59"}
	case req.RunsPerDay < 1 || req.RunsPerDay > maxRunsPerDay:
		return &domain.ValidationError{Field: "runs_per_day", Message: "must be 1 or 2"}
	default:
		return nil
	}
}

// EnsureDefaults creates a disabled schedule row for every scope that has
// none.
func (m *Manager) EnsureDefaults(ctx context.Context, scopes []string) error {
	for _, scope := range scopes {
		cfg := domain.ScheduleConfig{
			Scope:      scope,
			HourUTC:    m.cfg.DefaultHourUTC,
			MinuteUTC:  m.cfg.DefaultMinuteUTC,
			RunsPerDay: m.cfg.DefaultRunsPerDay,
		}
		if err := m.store.EnsureDefault(ctx, cfg); err != nil {
			return err
		}
	}
	return nil
}

// HandleJobFinished records the outcome of scheduled and run-now jobs. It is
// registered as a crawl completion hook.
func (m *Manager) HandleJobFinished(job domain.CrawlJob) {
	if job.Trigger != domain.TriggerSchedule && job.Trigger != domain.TriggerRunNow {
		return
	}

	finishedAt := m.now().UTC()
	if job.FinishedAt != nil {
		finishedAt = *job.FinishedAt
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := m.store.RecordRun(ctx, job.Scope, finishedAt, job.Status, job.SubstantiveChanges); err != nil {
		m.log.Error("Failed to record scheduled run",
			logger.Scope(job.Scope),
			logger.JobID(job.JobID),
			logger.Error(err),
		)
	}
}

// NextRun returns the earliest run slot of cfg strictly after after. With
// two runs per day the second slot is twelve hours after the first.
func NextRun(cfg domain.ScheduleConfig, after time.Time) time.Time {
	after = after.UTC()
	hours := []int{cfg.HourUTC}
	if cfg.RunsPerDay == maxRunsPerDay {
		hours = append(hours, (cfg.HourUTC+halfDayOffset)%hoursPerDay)
	}

	var best time.Time
	for dayOffset := 0; dayOffset <= 1; dayOffset++ {
		day := after.AddDate(0, 0, dayOffset)
		for _, h := range hours {
			slot := time.Date(day.Year(), day.Month(), day.Day(), h, cfg.MinuteUTC, 0, 0, time.UTC)
			if slot.After(after) && (best.IsZero() || slot.Before(best)) {
				best = slot
			}
		}
	}
	return best
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, logger.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, logger.Error(err), logger.Any("details", keysAndValues))
}
