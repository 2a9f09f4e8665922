package schedule_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/crawl"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/schedule"
)

type memStore struct {
	mu      sync.Mutex
	configs map[string]domain.ScheduleConfig
	runs    []domain.CrawlJob
}

func newMemStore(cfgs ...domain.ScheduleConfig) *memStore {
	s := &memStore{configs: make(map[string]domain.ScheduleConfig)}
	for _, c := range cfgs {
		s.configs[c.Scope] = c
	}
	return s
}

func (s *memStore) EnsureDefault(_ context.Context, cfg domain.ScheduleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[cfg.Scope]; !ok {
		s.configs[cfg.Scope] = cfg
	}
	return nil
}

func (s *memStore) Get(_ context.Context, scope string) (*domain.ScheduleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[scope]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "schedule", ID: scope}
	}
	return &cfg, nil
}

func (s *memStore) Save(_ context.Context, cfg domain.ScheduleConfig) (*domain.ScheduleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.configs[cfg.Scope]
	cfg.LastRunAt, cfg.LastRunStatus, cfg.LastRunChanges = prev.LastRunAt, prev.LastRunStatus, prev.LastRunChanges
	s.configs[cfg.Scope] = cfg
	return &cfg, nil
}

func (s *memStore) ListDue(_ context.Context, now time.Time) ([]domain.ScheduleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []domain.ScheduleConfig
	for _, c := range s.configs {
		if c.Enabled && c.NextRunAt != nil && !c.NextRunAt.After(now) {
			due = append(due, c)
		}
	}
	return due, nil
}

func (s *memStore) SetNextRun(_ context.Context, scope string, next *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.configs[scope]
	c.NextRunAt = next
	s.configs[scope] = c
	return nil
}

func (s *memStore) RecordRun(_ context.Context, scope string, at time.Time, status domain.JobStatus, changes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.configs[scope]
	st := string(status)
	c.LastRunAt, c.LastRunStatus, c.LastRunChanges = &at, &st, &changes
	s.configs[scope] = c
	return nil
}

func (s *memStore) get(scope string) domain.ScheduleConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configs[scope]
}

type fakeStarter struct {
	mu       sync.Mutex
	requests []crawl.StartRequest
	err      error
}

func (f *fakeStarter) Start(_ context.Context, req crawl.StartRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.requests = append(f.requests, req)
	return "job-1", nil
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, 0, 0, time.UTC)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNextRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cfg   domain.ScheduleConfig
		after time.Time
		want  time.Time
	}{
		{
			name:  "later today",
			cfg:   domain.ScheduleConfig{HourUTC: 6, MinuteUTC: 30, RunsPerDay: 1},
			after: at(5, 0),
			want:  at(6, 30),
		},
		{
			name:  "exactly at slot moves to tomorrow",
			cfg:   domain.ScheduleConfig{HourUTC: 6, MinuteUTC: 30, RunsPerDay: 1},
			after: at(6, 30),
			want:  at(6, 30).AddDate(0, 0, 1),
		},
		{
			name:  "second daily slot",
			cfg:   domain.ScheduleConfig{HourUTC: 6, MinuteUTC: 0, RunsPerDay: 2},
			after: at(7, 0),
			want:  at(18, 0),
		},
		{
			name:  "second slot wraps past midnight",
			cfg:   domain.ScheduleConfig{HourUTC: 20, MinuteUTC: 15, RunsPerDay: 2},
			after: at(9, 0),
			want:  at(20, 15),
		},
		{
			name:  "wrapped slot is earliest",
			cfg:   domain.ScheduleConfig{HourUTC: 20, MinuteUTC: 15, RunsPerDay: 2},
			after: at(7, 0),
			want:  at(8, 15),
		},
		{
			name:  "after last slot of the day",
			cfg:   domain.ScheduleConfig{HourUTC: 6, MinuteUTC: 0, RunsPerDay: 2},
			after: at(23, 0),
			want:  at(6, 0).AddDate(0, 0, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := schedule.NextRun(tt.cfg, tt.after); !got.Equal(tt.want) {
				t.Errorf("NextRun() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestManager_TickStartsDueAndAdvances(t *testing.T) {
	t.Parallel()

	due := at(6, 0)
	store := newMemStore(
		domain.ScheduleConfig{Scope: "default", Enabled: true, HourUTC: 6, RunsPerDay: 1, AutoIngest: true, NextRunAt: &due},
		domain.ScheduleConfig{Scope: "later", Enabled: true, HourUTC: 9, RunsPerDay: 1, NextRunAt: ptr(at(9, 0))},
		domain.ScheduleConfig{Scope: "off", Enabled: false, HourUTC: 6, RunsPerDay: 1, NextRunAt: &due},
	)
	starter := &fakeStarter{}
	m := schedule.NewManager(schedule.Config{}, store, starter, logger.NewNop())

	if err := m.Tick(context.Background(), at(6, 0)); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	if len(starter.requests) != 1 {
		t.Fatalf("started %d jobs, want 1", len(starter.requests))
	}
	req := starter.requests[0]
	if req.Scope != "default" || !req.AutoIngest || req.Trigger != domain.TriggerSchedule {
		t.Errorf("start request = %+v", req)
	}

	next := store.get("default").NextRunAt
	if next == nil || !next.Equal(at(6, 0).AddDate(0, 0, 1)) {
		t.Errorf("next_run_at = %v, want tomorrow 06:00", next)
	}
}

func TestManager_TickSkipsRunningScope(t *testing.T) {
	t.Parallel()

	due := at(6, 0)
	store := newMemStore(domain.ScheduleConfig{Scope: "default", Enabled: true, HourUTC: 6, RunsPerDay: 1, NextRunAt: &due})
	starter := &fakeStarter{err: &domain.ConflictError{Resource: "crawl job", Key: "default"}}
	m := schedule.NewManager(schedule.Config{}, store, starter, logger.NewNop())

	if err := m.Tick(context.Background(), at(6, 0)); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	next := store.get("default").NextRunAt
	if next == nil || !next.After(at(6, 0)) {
		t.Errorf("next_run_at = %v, want advanced even when skipped", next)
	}
}

func TestManager_Update(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	m := schedule.NewManager(schedule.Config{}, store, &fakeStarter{}, logger.NewNop(),
		schedule.WithClock(fixedClock(at(10, 0))))

	saved, err := m.Update(context.Background(), "", schedule.UpdateRequest{
		Enabled: true, HourUTC: 6, MinuteUTC: 0, RunsPerDay: 2,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if saved.Scope != domain.DefaultScope {
		t.Errorf("Scope = %q, want default", saved.Scope)
	}
	if saved.NextRunAt == nil || !saved.NextRunAt.Equal(at(18, 0)) {
		t.Errorf("NextRunAt = %v, want 18:00", saved.NextRunAt)
	}

	saved, err = m.Update(context.Background(), "", schedule.UpdateRequest{HourUTC: 6, RunsPerDay: 1})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if saved.NextRunAt != nil {
		t.Errorf("NextRunAt = %v, want nil when disabled", saved.NextRunAt)
	}

	invalid := []schedule.UpdateRequest{
		{HourUTC: 24, RunsPerDay: 1},
		{HourUTC: -1, RunsPerDay: 1},
		{MinuteUTC: 60, RunsPerDay: 1},
		{RunsPerDay: 3},
		{RunsPerDay: 0},
	}
	for _, req := range invalid {
		var vErr *domain.ValidationError
		if _, err := m.Update(context.Background(), "", req); !errors.As(err, &vErr) {
			t.Errorf("Update(%+v) error = %v, want ValidationError", req, err)
		}
	}
}

func TestManager_GetDerivesNextRun(t *testing.T) {
	t.Parallel()

	stale := at(1, 0)
	store := newMemStore(
		domain.ScheduleConfig{Scope: "default", Enabled: true, HourUTC: 6, RunsPerDay: 1},
		domain.ScheduleConfig{Scope: "off", Enabled: false, HourUTC: 6, RunsPerDay: 1, NextRunAt: &stale},
	)
	m := schedule.NewManager(schedule.Config{}, store, &fakeStarter{}, logger.NewNop(),
		schedule.WithClock(fixedClock(at(5, 0))))

	cfg, err := m.Get(context.Background(), "default")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cfg.NextRunAt == nil || !cfg.NextRunAt.Equal(at(6, 0)) {
		t.Errorf("NextRunAt = %v, want 06:00", cfg.NextRunAt)
	}

	off, err := m.Get(context.Background(), "off")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if off.NextRunAt != nil {
		t.Error("disabled schedule must not report a next run")
	}

	if _, err := m.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get() error = %v, want not found", err)
	}
}

func TestManager_RunNowAndCompletion(t *testing.T) {
	t.Parallel()

	store := newMemStore(domain.ScheduleConfig{Scope: "default", RunsPerDay: 1, AutoIngest: true})
	starter := &fakeStarter{}
	m := schedule.NewManager(schedule.Config{}, store, starter, logger.NewNop())

	id, err := m.RunNow(context.Background(), "")
	if err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	if id != "job-1" {
		t.Errorf("RunNow() = %q", id)
	}
	if req := starter.requests[0]; !req.AutoIngest || req.Trigger != domain.TriggerRunNow {
		t.Errorf("start request = %+v", req)
	}

	finished := at(7, 0)
	m.HandleJobFinished(domain.CrawlJob{JobID: "manual", Scope: "default", Trigger: domain.TriggerManual, Status: domain.JobComplete})
	if store.get("default").LastRunAt != nil {
		t.Error("manual jobs must not be recorded as schedule runs")
	}

	m.HandleJobFinished(domain.CrawlJob{
		JobID: id, Scope: "default", Trigger: domain.TriggerRunNow,
		Status: domain.JobStopped, SubstantiveChanges: 3, FinishedAt: &finished,
	})
	got := store.get("default")
	if got.LastRunAt == nil || !got.LastRunAt.Equal(finished) {
		t.Errorf("LastRunAt = %v", got.LastRunAt)
	}
	if *got.LastRunStatus != "stopped" || *got.LastRunChanges != 3 {
		t.Errorf("last run = %s/%d", *got.LastRunStatus, *got.LastRunChanges)
	}

	starter.err = &domain.ConflictError{Resource: "crawl job", Key: "default"}
	if _, err := m.RunNow(context.Background(), "default"); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("RunNow() error = %v, want conflict", err)
	}
}

func TestManager_EnsureDefaults(t *testing.T) {
	t.Parallel()

	existing := domain.ScheduleConfig{Scope: "default", Enabled: true, HourUTC: 3, RunsPerDay: 2}
	store := newMemStore(existing)
	m := schedule.NewManager(schedule.Config{DefaultHourUTC: 6, DefaultRunsPerDay: 1}, store, &fakeStarter{}, logger.NewNop())

	if err := m.EnsureDefaults(context.Background(), []string{"default", "wa"}); err != nil {
		t.Fatalf("EnsureDefaults() error = %v", err)
	}
	if got := store.get("default"); got.HourUTC != 3 || !got.Enabled {
		t.Errorf("existing row overwritten: %+v", got)
	}
	if got := store.get("wa"); got.Enabled || got.HourUTC != 6 || got.RunsPerDay != 1 {
		t.Errorf("default row = %+v", got)
	}
}

func TestManager_StartStop(t *testing.T) {
	t.Parallel()

	m := schedule.NewManager(schedule.Config{PollSpec: "@every 1h"}, newMemStore(), &fakeStarter{}, logger.NewNop())
	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	bad := schedule.NewManager(schedule.Config{PollSpec: "not a spec"}, newMemStore(), &fakeStarter{}, logger.NewNop())
	if err := bad.Start(); err == nil {
		t.Error("Start() expected error for invalid poll spec")
	}
}

func ptr[T any](v T) *T { return &v }
