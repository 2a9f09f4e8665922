package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/jobs"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
)

type memHistory struct {
	mu   sync.Mutex
	jobs map[string]domain.CrawlJob
}

func newMemHistory() *memHistory {
	return &memHistory{jobs: make(map[string]domain.CrawlJob)}
}

func (h *memHistory) Save(_ context.Context, job domain.CrawlJob) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.jobs[job.JobID] = job
	return nil
}

func (h *memHistory) Get(_ context.Context, id string) (*domain.CrawlJob, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	job, ok := h.jobs[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "crawl job", ID: id}
	}
	return &job, nil
}

func (h *memHistory) List(_ context.Context, scope string, _ int) ([]domain.CrawlJob, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []domain.CrawlJob
	for _, job := range h.jobs {
		if scope == "" || job.Scope == scope {
			out = append(out, job)
		}
	}
	return out, nil
}

// tickingClock advances by one second on every call.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func TestRegistry_CreateConflictPerScope(t *testing.T) {
	t.Parallel()

	reg := jobs.NewRegistry(logger.NewNop())

	run, err := reg.Create("default", false, domain.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStarting, run.Snapshot().Status)

	_, err = reg.Create("default", true, domain.TriggerSchedule)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, run.ID(), conflict.ExistingID)

	_, err = reg.Create("other", false, domain.TriggerManual)
	require.NoError(t, err, "scopes are independent")

	run.Finish(domain.JobComplete, "")
	_, err = reg.Create("default", false, domain.TriggerManual)
	assert.NoError(t, err, "a finished job frees its scope")
}

func TestRegistry_CreateIsExclusiveUnderContention(t *testing.T) {
	t.Parallel()

	reg := jobs.NewRegistry(logger.NewNop())

	const callers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Create("default", false, domain.TriggerManual); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
}

func TestRun_UpdateKeepsStatusMonotonic(t *testing.T) {
	t.Parallel()

	reg := jobs.NewRegistry(logger.NewNop())
	run, err := reg.Create("default", false, domain.TriggerManual)
	require.NoError(t, err)

	run.Update(func(j *domain.CrawlJob) { j.Status = domain.JobRunning })
	snap := run.Update(func(j *domain.CrawlJob) { j.Status = domain.JobStarting })
	assert.Equal(t, domain.JobRunning, snap.Status, "status must not move backwards")

	snap = run.Update(func(j *domain.CrawlJob) { j.Status = domain.JobComplete })
	assert.Equal(t, domain.JobRunning, snap.Status, "terminal status only via Finish")
}

func TestRun_SnapshotsAreIsolated(t *testing.T) {
	t.Parallel()

	reg := jobs.NewRegistry(logger.NewNop())
	run, err := reg.Create("default", false, domain.TriggerManual)
	require.NoError(t, err)

	before := run.Snapshot()
	run.Update(func(j *domain.CrawlJob) {
		j.PagesCrawled = 1
		j.Changes = append(j.Changes, domain.JobChange{URL: "https://example.com"})
	})

	assert.Zero(t, before.PagesCrawled)
	assert.Empty(t, before.Changes)

	after := run.Snapshot()
	after.Changes[0].URL = "mutated"
	assert.Equal(t, "https://example.com", run.Snapshot().Changes[0].URL)
}

func TestRun_Finish(t *testing.T) {
	t.Parallel()

	reg := jobs.NewRegistry(logger.NewNop(), jobs.WithClock(tickingClock()))
	run, err := reg.Create("default", false, domain.TriggerManual)
	require.NoError(t, err)

	run.Update(func(j *domain.CrawlJob) {
		j.Status = domain.JobRunning
		j.CurrentURL = "https://example.com/a"
	})

	snap := run.Finish(domain.JobStopped, "")
	assert.Equal(t, domain.JobStopped, snap.Status)
	assert.Empty(t, snap.CurrentURL)
	require.NotNil(t, snap.FinishedAt)
	assert.Positive(t, snap.ElapsedSeconds)

	select {
	case <-run.Done():
	default:
		t.Fatal("Done() not closed after Finish")
	}

	again := run.Finish(domain.JobComplete, "late")
	assert.Equal(t, domain.JobStopped, again.Status, "second Finish is a no-op")

	frozen := run.Update(func(j *domain.CrawlJob) { j.PagesCrawled = 99 })
	assert.Zero(t, frozen.PagesCrawled, "updates after Finish are ignored")
	assert.Equal(t, snap.ElapsedSeconds, frozen.ElapsedSeconds)
}

func TestRegistry_RequestStop(t *testing.T) {
	t.Parallel()

	reg := jobs.NewRegistry(logger.NewNop())
	run, err := reg.Create("default", false, domain.TriggerManual)
	require.NoError(t, err)

	require.NoError(t, reg.RequestStop(context.Background(), run.ID()))
	require.NoError(t, reg.RequestStop(context.Background(), run.ID()), "stop is idempotent")
	assert.True(t, run.StopRequested())

	select {
	case <-run.Stopped():
	default:
		t.Fatal("Stopped() channel not closed after RequestStop")
	}

	run.Finish(domain.JobStopped, "")
	assert.NoError(t, reg.RequestStop(context.Background(), run.ID()), "stop on a terminal job is a no-op")

	err = reg.RequestStop(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRegistry_GetFallsBackToHistory(t *testing.T) {
	t.Parallel()

	history := newMemHistory()
	reg := jobs.NewRegistry(logger.NewNop(), jobs.WithRetention(1), jobs.WithHistory(history))

	first, err := reg.Create("default", false, domain.TriggerManual)
	require.NoError(t, err)
	first.Finish(domain.JobComplete, "")

	second, err := reg.Create("default", false, domain.TriggerManual)
	require.NoError(t, err)
	second.Finish(domain.JobComplete, "")

	_, inMemory := reg.Run(first.ID())
	assert.False(t, inMemory, "oldest terminal job pruned beyond retention")

	job, err := reg.Get(context.Background(), first.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.JobComplete, job.Status)

	_, err = reg.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	assert.NoError(t, reg.RequestStop(context.Background(), first.ID()),
		"stopping a job kept only in history is a no-op")
}

func TestRegistry_ListNewestFirst(t *testing.T) {
	t.Parallel()

	history := newMemHistory()
	reg := jobs.NewRegistry(logger.NewNop(),
		jobs.WithClock(tickingClock()),
		jobs.WithRetention(1),
		jobs.WithHistory(history),
	)

	var ids []string
	for range 3 {
		run, err := reg.Create("default", false, domain.TriggerManual)
		require.NoError(t, err)
		run.Finish(domain.JobComplete, "")
		ids = append(ids, run.ID())
	}
	other, err := reg.Create("other", false, domain.TriggerCLI)
	require.NoError(t, err)

	list := reg.List(context.Background(), "default", 0)
	require.Len(t, list, 3, "memory and history are merged without duplicates")
	assert.Equal(t, ids[2], list[0].JobID)
	assert.Equal(t, ids[0], list[2].JobID)

	all := reg.List(context.Background(), "", 2)
	require.Len(t, all, 2)
	assert.Equal(t, other.ID(), all[0].JobID)

	id, ok := reg.Running("other")
	assert.True(t, ok)
	assert.Equal(t, other.ID(), id)
}
