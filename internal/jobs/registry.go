// Package jobs tracks crawl jobs in memory. Each job has exactly one writer
// (its coordinator run) and any number of readers; readers only ever see
// immutable snapshots.
package jobs

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
)

// DefaultRetention is the number of terminal jobs kept in memory per scope.
const DefaultRetention = 50

const historySaveTimeout = 5 * time.Second

// History persists terminal job snapshots beyond the in-memory window.
type History interface {
	Save(ctx context.Context, job domain.CrawlJob) error
	Get(ctx context.Context, id string) (*domain.CrawlJob, error)
	List(ctx context.Context, scope string, limit int) ([]domain.CrawlJob, error)
}

// Registry owns every job created in this process.
type Registry struct {
	mu        sync.Mutex
	runs      map[string]*Run
	order     []string
	running   map[string]string
	retention int
	history   History
	log       logger.Logger
	now       func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithRetention sets how many terminal jobs are kept per scope.
func WithRetention(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.retention = n
		}
	}
}

// WithHistory saves terminal snapshots to h and consults it on lookups.
func WithHistory(h History) Option {
	return func(r *Registry) { r.history = h }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry.
func NewRegistry(log logger.Logger, opts ...Option) *Registry {
	r := &Registry{
		runs:      make(map[string]*Run),
		running:   make(map[string]string),
		retention: DefaultRetention,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new job in status starting. It fails with a
// ConflictError when the scope already has a non-terminal job.
func (r *Registry) Create(scope string, autoIngest bool, trigger domain.Trigger) (*Run, error) {
	if scope == "" {
		scope = domain.DefaultScope
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.running[scope]; ok {
		return nil, &domain.ConflictError{Resource: "crawl job", Key: scope, ExistingID: existing}
	}

	job := &domain.CrawlJob{
		JobID:      uuid.NewString(),
		Scope:      scope,
		AutoIngest: autoIngest,
		Trigger:    trigger,
		Status:     domain.JobStarting,
		StartedAt:  r.now().UTC(),
	}
	run := &Run{
		reg:   r,
		state:   job,
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
	run.snap.Store(job.Clone())

	r.runs[job.JobID] = run
	r.order = append(r.order, job.JobID)
	r.running[scope] = job.JobID

	r.log.Info("Crawl job created",
		logger.JobID(job.JobID),
		logger.Scope(scope),
		logger.String("trigger", string(trigger)),
		logger.Bool("auto_ingest", autoIngest),
	)

	return run, nil
}

// Get returns a snapshot of the job, falling back to history for jobs that
// have been pruned from memory.
func (r *Registry) Get(ctx context.Context, id string) (domain.CrawlJob, error) {
	r.mu.Lock()
	run, ok := r.runs[id]
	r.mu.Unlock()

	if ok {
		return run.Snapshot(), nil
	}

	if r.history != nil {
		job, err := r.history.Get(ctx, id)
		if err == nil && job != nil {
			return *job, nil
		}
		if err != nil && !isNotFound(err) {
			r.log.Warn("Job history lookup failed", logger.JobID(id), logger.Error(err))
		}
	}

	return domain.CrawlJob{}, &domain.NotFoundError{Resource: "crawl job", ID: id}
}

// RequestStop sets the job's stop flag. It is idempotent and a no-op on
// terminal jobs, including those only kept in history.
func (r *Registry) RequestStop(ctx context.Context, id string) error {
	r.mu.Lock()
	run, ok := r.runs[id]
	r.mu.Unlock()

	if !ok {
		_, err := r.Get(ctx, id)
		return err
	}
	if run.Snapshot().Status.IsTerminal() {
		return nil
	}
	if run.stop.CompareAndSwap(false, true) {
		close(run.stopped)
		r.log.Info("Crawl stop requested", logger.JobID(id), logger.Scope(run.scope()))
	}
	return nil
}

// Running returns the id of the non-terminal job in scope, if any.
func (r *Registry) Running(scope string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.running[scope]
	return id, ok
}

// Run returns the live handle of an in-memory job.
func (r *Registry) Run(id string) (*Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	return run, ok
}

// List returns jobs newest first. An empty scope lists every scope; a
// non-positive limit returns everything retained.
func (r *Registry) List(ctx context.Context, scope string, limit int) []domain.CrawlJob {
	r.mu.Lock()
	jobs := make([]domain.CrawlJob, 0, len(r.runs))
	seen := make(map[string]struct{}, len(r.runs))
	for _, run := range r.runs {
		snap := run.Snapshot()
		if scope != "" && snap.Scope != scope {
			continue
		}
		jobs = append(jobs, snap)
		seen[snap.JobID] = struct{}{}
	}
	r.mu.Unlock()

	if r.history != nil {
		older, err := r.history.List(ctx, scope, limit)
		if err != nil {
			r.log.Warn("Job history list failed", logger.Scope(scope), logger.Error(err))
		}
		for _, job := range older {
			if _, dup := seen[job.JobID]; !dup {
				jobs = append(jobs, job)
			}
		}
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.After(jobs[j].StartedAt)
	})

	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs
}

// finish is called once by Run.Finish.
func (r *Registry) finish(snap domain.CrawlJob) {
	r.mu.Lock()
	if r.running[snap.Scope] == snap.JobID {
		delete(r.running, snap.Scope)
	}
	r.pruneLocked(snap.Scope)
	r.mu.Unlock()

	if r.history == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), historySaveTimeout)
	defer cancel()
	if err := r.history.Save(ctx, snap); err != nil {
		r.log.Warn("Failed to save job history",
			logger.JobID(snap.JobID),
			logger.Scope(snap.Scope),
			logger.Error(err),
		)
	}
}

// pruneLocked drops the oldest terminal jobs of scope beyond retention.
func (r *Registry) pruneLocked(scope string) {
	terminal := 0
	for i := len(r.order) - 1; i >= 0; i-- {
		run := r.runs[r.order[i]]
		snap := run.snap.Load()
		if snap.Scope != scope || !snap.Status.IsTerminal() {
			continue
		}
		terminal++
		if terminal > r.retention {
			delete(r.runs, r.order[i])
		}
	}

	kept := r.order[:0]
	for _, id := range r.order {
		if _, ok := r.runs[id]; ok {
			kept = append(kept, id)
		}
	}
	r.order = kept
}

// Run is the single-writer handle of one job.
type Run struct {
	reg *Registry

	// mu serializes writers; readers use snap.
	mu    sync.Mutex
	state *domain.CrawlJob
	snap  atomic.Pointer[domain.CrawlJob]

	stop     atomic.Bool
	stopped  chan struct{}
	finished bool
	done     chan struct{}
}

// ID returns the job id.
func (r *Run) ID() string {
	return r.snap.Load().JobID
}

func (r *Run) scope() string {
	return r.snap.Load().Scope
}

// Snapshot returns the last published state.
func (r *Run) Snapshot() domain.CrawlJob {
	return *r.snap.Load()
}

// StopRequested reports whether a stop has been requested.
func (r *Run) StopRequested() bool {
	return r.stop.Load()
}

// Stopped is closed when a stop is requested.
func (r *Run) Stopped() <-chan struct{} {
	return r.stopped
}

// Done is closed once the job reaches a terminal status.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Update applies fn to the job state and publishes a new snapshot. Status
// changes that would move backwards or reach a terminal status are ignored;
// use Finish to end the job.
func (r *Run) Update(fn func(job *domain.CrawlJob)) domain.CrawlJob {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return *r.snap.Load()
	}

	prev := r.state.Status
	fn(r.state)
	if next := r.state.Status; next != prev && (!prev.CanTransition(next) || next.IsTerminal()) {
		r.state.Status = prev
	}
	r.state.ElapsedSeconds = r.reg.now().Sub(r.state.StartedAt).Seconds()

	snap := r.state.Clone()
	r.snap.Store(snap)
	return *snap
}

// Finish moves the job to a terminal status, freezes its elapsed time and
// clears current_url. Calls after the first are no-ops.
func (r *Run) Finish(status domain.JobStatus, errMsg string) domain.CrawlJob {
	r.mu.Lock()
	if r.finished || !status.IsTerminal() {
		snap := *r.snap.Load()
		r.mu.Unlock()
		return snap
	}

	now := r.reg.now().UTC()
	r.state.Status = status
	r.state.Error = errMsg
	r.state.CurrentURL = ""
	r.state.FinishedAt = &now
	r.state.ElapsedSeconds = now.Sub(r.state.StartedAt).Seconds()
	r.finished = true

	snap := r.state.Clone()
	r.snap.Store(snap)
	r.mu.Unlock()

	r.reg.finish(*snap)
	close(r.done)

	r.reg.log.Info("Crawl job finished",
		logger.JobID(snap.JobID),
		logger.Scope(snap.Scope),
		logger.String("status", string(snap.Status)),
		logger.Int("pages_crawled", snap.PagesCrawled),
		logger.Int("substantive_changes", snap.SubstantiveChanges),
		logger.Float64("elapsed_seconds", snap.ElapsedSeconds),
	)

	return *snap
}
