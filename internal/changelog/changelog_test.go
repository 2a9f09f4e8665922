package changelog_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/changelog"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/ingest"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
)

// memStore is an in-memory Store.
type memStore struct {
	mu      sync.Mutex
	entries map[string]*domain.ChangeLogEntry
	// raceTo, when set, is applied just before SetReviewStatus runs.
	raceTo domain.ReviewStatus
}

func newMemStore(entries ...domain.ChangeLogEntry) *memStore {
	s := &memStore{entries: make(map[string]*domain.ChangeLogEntry)}
	for i := range entries {
		e := entries[i]
		s.entries[e.ID] = &e
	}
	return s
}

func (s *memStore) Insert(_ context.Context, entry *domain.ChangeLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = "generated"
	}
	entry.ReviewStatus = domain.ReviewPending
	e := *entry
	s.entries[e.ID] = &e
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*domain.ChangeLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "change", ID: id}
	}
	c := *e
	return &c, nil
}

func (s *memStore) List(_ context.Context, scope string, f domain.ChangeFilter) ([]domain.ChangeLogEntry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ChangeLogEntry
	for _, e := range s.entries {
		if e.Scope == scope && (f.ReviewStatus == "" || e.ReviewStatus == f.ReviewStatus) {
			out = append(out, *e)
		}
	}
	return out, len(out), nil
}

func (s *memStore) SetReviewStatus(_ context.Context, id string, status domain.ReviewStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[id]
	if s.raceTo != "" {
		e.ReviewStatus = s.raceTo
	}
	if e.ReviewStatus != domain.ReviewPending {
		return false, nil
	}
	e.ReviewStatus = status
	return true, nil
}

func (s *memStore) RecordIngest(_ context.Context, id string, o domain.IngestOutcome, auto bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[id]
	e.Ingested = o.Ingested
	if o.Error != "" {
		msg := o.Error
		e.IngestError = &msg
	} else {
		e.IngestError = nil
	}
	if o.DocumentID != "" {
		doc := o.DocumentID
		e.DocumentID = &doc
	}
	e.ChunksCreated = o.ChunksCreated
	e.AutoIngested = e.AutoIngested || (auto && o.Ingested)
	return nil
}

type countingBridge struct {
	calls int
	err   error
	last  ingest.Request
}

func (b *countingBridge) Ingest(_ context.Context, req ingest.Request) (*ingest.Result, error) {
	b.calls++
	b.last = req
	if b.err != nil {
		return nil, b.err
	}
	return &ingest.Result{DocumentID: "doc-" + req.ChangeID, ChunksCreated: 3}, nil
}

func pending(id string) domain.ChangeLogEntry {
	return domain.ChangeLogEntry{
		ID:           id,
		URL:          "https://dor.wa.gov/taxes-rates/use-tax",
		ChangeType:   domain.ChangeModified,
		Title:        "Use tax",
		ReviewStatus: domain.ReviewPending,
		Scope:        "default",
	}
}

func TestService_Approve(t *testing.T) {
	t.Parallel()

	store := newMemStore(pending("c1"))
	bridge := &countingBridge{}
	svc := changelog.NewService(store, bridge, logger.NewNop())

	entry, err := svc.Approve(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewApproved, entry.ReviewStatus)
	assert.True(t, entry.Ingested)
	require.NotNil(t, entry.DocumentID)
	assert.Equal(t, "doc-c1", *entry.DocumentID)
	assert.Equal(t, 3, entry.ChunksCreated)
	assert.Equal(t, 1, bridge.calls)
	assert.Equal(t, domain.CategoryTaxRate, bridge.last.Category)
	assert.Equal(t, "Use tax", bridge.last.Citation)
}

func TestService_ApproveTwice(t *testing.T) {
	t.Parallel()

	store := newMemStore(pending("c1"))
	bridge := &countingBridge{}
	svc := changelog.NewService(store, bridge, logger.NewNop())
	ctx := context.Background()

	_, err := svc.Approve(ctx, "c1")
	require.NoError(t, err)

	_, err = svc.Approve(ctx, "c1")
	var already *domain.AlreadyReviewedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, domain.ReviewApproved, already.Status)

	_, err = svc.Dismiss(ctx, "c1")
	require.ErrorAs(t, err, &already, "dismiss after approve")
	assert.Equal(t, 1, bridge.calls)
}

func TestService_ApproveLostRace(t *testing.T) {
	t.Parallel()

	store := newMemStore(pending("c1"))
	store.raceTo = domain.ReviewDismissed
	bridge := &countingBridge{}
	svc := changelog.NewService(store, bridge, logger.NewNop())

	_, err := svc.Approve(context.Background(), "c1")
	var already *domain.AlreadyReviewedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, domain.ReviewDismissed, already.Status)
	assert.Zero(t, bridge.calls, "ingestion must not run when the review lost the race")
}

func TestService_ApproveIngestFailureKeepsApproval(t *testing.T) {
	t.Parallel()

	store := newMemStore(pending("c1"))
	bridge := &countingBridge{err: errors.New("pipeline down")}
	svc := changelog.NewService(store, bridge, logger.NewNop())
	ctx := context.Background()

	entry, err := svc.Approve(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewApproved, entry.ReviewStatus)
	assert.False(t, entry.Ingested)
	require.NotNil(t, entry.IngestError)
	assert.Equal(t, "pipeline down", *entry.IngestError)

	bridge.err = nil
	entry, err = svc.Reingest(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, entry.Ingested)
	assert.Nil(t, entry.IngestError)

	var vErr *domain.ValidationError
	_, err = svc.Reingest(ctx, "c1")
	assert.ErrorAs(t, err, &vErr, "reingest of an ingested entry")
}

func TestService_Dismiss(t *testing.T) {
	t.Parallel()

	store := newMemStore(pending("c1"))
	bridge := &countingBridge{}
	svc := changelog.NewService(store, bridge, logger.NewNop())

	entry, err := svc.Dismiss(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewDismissed, entry.ReviewStatus)
	assert.Zero(t, bridge.calls, "dismiss must not ingest")

	var vErr *domain.ValidationError
	_, err = svc.Reingest(context.Background(), "c1")
	assert.ErrorAs(t, err, &vErr, "reingest of a dismissed entry")
}

func TestService_NotFound(t *testing.T) {
	t.Parallel()

	svc := changelog.NewService(newMemStore(), nil, logger.NewNop())

	_, err := svc.Approve(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Dismiss(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_AutoIngest(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	bridge := &countingBridge{}
	var modes []string
	svc := changelog.NewService(store, bridge, logger.NewNop(),
		changelog.WithIngestObserver(func(mode string, _ error) { modes = append(modes, mode) }))
	ctx := context.Background()

	entry := pending("")
	require.NoError(t, svc.Append(ctx, &entry))
	require.NoError(t, svc.AutoIngest(ctx, &entry, "page body"))

	stored, err := store.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, stored.AutoIngested)
	assert.True(t, stored.Ingested)
	assert.Equal(t, domain.ReviewPending, stored.ReviewStatus, "auto ingestion must not review the entry")
	assert.Equal(t, "page body", bridge.last.Text)
	assert.Equal(t, []string{"auto"}, modes)
}

func TestService_AutoIngestFailureLeavesFlag(t *testing.T) {
	t.Parallel()

	store := newMemStore(pending("c1"))
	svc := changelog.NewService(store, &countingBridge{err: errors.New("pipeline down")}, logger.NewNop())
	ctx := context.Background()

	entry, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	require.Error(t, svc.AutoIngest(ctx, entry, ""))

	stored, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, stored.AutoIngested, "auto_ingested must stay false when ingestion fails")
	assert.False(t, stored.Ingested)
	require.NotNil(t, stored.IngestError, "the failed attempt is recorded on the entry")
	assert.Contains(t, *stored.IngestError, "pipeline down")
}

func TestService_AppendRejectsUnknownType(t *testing.T) {
	t.Parallel()

	svc := changelog.NewService(newMemStore(), nil, logger.NewNop())
	entry := pending("c1")
	entry.ChangeType = "UNCHANGED"

	var vErr *domain.ValidationError
	assert.ErrorAs(t, svc.Append(context.Background(), &entry), &vErr)
}
