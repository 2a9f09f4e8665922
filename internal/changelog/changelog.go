// Package changelog owns the change log review workflow: listing detected
// changes, approving or dismissing them once, and recording ingestion.
package changelog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/ingest"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
)

// DefaultIngestTimeout bounds a synchronous ingestion during approval.
const DefaultIngestTimeout = 60 * time.Second

// Store is the persistence the service needs.
type Store interface {
	Insert(ctx context.Context, entry *domain.ChangeLogEntry) error
	Get(ctx context.Context, id string) (*domain.ChangeLogEntry, error)
	List(ctx context.Context, scope string, filter domain.ChangeFilter) ([]domain.ChangeLogEntry, int, error)
	SetReviewStatus(ctx context.Context, id string, status domain.ReviewStatus) (bool, error)
	RecordIngest(ctx context.Context, id string, outcome domain.IngestOutcome, auto bool) error
}

// PageLookup loads the stored page behind an entry so its text can be sent
// with a review-time ingestion.
type PageLookup interface {
	Get(ctx context.Context, id string) (*domain.MonitoredPage, error)
}

// IngestObserver is notified of every ingestion attempt. mode is "auto",
// "approve" or "reingest".
type IngestObserver func(mode string, err error)

// Service implements the change log operations.
type Service struct {
	store         Store
	bridge        ingest.Bridge
	log           logger.Logger
	ingestTimeout time.Duration
	observe       IngestObserver
	pages         PageLookup
}

// Option configures a Service.
type Option func(*Service)

// WithIngestTimeout overrides DefaultIngestTimeout.
func WithIngestTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ingestTimeout = d
		}
	}
}

// WithIngestObserver registers an observer for ingestion attempts.
func WithIngestObserver(fn IngestObserver) Option {
	return func(s *Service) { s.observe = fn }
}

// WithPageLookup lets approval and re-ingestion send the stored page text.
func WithPageLookup(p PageLookup) Option {
	return func(s *Service) { s.pages = p }
}

// NewService creates a change log service.
func NewService(store Store, bridge ingest.Bridge, log logger.Logger, opts ...Option) *Service {
	if bridge == nil {
		bridge = ingest.NoopBridge{}
	}
	s := &Service{
		store:         store,
		bridge:        bridge,
		log:           log,
		ingestTimeout: DefaultIngestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append records a new change. Entries are never updated in place except by
// the review and ingestion operations.
func (s *Service) Append(ctx context.Context, entry *domain.ChangeLogEntry) error {
	if !entry.ChangeType.IsValid() {
		return &domain.ValidationError{Field: "change_type", Message: "must be NEW, MODIFIED or REMOVED"}
	}
	if err := s.store.Insert(ctx, entry); err != nil {
		return fmt.Errorf("append change: %w", err)
	}
	return nil
}

// Get returns one entry.
func (s *Service) Get(ctx context.Context, id string) (*domain.ChangeLogEntry, error) {
	return s.store.Get(ctx, id)
}

// ListPending returns entries awaiting review, newest first.
func (s *Service) ListPending(ctx context.Context, scope string, limit, offset int) ([]domain.ChangeLogEntry, int, error) {
	return s.store.List(ctx, scope, domain.ChangeFilter{
		ReviewStatus: domain.ReviewPending,
		Limit:        limit,
		Offset:       offset,
	})
}

// ListRecent returns entries matching filter, newest first, with the total.
func (s *Service) ListRecent(ctx context.Context, scope string, filter domain.ChangeFilter) ([]domain.ChangeLogEntry, int, error) {
	return s.store.List(ctx, scope, filter)
}

// Approve moves a pending entry to approved and ingests it. Ingestion
// failure is recorded on the entry and does not undo the approval.
func (s *Service) Approve(ctx context.Context, id string) (*domain.ChangeLogEntry, error) {
	entry, err := s.review(ctx, id, domain.ReviewApproved)
	if err != nil {
		return nil, err
	}

	return s.ingestAndRecord(ctx, entry, "approve")
}

// Dismiss moves a pending entry to dismissed.
func (s *Service) Dismiss(ctx context.Context, id string) (*domain.ChangeLogEntry, error) {
	if _, err := s.review(ctx, id, domain.ReviewDismissed); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// Reingest retries ingestion for an approved entry that was not ingested.
func (s *Service) Reingest(ctx context.Context, id string) (*domain.ChangeLogEntry, error) {
	entry, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.ReviewStatus != domain.ReviewApproved {
		return nil, &domain.ValidationError{Field: "review_status", Message: "only approved changes can be re-ingested"}
	}
	if entry.Ingested {
		return nil, &domain.ValidationError{Field: "ingested", Message: "change is already ingested"}
	}

	return s.ingestAndRecord(ctx, entry, "reingest")
}

// AutoIngest ingests a freshly appended entry on behalf of a crawl. It
// returns nil only when the pipeline accepted the document and the entry
// was marked auto-ingested. A failure is stored as the entry's ingest_error.
func (s *Service) AutoIngest(ctx context.Context, entry *domain.ChangeLogEntry, text string) error {
	res, err := s.ingest(ctx, entry, text, "auto")
	if err != nil {
		outcome := domain.IngestOutcome{Error: err.Error()}
		if recordErr := s.store.RecordIngest(ctx, entry.ID, outcome, true); recordErr != nil {
			s.log.Error("Failed to record auto-ingest failure",
				logger.ChangeID(entry.ID),
				logger.Error(recordErr),
			)
		}
		return err
	}
	return s.MarkAutoIngested(ctx, entry.ID, res)
}

// MarkAutoIngested records a successful crawl-time ingestion.
func (s *Service) MarkAutoIngested(ctx context.Context, id string, res *ingest.Result) error {
	outcome := domain.IngestOutcome{Ingested: true}
	if res != nil {
		outcome.DocumentID = res.DocumentID
		outcome.ChunksCreated = res.ChunksCreated
	}
	if err := s.store.RecordIngest(ctx, id, outcome, true); err != nil {
		return fmt.Errorf("mark auto ingested: %w", err)
	}
	return nil
}

func (s *Service) review(ctx context.Context, id string, to domain.ReviewStatus) (*domain.ChangeLogEntry, error) {
	entry, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.ReviewStatus != domain.ReviewPending {
		return nil, &domain.AlreadyReviewedError{ID: id, Status: entry.ReviewStatus}
	}

	ok, err := s.store.SetReviewStatus(ctx, id, to)
	if err != nil {
		return nil, fmt.Errorf("review change: %w", err)
	}
	if !ok {
		// Lost a race with another reviewer.
		current, getErr := s.store.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &domain.AlreadyReviewedError{ID: id, Status: current.ReviewStatus}
	}

	entry.ReviewStatus = to
	s.log.Info("Change reviewed",
		logger.ChangeID(id),
		logger.String("review_status", string(to)),
		logger.URL(entry.URL),
	)

	return entry, nil
}

func (s *Service) ingestAndRecord(ctx context.Context, entry *domain.ChangeLogEntry, mode string) (*domain.ChangeLogEntry, error) {
	res, ingestErr := s.ingest(ctx, entry, s.pageText(ctx, entry), mode)

	outcome := domain.IngestOutcome{Ingested: ingestErr == nil}
	if ingestErr != nil {
		outcome.Error = ingestErr.Error()
	} else if res != nil {
		outcome.DocumentID = res.DocumentID
		outcome.ChunksCreated = res.ChunksCreated
	}

	if err := s.store.RecordIngest(ctx, entry.ID, outcome, false); err != nil {
		return nil, fmt.Errorf("record ingest outcome: %w", err)
	}

	return s.store.Get(ctx, entry.ID)
}

func (s *Service) pageText(ctx context.Context, entry *domain.ChangeLogEntry) string {
	if s.pages == nil || entry.PageID == nil {
		return ""
	}
	page, err := s.pages.Get(ctx, *entry.PageID)
	if err != nil || page.ContentText == nil {
		return ""
	}
	return *page.ContentText
}

func (s *Service) ingest(ctx context.Context, entry *domain.ChangeLogEntry, text, mode string) (*ingest.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.ingestTimeout)
	defer cancel()

	category := ""
	if entry.Category != nil {
		category = *entry.Category
	}
	if category == "" {
		category = domain.CategorizeURL(entry.URL)
	}

	res, err := s.bridge.Ingest(ctx, ingest.Request{
		URL:        entry.URL,
		Title:      entry.Title,
		Category:   category,
		Citation:   domain.BuildCitation(entry.URL, entry.Title, category),
		Scope:      entry.Scope,
		ChangeID:   entry.ID,
		ChangeType: string(entry.ChangeType),
		Text:       text,
	})

	if s.observe != nil {
		s.observe(mode, err)
	}

	if err != nil {
		level := s.log.Warn
		if errors.Is(err, ingest.ErrIngestionDisabled) {
			level = s.log.Debug
		}
		level("Ingestion failed",
			logger.ChangeID(entry.ID),
			logger.URL(entry.URL),
			logger.String("mode", mode),
			logger.Error(err),
		)
		return nil, err
	}

	if res == nil {
		res = &ingest.Result{}
	}
	s.log.Info("Change ingested",
		logger.ChangeID(entry.ID),
		logger.URL(entry.URL),
		logger.String("mode", mode),
		logger.String("document_id", res.DocumentID),
		logger.Int("chunks_created", res.ChunksCreated),
	)

	return res, nil
}
