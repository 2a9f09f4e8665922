package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
)

// DocumentRepository tracks document links found by discovery.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository creates a new discovered document repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// RecordNew stores doc if its (scope, url) is unseen and reports whether it
// was new.
func (r *DocumentRepository) RecordNew(ctx context.Context, doc *domain.DiscoveredDocument) (bool, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	query := `
		INSERT INTO discovered_documents (id, scope, url, title, source, published_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (scope, url) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, doc.ID, doc.Scope, doc.URL, doc.Title, doc.Source, doc.PublishedDate)
	if err != nil {
		return false, fmt.Errorf("record document: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record document rows: %w", err)
	}

	return n > 0, nil
}

// MarkIngested flags a document as handed to ingestion.
func (r *DocumentRepository) MarkIngested(ctx context.Context, scope, url string) error {
	query := `UPDATE discovered_documents SET ingested = TRUE WHERE scope = $1 AND url = $2`

	result, err := r.db.ExecContext(ctx, query, scope, url)
	if err = execRequireRows(result, err, &domain.NotFoundError{Resource: "document", ID: url}); err != nil {
		return fmt.Errorf("mark document ingested: %w", err)
	}

	return nil
}

// ListPending returns documents in scope not yet ingested, oldest first.
func (r *DocumentRepository) ListPending(ctx context.Context, scope string, limit int) ([]domain.DiscoveredDocument, error) {
	query := `
		SELECT id, scope, url, title, source, published_date, first_seen_at, ingested
		FROM discovered_documents
		WHERE scope = $1 AND NOT ingested
		ORDER BY first_seen_at
		LIMIT $2
	`

	docs := []domain.DiscoveredDocument{}
	if err := r.db.SelectContext(ctx, &docs, query, scope, clampLimit(limit, defaultChangeLimit, maxChangeLimit)); err != nil {
		return nil, fmt.Errorf("list pending documents: %w", err)
	}

	return docs, nil
}
