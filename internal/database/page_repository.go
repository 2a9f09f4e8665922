package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
)

// pageSelectColumns lists columns for SELECT queries on monitored_pages.
const pageSelectColumns = `id, url, category, title, content_signature, content_text,
	last_checked_at, last_changed_at, status, error_message, error_type, scope, created_at, updated_at`

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// PageRepository stores monitored pages.
type PageRepository struct {
	db *sqlx.DB
}

// NewPageRepository creates a new page repository.
func NewPageRepository(db *sqlx.DB) *PageRepository {
	return &PageRepository{db: db}
}

// Add registers a URL in scope. An empty category is derived from the URL.
func (r *PageRepository) Add(ctx context.Context, scope, rawURL, category string) (*domain.MonitoredPage, error) {
	pageURL, err := domain.ValidatePageURL(rawURL)
	if err != nil {
		return nil, err
	}
	if scope == "" {
		scope = domain.DefaultScope
	}
	if category == "" {
		category = domain.CategorizeURL(pageURL)
	}

	query := `
		INSERT INTO monitored_pages (id, url, category, scope, status)
		VALUES ($1, $2, $3, $4, 'active')
		RETURNING ` + pageSelectColumns

	var page domain.MonitoredPage
	if insertErr := r.db.GetContext(ctx, &page, query, uuid.NewString(), pageURL, category, scope); insertErr != nil {
		if isUniqueViolation(insertErr) {
			return nil, &domain.ConflictError{Resource: "page", Key: pageURL}
		}
		return nil, fmt.Errorf("insert page: %w", insertErr)
	}

	return &page, nil
}

// Get returns a page by id.
func (r *PageRepository) Get(ctx context.Context, id string) (*domain.MonitoredPage, error) {
	query := `SELECT ` + pageSelectColumns + ` FROM monitored_pages WHERE id = $1`

	var page domain.MonitoredPage
	if err := r.db.GetContext(ctx, &page, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "page", ID: id}
		}
		return nil, fmt.Errorf("get page: %w", err)
	}

	return &page, nil
}

// List returns pages in scope matching filter, ordered by url, with the
// total count before pagination.
func (r *PageRepository) List(ctx context.Context, scope string, filter domain.PageFilter) ([]domain.MonitoredPage, int, error) {
	var w whereBuilder
	w.add("scope = ?", scope)
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if filter.Category != "" {
		w.add("category = ?", filter.Category)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM monitored_pages` + w.sql()
	if err := r.db.GetContext(ctx, &total, countQuery, w.args...); err != nil {
		return nil, 0, fmt.Errorf("count pages: %w", err)
	}

	limit := clampLimit(filter.Limit, defaultPageLimit, maxPageLimit)
	where := w.sql()
	limitArg := w.next(limit)
	offsetArg := w.next(max(filter.Offset, 0))
	query := `SELECT ` + pageSelectColumns + ` FROM monitored_pages` + where +
		` ORDER BY url LIMIT ` + limitArg + ` OFFSET ` + offsetArg

	pages := []domain.MonitoredPage{}
	if err := r.db.SelectContext(ctx, &pages, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("list pages: %w", err)
	}

	return pages, total, nil
}

// ListForCrawl returns every non-paused page in scope, ordered by url.
func (r *PageRepository) ListForCrawl(ctx context.Context, scope string) ([]domain.MonitoredPage, error) {
	query := `SELECT ` + pageSelectColumns + `
		FROM monitored_pages
		WHERE scope = $1 AND status <> 'paused'
		ORDER BY url`

	pages := []domain.MonitoredPage{}
	if err := r.db.SelectContext(ctx, &pages, query, scope); err != nil {
		return nil, fmt.Errorf("list pages for crawl: %w", err)
	}

	return pages, nil
}

// UpsertParams is the post-crawl state written for one page.
type UpsertParams struct {
	PageID string
	// Signature and Text are left untouched when nil.
	Signature    *string
	Text         *string
	Title        *string
	Status       domain.PageStatus
	ErrorMessage *string
	ErrorType    *string
}

// UpsertAfterCrawl records the outcome of a fetch. last_checked_at always
// moves; last_changed_at moves only when a new signature differs from the
// stored one.
func (r *PageRepository) UpsertAfterCrawl(ctx context.Context, p UpsertParams) error {
	query := `
		UPDATE monitored_pages
		SET last_checked_at = NOW(),
			last_changed_at = CASE
				WHEN $2::text IS NOT NULL AND content_signature IS DISTINCT FROM $2::text THEN NOW()
				ELSE last_changed_at
			END,
			content_signature = COALESCE($2::text, content_signature),
			content_text = COALESCE($3::text, content_text),
			title = COALESCE($4::text, title),
			status = CASE WHEN status = 'paused' THEN status ELSE $5 END,
			error_message = $6,
			error_type = $7,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		p.PageID, p.Signature, p.Text, p.Title, string(p.Status), p.ErrorMessage, p.ErrorType)
	if err = execRequireRows(result, err, &domain.NotFoundError{Resource: "page", ID: p.PageID}); err != nil {
		return fmt.Errorf("update page after crawl: %w", err)
	}

	return nil
}

// SetStatus pauses or resumes a page.
func (r *PageRepository) SetStatus(ctx context.Context, id string, status domain.PageStatus) error {
	if !status.IsValid() {
		return &domain.ValidationError{Field: "status", Message: "must be one of: active, error, paused"}
	}

	query := `UPDATE monitored_pages SET status = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, string(status))
	if err = execRequireRows(result, err, &domain.NotFoundError{Resource: "page", ID: id}); err != nil {
		return fmt.Errorf("set page status: %w", err)
	}

	return nil
}

// Remove hard-deletes a page. Change log rows keep their url; their page_id
// is nulled by the foreign key.
func (r *PageRepository) Remove(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM monitored_pages WHERE id = $1`, id)
	if err = execRequireRows(result, err, &domain.NotFoundError{Resource: "page", ID: id}); err != nil {
		return fmt.Errorf("remove page: %w", err)
	}

	return nil
}

// Seed registers urls in scope, skipping invalid URLs and ones already
// present. It returns how many pages were inserted.
func (r *PageRepository) Seed(ctx context.Context, scope string, urls []string) (int, error) {
	if scope == "" {
		scope = domain.DefaultScope
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO monitored_pages (id, url, category, scope, status)
		VALUES ($1, $2, $3, $4, 'active')
		ON CONFLICT (url, scope) DO NOTHING
	`

	inserted := 0
	for _, raw := range urls {
		pageURL, validErr := domain.ValidatePageURL(raw)
		if validErr != nil {
			continue
		}

		result, execErr := tx.ExecContext(ctx, query, uuid.NewString(), pageURL, domain.CategorizeURL(pageURL), scope)
		if execErr != nil {
			return 0, fmt.Errorf("seed page %s: %w", pageURL, execErr)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return 0, fmt.Errorf("commit seed: %w", commitErr)
	}

	return inserted, nil
}

func clampLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, maxLimit)
}
