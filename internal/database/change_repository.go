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

// changeSelectColumns lists columns for SELECT queries on change_log.
const changeSelectColumns = `id, page_id, url, change_type, title, summary, category, is_substantive,
	diff_additions, diff_deletions, auto_ingested, review_status, reviewed_at, ingested, ingest_error,
	document_id, chunks_created, last_modified, detected_at, scope`

const (
	defaultChangeLimit = 50
	maxChangeLimit     = 500
)

// ChangeRepository stores the append-only change log.
type ChangeRepository struct {
	db *sqlx.DB
}

// NewChangeRepository creates a new change repository.
func NewChangeRepository(db *sqlx.DB) *ChangeRepository {
	return &ChangeRepository{db: db}
}

// Insert appends entry, assigning its id when empty. DetectedAt and
// ReviewStatus are filled from the stored row.
func (r *ChangeRepository) Insert(ctx context.Context, entry *domain.ChangeLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Scope == "" {
		entry.Scope = domain.DefaultScope
	}

	query := `
		INSERT INTO change_log (id, page_id, url, change_type, title, summary, category,
			is_substantive, diff_additions, diff_deletions, last_modified, scope)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING review_status, detected_at
	`

	row := r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.PageID, entry.URL, string(entry.ChangeType), entry.Title, entry.Summary,
		entry.Category, entry.IsSubstantive, entry.DiffAdditions, entry.DiffDeletions,
		entry.LastModified, entry.Scope,
	)
	if err := row.Scan(&entry.ReviewStatus, &entry.DetectedAt); err != nil {
		return fmt.Errorf("insert change: %w", err)
	}

	return nil
}

// Get returns a change entry by id.
func (r *ChangeRepository) Get(ctx context.Context, id string) (*domain.ChangeLogEntry, error) {
	query := `SELECT ` + changeSelectColumns + ` FROM change_log WHERE id = $1`

	var entry domain.ChangeLogEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "change", ID: id}
		}
		return nil, fmt.Errorf("get change: %w", err)
	}

	return &entry, nil
}

// List returns entries in scope matching filter, newest first, with the
// total count before pagination.
func (r *ChangeRepository) List(
	ctx context.Context,
	scope string,
	filter domain.ChangeFilter,
) ([]domain.ChangeLogEntry, int, error) {
	var w whereBuilder
	w.add("scope = ?", scope)
	if filter.ChangeType != "" {
		w.add("change_type = ?", string(filter.ChangeType))
	}
	if filter.SubstantiveOnly {
		w.add("is_substantive = ?", true)
	}
	if filter.ReviewStatus != "" {
		w.add("review_status = ?", string(filter.ReviewStatus))
	}
	if filter.Since != nil {
		w.add("detected_at >= ?", *filter.Since)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM change_log`+w.sql(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("count changes: %w", err)
	}

	limit := clampLimit(filter.Limit, defaultChangeLimit, maxChangeLimit)
	where := w.sql()
	limitArg := w.next(limit)
	offsetArg := w.next(max(filter.Offset, 0))
	query := `SELECT ` + changeSelectColumns + ` FROM change_log` + where +
		` ORDER BY detected_at DESC, id LIMIT ` + limitArg + ` OFFSET ` + offsetArg

	entries := []domain.ChangeLogEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("list changes: %w", err)
	}

	return entries, total, nil
}

// SetReviewStatus moves a pending entry to status. It reports false when the
// entry was no longer pending.
func (r *ChangeRepository) SetReviewStatus(ctx context.Context, id string, status domain.ReviewStatus) (bool, error) {
	query := `
		UPDATE change_log
		SET review_status = $2, reviewed_at = NOW()
		WHERE id = $1 AND review_status = 'pending'
	`

	result, err := r.db.ExecContext(ctx, query, id, string(status))
	if err != nil {
		return false, fmt.Errorf("set review status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set review status rows: %w", err)
	}

	return n > 0, nil
}

// RecordIngest stores the outcome of an ingestion attempt. auto marks the
// entry as auto-ingested on success.
func (r *ChangeRepository) RecordIngest(ctx context.Context, id string, outcome domain.IngestOutcome, auto bool) error {
	query := `
		UPDATE change_log
		SET ingested = $2,
			ingest_error = $3,
			document_id = COALESCE($4, document_id),
			chunks_created = $5,
			auto_ingested = auto_ingested OR $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		id, outcome.Ingested, nullIfEmpty(outcome.Error), nullIfEmpty(outcome.DocumentID),
		outcome.ChunksCreated, auto && outcome.Ingested,
	)
	if err = execRequireRows(result, err, &domain.NotFoundError{Resource: "change", ID: id}); err != nil {
		return fmt.Errorf("record ingest: %w", err)
	}

	return nil
}
