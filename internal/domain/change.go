package domain

import "time"

// ChangeType describes what happened to a page between two crawls.
type ChangeType string

const (
	ChangeNew      ChangeType = "NEW"
	ChangeModified ChangeType = "MODIFIED"
	ChangeRemoved  ChangeType = "REMOVED"
)

// IsValid reports whether t is a change type that can be logged.
func (t ChangeType) IsValid() bool {
	return t == ChangeNew || t == ChangeModified || t == ChangeRemoved
}

// ReviewStatus is the human review state of a change entry.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewApproved  ReviewStatus = "approved"
	ReviewDismissed ReviewStatus = "dismissed"
)

// ChangeLogEntry is an append-only record of one detected change.
type ChangeLogEntry struct {
	ID            string       `db:"id"             json:"id"`
	PageID        *string      `db:"page_id"        json:"page_id,omitempty"`
	URL           string       `db:"url"            json:"url"`
	ChangeType    ChangeType   `db:"change_type"    json:"change_type"`
	Title         string       `db:"title"          json:"title"`
	Summary       string       `db:"summary"        json:"summary"`
	Category      *string      `db:"category"       json:"category,omitempty"`
	IsSubstantive bool         `db:"is_substantive" json:"is_substantive"`
	DiffAdditions int          `db:"diff_additions" json:"diff_additions"`
	DiffDeletions int          `db:"diff_deletions" json:"diff_deletions"`
	AutoIngested  bool         `db:"auto_ingested"  json:"auto_ingested"`
	ReviewStatus  ReviewStatus `db:"review_status"  json:"review_status"`
	ReviewedAt    *time.Time   `db:"reviewed_at"    json:"reviewed_at,omitempty"`
	Ingested      bool         `db:"ingested"       json:"ingested"`
	IngestError   *string      `db:"ingest_error"   json:"ingest_error,omitempty"`
	DocumentID    *string      `db:"document_id"    json:"document_id,omitempty"`
	ChunksCreated int          `db:"chunks_created" json:"chunks_created"`
	LastModified  *string      `db:"last_modified"  json:"last_modified,omitempty"`
	DetectedAt    time.Time    `db:"detected_at"    json:"detected_at"`
	Scope         string       `db:"scope"          json:"scope"`
}

// ChangeFilter narrows a change listing. Zero values mean "any".
type ChangeFilter struct {
	ChangeType      ChangeType
	SubstantiveOnly bool
	ReviewStatus    ReviewStatus
	Since           *time.Time
	Limit           int
	Offset          int
}

// IngestOutcome is the result of handing a change to the ingestion bridge.
type IngestOutcome struct {
	Ingested      bool
	Error         string
	DocumentID    string
	ChunksCreated int
}
