package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
)

const (
	defaultRecentDays = 7
	maxRecentDays     = 365
	hoursPerDay       = 24
)

// ListChanges handles GET /api/v1/changes.
func (h *Handlers) ListChanges(c *gin.Context) {
	limit, offset := parseLimitOffset(c, defaultLimit, 0)

	filter := domain.ChangeFilter{
		ChangeType:      domain.ChangeType(c.Query("change_type")),
		ReviewStatus:    domain.ReviewStatus(c.Query("review_status")),
		SubstantiveOnly: c.Query("substantive_only") == "true",
		Limit:           limit,
		Offset:          offset,
	}
	if filter.ChangeType != "" && !filter.ChangeType.IsValid() {
		respondBadRequest(c, "change_type must be one of: NEW, MODIFIED, REMOVED")
		return
	}
	if !validReviewFilter(filter.ReviewStatus) {
		respondBadRequest(c, "review_status must be one of: pending, approved, dismissed")
		return
	}

	h.respondChanges(c, filter)
}

// RecentChanges handles GET /api/v1/changes/recent.
func (h *Handlers) RecentChanges(c *gin.Context) {
	limit, _ := parseLimitOffset(c, defaultLimit, 0)

	days, err := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(defaultRecentDays)))
	if err != nil || days <= 0 || days > maxRecentDays {
		respondBadRequest(c, "days must be between 1 and 365")
		return
	}
	since := time.Now().UTC().Add(-time.Duration(days) * hoursPerDay * time.Hour)

	h.respondChanges(c, domain.ChangeFilter{Since: &since, Limit: limit})
}

// PendingChanges handles GET /api/v1/changes/pending.
func (h *Handlers) PendingChanges(c *gin.Context) {
	limit, offset := parseLimitOffset(c, defaultLimit, 0)

	entries, total, err := h.changes.ListPending(c.Request.Context(), h.scopeParam(c), limit, offset)
	if err != nil {
		h.respondDomainError(c, err, "list pending changes")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"changes": entries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (h *Handlers) respondChanges(c *gin.Context, filter domain.ChangeFilter) {
	entries, total, err := h.changes.ListRecent(c.Request.Context(), h.scopeParam(c), filter)
	if err != nil {
		h.respondDomainError(c, err, "list changes")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"changes": entries,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

func validReviewFilter(s domain.ReviewStatus) bool {
	switch s {
	case "", domain.ReviewPending, domain.ReviewApproved, domain.ReviewDismissed:
		return true
	default:
		return false
	}
}

// GetChange handles GET /api/v1/changes/:id.
func (h *Handlers) GetChange(c *gin.Context) {
	entry, err := h.changes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err, "get change")
		return
	}
	c.JSON(http.StatusOK, entry)
}

// ApproveChange handles POST /api/v1/changes/:id/approve. The approval
// stands even when ingestion fails; the outcome is in the response.
func (h *Handlers) ApproveChange(c *gin.Context) {
	id := c.Param("id")
	entry, err := h.changes.Approve(c.Request.Context(), id)
	if err != nil {
		h.respondDomainError(c, err, "approve change")
		return
	}

	logger.FromContext(c.Request.Context()).Info("Change approved",
		logger.ChangeID(id),
		logger.Bool("ingested", entry.Ingested),
	)
	c.JSON(http.StatusOK, reviewResponse(entry))
}

// DismissChange handles POST /api/v1/changes/:id/dismiss.
func (h *Handlers) DismissChange(c *gin.Context) {
	id := c.Param("id")
	entry, err := h.changes.Dismiss(c.Request.Context(), id)
	if err != nil {
		h.respondDomainError(c, err, "dismiss change")
		return
	}

	logger.FromContext(c.Request.Context()).Info("Change dismissed", logger.ChangeID(id))
	c.JSON(http.StatusOK, reviewResponse(entry))
}

// ReingestChange handles POST /api/v1/changes/:id/reingest.
func (h *Handlers) ReingestChange(c *gin.Context) {
	entry, err := h.changes.Reingest(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err, "re-ingest change")
		return
	}
	c.JSON(http.StatusOK, reviewResponse(entry))
}

func reviewResponse(entry *domain.ChangeLogEntry) gin.H {
	ingestion := gin.H{
		"ingested":       entry.Ingested,
		"chunks_created": entry.ChunksCreated,
	}
	if entry.DocumentID != nil {
		ingestion["document_id"] = *entry.DocumentID
	}
	if entry.IngestError != nil {
		ingestion["error"] = *entry.IngestError
	}
	return gin.H{"change": entry, "ingestion": ingestion}
}
