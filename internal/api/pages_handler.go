package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
)

// AddPageRequest is the body of POST /pages.
type AddPageRequest struct {
	URL      string `binding:"required" json:"url"`
	Scope    string `json:"scope"`
	Category string `json:"category"`
}

// UpdatePageRequest is the body of PATCH /pages/:id.
type UpdatePageRequest struct {
	Status domain.PageStatus `binding:"required" json:"status"`
}

// ListPages handles GET /api/v1/pages.
func (h *Handlers) ListPages(c *gin.Context) {
	limit, offset := parseLimitOffset(c, defaultLimit, 0)
	scope := h.scopeParam(c)

	pages, total, err := h.pages.List(c.Request.Context(), scope, domain.PageFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.respondDomainError(c, err, "list pages")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pages":  pages,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// AddPage handles POST /api/v1/pages.
func (h *Handlers) AddPage(c *gin.Context) {
	var req AddPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Scope == "" {
		req.Scope = h.defaultScope
	}

	page, err := h.pages.Add(c.Request.Context(), req.Scope, req.URL, req.Category)
	if err != nil {
		h.respondDomainError(c, err, "add page")
		return
	}

	logger.FromContext(c.Request.Context()).Info("Page added",
		logger.PageID(page.ID),
		logger.URL(page.URL),
		logger.Scope(page.Scope),
	)

	c.JSON(http.StatusCreated, page)
}

// GetPage handles GET /api/v1/pages/:id.
func (h *Handlers) GetPage(c *gin.Context) {
	page, err := h.pages.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err, "get page")
		return
	}
	c.JSON(http.StatusOK, page)
}

// UpdatePage handles PATCH /api/v1/pages/:id. Only pausing and resuming
// are client-settable.
func (h *Handlers) UpdatePage(c *gin.Context) {
	var req UpdatePageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Status != domain.PageStatusActive && req.Status != domain.PageStatusPaused {
		respondBadRequest(c, "status must be active or paused")
		return
	}

	id := c.Param("id")
	if err := h.pages.SetStatus(c.Request.Context(), id, req.Status); err != nil {
		h.respondDomainError(c, err, "update page")
		return
	}

	page, err := h.pages.Get(c.Request.Context(), id)
	if err != nil {
		h.respondDomainError(c, err, "get page")
		return
	}
	c.JSON(http.StatusOK, page)
}

// DeletePage handles DELETE /api/v1/pages/:id.
func (h *Handlers) DeletePage(c *gin.Context) {
	id := c.Param("id")
	if err := h.pages.Remove(c.Request.Context(), id); err != nil {
		h.respondDomainError(c, err, "delete page")
		return
	}

	logger.FromContext(c.Request.Context()).Info("Page removed", logger.PageID(id))
	c.Status(http.StatusNoContent)
}
