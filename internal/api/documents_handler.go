package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PendingDocuments handles GET /api/v1/documents/pending: discovered
// documents not yet handed to ingestion.
func (h *Handlers) PendingDocuments(c *gin.Context) {
	limit, _ := parseLimitOffset(c, defaultLimit, 0)

	docs, err := h.documents.ListPending(c.Request.Context(), h.scopeParam(c), limit)
	if err != nil {
		h.respondDomainError(c, err, "list pending documents")
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}
