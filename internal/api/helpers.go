package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// parseLimitOffset parses limit and offset query params with defaults.
func parseLimitOffset(c *gin.Context, defaultLimit, defaultOffset int) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", strconv.Itoa(defaultOffset)))
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = defaultOffset
	}
	return limit, offset
}

// scopeParam returns the scope query parameter or the default scope.
func (h *Handlers) scopeParam(c *gin.Context) string {
	if scope := c.Query("scope"); scope != "" {
		return scope
	}
	return h.defaultScope
}

// bindOptionalJSON binds a JSON body when one is present. An empty body
// leaves obj untouched.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func respondBadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, message)
}

// respondDomainError maps domain errors onto status codes. Anything
// unrecognised is logged and answered with a generic 500.
func (h *Handlers) respondDomainError(c *gin.Context, err error, action string) {
	var (
		notFound *domain.NotFoundError
		conflict *domain.ConflictError
		reviewed *domain.AlreadyReviewedError
		invalid  *domain.ValidationError
	)

	switch {
	case errors.As(err, &notFound):
		respondError(c, http.StatusNotFound, notFound.Error())
	case errors.As(err, &conflict):
		body := gin.H{"error": conflict.Error()}
		if conflict.ExistingID != "" {
			body["existing_id"] = conflict.ExistingID
		}
		c.JSON(http.StatusConflict, body)
	case errors.As(err, &reviewed):
		c.JSON(http.StatusConflict, gin.H{"error": reviewed.Error(), "review_status": reviewed.Status})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Message, "field": invalid.Field})
	default:
		logger.FromContext(c.Request.Context()).Error("Failed to "+action, logger.Error(err))
		respondError(c, http.StatusInternalServerError, "Failed to "+action)
	}
}
