package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/schedule"
)

// UpdateScheduleRequest is the body of POST /schedule.
type UpdateScheduleRequest struct {
	Scope string `json:"scope"`
	schedule.UpdateRequest
}

// RunNowRequest is the body of POST /schedule/run-now.
type RunNowRequest struct {
	Scope string `json:"scope"`
}

// GetSchedule handles GET /api/v1/schedule.
func (h *Handlers) GetSchedule(c *gin.Context) {
	cfg, err := h.schedule.Get(c.Request.Context(), h.scopeParam(c))
	if err != nil {
		h.respondDomainError(c, err, "get schedule")
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateSchedule handles POST /api/v1/schedule.
func (h *Handlers) UpdateSchedule(c *gin.Context) {
	var req UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Scope == "" {
		req.Scope = h.defaultScope
	}

	cfg, err := h.schedule.Update(c.Request.Context(), req.Scope, req.UpdateRequest)
	if err != nil {
		h.respondDomainError(c, err, "update schedule")
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// RunScheduleNow handles POST /api/v1/schedule/run-now.
func (h *Handlers) RunScheduleNow(c *gin.Context) {
	var req RunNowRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Scope == "" {
		req.Scope = h.defaultScope
	}

	jobID, err := h.schedule.RunNow(c.Request.Context(), req.Scope)
	if err != nil {
		h.respondDomainError(c, err, "run schedule")
		return
	}

	logger.FromContext(c.Request.Context()).Info("Scheduled crawl run on demand",
		logger.Scope(req.Scope),
		logger.JobID(jobID),
	)
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "scope": req.Scope})
}
