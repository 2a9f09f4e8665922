package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/crawl"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
)

const defaultJobListLimit = 20

// StartCrawlRequest is the body of POST /crawl/start.
type StartCrawlRequest struct {
	Scope      string `json:"scope"`
	AutoIngest bool   `json:"auto_ingest"`
}

// StartCrawl handles POST /api/v1/crawl/start.
func (h *Handlers) StartCrawl(c *gin.Context) {
	var req StartCrawlRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Scope == "" {
		req.Scope = h.defaultScope
	}

	jobID, err := h.crawler.Start(c.Request.Context(), crawl.StartRequest{
		Scope:      req.Scope,
		AutoIngest: req.AutoIngest,
		Trigger:    domain.TriggerManual,
	})
	if err != nil {
		h.respondDomainError(c, err, "start crawl")
		return
	}

	logger.FromContext(c.Request.Context()).Info("Crawl started via API",
		logger.Scope(req.Scope),
		logger.JobID(jobID),
		logger.Bool("auto_ingest", req.AutoIngest),
	)

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "scope": req.Scope})
}

// CrawlStatus handles GET /api/v1/crawl/status/:job_id.
func (h *Handlers) CrawlStatus(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		h.respondDomainError(c, err, "get crawl status")
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /api/v1/crawl/jobs.
func (h *Handlers) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultJobListLimit)))
	if limit <= 0 || limit > maxLimit {
		limit = defaultJobListLimit
	}

	jobs := h.jobs.List(c.Request.Context(), c.Query("scope"), limit)
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

// StopCrawl handles POST /api/v1/crawl/stop/:job_id. Stopping a job that
// already finished succeeds.
func (h *Handlers) StopCrawl(c *gin.Context) {
	jobID := c.Param("job_id")
	if err := h.crawler.Stop(c.Request.Context(), jobID); err != nil {
		h.respondDomainError(c, err, "stop crawl")
		return
	}

	job, err := h.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"job_id": jobID, "stop_requested": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": jobID, "stop_requested": true, "status": job.Status})
}
