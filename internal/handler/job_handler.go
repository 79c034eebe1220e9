package handler

import (
	"net/http"
	"strings"

	"assessment-jobs/internal/errors"
	"assessment-jobs/internal/logger"
	"assessment-jobs/internal/metrics"
	"assessment-jobs/internal/models"
	"assessment-jobs/internal/service"

	"github.com/gin-gonic/gin"
)

const handlerClass = "JobHandler"

// ClientIDHeader optionally identifies the submitting client for rate limiting.
const ClientIDHeader = "X-Client-ID"

// JobHandler handles HTTP requests for jobs and resources
type JobHandler struct {
	jobService *service.JobService
	lifecycle  *service.LifecycleService
	metrics    *metrics.Metrics
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobService *service.JobService, lifecycle *service.LifecycleService, metrics *metrics.Metrics) *JobHandler {
	return &JobHandler{
		jobService: jobService,
		lifecycle:  lifecycle,
		metrics:    metrics,
	}
}

// CreateJob handles POST /api/create-job
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req models.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, "CreateJob", errors.Validationf("invalid request body: %v", err))
		return
	}

	resp, err := h.jobService.Submit(c.Request.Context(), clientKey(c), &req)
	if err != nil {
		h.writeError(c, "CreateJob", err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// PollStatus handles GET /api/poll-status?jobId=
func (h *JobHandler) PollStatus(c *gin.Context) {
	status, err := h.jobService.GetJobStatus(c.Request.Context(), c.Query("jobId"))
	if err != nil {
		h.writeError(c, "PollStatus", err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetResource handles GET /api/resource/:id
func (h *JobHandler) GetResource(c *gin.Context) {
	view, err := h.jobService.GetResource(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "GetResource", err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// DeleteResource handles DELETE /api/resource/:id
func (h *JobHandler) DeleteResource(c *gin.Context) {
	action, err := h.lifecycle.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "DeleteResource", err)
		return
	}

	c.JSON(http.StatusOK, models.DeleteResourceResponse{Action: action})
}

// PatchResource handles PATCH /api/resource/:id
func (h *JobHandler) PatchResource(c *gin.Context) {
	var req models.PatchResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, "PatchResource", errors.Validationf("invalid request body: %v", err))
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")

	var (
		status models.ResourceStatus
		err    error
	)
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case models.PatchActivate:
		status, err = h.lifecycle.Activate(ctx, id)
	case models.PatchDeactivate:
		status, err = h.lifecycle.Deactivate(ctx, id)
	case models.PatchPublish:
		status, err = h.lifecycle.Publish(ctx, id, req.StartTime, req.Timezone)
	default:
		err = errors.Validationf("unknown action %q, expected activate, deactivate or publish", req.Action)
	}
	if err != nil {
		h.writeError(c, "PatchResource", err)
		return
	}

	c.JSON(http.StatusOK, models.PatchResourceResponse{NewStatus: status})
}

// GetMetrics handles GET /metrics
func (h *JobHandler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.GetSnapshot())
}

// Healthz handles GET /healthz
func (h *JobHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError maps a classified error to its status and the {error, code} body
func (h *JobHandler) writeError(c *gin.Context, method string, err error) {
	code := errors.Code(err)
	status := statusFor(code)

	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error(handlerClass, method, err)
		message = "internal server error"
	} else {
		logger.Debugf(handlerClass, method, "%s: %v", code, err)
	}

	c.AbortWithStatusJSON(status, models.ErrorResponse{Error: message, Code: code})
}

func statusFor(code string) int {
	switch code {
	case errors.CodeValidation, errors.CodeInvalidTransition:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeConflict:
		return http.StatusConflict
	case errors.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func clientKey(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(ClientIDHeader)); id != "" {
		return id
	}
	return c.ClientIP()
}
