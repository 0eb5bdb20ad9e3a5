package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/atomizehq/atomizer/internal/domain"
	"github.com/atomizehq/atomizer/internal/http/response"
	"github.com/atomizehq/atomizer/internal/jobstore"
	"github.com/atomizehq/atomizer/internal/metrics"
	"github.com/atomizehq/atomizer/internal/pipeline"
	"github.com/atomizehq/atomizer/internal/platform/logger"
)

type UploadHandler struct {
	store      jobstore.Store
	pipeline   *pipeline.Pipeline
	uploadsDir string
	metrics    *metrics.Metrics
	log        *logger.Logger
}

func NewUploadHandler(store jobstore.Store, pipe *pipeline.Pipeline, uploadsDir string, m *metrics.Metrics, log *logger.Logger) *UploadHandler {
	return &UploadHandler{
		store:      store,
		pipeline:   pipe,
		uploadsDir: uploadsDir,
		metrics:    m,
		log:        log.With("handler", "upload"),
	}
}

// POST /api/upload
func (h *UploadHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	if !strings.HasSuffix(strings.ToLower(file.Filename), ".pdf") {
		response.RespondError(c, http.StatusBadRequest, "invalid_file_type",
			fmt.Errorf("only PDF files are accepted"))
		return
	}

	job := domain.NewProcessingJob(file.Filename)
	if err := h.store.Create(c.Request.Context(), job); err != nil {
		response.FromError(c, "create_job_failed", err)
		return
	}

	if err := os.MkdirAll(h.uploadsDir, 0o755); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "save_failed", err)
		return
	}
	pdfPath := filepath.Join(h.uploadsDir, job.JobID+".pdf")
	if err := c.SaveUploadedFile(file, pdfPath); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "save_failed", err)
		return
	}

	if h.metrics != nil {
		h.metrics.JobsTotal.WithLabelValues("created").Inc()
	}
	h.log.Info("upload accepted", "job_id", job.JobID, "filename", file.Filename, "bytes", file.Size)

	// Processing outlives the request.
	go h.pipeline.Process(context.Background(), job.JobID, pdfPath)

	response.RespondOK(c, gin.H{
		"job_id":   job.JobID,
		"filename": file.Filename,
		"message":  "PDF uploaded successfully. Processing started.",
	})
}

// GET /api/status/:id
func (h *UploadHandler) GetStatus(c *gin.Context) {
	job, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "job_not_found", err)
		return
	}
	response.RespondOK(c, gin.H{
		"job_id":         job.JobID,
		"status":         job.Status,
		"workflow_stage": job.WorkflowStage,
		"progress":       job.Progress,
		"message":        job.Message,
		"error":          job.Error,
	})
}

// GET /api/jobs
func (h *UploadHandler) ListJobs(c *gin.Context) {
	jobs, err := h.store.List(c.Request.Context())
	if err != nil {
		response.FromError(c, "list_jobs_failed", err)
		return
	}
	summaries := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, gin.H{
			"job_id":         job.JobID,
			"filename":       job.Filename,
			"status":         job.Status,
			"workflow_stage": job.WorkflowStage,
			"progress":       job.Progress,
			"created_at":     job.CreatedAt,
		})
	}
	response.RespondOK(c, gin.H{"jobs": summaries})
}

// DELETE /api/jobs/:id
func (h *UploadHandler) DeleteJob(c *gin.Context) {
	jobID := c.Param("id")
	if err := h.store.Delete(c.Request.Context(), jobID); err != nil {
		response.FromError(c, "delete_job_failed", err)
		return
	}
	// Uploaded PDF is best-effort cleanup.
	_ = os.Remove(filepath.Join(h.uploadsDir, jobID+".pdf"))
	response.RespondOK(c, gin.H{"job_id": jobID, "deleted": true})
}
