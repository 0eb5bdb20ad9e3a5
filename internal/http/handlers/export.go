package handlers

import (
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/atomizehq/atomizer/internal/domain"
	"github.com/atomizehq/atomizer/internal/export"
	"github.com/atomizehq/atomizer/internal/http/response"
	"github.com/atomizehq/atomizer/internal/jobstore"
	"github.com/atomizehq/atomizer/internal/metrics"
	apperrors "github.com/atomizehq/atomizer/internal/pkg/errors"
	"github.com/atomizehq/atomizer/internal/platform/logger"
)

type ExportHandler struct {
	store     jobstore.Store
	outputDir string
	metrics   *metrics.Metrics
	log       *logger.Logger
}

func NewExportHandler(store jobstore.Store, outputDir string, m *metrics.Metrics, log *logger.Logger) *ExportHandler {
	return &ExportHandler{
		store:     store,
		outputDir: outputDir,
		metrics:   m,
		log:       log.With("handler", "export"),
	}
}

// exportableJob requires a completed workflow with a structure attached.
func (h *ExportHandler) exportableJob(c *gin.Context) (*domain.ProcessingJob, bool) {
	job, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "job_not_found", err)
		return nil, false
	}
	if job.WorkflowStage != domain.StageCompleted {
		response.FromError(c, "not_completed",
			fmt.Errorf("cannot export in stage %q: %w", job.WorkflowStage, apperrors.ErrPrecondition))
		return nil, false
	}
	if job.Structure == nil || job.Structure.Root == nil {
		response.RespondError(c, http.StatusInternalServerError, "structure_unavailable",
			fmt.Errorf("structure not available"))
		return nil, false
	}
	return job, true
}

func includeFiltered(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.DefaultQuery("include_filtered", "false"))
	return v
}

// POST /api/export/:id
func (h *ExportHandler) Export(c *gin.Context) {
	job, ok := h.exportableJob(c)
	if !ok {
		return
	}

	generator := export.NewGenerator(h.outputDir, h.log)
	files, err := generator.Generate(job.Structure, includeFiltered(c))
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "export_failed", err)
		return
	}
	outputPath := generator.OutputPath(job.Structure)
	resolved, err := generator.ResolvePlaceholders(outputPath)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "export_failed", err)
		return
	}

	if h.metrics != nil {
		h.metrics.ExportsTotal.Inc()
		h.metrics.ExportFilesTotal.Add(float64(len(files)))
	}

	response.RespondOK(c, gin.H{
		"job_id":      job.JobID,
		"output_path": outputPath,
		"message":     fmt.Sprintf("Exported %d files to %s (resolved %d links)", len(files), outputPath, resolved),
	})
}

// GET /api/export/:id/download
func (h *ExportHandler) Download(c *gin.Context) {
	job, ok := h.exportableJob(c)
	if !ok {
		return
	}

	tempDir, err := os.MkdirTemp("", "atomizer-export-")
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "export_failed", err)
		return
	}
	defer os.RemoveAll(tempDir)

	generator := export.NewGenerator(tempDir, h.log)
	if _, err := generator.Generate(job.Structure, includeFiltered(c)); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "export_failed", err)
		return
	}
	outputPath := generator.OutputPath(job.Structure)
	if _, err := generator.ResolvePlaceholders(outputPath); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "export_failed", err)
		return
	}

	zipName := export.SanitizeFilename(job.Structure.Title) + ".zip"
	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", zipName))
	if err := export.WriteZip(outputPath, c.Writer); err != nil {
		h.log.Error("zip stream failed", "job_id", job.JobID, "err", err)
	}
}

// GET /api/export/:id/files
func (h *ExportHandler) Files(c *gin.Context) {
	job, ok := h.exportableJob(c)
	if !ok {
		return
	}
	files := export.FileList(job.Structure)
	response.RespondOK(c, gin.H{
		"job_id":     job.JobID,
		"file_count": len(files),
		"files":      files,
	})
}
