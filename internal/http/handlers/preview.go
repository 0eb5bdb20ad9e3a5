package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/atomizehq/atomizer/internal/domain"
	"github.com/atomizehq/atomizer/internal/filter"
	"github.com/atomizehq/atomizer/internal/http/response"
	"github.com/atomizehq/atomizer/internal/jobstore"
	apperrors "github.com/atomizehq/atomizer/internal/pkg/errors"
)

type PreviewHandler struct {
	store jobstore.Store
}

func NewPreviewHandler(store jobstore.Store) *PreviewHandler {
	return &PreviewHandler{store: store}
}

func previewableJob(c *gin.Context, store jobstore.Store) (*domain.ProcessingJob, bool) {
	job, err := store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "job_not_found", err)
		return nil, false
	}
	if job.WorkflowStage == domain.StageFailed {
		response.RespondError(c, http.StatusBadRequest, "job_failed",
			fmt.Errorf("job failed: %s", job.Error))
		return nil, false
	}
	if job.Structure == nil || job.Structure.Root == nil {
		response.FromError(c, "structure_unavailable",
			fmt.Errorf("structure not extracted yet (stage %q): %w", job.WorkflowStage, apperrors.ErrPrecondition))
		return nil, false
	}
	return job, true
}

// GET /api/preview/:id
func (h *PreviewHandler) GetPreview(c *gin.Context) {
	job, ok := previewableJob(c, h.store)
	if !ok {
		return
	}
	response.RespondOK(c, gin.H{
		"job_id":    job.JobID,
		"structure": job.Structure,
		"editable":  true,
	})
}

// POST /api/preview/:id
func (h *PreviewHandler) UpdatePreview(c *gin.Context) {
	var req struct {
		Structure *domain.DocumentStructure `json:"structure" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_structure", err)
		return
	}
	if req.Structure.Root == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_structure",
			fmt.Errorf("structure root is required"))
		return
	}

	job, err := h.store.Update(c.Request.Context(), c.Param("id"), func(j *domain.ProcessingJob) error {
		if j.Structure == nil {
			return fmt.Errorf("structure not extracted yet: %w", apperrors.ErrPrecondition)
		}
		j.Structure = req.Structure
		return nil
	})
	if err != nil {
		response.FromError(c, "update_structure_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"job_id":    job.JobID,
		"structure": job.Structure,
		"editable":  true,
	})
}

// POST /api/preview/:id/toggle/:nodeId
func (h *PreviewHandler) ToggleSection(c *gin.Context) {
	included := true
	if raw, ok := c.GetQuery("included"); ok {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_included", err)
			return
		}
		included = parsed
	}

	nodeID := c.Param("nodeId")
	_, err := h.store.Update(c.Request.Context(), c.Param("id"), func(j *domain.ProcessingJob) error {
		if j.Structure == nil {
			return fmt.Errorf("structure not extracted yet: %w", apperrors.ErrPrecondition)
		}
		if !filter.UpdateInclusion(j.Structure, nodeID, included) {
			return fmt.Errorf("section %s: %w", nodeID, apperrors.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		response.FromError(c, "toggle_section_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"success":    true,
		"section_id": nodeID,
		"included":   included,
	})
}

// GET /api/preview/:id/stats
func (h *PreviewHandler) Stats(c *gin.Context) {
	job, ok := previewableJob(c, h.store)
	if !ok {
		return
	}

	var total, included int
	for _, child := range job.Structure.Root.Children {
		domain.Walk(child, func(n *domain.StructureNode) {
			total++
			if n.Included {
				included++
			}
		})
	}
	response.RespondOK(c, gin.H{
		"title":             job.Structure.Title,
		"author":            job.Structure.Author,
		"total_pages":       job.Structure.TotalPages,
		"total_sections":    total,
		"included_sections": included,
		"filtered_sections": total - included,
	})
}
