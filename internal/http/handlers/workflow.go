package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atomizehq/atomizer/internal/http/response"
	"github.com/atomizehq/atomizer/internal/metrics"
	"github.com/atomizehq/atomizer/internal/workflow"
)

type WorkflowHandler struct {
	ctrl    *workflow.Controller
	metrics *metrics.Metrics
}

func NewWorkflowHandler(ctrl *workflow.Controller, m *metrics.Metrics) *WorkflowHandler {
	return &WorkflowHandler{ctrl: ctrl, metrics: m}
}

func (h *WorkflowHandler) transition(stage string) {
	if h.metrics != nil {
		h.metrics.RecordTransition(stage)
	}
}

// GET /api/workflow/:id/status
func (h *WorkflowHandler) Status(c *gin.Context) {
	res, err := h.ctrl.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "status_failed", err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/workflow/:id/full-text
func (h *WorkflowHandler) FullText(c *gin.Context) {
	res, err := h.ctrl.FullText(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "full_text_failed", err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/workflow/:id/node/:nodeId/content
func (h *WorkflowHandler) NodeContent(c *gin.Context) {
	res, err := h.ctrl.NodeContent(c.Request.Context(), c.Param("id"), c.Param("nodeId"))
	if err != nil {
		response.FromError(c, "node_content_failed", err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/workflow/:id/approve-structure
func (h *WorkflowHandler) ApproveStructure(c *gin.Context) {
	res, err := h.ctrl.ApproveStructure(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "approve_structure_failed", err)
		return
	}
	h.transition("awaiting_atomization_approval")
	response.RespondOK(c, res)
}

// GET /api/workflow/:id/atomization-queue
func (h *WorkflowHandler) AtomizationQueue(c *gin.Context) {
	items, err := h.ctrl.AtomizationQueue(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "atomization_queue_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"job_id": c.Param("id"), "count": len(items), "nodes": items})
}

// POST /api/workflow/:id/atomization/node/:nodeId/approve
func (h *WorkflowHandler) ApproveAtomization(c *gin.Context) {
	res, err := h.ctrl.ApproveAtomization(c.Request.Context(), c.Param("id"), c.Param("nodeId"))
	if err != nil {
		response.FromError(c, "approve_atomization_failed", err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/workflow/:id/atomization/node/:nodeId/regenerate
func (h *WorkflowHandler) RegenerateAtomization(c *gin.Context) {
	res, err := h.ctrl.RegenerateAtomization(c.Request.Context(), c.Param("id"), c.Param("nodeId"))
	if err != nil {
		response.FromError(c, "regenerate_atomization_failed", err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/workflow/:id/atomization/node/:nodeId/split
func (h *WorkflowHandler) SplitNode(c *gin.Context) {
	res, err := h.ctrl.SplitNode(c.Request.Context(), c.Param("id"), c.Param("nodeId"))
	if err != nil {
		response.FromError(c, "split_node_failed", err)
		return
	}
	if h.metrics != nil && res.Success {
		h.metrics.NodesSplitTotal.Inc()
	}
	response.RespondOK(c, res)
}

// POST /api/workflow/:id/atomization/approve-all
func (h *WorkflowHandler) ApproveAllAtomization(c *gin.Context) {
	res, err := h.ctrl.ApproveAllAtomization(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "approve_all_atomization_failed", err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/workflow/:id/proceed-to-content
func (h *WorkflowHandler) ProceedToContent(c *gin.Context) {
	res, err := h.ctrl.ProceedToContent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "proceed_to_content_failed", err)
		return
	}
	if h.metrics != nil {
		h.metrics.NodesFilledTotal.Add(float64(res.PendingCount))
	}
	h.transition("awaiting_content_approval")
	response.RespondOK(c, res)
}

// GET /api/workflow/:id/content-queue
func (h *WorkflowHandler) ContentQueue(c *gin.Context) {
	items, err := h.ctrl.ContentQueue(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "content_queue_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"job_id": c.Param("id"), "count": len(items), "nodes": items})
}

// POST /api/workflow/:id/content/node/:nodeId/approve
func (h *WorkflowHandler) ApproveContent(c *gin.Context) {
	res, err := h.ctrl.ApproveContent(c.Request.Context(), c.Param("id"), c.Param("nodeId"))
	if err != nil {
		response.FromError(c, "approve_content_failed", err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/workflow/:id/content/node/:nodeId/regenerate
func (h *WorkflowHandler) RegenerateContent(c *gin.Context) {
	res, err := h.ctrl.RegenerateContent(c.Request.Context(), c.Param("id"), c.Param("nodeId"))
	if err != nil {
		response.FromError(c, "regenerate_content_failed", err)
		return
	}
	response.RespondOK(c, res)
}

// PUT /api/workflow/:id/content/node/:nodeId/edit
func (h *WorkflowHandler) EditContent(c *gin.Context) {
	var edit workflow.ContentEdit
	if err := c.ShouldBindJSON(&edit); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_edit", err)
		return
	}
	res, err := h.ctrl.EditContent(c.Request.Context(), c.Param("id"), c.Param("nodeId"), edit)
	if err != nil {
		response.FromError(c, "edit_content_failed", err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/workflow/:id/content/approve-all
func (h *WorkflowHandler) ApproveAllContent(c *gin.Context) {
	res, err := h.ctrl.ApproveAllContent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "approve_all_content_failed", err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/workflow/:id/complete
func (h *WorkflowHandler) Complete(c *gin.Context) {
	res, err := h.ctrl.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "complete_failed", err)
		return
	}
	if h.metrics != nil {
		h.metrics.JobsTotal.WithLabelValues("completed").Inc()
	}
	h.transition("completed")
	response.RespondOK(c, res)
}
