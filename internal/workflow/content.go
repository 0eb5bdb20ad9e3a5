package workflow

import (
	"context"
	"fmt"

	"github.com/atomizehq/atomizer/internal/domain"
	apperrors "github.com/atomizehq/atomizer/internal/pkg/errors"
)

// ProceedResult reports the transition into content review.
type ProceedResult struct {
	Message      string `json:"message"`
	PendingCount int    `json:"pending_count"`
}

// ProceedToContent moves an atomization-complete job into content
// summarization. Leaf-hood follows the operator's approvals: every included
// non-container node with no included children gets a summary, whatever its
// atomicity verdict said.
func (c *Controller) ProceedToContent(ctx context.Context, jobID string) (ProceedResult, error) {
	job, err := c.store.Update(ctx, jobID, func(j *domain.ProcessingJob) error {
		if j.WorkflowStage != domain.StageAwaitingAtomizationApproval {
			return fmt.Errorf("cannot proceed in stage %q: %w", j.WorkflowStage, apperrors.ErrPrecondition)
		}
		if err := requireStructure(j); err != nil {
			return err
		}
		if pending := domain.CollectPendingAtomization(j.Structure.Root); len(pending) > 0 {
			return fmt.Errorf("cannot proceed: %d nodes still pending atomization review: %w", len(pending), apperrors.ErrPrecondition)
		}
		j.WorkflowStage = domain.StageFillingContent
		j.Status = domain.JobStatusFillingContent
		j.Message = "Generating content summaries..."
		return nil
	})
	if err != nil {
		return ProceedResult{}, err
	}

	leaves := domain.CollectContentLeaves(job.Structure.Root)
	c.log.Info("generating content summaries", "job_id", jobID, "leaves", len(leaves))
	if err := c.summarizer.FillNodes(ctx, leaves, nil); err != nil {
		return ProceedResult{}, err
	}

	var pendingCount int
	_, err = c.store.Update(ctx, jobID, func(j *domain.ProcessingJob) error {
		j.Structure = job.Structure
		syncCaches(j)
		pendingCount = len(j.PendingContentNodes)
		j.WorkflowStage = domain.StageAwaitingContentApproval
		j.Message = fmt.Sprintf("Please review %d content summaries.", pendingCount)
		return nil
	})
	if err != nil {
		return ProceedResult{}, err
	}

	return ProceedResult{
		Message:      fmt.Sprintf("Content generated. %d summaries pending review.", pendingCount),
		PendingCount: pendingCount,
	}, nil
}

// ContentQueueItem is one summary awaiting operator review.
type ContentQueueItem struct {
	NodeID            string                `json:"node_id"`
	Title             string                `json:"title"`
	Path              []string              `json:"path"`
	AtomType          domain.AtomType       `json:"atom_type,omitempty"`
	SourceTextPreview string                `json:"source_text_preview"`
	AtomContent       *domain.AtomContent   `json:"atom_content,omitempty"`
	ApprovalStatus    domain.ApprovalStatus `json:"approval_status"`
}

// ContentQueue lists the nodes pending content review.
func (c *Controller) ContentQueue(ctx context.Context, jobID string) ([]ContentQueueItem, error) {
	job, err := c.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Structure == nil || job.Structure.Root == nil {
		return []ContentQueueItem{}, nil
	}

	root := job.Structure.Root
	pending := domain.CollectPendingContent(root)
	items := make([]ContentQueueItem, 0, len(pending))
	for _, node := range pending {
		items = append(items, ContentQueueItem{
			NodeID:            node.ID,
			Title:             node.Title,
			Path:              domain.NodePath(root, node.ID),
			AtomType:          node.AtomType,
			SourceTextPreview: preview(node.AnalysisText(), 500),
			AtomContent:       node.AtomContent,
			ApprovalStatus:    node.ApprovalStatus,
		})
	}
	return items, nil
}

// ApproveContent accepts the generated summary for one node.
func (c *Controller) ApproveContent(ctx context.Context, jobID, nodeID string) (DecisionResult, error) {
	var result DecisionResult
	_, err := c.store.Update(ctx, jobID, func(j *domain.ProcessingJob) error {
		if err := requireStructure(j); err != nil {
			return err
		}
		node := domain.FindNode(j.Structure.Root, nodeID)
		if node == nil {
			return fmt.Errorf("node %s: %w", nodeID, apperrors.ErrNotFound)
		}
		node.ApprovalStatus = domain.ApprovalApproved
		syncCaches(j)
		result = DecisionResult{
			Message:        "Approved content for: " + node.Title,
			RemainingCount: len(j.PendingContentNodes),
		}
		return nil
	})
	return result, err
}

// RegenerateContentResult carries the fresh summary back to the operator.
type RegenerateContentResult struct {
	Message     string              `json:"message"`
	AtomContent *domain.AtomContent `json:"atom_content,omitempty"`
}

// RegenerateContent re-summarizes one node and resets its approval gate.
func (c *Controller) RegenerateContent(ctx context.Context, jobID, nodeID string) (RegenerateContentResult, error) {
	job, err := c.store.Update(ctx, jobID, func(j *domain.ProcessingJob) error {
		if err := requireStructure(j); err != nil {
			return err
		}
		node := domain.FindNode(j.Structure.Root, nodeID)
		if node == nil {
			return fmt.Errorf("node %s: %w", nodeID, apperrors.ErrNotFound)
		}
		node.ApprovalStatus = domain.ApprovalRegenerating
		syncCaches(j)
		return nil
	})
	if err != nil {
		return RegenerateContentResult{}, err
	}

	node := domain.FindNode(job.Structure.Root, nodeID)
	content := c.summarizer.SummarizeNode(ctx, node)

	var title string
	_, err = c.store.Update(ctx, jobID, func(j *domain.ProcessingJob) error {
		if err := requireStructure(j); err != nil {
			return err
		}
		target := domain.FindNode(j.Structure.Root, nodeID)
		if target == nil {
			return fmt.Errorf("node %s: %w", nodeID, apperrors.ErrNotFound)
		}
		target.AtomContent = content
		target.ApprovalStatus = domain.ApprovalPending
		syncCaches(j)
		title = target.Title
		return nil
	})
	if err != nil {
		return RegenerateContentResult{}, err
	}

	return RegenerateContentResult{
		Message:     "Regenerated content for: " + title,
		AtomContent: content,
	}, nil
}

// ContentEdit is an operator's manual replacement for a generated summary.
type ContentEdit struct {
	Description    string   `json:"description" binding:"required"`
	Statement      string   `json:"statement" binding:"required"`
	Proof          string   `json:"proof"`
	Lemmas         []string `json:"lemmas"`
	RelatedContent string   `json:"related_content"`
}

// EditContent stores a manual edit. Edited nodes are approved implicitly and
// flagged so regeneration never silently overwrites operator work.
func (c *Controller) EditContent(ctx context.Context, jobID, nodeID string, edit ContentEdit) (DecisionResult, error) {
	var result DecisionResult
	_, err := c.store.Update(ctx, jobID, func(j *domain.ProcessingJob) error {
		if err := requireStructure(j); err != nil {
			return err
		}
		node := domain.FindNode(j.Structure.Root, nodeID)
		if node == nil {
			return fmt.Errorf("node %s: %w", nodeID, apperrors.ErrNotFound)
		}
		node.AtomContent = &domain.AtomContent{
			Description:    edit.Description,
			Statement:      edit.Statement,
			Proof:          edit.Proof,
			Lemmas:         edit.Lemmas,
			RelatedContent: edit.RelatedContent,
		}
		node.UserEdited = true
		node.ApprovalStatus = domain.ApprovalApproved
		syncCaches(j)
		result = DecisionResult{
			Message:        "Saved manual edits for: " + node.Title,
			RemainingCount: len(j.PendingContentNodes),
		}
		return nil
	})
	return result, err
}

// ApproveAllContentResult reports a bulk content approval.
type ApproveAllContentResult struct {
	Message       string `json:"message"`
	ApprovedCount int    `json:"approved_count"`
}

// ApproveAllContent accepts every summary still pending.
func (c *Controller) ApproveAllContent(ctx context.Context, jobID string) (ApproveAllContentResult, error) {
	var approved int
	_, err := c.store.Update(ctx, jobID, func(j *domain.ProcessingJob) error {
		if err := requireStructure(j); err != nil {
			return err
		}
		pending := domain.CollectPendingContent(j.Structure.Root)
		for _, node := range pending {
			node.ApprovalStatus = domain.ApprovalApproved
		}
		approved = len(pending)
		syncCaches(j)
		return nil
	})
	if err != nil {
		return ApproveAllContentResult{}, err
	}
	return ApproveAllContentResult{
		Message:       fmt.Sprintf("Approved %d content summaries.", approved),
		ApprovedCount: approved,
	}, nil
}

// CompleteResult reports workflow completion.
type CompleteResult struct {
	Message string `json:"message"`
}

// Complete finalizes the workflow once every summary is approved.
func (c *Controller) Complete(ctx context.Context, jobID string) (CompleteResult, error) {
	_, err := c.store.Update(ctx, jobID, func(j *domain.ProcessingJob) error {
		if j.WorkflowStage != domain.StageAwaitingContentApproval {
			return fmt.Errorf("cannot complete in stage %q: %w", j.WorkflowStage, apperrors.ErrPrecondition)
		}
		if err := requireStructure(j); err != nil {
			return err
		}
		if pending := domain.CollectPendingContent(j.Structure.Root); len(pending) > 0 {
			return fmt.Errorf("cannot complete: %d nodes still pending content review: %w", len(pending), apperrors.ErrPrecondition)
		}
		j.WorkflowStage = domain.StageCompleted
		j.Status = domain.JobStatusCompleted
		j.Message = "Workflow complete. Ready for export."
		j.Progress = 1.0
		syncCaches(j)
		return nil
	})
	if err != nil {
		return CompleteResult{}, err
	}
	return CompleteResult{Message: "Workflow complete! You can now export the document."}, nil
}
