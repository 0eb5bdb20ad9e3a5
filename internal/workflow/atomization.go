package workflow

import (
	"context"
	"fmt"

	"github.com/atomizehq/atomizer/internal/atomize"
	"github.com/atomizehq/atomizer/internal/domain"
	"github.com/atomizehq/atomizer/internal/extract"
	apperrors "github.com/atomizehq/atomizer/internal/pkg/errors"
)

// ForceApprovedReason marks nodes approved by the iteration cap rather than
// an operator or a clean fixed point.
const ForceApprovedReason = "force-approved after iteration limit"

// approveAllMaxIterations bounds the split-then-approve fixed point.
const approveAllMaxIterations = 5

// ApproveStructureResult reports the outcome of structure approval.
type ApproveStructureResult struct {
	Message      string `json:"message"`
	PendingCount int    `json:"pending_count"`
}

// ApproveStructure accepts the extracted tree and runs the atomicity analysis
// over every included non-container node, leaving each pending operator
// review.
func (c *Controller) ApproveStructure(ctx context.Context, jobID string) (ApproveStructureResult, error) {
	// Gate and claim the job first so a second approval cannot race in while
	// the analysis runs.
	job, err := c.store.Update(ctx, jobID, func(j *domain.ProcessingJob) error {
		if j.WorkflowStage != domain.StageAwaitingStructureApproval {
			return fmt.Errorf("cannot approve structure in stage %q: %w", j.WorkflowStage, apperrors.ErrPrecondition)
		}
		if err := requireStructure(j); err != nil {
			return err
		}
		j.WorkflowStage = domain.StageAtomizing
		j.Status = domain.JobStatusAtomizing
		j.Message = "Populating section content from full text..."
		return nil
	})
	if err != nil {
		return ApproveStructureResult{}, err
	}

	root := job.Structure.Root
	if job.FullText != "" {
		extract.PopulateSourceText(root, job.FullText)
		c.log.Info("populated node source text", "job_id", jobID)
	}

	if err := c.analyzeTree(ctx, root); err != nil {
		return ApproveStructureResult{}, err
	}

	var pendingCount int
	_, err = c.store.Update(ctx, jobID, func(j *domain.ProcessingJob) error {
		j.Structure = job.Structure
		syncCaches(j)
		pendingCount = len(j.PendingAtomizationNodes)
		j.WorkflowStage = domain.StageAwaitingAtomizationApproval
		j.Message = fmt.Sprintf("Please review %d nodes for atomicity decisions.", pendingCount)
		return nil
	})
	if err != nil {
		return ApproveStructureResult{}, err
	}

	return ApproveStructureResult{
		Message:      fmt.Sprintf("Structure approved. %d nodes pending atomicity review.", pendingCount),
		PendingCount: pendingCount,
	}, nil
}

// analyzeTree runs a non-recursive atomicity decision on every included
// non-container node.
func (c *Controller) analyzeTree(ctx context.Context, node *domain.StructureNode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !node.Included {
		return nil
	}
	if node.Type.IsContainer() {
		for _, child := range node.Children {
			if err := c.analyzeTree(ctx, child); err != nil {
				return err
			}
		}
		return nil
	}

	c.analyzeNode(ctx, node)

	for _, child := range node.Children {
		if err := c.analyzeTree(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

// analyzeNode applies one atomicity decision without recursing.
func (c *Controller) analyzeNode(ctx context.Context, node *domain.StructureNode) {
	content := node.AnalysisText()
	if len(content) < c.atomizer.MinContentLength() {
		node.AtomizationStatus = domain.AtomizationAtomic
		node.AIAtomicityReason = atomize.ShortContentReason
		node.ApprovalStatus = domain.ApprovalPending
		return
	}
	atomize.ApplyDecision(node, c.atomizer.CheckNodeAtomicity(ctx, node))
}

// AtomizationQueueItem is one node awaiting an atomicity decision.
type AtomizationQueueItem struct {
	NodeID         string                `json:"node_id"`
	Title          string                `json:"title"`
	Path           []string              `json:"path"`
	IsAtomic       bool                  `json:"is_atomic"`
	AtomType       domain.AtomType       `json:"atom_type,omitempty"`
	AIReason       string                `json:"ai_reason,omitempty"`
	ContentPreview string                `json:"content_preview"`
	FullContent    string                `json:"full_content"`
	ApprovalStatus domain.ApprovalStatus `json:"approval_status"`
}

// AtomizationQueue lists the nodes pending atomicity review.
func (c *Controller) AtomizationQueue(ctx context.Context, jobID string) ([]AtomizationQueueItem, error) {
	job, err := c.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Structure == nil || job.Structure.Root == nil {
		return []AtomizationQueueItem{}, nil
	}

	root := job.Structure.Root
	pending := domain.CollectPendingAtomization(root)
	items := make([]AtomizationQueueItem, 0, len(pending))
	for _, node := range pending {
		content := node.AnalysisText()
		items = append(items, AtomizationQueueItem{
			NodeID:         node.ID,
			Title:          node.Title,
			Path:           domain.NodePath(root, node.ID),
			IsAtomic:       node.AtomizationStatus == domain.AtomizationAtomic,
			AtomType:       node.AtomType,
			AIReason:       node.AIAtomicityReason,
			ContentPreview: preview(content, 500),
			FullContent:    content,
			ApprovalStatus: node.ApprovalStatus,
		})
	}
	return items, nil
}

// DecisionResult reports an approval with the count still outstanding.
type DecisionResult struct {
	Message        string `json:"message"`
	RemainingCount int    `json:"remaining_count"`
}

// ApproveAtomization accepts the model's atomicity decision for one node.
func (c *Controller) ApproveAtomization(ctx context.Context, jobID, nodeID string) (DecisionResult, error) {
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
			Message:        "Approved atomicity decision for: " + node.Title,
			RemainingCount: len(j.PendingAtomizationNodes),
		}
		return nil
	})
	return result, err
}

// RegenerateResult reports a fresh atomicity decision.
type RegenerateResult struct {
	Message  string          `json:"message"`
	IsAtomic bool            `json:"is_atomic"`
	AtomType domain.AtomType `json:"atom_type,omitempty"`
	Reason   string          `json:"reason"`
}

// RegenerateAtomization re-runs the atomicity check for one node and resets
// its approval gate.
func (c *Controller) RegenerateAtomization(ctx context.Context, jobID, nodeID string) (RegenerateResult, error) {
	// Mark the node regenerating so queue readers see it in flight.
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
		return RegenerateResult{}, err
	}

	node := domain.FindNode(job.Structure.Root, nodeID)
	decision := c.atomizer.CheckNodeAtomicity(ctx, node)

	var title string
	_, err = c.store.Update(ctx, jobID, func(j *domain.ProcessingJob) error {
		if err := requireStructure(j); err != nil {
			return err
		}
		target := domain.FindNode(j.Structure.Root, nodeID)
		if target == nil {
			return fmt.Errorf("node %s: %w", nodeID, apperrors.ErrNotFound)
		}
		atomize.ApplyDecision(target, decision)
		syncCaches(j)
		title = target.Title
		return nil
	})
	if err != nil {
		return RegenerateResult{}, err
	}

	return RegenerateResult{
		Message:  "Regenerated atomicity analysis for: " + title,
		IsAtomic: decision.IsAtomic,
		AtomType: decision.AtomType,
		Reason:   decision.Reason,
	}, nil
}

// SplitResult reports a split attempt. Success false with no error means the
// model found nothing to divide; the node is untouched.
type SplitResult struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	NewChildren []string `json:"new_children,omitempty"`
}

// SplitNode divides a node into child units at the operator's request. The
// operator's split decision approves the parent; new children enter the
// review queue pending.
func (c *Controller) SplitNode(ctx context.Context, jobID, nodeID string) (SplitResult, error) {
	_, node, err := c.getNode(ctx, jobID, nodeID)
	if err != nil {
		return SplitResult{}, err
	}

	newChildren := c.atomizer.SplitNode(ctx, node)
	if len(newChildren) == 0 {
		return SplitResult{
			Success: false,
			Message: "Could not split node further. The content may already be atomic.",
		}, nil
	}

	for _, child := range newChildren {
		c.analyzeNode(ctx, child)
	}

	newIDs := domain.NodeIDs(newChildren)
	_, err = c.store.Update(ctx, jobID, func(j *domain.ProcessingJob) error {
		if err := requireStructure(j); err != nil {
			return err
		}
		target := domain.FindNode(j.Structure.Root, nodeID)
		if target == nil {
			return fmt.Errorf("node %s: %w", nodeID, apperrors.ErrNotFound)
		}
		target.Children = append(target.Children, newChildren...)
		target.AtomizationStatus = domain.AtomizationNeedsSplitting
		target.ApprovalStatus = domain.ApprovalApproved
		syncCaches(j)
		return nil
	})
	if err != nil {
		return SplitResult{}, err
	}

	return SplitResult{
		Success:     true,
		Message:     fmt.Sprintf("Split into %d children. Please review the new nodes.", len(newChildren)),
		NewChildren: newIDs,
	}, nil
}

// ApproveAllAtomization resolves the whole queue: atomic nodes are approved,
// splittable leaves are split and their children analyzed, repeating until a
// fixed point or the iteration cap. Anything still pending at the cap is
// force-approved.
func (c *Controller) ApproveAllAtomization(ctx context.Context, jobID string) (DecisionResult, error) {
	job, err := c.store.Get(ctx, jobID)
	if err != nil {
		return DecisionResult{}, err
	}
	if err := requireStructure(job); err != nil {
		return DecisionResult{}, err
	}
	root := job.Structure.Root

	for iteration := 0; iteration < approveAllMaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return DecisionResult{}, err
		}

		pending := domain.CollectPendingAtomization(root)
		if len(pending) == 0 {
			break
		}

		var needsSplit []*domain.StructureNode
		for _, node := range pending {
			if node.AtomizationStatus == domain.AtomizationNeedsSplitting && len(node.Children) == 0 {
				needsSplit = append(needsSplit, node)
				continue
			}
			node.ApprovalStatus = domain.ApprovalApproved
		}
		if len(needsSplit) == 0 {
			break
		}

		for _, node := range needsSplit {
			newChildren := c.atomizer.SplitNode(ctx, node)
			if len(newChildren) == 0 {
				// Cannot divide further, accept as a unit.
				node.ApprovalStatus = domain.ApprovalApproved
				continue
			}
			node.Children = append(node.Children, newChildren...)
			node.AtomizationStatus = domain.AtomizationNeedsSplitting
			node.ApprovalStatus = domain.ApprovalApproved
			for _, child := range newChildren {
				c.analyzeNode(ctx, child)
			}
		}
	}

	// Stragglers from the iteration cap get approved with an audit trail.
	for _, node := range domain.CollectPendingAtomization(root) {
		node.ApprovalStatus = domain.ApprovalApproved
		node.AIAtomicityReason = ForceApprovedReason
	}

	_, err = c.store.Update(ctx, jobID, func(j *domain.ProcessingJob) error {
		if err := requireStructure(j); err != nil {
			return err
		}
		j.Structure = job.Structure
		syncCaches(j)
		return nil
	})
	if err != nil {
		return DecisionResult{}, err
	}

	return DecisionResult{
		Message:        "All atomization nodes processed and approved.",
		RemainingCount: 0,
	}, nil
}
