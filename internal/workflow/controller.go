package workflow

import (
	"context"
	"fmt"

	"github.com/atomizehq/atomizer/internal/atomize"
	"github.com/atomizehq/atomizer/internal/domain"
	"github.com/atomizehq/atomizer/internal/jobstore"
	apperrors "github.com/atomizehq/atomizer/internal/pkg/errors"
	"github.com/atomizehq/atomizer/internal/platform/logger"
	"github.com/atomizehq/atomizer/internal/summarize"
)

// Controller drives the interactive approval workflow. Long model calls run
// against a job snapshot; results are committed through the store afterwards,
// with the stage gates keeping concurrent operations out of each other's way.
type Controller struct {
	store      jobstore.Store
	atomizer   *atomize.Atomizer
	summarizer *summarize.Summarizer
	log        *logger.Logger
}

func NewController(store jobstore.Store, a *atomize.Atomizer, s *summarize.Summarizer, log *logger.Logger) *Controller {
	return &Controller{
		store:      store,
		atomizer:   a,
		summarizer: s,
		log:        log.With("service", "WorkflowController"),
	}
}

// StatusResponse summarizes where a job stands.
type StatusResponse struct {
	JobID                   string               `json:"job_id"`
	WorkflowStage           domain.WorkflowStage `json:"workflow_stage"`
	Message                 string               `json:"message"`
	PendingAtomizationCount int                  `json:"pending_atomization_count"`
	PendingContentCount     int                  `json:"pending_content_count"`
}

// Status reports the current stage with a human-readable message.
func (c *Controller) Status(ctx context.Context, jobID string) (StatusResponse, error) {
	job, err := c.store.Get(ctx, jobID)
	if err != nil {
		return StatusResponse{}, err
	}

	pendingAtomization := len(job.PendingAtomizationNodes)
	pendingContent := len(job.PendingContentNodes)

	var message string
	switch job.WorkflowStage {
	case domain.StageUploading:
		message = "Uploading PDF..."
	case domain.StageExtracting:
		message = "Extracting content from PDF..."
	case domain.StageAwaitingStructureApproval:
		message = "Structure extracted. Please review and approve."
	case domain.StageAtomizing:
		message = "Analyzing content for atomicity..."
	case domain.StageAwaitingAtomizationApproval:
		message = fmt.Sprintf("Please review %d nodes for atomicity decisions.", pendingAtomization)
	case domain.StageFillingContent:
		message = "Generating content summaries..."
	case domain.StageAwaitingContentApproval:
		message = fmt.Sprintf("Please review %d content summaries.", pendingContent)
	case domain.StageCompleted:
		message = "Workflow complete. Ready for export."
	case domain.StageFailed:
		errMsg := job.Error
		if errMsg == "" {
			errMsg = "Unknown error"
		}
		message = "Processing failed: " + errMsg
	default:
		message = "Processing..."
	}

	return StatusResponse{
		JobID:                   jobID,
		WorkflowStage:           job.WorkflowStage,
		Message:                 message,
		PendingAtomizationCount: pendingAtomization,
		PendingContentCount:     pendingContent,
	}, nil
}

// FullTextResponse carries the raw extracted text for operator review.
type FullTextResponse struct {
	JobID  string `json:"job_id"`
	Text   string `json:"text"`
	Length int    `json:"length"`
}

// FullText returns the extracted document text.
func (c *Controller) FullText(ctx context.Context, jobID string) (FullTextResponse, error) {
	job, err := c.store.Get(ctx, jobID)
	if err != nil {
		return FullTextResponse{}, err
	}
	if job.FullText == "" {
		return FullTextResponse{}, fmt.Errorf("no extracted text available yet: %w", apperrors.ErrPrecondition)
	}
	return FullTextResponse{JobID: jobID, Text: job.FullText, Length: len(job.FullText)}, nil
}

// NodeContentResponse carries a node's full text for detailed review.
type NodeContentResponse struct {
	NodeID           string `json:"node_id"`
	Title            string `json:"title"`
	SourceText       string `json:"source_text"`
	Content          string `json:"content"`
	SourceTextLength int    `json:"source_text_length"`
	ContentLength    int    `json:"content_length"`
}

// NodeContent returns the full source text and summary content for one node.
func (c *Controller) NodeContent(ctx context.Context, jobID, nodeID string) (NodeContentResponse, error) {
	_, node, err := c.getNode(ctx, jobID, nodeID)
	if err != nil {
		return NodeContentResponse{}, err
	}
	return NodeContentResponse{
		NodeID:           nodeID,
		Title:            node.Title,
		SourceText:       node.SourceText,
		Content:          node.Content,
		SourceTextLength: len(node.SourceText),
		ContentLength:    len(node.Content),
	}, nil
}

// getNode fetches a job and locates a node inside its structure.
func (c *Controller) getNode(ctx context.Context, jobID, nodeID string) (*domain.ProcessingJob, *domain.StructureNode, error) {
	job, err := c.store.Get(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if job.Structure == nil || job.Structure.Root == nil {
		return nil, nil, fmt.Errorf("no structure available: %w", apperrors.ErrPrecondition)
	}
	node := domain.FindNode(job.Structure.Root, nodeID)
	if node == nil {
		return nil, nil, fmt.Errorf("node %s: %w", nodeID, apperrors.ErrNotFound)
	}
	return job, node, nil
}

// syncCaches recomputes the pending node id caches from the tree. The tree is
// the source of truth; every mutating operation ends here.
func syncCaches(job *domain.ProcessingJob) {
	if job.Structure == nil || job.Structure.Root == nil {
		job.PendingAtomizationNodes = []string{}
		job.PendingContentNodes = []string{}
		return
	}
	job.PendingAtomizationNodes = domain.NodeIDs(domain.CollectPendingAtomization(job.Structure.Root))
	job.PendingContentNodes = domain.NodeIDs(domain.CollectPendingContent(job.Structure.Root))
}

// requireStructure guards operations that need an extracted tree.
func requireStructure(job *domain.ProcessingJob) error {
	if job.Structure == nil || job.Structure.Root == nil {
		return fmt.Errorf("no structure available: %w", apperrors.ErrPrecondition)
	}
	return nil
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
