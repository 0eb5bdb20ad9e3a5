// Package pipeline runs the background processing of an uploaded PDF up to
// the first human approval gate.
package pipeline

import (
	"context"
	"fmt"

	"github.com/atomizehq/atomizer/internal/domain"
	"github.com/atomizehq/atomizer/internal/extract"
	"github.com/atomizehq/atomizer/internal/filter"
	"github.com/atomizehq/atomizer/internal/jobstore"
	"github.com/atomizehq/atomizer/internal/metrics"
	"github.com/atomizehq/atomizer/internal/ocr"
	"github.com/atomizehq/atomizer/internal/pdfx"
	"github.com/atomizehq/atomizer/internal/platform/logger"
)

// Renderer rasterizes PDF pages into base64-encoded images for OCR.
// Rasterization needs a native PDF renderer, so it is an injected
// collaborator; deployments without one reject scanned uploads.
type Renderer interface {
	RenderPages(ctx context.Context, pdfPath string, pageCount int) ([]ocr.Page, error)
}

// Pipeline drives one upload from raw PDF to the structure-approval pause.
type Pipeline struct {
	store     jobstore.Store
	extractor *extract.Extractor
	filter    *filter.Filter
	ocr       *ocr.Service
	renderer  Renderer
	metrics   *metrics.Metrics
	log       *logger.Logger
}

func New(
	store jobstore.Store,
	extractor *extract.Extractor,
	fil *filter.Filter,
	ocrSvc *ocr.Service,
	renderer Renderer,
	m *metrics.Metrics,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		store:     store,
		extractor: extractor,
		filter:    fil,
		ocr:       ocrSvc,
		renderer:  renderer,
		metrics:   m,
		log:       log.With("service", "Pipeline"),
	}
}

// Process runs the extraction pipeline for one job. It is synchronous; the
// upload handler runs it on its own goroutine. Any failure marks the job
// failed and stops, there are no retries.
func (p *Pipeline) Process(ctx context.Context, jobID, pdfPath string) {
	if err := p.process(ctx, jobID, pdfPath); err != nil {
		p.log.Error("processing failed", "job_id", jobID, "err", err)
		p.markFailed(ctx, jobID, err)
	}
}

func (p *Pipeline) process(ctx context.Context, jobID, pdfPath string) error {
	if err := p.progress(ctx, jobID, domain.JobStatusExtractingPages, domain.StageExtracting,
		"Extracting pages from PDF...", 0.1); err != nil {
		return err
	}

	doc, err := pdfx.Open(pdfPath)
	if err != nil {
		return err
	}
	totalPages := doc.PageCount()
	meta := doc.Metadata()

	if err := p.progress(ctx, jobID, domain.JobStatusProcessingOCR, domain.StageExtracting,
		"Processing pages...", 0.2); err != nil {
		return err
	}

	var fullText string
	if doc.HasTextLayer() {
		fullText = doc.ExtractAllText()
	} else {
		fullText, err = p.runOCR(ctx, jobID, pdfPath, totalPages)
		if err != nil {
			return err
		}
	}

	if err := p.progress(ctx, jobID, domain.JobStatusAnalyzingStructure, domain.StageExtracting,
		"Analyzing document structure...", 0.70); err != nil {
		return err
	}

	structure, err := p.extractor.ExtractStructure(ctx, fullText, meta.Title, meta.Author,
		func(ctx context.Context, msg string, pct float64) {
			_, _ = p.store.Update(ctx, jobID, func(j *domain.ProcessingJob) error {
				j.Message = msg
				j.Progress = 0.70 + pct*0.15
				return nil
			})
		})
	if err != nil {
		return err
	}

	if err := p.progress(ctx, jobID, domain.JobStatusFilteringContent, domain.StageExtracting,
		"Filtering content sections...", 0.85); err != nil {
		return err
	}
	p.filter.FilterStructure(structure, false)

	if err := p.progress(ctx, jobID, domain.JobStatusRefiningContent, domain.StageExtracting,
		"Extracting content for each section...", 0.85); err != nil {
		return err
	}
	if err := p.extractor.RefineStructure(ctx, structure, fullText); err != nil {
		return err
	}

	// Pause here. Atomization and content filling are operator-triggered
	// through the workflow controller.
	_, err = p.store.Update(ctx, jobID, func(j *domain.ProcessingJob) error {
		j.FullText = fullText
		j.Structure = structure
		j.WorkflowStage = domain.StageAwaitingStructureApproval
		j.Status = domain.JobStatusCompleted
		j.Progress = 0.35
		j.Message = "Structure extracted. Please review and approve."
		return nil
	})
	if err != nil {
		return err
	}

	if p.metrics != nil {
		p.metrics.JobsTotal.WithLabelValues("extracted").Inc()
		p.metrics.RecordTransition(string(domain.StageAwaitingStructureApproval))
	}
	p.log.Info("initial processing complete", "job_id", jobID,
		"pages", totalPages, "chars", len(fullText), "stage", domain.StageAwaitingStructureApproval)
	return nil
}

// runOCR renders every page and OCRs the batch.
func (p *Pipeline) runOCR(ctx context.Context, jobID, pdfPath string, totalPages int) (string, error) {
	if p.renderer == nil {
		return "", fmt.Errorf("document has no text layer and no page renderer is configured")
	}

	_, _ = p.store.Update(ctx, jobID, func(j *domain.ProcessingJob) error {
		j.Message = fmt.Sprintf("Extracting %d pages in parallel...", totalPages)
		return nil
	})

	pages, err := p.renderer.RenderPages(ctx, pdfPath, totalPages)
	if err != nil {
		return "", fmt.Errorf("render pages: %w", err)
	}

	_, _ = p.store.Update(ctx, jobID, func(j *domain.ProcessingJob) error {
		j.Progress = 0.5
		j.Message = fmt.Sprintf("Running OCR on %d pages...", totalPages)
		return nil
	})

	results, err := p.ocr.ProcessPages(ctx, pages, func(pageNumber int) {
		_, _ = p.store.Update(ctx, jobID, func(j *domain.ProcessingJob) error {
			j.Progress = 0.5 + 0.2*float64(pageNumber+1)/float64(totalPages)
			j.Message = fmt.Sprintf("OCR processing page %d/%d...", pageNumber+1, totalPages)
			return nil
		})
	})
	if err != nil {
		return "", err
	}

	if p.metrics != nil {
		p.metrics.PagesOCRTotal.Add(float64(len(results)))
	}
	return ocr.CombineResults(results), nil
}

func (p *Pipeline) progress(ctx context.Context, jobID string, status domain.JobStatus, stage domain.WorkflowStage, message string, pct float64) error {
	_, err := p.store.Update(ctx, jobID, func(j *domain.ProcessingJob) error {
		j.Status = status
		j.WorkflowStage = stage
		j.Message = message
		j.Progress = pct
		return nil
	})
	return err
}

func (p *Pipeline) markFailed(ctx context.Context, jobID string, cause error) {
	_, err := p.store.Update(ctx, jobID, func(j *domain.ProcessingJob) error {
		j.Status = domain.JobStatusFailed
		j.WorkflowStage = domain.StageFailed
		j.Error = cause.Error()
		j.Message = "Processing failed: " + cause.Error()
		return nil
	})
	if err != nil {
		p.log.Error("could not mark job failed", "job_id", jobID, "err", err)
	}
	if p.metrics != nil {
		p.metrics.JobsTotal.WithLabelValues("failed").Inc()
	}
}
