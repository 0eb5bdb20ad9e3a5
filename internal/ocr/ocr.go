// Package ocr extracts text from rendered page images through a
// vision-capable model provider.
package ocr

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/atomizehq/atomizer/internal/platform/logger"
	"github.com/atomizehq/atomizer/internal/provider"
)

const pagePrompt = `Analyze this book/document page and extract:
1. All text content, preserving the original formatting as much as possible
2. If this appears to be a table of contents, chapter heading, or section title, note that

Format your response as:
TEXT:
[extracted text here]

STRUCTURE_HINTS:
[any structural information like "Chapter heading", "Table of contents", "Section 1.2", etc.]
`

// Page is one rendered page awaiting OCR. Numbers are zero-based.
type Page struct {
	Number      int
	ImageBase64 string
}

// Result is the OCR output for one page.
type Result struct {
	PageNumber     int    `json:"page_number"`
	Text           string `json:"text"`
	StructureHints string `json:"structure_hints,omitempty"`
}

// Service runs OCR with bounded concurrency.
type Service struct {
	provider      provider.Provider
	log           *logger.Logger
	maxConcurrent int
}

func New(p provider.Provider, log *logger.Logger, maxConcurrent int) *Service {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Service{
		provider:      p,
		log:           log.With("service", "OCRService"),
		maxConcurrent: maxConcurrent,
	}
}

// ProcessPage runs OCR on a single page image.
func (s *Service) ProcessPage(ctx context.Context, page Page) (Result, error) {
	raw, err := s.provider.AnalyzeImage(ctx, page.ImageBase64, pagePrompt, "")
	if err != nil {
		return Result{}, fmt.Errorf("ocr page %d: %w", page.Number, err)
	}
	text, hints := parseResponse(raw)
	return Result{PageNumber: page.Number, Text: text, StructureHints: hints}, nil
}

// parseResponse splits a model reply into the text body and any structural
// hints. Replies that ignore the format are taken verbatim as text.
func parseResponse(raw string) (text, hints string) {
	if !strings.Contains(raw, "TEXT:") {
		return strings.TrimSpace(raw), ""
	}
	parts := strings.SplitN(raw, "STRUCTURE_HINTS:", 2)
	text = strings.TrimSpace(strings.Replace(parts[0], "TEXT:", "", 1))
	if len(parts) > 1 {
		hints = strings.TrimSpace(parts[1])
	}
	return text, hints
}

// ProcessPages runs OCR across pages with bounded concurrency, reporting
// per-page completion through progress. Results come back ordered by page
// number. Any page failure fails the batch.
func (s *Service) ProcessPages(ctx context.Context, pages []Page, progress func(pageNumber int)) ([]Result, error) {
	results := make([]Result, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for i, page := range pages {
		g.Go(func() error {
			result, err := s.ProcessPage(gctx, page)
			if err != nil {
				return err
			}
			results[i] = result
			if progress != nil {
				progress(page.Number)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].PageNumber < results[j].PageNumber
	})
	return results, nil
}

// CombineResults joins OCR results into one page-marked document.
func CombineResults(results []Result) string {
	sorted := make([]Result, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PageNumber < sorted[j].PageNumber
	})

	parts := make([]string, 0, len(sorted))
	for _, r := range sorted {
		parts = append(parts, fmt.Sprintf("=== PAGE %d ===\n%s", r.PageNumber+1, r.Text))
	}
	return strings.Join(parts, "\n\n")
}
