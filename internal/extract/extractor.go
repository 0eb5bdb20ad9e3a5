package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/atomizehq/atomizer/internal/config"
	"github.com/atomizehq/atomizer/internal/domain"
	"github.com/atomizehq/atomizer/internal/platform/logger"
	"github.com/atomizehq/atomizer/internal/provider"
)

// ProgressFunc reports extraction progress back to the job record.
type ProgressFunc func(ctx context.Context, message string, progress float64)

// Extractor derives a hierarchical document structure from raw text using an
// LLM. Small documents go through one structure call; large ones get a TOC
// pass followed by a per-chapter pass.
type Extractor struct {
	provider provider.Provider
	cfg      config.Settings
	log      *logger.Logger
}

func NewExtractor(p provider.Provider, cfg config.Settings, log *logger.Logger) *Extractor {
	return &Extractor{
		provider: p,
		cfg:      cfg,
		log:      log.With("service", "Extractor"),
	}
}

type sectionPayload struct {
	Title          string           `json:"title"`
	Type           string           `json:"type"`
	Level          int              `json:"level"`
	Category       string           `json:"category"`
	ContentSummary string           `json:"content_summary"`
	Children       []sectionPayload `json:"children"`
}

type docPayload struct {
	Title    string           `json:"title"`
	Author   string           `json:"author"`
	Sections []sectionPayload `json:"sections"`
}

type tocChapter struct {
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Sections []string `json:"sections"`
}

type tocPayload struct {
	Title    string       `json:"title"`
	Author   string       `json:"author"`
	Chapters []tocChapter `json:"chapters"`
}

// ExtractStructure builds the document tree. The dispatch boundary is exact:
// documents at or under MaxTOCChars take the single pass.
func (e *Extractor) ExtractStructure(ctx context.Context, text string, titleHint, authorHint string, progress ProgressFunc) (*domain.DocumentStructure, error) {
	if len(text) <= e.cfg.MaxTOCChars {
		e.log.Info("single-pass extraction", "chars", len(text))
		return e.extractSinglePass(ctx, text, titleHint, authorHint)
	}

	e.log.Info("two-pass chunked extraction", "chars", len(text))
	if progress != nil {
		progress(ctx, "Extracting document outline...", 0.0)
	}

	toc, err := e.extractTOC(ctx, text, titleHint)
	if err != nil {
		return nil, err
	}
	e.log.Info("toc extracted", "chapters", len(toc.Chapters))

	chapterNodes := make([]*domain.StructureNode, 0, len(toc.Chapters))
	total := len(toc.Chapters)
	for i, ch := range toc.Chapters {
		title := ch.Title
		if title == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}
		if progress != nil {
			msg := title
			if len(msg) > 50 {
				msg = msg[:50]
			}
			progress(ctx, "Processing: "+msg+"...", float64(i+1)/float64(total+1))
		}
		e.log.Info("processing chapter", "index", i+1, "total", total, "title", title)

		node, err := e.extractChapterStructure(ctx, text, title, ch.Sections)
		if err != nil {
			return nil, err
		}
		chapterNodes = append(chapterNodes, node)
	}

	if progress != nil {
		progress(ctx, "Building final structure...", 0.95)
	}
	return buildStructureFromChapters(toc, chapterNodes, text), nil
}

func (e *Extractor) extractSinglePass(ctx context.Context, text, titleHint, authorHint string) (*domain.DocumentStructure, error) {
	if titleHint == "" {
		titleHint = "detect from content"
	}
	if authorHint == "" {
		authorHint = "detect from content"
	}
	body := text
	if len(body) > e.cfg.MaxStructureChars {
		body = body[:e.cfg.MaxStructureChars]
	}

	prompt := fmt.Sprintf(`Analyze this document text and extract its hierarchical structure.

The document appears to be a book or textbook. Identify:
1. The document title (if not provided: %s)
2. Author (if not provided: %s)
3. All chapters, sections, and subsections with their hierarchy
4. For each section, classify it as either:
   - "knowledge": Contains substantive educational/informational content
   - "meta": Preface, foreword, acknowledgements, table of contents, index, copyright, about author, etc.

Extract the COMPLETE hierarchical structure to any depth. Subsections can contain sub-subsections, and those can contain further nested content.

Return a JSON structure like this:
{
    "title": "Book Title",
    "author": "Author Name or null",
    "sections": [
        {
            "title": "Chapter 1: Foundations",
            "type": "chapter",
            "level": 1,
            "category": "knowledge",
            "content_summary": "Brief summary of what this chapter contains",
            "children": [
                {
                    "title": "1.1 Basic Concepts",
                    "type": "section",
                    "level": 2,
                    "category": "knowledge",
                    "content_summary": "...",
                    "children": []
                }
            ]
        }
    ]
}

Valid types: "book", "chapter", "section", "subsection", "content"
Valid categories: "knowledge", "meta"

IMPORTANT: Capture ALL levels of hierarchy present in the document. Do not flatten subsections - preserve the full depth.

DOCUMENT TEXT:
%s`, titleHint, authorHint, body)

	resp, err := e.provider.Complete(ctx, provider.CompleteRequest{Prompt: prompt, Temperature: 0.2})
	if err != nil {
		return nil, fmt.Errorf("structure extraction: %w", err)
	}

	var data docPayload
	if err := DecodeObject(resp, &data); err != nil {
		e.log.Warn("structure response unparseable, using fallback", "err", err)
		data = docPayload{Title: "Untitled Document"}
	}
	return buildStructure(data, text), nil
}

func (e *Extractor) extractTOC(ctx context.Context, text, titleHint string) (tocPayload, error) {
	titleLine := "Detect the document title from content."
	if titleHint != "" {
		titleLine = "The document title might be: " + titleHint
	}
	prompt := fmt.Sprintf(`Analyze this document and extract ONLY the hierarchical outline.

Return chapter and section TITLES only (no content). Include all levels of hierarchy you can identify.

%s

Return JSON in this exact format:
{
    "title": "Book Title",
    "author": "Author Name or null",
    "chapters": [
        {
            "title": "Chapter 1: Introduction",
            "category": "knowledge",
            "sections": ["1.1 Background", "1.2 Overview", "1.3 Summary"]
        },
        {
            "title": "Preface",
            "category": "meta",
            "sections": []
        }
    ]
}

Valid categories:
- "knowledge": Contains substantive educational/informational content
- "meta": Preface, foreword, acknowledgements, table of contents, index, copyright, about author, etc.

IMPORTANT: Include ALL chapters/major sections you can identify, even from the beginning and end of the document.

DOCUMENT TEXT (beginning portion):
%s`, titleLine, text[:e.cfg.MaxTOCChars])

	resp, err := e.provider.Complete(ctx, provider.CompleteRequest{Prompt: prompt, Temperature: 0.2})
	if err != nil {
		return tocPayload{}, fmt.Errorf("toc extraction: %w", err)
	}

	var toc tocPayload
	if err := DecodeObject(resp, &toc); err != nil {
		e.log.Warn("toc response unparseable, using fallback", "err", err)
		toc = tocPayload{Title: "Untitled Document"}
	}
	return toc, nil
}

func (e *Extractor) extractChapterStructure(ctx context.Context, fullText, chapterTitle string, sectionTitles []string) (*domain.StructureNode, error) {
	chapterText := ChapterWindow(fullText, chapterTitle, e.cfg.MaxChapterChars)
	if len(chapterText) > e.cfg.MaxChapterChars {
		e.log.Warn("chapter exceeds limit, truncating", "title", chapterTitle, "chars", len(chapterText))
		chapterText = chapterText[:e.cfg.MaxChapterChars]
	}

	sectionsHint := ""
	if len(sectionTitles) > 0 {
		hint := sectionTitles
		if len(hint) > 10 {
			hint = hint[:10]
		}
		sectionsHint = "\nKnown sections in this chapter: " + strings.Join(hint, ", ")
	}

	prompt := fmt.Sprintf(`Extract the complete hierarchical structure for this chapter: %q
%s

Return JSON with full hierarchy including subsections and content summaries.

Return format:
{
    "title": %q,
    "type": "chapter",
    "level": 1,
    "category": "knowledge",
    "content_summary": "Brief summary of chapter content",
    "children": [
        {
            "title": "Section Title",
            "type": "section",
            "level": 2,
            "category": "knowledge",
            "content_summary": "Section summary",
            "children": []
        }
    ]
}

Valid types: "chapter", "section", "subsection", "content"
Valid categories: "knowledge", "meta"

IMPORTANT: Capture ALL levels of hierarchy present. Do not flatten subsections.

CHAPTER TEXT:
%s`, chapterTitle, sectionsHint, chapterTitle, chapterText)

	resp, err := e.provider.Complete(ctx, provider.CompleteRequest{Prompt: prompt, Temperature: 0.2})
	if err != nil {
		return nil, fmt.Errorf("chapter extraction %q: %w", chapterTitle, err)
	}

	var data sectionPayload
	if err := DecodeObject(resp, &data); err != nil {
		e.log.Warn("chapter response unparseable, using fallback node", "title", chapterTitle, "err", err)
		data = sectionPayload{Title: chapterTitle, Type: "chapter", Level: 1, Category: "knowledge"}
	}
	if data.Title == "" {
		data.Title = chapterTitle
	}
	return buildNode(data, 0), nil
}

var nextChapterRes = []*regexp.Regexp{
	regexp.MustCompile(`\n\s*(Chapter\s+\d+)`),
	regexp.MustCompile(`\n\s*(CHAPTER\s+\d+)`),
	regexp.MustCompile(`\n\s*(Part\s+\d+)`),
	regexp.MustCompile(`\n\s*(PART\s+\d+)`),
	regexp.MustCompile(`\n\s*(\d+\.\s+[A-Z][A-Za-z]+)`),
}

// ChapterWindow slices the span of fullText belonging to the named chapter:
// from the title match to the nearest following chapter marker. Falls back to
// the document head when the title cannot be located.
func ChapterWindow(fullText, chapterTitle string, maxChars int) string {
	idx := indexFold(fullText, chapterTitle)
	if idx < 0 {
		// "Chapter 1: Intro" may appear in the body as just "Chapter 1".
		simplified := strings.TrimSpace(titleColonRe.ReplaceAllString(chapterTitle, ""))
		if simplified != "" && simplified != chapterTitle {
			idx = indexFold(fullText, simplified)
		}
	}
	if idx < 0 {
		if len(fullText) > maxChars {
			return fullText[:maxChars]
		}
		return fullText
	}

	searchStart := idx + len(chapterTitle) + 100
	end := len(fullText)
	if searchStart < end {
		for _, re := range nextChapterRes {
			if loc := re.FindStringIndex(fullText[searchStart:]); loc != nil {
				if candidate := searchStart + loc[0]; candidate < end {
					end = candidate
				}
			}
		}
	}
	if searchStart >= end {
		end = len(fullText)
	}
	return fullText[idx:end]
}

var titleColonRe = regexp.MustCompile(`:.*$`)

// indexFold is a case-insensitive strings.Index.
func indexFold(haystack, needle string) int {
	if needle == "" {
		return -1
	}
	return strings.Index(strings.ToLower(haystack), strings.ToLower(needle))
}

func buildNode(data sectionPayload, parentLevel int) *domain.StructureNode {
	level := data.Level
	if level == 0 {
		level = parentLevel + 1
	}
	title := data.Title
	if title == "" {
		title = "Untitled"
	}
	category := domain.ParseContentCategory(data.Category)

	children := make([]*domain.StructureNode, 0, len(data.Children))
	for _, child := range data.Children {
		children = append(children, buildNode(child, level))
	}

	return &domain.StructureNode{
		ID:             domain.NewNodeID(),
		Title:          title,
		Type:           domain.ParseSectionType(data.Type),
		Level:          level,
		Content:        data.ContentSummary,
		Children:       children,
		Category:       category,
		Included:       category == domain.CategoryKnowledge,
		ApprovalStatus: domain.ApprovalPending,
	}
}

func buildStructure(data docPayload, fullText string) *domain.DocumentStructure {
	title := data.Title
	if title == "" {
		title = "Untitled Document"
	}

	children := make([]*domain.StructureNode, 0, len(data.Sections))
	for _, s := range data.Sections {
		children = append(children, buildNode(s, 0))
	}

	root := &domain.StructureNode{
		ID:       "root",
		Title:    title,
		Type:     domain.SectionBook,
		Level:    0,
		Children: children,
		Category: domain.CategoryKnowledge,
		Included: true,
	}

	return &domain.DocumentStructure{
		Title:       title,
		Author:      data.Author,
		Root:        root,
		TotalPages:  domain.EstimatePageCount(fullText),
		ExtractedAt: time.Now(),
	}
}

func buildStructureFromChapters(toc tocPayload, chapters []*domain.StructureNode, fullText string) *domain.DocumentStructure {
	title := toc.Title
	if title == "" {
		title = "Untitled Document"
	}

	root := &domain.StructureNode{
		ID:       "root",
		Title:    title,
		Type:     domain.SectionBook,
		Level:    0,
		Children: chapters,
		Category: domain.CategoryKnowledge,
		Included: true,
	}

	return &domain.DocumentStructure{
		Title:       title,
		Author:      toc.Author,
		Root:        root,
		TotalPages:  domain.EstimatePageCount(fullText),
		ExtractedAt: time.Now(),
	}
}
