package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/atomizehq/atomizer/internal/config"
	"github.com/atomizehq/atomizer/internal/domain"
	"github.com/atomizehq/atomizer/internal/platform/logger"
	"github.com/atomizehq/atomizer/internal/provider"
)

// fakeProvider replays scripted responses and records the prompts it saw.
type fakeProvider struct {
	responses []string
	prompts   []string
}

func (f *fakeProvider) Complete(_ context.Context, req provider.CompleteRequest) (string, error) {
	f.prompts = append(f.prompts, req.Prompt)
	if len(f.responses) == 0 {
		return "", nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeProvider) AnalyzeImage(context.Context, string, string, string) (string, error) {
	return "", nil
}

func (f *fakeProvider) EmbedText(context.Context, string) ([]float32, error) { return nil, nil }

func (f *fakeProvider) EmbedTexts(context.Context, []string) ([][]float32, error) { return nil, nil }

func (f *fakeProvider) ModelInfo() provider.ModelInfo {
	return provider.ModelInfo{Provider: "fake", Model: "fake"}
}

func testConfig() config.Settings {
	cfg := config.Settings{}
	cfg.MaxTOCChars = 100
	cfg.MaxChapterChars = 80000
	cfg.MaxStructureChars = 300000
	cfg.MaxContentChars = 100000
	return cfg
}

func TestExtractStructureSinglePassAtBoundary(t *testing.T) {
	fake := &fakeProvider{responses: []string{`{
		"title": "Calculus",
		"author": "Spivak",
		"sections": [
			{"title": "Chapter 1", "type": "chapter", "level": 1, "category": "knowledge", "children": [
				{"title": "Preface note", "type": "section", "level": 2, "category": "meta", "children": []}
			]}
		]
	}`}}
	e := NewExtractor(fake, testConfig(), logger.NewNop())

	// Exactly at the limit still takes the single pass.
	text := strings.Repeat("a", 100)
	doc, err := e.ExtractStructure(context.Background(), text, "", "", nil)
	if err != nil {
		t.Fatalf("ExtractStructure: %v", err)
	}
	if len(fake.prompts) != 1 {
		t.Fatalf("expected 1 model call, got %d", len(fake.prompts))
	}
	if doc.Title != "Calculus" || doc.Author != "Spivak" {
		t.Fatalf("doc = %+v", doc)
	}
	if doc.Root.Type != domain.SectionBook || doc.Root.ID != "root" || !doc.Root.Included {
		t.Fatalf("root = %+v", doc.Root)
	}
	if doc.ExtractedAt.IsZero() {
		t.Fatalf("ExtractedAt not stamped")
	}

	ch := doc.Root.Children[0]
	if !ch.Included || ch.ApprovalStatus != domain.ApprovalPending {
		t.Fatalf("chapter = %+v", ch)
	}
	meta := ch.Children[0]
	if meta.Included || meta.Category != domain.CategoryMeta {
		t.Fatalf("meta node should be excluded: %+v", meta)
	}
	if len(meta.ID) != 8 {
		t.Fatalf("node id = %q", meta.ID)
	}
}

func TestExtractStructureTwoPassOverBoundary(t *testing.T) {
	fake := &fakeProvider{responses: []string{
		`{"title": "Calculus", "author": null, "chapters": [
			{"title": "Chapter 1: Limits", "category": "knowledge", "sections": ["1.1 Limits"]},
			{"title": "Chapter 2: Derivatives", "category": "knowledge", "sections": []}
		]}`,
		`{"title": "Chapter 1: Limits", "type": "chapter", "level": 1, "category": "knowledge", "children": []}`,
		`{"title": "Chapter 2: Derivatives", "type": "chapter", "level": 1, "category": "knowledge", "children": []}`,
	}}
	e := NewExtractor(fake, testConfig(), logger.NewNop())

	var messages []string
	progress := func(_ context.Context, msg string, _ float64) {
		messages = append(messages, msg)
	}

	text := strings.Repeat("a", 101)
	doc, err := e.ExtractStructure(context.Background(), text, "", "", progress)
	if err != nil {
		t.Fatalf("ExtractStructure: %v", err)
	}
	if len(fake.prompts) != 3 {
		t.Fatalf("expected 3 model calls (toc + 2 chapters), got %d", len(fake.prompts))
	}
	if len(doc.Root.Children) != 2 {
		t.Fatalf("chapters = %d", len(doc.Root.Children))
	}
	if doc.Root.Children[1].Title != "Chapter 2: Derivatives" {
		t.Fatalf("chapter order broken: %q", doc.Root.Children[1].Title)
	}
	if doc.ExtractedAt.IsZero() {
		t.Fatalf("ExtractedAt not stamped")
	}
	if len(messages) == 0 {
		t.Fatalf("expected progress callbacks")
	}
	if !strings.Contains(fake.prompts[1], "Known sections in this chapter: 1.1 Limits") {
		t.Fatalf("section hint missing from chapter prompt")
	}
}

func TestExtractStructureFallsBackOnGarbage(t *testing.T) {
	fake := &fakeProvider{responses: []string{"no json here at all"}}
	e := NewExtractor(fake, testConfig(), logger.NewNop())

	doc, err := e.ExtractStructure(context.Background(), "short text", "", "", nil)
	if err != nil {
		t.Fatalf("ExtractStructure: %v", err)
	}
	if doc.Title != "Untitled Document" || len(doc.Root.Children) != 0 {
		t.Fatalf("fallback doc = %+v", doc)
	}
}

func TestChapterWindowStopsAtNextChapter(t *testing.T) {
	text := "Front matter.\nChapter 1: Limits\n" +
		strings.Repeat("limit material ", 20) +
		"\nChapter 2: Derivatives\nderivative material"

	window := ChapterWindow(text, "Chapter 1: Limits", 80000)
	if !strings.Contains(window, "limit material") {
		t.Fatalf("window missing chapter body: %q", window)
	}
	if strings.Contains(window, "derivative material") {
		t.Fatalf("window leaked into next chapter: %q", window)
	}
}

func TestChapterWindowSimplifiedTitleFallback(t *testing.T) {
	// The TOC title carries a subtitle the body never repeats.
	text := "Chapter 3\n" + strings.Repeat("integration material ", 10)
	window := ChapterWindow(text, "Chapter 3: Integration", 80000)
	if !strings.Contains(window, "integration material") {
		t.Fatalf("fallback failed: %q", window)
	}
}

func TestChapterWindowUnknownTitleUsesHead(t *testing.T) {
	text := strings.Repeat("x", 500)
	window := ChapterWindow(text, "Appendix Z", 100)
	if window != text[:100] {
		t.Fatalf("window = %d chars", len(window))
	}
}

func TestExtractSubStructureSpans(t *testing.T) {
	content := strings.Repeat("d", 100) + strings.Repeat("t", 100)
	fake := &fakeProvider{responses: []string{`{"sections": [
		{"title": "Definition 1.1", "content_summary": "a definition", "start_char": 0, "end_char": 100},
		{"title": "Theorem 1.2", "content_summary": "a theorem", "start_char": 100, "end_char": 900}
	]}`}}
	e := NewExtractor(fake, testConfig(), logger.NewNop())

	children, err := e.ExtractSubStructure(context.Background(), content, "1.1 Limits", 2)
	if err != nil {
		t.Fatalf("ExtractSubStructure: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("children = %d", len(children))
	}
	if children[0].SourceText != strings.Repeat("d", 100) {
		t.Fatalf("first span wrong: %d chars", len(children[0].SourceText))
	}
	// end_char past the content length is clamped.
	if children[1].SourceText != strings.Repeat("t", 100) {
		t.Fatalf("second span wrong: %d chars", len(children[1].SourceText))
	}
	if children[0].Level != 3 || children[0].Type != domain.SectionContent || !children[0].Included {
		t.Fatalf("child = %+v", children[0])
	}
}

func TestExtractSubStructureEmptyMeansIndivisible(t *testing.T) {
	fake := &fakeProvider{responses: []string{`{"sections": []}`}}
	e := NewExtractor(fake, testConfig(), logger.NewNop())

	children, err := e.ExtractSubStructure(context.Background(), "content", "Title", 1)
	if err != nil {
		t.Fatalf("ExtractSubStructure: %v", err)
	}
	if len(children) != 0 {
		t.Fatalf("expected no children, got %d", len(children))
	}
}
