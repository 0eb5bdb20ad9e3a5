package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/atomizehq/atomizer/internal/platform/logger"
	"github.com/atomizehq/atomizer/internal/provider"
)

type fakeVision struct {
	mu       sync.Mutex
	replies  map[string]string
	failOn   string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeVision) AnalyzeImage(_ context.Context, imageBase64, _, _ string) (string, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if cur <= seen || f.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}

	if imageBase64 == f.failOn {
		return "", errors.New("vision backend unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if reply, ok := f.replies[imageBase64]; ok {
		return reply, nil
	}
	return "TEXT:\npage for " + imageBase64, nil
}

func (f *fakeVision) Complete(context.Context, provider.CompleteRequest) (string, error) {
	return "", nil
}

func (f *fakeVision) EmbedText(context.Context, string) ([]float32, error) { return nil, nil }

func (f *fakeVision) EmbedTexts(context.Context, []string) ([][]float32, error) { return nil, nil }

func (f *fakeVision) ModelInfo() provider.ModelInfo {
	return provider.ModelInfo{Provider: "fake", Model: "fake-vision"}
}

func TestParseResponse(t *testing.T) {
	cases := []struct {
		name      string
		raw       string
		wantText  string
		wantHints string
	}{
		{
			name:      "formatted reply",
			raw:       "TEXT:\nThe actual page text.\n\nSTRUCTURE_HINTS:\nChapter heading",
			wantText:  "The actual page text.",
			wantHints: "Chapter heading",
		},
		{
			name:     "no hints section",
			raw:      "TEXT:\nJust the text.",
			wantText: "Just the text.",
		},
		{
			name:     "unformatted reply taken verbatim",
			raw:      "  raw model output with no markers  ",
			wantText: "raw model output with no markers",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text, hints := parseResponse(tc.raw)
			if text != tc.wantText || hints != tc.wantHints {
				t.Fatalf("parseResponse = (%q, %q)", text, hints)
			}
		})
	}
}

func TestProcessPagesOrdersByPageNumber(t *testing.T) {
	fake := &fakeVision{}
	svc := New(fake, logger.NewNop(), 3)

	pages := make([]Page, 8)
	for i := range pages {
		// Feed pages in reverse to make ordering do real work.
		n := len(pages) - 1 - i
		pages[i] = Page{Number: n, ImageBase64: fmt.Sprintf("img-%d", n)}
	}

	var progressed atomic.Int32
	results, err := svc.ProcessPages(context.Background(), pages, func(int) {
		progressed.Add(1)
	})
	if err != nil {
		t.Fatalf("ProcessPages: %v", err)
	}
	if len(results) != len(pages) {
		t.Fatalf("results = %d", len(results))
	}
	for i, r := range results {
		if r.PageNumber != i {
			t.Fatalf("results[%d].PageNumber = %d", i, r.PageNumber)
		}
	}
	if int(progressed.Load()) != len(pages) {
		t.Fatalf("progress calls = %d", progressed.Load())
	}
	if max := fake.maxSeen.Load(); max > 3 {
		t.Fatalf("concurrency limit exceeded: %d in flight", max)
	}
}

func TestProcessPagesFailsBatchOnPageError(t *testing.T) {
	fake := &fakeVision{failOn: "img-2"}
	svc := New(fake, logger.NewNop(), 2)

	pages := []Page{
		{Number: 0, ImageBase64: "img-0"},
		{Number: 1, ImageBase64: "img-1"},
		{Number: 2, ImageBase64: "img-2"},
	}
	if _, err := svc.ProcessPages(context.Background(), pages, nil); err == nil {
		t.Fatalf("expected batch failure")
	}
}

func TestCombineResults(t *testing.T) {
	combined := CombineResults([]Result{
		{PageNumber: 1, Text: "second"},
		{PageNumber: 0, Text: "first"},
	})
	want := "=== PAGE 1 ===\nfirst\n\n=== PAGE 2 ===\nsecond"
	if combined != want {
		t.Fatalf("CombineResults = %q", combined)
	}
	if !strings.HasPrefix(combined, "=== PAGE 1 ===") {
		t.Fatalf("missing leading marker")
	}
}
