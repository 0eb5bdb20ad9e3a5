// Package pdfx reads PDF text layers. Scanned documents with no usable text
// layer are detected here and routed to OCR by the pipeline.
package pdfx

import (
	"fmt"
	"strings"

	rpdf "rsc.io/pdf"
)

// textLayerMinChars is the per-page threshold below which a page is treated
// as image-only.
const textLayerMinChars = 100

// probePages is how many leading pages HasTextLayer inspects.
const probePages = 3

// Metadata carries the document info dictionary fields used as extraction
// hints.
type Metadata struct {
	Title     string
	Author    string
	Subject   string
	Creator   string
	PageCount int
}

// Document is an open PDF file.
type Document struct {
	reader *rpdf.Reader
}

// Open reads a PDF from disk.
func Open(path string) (*Document, error) {
	reader, err := rpdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	return &Document{reader: reader}, nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return d.reader.NumPage()
}

// PageText extracts the text layer of one page. Pages are 1-based. Malformed
// content streams yield an empty string rather than an error; the caller
// treats those pages as scanned.
func (d *Document) PageText(page int) string {
	if page < 1 || page > d.reader.NumPage() {
		return ""
	}
	return pageText(d.reader.Page(page))
}

func pageText(p rpdf.Page) (out string) {
	// The content-stream decoder panics on malformed input.
	defer func() {
		if recover() != nil {
			out = ""
		}
	}()

	if p.V.IsNull() {
		return ""
	}
	content := p.Content()

	var sb strings.Builder
	var lastY, lastEnd float64
	for i, t := range content.Text {
		if i > 0 {
			if t.Y != lastY {
				sb.WriteByte('\n')
			} else if t.X-lastEnd > 1 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(t.S)
		lastY = t.Y
		lastEnd = t.X + t.W
	}
	return sb.String()
}

// HasTextLayer probes the first pages for a usable text layer.
func (d *Document) HasTextLayer() bool {
	pages := make([]string, 0, probePages)
	for i := 1; i <= d.reader.NumPage() && i <= probePages; i++ {
		pages = append(pages, d.PageText(i))
	}
	return hasTextLayer(pages)
}

func hasTextLayer(pages []string) bool {
	for _, text := range pages {
		if len(strings.TrimSpace(text)) > textLayerMinChars {
			return true
		}
	}
	return false
}

// ExtractAllText extracts every page's text layer, delimited with the same
// page markers the OCR path emits so downstream page estimation works for
// both.
func (d *Document) ExtractAllText() string {
	pages := make([]string, d.reader.NumPage())
	for i := 1; i <= d.reader.NumPage(); i++ {
		pages[i-1] = d.PageText(i)
	}
	return combinePages(pages)
}

func combinePages(pages []string) string {
	parts := make([]string, 0, len(pages))
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("=== PAGE %d ===\n%s", i+1, text))
	}
	return strings.Join(parts, "\n\n")
}

// Metadata reads the document info dictionary. Missing fields come back
// empty.
func (d *Document) Metadata() (meta Metadata) {
	meta = Metadata{PageCount: d.reader.NumPage()}

	// Reading a corrupt info dictionary can panic inside the decoder.
	defer func() { _ = recover() }()

	info := d.reader.Trailer().Key("Info")
	if info.IsNull() {
		return meta
	}
	meta.Title = info.Key("Title").Text()
	meta.Author = info.Key("Author").Text()
	meta.Subject = info.Key("Subject").Text()
	meta.Creator = info.Key("Creator").Text()
	return meta
}
