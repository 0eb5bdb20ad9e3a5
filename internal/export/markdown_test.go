package export

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/atomizehq/atomizer/internal/domain"
	"github.com/atomizehq/atomizer/internal/platform/logger"
)

func exportStructure() *domain.DocumentStructure {
	theorem := &domain.StructureNode{
		ID: "thm", Title: "Theorem 1.1: Intermediate Value", Type: domain.SectionContent,
		Included: true, AtomType: domain.AtomTheorem,
		AtomizationStatus: domain.AtomizationFilled,
		AtomContent: &domain.AtomContent{
			Description: "Continuity forces intermediate values.",
			Statement:   "If f is continuous on [a,b], f attains every value between f(a) and f(b).",
			Proof:       "Apply the bisection argument.",
			Lemmas:      []string{"Nested interval lemma"},
		},
	}
	excluded := &domain.StructureNode{
		ID: "idx", Title: "Index", Type: domain.SectionSection, Included: false,
	}
	sibling := &domain.StructureNode{
		ID: "rem", Title: "Remark 1.2", Type: domain.SectionContent, Included: true,
		Content: "A short remark.",
	}
	chapter := &domain.StructureNode{
		ID: "ch1", Title: "Chapter 1: Continuity", Type: domain.SectionChapter, Included: true,
		Children: []*domain.StructureNode{theorem, sibling, excluded},
	}
	root := &domain.StructureNode{
		ID: "root", Title: "Real Analysis", Type: domain.SectionBook, Included: true,
		Children: []*domain.StructureNode{chapter},
	}
	return &domain.DocumentStructure{
		Title: "Real Analysis", Root: root, TotalPages: 120,
		ExtractedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Chapter 1: Continuity", "Chapter_1_Continuity"},
		{"a/b\\c?d", "abcd"},
		{"  ", "untitled"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tc := range cases {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Fatalf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestGenerateWritesInterlinkedTree(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(dir, logger.NewNop())
	structure := exportStructure()

	files, err := g.Generate(structure, false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	base := g.OutputPath(structure)
	index, err := os.ReadFile(filepath.Join(base, "index.md"))
	if err != nil {
		t.Fatalf("index.md: %v", err)
	}
	if !strings.Contains(string(index), "# Real Analysis") ||
		!strings.Contains(string(index), "**Pages:** 120") {
		t.Fatalf("index = %q", index)
	}
	if !strings.Contains(string(index), "[Chapter 1: Continuity](./Chapter_1_Continuity/index.md)") {
		t.Fatalf("index missing contents link: %q", index)
	}

	chapter, err := os.ReadFile(filepath.Join(base, "Chapter_1_Continuity", "index.md"))
	if err != nil {
		t.Fatalf("chapter index: %v", err)
	}
	if !strings.Contains(string(chapter), "> Parent: [Real Analysis](../index.md)") {
		t.Fatalf("chapter missing parent link: %q", chapter)
	}
	if !strings.Contains(string(chapter), "[Theorem 1.1: Intermediate Value]") {
		t.Fatalf("chapter missing child link: %q", chapter)
	}

	theorem, err := os.ReadFile(files["thm"])
	if err != nil {
		t.Fatalf("theorem file: %v", err)
	}
	for _, want := range []string{"## Description", "## Theorem", "## Proof", "## Supporting Lemmas", "- Nested interval lemma"} {
		if !strings.Contains(string(theorem), want) {
			t.Fatalf("theorem file missing %q:\n%s", want, theorem)
		}
	}
	if !strings.Contains(string(theorem), "[Remark 1.2](./Remark_1.2.md)") {
		t.Fatalf("theorem missing related sibling link:\n%s", theorem)
	}

	if _, ok := files["idx"]; ok {
		t.Fatalf("excluded node was exported")
	}
	if _, err := os.Stat(filepath.Join(base, "Chapter_1_Continuity", "Index.md")); !os.IsNotExist(err) {
		t.Fatalf("excluded node file exists")
	}
}

func TestGenerateIncludeFilteredExportsExcludedNodes(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(dir, logger.NewNop())

	files, err := g.Generate(exportStructure(), true)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, ok := files["idx"]; !ok {
		t.Fatalf("filtered node not exported with includeFiltered")
	}
}

func TestFileList(t *testing.T) {
	files := FileList(exportStructure())

	paths := make(map[string]FileInfo, len(files))
	for _, f := range files {
		paths[f.Path] = f
	}
	if _, ok := paths["index.md"]; !ok {
		t.Fatalf("missing root index: %+v", files)
	}
	thm, ok := paths["Chapter_1_Continuity/Theorem_1.1_Intermediate_Value.md"]
	if !ok {
		t.Fatalf("missing theorem path: %+v", files)
	}
	if thm.AtomType != domain.AtomTheorem {
		t.Fatalf("theorem info = %+v", thm)
	}
	for p := range paths {
		if strings.Contains(p, "Index") {
			t.Fatalf("excluded node listed: %v", p)
		}
	}
}

func TestLinkManagerPlaceholderAndResolution(t *testing.T) {
	m := NewLinkManager()
	if got := m.Link("Unknown Title", "/out/book/a.md"); got != "[Unknown Title](#)" {
		t.Fatalf("Link = %q", got)
	}

	m.Register("Unknown Title", "/out/book/ch/target.md")
	content, resolved, unresolved := m.ResolvePlaceholders("see [Unknown Title](#) and [Still Missing](#)", "/out/book/a.md")
	if resolved != 1 || unresolved != 1 {
		t.Fatalf("resolved = %d, unresolved = %d", resolved, unresolved)
	}
	if !strings.Contains(content, "[Unknown Title](./ch/target.md)") {
		t.Fatalf("content = %q", content)
	}
}

func TestWriteZipRoundTrip(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(dir, logger.NewNop())
	structure := exportStructure()
	if _, err := g.Generate(structure, false); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteZip(g.OutputPath(structure), &buf); err != nil {
		t.Fatalf("WriteZip: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	names := make(map[string]bool, len(zr.File))
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["index.md"] || !names["Chapter_1_Continuity/index.md"] {
		t.Fatalf("zip entries = %v", names)
	}
}
