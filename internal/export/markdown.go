// Package export renders an approved document structure into a tree of
// interlinked markdown files.
package export

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/atomizehq/atomizer/internal/domain"
	"github.com/atomizehq/atomizer/internal/platform/logger"
)

var (
	invalidFileChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
)

// SanitizeFilename converts a section title into a safe filename stem.
func SanitizeFilename(name string) string {
	s := invalidFileChars.ReplaceAllString(name, "")
	s = whitespaceRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 50 {
		s = s[:50]
	}
	if s == "" {
		return "untitled"
	}
	return s
}

// Generator writes markdown files for a document structure.
type Generator struct {
	outputDir string
	links     *LinkManager
	files     map[string]string // node id -> written file path
	log       *logger.Logger
}

func NewGenerator(outputDir string, log *logger.Logger) *Generator {
	return &Generator{
		outputDir: outputDir,
		links:     NewLinkManager(),
		files:     make(map[string]string),
		log:       log.With("service", "MarkdownGenerator"),
	}
}

// OutputPath returns the directory a structure exports into.
func (g *Generator) OutputPath(structure *domain.DocumentStructure) string {
	return filepath.Join(g.outputDir, SanitizeFilename(structure.Title))
}

// Generate writes the full markdown tree: an index file plus one file per
// included node. Registration runs first so links resolve in one pass.
// Returns node id -> file path for everything written.
func (g *Generator) Generate(structure *domain.DocumentStructure, includeFiltered bool) (map[string]string, error) {
	if structure == nil || structure.Root == nil {
		return nil, fmt.Errorf("no structure to export")
	}

	baseDir := g.OutputPath(structure)
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	g.files = make(map[string]string)
	g.links.Clear()

	indexPath := filepath.Join(baseDir, "index.md")
	g.links.Register(structure.Root.Title, indexPath)
	g.files["root"] = indexPath
	g.registerAll(structure.Root, baseDir, includeFiltered)

	if err := g.writeIndex(structure, indexPath); err != nil {
		return nil, err
	}
	if err := g.writeNodeFiles(structure.Root, baseDir, nil, includeFiltered); err != nil {
		return nil, err
	}

	g.log.Info("export complete", "title", structure.Title, "files", len(g.files))
	return g.files, nil
}

// filePath picks the on-disk location for a node: a folder with index.md for
// anything that holds children, a flat file for leaves.
func (g *Generator) filePath(node *domain.StructureNode, parentDir string) string {
	name := SanitizeFilename(node.Title)
	if len(node.Children) > 0 || node.Type.IsContainer() {
		return filepath.Join(parentDir, name, "index.md")
	}
	return filepath.Join(parentDir, name+".md")
}

func (g *Generator) childDir(node *domain.StructureNode, filePath, currentDir string) string {
	if len(node.Children) > 0 || node.Type == domain.SectionChapter {
		return filepath.Dir(filePath)
	}
	return currentDir
}

// registerAll is the first pass: every file path becomes a link target before
// any content is rendered.
func (g *Generator) registerAll(node *domain.StructureNode, currentDir string, includeFiltered bool) {
	if !node.Included && !includeFiltered {
		return
	}
	if node.Type == domain.SectionBook {
		for _, child := range node.Children {
			g.registerAll(child, currentDir, includeFiltered)
		}
		return
	}

	path := g.filePath(node, currentDir)
	g.links.Register(node.Title, path)
	g.files[node.ID] = path

	dir := g.childDir(node, path, currentDir)
	for _, child := range node.Children {
		g.registerAll(child, dir, includeFiltered)
	}
}

func (g *Generator) writeIndex(structure *domain.DocumentStructure, indexPath string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", structure.Title)
	if structure.Author != "" {
		fmt.Fprintf(&sb, "**Author:** %s\n\n", structure.Author)
	}
	fmt.Fprintf(&sb, "**Pages:** %d\n", structure.TotalPages)
	fmt.Fprintf(&sb, "**Extracted:** %s\n\n", structure.ExtractedAt.Format("2006-01-02 15:04"))
	sb.WriteString("## Contents\n\n")
	for _, child := range structure.Root.Children {
		if child.Included {
			fmt.Fprintf(&sb, "- %s\n", g.links.Link(child.Title, indexPath))
		}
	}
	return os.WriteFile(indexPath, []byte(sb.String()), 0o644)
}

func (g *Generator) writeNodeFiles(node *domain.StructureNode, currentDir string, parent *domain.StructureNode, includeFiltered bool) error {
	if !node.Included && !includeFiltered {
		return nil
	}
	if node.Type == domain.SectionBook {
		for _, child := range node.Children {
			if err := g.writeNodeFiles(child, currentDir, node, includeFiltered); err != nil {
				return err
			}
		}
		return nil
	}

	path := g.filePath(node, currentDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", node.Title, err)
	}

	related := relatedSiblings(node, parent)
	content := g.renderNode(node, parent, related, path)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	dir := g.childDir(node, path, currentDir)
	for _, child := range node.Children {
		if err := g.writeNodeFiles(child, dir, node, includeFiltered); err != nil {
			return err
		}
	}
	return nil
}

// relatedSiblings picks up to three included siblings as related reading.
func relatedSiblings(node, parent *domain.StructureNode) []*domain.StructureNode {
	if parent == nil {
		return nil
	}
	var related []*domain.StructureNode
	for _, sibling := range parent.Children {
		if sibling.ID != node.ID && sibling.Included {
			related = append(related, sibling)
			if len(related) == 3 {
				break
			}
		}
	}
	return related
}

func (g *Generator) renderNode(node, parent *domain.StructureNode, related []*domain.StructureNode, path string) string {
	parts := []string{
		g.renderHeader(node, parent, path),
		renderContent(node),
		g.renderFooter(related, path),
	}
	return strings.Join(parts, "\n")
}

func (g *Generator) renderHeader(node, parent *domain.StructureNode, path string) string {
	lines := []string{"# " + node.Title, ""}
	if parent != nil {
		lines = append(lines, "> Parent: "+g.links.Link(parent.Title, path))
	}
	var childLinks []string
	for _, child := range node.Children {
		if child.Included {
			childLinks = append(childLinks, g.links.Link(child.Title, path))
		}
	}
	if len(childLinks) > 0 {
		lines = append(lines, "> Children: "+strings.Join(childLinks, ", "))
	}
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func renderContent(node *domain.StructureNode) string {
	if node.AtomizationStatus == domain.AtomizationFilled && node.AtomContent != nil {
		return renderAtomContent(node)
	}
	if node.Content == "" {
		return ""
	}
	return node.Content + "\n"
}

// renderAtomContent lays out a filled atomic unit: description, the typed
// statement, then the optional proof, lemmas, and related-content sections.
func renderAtomContent(node *domain.StructureNode) string {
	atom := node.AtomContent
	heading := "Statement"
	if node.AtomType != "" {
		heading = strings.ToUpper(string(node.AtomType)[:1]) + string(node.AtomType)[1:]
	}

	lines := []string{
		"## Description", "", atom.Description, "",
		"## " + heading, "", atom.Statement, "",
	}
	if atom.Proof != "" {
		lines = append(lines, "## Proof", "", atom.Proof, "")
	}
	if len(atom.Lemmas) > 0 {
		lines = append(lines, "## Supporting Lemmas", "")
		for _, lemma := range atom.Lemmas {
			lines = append(lines, "- "+lemma)
		}
		lines = append(lines, "")
	}
	if atom.RelatedContent != "" {
		lines = append(lines, "## Related Content", "", atom.RelatedContent, "")
	}
	return strings.Join(lines, "\n")
}

func (g *Generator) renderFooter(related []*domain.StructureNode, path string) string {
	lines := []string{"", "---", "## Related"}
	if len(related) == 0 {
		lines = append(lines, "- *No related sections identified*")
	}
	for _, section := range related {
		lines = append(lines, "- "+g.links.Link(section.Title, path))
	}
	return strings.Join(lines, "\n")
}

// ResolvePlaceholders rewrites any remaining [title](#) placeholders in the
// exported tree once every file exists. Returns the number of links resolved.
func (g *Generator) ResolvePlaceholders(outputPath string) (int, error) {
	var resolved int
	err := filepath.WalkDir(outputPath, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		updated, n, _ := g.links.ResolvePlaceholders(string(raw), path)
		if n == 0 {
			return nil
		}
		resolved += n
		return os.WriteFile(path, []byte(updated), 0o644)
	})
	return resolved, err
}

// FileInfo describes one file an export would produce.
type FileInfo struct {
	Path     string             `json:"path"`
	Title    string             `json:"title"`
	Type     domain.SectionType `json:"type"`
	AtomType domain.AtomType    `json:"atom_type,omitempty"`
	IsAtomic string             `json:"is_atomic,omitempty"`
}

// FileList computes the files an export would produce without writing
// anything.
func FileList(structure *domain.DocumentStructure) []FileInfo {
	files := []FileInfo{{Path: "index.md", Title: structure.Title, Type: domain.SectionBook}}
	var walk func(node *domain.StructureNode, prefix string)
	walk = func(node *domain.StructureNode, prefix string) {
		if !node.Included {
			return
		}
		name := SanitizeFilename(node.Title)
		var path, childPrefix string
		if len(node.Children) > 0 || node.Type.IsContainer() {
			path = prefix + name + "/index.md"
			childPrefix = prefix + name + "/"
		} else {
			path = prefix + name + ".md"
			childPrefix = prefix
		}
		files = append(files, FileInfo{
			Path:     path,
			Title:    node.Title,
			Type:     node.Type,
			AtomType: node.AtomType,
			IsAtomic: string(node.AtomizationStatus),
		})
		for _, child := range node.Children {
			walk(child, childPrefix)
		}
	}
	for _, child := range structure.Root.Children {
		walk(child, "")
	}
	return files
}

// WriteZip streams a zip archive of an exported directory.
func WriteZip(dir string, w io.Writer) error {
	zw := zip.NewWriter(w)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		f, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(f, src)
		return err
	})
	if err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
