package export

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// LinkManager tracks generated files by title and renders relative markdown
// links between them.
type LinkManager struct {
	targets map[string]linkTarget
}

type linkTarget struct {
	title string
	path  string
}

func NewLinkManager() *LinkManager {
	return &LinkManager{targets: make(map[string]linkTarget)}
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// Register records a file as a link target.
func (m *LinkManager) Register(title, path string) {
	m.targets[normalizeTitle(title)] = linkTarget{title: title, path: path}
}

// Find returns the registered path for a title, if any.
func (m *LinkManager) Find(title string) (string, bool) {
	t, ok := m.targets[normalizeTitle(title)]
	return t.path, ok
}

// Link renders a markdown link to a registered title, relative to fromPath.
// Unregistered titles get the placeholder target "#" for a later resolution
// pass.
func (m *LinkManager) Link(title, fromPath string) string {
	target, ok := m.Find(title)
	if !ok {
		return fmt.Sprintf("[%s](#)", title)
	}
	return fmt.Sprintf("[%s](%s)", title, relativePath(fromPath, target))
}

// relativePath computes the link path from one generated file to another.
func relativePath(fromPath, toPath string) string {
	rel, err := filepath.Rel(filepath.Dir(fromPath), toPath)
	if err != nil {
		return filepath.Base(toPath)
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, ".") {
		rel = "./" + rel
	}
	return rel
}

var placeholderLinkRe = regexp.MustCompile(`\[([^\]]+)\]\(#\)`)

// ResolvePlaceholders rewrites placeholder links in content to relative paths
// for targets registered since the content was rendered. It returns the
// rewritten content and the resolved/unresolved counts.
func (m *LinkManager) ResolvePlaceholders(content, filePath string) (string, int, int) {
	var resolved, unresolved int
	out := placeholderLinkRe.ReplaceAllStringFunc(content, func(match string) string {
		title := placeholderLinkRe.FindStringSubmatch(match)[1]
		target, ok := m.Find(title)
		if !ok {
			unresolved++
			return match
		}
		resolved++
		return fmt.Sprintf("[%s](%s)", title, relativePath(filePath, target))
	})
	return out, resolved, unresolved
}

// Clear drops all registered targets.
func (m *LinkManager) Clear() {
	m.targets = make(map[string]linkTarget)
}
