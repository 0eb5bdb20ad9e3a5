package filter

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/atomizehq/atomizer/internal/domain"
	"github.com/atomizehq/atomizer/internal/platform/logger"
	"github.com/atomizehq/atomizer/internal/provider"
)

// Keywords that typically indicate meta/non-knowledge content. Meta matches
// win over knowledge matches.
var defaultMetaKeywords = []string{
	"preface", "foreword", "acknowledgement", "acknowledgment",
	"table of contents", "contents", "toc",
	"index", "glossary", "bibliography", "references",
	"copyright", "about the author", "about author",
	"dedication", "epigraph", "frontmatter", "back matter",
	"appendix",
	"colophon", "endnotes", "footnotes",
	"list of figures", "list of tables", "list of illustrations",
	"permissions", "credits", "contributor", "contributors",
}

// Keywords that strongly indicate knowledge content.
var defaultKnowledgeKeywords = []string{
	"chapter", "part", "unit", "module", "lesson",
	"introduction", "conclusion", "summary",
	"theory", "method", "methodology", "analysis",
	"results", "discussion", "findings",
	"case study", "example", "exercise", "problem",
}

// Filter classifies document sections as knowledge or meta, by title keyword
// first and optionally by model for ambiguous titles.
type Filter struct {
	provider          provider.Provider
	log               *logger.Logger
	metaKeywords      []string
	knowledgeKeywords []string
}

type keywordFile struct {
	Meta      []string `yaml:"meta"`
	Knowledge []string `yaml:"knowledge"`
}

// New builds a Filter. keywordsPath optionally points to a YAML file with
// "meta" and "knowledge" lists that replace the built-in keyword sets.
func New(p provider.Provider, log *logger.Logger, keywordsPath string) (*Filter, error) {
	f := &Filter{
		provider:          p,
		log:               log.With("service", "ContentFilter"),
		metaKeywords:      defaultMetaKeywords,
		knowledgeKeywords: defaultKnowledgeKeywords,
	}
	if keywordsPath != "" {
		raw, err := os.ReadFile(keywordsPath)
		if err != nil {
			return nil, fmt.Errorf("read filter keywords: %w", err)
		}
		var kf keywordFile
		if err := yaml.Unmarshal(raw, &kf); err != nil {
			return nil, fmt.Errorf("parse filter keywords: %w", err)
		}
		if len(kf.Meta) > 0 {
			f.metaKeywords = lowerAll(kf.Meta)
		}
		if len(kf.Knowledge) > 0 {
			f.knowledgeKeywords = lowerAll(kf.Knowledge)
		}
		f.log.Info("filter keywords loaded", "path", keywordsPath,
			"meta", len(f.metaKeywords), "knowledge", len(f.knowledgeKeywords))
	}
	return f, nil
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// ClassifyByTitle is the fast path: meta keywords first, then knowledge
// keywords, default knowledge.
func (f *Filter) ClassifyByTitle(title string) domain.ContentCategory {
	lower := strings.ToLower(title)
	for _, kw := range f.metaKeywords {
		if strings.Contains(lower, kw) {
			return domain.CategoryMeta
		}
	}
	for _, kw := range f.knowledgeKeywords {
		if strings.Contains(lower, kw) {
			return domain.CategoryKnowledge
		}
	}
	return domain.CategoryKnowledge
}

func (f *Filter) titleIsAmbiguous(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range f.metaKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	for _, kw := range f.knowledgeKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	return true
}

// ClassifyWithModel asks the model to classify an ambiguous section from its
// title and a content preview.
func (f *Filter) ClassifyWithModel(ctx context.Context, title, contentPreview string) (domain.ContentCategory, error) {
	if len(contentPreview) > 500 {
		contentPreview = contentPreview[:500]
	}
	prompt := fmt.Sprintf(`Classify this document section as either "knowledge" or "meta".

- "knowledge": Contains substantive educational, informational, or instructional content that readers would want to study or reference
- "meta": Administrative content like preface, acknowledgements, table of contents, index, copyright notices, author bios, etc.

Section Title: %s
Content Preview: %s

Respond with just one word: "knowledge" or "meta"`, title, contentPreview)

	resp, err := f.provider.Complete(ctx, provider.CompleteRequest{Prompt: prompt, Temperature: 0.0})
	if err != nil {
		return "", err
	}
	if strings.Contains(strings.ToLower(strings.TrimSpace(resp)), "meta") {
		return domain.CategoryMeta, nil
	}
	return domain.CategoryKnowledge, nil
}

// FilterStructure reclassifies every node under the root by title keywords
// and syncs Included with the result. The root book node is never touched.
func (f *Filter) FilterStructure(structure *domain.DocumentStructure, includeAppendices bool) {
	var filterNode func(node *domain.StructureNode)
	filterNode = func(node *domain.StructureNode) {
		category := f.ClassifyByTitle(node.Title)
		if includeAppendices && strings.Contains(strings.ToLower(node.Title), "appendix") {
			category = domain.CategoryKnowledge
		}
		node.Category = category
		node.Included = category == domain.CategoryKnowledge

		for _, child := range node.Children {
			filterNode(child)
		}
	}
	for _, child := range structure.Root.Children {
		filterNode(child)
	}
}

// FilterStructureLLM is the slow path: keyword classification first, then a
// model call for nodes whose title matched neither keyword set and that carry
// content to preview.
func (f *Filter) FilterStructureLLM(ctx context.Context, structure *domain.DocumentStructure) error {
	var classifyNode func(node *domain.StructureNode) error
	classifyNode = func(node *domain.StructureNode) error {
		category := f.ClassifyByTitle(node.Title)

		if f.titleIsAmbiguous(node.Title) && node.Content != "" {
			fromModel, err := f.ClassifyWithModel(ctx, node.Title, node.Content)
			if err != nil {
				return err
			}
			category = fromModel
		}

		node.Category = category
		node.Included = category == domain.CategoryKnowledge

		for _, child := range node.Children {
			if err := classifyNode(child); err != nil {
				return err
			}
		}
		return nil
	}
	for _, child := range structure.Root.Children {
		if err := classifyNode(child); err != nil {
			return err
		}
	}
	return nil
}

// FilteredSections lists every node under the root currently excluded.
func FilteredSections(structure *domain.DocumentStructure) []*domain.StructureNode {
	var out []*domain.StructureNode
	for _, child := range structure.Root.Children {
		domain.Walk(child, func(n *domain.StructureNode) {
			if !n.Included {
				out = append(out, n)
			}
		})
	}
	return out
}

// IncludedSections lists every node under the root currently included.
func IncludedSections(structure *domain.DocumentStructure) []*domain.StructureNode {
	var out []*domain.StructureNode
	for _, child := range structure.Root.Children {
		domain.Walk(child, func(n *domain.StructureNode) {
			if n.Included {
				out = append(out, n)
			}
		})
	}
	return out
}

// UpdateInclusion flips the inclusion flag of one node. Reports whether the
// node was found.
func UpdateInclusion(structure *domain.DocumentStructure, sectionID string, included bool) bool {
	node := domain.FindNode(structure.Root, sectionID)
	if node == nil {
		return false
	}
	node.Included = included
	return true
}
