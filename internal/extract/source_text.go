package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/atomizehq/atomizer/internal/domain"
	"github.com/atomizehq/atomizer/internal/provider"
)

// maxSectionSourceChars caps how much raw text a single node may claim.
const maxSectionSourceChars = 50000

// PopulateSourceText fills SourceText on every included node that lacks a
// substantial span, by locating each node's title in the full text and
// reading up to the next sibling or chapter marker. Runs after structure
// extraction and before atomization.
func PopulateSourceText(root *domain.StructureNode, fullText string) {
	if root == nil {
		return
	}
	populateNodeSourceText(root, fullText, root.Children)
}

func populateNodeSourceText(node *domain.StructureNode, fullText string, siblings []*domain.StructureNode) {
	if !node.Included {
		return
	}

	// A span over 200 chars is considered already populated.
	if len(node.SourceText) > 200 {
		for _, child := range node.Children {
			populateNodeSourceText(child, fullText, node.Children)
		}
		return
	}

	if node.Type == domain.SectionBook {
		for _, child := range node.Children {
			populateNodeSourceText(child, fullText, node.Children)
		}
		return
	}

	raw := extractSectionRawText(fullText, node, siblings)
	if len(raw) > len(node.SourceText) {
		node.SourceText = raw
	}

	for _, child := range node.Children {
		populateNodeSourceText(child, fullText, node.Children)
	}
}

var leadingNumberRe = regexp.MustCompile(`^(\d+\.?\d*\.?\s*|Chapter\s+\d+[.:]\s*)`)

var sectionChapterRes = []*regexp.Regexp{
	regexp.MustCompile(`\n\s*(Chapter\s+\d+)`),
	regexp.MustCompile(`\n\s*(CHAPTER\s+\d+)`),
}

func extractSectionRawText(fullText string, node *domain.StructureNode, siblings []*domain.StructureNode) string {
	title := node.Title
	start := indexFold(fullText, title)
	if start < 0 {
		// "1.1 Limits" may appear in the body as just "Limits".
		simplified := strings.TrimSpace(leadingNumberRe.ReplaceAllString(title, ""))
		if simplified != "" && simplified != title {
			start = indexFold(fullText, simplified)
		}
	}
	if start < 0 {
		return ""
	}

	// End at the next sibling's title when it can be found after this node.
	end := len(fullText)
	foundCurrent := false
	for _, sibling := range siblings {
		if foundCurrent {
			tail := fullText[min(start+len(title), len(fullText)):]
			if rel := indexFold(tail, sibling.Title); rel >= 0 {
				end = start + len(title) + rel
			}
			break
		}
		if sibling.ID == node.ID {
			foundCurrent = true
		}
	}

	// Chapter markers bound non-chapter nodes as well.
	if node.Type != domain.SectionChapter {
		sectionStart := start + len(title) + 50
		if sectionStart < len(fullText) {
			for _, re := range sectionChapterRes {
				if loc := re.FindStringIndex(fullText[sectionStart:]); loc != nil {
					if candidate := sectionStart + loc[0]; candidate < end {
						end = candidate
					}
				}
			}
		}
	}

	if end-start > maxSectionSourceChars {
		end = start + maxSectionSourceChars
	}
	return strings.TrimSpace(fullText[start:end])
}

// ExtractSubStructure asks the model to divide a node's text into coherent
// child units with character spans. An empty sections list means the content
// cannot be meaningfully divided.
func (e *Extractor) ExtractSubStructure(ctx context.Context, content, parentTitle string, parentLevel int) ([]*domain.StructureNode, error) {
	body := content
	if len(body) > 15000 {
		body = body[:15000]
	}

	prompt := fmt.Sprintf(`Analyze this mathematical content and identify logical sub-sections.

Parent section: %q

Content to analyze:
---
%s
---

Identify the logical divisions in this content. Each division should contain a coherent unit
(such as a theorem, definition, lemma, proof, example, or remark).

Return JSON in this format:
{
    "sections": [
        {
            "title": "Definition 1.1: Continuous Function",
            "type": "content",
            "content_summary": "Defines what it means for a function to be continuous",
            "start_char": 0,
            "end_char": 500
        }
    ]
}

If the content cannot be meaningfully divided, return:
{"sections": []}`, parentTitle, body)

	resp, err := e.provider.Complete(ctx, provider.CompleteRequest{Prompt: prompt, Temperature: 0.2})
	if err != nil {
		return nil, fmt.Errorf("sub-structure extraction %q: %w", parentTitle, err)
	}

	var result struct {
		Sections []struct {
			Title          string `json:"title"`
			ContentSummary string `json:"content_summary"`
			StartChar      int    `json:"start_char"`
			EndChar        int    `json:"end_char"`
		} `json:"sections"`
	}
	if err := DecodeObject(resp, &result); err != nil {
		return nil, fmt.Errorf("sub-structure extraction %q: %w", parentTitle, err)
	}
	if len(result.Sections) == 0 {
		return nil, nil
	}

	children := make([]*domain.StructureNode, 0, len(result.Sections))
	for _, s := range result.Sections {
		start := clamp(s.StartChar, 0, len(content))
		end := clamp(s.EndChar, 0, len(content))
		span := content
		if start < end {
			span = content[start:end]
		}
		title := s.Title
		if title == "" {
			title = parentTitle + " - Part"
		}
		children = append(children, &domain.StructureNode{
			ID:             domain.NewNodeID(),
			Title:          title,
			Type:           domain.SectionContent,
			Level:          parentLevel + 1,
			Content:        s.ContentSummary,
			SourceText:     span,
			Category:       domain.CategoryKnowledge,
			Included:       true,
			ApprovalStatus: domain.ApprovalPending,
		})
	}
	return children, nil
}

// ExtractContentForSection pulls the verbatim content of one section out of
// the full text with a model call, bounded by the next section's title.
func (e *Extractor) ExtractContentForSection(ctx context.Context, fullText, sectionTitle, nextSectionTitle string) (string, error) {
	if nextSectionTitle == "" {
		nextSectionTitle = "END OF DOCUMENT"
	}
	body := fullText
	if len(body) > e.cfg.MaxContentChars {
		body = body[:e.cfg.MaxContentChars]
	}

	prompt := fmt.Sprintf(`From the following document text, extract ONLY the content that belongs to the section titled %q.

If there's a next section titled %q, stop before that section.

Return only the extracted content, no additional commentary.

DOCUMENT TEXT:
%s`, sectionTitle, nextSectionTitle, body)

	content, err := e.provider.Complete(ctx, provider.CompleteRequest{Prompt: prompt, Temperature: 0.2})
	if err != nil {
		return "", fmt.Errorf("content extraction %q: %w", sectionTitle, err)
	}
	return strings.TrimSpace(content), nil
}

// RefineStructure walks the tree and fills thin nodes with model-extracted
// content. Excluded nodes are skipped to save calls, though their children
// are still visited.
func (e *Extractor) RefineStructure(ctx context.Context, structure *domain.DocumentStructure, fullText string) error {
	var fill func(node *domain.StructureNode, siblings []*domain.StructureNode) error
	fill = func(node *domain.StructureNode, siblings []*domain.StructureNode) error {
		if node.Included {
			nextTitle := ""
			foundCurrent := false
			for _, sibling := range siblings {
				if foundCurrent {
					nextTitle = sibling.Title
					break
				}
				if sibling.ID == node.ID {
					foundCurrent = true
				}
			}

			if len(node.Children) == 0 || len(node.Content) < 100 {
				content, err := e.ExtractContentForSection(ctx, fullText, node.Title, nextTitle)
				if err != nil {
					return err
				}
				node.Content = content
				if node.SourceText == "" {
					node.SourceText = content
				}
			}
		}

		for _, child := range node.Children {
			if err := fill(child, node.Children); err != nil {
				return err
			}
		}
		return nil
	}

	for _, child := range structure.Root.Children {
		if err := fill(child, structure.Root.Children); err != nil {
			return err
		}
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
