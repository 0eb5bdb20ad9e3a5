package summarize

import (
	"context"
	"fmt"

	"github.com/atomizehq/atomizer/internal/domain"
	"github.com/atomizehq/atomizer/internal/extract"
	"github.com/atomizehq/atomizer/internal/platform/logger"
	"github.com/atomizehq/atomizer/internal/provider"
)

const summarizerSystemPrompt = "You are a mathematical content summarizer. Preserve all LaTeX notation. Respond only with valid JSON."

const maxSummaryInputChars = 12000

// ProgressFunc reports summarization progress back to the job record.
type ProgressFunc func(ctx context.Context, message string, progress float64)

// Summarizer fills atomic nodes with structured content summaries.
type Summarizer struct {
	provider provider.Provider
	log      *logger.Logger
}

func New(p provider.Provider, log *logger.Logger) *Summarizer {
	info := p.ModelInfo()
	log = log.With("service", "ContentSummarizer")
	log.Info("summarizer initialized", "provider", info.Provider, "model", info.Model)
	return &Summarizer{provider: p, log: log}
}

// SummarizeNode generates structured content for one node. Never returns an
// error: a node without text, or a failed model call, yields minimal content
// built from the node itself so the workflow always has something to review.
func (s *Summarizer) SummarizeNode(ctx context.Context, node *domain.StructureNode) *domain.AtomContent {
	atomType := "mathematical concept"
	if node.AtomType != "" {
		atomType = string(node.AtomType)
	}

	content := node.AnalysisText()
	if content == "" {
		kind := atomType
		if node.AtomType == "" {
			kind = "mathematical"
		}
		return &domain.AtomContent{
			Description: fmt.Sprintf("A %s concept.", kind),
			Statement:   node.Title,
		}
	}

	body := content
	if len(body) > maxSummaryInputChars {
		body = body[:maxSummaryInputChars]
	}

	prompt := fmt.Sprintf(`You are a mathematician responsible for summarizing mathematical content into a structured format.

Atom Type: %s
Title: %s

Content to summarize:
---
%s
---

IMPORTANT:
- Preserve ALL LaTeX notation exactly as written (e.g., $x^2$, \frac{a}{b}, \int, etc.)
- Description and Statement are REQUIRED
- Proof is OPTIONAL (only include if a proof is present in the content)
- Lemmas are OPTIONAL (only include if supporting lemmas are mentioned)
- Related Content is OPTIONAL (only include if related concepts are discussed)

Return ONLY valid JSON (no markdown code blocks):
{
    "description": "A 1-2 sentence AI-generated summary explaining what this %s represents and why it matters",
    "statement": "The exact mathematical statement with all LaTeX preserved",
    "proof": "The complete proof if present, null otherwise",
    "lemmas": ["Supporting lemma 1 with LaTeX", "Supporting lemma 2"] or [],
    "related_content": "Brief summary of related concepts mentioned, or null"
}`, atomType, node.Title, body, atomType)

	resp, err := s.provider.Complete(ctx, provider.CompleteRequest{
		Prompt:      prompt,
		System:      summarizerSystemPrompt,
		Temperature: 0.2,
		MaxTokens:   4000,
	})
	if err != nil {
		s.log.Warn("summarization failed, using minimal content", "title", node.Title, "err", err)
		return minimalContent(atomType, content)
	}

	var result struct {
		Description    string   `json:"description"`
		Statement      string   `json:"statement"`
		Proof          string   `json:"proof"`
		Lemmas         []string `json:"lemmas"`
		RelatedContent string   `json:"related_content"`
	}
	if err := extract.DecodeObject(resp, &result); err != nil {
		s.log.Warn("summary response unparseable, using minimal content", "title", node.Title, "err", err)
		return minimalContent(atomType, content)
	}

	description := result.Description
	if description == "" {
		description = fmt.Sprintf("A %s.", atomType)
	}
	statement := result.Statement
	if statement == "" {
		statement = node.Title
	}
	return &domain.AtomContent{
		Description:    description,
		Statement:      statement,
		Proof:          result.Proof,
		Lemmas:         result.Lemmas,
		RelatedContent: result.RelatedContent,
	}
}

// minimalContent is the fail-closed fallback: the first 500 chars of the
// source stand in for a statement.
func minimalContent(atomType, content string) *domain.AtomContent {
	statement := content
	if len(statement) > 500 {
		statement = statement[:500]
	}
	return &domain.AtomContent{
		Description: fmt.Sprintf("A %s.", atomType),
		Statement:   statement,
	}
}

// CollectAtomicNodes lists the included atomic non-container nodes that have
// no content yet.
func CollectAtomicNodes(root *domain.StructureNode) []*domain.StructureNode {
	var out []*domain.StructureNode
	var rec func(n *domain.StructureNode)
	rec = func(n *domain.StructureNode) {
		if n == nil || !n.Included {
			return
		}
		if n.AtomizationStatus == domain.AtomizationAtomic && n.AtomContent == nil && !n.Type.IsContainer() {
			out = append(out, n)
		}
		for _, child := range n.Children {
			rec(child)
		}
	}
	rec(root)
	return out
}

// FillContent fills every atomic node in the structure, sequentially, and
// marks each filled.
func (s *Summarizer) FillContent(ctx context.Context, structure *domain.DocumentStructure, progress ProgressFunc) error {
	nodes := CollectAtomicNodes(structure.Root)
	total := len(nodes)

	for i, node := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		node.AtomContent = s.SummarizeNode(ctx, node)
		node.AtomizationStatus = domain.AtomizationFilled

		if progress != nil {
			msg := node.Title
			if len(msg) > 50 {
				msg = msg[:50]
			}
			denom := total
			if denom == 0 {
				denom = 1
			}
			progress(ctx, "Summarizing: "+msg+"...", float64(i+1)/float64(denom))
		}
	}
	return nil
}

// FillNodes summarizes an explicit node set, marking each filled and pending
// review. Used when the workflow decides leaf-hood itself.
func (s *Summarizer) FillNodes(ctx context.Context, nodes []*domain.StructureNode, progress ProgressFunc) error {
	total := len(nodes)
	for i, node := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		node.AtomContent = s.SummarizeNode(ctx, node)
		node.AtomizationStatus = domain.AtomizationFilled
		node.ApprovalStatus = domain.ApprovalPending

		if progress != nil {
			msg := node.Title
			if len(msg) > 50 {
				msg = msg[:50]
			}
			progress(ctx, "Summarizing: "+msg+"...", float64(i+1)/float64(max(total, 1)))
		}
	}
	return nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
