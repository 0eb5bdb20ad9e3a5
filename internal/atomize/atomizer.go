package atomize

import (
	"context"
	"fmt"
	"strings"

	"github.com/atomizehq/atomizer/internal/config"
	"github.com/atomizehq/atomizer/internal/domain"
	"github.com/atomizehq/atomizer/internal/extract"
	"github.com/atomizehq/atomizer/internal/platform/logger"
	"github.com/atomizehq/atomizer/internal/provider"
)

const analyzerSystemPrompt = "You are a mathematical document analyzer. Respond only with valid JSON."

// ShortContentReason marks nodes whose text is below the split threshold.
const ShortContentReason = "Content too short to split further."

const (
	maxAtomicityChars = 10000
	maxSplitChars     = 15000
)

// ProgressFunc reports atomization progress back to the job record.
type ProgressFunc func(ctx context.Context, message string, progress float64)

// Decision is the full outcome of an atomicity check.
type Decision struct {
	IsAtomic bool
	AtomType domain.AtomType
	Reason   string
}

// Atomizer decides whether nodes are atomic units and splits the ones that
// are not.
type Atomizer struct {
	provider         provider.Provider
	log              *logger.Logger
	maxDepth         int
	minContentLength int
}

func New(p provider.Provider, cfg config.Settings, log *logger.Logger) *Atomizer {
	return &Atomizer{
		provider:         p,
		log:              log.With("service", "Atomizer"),
		maxDepth:         cfg.MaxRecursionDepth,
		minContentLength: cfg.MinContentLenToSplit,
	}
}

// MinContentLength is the threshold below which a node is atomic without a
// model call.
func (a *Atomizer) MinContentLength() int { return a.minContentLength }

// CheckNodeAtomicity runs the atomicity check on a node's analysis text. A
// node too short to split is atomic without a model call.
func (a *Atomizer) CheckNodeAtomicity(ctx context.Context, node *domain.StructureNode) Decision {
	content := node.AnalysisText()
	if len(content) < a.minContentLength {
		return Decision{IsAtomic: true, Reason: ShortContentReason}
	}
	return a.checkAtomicity(ctx, content)
}

// checkAtomicity asks the model whether content holds exactly one concept.
// Failures fail open: short content is presumed atomic, long content is
// presumed splittable, so a flaky model never wedges the workflow.
func (a *Atomizer) checkAtomicity(ctx context.Context, content string) Decision {
	body := content
	if len(body) > maxAtomicityChars {
		body = body[:maxAtomicityChars]
	}

	prompt := fmt.Sprintf(`Analyze this mathematical content and determine:
1. Does it contain exactly ONE atomic concept (theorem/definition/lemma/corollary/proposition/example/remark)?
2. If it contains multiple concepts or is a container section (like a chapter overview), it is NOT atomic.
3. If yes, what type is it?

Content to analyze:
---
%s
---

Respond ONLY with valid JSON (no markdown code blocks):
{"is_atomic": true/false, "atom_type": "theorem|definition|lemma|corollary|proposition|example|remark|other|null", "reason": "brief explanation"}`, body)

	resp, err := a.provider.Complete(ctx, provider.CompleteRequest{
		Prompt:      prompt,
		System:      analyzerSystemPrompt,
		Temperature: 0.1,
		MaxTokens:   16000,
	})
	if err != nil {
		a.log.Error("atomicity check failed", "err", err)
		return Decision{
			IsAtomic: len(content) < a.minContentLength,
			AtomType: domain.AtomOther,
			Reason:   "Analysis failed: " + err.Error(),
		}
	}

	var result struct {
		IsAtomic bool   `json:"is_atomic"`
		AtomType string `json:"atom_type"`
		Reason   string `json:"reason"`
	}
	if err := extract.DecodeObject(resp, &result); err != nil {
		a.log.Error("atomicity response unparseable", "err", err)
		return Decision{
			IsAtomic: len(content) < a.minContentLength,
			AtomType: domain.AtomOther,
			Reason:   "Analysis failed: " + err.Error(),
		}
	}

	reason := result.Reason
	if reason == "" {
		reason = "No reason provided."
	}
	return Decision{
		IsAtomic: result.IsAtomic,
		AtomType: domain.ParseAtomType(strings.ToLower(result.AtomType)),
		Reason:   reason,
	}
}

// AnalyzeNode applies a fresh atomicity decision to a node and resets its
// approval gate.
func (a *Atomizer) AnalyzeNode(ctx context.Context, node *domain.StructureNode) Decision {
	decision := a.CheckNodeAtomicity(ctx, node)
	ApplyDecision(node, decision)
	return decision
}

// ApplyDecision writes an atomicity decision onto a node and marks it pending
// review.
func ApplyDecision(node *domain.StructureNode, d Decision) {
	if d.IsAtomic {
		node.AtomizationStatus = domain.AtomizationAtomic
	} else {
		node.AtomizationStatus = domain.AtomizationNeedsSplitting
	}
	node.AtomType = d.AtomType
	node.AIAtomicityReason = d.Reason
	node.ApprovalStatus = domain.ApprovalPending
}

// SplitNode asks the model to divide a node's text into child units. An
// empty result means the content could not be divided and the node is left
// untouched; the caller decides what that means.
func (a *Atomizer) SplitNode(ctx context.Context, node *domain.StructureNode) []*domain.StructureNode {
	content := node.AnalysisText()
	a.log.Info("splitting node", "title", node.Title, "chars", len(content))

	if content == "" {
		a.log.Warn("no content available to split", "title", node.Title)
		return nil
	}

	body := content
	if len(body) > maxSplitChars {
		body = body[:maxSplitChars]
	}

	prompt := fmt.Sprintf(`You are analyzing a mathematical document section that needs to be split into smaller atomic units.

IMPORTANT: The user has explicitly requested to split this content, so please try to find logical divisions.

Look for ANY of these as potential split points:
- Theorems, Propositions, Lemmas, Corollaries (often start with "Theorem", "Proposition", etc.)
- Definitions (often start with "Definition" or "Let X be...")
- Examples (often start with "Example" or "Consider...")
- Remarks, Notes, or Observations
- Proofs (can be separated from the theorem statement)
- Different numbered items (1.1, 1.2, etc.)
- Paragraphs discussing distinctly different concepts

Current section title: %s

Content to split:
---
%s
---

Find logical divisions in this content. For each division, provide:
- A descriptive title
- The character positions [start, end] where this unit appears

Respond ONLY with valid JSON (no markdown code blocks):
{
    "splits": [
        {"title": "Definition 1.1: Continuous Function", "start": 0, "end": 500},
        {"title": "Theorem 1.2: Intermediate Value Theorem", "start": 501, "end": 1200}
    ]
}

If there is truly only ONE concept with no logical divisions possible, return:
{"splits": []}

But please try hard to find at least 2 splits if possible - the user wants this content divided.`, node.Title, body)

	resp, err := a.provider.Complete(ctx, provider.CompleteRequest{
		Prompt:      prompt,
		System:      analyzerSystemPrompt,
		Temperature: 0.1,
		MaxTokens:   65536,
	})
	if err != nil {
		a.log.Error("split request failed", "title", node.Title, "err", err)
		return nil
	}

	var result struct {
		Splits []struct {
			Title string `json:"title"`
			Start int    `json:"start"`
			End   int    `json:"end"`
		} `json:"splits"`
	}
	if err := extract.DecodeObject(resp, &result); err != nil {
		a.log.Error("split response unparseable", "title", node.Title, "err", err)
		return nil
	}
	if len(result.Splits) == 0 {
		return nil
	}

	children := make([]*domain.StructureNode, 0, len(result.Splits))
	for i, split := range result.Splits {
		title := split.Title
		if title == "" {
			title = fmt.Sprintf("%s Part %d", node.Title, i+1)
		}

		start := clamp(split.Start, 0, len(content))
		end := clamp(split.End, start, len(content))
		span := content
		if start < end {
			span = content[start:end]
		}

		children = append(children, &domain.StructureNode{
			ID:                domain.NewNodeID(),
			Title:             title,
			Type:              domain.SectionContent,
			Level:             node.Level + 1,
			SourceText:        span,
			PageStart:         node.PageStart,
			PageEnd:           node.PageEnd,
			Category:          domain.CategoryKnowledge,
			Included:          true,
			AtomizationStatus: domain.AtomizationPending,
			ApprovalStatus:    domain.ApprovalPending,
		})
	}
	return children
}

// Atomize recursively classifies and splits every included node under the
// structure root. Container nodes are recursed through without counting
// against depth; nodes at the depth cap are forced atomic.
func (a *Atomizer) Atomize(ctx context.Context, structure *domain.DocumentStructure, progress ProgressFunc) error {
	total := domain.CountIncluded(structure.Root)
	processed := 0

	report := func(title string) {
		processed++
		if progress != nil {
			msg := title
			if len(msg) > 50 {
				msg = msg[:50]
			}
			progress(ctx, "Atomizing: "+msg+"...", float64(processed)/float64(max(total, 1)))
		}
	}

	return a.atomizeNode(ctx, structure.Root, 0, report)
}

func (a *Atomizer) atomizeNode(ctx context.Context, node *domain.StructureNode, depth int, report func(string)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !node.Included {
		return nil
	}
	report(node.Title)

	if node.Type.IsContainer() {
		for _, child := range node.Children {
			if err := a.atomizeNode(ctx, child, depth, report); err != nil {
				return err
			}
		}
		return nil
	}

	if depth >= a.maxDepth {
		node.AtomizationStatus = domain.AtomizationAtomic
		node.AtomType = domain.AtomOther
		return nil
	}

	content := node.AnalysisText()
	if len(content) < a.minContentLength {
		node.AtomizationStatus = domain.AtomizationAtomic
		decision := a.checkAtomicity(ctx, content)
		node.AtomType = decision.AtomType
		return nil
	}

	decision := a.checkAtomicity(ctx, content)
	if decision.IsAtomic {
		node.AtomizationStatus = domain.AtomizationAtomic
		node.AtomType = decision.AtomType
		for _, child := range node.Children {
			if err := a.atomizeNode(ctx, child, depth+1, report); err != nil {
				return err
			}
		}
		return nil
	}

	node.AtomizationStatus = domain.AtomizationNeedsSplitting
	if len(node.Children) > 0 {
		for _, child := range node.Children {
			if err := a.atomizeNode(ctx, child, depth+1, report); err != nil {
				return err
			}
		}
		return nil
	}

	newChildren := a.SplitNode(ctx, node)
	if len(newChildren) == 0 {
		node.AtomizationStatus = domain.AtomizationAtomic
		if decision.AtomType == "" {
			node.AtomType = domain.AtomOther
		} else {
			node.AtomType = decision.AtomType
		}
		return nil
	}

	node.Children = newChildren
	for _, child := range node.Children {
		if err := a.atomizeNode(ctx, child, depth+1, report); err != nil {
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

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
