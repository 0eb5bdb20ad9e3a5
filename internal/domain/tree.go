package domain

import (
	"regexp"
	"strconv"
)

// FindNode locates a node by id anywhere under root (inclusive).
func FindNode(root *StructureNode, id string) *StructureNode {
	if root == nil {
		return nil
	}
	if root.ID == id {
		return root
	}
	for _, child := range root.Children {
		if found := FindNode(child, id); found != nil {
			return found
		}
	}
	return nil
}

// NodePath returns the breadcrumb of titles from root down to the node, or
// nil if the id is not in the tree.
func NodePath(root *StructureNode, id string) []string {
	if root == nil {
		return nil
	}
	if root.ID == id {
		return []string{root.Title}
	}
	for _, child := range root.Children {
		if sub := NodePath(child, id); sub != nil {
			return append([]string{root.Title}, sub...)
		}
	}
	return nil
}

// Walk visits every node under root (inclusive) in depth-first order. The
// visit function must not mutate Children of the node it receives; structural
// mutations happen between passes, never mid-walk.
func Walk(root *StructureNode, visit func(*StructureNode)) {
	if root == nil {
		return
	}
	visit(root)
	for _, child := range root.Children {
		Walk(child, visit)
	}
}

// CollectPendingAtomization computes the live set of nodes awaiting an
// atomization decision: included, non-container, approval pending. Excluded
// subtrees are skipped entirely; containers are recursed through.
func CollectPendingAtomization(root *StructureNode) []*StructureNode {
	var out []*StructureNode
	var rec func(n *StructureNode)
	rec = func(n *StructureNode) {
		if n == nil || !n.Included {
			return
		}
		if !n.Type.IsContainer() && n.ApprovalStatus == ApprovalPending {
			out = append(out, n)
		}
		for _, child := range n.Children {
			rec(child)
		}
	}
	rec(root)
	return out
}

// CollectPendingContent computes the live set of nodes awaiting content
// approval: included, non-container, atom content generated, approval pending.
func CollectPendingContent(root *StructureNode) []*StructureNode {
	var out []*StructureNode
	var rec func(n *StructureNode)
	rec = func(n *StructureNode) {
		if n == nil || !n.Included {
			return
		}
		if !n.Type.IsContainer() && n.AtomContent != nil && n.ApprovalStatus == ApprovalPending {
			out = append(out, n)
		}
		for _, child := range n.Children {
			rec(child)
		}
	}
	rec(root)
	return out
}

// CollectContentLeaves returns every included non-container node with no
// included children. These are the units that receive summaries: the
// operator's approvals decide leaf-hood, not the raw atomicity verdicts.
func CollectContentLeaves(root *StructureNode) []*StructureNode {
	var out []*StructureNode
	var rec func(n *StructureNode)
	rec = func(n *StructureNode) {
		if n == nil || !n.Included {
			return
		}
		if n.Type.IsContainer() {
			for _, child := range n.Children {
				rec(child)
			}
			return
		}
		hasIncludedChild := false
		for _, child := range n.Children {
			if child.Included {
				hasIncludedChild = true
				break
			}
		}
		if hasIncludedChild {
			for _, child := range n.Children {
				rec(child)
			}
			return
		}
		out = append(out, n)
	}
	rec(root)
	return out
}

// CountIncluded counts included nodes under root, inclusive.
func CountIncluded(root *StructureNode) int {
	if root == nil || !root.Included {
		return 0
	}
	count := 1
	for _, child := range root.Children {
		count += CountIncluded(child)
	}
	return count
}

// NodeIDs projects a node slice to its ids, preserving order. Always returns
// a non-nil slice so cache snapshots serialize as [] rather than null.
func NodeIDs(nodes []*StructureNode) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

var pageMarkerRe = regexp.MustCompile(`=== PAGE (\d+) ===`)

// EstimatePageCount scans for OCR page markers and returns the highest page
// number, defaulting to 1 when the text carries no markers.
func EstimatePageCount(text string) int {
	max := 0
	for _, m := range pageMarkerRe.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	if max == 0 {
		return 1
	}
	return max
}
