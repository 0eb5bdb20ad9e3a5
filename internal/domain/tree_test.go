package domain

import "testing"

func buildTestTree() *StructureNode {
	return &StructureNode{
		ID: "root", Title: "Book", Type: SectionBook, Included: true, Category: CategoryKnowledge,
		Children: []*StructureNode{
			{
				ID: "ch1", Title: "Chapter 1", Type: SectionChapter, Level: 1, Included: true, Category: CategoryKnowledge,
				Children: []*StructureNode{
					{ID: "s1", Title: "1.1 Limits", Type: SectionSection, Level: 2, Included: true, Category: CategoryKnowledge, ApprovalStatus: ApprovalPending},
					{ID: "s2", Title: "1.2 Continuity", Type: SectionSection, Level: 2, Included: true, Category: CategoryKnowledge, ApprovalStatus: ApprovalApproved},
				},
			},
			{
				ID: "pref", Title: "Preface", Type: SectionSection, Level: 1, Included: false, Category: CategoryMeta,
				Children: []*StructureNode{
					{ID: "pref1", Title: "Thanks", Type: SectionSubsection, Level: 2, Included: true, Category: CategoryKnowledge, ApprovalStatus: ApprovalPending},
				},
			},
		},
	}
}

func TestFindNodeAndPath(t *testing.T) {
	root := buildTestTree()

	n := FindNode(root, "s2")
	if n == nil || n.Title != "1.2 Continuity" {
		t.Fatalf("FindNode returned %#v", n)
	}
	if FindNode(root, "missing") != nil {
		t.Fatalf("expected nil for unknown id")
	}

	path := NodePath(root, "s1")
	want := []string{"Book", "Chapter 1", "1.1 Limits"}
	if len(path) != len(want) {
		t.Fatalf("path = %v", path)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("path[%d] = %q, want %q", i, path[i], want[i])
		}
	}
}

func TestCollectPendingAtomizationSkipsExcludedSubtrees(t *testing.T) {
	root := buildTestTree()

	pending := CollectPendingAtomization(root)
	if len(pending) != 1 || pending[0].ID != "s1" {
		t.Fatalf("pending = %v", NodeIDs(pending))
	}
	// pref1 is pending and included, but sits under an excluded parent and
	// must not be visited at all.
	for _, n := range pending {
		if n.ID == "pref1" {
			t.Fatalf("excluded subtree was walked")
		}
	}
}

func TestCollectPendingContentRequiresAtomContent(t *testing.T) {
	root := buildTestTree()
	s1 := FindNode(root, "s1")
	s1.AtomContent = &AtomContent{Description: "d", Statement: "s"}

	pending := CollectPendingContent(root)
	if len(pending) != 1 || pending[0].ID != "s1" {
		t.Fatalf("pending = %v", NodeIDs(pending))
	}

	s1.ApprovalStatus = ApprovalApproved
	if got := CollectPendingContent(root); len(got) != 0 {
		t.Fatalf("expected empty after approval, got %v", NodeIDs(got))
	}
}

func TestCollectContentLeavesUsesInclusionNotStatus(t *testing.T) {
	root := buildTestTree()
	s1 := FindNode(root, "s1")
	s1.Children = []*StructureNode{
		{ID: "s1a", Title: "Part A", Type: SectionContent, Level: 3, Included: true, Category: CategoryKnowledge},
		{ID: "s1b", Title: "Part B", Type: SectionContent, Level: 3, Included: false, Category: CategoryMeta},
	}

	leaves := CollectContentLeaves(root)
	ids := NodeIDs(leaves)
	want := map[string]bool{"s1a": true, "s2": true}
	if len(ids) != 2 {
		t.Fatalf("leaves = %v", ids)
	}
	for _, id := range ids {
		if !want[id] {
			t.Fatalf("unexpected leaf %q in %v", id, ids)
		}
	}
}

func TestEstimatePageCount(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"no markers at all", 1},
		{"=== PAGE 1 ===\nfoo\n=== PAGE 2 ===\nbar", 2},
		{"=== PAGE 10 ===\n=== PAGE 3 ===", 10},
	}
	for _, tc := range cases {
		if got := EstimatePageCount(tc.text); got != tc.want {
			t.Fatalf("EstimatePageCount(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestParseAtomType(t *testing.T) {
	if got := ParseAtomType("theorem"); got != AtomTheorem {
		t.Fatalf("got %q", got)
	}
	if got := ParseAtomType("null"); got != "" {
		t.Fatalf("null should map to empty, got %q", got)
	}
	if got := ParseAtomType("conjecture"); got != AtomOther {
		t.Fatalf("unknown should map to other, got %q", got)
	}
}
