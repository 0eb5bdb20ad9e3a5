package extract

import (
	"strings"
	"testing"

	"github.com/atomizehq/atomizer/internal/domain"
)

func sourceTextTree() *domain.StructureNode {
	return &domain.StructureNode{
		ID: "root", Title: "Calculus", Type: domain.SectionBook, Included: true, Category: domain.CategoryKnowledge,
		Children: []*domain.StructureNode{
			{
				ID: "ch1", Title: "Chapter 1: Limits", Type: domain.SectionChapter, Level: 1, Included: true, Category: domain.CategoryKnowledge,
				Children: []*domain.StructureNode{
					{ID: "s1", Title: "1.1 Limits", Type: domain.SectionSection, Level: 2, Included: true, Category: domain.CategoryKnowledge},
					{ID: "s2", Title: "1.2 Continuity", Type: domain.SectionSection, Level: 2, Included: true, Category: domain.CategoryKnowledge},
				},
			},
			{ID: "pref", Title: "Preface", Type: domain.SectionSection, Level: 1, Included: false, Category: domain.CategoryMeta},
		},
	}
}

const sourceTextDoc = `Preface
Thanks to everyone.
Chapter 1: Limits
1.1 Limits
The limit of a function describes its behavior near a point without requiring the function to be defined at that point itself.
1.2 Continuity
A function is continuous when arbitrarily small changes in input produce arbitrarily small changes in output.
`

func TestPopulateSourceTextSiblingBounds(t *testing.T) {
	root := sourceTextTree()
	PopulateSourceText(root, sourceTextDoc)

	s1 := domain.FindNode(root, "s1")
	if !strings.Contains(s1.SourceText, "behavior near a point") {
		t.Fatalf("s1 source = %q", s1.SourceText)
	}
	if strings.Contains(s1.SourceText, "continuous") {
		t.Fatalf("s1 source leaked into sibling: %q", s1.SourceText)
	}

	s2 := domain.FindNode(root, "s2")
	if !strings.Contains(s2.SourceText, "small changes in input") {
		t.Fatalf("s2 source = %q", s2.SourceText)
	}
}

func TestPopulateSourceTextSkipsExcluded(t *testing.T) {
	root := sourceTextTree()
	PopulateSourceText(root, sourceTextDoc)

	pref := domain.FindNode(root, "pref")
	if pref.SourceText != "" {
		t.Fatalf("excluded node got source text: %q", pref.SourceText)
	}
}

func TestPopulateSourceTextKeepsSubstantialExisting(t *testing.T) {
	root := sourceTextTree()
	existing := strings.Repeat("already populated ", 20)
	s1 := domain.FindNode(root, "s1")
	s1.SourceText = existing

	PopulateSourceText(root, sourceTextDoc)
	if s1.SourceText != existing {
		t.Fatalf("substantial source text was overwritten")
	}
}

func TestPopulateSourceTextOverwritesOnlyWithLonger(t *testing.T) {
	root := sourceTextTree()
	s1 := domain.FindNode(root, "s1")
	s1.SourceText = "tiny"

	PopulateSourceText(root, sourceTextDoc)
	if !strings.Contains(s1.SourceText, "behavior near a point") {
		t.Fatalf("short source text should be replaced by the longer span")
	}

	// A span under the 200-char threshold that is still longer than the
	// extracted one is kept.
	root2 := sourceTextTree()
	s1b := domain.FindNode(root2, "s1")
	existing := strings.Repeat("x", 199)
	s1b.SourceText = existing
	PopulateSourceText(root2, sourceTextDoc)
	if s1b.SourceText != existing {
		t.Fatalf("longer existing span was replaced by a shorter extraction")
	}
}

func TestPopulateSourceTextMissingTitle(t *testing.T) {
	root := sourceTextTree()
	s1 := domain.FindNode(root, "s1")
	s1.Title = "Nowhere To Be Found"

	PopulateSourceText(root, sourceTextDoc)
	if s1.SourceText != "" {
		t.Fatalf("unlocatable node got source text: %q", s1.SourceText)
	}
}
