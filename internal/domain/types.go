package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the coarse pipeline phase of a processing job.
type JobStatus string

const (
	JobStatusPending            JobStatus = "pending"
	JobStatusExtractingPages    JobStatus = "extracting_pages"
	JobStatusProcessingOCR      JobStatus = "processing_ocr"
	JobStatusAnalyzingStructure JobStatus = "analyzing_structure"
	JobStatusFilteringContent   JobStatus = "filtering_content"
	JobStatusRefiningContent    JobStatus = "refining_content"
	JobStatusAtomizing          JobStatus = "atomizing"
	JobStatusFillingContent     JobStatus = "filling_content"
	JobStatusGeneratingLinks    JobStatus = "generating_links"
	JobStatusCompleted          JobStatus = "completed"
	JobStatusFailed             JobStatus = "failed"
)

// SectionType classifies a node in the document tree.
type SectionType string

const (
	SectionBook       SectionType = "book"
	SectionChapter    SectionType = "chapter"
	SectionSection    SectionType = "section"
	SectionSubsection SectionType = "subsection"
	SectionContent    SectionType = "content"
)

// IsContainer reports whether the type is only recursed through, never
// atomized or queued for approval.
func (t SectionType) IsContainer() bool {
	return t == SectionBook || t == SectionChapter
}

// ParseSectionType maps a model-supplied string to a SectionType, defaulting
// to section for anything unrecognized.
func ParseSectionType(s string) SectionType {
	switch SectionType(s) {
	case SectionBook, SectionChapter, SectionSection, SectionSubsection, SectionContent:
		return SectionType(s)
	default:
		return SectionSection
	}
}

// ContentCategory separates substantive knowledge from front/back matter.
type ContentCategory string

const (
	CategoryKnowledge ContentCategory = "knowledge"
	CategoryMeta      ContentCategory = "meta"
)

func ParseContentCategory(s string) ContentCategory {
	if ContentCategory(s) == CategoryMeta {
		return CategoryMeta
	}
	return CategoryKnowledge
}

// AtomizationStatus tracks a node through the split/approve state machine.
type AtomizationStatus string

const (
	AtomizationPending        AtomizationStatus = "pending"
	AtomizationNeedsSplitting AtomizationStatus = "needs_splitting"
	AtomizationAtomic         AtomizationStatus = "atomic"
	AtomizationFilled         AtomizationStatus = "filled"
)

// WorkflowStage is the fine-grained interactive phase of a job.
type WorkflowStage string

const (
	StageUploading                    WorkflowStage = "uploading"
	StageExtracting                   WorkflowStage = "extracting"
	StageAwaitingStructureApproval    WorkflowStage = "awaiting_structure_approval"
	StageAtomizing                    WorkflowStage = "atomizing"
	StageAwaitingAtomizationApproval  WorkflowStage = "awaiting_atomization_approval"
	StageFillingContent               WorkflowStage = "filling_content"
	StageAwaitingContentApproval      WorkflowStage = "awaiting_content_approval"
	StageCompleted                    WorkflowStage = "completed"
	StageFailed                       WorkflowStage = "failed"
)

// ApprovalStatus is the per-node human gate, independent of atomization.
type ApprovalStatus string

const (
	ApprovalPending      ApprovalStatus = "pending"
	ApprovalApproved     ApprovalStatus = "approved"
	ApprovalRegenerating ApprovalStatus = "regenerating"
)

// AtomType classifies an atomic content unit.
type AtomType string

const (
	AtomTheorem     AtomType = "theorem"
	AtomDefinition  AtomType = "definition"
	AtomLemma       AtomType = "lemma"
	AtomCorollary   AtomType = "corollary"
	AtomProposition AtomType = "proposition"
	AtomExample     AtomType = "example"
	AtomRemark      AtomType = "remark"
	AtomOther       AtomType = "other"
)

// ParseAtomType maps a model-supplied string to an AtomType. Unknown or
// null-ish values collapse to AtomOther; empty stays empty.
func ParseAtomType(s string) AtomType {
	switch AtomType(s) {
	case AtomTheorem, AtomDefinition, AtomLemma, AtomCorollary,
		AtomProposition, AtomExample, AtomRemark, AtomOther:
		return AtomType(s)
	case "", "null":
		return ""
	default:
		return AtomOther
	}
}

// AtomContent is the structured payload for an atomic unit.
type AtomContent struct {
	Description    string   `json:"description"`
	Statement      string   `json:"statement"`
	Proof          string   `json:"proof,omitempty"`
	Lemmas         []string `json:"lemmas,omitempty"`
	RelatedContent string   `json:"related_content,omitempty"`
}

// StructureNode is a node in the document structure tree. Children are owned
// exclusively by their parent; the tree is acyclic.
type StructureNode struct {
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Type     SectionType      `json:"type"`
	Level    int              `json:"level"`
	Content  string           `json:"content"`
	Children []*StructureNode `json:"children"`

	PageStart *int `json:"page_start,omitempty"`
	PageEnd   *int `json:"page_end,omitempty"`

	Category ContentCategory `json:"category"`
	Included bool            `json:"included"`

	AtomizationStatus AtomizationStatus `json:"atomization_status"`
	AtomType          AtomType          `json:"atom_type,omitempty"`
	AtomContent       *AtomContent      `json:"atom_content,omitempty"`
	// SourceText is the verbatim extracted span backing this node, preserved
	// for re-analysis independent of Content.
	SourceText string `json:"source_text,omitempty"`

	ApprovalStatus    ApprovalStatus `json:"approval_status"`
	AIAtomicityReason string         `json:"ai_atomicity_reason,omitempty"`
	UserEdited        bool           `json:"user_edited"`
}

// NewNodeID mints a fresh short node id.
func NewNodeID() string {
	return uuid.NewString()[:8]
}

// AnalysisText returns the text a node should be analyzed on: the preserved
// source span when present, otherwise the summary content.
func (n *StructureNode) AnalysisText() string {
	if n.SourceText != "" {
		return n.SourceText
	}
	return n.Content
}

// DocumentStructure is the complete extracted document tree. Root is always
// a book node and is never itself classified or atomized.
type DocumentStructure struct {
	Title       string         `json:"title"`
	Author      string         `json:"author,omitempty"`
	Root        *StructureNode `json:"root"`
	TotalPages  int            `json:"total_pages"`
	ExtractedAt time.Time      `json:"extracted_at"`
}

// ProcessingJob is the aggregate root for one upload.
type ProcessingJob struct {
	JobID    string    `json:"job_id"`
	Filename string    `json:"filename"`
	Status   JobStatus `json:"status"`
	Progress float64   `json:"progress"`
	Message  string    `json:"message"`
	Error    string    `json:"error,omitempty"`

	Structure *DocumentStructure `json:"structure,omitempty"`
	// FullText is the raw extracted/OCR'd text, retained so node source text
	// can be re-derived after structure edits.
	FullText string `json:"full_text,omitempty"`

	WorkflowStage WorkflowStage `json:"workflow_stage"`
	// Pending node-id caches. Recomputable from the tree at any time; the
	// tree is the source of truth, these exist for cheap status reads.
	PendingAtomizationNodes []string `json:"pending_atomization_nodes"`
	PendingContentNodes     []string `json:"pending_content_nodes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProcessingJob builds a pending job for a fresh upload.
func NewProcessingJob(filename string) *ProcessingJob {
	now := time.Now().UTC()
	return &ProcessingJob{
		JobID:                   uuid.NewString(),
		Filename:                filename,
		Status:                  JobStatusPending,
		WorkflowStage:           StageUploading,
		Message:                 "Upload received, processing will begin shortly...",
		PendingAtomizationNodes: []string{},
		PendingContentNodes:     []string{},
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}
