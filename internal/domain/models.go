package domain

import (
	"strconv"
	"strings"
	"time"
)

// PageBreakMarker is the delimiter inserted between per-page text segments
// when the extractor aggregates a document.
const PageBreakMarker = "\n\n--- Page Break ---\n\n"

// ProcessingJob identifies one document-processing run.
type ProcessingJob struct {
	JobID     string    `json:"jobId"`
	ProjectID string    `json:"projectId"`
	FileName  string    `json:"fileName"`
	FileSize  int64     `json:"fileSize"`
	FileType  string    `json:"fileType"`
	CreatedAt time.Time `json:"createdAt"`
}

// PageImage represents a single rendered page of a source document.
type PageImage struct {
	PageNumber int    `json:"page_number"` // 1-based
	ImagePath  string `json:"image_path"`  // Path to temporary PNG file
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// Section is one logical segment of an extracted document.
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ExtractedContent is the aggregate result of text extraction across all pages.
// Sections and Metadata are best-effort: a parse failure yields empty defaults.
type ExtractedContent struct {
	Text     string           `json:"text"`
	Sections []Section        `json:"sections"`
	Metadata DocumentMetadata `json:"metadata"`
}

// DocumentMetadata holds document-level attributes derived from the text.
type DocumentMetadata struct {
	DocumentType        string            `json:"documentType"`
	ComplianceStandards []string          `json:"complianceStandards"`
	TotalPages          int               `json:"totalPages"`
	Extra               map[string]string `json:"extra,omitempty"`
}

// Well-known gap identifiers appended by post-processing when the analysis
// response omits structurally required fields.
const (
	GapComplianceStandards = "compliance-standards"
	GapRiskClassification  = "risk-classification"
	GapDeploymentRegions   = "deployment-regions"
	GapTargetUsers         = "target-users"
	GapDataHandling        = "data-handling"
	GapClinicalValidation  = "clinical-validation"
	GapInteroperability    = "interoperability"
	GapAnalysisFailed      = "document-analysis-failed"
)

// GapAnalysis is the structured judgment about missing information in a document.
type GapAnalysis struct {
	ProjectType         string   `json:"projectType"`
	SoftwareName        string   `json:"softwareName"`
	TargetUsers         []string `json:"targetUsers"`
	ComplianceStandards []string `json:"complianceStandards"`
	Regions             []string `json:"regions"`
	DataHandling        string   `json:"dataHandling"`
	Integrations        []string `json:"integrations"`
	RiskLevel           string   `json:"riskLevel"`
	ClinicalFeatures    []string `json:"clinicalFeatures"`
	Requirements        []string `json:"requirements"`

	CriticalGaps  []string `json:"criticalGaps"`
	ImportantGaps []string `json:"importantGaps"`
	OptionalGaps  []string `json:"optionalGaps"`

	Confidence        float64            `json:"confidence"`
	SectionConfidence map[string]float64 `json:"sectionConfidence,omitempty"`

	TotalPages int  `json:"totalPages"`
	Degraded   bool `json:"degraded"`
}

// HasGap reports whether the identifier appears in any gap list.
func (a *GapAnalysis) HasGap(id string) bool {
	for _, list := range [][]string{a.CriticalGaps, a.ImportantGaps, a.OptionalGaps} {
		for _, g := range list {
			if g == id {
				return true
			}
		}
	}
	return false
}

// IsDeviceLike reports whether the detected project type suggests a regulated
// medical device.
func (a *GapAnalysis) IsDeviceLike() bool {
	pt := strings.ToLower(a.ProjectType)
	for _, kw := range []string{"device", "samd", "diagnostic", "monitoring", "clinical"} {
		if strings.Contains(pt, kw) {
			return true
		}
	}
	return false
}

// QuestionCategory is the severity tier a question was generated from.
type QuestionCategory string

const (
	CategoryCritical  QuestionCategory = "critical"
	CategoryImportant QuestionCategory = "important"
	CategoryOptional  QuestionCategory = "optional"
)

// QuestionType is the input shape the UI should render for a question.
type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
	QuestionText     QuestionType = "text"
	QuestionTextarea QuestionType = "textarea"
	QuestionCards    QuestionType = "cards"
)

// QuestionOption is one selectable choice. Value is unique across the whole
// question set of a job; OriginalValue retains the semantic value the option
// was generated from.
type QuestionOption struct {
	Value         string `json:"value"`
	OriginalValue string `json:"originalValue,omitempty"`
	Label         string `json:"label"`
	Description   string `json:"description,omitempty"`
}

// GapQuestion is one interactive clarification prompt. Questions are never
// mutated after generation; answers are stored separately keyed by question id.
type GapQuestion struct {
	ID           string           `json:"id"`
	Category     QuestionCategory `json:"category"`
	Type         QuestionType     `json:"type"`
	Question     string           `json:"question"`
	Reason       string           `json:"reason,omitempty"`
	FoundContext string           `json:"foundContext,omitempty"`
	Options      []QuestionOption `json:"options,omitempty"`
	SkipLabel    string           `json:"skipLabel,omitempty"`
}

// Answer is a user-supplied response to a GapQuestion: a string, a string
// list, or a number. Exactly one field is set.
type Answer struct {
	Text   string   `json:"text,omitempty"`
	Values []string `json:"values,omitempty"`
	Number *float64 `json:"number,omitempty"`
}

// IsEmpty reports whether the answer carries no content.
func (a Answer) IsEmpty() bool {
	return a.Text == "" && len(a.Values) == 0 && a.Number == nil
}

// String renders the answer as free-form prompt text.
func (a Answer) String() string {
	switch {
	case len(a.Values) > 0:
		return strings.Join(a.Values, ", ")
	case a.Number != nil:
		return strconv.FormatFloat(*a.Number, 'f', -1, 64)
	default:
		return a.Text
	}
}

// RequirementCategory classifies a generated requirement.
type RequirementCategory string

const (
	RequirementFunctional    RequirementCategory = "functional"
	RequirementNonFunctional RequirementCategory = "non-functional"
	RequirementTechnical     RequirementCategory = "technical"
	RequirementBusiness      RequirementCategory = "business"
)

// NormalizeRequirementCategory coerces free-form model output into a known category.
func NormalizeRequirementCategory(s string) RequirementCategory {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "non-functional", "nonfunctional", "non functional":
		return RequirementNonFunctional
	case "technical":
		return RequirementTechnical
	case "business":
		return RequirementBusiness
	default:
		return RequirementFunctional
	}
}

// RequirementPriority ranks a generated requirement.
type RequirementPriority string

const (
	PriorityCritical RequirementPriority = "critical"
	PriorityHigh     RequirementPriority = "high"
	PriorityMedium   RequirementPriority = "medium"
	PriorityLow      RequirementPriority = "low"
)

// NormalizeRequirementPriority coerces free-form model output into a known priority.
func NormalizeRequirementPriority(s string) RequirementPriority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return PriorityCritical
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// GeneratedRequirement is one synthesized requirement record. Immutable once
// generated; edits happen through separate CRUD flows.
type GeneratedRequirement struct {
	ID                 string              `json:"id"` // job-local, e.g. REQ-001
	Title              string              `json:"title"`
	Description        string              `json:"description"`
	Category           RequirementCategory `json:"category"`
	Priority           RequirementPriority `json:"priority"`
	Source             string              `json:"source"`
	AcceptanceCriteria []string            `json:"acceptanceCriteria"`
	Compliance         []string            `json:"compliance"`
	UserStory          string              `json:"userStory,omitempty"`
	TestScenarios      []string            `json:"testScenarios"`
	Dependencies       []string            `json:"dependencies,omitempty"`
	Risks              []string            `json:"risks,omitempty"`
}

// ProgressStatus is the status of one progress event.
type ProgressStatus string

const (
	StatusProcessing ProgressStatus = "processing"
	StatusCompleted  ProgressStatus = "completed"
	StatusError      ProgressStatus = "error"
)

// Pipeline stage names used in progress events.
const (
	StageUpload     = "upload"
	StageConvert    = "convert"
	StageExtract    = "extract"
	StageAnalyze    = "analyze"
	StageQuestions  = "questions"
	StageSynthesize = "synthesize"
	StagePersist    = "persist"
)

// ProgressEvent is one status update in a job's append-only event log.
type ProgressEvent struct {
	JobID     string         `json:"jobId"`
	Step      string         `json:"step"`
	Status    ProgressStatus `json:"status"`
	Current   int            `json:"current"`
	Total     int            `json:"total"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
