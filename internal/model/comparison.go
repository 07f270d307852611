package model

import "time"

// ComparisonMode selects the shape of the aggregate output.
type ComparisonMode string

const (
	ModeStructured       ComparisonMode = "structured"
	ModeNarrative        ComparisonMode = "narrative"
	ModeComparisonReport ComparisonMode = "comparison_report"
)

// CoverageSection is an insurance class selectable for inclusion in a
// comparison.
type CoverageSection string

const (
	SectionProfessionalIndemnity   CoverageSection = "professional_indemnity"
	SectionCyber                   CoverageSection = "cyber"
	SectionCrime                   CoverageSection = "crime"
	SectionPublicProductsLiability CoverageSection = "public_products_liability"
	SectionProperty                CoverageSection = "property"
	SectionEmployersLiability      CoverageSection = "employers_liability"
	SectionDirectorsOfficers       CoverageSection = "directors_officers"
)

// ComparisonRequest is one user-triggered comparison over a batch of
// documents. Transient; identified by ID for retry/resume.
type ComparisonRequest struct {
	ID           string              `json:"request_id"`
	ClientName   string              `json:"client_name"`
	Industry     string              `json:"industry"`
	Jurisdiction string              `json:"jurisdiction"`
	Sections     []CoverageSection   `json:"selected_coverage_sections"`
	Documents    []DocumentReference `json:"documents"`
	Mode         ComparisonMode      `json:"mode"`
}

// HasSection reports whether the request selected the given section.
func (r ComparisonRequest) HasSection(s CoverageSection) bool {
	for _, sec := range r.Sections {
		if sec == s {
			return true
		}
	}
	return false
}

// InsurerEntry is one carrier's merged record in a structured comparison.
// A carrier contributing both a quote and a policy wording appears once.
type InsurerEntry struct {
	Name             string         `json:"name"`
	Summary          string         `json:"summary,omitempty"`
	Products         []string       `json:"products,omitempty"`
	PremiumAmount    float64        `json:"premium_amount,omitempty"`
	PremiumDisplay   string         `json:"premium_display,omitempty"`
	CoverageLimits   map[string]any `json:"coverage_limits,omitempty"`
	QuotePayload     map[string]any `json:"quote_payload,omitempty"`
	WordingPayload   map[string]any `json:"wording_payload,omitempty"`
	SourceDocuments  []string       `json:"source_documents,omitempty"`
}

// ComparisonReport is the derived aggregate artifact. Not persisted unless
// explicitly exported or finalized.
type ComparisonReport struct {
	RequestID          string           `json:"request_id"`
	Mode               ComparisonMode   `json:"mode"`
	Insurers           []InsurerEntry   `json:"insurers"`
	ProductComparisons []map[string]any `json:"product_comparisons"`
	ComparisonSummary  []map[string]any `json:"comparison_summary"`
	OverallFindings    []map[string]any `json:"overall_findings"`
	FailedDocuments    []FailedDocument `json:"failed_documents"`
	Narrative          string           `json:"narrative,omitempty"`
	Rankings           []QuoteRanking   `json:"rankings,omitempty"`
	Usage              TokenUsage       `json:"usage,omitzero"`
	GeneratedAt        time.Time        `json:"generated_at,omitzero"`
}

// ProgressLevel classifies a progress event for presentation layers.
type ProgressLevel string

const (
	ProgressInfo  ProgressLevel = "info"
	ProgressWarn  ProgressLevel = "warn"
	ProgressError ProgressLevel = "error"
)

// ProgressEvent is emitted by the pipeline at stage boundaries and on
// per-document outcomes. The core never renders; any presentation layer
// may consume the stream.
type ProgressEvent struct {
	Stage   string        `json:"stage"`
	Message string        `json:"message"`
	Level   ProgressLevel `json:"level"`
}

// ProgressFunc receives progress events. A nil ProgressFunc is always safe
// to call through Emit.
type ProgressFunc func(ProgressEvent)

// Emit sends an event if the callback is non-nil.
func (f ProgressFunc) Emit(stage, message string, level ProgressLevel) {
	if f != nil {
		f(ProgressEvent{Stage: stage, Message: message, Level: level})
	}
}
