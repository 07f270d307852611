package model

// RecommendationCategory buckets a ranked quote for display.
type RecommendationCategory string

const (
	RecommendationBestOverall    RecommendationCategory = "best_overall"
	RecommendationBestValue      RecommendationCategory = "best_value"
	RecommendationBestCoverage   RecommendationCategory = "best_coverage"
	RecommendationNotRecommended RecommendationCategory = "consider_alternatives"
)

// QuoteRanking is the deterministic scoring outcome for one quote.
// Recomputed whenever the underlying coverage or premium inputs change,
// never mutated in place.
type QuoteRanking struct {
	QuoteID        string                 `json:"quote_id"`
	InsurerName    string                 `json:"insurer_name"`
	PremiumAmount  float64                `json:"premium_amount"`
	CoverageScore  int                    `json:"coverage_score"`
	PriceScore     int                    `json:"price_score"`
	OverallScore   int                    `json:"overall_score"`
	RankPosition   int                    `json:"rank_position"`
	Recommendation RecommendationCategory `json:"recommendation_category"`
	Strengths      []string               `json:"strengths,omitempty"`
	Concerns       []string               `json:"concerns,omitempty"`
}

// PolicyWording is the structured view over a wording extraction used by
// the diff engine.
type PolicyWording struct {
	InsurerName       string         `json:"insurer_name"`
	ProductName       string         `json:"product_name,omitempty"`
	Jurisdiction      string         `json:"jurisdiction,omitempty"`
	Territory         string         `json:"territory,omitempty"`
	CoverageSections  map[string]any `json:"coverage_sections,omitempty"`
	ClaimsBasis       string         `json:"claims_basis,omitempty"`
	Limits            map[string]any `json:"limits,omitempty"`
	Deductibles       map[string]any `json:"deductibles,omitempty"`
	Exclusions        []string       `json:"exclusions,omitempty"`
	Conditions        []string       `json:"conditions,omitempty"`
	NotableTerms      []string       `json:"notable_terms,omitempty"`
	Definitions       []string       `json:"definitions,omitempty"`
	Citations         []string       `json:"citations,omitempty"`
	CompletenessScore int            `json:"completeness_score"`
}
