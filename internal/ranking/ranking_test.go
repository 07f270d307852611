package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverdesk/compare-cli/internal/model"
)

func TestWeightsSumTo100(t *testing.T) {
	assert.Equal(t, 100.0, WeightsTotal())
	assert.Equal(t, 100.0, coverageShare+priceShare)
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"£2M", 2_000_000},
		{"£500K", 500_000},
		{"$1.5m", 1_500_000},
		{"2,000,000", 2_000_000},
		{"250k", 250_000},
		{"Not Covered", 0},
		{"Basic Cover", 0},
		{"not covered", 0},
		{"", 0},
		{"TBC", 0},
		{"£1M each and every claim", 1_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLimit(tt.input))
		})
	}
}

func TestFormatLimitRoundTrip(t *testing.T) {
	// For values exactly expressible in K/M units, parse(format(n)) == n.
	for _, n := range []float64{2_000_000, 500_000, 1_500_000, 10_000_000, 750} {
		assert.Equal(t, n, ParseLimit(FormatLimit(n)), "value %v via %q", n, FormatLimit(n))
	}
	assert.Equal(t, "£2.0M", FormatLimit(2_000_000))
	assert.Equal(t, "£500K", FormatLimit(500_000))
}

func TestRankIdenticalPremiumsGetFullPriceScore(t *testing.T) {
	quotes := []QuoteInput{
		{QuoteID: "a", InsurerName: "AXA", Premium: 5000, Limits: map[CoverageCategory]string{CategoryProfessionalIndemnity: "£1M"}},
		{QuoteID: "b", InsurerName: "Zurich", Premium: 5000, Limits: map[CoverageCategory]string{CategoryProfessionalIndemnity: "£2M"}},
		{QuoteID: "c", InsurerName: "Chubb", Premium: 5000, Limits: map[CoverageCategory]string{CategoryProfessionalIndemnity: "£2M"}},
	}
	rankings := Rank(quotes)
	require.Len(t, rankings, 3)
	for _, r := range rankings {
		assert.Equal(t, 100, r.PriceScore, "degenerate premium range must not penalize %s", r.InsurerName)
	}
}

func TestRankNoCoverageScoresZero(t *testing.T) {
	quotes := []QuoteInput{
		{QuoteID: "a", Premium: 4000, Limits: map[CoverageCategory]string{CategoryProfessionalIndemnity: "Not Covered"}},
		{QuoteID: "b", Premium: 6000, Limits: map[CoverageCategory]string{CategoryProfessionalIndemnity: "Basic Cover"}},
	}
	rankings := Rank(quotes)
	require.Len(t, rankings, 2)
	for _, r := range rankings {
		assert.Equal(t, 0, r.CoverageScore)
	}
}

func TestRankTwoQuoteScenario(t *testing.T) {
	// A: premium 10000, PI £2M. B: premium 8000, PI £1M.
	// B gets full price (40 raw); A gets 0 price raw (max premium).
	// A coverage: PI ratio 1 -> 30 * 60/100 = 18 raw. B: ratio 0.5 -> 9 raw.
	// Overall: A = round(18+0) = 18, B = round(9+40) = 49. B ranks first.
	quotes := []QuoteInput{
		{QuoteID: "a", InsurerName: "A", Premium: 10000, Limits: map[CoverageCategory]string{CategoryProfessionalIndemnity: "£2M"}},
		{QuoteID: "b", InsurerName: "B", Premium: 8000, Limits: map[CoverageCategory]string{CategoryProfessionalIndemnity: "£1M"}},
	}
	rankings := Rank(quotes)
	require.Len(t, rankings, 2)

	assert.Equal(t, "b", rankings[0].QuoteID)
	assert.Equal(t, 49, rankings[0].OverallScore)
	assert.Equal(t, 100, rankings[0].PriceScore)

	assert.Equal(t, "a", rankings[1].QuoteID)
	assert.Equal(t, 18, rankings[1].OverallScore)
	assert.Equal(t, 30, rankings[1].CoverageScore) // 18 of 60 raw points
	assert.Equal(t, 0, rankings[1].PriceScore)
}

func TestRankPositionsContiguous(t *testing.T) {
	quotes := []QuoteInput{
		{QuoteID: "a", Premium: 9000, Limits: map[CoverageCategory]string{CategoryProfessionalIndemnity: "£2M", CategoryCyberData: "£1M"}},
		{QuoteID: "b", Premium: 7000, Limits: map[CoverageCategory]string{CategoryPublicLiability: "£5M"}},
		{QuoteID: "c", Premium: 8000, Limits: map[CoverageCategory]string{CategoryProfessionalIndemnity: "£1M"}},
		{QuoteID: "d", Premium: 12000, Limits: map[CoverageCategory]string{CategoryEmployersLiability: "£10M"}},
	}
	rankings := Rank(quotes)
	require.Len(t, rankings, 4)

	for i, r := range rankings {
		assert.Equal(t, i+1, r.RankPosition)
		if i > 0 {
			assert.GreaterOrEqual(t, rankings[i-1].OverallScore, r.OverallScore,
				"rank order must match descending overall score")
		}
	}
	assert.Equal(t, model.RecommendationBestOverall, rankings[0].Recommendation)
}

func TestRankTieBreakLowerPremiumFirst(t *testing.T) {
	// x and y land on the same overall score (18) with different premiums:
	// x has full PI coverage (18 raw) and the worst price (0 raw); y has
	// half the PI limit (9 raw) and a price ratio of 0.225 (9 raw). The
	// documented tiebreak ranks the cheaper quote first.
	quotes := []QuoteInput{
		{QuoteID: "x", Premium: 10000, Limits: map[CoverageCategory]string{CategoryProfessionalIndemnity: "£2M"}},
		{QuoteID: "y", Premium: 8875, Limits: map[CoverageCategory]string{CategoryProfessionalIndemnity: "£1M"}},
		{QuoteID: "z", Premium: 5000, Limits: map[CoverageCategory]string{}},
	}
	rankings := Rank(quotes)
	require.Len(t, rankings, 3)

	assert.Equal(t, "z", rankings[0].QuoteID) // full price marks, overall 40
	assert.Equal(t, rankings[1].OverallScore, rankings[2].OverallScore)
	assert.Equal(t, "y", rankings[1].QuoteID, "equal overall score must rank the cheaper quote first")
	assert.Equal(t, "x", rankings[2].QuoteID)
}

func TestRankTieBreakSubmissionOrderWhenPremiumsEqual(t *testing.T) {
	quotes := []QuoteInput{
		{QuoteID: "first", Premium: 5000, Limits: map[CoverageCategory]string{CategoryProfessionalIndemnity: "£1M"}},
		{QuoteID: "second", Premium: 5000, Limits: map[CoverageCategory]string{CategoryProfessionalIndemnity: "£1M"}},
	}
	rankings := Rank(quotes)
	require.Len(t, rankings, 2)
	assert.Equal(t, "first", rankings[0].QuoteID)
	assert.Equal(t, "second", rankings[1].QuoteID)
}

func TestRankOverallScoreClamped(t *testing.T) {
	// A lone quote with no cover still scores at least 1.
	quotes := []QuoteInput{
		{QuoteID: "only", Premium: 1000, Limits: map[CoverageCategory]string{}},
	}
	rankings := Rank(quotes)
	require.Len(t, rankings, 1)
	// Degenerate premium range gives full price raw (40); coverage 0.
	assert.Equal(t, 40, rankings[0].OverallScore)
	assert.GreaterOrEqual(t, rankings[0].OverallScore, 1)
	assert.LessOrEqual(t, rankings[0].OverallScore, 100)
}

func TestRankEmptyInput(t *testing.T) {
	assert.Nil(t, Rank(nil))
}
