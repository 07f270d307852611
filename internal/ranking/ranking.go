// Package ranking computes deterministic quote scores and a total order.
// No AI involvement: inputs are the coverage limits and premiums already
// extracted per quote, output is a 1-100 overall score and rank positions.
// Coverage adequacy carries 60% of the overall score, price
// competitiveness 40%.
package ranking

import (
	"math"
	"sort"

	"github.com/coverdesk/compare-cli/internal/model"
)

// CoverageCategory is a scored coverage class.
type CoverageCategory string

const (
	CategoryProfessionalIndemnity CoverageCategory = "professional_indemnity"
	CategoryPublicLiability       CoverageCategory = "public_liability"
	CategoryEmployersLiability    CoverageCategory = "employers_liability"
	CategoryCyberData             CoverageCategory = "cyber_data"
	CategoryProductLiability      CoverageCategory = "product_liability"
)

// categoryWeights sum to 100. Coverage contributes 60 of the 100 overall
// points, so each category's raw contribution is weight * 60/100.
var categoryWeights = map[CoverageCategory]float64{
	CategoryProfessionalIndemnity: 30,
	CategoryPublicLiability:       25,
	CategoryEmployersLiability:    20,
	CategoryCyberData:             15,
	CategoryProductLiability:      10,
}

const (
	coverageShare = 60.0
	priceShare    = 40.0
)

// QuoteInput is the scoring view of one extracted quote.
type QuoteInput struct {
	QuoteID     string
	InsurerName string
	Premium     float64
	// Limits maps category to the extracted display string ("£2M",
	// "Not Covered"). Missing categories score 0.
	Limits map[CoverageCategory]string
}

// Rank scores every quote and returns rankings sorted by descending
// overall score with rank positions 1..N. Ties order by lower premium,
// then by submission order.
func Rank(quotes []QuoteInput) []model.QuoteRanking {
	if len(quotes) == 0 {
		return nil
	}

	// Per-category max limit across the request; ratio denominator.
	maxLimits := make(map[CoverageCategory]float64, len(categoryWeights))
	parsed := make([]map[CoverageCategory]float64, len(quotes))
	for i, q := range quotes {
		parsed[i] = make(map[CoverageCategory]float64, len(q.Limits))
		for cat := range categoryWeights {
			v := ParseLimit(q.Limits[cat])
			parsed[i][cat] = v
			if v > maxLimits[cat] {
				maxLimits[cat] = v
			}
		}
	}

	minPremium, maxPremium := premiumRange(quotes)

	type scored struct {
		index       int
		coverageRaw float64
		priceRaw    float64
		overall     int
	}
	results := make([]scored, len(quotes))

	for i, q := range quotes {
		coverageRaw := 0.0
		for cat, weight := range categoryWeights {
			maxLimit := maxLimits[cat]
			if maxLimit <= 0 {
				continue
			}
			ratio := math.Min(parsed[i][cat]/maxLimit, 1)
			// weight is on the 100-point category scale; scale to the
			// 60-point coverage share.
			coverageRaw += ratio * weight * coverageShare / 100
		}

		var priceRatio float64
		if maxPremium == minPremium {
			// Degenerate range: no quote penalized.
			priceRatio = 1
		} else {
			priceRatio = 1 - (q.Premium-minPremium)/(maxPremium-minPremium)
		}
		priceRaw := priceRatio * priceShare

		overall := int(math.Round(coverageRaw + priceRaw))
		if overall < 1 {
			overall = 1
		}
		if overall > 100 {
			overall = 100
		}

		results[i] = scored{index: i, coverageRaw: coverageRaw, priceRaw: priceRaw, overall: overall}
	}

	// Descending by overall; ties by lower premium, then submission order.
	sort.SliceStable(results, func(a, b int) bool {
		ra, rb := results[a], results[b]
		if ra.overall != rb.overall {
			return ra.overall > rb.overall
		}
		return quotes[ra.index].Premium < quotes[rb.index].Premium
	})

	rankings := make([]model.QuoteRanking, len(results))
	for pos, r := range results {
		q := quotes[r.index]
		rankings[pos] = model.QuoteRanking{
			QuoteID:        q.QuoteID,
			InsurerName:    q.InsurerName,
			PremiumAmount:  q.Premium,
			CoverageScore:  int(math.Round(r.coverageRaw * 100 / coverageShare)),
			PriceScore:     int(math.Round(r.priceRaw * 100 / priceShare)),
			OverallScore:   r.overall,
			RankPosition:   pos + 1,
			Recommendation: recommend(pos, r.priceRaw, r.coverageRaw),
			Strengths:      strengths(parsed[r.index], maxLimits, r.priceRaw),
			Concerns:       concerns(parsed[r.index], maxLimits, r.priceRaw),
		}
	}
	return rankings
}

func premiumRange(quotes []QuoteInput) (minP, maxP float64) {
	minP = quotes[0].Premium
	maxP = quotes[0].Premium
	for _, q := range quotes[1:] {
		if q.Premium < minP {
			minP = q.Premium
		}
		if q.Premium > maxP {
			maxP = q.Premium
		}
	}
	return minP, maxP
}

func recommend(pos int, priceRaw, coverageRaw float64) model.RecommendationCategory {
	switch {
	case pos == 0:
		return model.RecommendationBestOverall
	case priceRaw >= priceShare*0.95:
		return model.RecommendationBestValue
	case coverageRaw >= coverageShare*0.9:
		return model.RecommendationBestCoverage
	default:
		return model.RecommendationNotRecommended
	}
}

// strengths lists categories where the quote matches the best limit in the
// set, plus price leadership.
func strengths(limits map[CoverageCategory]float64, maxLimits map[CoverageCategory]float64, priceRaw float64) []string {
	var out []string
	for cat := range categoryWeights {
		if maxLimits[cat] > 0 && limits[cat] >= maxLimits[cat] {
			out = append(out, "highest "+categoryLabel(cat)+" limit ("+FormatLimit(limits[cat])+")")
		}
	}
	if priceRaw >= priceShare*0.95 {
		out = append(out, "most competitive premium")
	}
	sort.Strings(out)
	return out
}

// concerns lists uncovered categories and weak price positioning.
func concerns(limits map[CoverageCategory]float64, maxLimits map[CoverageCategory]float64, priceRaw float64) []string {
	var out []string
	for cat := range categoryWeights {
		if maxLimits[cat] > 0 && limits[cat] == 0 {
			out = append(out, "no "+categoryLabel(cat)+" cover")
		} else if maxLimits[cat] > 0 && limits[cat] < maxLimits[cat]/2 {
			out = append(out, categoryLabel(cat)+" limit well below the best in the set")
		}
	}
	if priceRaw < priceShare*0.25 {
		out = append(out, "premium at the top of the range")
	}
	sort.Strings(out)
	return out
}

func categoryLabel(cat CoverageCategory) string {
	switch cat {
	case CategoryProfessionalIndemnity:
		return "professional indemnity"
	case CategoryPublicLiability:
		return "public liability"
	case CategoryEmployersLiability:
		return "employers liability"
	case CategoryCyberData:
		return "cyber & data"
	case CategoryProductLiability:
		return "product liability"
	default:
		return string(cat)
	}
}

// WeightsTotal returns the sum of coverage category weights. Exposed for
// invariant checks.
func WeightsTotal() float64 {
	total := 0.0
	for _, w := range categoryWeights {
		total += w
	}
	return total
}
