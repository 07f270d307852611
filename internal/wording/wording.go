// Package wording compares extracted policy wordings: a completeness
// heuristic over the populated fields, and case-insensitive set operations
// over exclusion lists.
package wording

import (
	"strings"

	"github.com/coverdesk/compare-cli/internal/model"
)

// Completeness bucket weights. Additive, capped at 100.
const (
	basicsPointsEach    = 5  // carrier, product, jurisdiction, territory (max 20)
	structurePointsEach = 10 // claims basis, limits, deductibles (max 30)
	termsPointsEach     = 10 // exclusions, conditions, notable terms (max 30)
	extrasPointsEach    = 10 // definitions, citations (max 20)
)

// CompletenessScore measures how many structured fields a wording
// extraction populated, 0-100.
func CompletenessScore(w model.PolicyWording) int {
	score := 0

	// Policy basics.
	if w.InsurerName != "" {
		score += basicsPointsEach
	}
	if w.ProductName != "" {
		score += basicsPointsEach
	}
	if w.Jurisdiction != "" {
		score += basicsPointsEach
	}
	if w.Territory != "" {
		score += basicsPointsEach
	}

	// Policy structure.
	if w.ClaimsBasis != "" {
		score += structurePointsEach
	}
	if len(w.Limits) > 0 {
		score += structurePointsEach
	}
	if len(w.Deductibles) > 0 {
		score += structurePointsEach
	}

	// Terms.
	if len(w.Exclusions) > 0 {
		score += termsPointsEach
	}
	if len(w.Conditions) > 0 {
		score += termsPointsEach
	}
	if len(w.NotableTerms) > 0 {
		score += termsPointsEach
	}

	// Extras.
	if len(w.Definitions) > 0 {
		score += extrasPointsEach
	}
	if len(w.Citations) > 0 {
		score += extrasPointsEach
	}

	if score > 100 {
		score = 100
	}
	return score
}

// CommonExclusions returns exclusions present in every wording,
// case-insensitively, preserving the original casing from the first
// wording's list. Duplicates within a list are collapsed.
func CommonExclusions(wordings []model.PolicyWording) []string {
	if len(wordings) == 0 {
		return nil
	}

	var common []string
	seen := make(map[string]bool)
	for _, excl := range wordings[0].Exclusions {
		key := strings.ToLower(strings.TrimSpace(excl))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		inAll := true
		for _, other := range wordings[1:] {
			if !containsFold(other.Exclusions, key) {
				inAll = false
				break
			}
		}
		if inAll {
			common = append(common, excl)
		}
	}
	return common
}

// UniqueExclusions returns this wording's exclusions absent from every
// other wording in the set, case-insensitively.
func UniqueExclusions(w model.PolicyWording, wordings []model.PolicyWording) []string {
	others := make(map[string]bool)
	for _, other := range wordings {
		if other.InsurerName == w.InsurerName {
			continue
		}
		for _, excl := range other.Exclusions {
			others[strings.ToLower(strings.TrimSpace(excl))] = true
		}
	}

	var unique []string
	seen := make(map[string]bool)
	for _, excl := range w.Exclusions {
		key := strings.ToLower(strings.TrimSpace(excl))
		if key == "" || seen[key] || others[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, excl)
	}
	return unique
}

// BestWording returns the wording with the highest completeness score,
// ties broken by first-seen order. Returns nil for an empty set.
func BestWording(wordings []model.PolicyWording) *model.PolicyWording {
	if len(wordings) == 0 {
		return nil
	}
	best := 0
	bestScore := CompletenessScore(wordings[0])
	for i := 1; i < len(wordings); i++ {
		if s := CompletenessScore(wordings[i]); s > bestScore {
			best = i
			bestScore = s
		}
	}
	return &wordings[best]
}

func containsFold(list []string, lowered string) bool {
	for _, item := range list {
		if strings.ToLower(strings.TrimSpace(item)) == lowered {
			return true
		}
	}
	return false
}
