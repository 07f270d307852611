package wording

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverdesk/compare-cli/internal/model"
)

func fullWording() model.PolicyWording {
	return model.PolicyWording{
		InsurerName:  "Hiscox",
		ProductName:  "Professional Indemnity Select",
		Jurisdiction: "England and Wales",
		Territory:    "Worldwide excluding USA/Canada",
		ClaimsBasis:  "claims-made",
		Limits:       map[string]any{"professional_indemnity": "£2M"},
		Deductibles:  map[string]any{"each_claim": "£1,000"},
		Exclusions:   []string{"War", "Terrorism"},
		Conditions:   []string{"Notification within 30 days"},
		NotableTerms: []string{"Retroactive date 2019-01-01"},
		Definitions:  []string{"Insured Person"},
		Citations:    []string{"[Source: hiscox-wording.pdf, 12]"},
	}
}

func TestCompletenessScoreFullyPopulated(t *testing.T) {
	assert.Equal(t, 100, CompletenessScore(fullWording()))
}

func TestCompletenessScoreEmpty(t *testing.T) {
	assert.Equal(t, 0, CompletenessScore(model.PolicyWording{}))
}

func TestCompletenessScoreBuckets(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*model.PolicyWording)
		want int
	}{
		{"missing territory", func(w *model.PolicyWording) { w.Territory = "" }, 95},
		{"missing deductibles", func(w *model.PolicyWording) { w.Deductibles = nil }, 90},
		{"missing exclusions", func(w *model.PolicyWording) { w.Exclusions = nil }, 90},
		{"missing citations", func(w *model.PolicyWording) { w.Citations = nil }, 90},
		{"basics only", func(w *model.PolicyWording) {
			*w = model.PolicyWording{
				InsurerName:  w.InsurerName,
				ProductName:  w.ProductName,
				Jurisdiction: w.Jurisdiction,
				Territory:    w.Territory,
			}
		}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := fullWording()
			tt.mut(&w)
			assert.Equal(t, tt.want, CompletenessScore(w))
		})
	}
}

func TestCommonExclusionsCaseInsensitive(t *testing.T) {
	wordings := []model.PolicyWording{
		{InsurerName: "A", Exclusions: []string{"War", "Terrorism"}},
		{InsurerName: "B", Exclusions: []string{"war", "TERRORISM", "Flood"}},
	}
	common := CommonExclusions(wordings)
	assert.Equal(t, []string{"War", "Terrorism"}, common)
}

func TestCommonExclusionsDeduplicates(t *testing.T) {
	wordings := []model.PolicyWording{
		{Exclusions: []string{"War", "war", "Nuclear"}},
		{Exclusions: []string{"WAR"}},
	}
	assert.Equal(t, []string{"War"}, CommonExclusions(wordings))
}

func TestCommonExclusionsEmptySet(t *testing.T) {
	assert.Nil(t, CommonExclusions(nil))
}

func TestUniqueExclusions(t *testing.T) {
	a := model.PolicyWording{InsurerName: "A", Exclusions: []string{"War", "Asbestos", "Cyber Warfare"}}
	b := model.PolicyWording{InsurerName: "B", Exclusions: []string{"war", "Flood"}}
	c := model.PolicyWording{InsurerName: "C", Exclusions: []string{"flood", "asbestos"}}
	set := []model.PolicyWording{a, b, c}

	assert.Equal(t, []string{"Cyber Warfare"}, UniqueExclusions(a, set))
	assert.Nil(t, UniqueExclusions(b, set))
	assert.Nil(t, UniqueExclusions(c, set))
}

func TestBestWording(t *testing.T) {
	sparse := model.PolicyWording{InsurerName: "Sparse"}
	full := fullWording()
	alsoFull := fullWording()
	alsoFull.InsurerName = "Second Full"

	best := BestWording([]model.PolicyWording{sparse, full, alsoFull})
	require.NotNil(t, best)
	// Ties break by first-seen order.
	assert.Equal(t, "Hiscox", best.InsurerName)

	assert.Nil(t, BestWording(nil))
}
