package pipeline

import (
	"fmt"
	"sort"

	"github.com/coverdesk/compare-cli/internal/model"
	"github.com/coverdesk/compare-cli/internal/wording"
)

// Wordings builds the diff engine's view over every PolicyWording
// extraction in the set, completeness score included.
func Wordings(results []model.ExtractionResult) []model.PolicyWording {
	var wordings []model.PolicyWording
	for _, r := range results {
		if r.Type != model.DocumentTypePolicyWording {
			continue
		}
		wordings = append(wordings, wordingFromPayload(r))
	}
	return wordings
}

func wordingFromPayload(r model.ExtractionResult) model.PolicyWording {
	p := r.Payload
	w := model.PolicyWording{
		InsurerName:  insurerName(r),
		ProductName:  stringField(p, "product_name"),
		Jurisdiction: stringField(p, "jurisdiction"),
		Territory:    stringField(p, "territory"),
		ClaimsBasis:  stringField(p, "claims_basis"),
		Exclusions:   stringList(p["exclusions"]),
		Conditions:   stringList(p["conditions"]),
		NotableTerms: stringList(p["notable_terms"]),
	}
	if limits, ok := p["limits"].(map[string]any); ok {
		w.Limits = limits
	}
	if deductibles, ok := p["deductibles"].(map[string]any); ok {
		w.Deductibles = deductibles
	}
	if defs, ok := p["definitions"].(map[string]any); ok {
		for term := range defs {
			w.Definitions = append(w.Definitions, term)
		}
		sort.Strings(w.Definitions)
	}
	if citations, ok := p["citations"].([]any); ok {
		for _, c := range citations {
			obj, ok := c.(map[string]any)
			if !ok {
				continue
			}
			field := stringField(obj, "field")
			if field == "" {
				continue
			}
			if page, ok := floatField(obj, "page"); ok {
				w.Citations = append(w.Citations, fmt.Sprintf("%s, p.%d", field, int(page)))
			} else {
				w.Citations = append(w.Citations, field)
			}
		}
	}
	w.CompletenessScore = wording.CompletenessScore(w)
	return w
}

func stringField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

func stringList(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
