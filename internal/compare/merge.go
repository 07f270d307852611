package compare

import (
	"fmt"

	"github.com/coverdesk/compare-cli/internal/model"
)

// MergeCarriers groups extraction results by carrier so that a quote and a
// policy wording from the same insurer become one entry. Coverage limits
// and premiums come exclusively from the extracted payloads. Order follows
// first appearance of each carrier in the input.
func MergeCarriers(extractions []model.ExtractionResult) []model.InsurerEntry {
	var order []string
	byName := make(map[string]*model.InsurerEntry)

	for _, ex := range extractions {
		name := carrierName(ex)
		entry, ok := byName[name]
		if !ok {
			entry = &model.InsurerEntry{Name: name}
			byName[name] = entry
			order = append(order, name)
		}
		entry.SourceDocuments = append(entry.SourceDocuments, ex.Filename)

		switch ex.Type {
		case model.DocumentTypePolicyWording:
			entry.WordingPayload = ex.Payload
		default:
			entry.QuotePayload = ex.Payload
			if product, ok := ex.Payload["product_name"].(string); ok && product != "" {
				entry.Products = append(entry.Products, product)
			}
			if premium, ok := asFloat(ex.Payload["premium_amount"]); ok {
				entry.PremiumAmount = premium
				currency := "GBP"
				if c, ok := ex.Payload["premium_currency"].(string); ok && c != "" {
					currency = c
				}
				entry.PremiumDisplay = fmt.Sprintf("%.2f %s", premium, currency)
			}
			if limits, ok := ex.Payload["coverage_limits"].(map[string]any); ok {
				entry.CoverageLimits = limits
			}
		}
	}

	entries := make([]model.InsurerEntry, 0, len(order))
	for _, name := range order {
		entries = append(entries, *byName[name])
	}
	return entries
}

// carrierName prefers the name the model extracted over the broker label.
func carrierName(ex model.ExtractionResult) string {
	if name, ok := ex.Payload["insurer_name"].(string); ok && name != "" {
		return name
	}
	if ex.CarrierName != "" {
		return ex.CarrierName
	}
	return ex.Filename
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
