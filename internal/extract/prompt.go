package extract

import (
	"fmt"

	"github.com/coverdesk/compare-cli/internal/model"
)

// systemPrompt is shared by both document types.
const systemPrompt = `You are an expert commercial insurance analyst. You extract structured data from insurance documents (quotes and policy wordings) for brokerage comparison.

Rules:
- Answer ONLY based on information present in the attached document
- Return valid JSON for every response, with no commentary before or after
- Use null for any field not found in the document
- For monetary amounts, use raw numbers without formatting (e.g., 2000000 not "£2,000,000")
- Keep limit strings exactly as written when they are not numeric (e.g., "Not Covered", "Basic Cover")
- For lists, return JSON arrays
- Every extracted figure must be traceable to the document`

// quotePrompt asks for the Quote schema. Required fields drive downstream
// scoring, so the instruction lists them explicitly.
const quotePrompt = `Extract the quotation data from the attached insurance quote document.

Document: %s
Carrier (as labeled by the broker): %s

Respond with ONLY valid JSON in this format:
{
  "insurer_name": "<underwriting company name>",
  "product_name": "<product or scheme name>",
  "premium_amount": <annual premium as a raw number>,
  "premium_currency": "<ISO currency code, e.g. GBP>",
  "coverage_limits": {
    "professional_indemnity": "<limit string, e.g. £2M, or Not Covered>",
    "public_liability": "<limit string>",
    "employers_liability": "<limit string>",
    "cyber": "<limit string>",
    "product_liability": "<limit string>"
  },
  "deductibles": { "<coverage>": "<excess string>" },
  "policy_period": "<inception and expiry as written>",
  "key_conditions": ["<condition>"],
  "subjectivities": ["<subjectivity>"]
}`

// wordingPrompt asks for the PolicyWording schema.
const wordingPrompt = `Extract the policy wording structure from the attached insurance policy wording document.

Document: %s
Carrier (as labeled by the broker): %s

Respond with ONLY valid JSON in this format:
{
  "insurer_name": "<underwriting company name>",
  "product_name": "<product name>",
  "jurisdiction": "<governing law>",
  "territory": "<territorial limits>",
  "claims_basis": "<claims-made or occurrence>",
  "limits": { "<coverage>": "<limit string>" },
  "deductibles": { "<coverage>": "<excess string>" },
  "exclusions": ["<exclusion>"],
  "conditions": ["<condition>"],
  "notable_terms": ["<term worth flagging to the client>"],
  "definitions": { "<defined term>": "<definition summary>" },
  "citations": [{ "field": "<field name>", "page": <page number> }]
}`

func buildPrompt(doc model.DocumentReference) string {
	carrier := doc.CarrierName
	if carrier == "" {
		carrier = "not provided"
	}
	if doc.Type == model.DocumentTypePolicyWording {
		return fmt.Sprintf(wordingPrompt, doc.Filename, carrier)
	}
	return fmt.Sprintf(quotePrompt, doc.Filename, carrier)
}
