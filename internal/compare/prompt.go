package compare

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coverdesk/compare-cli/internal/model"
)

const systemPrompt = `You are an expert commercial insurance broker producing a side-by-side comparison of carrier quotes and policy wordings for a client. You work only from the extracted document data supplied in the message; never invent figures.

Rules:
- Every figure you cite must carry a citation in the exact form [Source: <filename>, <page>]
- Compare carriers on premium, limits, deductibles, exclusions, and conditions
- Flag coverage gaps against the client's selected coverage sections
- Where two carriers differ materially on a wording term, say so explicitly
- Be precise and factual; this comparison goes in front of the client`

const structuredInstruction = `Respond with ONLY valid JSON in this format:
{
  "insurers": [{ "name": "<carrier>", "summary": "<one-paragraph position>" }],
  "product_comparisons": [{ "coverage_section": "<section>", "comparison": "<per-carrier comparison with citations>" }],
  "comparison_summary": [{ "metric": "<metric>", "values": { "<carrier>": "<value [Source: file, page]>" } }],
  "overall_findings": [{ "finding": "<finding>", "severity": "<info|advisory|warning>" }],
  "failed_documents": []
}`

// reportSections is the fixed section order for comparison_report mode.
var reportSections = []string{
	"Financial Comparison",
	"Policy Structure Comparison",
	"Policy Wording Analysis",
	"Comparison Insights",
	"Executive Short Summary",
}

func reportInstruction() string {
	var sb strings.Builder
	sb.WriteString("Respond with a Markdown report containing exactly these sections, in this order, each introduced by a level-2 header:\n")
	for _, s := range reportSections {
		fmt.Fprintf(&sb, "## %s\n", s)
	}
	sb.WriteString("\nEvery cited figure must carry its [Source: <filename>, <page>] citation inline.")
	return sb.String()
}

const narrativeInstruction = `Respond with a plain-prose narrative comparison a broker could read to the client over the phone. Cite figures inline as [Source: <filename>, <page>].`

// buildPrompt assembles the single aggregate prompt from client metadata,
// the selected sections, and every carrier's extracted payloads.
func buildPrompt(req model.ComparisonRequest, insurers []model.InsurerEntry) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Client: %s\nIndustry: %s\nJurisdiction: %s\n", req.ClientName, req.Industry, req.Jurisdiction)

	sb.WriteString("Selected coverage sections: ")
	sections := make([]string, len(req.Sections))
	for i, s := range req.Sections {
		sections[i] = string(s)
	}
	sb.WriteString(strings.Join(sections, ", "))
	sb.WriteString("\n\n--- Extracted carrier data ---\n")

	for _, ins := range insurers {
		fmt.Fprintf(&sb, "\nCarrier: %s\n", ins.Name)
		fmt.Fprintf(&sb, "Source documents: %s\n", strings.Join(ins.SourceDocuments, ", "))
		if ins.QuotePayload != nil {
			quoteJSON, _ := json.Marshal(ins.QuotePayload)
			fmt.Fprintf(&sb, "Quote data: %s\n", quoteJSON)
		}
		if ins.WordingPayload != nil {
			wordingJSON, _ := json.Marshal(ins.WordingPayload)
			fmt.Fprintf(&sb, "Policy wording data: %s\n", wordingJSON)
		}
	}

	sb.WriteString("\n")
	switch req.Mode {
	case model.ModeNarrative:
		sb.WriteString(narrativeInstruction)
	case model.ModeComparisonReport:
		sb.WriteString(reportInstruction())
	default:
		sb.WriteString(structuredInstruction)
	}
	return sb.String()
}
