// Package compare builds the aggregate comparison from a request's
// successful extractions: one AI call over all carriers, validated into a
// ComparisonReport. The engine is stateless and holistic; it always
// recomputes the full report, never a delta.
package compare

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/coverdesk/compare-cli/internal/decode"
	"github.com/coverdesk/compare-cli/internal/model"
	"github.com/coverdesk/compare-cli/internal/resilience"
	"github.com/coverdesk/compare-cli/pkg/anthropic"
)

// Options configures the engine.
type Options struct {
	// Model is the comparison model ID.
	Model string

	// MaxTokens bounds the aggregate response. Default 8192.
	MaxTokens int64

	// Timeout bounds each AI attempt. Default 120s.
	Timeout time.Duration

	// Retry policy for transport failures.
	Retry resilience.Policy
}

// Engine produces comparison reports.
type Engine struct {
	client anthropic.Client
	opts   Options
}

// New creates an Engine.
func New(client anthropic.Client, opts Options) *Engine {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 8192
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &Engine{client: client, opts: opts}
}

// Compare runs the aggregate call over every successful extraction and
// validates the response per the request's mode. Unlike extraction, an
// aggregate-stage failure aborts the whole request: there is no partial
// comparison output.
func (e *Engine) Compare(ctx context.Context, req model.ComparisonRequest, extractions []model.ExtractionResult, failed []model.FailedDocument) (*model.ComparisonReport, error) {
	insurers := MergeCarriers(extractions)
	if len(insurers) == 0 {
		return nil, eris.Wrap(model.ErrSchemaValidation, "compare: no carrier data to compare")
	}

	resp, err := resilience.Retry(ctx, e.opts.Retry, "compare "+req.ID,
		func(ctx context.Context) (*anthropic.MessageResponse, error) {
			callCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
			defer cancel()
			resp, err := e.client.CreateMessage(callCtx, anthropic.MessageRequest{
				Model:     e.opts.Model,
				MaxTokens: e.opts.MaxTokens,
				System:    systemPrompt,
				Prompt:    buildPrompt(req, insurers),
			})
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
					return nil, resilience.MarkTransient(eris.Wrap(model.ErrAITimeout, "compare"), 0)
				}
				return nil, eris.Wrap(errors.Join(model.ErrAIInvocation, err), "compare")
			}
			return resp, nil
		})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogCost(e.opts.Model, "comparison")

	report := &model.ComparisonReport{
		RequestID:       req.ID,
		Mode:            req.Mode,
		Insurers:        insurers,
		FailedDocuments: failed,
		Usage: model.TokenUsage{
			InputTokens:         int(resp.Usage.InputTokens),
			OutputTokens:        int(resp.Usage.OutputTokens),
			CacheCreationTokens: int(resp.Usage.CacheCreationInputTokens),
			CacheReadTokens:     int(resp.Usage.CacheReadInputTokens),
		},
		GeneratedAt: time.Now().UTC(),
	}
	if report.FailedDocuments == nil {
		report.FailedDocuments = []model.FailedDocument{}
	}

	switch req.Mode {
	case model.ModeNarrative:
		if strings.TrimSpace(resp.Text) == "" {
			return nil, eris.Wrap(model.ErrSchemaValidation, "compare: empty narrative")
		}
		report.Narrative = resp.Text
		report.ProductComparisons = []map[string]any{}
		report.ComparisonSummary = []map[string]any{}
		report.OverallFindings = []map[string]any{}

	case model.ModeComparisonReport:
		if err := validateReportSections(resp.Text); err != nil {
			return nil, err
		}
		report.Narrative = resp.Text
		report.ProductComparisons = []map[string]any{}
		report.ComparisonSummary = []map[string]any{}
		report.OverallFindings = []map[string]any{}

	default:
		payload, err := decode.Decode(resp.Text)
		if err != nil {
			return nil, eris.Wrap(err, "compare: aggregate response")
		}
		if err := fillStructured(report, payload); err != nil {
			return nil, err
		}
	}

	zap.L().Info("comparison generated",
		zap.String("request_id", req.ID),
		zap.String("mode", string(req.Mode)),
		zap.Int("insurers", len(report.Insurers)),
		zap.Int("failed_documents", len(report.FailedDocuments)),
	)
	return report, nil
}

// fillStructured validates the structured-mode payload. Missing
// array-valued keys coerce to empty arrays; a missing or empty insurers
// key fails the comparison because there is nothing to degrade to. The
// per-insurer summaries land on the matching merged entries; a summary
// for a carrier the merge never saw is dropped rather than invented an
// entry for.
func fillStructured(report *model.ComparisonReport, payload map[string]any) error {
	insurers, ok := payload["insurers"].([]any)
	if !ok || len(insurers) == 0 {
		return eris.Wrap(model.ErrSchemaValidation, "compare: aggregate response has no insurers")
	}

	for _, item := range insurers {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := obj["name"].(string)
		summary, _ := obj["summary"].(string)
		if name == "" || summary == "" {
			continue
		}
		for i := range report.Insurers {
			if strings.EqualFold(report.Insurers[i].Name, name) {
				report.Insurers[i].Summary = summary
				break
			}
		}
	}

	report.ProductComparisons = objectArray(payload, "product_comparisons")
	report.ComparisonSummary = objectArray(payload, "comparison_summary")
	report.OverallFindings = objectArray(payload, "overall_findings")
	return nil
}

// objectArray extracts a []map[string]any under key, coercing anything
// missing or malformed to an empty array. Partial data still renders.
func objectArray(payload map[string]any, key string) []map[string]any {
	raw, ok := payload[key].([]any)
	if !ok {
		return []map[string]any{}
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func validateReportSections(text string) error {
	for _, section := range reportSections {
		if !strings.Contains(text, "## "+section) {
			return eris.Wrapf(model.ErrSchemaValidation, "compare: report missing section %q", section)
		}
	}
	return nil
}
