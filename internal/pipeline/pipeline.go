// Package pipeline wires fetch, extraction, comparison, ranking, and
// persistence into the end-to-end document-to-decision flow. All state is
// threaded explicitly; progress reaches the caller through a ProgressFunc
// and the core never renders.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/coverdesk/compare-cli/internal/extract"
	"github.com/coverdesk/compare-cli/internal/fetcher"
	"github.com/coverdesk/compare-cli/internal/model"
	"github.com/coverdesk/compare-cli/internal/ranking"
	"github.com/coverdesk/compare-cli/internal/store"
)

// DocumentFetcher resolves document references to bytes.
type DocumentFetcher interface {
	ResolveAll(ctx context.Context, docs []model.DocumentReference) []fetcher.BatchResult
}

// Extractor runs per-document extractions.
type Extractor interface {
	ExtractOne(ctx context.Context, requestID string, in extract.Input) (*model.ExtractionResult, error)
	ExtractAll(ctx context.Context, requestID string, inputs []extract.Input, progress model.ProgressFunc) ([]model.ExtractionResult, []model.FailedDocument, error)
}

// Comparer produces the aggregate comparison.
type Comparer interface {
	Compare(ctx context.Context, req model.ComparisonRequest, extractions []model.ExtractionResult, failed []model.FailedDocument) (*model.ComparisonReport, error)
}

// Pipeline orchestrates one comparison request end to end.
type Pipeline struct {
	fetcher   DocumentFetcher
	extractor Extractor
	engine    Comparer
	store     store.Store // nil disables persistence and the replace flow
}

// New creates a Pipeline with all dependencies.
func New(f DocumentFetcher, ex Extractor, engine Comparer, st store.Store) *Pipeline {
	return &Pipeline{
		fetcher:   f,
		extractor: ex,
		engine:    engine,
		store:     st,
	}
}

// Run executes the full comparison for one request: fetch every document
// concurrently, extract each with failure isolation, compare the
// successes in a single aggregate call, rank the quotes, and persist the
// finalized report.
func (p *Pipeline) Run(ctx context.Context, req model.ComparisonRequest, progress model.ProgressFunc) (*model.ComparisonReport, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	log := zap.L().With(zap.String("request_id", req.ID))
	log.Info("pipeline: starting comparison",
		zap.String("client", req.ClientName),
		zap.Int("documents", len(req.Documents)),
		zap.String("mode", string(req.Mode)),
	)

	progress.Emit("fetch", fmt.Sprintf("fetching %d documents", len(req.Documents)), model.ProgressInfo)
	batch := p.fetcher.ResolveAll(ctx, req.Documents)
	if ctx.Err() != nil {
		return nil, eris.Wrap(ctx.Err(), "pipeline: canceled during fetch")
	}

	var inputs []extract.Input
	var failed []model.FailedDocument
	for _, b := range batch {
		if b.Err != nil {
			progress.Emit("fetch", b.Document.Filename+": "+model.UserMessage(b.Err), model.ProgressWarn)
			failed = append(failed, model.FailedDocument{
				DocumentID: b.Document.ID,
				Filename:   b.Document.Filename,
				Type:       b.Document.Type,
				Carrier:    b.Document.CarrierName,
				Reason:     model.UserMessage(b.Err),
			})
			continue
		}
		inputs = append(inputs, extract.Input{Document: b.Document, Data: b.Data})
	}
	if len(inputs) == 0 {
		return nil, eris.Wrap(model.ErrAllDocumentsFailed, "pipeline: every document failed to fetch")
	}

	progress.Emit("extract", fmt.Sprintf("extracting %d documents", len(inputs)), model.ProgressInfo)
	results, extractFailed, err := p.extractor.ExtractAll(ctx, req.ID, inputs, progress)
	failed = append(failed, extractFailed...)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, eris.Wrap(ctx.Err(), "pipeline: canceled during extraction")
	}

	return p.finish(ctx, req, results, failed, progress)
}

// finish runs the aggregate comparison over a set of extractions, attaches
// rankings and usage, and persists the report. Shared by Run and
// ReplaceDocument because the engine is holistic either way.
func (p *Pipeline) finish(ctx context.Context, req model.ComparisonRequest, results []model.ExtractionResult, failed []model.FailedDocument, progress model.ProgressFunc) (*model.ComparisonReport, error) {
	progress.Emit("compare", fmt.Sprintf("comparing %d carriers' data", len(results)), model.ProgressInfo)
	report, err := p.engine.Compare(ctx, req, results, failed)
	if err != nil {
		return nil, err
	}

	// Cached extractions cost nothing this run; count fresh ones only.
	for _, r := range results {
		if !r.Cached {
			report.Usage.Add(r.Usage)
		}
	}

	if quotes := QuoteInputs(results); len(quotes) > 0 {
		report.Rankings = ranking.Rank(quotes)
	}

	p.persist(ctx, report)
	progress.Emit("done", "comparison complete", model.ProgressInfo)
	return report, nil
}

// persist is best-effort; a storage failure never fails a finished
// comparison, it only disables later resume.
func (p *Pipeline) persist(ctx context.Context, report *model.ComparisonReport) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveReport(ctx, report); err != nil {
		zap.L().Warn("pipeline: report persistence failed",
			zap.String("request_id", report.RequestID),
			zap.Error(err),
		)
	}
}

func validate(req model.ComparisonRequest) error {
	if len(req.Sections) == 0 {
		return eris.Wrap(model.ErrSectionSelectionEmpty, "pipeline")
	}
	if len(req.Documents) == 0 {
		return eris.New("pipeline: request has no documents")
	}
	return nil
}

// QuoteInputs maps quote extraction payloads into scoring inputs. Coverage
// limits come exclusively from extracted payloads; a document without a
// parseable premium is not rankable.
func QuoteInputs(results []model.ExtractionResult) []ranking.QuoteInput {
	var quotes []ranking.QuoteInput
	for _, r := range results {
		if r.Type != model.DocumentTypeQuote {
			continue
		}
		premium, ok := floatField(r.Payload, "premium_amount")
		if !ok {
			continue
		}
		q := ranking.QuoteInput{
			QuoteID:     r.DocumentID,
			InsurerName: insurerName(r),
			Premium:     premium,
			Limits:      make(map[ranking.CoverageCategory]string),
		}
		if limits, ok := r.Payload["coverage_limits"].(map[string]any); ok {
			for key, v := range limits {
				cat, ok := categoryFor(key)
				if !ok {
					continue
				}
				if s, ok := v.(string); ok {
					q.Limits[cat] = s
				}
			}
		}
		quotes = append(quotes, q)
	}
	return quotes
}

func categoryFor(key string) (ranking.CoverageCategory, bool) {
	switch key {
	case "professional_indemnity":
		return ranking.CategoryProfessionalIndemnity, true
	case "public_liability", "public_products_liability":
		return ranking.CategoryPublicLiability, true
	case "employers_liability":
		return ranking.CategoryEmployersLiability, true
	case "cyber", "cyber_data":
		return ranking.CategoryCyberData, true
	case "product_liability":
		return ranking.CategoryProductLiability, true
	}
	return "", false
}

func insurerName(r model.ExtractionResult) string {
	if name, ok := r.Payload["insurer_name"].(string); ok && name != "" {
		return name
	}
	if r.CarrierName != "" {
		return r.CarrierName
	}
	return r.Filename
}

func floatField(payload map[string]any, key string) (float64, bool) {
	switch n := payload[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
