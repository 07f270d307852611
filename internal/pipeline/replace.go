package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/coverdesk/compare-cli/internal/extract"
	"github.com/coverdesk/compare-cli/internal/model"
)

// ReplaceDocument resolves one failed entry of an earlier request:
// extract the replacement exactly as in a fresh run, merge it with the
// request's prior successful extractions from the store, and re-run the
// comparison over the full merged set. The engine is non-incremental, so
// unaffected carriers' displayed data may still change.
func (p *Pipeline) ReplaceDocument(ctx context.Context, req model.ComparisonRequest, failedDocumentID string, replacement model.DocumentReference, progress model.ProgressFunc) (*model.ComparisonReport, error) {
	if p.store == nil {
		return nil, eris.New("pipeline: replace requires a configured store")
	}
	if req.ID == "" {
		return nil, eris.New("pipeline: replace requires the original request id")
	}
	if len(req.Sections) == 0 {
		return nil, eris.Wrap(model.ErrSectionSelectionEmpty, "pipeline")
	}

	progress.Emit("fetch", "fetching replacement "+replacement.Filename, model.ProgressInfo)
	batch := p.fetcher.ResolveAll(ctx, []model.DocumentReference{replacement})
	if batch[0].Err != nil {
		return nil, batch[0].Err
	}

	progress.Emit("extract", "extracting "+replacement.Filename, model.ProgressInfo)
	res, err := p.extractor.ExtractOne(ctx, req.ID, extract.Input{Document: replacement, Data: batch[0].Data})
	if err != nil {
		return nil, err
	}

	prior, err := p.store.ListExtractions(ctx, req.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load prior extractions for %s", req.ID)
	}

	merged := make([]model.ExtractionResult, 0, len(prior)+1)
	for _, pr := range prior {
		if pr.DocumentID == failedDocumentID || pr.Fingerprint == res.Fingerprint {
			continue
		}
		merged = append(merged, pr)
	}
	merged = append(merged, *res)

	// Carry forward the previous failure list minus the entry just resolved.
	var failed []model.FailedDocument
	prev, err := p.store.GetReport(ctx, req.ID)
	if err != nil {
		zap.L().Warn("pipeline: prior report unavailable, failure list starts empty",
			zap.String("request_id", req.ID),
			zap.Error(err),
		)
	} else if prev != nil {
		for _, f := range prev.FailedDocuments {
			if f.DocumentID == failedDocumentID {
				continue
			}
			failed = append(failed, f)
		}
	}

	return p.finish(ctx, req, merged, failed, progress)
}
