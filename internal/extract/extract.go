// Package extract turns fetched document bytes into structured
// ExtractionResults: one AI call per document, fingerprint-cached,
// single-flighted, with per-document failure isolation.
package extract

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/coverdesk/compare-cli/internal/decode"
	"github.com/coverdesk/compare-cli/internal/model"
	"github.com/coverdesk/compare-cli/internal/resilience"
	"github.com/coverdesk/compare-cli/internal/store"
	"github.com/coverdesk/compare-cli/pkg/anthropic"
)

// Options configures the orchestrator.
type Options struct {
	// Model is the extraction model ID.
	Model string

	// MaxTokens bounds each extraction response. Default 4096.
	MaxTokens int64

	// Timeout bounds each AI attempt. Default 90s.
	Timeout time.Duration

	// Retry policy for transport failures. Decode and schema failures are
	// never retried regardless of policy.
	Retry resilience.Policy
}

// Orchestrator runs per-document extractions.
type Orchestrator struct {
	client anthropic.Client
	cache  store.Store // nil disables caching
	opts   Options

	mu       sync.Mutex
	inflight map[string]*flight
}

// flight is one in-progress extraction, shared by every caller holding
// the same fingerprint.
type flight struct {
	done chan struct{}
	res  *model.ExtractionResult
	err  error
}

// New creates an Orchestrator. A nil cache disables the fingerprint cache.
func New(client anthropic.Client, cache store.Store, opts Options) *Orchestrator {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	return &Orchestrator{
		client:   client,
		cache:    cache,
		opts:     opts,
		inflight: make(map[string]*flight),
	}
}

// Input pairs a document reference with its fetched bytes.
type Input struct {
	Document model.DocumentReference
	Data     []byte
}

// ExtractOne extracts a single document, consulting the cache first. At
// most one AI call runs per fingerprint at a time; concurrent callers for
// the same fingerprint wait on the first call's result.
func (o *Orchestrator) ExtractOne(ctx context.Context, requestID string, in Input) (*model.ExtractionResult, error) {
	fp := Fingerprint(in.Data, in.Document.Type)

	o.mu.Lock()
	if f, ok := o.inflight[fp]; ok {
		o.mu.Unlock()
		select {
		case <-f.done:
			if f.err != nil {
				return nil, f.err
			}
			res := rebind(*f.res, requestID, in.Document)
			res.Cached = true
			o.link(ctx, &res)
			return &res, nil
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), "extract: canceled while waiting for in-flight extraction")
		}
	}
	f := &flight{done: make(chan struct{})}
	o.inflight[fp] = f
	o.mu.Unlock()

	res, err := o.extract(ctx, requestID, in, fp)

	o.mu.Lock()
	delete(o.inflight, fp)
	o.mu.Unlock()
	f.res, f.err = res, err
	close(f.done)

	if err == nil {
		o.link(ctx, res)
	}
	return res, err
}

func (o *Orchestrator) extract(ctx context.Context, requestID string, in Input, fp string) (*model.ExtractionResult, error) {
	if cached := o.cacheGet(ctx, fp); cached != nil {
		res := rebind(*cached, requestID, in.Document)
		res.Cached = true
		zap.L().Debug("extract: cache hit",
			zap.String("document_id", in.Document.ID),
			zap.String("fingerprint", fp),
		)
		return &res, nil
	}

	// Retry covers transport and timeout failures only; each attempt gets
	// its own deadline.
	resp, err := resilience.Retry(ctx, o.opts.Retry, "extract "+in.Document.Filename,
		func(ctx context.Context) (*anthropic.MessageResponse, error) {
			callCtx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
			defer cancel()
			resp, err := o.client.CreateMessage(callCtx, anthropic.MessageRequest{
				Model:     o.opts.Model,
				MaxTokens: o.opts.MaxTokens,
				System:    systemPrompt,
				Prompt:    buildPrompt(in.Document),
				Document:  in.Data,
			})
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
					return nil, resilience.MarkTransient(eris.Wrapf(model.ErrAITimeout, "extract: %s", in.Document.Filename), 0)
				}
				return nil, eris.Wrapf(errors.Join(model.ErrAIInvocation, err), "extract: %s", in.Document.Filename)
			}
			return resp, nil
		})
	if err != nil {
		return nil, err
	}

	// Decode failures are terminal. Re-asking an unchanged prompt rarely
	// fixes a structurally malformed answer.
	payload, err := decode.Decode(resp.Text)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: %s", in.Document.Filename)
	}

	usage := model.TokenUsage{
		InputTokens:         int(resp.Usage.InputTokens),
		OutputTokens:        int(resp.Usage.OutputTokens),
		CacheCreationTokens: int(resp.Usage.CacheCreationInputTokens),
		CacheReadTokens:     int(resp.Usage.CacheReadInputTokens),
	}
	resp.Usage.LogCost(o.opts.Model, "extraction")

	res := &model.ExtractionResult{
		DocumentID:  in.Document.ID,
		RequestID:   requestID,
		Filename:    in.Document.Filename,
		CarrierName: in.Document.CarrierName,
		Type:        in.Document.Type,
		Status:      model.ExtractionStatusSuccess,
		Payload:     payload,
		Fingerprint: fp,
		Usage:       usage,
		CreatedAt:   time.Now().UTC(),
	}
	o.cachePut(ctx, res)
	return res, nil
}

// cacheGet treats every cache failure as a miss.
func (o *Orchestrator) cacheGet(ctx context.Context, fp string) *model.ExtractionResult {
	if o.cache == nil {
		return nil
	}
	cached, err := o.cache.GetExtraction(ctx, fp)
	if err != nil {
		zap.L().Warn("extract: cache read failed, treating as miss",
			zap.String("fingerprint", fp),
			zap.Error(err),
		)
		return nil
	}
	return cached
}

// link records the request association for a served result, cache-served
// or fresh. ListExtractions reads through these links, so skipping a
// cache hit here would starve a later replace of that carrier. Best-effort
// like cachePut: a write failure only disables later resume.
func (o *Orchestrator) link(ctx context.Context, res *model.ExtractionResult) {
	if o.cache == nil || res.RequestID == "" {
		return
	}
	if err := o.cache.LinkExtraction(ctx, res); err != nil {
		zap.L().Warn("extract: request association write failed",
			zap.String("request_id", res.RequestID),
			zap.String("fingerprint", res.Fingerprint),
			zap.Error(err),
		)
	}
}

// cachePut is best-effort; a write failure never fails the extraction.
func (o *Orchestrator) cachePut(ctx context.Context, res *model.ExtractionResult) {
	if o.cache == nil {
		return
	}
	if err := o.cache.PutExtraction(ctx, res); err != nil {
		zap.L().Warn("extract: cache write failed",
			zap.String("fingerprint", res.Fingerprint),
			zap.Error(err),
		)
	}
}

// rebind re-addresses a shared result (cached or single-flighted) to the
// calling request's document identity.
func rebind(res model.ExtractionResult, requestID string, doc model.DocumentReference) model.ExtractionResult {
	res.RequestID = requestID
	res.DocumentID = doc.ID
	res.Filename = doc.Filename
	if doc.CarrierName != "" {
		res.CarrierName = doc.CarrierName
	}
	return res
}

// ExtractAll extracts every input concurrently. Per-document failures are
// accumulated, never propagated; ErrAllDocumentsFailed is returned only
// when not a single document succeeds.
func (o *Orchestrator) ExtractAll(ctx context.Context, requestID string, inputs []Input, progress model.ProgressFunc) ([]model.ExtractionResult, []model.FailedDocument, error) {
	type slot struct {
		res *model.ExtractionResult
		err error
	}
	slots := make([]slot, len(inputs))

	// No derived context: one failed document must not cancel its siblings.
	var g errgroup.Group
	for i, in := range inputs {
		g.Go(func() error {
			res, err := o.ExtractOne(ctx, requestID, in)
			slots[i] = slot{res: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var (
		results []model.ExtractionResult
		failed  []model.FailedDocument
	)
	for i, s := range slots {
		doc := inputs[i].Document
		if s.err != nil {
			zap.L().Warn("extract: document failed",
				zap.String("document_id", doc.ID),
				zap.String("filename", doc.Filename),
				zap.Error(s.err),
			)
			progress.Emit("extract", doc.Filename+": "+model.UserMessage(s.err), model.ProgressWarn)
			failed = append(failed, model.FailedDocument{
				DocumentID: doc.ID,
				Filename:   doc.Filename,
				Type:       doc.Type,
				Carrier:    doc.CarrierName,
				Reason:     model.UserMessage(s.err),
			})
			continue
		}
		progress.Emit("extract", doc.Filename+": extracted", model.ProgressInfo)
		results = append(results, *s.res)
	}

	if len(results) == 0 && len(inputs) > 0 {
		return nil, failed, eris.Wrap(model.ErrAllDocumentsFailed, "extract")
	}
	return results, failed, nil
}
