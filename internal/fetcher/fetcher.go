// Package fetcher resolves document references to raw bytes. Storage
// issues a short-lived signed URL per document; the bytes come back over
// plain HTTPS with a hard size cap. Batch fetches run concurrently and a
// single failure never cancels the rest.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/coverdesk/compare-cli/internal/model"
	"github.com/coverdesk/compare-cli/internal/resilience"
)

// MaxDocumentBytes is the hard payload cap for a single document.
const MaxDocumentBytes = 20 * 1024 * 1024

// Signer issues a short-lived signed URL for a storage path.
type Signer interface {
	SignedURL(ctx context.Context, storagePath string, ttl time.Duration) (string, error)
}

// Options configures the Fetcher.
type Options struct {
	SignedURLTTL time.Duration
	Timeout      time.Duration
	MaxBytes     int64
	// RequestsPerSecond bounds download throughput against the storage
	// backend. Zero means the default of 20.
	RequestsPerSecond float64
}

// Fetcher downloads document bytes through signed URLs.
type Fetcher struct {
	signer  Signer
	client  *http.Client
	limiter *rate.Limiter
	opts    Options
}

// New creates a Fetcher with the given signer and options.
func New(signer Signer, opts Options) *Fetcher {
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = 300 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = MaxDocumentBytes
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 20
	}
	return &Fetcher{
		signer: signer,
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
		opts:    opts,
	}
}

// Resolve fetches the bytes for one document reference.
func (f *Fetcher) Resolve(ctx context.Context, doc model.DocumentReference) ([]byte, error) {
	if doc.SizeBytes > f.opts.MaxBytes {
		return nil, eris.Wrapf(model.ErrPayloadTooLarge, "fetcher: %s is %d bytes", doc.Filename, doc.SizeBytes)
	}

	signedURL, err := f.signer.SignedURL(ctx, doc.StoragePath, f.opts.SignedURLTTL)
	if err != nil {
		return nil, err
	}

	return resilience.Retry(ctx, resilience.DefaultPolicy(), "fetch "+doc.Filename,
		func(ctx context.Context) ([]byte, error) {
			return f.download(ctx, signedURL, doc)
		})
}

func (f *Fetcher) download(ctx context.Context, signedURL string, doc model.DocumentReference) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(model.ErrFetch, "fetcher: %s: %v", doc.Filename, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, eris.Wrapf(model.ErrDocumentNotFound, "fetcher: %s", doc.Filename)
	case resilience.RetryableStatus(resp.StatusCode):
		return nil, resilience.MarkTransient(
			eris.Wrapf(model.ErrFetch, "fetcher: %s: status %d", doc.Filename, resp.StatusCode),
			resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Wrapf(model.ErrFetch, "fetcher: %s: status %d", doc.Filename, resp.StatusCode)
	}

	// Read one byte past the cap to distinguish at-limit from over-limit.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes+1))
	if err != nil {
		return nil, eris.Wrapf(model.ErrFetch, "fetcher: %s: read body: %v", doc.Filename, err)
	}
	if int64(len(data)) > f.opts.MaxBytes {
		return nil, eris.Wrapf(model.ErrPayloadTooLarge, "fetcher: %s", doc.Filename)
	}

	return data, nil
}

// BatchResult pairs a document with its fetch outcome.
type BatchResult struct {
	Document model.DocumentReference
	Data     []byte
	Err      error
}

// ResolveAll fetches every document concurrently. Per-document failures
// are recorded in the result, never propagated: one oversized or missing
// document must not sink the batch.
func (f *Fetcher) ResolveAll(ctx context.Context, docs []model.DocumentReference) []BatchResult {
	results := make([]BatchResult, len(docs))

	// Plain errgroup without a derived context: a failed fetch must not
	// cancel its siblings.
	var g errgroup.Group
	for i, doc := range docs {
		g.Go(func() error {
			data, err := f.Resolve(ctx, doc)
			results[i] = BatchResult{Document: doc, Data: data, Err: err}
			if err != nil {
				zap.L().Warn("fetcher: document fetch failed",
					zap.String("document_id", doc.ID),
					zap.String("filename", doc.Filename),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
