package extract

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/coverdesk/compare-cli/internal/model"
	"github.com/coverdesk/compare-cli/internal/resilience"
	"github.com/coverdesk/compare-cli/pkg/anthropic"
)

// --- Anthropic mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// --- In-memory cache ---

type memCache struct {
	mu      sync.Mutex
	entries map[string]*model.ExtractionResult
	links   []model.ExtractionResult
	getErr  error
	putErr  error
	linkErr error
	puts    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*model.ExtractionResult)}
}

func (c *memCache) GetExtraction(ctx context.Context, fp string) (*model.ExtractionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	res, ok := c.entries[fp]
	if !ok {
		return nil, nil
	}
	cp := *res
	return &cp, nil
}

func (c *memCache) PutExtraction(ctx context.Context, res *model.ExtractionResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	if c.putErr != nil {
		return c.putErr
	}
	if _, ok := c.entries[res.Fingerprint]; !ok {
		cp := *res
		c.entries[res.Fingerprint] = &cp
	}
	return nil
}

func (c *memCache) LinkExtraction(ctx context.Context, res *model.ExtractionResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.linkErr != nil {
		return c.linkErr
	}
	c.links = append(c.links, *res)
	return nil
}

func (c *memCache) ListExtractions(ctx context.Context, requestID string) ([]model.ExtractionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.ExtractionResult
	for _, l := range c.links {
		if l.RequestID == requestID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (c *memCache) SaveReport(ctx context.Context, report *model.ComparisonReport) error {
	return nil
}

func (c *memCache) GetReport(ctx context.Context, requestID string) (*model.ComparisonReport, error) {
	return nil, nil
}

func (c *memCache) Migrate(ctx context.Context) error { return nil }
func (c *memCache) Close() error                      { return nil }

// --- Helpers ---

func quoteDoc(id string) model.DocumentReference {
	return model.DocumentReference{
		ID:          id,
		Filename:    id + ".pdf",
		StoragePath: "quotes/" + id + ".pdf",
		MimeType:    "application/pdf",
		CarrierName: "Hiscox",
		Type:        model.DocumentTypeQuote,
	}
}

func quoteResponse() *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:   "msg-1",
		Text: `{"insurer_name":"Hiscox","premium_amount":12500,"coverage_limits":{"professional_indemnity":"£2M"}}`,
		Usage: anthropic.TokenUsage{
			InputTokens:  4200,
			OutputTokens: 300,
		},
	}
}

func fastRetry() resilience.Policy {
	return resilience.Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

func newTestOrchestrator(client anthropic.Client, cache *memCache) *Orchestrator {
	opts := Options{Model: "claude-haiku-4-5-20251001", Retry: fastRetry()}
	if cache == nil {
		return New(client, nil, opts)
	}
	return New(client, cache, opts)
}

// --- Fingerprint ---

func TestFingerprint_VariesByTypeAndContent(t *testing.T) {
	data := []byte("%PDF-1.7 quote body")

	asQuote := Fingerprint(data, model.DocumentTypeQuote)
	asWording := Fingerprint(data, model.DocumentTypePolicyWording)
	assert.NotEqual(t, asQuote, asWording, "same bytes extract under different schemas")

	other := Fingerprint([]byte("%PDF-1.7 different body"), model.DocumentTypeQuote)
	assert.NotEqual(t, asQuote, other)

	again := Fingerprint(data, model.DocumentTypeQuote)
	assert.Equal(t, asQuote, again, "fingerprint is deterministic")
	assert.Len(t, asQuote, 64)
}

// --- ExtractOne ---

func TestExtractOne_Success(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(quoteResponse(), nil).Once()

	o := newTestOrchestrator(client, newMemCache())
	res, err := o.ExtractOne(context.Background(), "req-1", Input{Document: quoteDoc("doc-1"), Data: []byte("pdf")})
	require.NoError(t, err)
	assert.Equal(t, model.ExtractionStatusSuccess, res.Status)
	assert.Equal(t, "Hiscox", res.Payload["insurer_name"])
	assert.False(t, res.Cached)
	assert.Equal(t, 4200, res.Usage.InputTokens)
	client.AssertExpectations(t)
}

func TestExtractOne_CacheHitSkipsAICall(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(quoteResponse(), nil).Once()

	cache := newMemCache()
	o := newTestOrchestrator(client, cache)
	ctx := context.Background()

	in := Input{Document: quoteDoc("doc-1"), Data: []byte("pdf")}
	first, err := o.ExtractOne(ctx, "req-1", in)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	// Same bytes under a different document identity: no second AI call.
	in2 := Input{Document: quoteDoc("doc-2"), Data: []byte("pdf")}
	second, err := o.ExtractOne(ctx, "req-2", in2)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "doc-2", second.DocumentID)
	assert.Equal(t, "req-2", second.RequestID)
	assert.Equal(t, first.Payload["insurer_name"], second.Payload["insurer_name"])
	client.AssertExpectations(t)
}

func TestExtractOne_CacheHitStillLinkedToServingRequest(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(quoteResponse(), nil).Once()

	cache := newMemCache()
	o := newTestOrchestrator(client, cache)
	ctx := context.Background()

	_, err := o.ExtractOne(ctx, "req-a", Input{Document: quoteDoc("doc-1"), Data: []byte("pdf")})
	require.NoError(t, err)

	// Second request reuses the cached payload but must still be able to
	// list its own extractions later, for replace and re-ranking.
	cached, err := o.ExtractOne(ctx, "req-b", Input{Document: quoteDoc("doc-2"), Data: []byte("pdf")})
	require.NoError(t, err)
	require.True(t, cached.Cached)

	listed, err := cache.ListExtractions(ctx, "req-b")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "doc-2", listed[0].DocumentID)
	assert.Equal(t, cached.Fingerprint, listed[0].Fingerprint)

	// The first request keeps its own association too.
	listed, err = cache.ListExtractions(ctx, "req-a")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "doc-1", listed[0].DocumentID)
}

func TestExtractOne_LinkWriteErrorIsBestEffort(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(quoteResponse(), nil).Once()

	cache := newMemCache()
	cache.linkErr = errors.New("disk full")
	o := newTestOrchestrator(client, cache)

	res, err := o.ExtractOne(context.Background(), "req-1", Input{Document: quoteDoc("doc-1"), Data: []byte("pdf")})
	require.NoError(t, err)
	assert.Equal(t, model.ExtractionStatusSuccess, res.Status)
}

func TestExtractOne_CacheReadErrorDegradesToMiss(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(quoteResponse(), nil).Once()

	cache := newMemCache()
	cache.getErr = errors.New("connection refused")
	o := newTestOrchestrator(client, cache)

	res, err := o.ExtractOne(context.Background(), "req-1", Input{Document: quoteDoc("doc-1"), Data: []byte("pdf")})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	client.AssertExpectations(t)
}

func TestExtractOne_CacheWriteErrorIsBestEffort(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(quoteResponse(), nil).Once()

	cache := newMemCache()
	cache.putErr = errors.New("disk full")
	o := newTestOrchestrator(client, cache)

	res, err := o.ExtractOne(context.Background(), "req-1", Input{Document: quoteDoc("doc-1"), Data: []byte("pdf")})
	require.NoError(t, err)
	assert.Equal(t, model.ExtractionStatusSuccess, res.Status)
	assert.Equal(t, 1, cache.puts)
}

func TestExtractOne_TransientFailureRetried(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, resilience.MarkTransient(errors.New("overloaded_error"), 529)).Once()
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(quoteResponse(), nil).Once()

	o := newTestOrchestrator(client, nil)
	res, err := o.ExtractOne(context.Background(), "req-1", Input{Document: quoteDoc("doc-1"), Data: []byte("pdf")})
	require.NoError(t, err)
	assert.Equal(t, "Hiscox", res.Payload["insurer_name"])
	client.AssertExpectations(t)
}

func TestExtractOne_DecodeFailureNotRetried(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{Text: "I could not read this document, sorry."}, nil).Once()

	o := newTestOrchestrator(client, nil)
	_, err := o.ExtractOne(context.Background(), "req-1", Input{Document: quoteDoc("doc-1"), Data: []byte("pdf")})
	require.Error(t, err)

	var de *model.DecodeError
	assert.True(t, errors.As(err, &de))
	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestExtractOne_SingleFlightDeduplicates(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			calls.Add(1)
			<-release
		}).
		Return(quoteResponse(), nil)

	o := newTestOrchestrator(client, nil)
	ctx := context.Background()

	const n = 5
	var wg sync.WaitGroup
	results := make([]*model.ExtractionResult, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = o.ExtractOne(ctx, "req-1", Input{Document: quoteDoc("doc-1"), Data: []byte("pdf")})
		}()
	}

	// Give the goroutines time to pile onto the in-flight entry.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "one AI call for n concurrent identical documents")
	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, "Hiscox", results[i].Payload["insurer_name"])
	}
}

// --- ExtractAll ---

func TestExtractAll_FailureIsolation(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return string(req.Document) == "good"
	})).Return(quoteResponse(), nil)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return string(req.Document) == "bad"
	})).Return(&anthropic.MessageResponse{Text: "not json at all"}, nil)

	o := newTestOrchestrator(client, nil)
	inputs := []Input{
		{Document: quoteDoc("doc-1"), Data: []byte("good")},
		{Document: quoteDoc("doc-2"), Data: []byte("bad")},
	}

	var events []model.ProgressEvent
	var mu sync.Mutex
	progress := func(e model.ProgressEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	results, failed, err := o.ExtractAll(context.Background(), "req-1", inputs, progress)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, failed, 1)
	assert.Equal(t, "doc-2", failed[0].DocumentID)
	assert.Equal(t, "Hiscox", failed[0].Carrier)
	assert.NotEmpty(t, failed[0].Reason)
	assert.Len(t, events, 2)
}

func TestExtractAll_AllFailed(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{Text: "not json"}, nil)

	o := newTestOrchestrator(client, nil)
	inputs := []Input{
		{Document: quoteDoc("doc-1"), Data: []byte("a")},
		{Document: quoteDoc("doc-2"), Data: []byte("b")},
	}

	results, failed, err := o.ExtractAll(context.Background(), "req-1", inputs, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrAllDocumentsFailed))
	assert.Empty(t, results)
	assert.Len(t, failed, 2)
}

func TestExtractAll_EmptyInput(t *testing.T) {
	o := newTestOrchestrator(new(mockAnthropicClient), nil)

	results, failed, err := o.ExtractAll(context.Background(), "req-1", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, failed)
}
