package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/coverdesk/compare-cli/internal/extract"
	"github.com/coverdesk/compare-cli/internal/fetcher"
	"github.com/coverdesk/compare-cli/internal/model"
)

// --- Fetcher mock ---

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) ResolveAll(ctx context.Context, docs []model.DocumentReference) []fetcher.BatchResult {
	args := m.Called(ctx, docs)
	return args.Get(0).([]fetcher.BatchResult)
}

// --- Extractor mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) ExtractOne(ctx context.Context, requestID string, in extract.Input) (*model.ExtractionResult, error) {
	args := m.Called(ctx, requestID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ExtractionResult), args.Error(1)
}

func (m *mockExtractor) ExtractAll(ctx context.Context, requestID string, inputs []extract.Input, progress model.ProgressFunc) ([]model.ExtractionResult, []model.FailedDocument, error) {
	args := m.Called(ctx, requestID, inputs, progress)
	var results []model.ExtractionResult
	if args.Get(0) != nil {
		results = args.Get(0).([]model.ExtractionResult)
	}
	var failed []model.FailedDocument
	if args.Get(1) != nil {
		failed = args.Get(1).([]model.FailedDocument)
	}
	return results, failed, args.Error(2)
}

// --- Comparer mock ---

type mockComparer struct {
	mock.Mock
}

func (m *mockComparer) Compare(ctx context.Context, req model.ComparisonRequest, extractions []model.ExtractionResult, failed []model.FailedDocument) (*model.ComparisonReport, error) {
	args := m.Called(ctx, req, extractions, failed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ComparisonReport), args.Error(1)
}

// --- In-memory store ---

type memStore struct {
	mu          sync.Mutex
	extractions map[string][]model.ExtractionResult // by request ID
	reports     map[string]*model.ComparisonReport
	saveErr     error
	listErr     error
	saved       int
}

func newMemStore() *memStore {
	return &memStore{
		extractions: make(map[string][]model.ExtractionResult),
		reports:     make(map[string]*model.ComparisonReport),
	}
}

func (s *memStore) GetExtraction(ctx context.Context, fp string) (*model.ExtractionResult, error) {
	return nil, nil
}

// PutExtraction is a payload-cache write; only LinkExtraction associates a
// result with a request, mirroring the real stores.
func (s *memStore) PutExtraction(ctx context.Context, res *model.ExtractionResult) error {
	return nil
}

func (s *memStore) LinkExtraction(ctx context.Context, res *model.ExtractionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extractions[res.RequestID] = append(s.extractions[res.RequestID], *res)
	return nil
}

func (s *memStore) ListExtractions(ctx context.Context, requestID string) ([]model.ExtractionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.extractions[requestID], nil
}

func (s *memStore) SaveReport(ctx context.Context, report *model.ComparisonReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.reports[report.RequestID] = report
	return nil
}

func (s *memStore) GetReport(ctx context.Context, requestID string) (*model.ComparisonReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reports[requestID], nil
}

func (s *memStore) Migrate(ctx context.Context) error { return nil }
func (s *memStore) Close() error                      { return nil }
