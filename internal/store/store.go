// Package store persists extraction results and finalized comparison
// reports. Extraction payloads are keyed by fingerprint so a re-uploaded
// document never pays for a second AI call; a separate link table records
// which requests used which payloads, so cache hits still count toward
// their serving request. Reports are keyed by request ID so a failed
// batch can be resumed without redoing its successful documents.
package store

import (
	"context"

	"github.com/coverdesk/compare-cli/internal/model"
)

// Store defines the persistence interface for the comparison pipeline.
type Store interface {
	// Extraction cache. LinkExtraction must run on every success,
	// cache-served or fresh; ListExtractions reads through the links, so
	// an unlinked payload is invisible to the request.
	GetExtraction(ctx context.Context, fingerprint string) (*model.ExtractionResult, error)
	PutExtraction(ctx context.Context, result *model.ExtractionResult) error
	LinkExtraction(ctx context.Context, result *model.ExtractionResult) error
	ListExtractions(ctx context.Context, requestID string) ([]model.ExtractionResult, error)

	// Comparison reports
	SaveReport(ctx context.Context, report *model.ComparisonReport) error
	GetReport(ctx context.Context, requestID string) (*model.ComparisonReport, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
