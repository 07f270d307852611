package fetcher

import (
	"context"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rotisserie/eris"

	"github.com/coverdesk/compare-cli/internal/model"
)

// GCSSigner issues V4 signed URLs for objects in a GCS bucket.
type GCSSigner struct {
	bucket *storage.BucketHandle
}

// NewGCSSigner creates a signer over the named bucket.
func NewGCSSigner(ctx context.Context, bucketName string) (*GCSSigner, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "gcs: create client")
	}
	return &GCSSigner{bucket: client.Bucket(bucketName)}, nil
}

// SignedURL issues a short-lived GET URL for the object. A missing object
// maps to DocumentNotFound; signing failures map to SignedURLError.
func (s *GCSSigner) SignedURL(ctx context.Context, storagePath string, ttl time.Duration) (string, error) {
	// Probe attributes first so "missing object" is distinguishable from
	// a signing failure.
	if _, err := s.bucket.Object(storagePath).Attrs(ctx); err != nil {
		if err == storage.ErrObjectNotExist {
			return "", eris.Wrapf(model.ErrDocumentNotFound, "gcs: %s", storagePath)
		}
		return "", eris.Wrapf(model.ErrSignedURL, "gcs: attrs %s: %v", storagePath, err)
	}

	url, err := s.bucket.SignedURL(storagePath, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", eris.Wrapf(model.ErrSignedURL, "gcs: sign %s: %v", storagePath, err)
	}
	return url, nil
}
