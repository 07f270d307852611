package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fetch/extract/compare failure taxonomy. Wrapped
// with eris at call sites; matched with errors.Is.
var (
	ErrDocumentNotFound      = errors.New("document not found")
	ErrSignedURL             = errors.New("signed url issuance failed")
	ErrFetch                 = errors.New("document fetch failed")
	ErrPayloadTooLarge       = errors.New("document exceeds size limit")
	ErrAIInvocation          = errors.New("ai invocation failed")
	ErrAITimeout             = errors.New("ai invocation timed out")
	ErrSchemaValidation      = errors.New("aggregate response missing required structure")
	ErrAllDocumentsFailed    = errors.New("no documents could be extracted")
	ErrSectionSelectionEmpty = errors.New("no coverage sections selected")
)

// DecodeError reports that no repair strategy produced valid JSON. It
// carries a truncated copy of the original text for diagnostics.
type DecodeError struct {
	Snippet string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode failed after all repair attempts: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UserMessage maps known failure causes to an actionable message, with a
// generic fallback for everything else.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPayloadTooLarge):
		return "document too large - the limit is 20MB"
	case errors.Is(err, ErrAITimeout):
		return "processing timed out - try a simpler document or split it"
	case errors.Is(err, ErrDocumentNotFound):
		return "document could not be found in storage"
	case errors.Is(err, ErrAllDocumentsFailed):
		return "none of the documents could be processed - check they are readable insurance PDFs"
	case errors.Is(err, ErrSectionSelectionEmpty):
		return "select at least one coverage section to compare"
	default:
		var de *DecodeError
		if errors.As(err, &de) {
			return "the analysis response could not be read - retry the document"
		}
		return "something went wrong processing this document - retry or contact support"
	}
}
