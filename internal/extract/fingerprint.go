package extract

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/coverdesk/compare-cli/internal/model"
)

// Prompt-schema versions. Bumping one invalidates cached extractions for
// that document type without touching the other.
const (
	quotePromptVersion   = "quote-v3"
	wordingPromptVersion = "wording-v2"
)

func promptVersion(t model.DocumentType) string {
	if t == model.DocumentTypePolicyWording {
		return wordingPromptVersion
	}
	return quotePromptVersion
}

// Fingerprint identifies one (document content, prompt-schema version)
// pair. Equal fingerprints always carry identical extraction payloads, so
// a cached result can be reused across requests and even across clients.
func Fingerprint(data []byte, docType model.DocumentType) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte(promptVersion(docType)))
	return hex.EncodeToString(h.Sum(nil))
}
