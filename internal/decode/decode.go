// Package decode extracts structured JSON from free-form model output.
// Model responses arrive wrapped in code fences, sprinkled with trailing
// commas and control characters, or embedded in prose; Decode applies a
// fixed sequence of repair strategies and either returns an object or a
// DecodeError. The sequence is deterministic: the same input always yields
// the same output or the same failure.
package decode

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/coverdesk/compare-cli/internal/model"
)

// snippetLimit caps the diagnostic copy of the original text carried by a
// DecodeError.
const snippetLimit = 500

// Decode parses arbitrary model output into a JSON object. Strategies, in
// order: strict parse; fenced-block extraction; first-{ to last-} slice;
// control-character strip; trailing-comma removal; and as a last resort a
// parse with all backticks removed.
func Decode(raw string) (map[string]any, error) {
	if obj, err := parse(raw); err == nil {
		return obj, nil
	}

	cleaned := stripFences(raw)
	cleaned = sliceBraces(cleaned)
	cleaned = stripControlChars(cleaned)
	cleaned = removeTrailingCommas(cleaned)

	if obj, err := parse(cleaned); err == nil {
		return obj, nil
	}

	// Some models leave stray backticks mid-document that the fence pass
	// cannot see. Removing every backtick is safe at this point: valid
	// JSON contains none.
	lastResort := removeTrailingCommas(stripControlChars(strings.ReplaceAll(raw, "`", "")))
	lastResort = sliceBraces(lastResort)
	obj, err := parse(lastResort)
	if err == nil {
		return obj, nil
	}

	return nil, &model.DecodeError{Snippet: truncate(raw, snippetLimit), Err: err}
}

func parse(text string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("decoded to null, not an object")
	}
	return obj, nil
}

// stripFences removes a markdown code fence wrapper, preferring a ```json
// fence but accepting any ``` block.
func stripFences(text string) string {
	text = strings.TrimSpace(text)

	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.LastIndex(text, "```"); end >= 0 {
			text = text[:end]
		}
		return strings.TrimSpace(text)
	}
	if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+len("```"):]
		if end := strings.LastIndex(text, "```"); end >= 0 {
			text = text[:end]
		}
		return strings.TrimSpace(text)
	}
	return text
}

// sliceBraces trims to the outermost object: first { to last }.
func sliceBraces(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

// stripControlChars removes ASCII control characters except tab, newline,
// and carriage return. Raw control bytes inside string values are the most
// common cause of strict-parse failure on otherwise valid output.
func stripControlChars(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// removeTrailingCommas deletes commas that directly precede a closing
// brace or bracket, skipping comma characters inside string literals.
func removeTrailingCommas(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]

		if inString {
			b.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}

		if c == ',' {
			// Look ahead past whitespace for a closing delimiter.
			j := i + 1
			for j < len(text) && (text[j] == ' ' || text[j] == '\t' || text[j] == '\n' || text[j] == '\r') {
				j++
			}
			if j < len(text) && (text[j] == '}' || text[j] == ']') {
				continue
			}
		}

		b.WriteByte(c)
	}
	return b.String()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
