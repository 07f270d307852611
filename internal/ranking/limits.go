package ranking

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// limitPattern matches a numeric value with an optional K/M multiplier,
// ignoring currency symbols and thousands separators: "£2M", "500K",
// "$1.5m", "2,000,000".
var limitPattern = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*([kKmM])?`)

// ParseLimit extracts a numeric coverage limit from a display string.
// "Not Covered", "Basic Cover", and anything unparsable yield 0.
func ParseLimit(s string) float64 {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0
	}

	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "not covered") || strings.Contains(lower, "basic cover") {
		return 0
	}

	cleaned := strings.ReplaceAll(trimmed, ",", "")
	m := limitPattern.FindStringSubmatch(cleaned)
	if m == nil {
		return 0
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}

	switch strings.ToLower(m[2]) {
	case "k":
		value *= 1_000
	case "m":
		value *= 1_000_000
	}
	return value
}

// FormatLimit renders a limit the way quote documents display them:
// millions as "£2.0M", thousands as "£500K", smaller values as plain
// integers. Inverse of ParseLimit for values exactly expressible in K/M.
func FormatLimit(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("£%.1fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("£%.0fK", v/1_000)
	default:
		return fmt.Sprintf("£%.0f", v)
	}
}
