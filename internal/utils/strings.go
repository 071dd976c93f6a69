package utils

import "strings"

// ParseCSV splits a comma-separated setting value and returns the trimmed,
// non-empty entries. Returns nil for empty or whitespace-only input.
func ParseCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var result []string
	for _, v := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// NormalizeSymbol upper-cases and trims an instrument identifier so the same
// instrument always lands on the same lot queue and natural key.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
