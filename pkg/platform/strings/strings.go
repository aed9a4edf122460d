// Package strings provides the small string normalization utilities shared by
// the filter engine and the persona store.
package strings

import (
	"sort"
	"strings"
)

// CollapseWhitespace trims the string and folds internal whitespace runs into
// single spaces. "  bukit   merah " becomes "bukit merah".
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// DedupeAndTrimLower lowercases, trims, and deduplicates a slice, dropping
// empties. Order is preserved. Used to normalize explicit filter lists so set
// membership checks are case-insensitive.
func DedupeAndTrimLower(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.ToLower(strings.TrimSpace(v))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// UniqueSorted returns the sorted distinct values of the input, dropping
// empties. The input is not modified.
func UniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			result = append(result, v)
		}
	}
	sort.Strings(result)
	return result
}
