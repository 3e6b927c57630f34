package planner

import (
	"slices"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used for task start and end dates.
const DateLayout = "2006-01-02"

// IsISODate reports whether value is an existing calendar date in YYYY-MM-DD form.
func IsISODate(value string) bool {
	if len(value) != len(DateLayout) {
		return false
	}
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return false
	}
	return parsed.Format(DateLayout) == value
}

func nextSortOrder(maxSortOrder int, found bool) int {
	if !found {
		return 0
	}
	return maxSortOrder + 1
}

// validatePermutation requires ids to list every id in current exactly once.
func validatePermutation(entity string, ids []string, current map[string]struct{}) error {
	if len(ids) != len(current) {
		return newValidationError("ids must list all %d %ss, got %d", len(current), entity, len(ids))
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, duplicate := seen[id]; duplicate {
			return newValidationError("ids contains %s %s more than once", entity, id)
		}
		seen[id] = struct{}{}
		if _, ok := current[id]; !ok {
			return newValidationError("%s not found: %s", entity, id)
		}
	}
	return nil
}

// normalizeIDList trims ids, drops empties and duplicates, and keeps first-seen order.
func normalizeIDList(ids []string) []string {
	normalized := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		normalized = append(normalized, id)
	}
	return normalized
}

// sameIDSet compares two id lists ignoring order and duplicates.
func sameIDSet(left, right []string) bool {
	normalizedLeft := normalizeIDList(left)
	normalizedRight := normalizeIDList(right)
	if len(normalizedLeft) != len(normalizedRight) {
		return false
	}
	slices.Sort(normalizedLeft)
	slices.Sort(normalizedRight)
	return slices.Equal(normalizedLeft, normalizedRight)
}

func normalizeOptionalID(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
