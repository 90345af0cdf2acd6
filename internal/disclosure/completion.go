package disclosure

import (
	"math"
	"sort"
)

// IsFilled reports whether a form value counts as completed: present, not
// null, not the empty string and not the number zero.
func IsFilled(value any) bool {
	if value == nil {
		return false
	}
	if s, ok := value.(string); ok {
		return s != ""
	}
	if n, ok := numeric(value); ok {
		return n != 0
	}
	return true
}

// CompletedFields returns the sorted top-level keys of data holding a filled value.
func CompletedFields(data FormData) []string {
	fields := make([]string, 0, len(data))
	for name, value := range data {
		if IsFilled(value) {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return fields
}

// EstimateCompletion returns the percentage (0-100) of visible required
// fields that are filled. With nothing required the form is complete.
func EstimateCompletion(data FormData, visibility Visibility) int {
	required := 0
	completed := 0
	for name, state := range visibility {
		if !state.IsVisible || !state.IsRequired {
			continue
		}
		required++
		if IsFilled(data[name]) {
			completed++
		}
	}
	if required == 0 {
		return 100
	}
	return int(math.Round(100 * float64(completed) / float64(required)))
}
