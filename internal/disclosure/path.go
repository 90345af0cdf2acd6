package disclosure

import (
	"strconv"
	"strings"
)

// FormData is the decoded JSON payload of a form.
type FormData map[string]any

// Lookup resolves a dot path such as "budget.total" or "partners.0.name".
// The second result is false when any segment is missing.
func Lookup(data FormData, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" || data == nil {
		return nil, false
	}
	var current any = map[string]any(data)
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case FormData:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}
