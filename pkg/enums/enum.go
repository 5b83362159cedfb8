package enums

import (
	"fmt"
	"slices"
	"strings"
)

// parse matches value against the allowed set, ignoring case and surrounding
// whitespace. kind names the enum in the error.
func parse[T ~string](kind string, allowed []T, value string) (T, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range allowed {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}

func valid[T ~string](allowed []T, v T) bool {
	return slices.Contains(allowed, v)
}
