package enums

import (
	"fmt"
	"slices"
)

// parse matches value exactly against the allowed set; kind names the enum in errors.
func parse[T ~string](kind string, allowed []T, value string) (T, error) {
	if v := T(value); slices.Contains(allowed, v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
