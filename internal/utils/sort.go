package utils

import "sort"

// SortedKeys returns the keys of m in ascending string order so burst
// iteration stays deterministic across runs.
func SortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
