package metrics

import (
	"cmp"
	"slices"
)

// StatusBucket is the failure count for one provider and error code.
type StatusBucket struct {
	Provider string
	Code     string
	Count    int
}

// FlattenStatusBuckets turns provider -> code -> count into rows ordered by
// descending count, then provider, then code.
func FlattenStatusBuckets(buckets map[string]map[string]int) []StatusBucket {
	var rows []StatusBucket
	for provider, codes := range buckets {
		for code, count := range codes {
			rows = append(rows, StatusBucket{Provider: provider, Code: code, Count: count})
		}
	}
	slices.SortFunc(rows, func(a, b StatusBucket) int {
		return cmp.Or(
			cmp.Compare(b.Count, a.Count),
			cmp.Compare(a.Provider, b.Provider),
			cmp.Compare(a.Code, b.Code),
		)
	})
	return rows
}
