package domain

import (
	"sort"
	"strings"
)

// NormalizeMatchValue trims and lower-cases a match key.
func NormalizeMatchValue(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// DedupeTenants keeps one record per normalized match value, the last
// occurrence winning. Records without a match value are dropped. The result
// is sorted by match value so a snapshot reads the same whether it came from
// the remote store or from the cache.
func DedupeTenants(records []TenantRecord) []TenantRecord {
	unique := make(map[string]TenantRecord, len(records))
	for _, r := range records {
		key := NormalizeMatchValue(r.MatchValue)
		if key == "" {
			continue
		}
		r.MatchValue = key
		unique[key] = r
	}
	out := make([]TenantRecord, 0, len(unique))
	for _, r := range unique {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchValue < out[j].MatchValue })
	return out
}
