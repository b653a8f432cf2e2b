package application

import (
	"time"

	"vn.io.arda/onboarding/internal/domain"
)

// naiveTimestamp is accepted for fetched_at values written without a zone;
// they are read as UTC.
const naiveTimestamp = "2006-01-02T15:04:05.999999999"

// IsFresh reports whether fetchedAt parses and now-fetchedAt <= ttl.
// Empty or unparsable stamps are never fresh.
func IsFresh(now time.Time, fetchedAt string, ttl time.Duration) bool {
	if fetchedAt == "" {
		return false
	}
	t, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		if t, err = time.ParseInLocation(naiveTimestamp, fetchedAt, time.UTC); err != nil {
			return false
		}
	}
	return now.Sub(t) <= ttl
}

// tenantSource says where a tenant snapshot came from.
type tenantSource int

const (
	fromCache tenantSource = iota
	fromRemote
	fromStaleCache
)

func (s tenantSource) String() string {
	switch s {
	case fromRemote:
		return "remote"
	case fromStaleCache:
		return "stale-cache"
	default:
		return "cache"
	}
}

// shouldFetch is the first half of the refresh decision table: the cache is
// served as-is only when the caller did not force, it is fresh and it holds rows.
func shouldFetch(force, fresh bool, cachedRows int) bool {
	return force || !fresh || cachedRows == 0
}

// pickTenants is the second half: fetched rows win, otherwise whatever was
// cached is served, stale or not. fetchErr only ever carries a soft failure.
func pickTenants(fetched []domain.TenantRecord, fetchErr error, cached []domain.TenantRecord) ([]domain.TenantRecord, tenantSource) {
	if fetchErr == nil && len(fetched) > 0 {
		return domain.DedupeTenants(fetched), fromRemote
	}
	return cached, fromStaleCache
}
