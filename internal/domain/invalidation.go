package domain

// InvalidationScope selects which cache an Invalidation drops.
type InvalidationScope string

const (
	// ScopeTenants drops the tenant snapshot of Instance.
	ScopeTenants InvalidationScope = "TENANTS"
	// ScopeInternalUsers drops the cached users of UserKey.
	ScopeInternalUsers InvalidationScope = "INTERNAL_USERS"
)

// Invalidation is the DTO produced by Kafka handlers from instance and
// internal-user change events.
type Invalidation struct {
	Scope InvalidationScope
	// InstanceID is set for ScopeTenants.
	InstanceID string
	// UserKey is set for ScopeInternalUsers. An empty AccountType means the
	// primary account type.
	UserKey       InternalUserKey
	SourceEventID string
}
