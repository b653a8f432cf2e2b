package domain

import (
	"context"
)

// TenantCache is the port for the per-instance tenant snapshot.
// Implementations live in infrastructure/sqlite.
type TenantCache interface {
	// LoadTenants returns the cached snapshot and its fetched_at stamp ("" when empty).
	LoadTenants(ctx context.Context, instanceID string) ([]TenantRecord, string, error)

	// SaveTenants replaces the instance snapshot. An empty set after
	// de-duplication leaves the existing snapshot untouched.
	SaveTenants(ctx context.Context, instanceID string, records []TenantRecord) error

	// InvalidateTenants deletes every cached tenant of the instance.
	InvalidateTenants(ctx context.Context, instanceID string) error

	// SubscriberForTenant returns the subscriber of any cached row with the tenant id.
	SubscriberForTenant(ctx context.Context, instanceID, tenantID string) (string, bool, error)
}

// InternalUserCache is the port for cached internal-user result sets.
type InternalUserCache interface {
	// LoadInternalUsers returns the cached users of key and its fetched_at
	// stamp. An empty set that was saved keeps its stamp; "" means never cached.
	LoadInternalUsers(ctx context.Context, key InternalUserKey) ([]InternalUser, string, error)

	// SaveInternalUsers fully replaces the key's rows, down to zero rows.
	SaveInternalUsers(ctx context.Context, key InternalUserKey, users []InternalUser) error

	InvalidateInternalUsers(ctx context.Context, key InternalUserKey) error
}

// CustomerReader reads local customer and instance records owned by the CRUD layer.
type CustomerReader interface {
	ListCustomers(ctx context.Context) ([]Customer, error)
	GetCustomer(ctx context.Context, id string) (*Customer, error)

	// LoadInstances returns instances keyed by id. A nil ids slice loads all.
	LoadInstances(ctx context.Context, ids []string) (map[string]Instance, error)
}
