package application

import (
	"context"

	"vn.io.arda/onboarding/internal/domain"
)

// TenantDirectory reads remote tenant tables. Failures come back wrapped in
// domain.ErrRemoteUnavailable next to an empty result and are absorbed here.
// The default implementation is infrastructure/directory.TenantDirectory.
type TenantDirectory interface {
	// FetchByKeys returns the tenants whose lower-cased match value is in keys.
	FetchByKeys(ctx context.Context, inst domain.Instance, keys []string) (map[string]domain.TenantRecord, error)

	// FetchAll returns every tenant of the instance.
	FetchAll(ctx context.Context, inst domain.Instance) ([]domain.TenantRecord, error)
}

// UserDirectory reads and writes remote internal-user tables. Its failures
// are hard and propagate to the caller.
type UserDirectory interface {
	Fetch(ctx context.Context, inst domain.Instance, tenantID, subscriber, accountType string) ([]domain.InternalUser, error)
	Create(ctx context.Context, inst domain.Instance, nu domain.NewInternalUser) (string, error)
	UpdatePassword(ctx context.Context, inst domain.Instance, tenantID, subscriber, userID, hash string) error
}
