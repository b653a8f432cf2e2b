package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
	"vn.io.arda/onboarding/internal/config"
	"vn.io.arda/onboarding/internal/domain"
	"vn.io.arda/onboarding/internal/schema"
)

// Deps are the collaborators of Service.
type Deps struct {
	Schema      *schema.Descriptor
	Cache       config.CacheConfig
	Clock       clock.Clock
	Tenants     TenantDirectory
	Users       UserDirectory
	TenantCache domain.TenantCache
	UserCache   domain.InternalUserCache
	Customers   domain.CustomerReader
}

// Service resolves customers to remote tenants and internal users, serving
// both through the local caches.
type Service struct {
	desc        *schema.Descriptor
	ttl         config.CacheConfig
	clock       clock.Clock
	tenants     TenantDirectory
	users       UserDirectory
	tenantCache domain.TenantCache
	userCache   domain.InternalUserCache
	customers   domain.CustomerReader
}

// NewService creates a new application Service.
func NewService(d Deps) *Service {
	clk := d.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		desc:        d.Schema,
		ttl:         d.Cache,
		clock:       clk,
		tenants:     d.Tenants,
		users:       d.Users,
		tenantCache: d.TenantCache,
		userCache:   d.UserCache,
		customers:   d.Customers,
	}
}

// Instance returns the instance with id, or an error wrapping domain.ErrNotFound.
func (s *Service) Instance(ctx context.Context, id string) (domain.Instance, error) {
	instances, err := s.customers.LoadInstances(ctx, []string{id})
	if err != nil {
		return domain.Instance{}, err
	}
	inst, ok := instances[id]
	if !ok {
		return domain.Instance{}, fmt.Errorf("%w: instance %s", domain.ErrNotFound, id)
	}
	return inst, nil
}

// ResolveTenant looks one match value up in the remote tenant table, bypassing
// the cache. Returns nil when no tenant matches or the directory is unreachable.
func (s *Service) ResolveTenant(ctx context.Context, inst domain.Instance, matchValue string) (*domain.TenantRecord, error) {
	key := domain.NormalizeMatchValue(matchValue)
	if key == "" {
		return nil, fmt.Errorf("%w: tenant match value is required", domain.ErrValidation)
	}

	found, err := s.tenants.FetchByKeys(ctx, inst, []string{key})
	if err != nil {
		log.Debug().Err(err).Str("instance", inst.ID).Msg("tenant resolution degraded to no match")
		return nil, nil
	}
	rec, ok := found[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// ListTenants returns the tenant snapshot of inst through the refresh policy.
func (s *Service) ListTenants(ctx context.Context, inst domain.Instance, forceRefresh bool) ([]domain.TenantRecord, error) {
	return s.tenantsFor(ctx, inst, forceRefresh)
}

// tenantsFor applies the refresh decision table: serve a fresh non-empty
// cache unless forced; otherwise fetch, save and serve fetched rows, falling
// back to the previous snapshot, stale or not, when the fetch yields nothing.
func (s *Service) tenantsFor(ctx context.Context, inst domain.Instance, force bool) ([]domain.TenantRecord, error) {
	cached, fetchedAt, err := s.tenantCache.LoadTenants(ctx, inst.ID)
	if err != nil {
		return nil, fmt.Errorf("load tenant cache: %w", err)
	}

	fresh := IsFresh(s.clock.Now(), fetchedAt, s.ttl.TenantTTL)
	if !shouldFetch(force, fresh, len(cached)) {
		return cached, nil
	}

	fetched, fetchErr := s.tenants.FetchAll(ctx, inst)
	records, source := pickTenants(fetched, fetchErr, cached)
	if source == fromRemote {
		if err := s.tenantCache.SaveTenants(ctx, inst.ID, records); err != nil {
			log.Error().Err(err).Str("instance", inst.ID).Msg("tenant cache save failed")
		}
	}

	log.Debug().
		Str("instance", inst.ID).
		Bool("force", force).
		Bool("fresh", fresh).
		Str("source", source.String()).
		Int("tenants", len(records)).
		Msg("tenant snapshot resolved")
	return records, nil
}

// ListInternalUsers returns the internal users of one tenant. Without a
// subscriber, the subscriber of a cached tenant row with the same id is used.
// An empty accountType means the primary account type.
func (s *Service) ListInternalUsers(ctx context.Context, inst domain.Instance, tenantID, subscriber, accountType string, forceRefresh bool) ([]domain.InternalUser, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("%w: tenant id is required", domain.ErrValidation)
	}
	key, err := s.userKey(ctx, inst.ID, tenantID, subscriber, accountType)
	if err != nil {
		return nil, err
	}

	cached, fetchedAt, err := s.userCache.LoadInternalUsers(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load internal user cache: %w", err)
	}
	if !forceRefresh && IsFresh(s.clock.Now(), fetchedAt, s.ttl.InternalUserTTL) {
		return cached, nil
	}

	users, err := s.users.Fetch(ctx, inst, key.TenantID, key.Subscriber, key.AccountType)
	if err != nil {
		return nil, err
	}
	if err := s.userCache.SaveInternalUsers(ctx, key, users); err != nil {
		log.Error().Err(err).Str("instance", inst.ID).Str("tenant", key.TenantID).Msg("internal user cache save failed")
	}
	return users, nil
}

// userKey completes a cache key, inferring the subscriber from the tenant cache.
func (s *Service) userKey(ctx context.Context, instanceID, tenantID, subscriber, accountType string) (domain.InternalUserKey, error) {
	subscriber = strings.TrimSpace(subscriber)
	if subscriber == "" {
		cached, ok, err := s.tenantCache.SubscriberForTenant(ctx, instanceID, tenantID)
		if err != nil {
			return domain.InternalUserKey{}, fmt.Errorf("infer subscriber: %w", err)
		}
		if ok {
			subscriber = strings.TrimSpace(cached)
		}
	}
	if accountType == "" {
		accountType = s.desc.AccountTypePrimary
	}
	return domain.InternalUserKey{
		InstanceID:  instanceID,
		TenantID:    tenantID,
		Subscriber:  subscriber,
		AccountType: accountType,
	}, nil
}

// InvalidateTenantCache drops the tenant snapshot of the instance.
func (s *Service) InvalidateTenantCache(ctx context.Context, instanceID string) error {
	if instanceID == "" {
		return fmt.Errorf("%w: instance id is required", domain.ErrValidation)
	}
	if err := s.tenantCache.InvalidateTenants(ctx, instanceID); err != nil {
		return err
	}
	log.Info().Str("instance", instanceID).Msg("tenant cache invalidated")
	return nil
}

// InvalidateInternalUserCache drops the cached users of one key.
func (s *Service) InvalidateInternalUserCache(ctx context.Context, key domain.InternalUserKey) error {
	if key.InstanceID == "" || key.TenantID == "" {
		return fmt.Errorf("%w: instance id and tenant id are required", domain.ErrValidation)
	}
	key.Subscriber = strings.TrimSpace(key.Subscriber)
	if key.AccountType == "" {
		key.AccountType = s.desc.AccountTypePrimary
	}
	if err := s.userCache.InvalidateInternalUsers(ctx, key); err != nil {
		return err
	}
	log.Info().
		Str("instance", key.InstanceID).
		Str("tenant", key.TenantID).
		Str("account_type", key.AccountType).
		Msg("internal user cache invalidated")
	return nil
}

// invalidateAfterWrite is used after a remote write already succeeded, so a
// failure only leaves a stale entry behind until its TTL runs out.
func (s *Service) invalidateAfterWrite(ctx context.Context, key domain.InternalUserKey) {
	if err := s.InvalidateInternalUserCache(ctx, key); err != nil && !errors.Is(err, domain.ErrValidation) {
		log.Error().Err(err).Str("instance", key.InstanceID).Str("tenant", key.TenantID).Msg("internal user cache invalidation failed")
	}
}

// ApplyInvalidation drops the cache named by an invalidation event.
func (s *Service) ApplyInvalidation(ctx context.Context, inv domain.Invalidation) error {
	switch inv.Scope {
	case domain.ScopeTenants:
		return s.InvalidateTenantCache(ctx, inv.InstanceID)
	case domain.ScopeInternalUsers:
		return s.InvalidateInternalUserCache(ctx, inv.UserKey)
	default:
		return fmt.Errorf("%w: unknown invalidation scope %q", domain.ErrValidation, inv.Scope)
	}
}
