package application

import (
	"context"
	"fmt"
	"sort"

	"vn.io.arda/onboarding/internal/domain"
)

// placeholderName is shown for an unmatched tenant with neither name nor match value.
const placeholderName = "—"

// Reconcile attaches tenant fields to a copy of customers and appends one
// placeholder record per tenant no customer matched. Instances are processed
// in id order so the output is stable for a stable cache.
func (s *Service) Reconcile(ctx context.Context, customers []domain.Customer, instances map[string]domain.Instance, forceRefresh bool) ([]domain.Customer, error) {
	out := make([]domain.Customer, len(customers))
	copy(out, customers)
	local := len(out)

	ids := make([]string, 0, len(instances))
	for id := range instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		inst := instances[id]
		tenants, err := s.tenantsFor(ctx, inst, forceRefresh)
		if err != nil {
			return nil, fmt.Errorf("tenants of instance %s: %w", id, err)
		}
		if len(tenants) == 0 {
			continue
		}

		byKey := make(map[string]domain.TenantRecord, len(tenants))
		for _, t := range tenants {
			byKey[t.MatchValue] = t
		}

		matchedKeys := make(map[string]struct{})
		matchedTenants := make(map[string]struct{})
		for i := 0; i < local; i++ {
			c := &out[i]
			if domain.Deref(c.InstanceID) != id {
				continue
			}
			key := s.matchKey(*c)
			if key == "" {
				continue
			}
			matchedKeys[key] = struct{}{}
			t, ok := byKey[key]
			if !ok {
				continue
			}
			attachTenant(c, t)
			matchedTenants[t.TenantID] = struct{}{}
		}

		for _, t := range tenants {
			if _, ok := matchedTenants[t.TenantID]; ok {
				continue
			}
			if _, ok := matchedKeys[t.MatchValue]; ok {
				continue
			}
			out = append(out, placeholder(inst, t))
		}
	}
	return out, nil
}

// matchKey is the customer's lower-cased contact email or name, depending on
// what the remote match column holds.
func (s *Service) matchKey(c domain.Customer) string {
	if s.desc.Tenant.MatchesEmail() {
		return domain.NormalizeMatchValue(domain.Deref(c.ContactEmail))
	}
	return domain.NormalizeMatchValue(domain.Deref(c.Name))
}

func attachTenant(c *domain.Customer, t domain.TenantRecord) {
	tenantID := t.TenantID
	subscriber := t.Subscriber
	c.TenantID = &tenantID
	c.Subscriber = &subscriber
	c.TenantName = t.TenantName
}

func placeholder(inst domain.Instance, t domain.TenantRecord) domain.Customer {
	name := placeholderName
	switch {
	case domain.Deref(t.TenantName) != "":
		name = *t.TenantName
	case t.MatchValue != "":
		name = t.MatchValue
	}
	instanceID := inst.ID

	c := domain.Customer{
		ID:           fmt.Sprintf("%s%s:%s", domain.PlaceholderPrefix, inst.ID, t.TenantID),
		Name:         &name,
		InstanceID:   &instanceID,
		InstanceName: domain.StringPtr(inst.Name),
	}
	attachTenant(&c, t)
	return c
}

// ListCustomers returns every local customer reconciled against every instance.
func (s *Service) ListCustomers(ctx context.Context, forceRefresh bool) ([]domain.Customer, error) {
	customers, err := s.customers.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	instances, err := s.customers.LoadInstances(ctx, nil)
	if err != nil {
		return nil, err
	}
	return s.Reconcile(ctx, customers, instances, forceRefresh)
}

// ListInternalUsersForCustomer resolves the customer's tenant from the
// instance snapshot and lists its primary-account-type users. A customer
// without an instance, a match key or a matched tenant has no users.
func (s *Service) ListInternalUsersForCustomer(ctx context.Context, customerID string) ([]domain.InternalUser, error) {
	c, err := s.customers.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	none := []domain.InternalUser{}

	instanceID := domain.Deref(c.InstanceID)
	if instanceID == "" {
		return none, nil
	}
	instances, err := s.customers.LoadInstances(ctx, []string{instanceID})
	if err != nil {
		return nil, err
	}
	inst, ok := instances[instanceID]
	if !ok {
		return none, nil
	}

	key := s.matchKey(*c)
	if key == "" {
		return none, nil
	}
	tenants, err := s.tenantsFor(ctx, inst, false)
	if err != nil {
		return nil, err
	}
	for _, t := range tenants {
		if t.MatchValue != key {
			continue
		}
		if t.TenantID == "" || t.Subscriber == "" {
			return none, nil
		}
		return s.ListInternalUsers(ctx, inst, t.TenantID, t.Subscriber, s.desc.AccountTypePrimary, false)
	}
	return none, nil
}
