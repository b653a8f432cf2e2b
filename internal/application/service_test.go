package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vn.io.arda/onboarding/internal/domain"
)

func TestIsFresh(t *testing.T) {
	ttl := 900 * time.Second
	stamp := t0.Format(time.RFC3339Nano)

	assert.True(t, IsFresh(t0, stamp, ttl))
	assert.True(t, IsFresh(t0.Add(ttl), stamp, ttl))
	assert.False(t, IsFresh(t0.Add(ttl+time.Second), stamp, ttl))
	assert.False(t, IsFresh(t0, "", ttl))
	assert.False(t, IsFresh(t0, "yesterday", ttl))
	assert.True(t, IsFresh(t0.Add(time.Minute), "2026-03-01T12:00:00", ttl))
	assert.True(t, IsFresh(t0, "2026-03-01T13:00:00+01:00", ttl))
}

func TestRefreshDecisionTable(t *testing.T) {
	tests := []struct {
		name       string
		force      bool
		fresh      bool
		cachedRows int
		want       bool
	}{
		{"fresh cache served", false, true, 3, false},
		{"forced", true, true, 3, true},
		{"stale", false, false, 3, true},
		{"empty", false, true, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldFetch(tt.force, tt.fresh, tt.cachedRows))
		})
	}

	cached := []domain.TenantRecord{{TenantID: "old", MatchValue: "a"}}
	fetched := []domain.TenantRecord{{TenantID: "new", MatchValue: "A"}}

	got, src := pickTenants(fetched, nil, cached)
	assert.Equal(t, fromRemote, src)
	assert.Equal(t, []domain.TenantRecord{{TenantID: "new", MatchValue: "a"}}, got)

	got, src = pickTenants(nil, nil, cached)
	assert.Equal(t, fromStaleCache, src)
	assert.Equal(t, cached, got)

	got, src = pickTenants(nil, domain.ErrRemoteUnavailable, cached)
	assert.Equal(t, fromStaleCache, src)
	assert.Equal(t, cached, got)
}

func TestListTenants_RefreshPolicy(t *testing.T) {
	h := newHarness(t, "name")
	ctx := context.Background()
	inst := h.addInstance(t, "i1", "Prod")
	h.tenants.byInstance["i1"] = []domain.TenantRecord{
		{TenantID: "T2", Subscriber: "S2", MatchValue: "globex"},
		{TenantID: "T1", Subscriber: "S1", MatchValue: "acme"},
	}

	got, err := h.svc.ListTenants(ctx, inst, false)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "acme", got[0].MatchValue)
	assert.Equal(t, 1, h.tenants.fetchAll)

	// fresh cache
	_, err = h.svc.ListTenants(ctx, inst, false)
	require.NoError(t, err)
	assert.Equal(t, 1, h.tenants.fetchAll)

	// forced
	_, err = h.svc.ListTenants(ctx, inst, true)
	require.NoError(t, err)
	assert.Equal(t, 2, h.tenants.fetchAll)

	// stale and remote down: previous snapshot still served
	h.clock.Add(16 * time.Minute)
	h.tenants.err = errors.New("connection refused")
	got, err = h.svc.ListTenants(ctx, inst, false)
	require.NoError(t, err)
	assert.Equal(t, 3, h.tenants.fetchAll)
	assert.Len(t, got, 2)

	// remote up but empty: cache is not overwritten
	h.tenants.err = nil
	h.tenants.byInstance["i1"] = nil
	got, err = h.svc.ListTenants(ctx, inst, true)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	cached, _, err := h.store.LoadTenants(ctx, "i1")
	require.NoError(t, err)
	assert.Len(t, cached, 2)
}

func TestResolveTenant(t *testing.T) {
	h := newHarness(t, "name")
	ctx := context.Background()
	inst := h.addInstance(t, "i1", "Prod")
	h.tenants.byInstance["i1"] = []domain.TenantRecord{{TenantID: "T1", Subscriber: "S1", MatchValue: "acme"}}

	rec, err := h.svc.ResolveTenant(ctx, inst, "  ACME ")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "T1", rec.TenantID)

	rec, err = h.svc.ResolveTenant(ctx, inst, "initech")
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = h.svc.ResolveTenant(ctx, inst, " ")
	require.ErrorIs(t, err, domain.ErrValidation)

	h.tenants.err = errors.New("timeout")
	rec, err = h.svc.ResolveTenant(ctx, inst, "acme")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestListInternalUsers_Cache(t *testing.T) {
	h := newHarness(t, "name")
	ctx := context.Background()
	inst := h.addInstance(t, "i1", "Prod")
	h.users.users = []domain.InternalUser{{ID: ptr("u1"), Name: ptr("Ada"), AccountType: "credentials"}}

	got, err := h.svc.ListInternalUsers(ctx, inst, "T1", "S1", "", false)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, []fetchCall{{"T1", "S1", "credentials"}}, h.users.fetches)

	got, err = h.svc.ListInternalUsers(ctx, inst, "T1", "S1", "", false)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Len(t, h.users.fetches, 1)

	h.clock.Add(5*time.Minute + time.Second)
	_, err = h.svc.ListInternalUsers(ctx, inst, "T1", "S1", "", false)
	require.NoError(t, err)
	assert.Len(t, h.users.fetches, 2)

	_, err = h.svc.ListInternalUsers(ctx, inst, "T1", "S1", "", true)
	require.NoError(t, err)
	assert.Len(t, h.users.fetches, 3)
}

func TestListInternalUsers_EmptyResultReplacesCache(t *testing.T) {
	h := newHarness(t, "name")
	ctx := context.Background()
	inst := h.addInstance(t, "i1", "Prod")
	key := domain.InternalUserKey{InstanceID: "i1", TenantID: "T1", Subscriber: "S1", AccountType: "oauth"}
	require.NoError(t, h.store.SaveInternalUsers(ctx, key, []domain.InternalUser{{ID: ptr("gone"), AccountType: "oauth"}}))

	got, err := h.svc.ListInternalUsers(ctx, inst, "T1", "S1", "oauth", true)
	require.NoError(t, err)
	assert.Empty(t, got)

	cached, _, err := h.store.LoadInternalUsers(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, cached)
}

func TestListInternalUsers_InfersSubscriber(t *testing.T) {
	h := newHarness(t, "name")
	ctx := context.Background()
	inst := h.addInstance(t, "i1", "Prod")
	require.NoError(t, h.store.SaveTenants(ctx, "i1", []domain.TenantRecord{{TenantID: "T1", Subscriber: " S1 ", MatchValue: "acme"}}))

	_, err := h.svc.ListInternalUsers(ctx, inst, "T1", "", "oauth", false)
	require.NoError(t, err)
	assert.Equal(t, []fetchCall{{"T1", "S1", "oauth"}}, h.users.fetches)

	_, err = h.svc.ListInternalUsers(ctx, inst, "T9", "", "oauth", false)
	require.NoError(t, err)
	assert.Equal(t, fetchCall{"T9", "", "oauth"}, h.users.fetches[1])
}

func TestListInternalUsers_DirectoryFailureSurfaces(t *testing.T) {
	h := newHarness(t, "name")
	ctx := context.Background()
	inst := h.addInstance(t, "i1", "Prod")
	h.users.err = domain.ErrDirectoryUnavailable

	_, err := h.svc.ListInternalUsers(ctx, inst, "T1", "S1", "", false)
	require.ErrorIs(t, err, domain.ErrDirectoryUnavailable)

	_, err = h.svc.ListInternalUsers(ctx, inst, "", "S1", "", false)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestInvalidate(t *testing.T) {
	h := newHarness(t, "name")
	ctx := context.Background()
	require.NoError(t, h.store.SaveTenants(ctx, "i1", []domain.TenantRecord{{TenantID: "T1", MatchValue: "acme"}}))
	key := domain.InternalUserKey{InstanceID: "i1", TenantID: "T1", Subscriber: "S1", AccountType: "credentials"}
	require.NoError(t, h.store.SaveInternalUsers(ctx, key, []domain.InternalUser{{ID: ptr("u1")}}))

	require.NoError(t, h.svc.InvalidateTenantCache(ctx, "i1"))
	tenants, _, err := h.store.LoadTenants(ctx, "i1")
	require.NoError(t, err)
	assert.Empty(t, tenants)

	require.NoError(t, h.svc.InvalidateInternalUserCache(ctx, domain.InternalUserKey{InstanceID: "i1", TenantID: "T1", Subscriber: " S1"}))
	users, _, err := h.store.LoadInternalUsers(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, users)

	require.ErrorIs(t, h.svc.InvalidateTenantCache(ctx, ""), domain.ErrValidation)
}

func TestApplyInvalidation(t *testing.T) {
	h := newHarness(t, "name")
	ctx := context.Background()
	require.NoError(t, h.store.SaveTenants(ctx, "i1", []domain.TenantRecord{{TenantID: "T1", MatchValue: "acme"}}))
	key := domain.InternalUserKey{InstanceID: "i1", TenantID: "T1", AccountType: "oauth"}
	require.NoError(t, h.store.SaveInternalUsers(ctx, key, []domain.InternalUser{{ID: ptr("u1")}}))

	require.NoError(t, h.svc.ApplyInvalidation(ctx, domain.Invalidation{Scope: domain.ScopeTenants, InstanceID: "i1"}))
	tenants, _, err := h.store.LoadTenants(ctx, "i1")
	require.NoError(t, err)
	assert.Empty(t, tenants)

	require.NoError(t, h.svc.ApplyInvalidation(ctx, domain.Invalidation{Scope: domain.ScopeInternalUsers, UserKey: key}))
	users, _, err := h.store.LoadInternalUsers(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, users)

	require.ErrorIs(t, h.svc.ApplyInvalidation(ctx, domain.Invalidation{Scope: "BOGUS"}), domain.ErrValidation)
}

func TestListInternalUsers_EmptyResultIsCached(t *testing.T) {
	h := newHarness(t, "name")
	ctx := context.Background()
	inst := h.addInstance(t, "i1", "Prod")

	for i := 0; i < 3; i++ {
		got, err := h.svc.ListInternalUsers(ctx, inst, "T2", "S2", "oauth", false)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	assert.Len(t, h.users.fetches, 1)

	h.clock.Add(5*time.Minute + time.Second)
	_, err := h.svc.ListInternalUsers(ctx, inst, "T2", "S2", "oauth", false)
	require.NoError(t, err)
	assert.Len(t, h.users.fetches, 2)
}

func TestListInternalUsers_UserWithoutIDSurvivesCache(t *testing.T) {
	h := newHarness(t, "name")
	ctx := context.Background()
	inst := h.addInstance(t, "i1", "Prod")
	h.users.users = []domain.InternalUser{
		{ID: ptr("u1"), Name: ptr("Ann"), AccountType: "credentials"},
		{ID: nil, Name: ptr("Bob"), AccountType: "credentials"},
	}

	remote, err := h.svc.ListInternalUsers(ctx, inst, "T1", "S1", "", false)
	require.NoError(t, err)
	cached, err := h.svc.ListInternalUsers(ctx, inst, "T1", "S1", "", false)
	require.NoError(t, err)

	assert.Len(t, h.users.fetches, 1)
	require.Len(t, cached, 2)
	assert.Equal(t, remote, cached)
	assert.Nil(t, cached[1].ID)
}
