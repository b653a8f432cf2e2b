package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vn.io.arda/onboarding/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(t0)

	s, err := Open(context.Background(), InMemory, clk)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, clk
}

func name(s string) *string { return &s }

func TestOpen_MigratesOnce(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var version int
	require.NoError(t, s.DB.GetContext(ctx, &version, "PRAGMA user_version"))
	assert.Equal(t, 2, version)

	require.NoError(t, s.migrate(ctx))
	require.NoError(t, s.DB.GetContext(ctx, &version, "PRAGMA user_version"))
	assert.Equal(t, 2, version)
}

func TestScriptVersion(t *testing.T) {
	v, err := scriptVersion("0012_add_index.sql")
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	_, err = scriptVersion("initial.sql")
	require.Error(t, err)
}

func TestTenantCache_SaveAndLoad(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	err := s.SaveTenants(ctx, "i1", []domain.TenantRecord{
		{TenantID: "T2", Subscriber: "S2", MatchValue: "Zeta@x.com"},
		{TenantID: "T1", Subscriber: "S1", TenantName: name("Acme"), MatchValue: "ops@acme.com"},
		{TenantID: "T3", Subscriber: "S3", MatchValue: "zeta@x.com"},
		{TenantID: "T4", MatchValue: "  "},
	})
	require.NoError(t, err)

	records, fetchedAt, err := s.LoadTenants(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, t0.Format(time.RFC3339Nano), fetchedAt)
	assert.Equal(t, []domain.TenantRecord{
		{TenantID: "T1", Subscriber: "S1", TenantName: name("Acme"), MatchValue: "ops@acme.com"},
		{TenantID: "T3", Subscriber: "S3", MatchValue: "zeta@x.com"},
	}, records)

	other, fetchedAt, err := s.LoadTenants(ctx, "i2")
	require.NoError(t, err)
	assert.Empty(t, other)
	assert.Empty(t, fetchedAt)
}

func TestTenantCache_EmptySaveKeepsSnapshot(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTenants(ctx, "i1", []domain.TenantRecord{
		{TenantID: "T1", Subscriber: "S1", MatchValue: "acme"},
	}))
	clk.Add(time.Hour)

	require.NoError(t, s.SaveTenants(ctx, "i1", nil))
	require.NoError(t, s.SaveTenants(ctx, "i1", []domain.TenantRecord{{TenantID: "T9", MatchValue: ""}}))

	records, fetchedAt, err := s.LoadTenants(ctx, "i1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "T1", records[0].TenantID)
	assert.Equal(t, t0.Format(time.RFC3339Nano), fetchedAt)
}

func TestTenantCache_SaveReplacesWholeSnapshot(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTenants(ctx, "i1", []domain.TenantRecord{
		{TenantID: "T1", MatchValue: "acme"},
		{TenantID: "T2", MatchValue: "globex"},
	}))
	clk.Add(time.Minute)
	require.NoError(t, s.SaveTenants(ctx, "i1", []domain.TenantRecord{
		{TenantID: "T3", MatchValue: "initech"},
	}))

	records, fetchedAt, err := s.LoadTenants(ctx, "i1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "initech", records[0].MatchValue)
	assert.Equal(t, t0.Add(time.Minute).Format(time.RFC3339Nano), fetchedAt)
}

func TestTenantCache_InvalidateAndSubscriber(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTenants(ctx, "i1", []domain.TenantRecord{
		{TenantID: "T1", Subscriber: "", MatchValue: "a"},
		{TenantID: "T1", Subscriber: "S1", MatchValue: "b"},
	}))
	require.NoError(t, s.SaveTenants(ctx, "i2", []domain.TenantRecord{
		{TenantID: "T1", Subscriber: "S9", MatchValue: "a"},
	}))

	sub, ok, err := s.SubscriberForTenant(ctx, "i1", "T1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "S1", sub)

	_, ok, err = s.SubscriberForTenant(ctx, "i1", "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.InvalidateTenants(ctx, "i1"))
	records, _, err := s.LoadTenants(ctx, "i1")
	require.NoError(t, err)
	assert.Empty(t, records)

	records, _, err = s.LoadTenants(ctx, "i2")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestInternalUserCache_FullReplace(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()
	key := domain.InternalUserKey{InstanceID: "i1", TenantID: "T1", Subscriber: "S1", AccountType: "oauth"}
	otherKey := key
	otherKey.AccountType = "credentials"

	require.NoError(t, s.SaveInternalUsers(ctx, key, []domain.InternalUser{
		{ID: name("u2"), Name: name("Zed"), AccountType: "oauth"},
		{ID: name("u1"), Name: name("Ada"), Email: name("ada@acme.com"), AccountType: "oauth"},
		{ID: nil, Name: name("no id"), AccountType: "oauth"},
	}))
	require.NoError(t, s.SaveInternalUsers(ctx, otherKey, []domain.InternalUser{
		{ID: name("u3"), AccountType: "credentials"},
	}))

	users, fetchedAt, err := s.LoadInternalUsers(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, t0.Format(time.RFC3339Nano), fetchedAt)
	assert.Equal(t, []domain.InternalUser{
		{ID: name("u2"), Name: name("Zed"), AccountType: "oauth"},
		{ID: name("u1"), Name: name("Ada"), Email: name("ada@acme.com"), AccountType: "oauth"},
		{ID: nil, Name: name("no id"), AccountType: "oauth"},
	}, users)

	clk.Add(time.Minute)
	require.NoError(t, s.SaveInternalUsers(ctx, key, []domain.InternalUser{}))
	var count int
	require.NoError(t, s.DB.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM internal_user_cache WHERE instance_id = ? AND tenant_id = ? AND subscriber = ? AND account_type = ?",
		key.InstanceID, key.TenantID, key.Subscriber, key.AccountType))
	assert.Zero(t, count)

	// the empty set is still cached, with its own stamp
	users, fetchedAt, err = s.LoadInternalUsers(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Equal(t, t0.Add(time.Minute).Format(time.RFC3339Nano), fetchedAt)

	others, _, err := s.LoadInternalUsers(ctx, otherKey)
	require.NoError(t, err)
	assert.Len(t, others, 1)

	require.NoError(t, s.InvalidateInternalUsers(ctx, otherKey))
	others, fetchedAt, err = s.LoadInternalUsers(ctx, otherKey)
	require.NoError(t, err)
	assert.Empty(t, others)
	assert.Empty(t, fetchedAt)
}

func TestInternalUserCache_UsersWithoutIDAndDuplicates(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	key := domain.InternalUserKey{InstanceID: "i1", TenantID: "T1", AccountType: "credentials"}

	require.NoError(t, s.SaveInternalUsers(ctx, key, []domain.InternalUser{
		{ID: nil, Name: name("Bob"), AccountType: "credentials"},
		{ID: name("u1"), Name: name("Ann"), AccountType: "credentials"},
		{ID: nil, Name: name("Cy"), AccountType: "credentials"},
		{ID: name("u1"), Name: name("Ann B."), AccountType: "credentials"},
	}))

	users, _, err := s.LoadInternalUsers(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []domain.InternalUser{
		{ID: nil, Name: name("Bob"), AccountType: "credentials"},
		{ID: nil, Name: name("Cy"), AccountType: "credentials"},
		{ID: name("u1"), Name: name("Ann B."), AccountType: "credentials"},
	}, users)
}

func seedDirectory(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO instances (id, name, pg_host, pg_port, pg_user, pg_password) VALUES
			('i1', 'Prod', 'db.prod', '6432', 'svc', 'secret'),
			('i2', 'Staging', NULL, NULL, NULL, NULL);
		INSERT INTO customers (id, name, contact_email, instance_id, created_at, updated_at) VALUES
			('c1', 'Acme', 'ops@acme.com', 'i1', '2026-01-01 00:00:00', '2026-01-01 00:00:00'),
			('c2', 'Globex', NULL, NULL, '2026-01-02 00:00:00', '2026-01-02 00:00:00');
	`)
	require.NoError(t, err)
}

func TestCustomers(t *testing.T) {
	s, _ := newTestStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	customers, err := s.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, "c1", customers[0].ID)
	assert.Equal(t, "Prod", *customers[0].InstanceName)
	assert.Equal(t, "ops@acme.com", *customers[0].ContactEmail)
	require.NotNil(t, customers[0].CreatedAt)
	assert.Equal(t, 2026, customers[0].CreatedAt.Year())
	assert.Nil(t, customers[1].InstanceID)
	assert.Nil(t, customers[1].InstanceName)

	c, err := s.GetCustomer(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, "Globex", *c.Name)

	_, err = s.GetCustomer(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoadInstances(t *testing.T) {
	s, _ := newTestStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	all, err := s.LoadInstances(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.Instance{ID: "i1", Name: "Prod", PGHost: "db.prod", PGPort: "6432", PGUser: "svc", PGPassword: "secret"}, all["i1"])
	assert.False(t, all["i2"].HasCredentials())

	some, err := s.LoadInstances(ctx, []string{"i2", "missing"})
	require.NoError(t, err)
	assert.Len(t, some, 1)
	assert.Contains(t, some, "i2")

	none, err := s.LoadInstances(ctx, []string{})
	require.NoError(t, err)
	assert.Empty(t, none)
}
