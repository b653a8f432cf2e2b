package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"vn.io.arda/onboarding/internal/config"
	"vn.io.arda/onboarding/internal/domain"
	"vn.io.arda/onboarding/internal/infrastructure/sqlite"
	"vn.io.arda/onboarding/internal/schema"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeTenants struct {
	byInstance map[string][]domain.TenantRecord
	err        error
	fetchAll   int
	fetchKeys  int
}

func (f *fakeTenants) FetchAll(_ context.Context, inst domain.Instance) ([]domain.TenantRecord, error) {
	f.fetchAll++
	if f.err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, f.err)
	}
	return append([]domain.TenantRecord(nil), f.byInstance[inst.ID]...), nil
}

func (f *fakeTenants) FetchByKeys(_ context.Context, inst domain.Instance, keys []string) (map[string]domain.TenantRecord, error) {
	f.fetchKeys++
	out := make(map[string]domain.TenantRecord)
	if f.err != nil {
		return out, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, f.err)
	}
	for _, k := range keys {
		for _, r := range f.byInstance[inst.ID] {
			if r.MatchValue == k {
				out[k] = r
			}
		}
	}
	return out, nil
}

type fetchCall struct {
	tenantID, subscriber, accountType string
}

type passwordCall struct {
	tenantID, subscriber, userID, hash string
}

type fakeUsers struct {
	users     []domain.InternalUser
	err       error
	fetches   []fetchCall
	created   []domain.NewInternalUser
	createErr error
	passwords []passwordCall
	updateErr error
}

func (f *fakeUsers) Fetch(_ context.Context, _ domain.Instance, tenantID, subscriber, accountType string) ([]domain.InternalUser, error) {
	f.fetches = append(f.fetches, fetchCall{tenantID, subscriber, accountType})
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.InternalUser{}, f.users...), nil
}

func (f *fakeUsers) Create(_ context.Context, _ domain.Instance, nu domain.NewInternalUser) (string, error) {
	f.created = append(f.created, nu)
	if f.createErr != nil {
		return "", f.createErr
	}
	return fmt.Sprintf("user-%d", len(f.created)), nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, _ domain.Instance, tenantID, subscriber, userID, hash string) error {
	f.passwords = append(f.passwords, passwordCall{tenantID, subscriber, userID, hash})
	return f.updateErr
}

type harness struct {
	svc     *Service
	store   *sqlite.Store
	clock   *clock.Mock
	tenants *fakeTenants
	users   *fakeUsers
}

// newHarness wires a Service over an in-memory store. matchColumn selects
// the remote tenant match column.
func newHarness(t *testing.T, matchColumn string) *harness {
	t.Helper()
	ctx := context.Background()

	clk := clock.NewMock()
	clk.Set(t0)

	store, err := sqlite.Open(ctx, sqlite.InMemory, clk)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.Schema.TenantMatchColumn = matchColumn
	desc, err := schema.Build(cfg.Schema)
	require.NoError(t, err)

	h := &harness{
		store:   store,
		clock:   clk,
		tenants: &fakeTenants{byInstance: map[string][]domain.TenantRecord{}},
		users:   &fakeUsers{},
	}
	h.svc = NewService(Deps{
		Schema:      desc,
		Cache:       cfg.Cache,
		Clock:       clk,
		Tenants:     h.tenants,
		Users:       h.users,
		TenantCache: store,
		UserCache:   store,
		Customers:   store,
	})
	return h
}

func (h *harness) exec(t *testing.T, query string, args ...any) {
	t.Helper()
	_, err := h.store.DB.ExecContext(context.Background(), query, args...)
	require.NoError(t, err)
}

func (h *harness) addInstance(t *testing.T, id, name string) domain.Instance {
	t.Helper()
	h.exec(t, `INSERT INTO instances (id, name, pg_host, pg_port, pg_user, pg_password) VALUES (?, ?, 'db', '5432', 'svc', 'secret')`, id, name)
	return domain.Instance{ID: id, Name: name, PGHost: "db", PGPort: "5432", PGUser: "svc", PGPassword: "secret"}
}

func (h *harness) addCustomer(t *testing.T, id, name string, email, instanceID *string) {
	t.Helper()
	h.exec(t, `INSERT INTO customers (id, name, contact_email, instance_id) VALUES (?, ?, ?, ?)`, id, name, email, instanceID)
}

func ptr(s string) *string { return &s }
