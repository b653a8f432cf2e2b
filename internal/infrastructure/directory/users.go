package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"vn.io.arda/onboarding/internal/domain"
	"vn.io.arda/onboarding/internal/schema"
)

// UserDirectory reads and writes the remote internal-user table. Unlike
// tenant lookups its failures are hard: they back user-facing actions.
type UserDirectory struct {
	dialer Dialer
	desc   *schema.Descriptor
}

// NewUserDirectory creates a UserDirectory.
func NewUserDirectory(dialer Dialer, desc *schema.Descriptor) *UserDirectory {
	return &UserDirectory{dialer: dialer, desc: desc}
}

// Fetch lists the users of accountType in the tenant, scoped to subscriber
// when one is given. For the OAuth account type an empty subscriber-scoped
// result is retried once without the subscriber filter.
// An instance without credentials yields an empty list.
func (d *UserDirectory) Fetch(ctx context.Context, inst domain.Instance, tenantID, subscriber, accountType string) ([]domain.InternalUser, error) {
	if !inst.HasCredentials() {
		return []domain.InternalUser{}, nil
	}

	conn, err := d.dial(ctx, inst)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	users, err := d.fetch(ctx, conn, tenantID, subscriber, accountType)
	if err != nil {
		return nil, err
	}
	if subscriber != "" && len(users) == 0 && accountType == d.desc.AccountTypeOAuth {
		log.Debug().Str("instance", inst.ID).Str("tenant", tenantID).Msg("no oauth users for subscriber, retrying tenant-wide")
		return d.fetch(ctx, conn, tenantID, "", accountType)
	}
	return users, nil
}

func (d *UserDirectory) fetch(ctx context.Context, q Querier, tenantID, subscriber, accountType string) ([]domain.InternalUser, error) {
	u := d.desc.User
	b := schema.Builder().
		Select(
			schema.Text(u.ID),
			schema.Text(u.FirstName),
			schema.Text(u.LastName),
			schema.Text(u.Username),
			schema.Text(u.Email),
			schema.Text(u.AccountType),
		).
		From(u.Table.Quoted()).
		Where(schema.Eq(u.AccountType, accountType)).
		Where(schema.Match(u.Tenant, u.TenantMode, tenantID))
	if subscriber != "" {
		b = b.Where(schema.Eq(u.Subscriber, subscriber))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build user query: %w", err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: user lookup: %v", domain.ErrDirectoryUnavailable, err)
	}
	defer rows.Close()

	users := []domain.InternalUser{}
	for rows.Next() {
		var id, first, last, username, email, acct *string
		if err := rows.Scan(&id, &first, &last, &username, &email, &acct); err != nil {
			return nil, fmt.Errorf("%w: scan user: %v", domain.ErrDirectoryUnavailable, err)
		}
		users = append(users, domain.InternalUser{
			ID:          id,
			Name:        DisplayName(first, last, username, email),
			Email:       email,
			AccountType: domain.Deref(acct),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: user lookup: %v", domain.ErrDirectoryUnavailable, err)
	}
	return users, nil
}

// DisplayName composes first and last name, falling back to the username,
// then the email. The first non-empty value wins.
func DisplayName(first, last, username, email *string) *string {
	if name := domain.ComposeName(first, last); name != nil {
		return name
	}
	if v := textOrNil(username); v != nil {
		return v
	}
	return textOrNil(email)
}

// Defaults reads one existing user of accountType in the tenant. Returns nil
// when the tenant has no such user yet.
func (d *UserDirectory) Defaults(ctx context.Context, q Querier, tenantID, subscriber, accountType string) (*domain.UserDefaults, error) {
	u := d.desc.User
	b := schema.Builder().
		Select(
			schema.TextArray(u.RoleIDs),
			schema.TextArray(u.GroupIDs),
			schema.Text(u.Status),
			schema.Text(u.Verification),
			schema.Text(u.CreatedBy),
			schema.Text(u.UpdatedBy),
			schema.Ident(u.EmailSent),
		).
		From(u.Table.Quoted()).
		Where(schema.Eq(u.AccountType, accountType)).
		Where(schema.Match(u.Tenant, u.TenantMode, tenantID)).
		Limit(1)
	if subscriber != "" {
		b = b.Where(schema.Eq(u.Subscriber, subscriber))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build defaults query: %w", err)
	}

	var def domain.UserDefaults
	err = q.QueryRow(ctx, query, args...).Scan(
		&def.RoleIDs, &def.GroupIDs, &def.Status, &def.VerificationStatus,
		&def.CreatedBy, &def.UpdatedBy, &def.EmailSent,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read user defaults: %w", err)
	}
	return &def, nil
}

// Create inserts a new internal user. Role ids, group ids, status,
// verification, audit columns and the email-sent flag are copied from an
// existing user of the same account type; empty role and group ids are
// resolved from the role and group tables, and remaining gaps take the
// configured defaults. Returns the new user id.
func (d *UserDirectory) Create(ctx context.Context, inst domain.Instance, nu domain.NewInternalUser) (string, error) {
	conn, err := d.dial(ctx, inst)
	if err != nil {
		return "", err
	}
	defer conn.Close(ctx)

	var subscriber string
	if nu.Subscriber != nil {
		subscriber = *nu.Subscriber
	}

	inherited, err := d.Defaults(ctx, conn, nu.TenantID, subscriber, nu.AccountType)
	if err != nil {
		return "", err
	}
	ApplyDefaults(&nu, inherited, d.desc.Defaults)
	if len(nu.RoleIDs) == 0 {
		nu.RoleIDs = ResolveIDs(ctx, conn, IDLookup{Table: d.desc.Role, TenantID: nu.TenantID, Subscriber: subscriber})
	}
	if len(nu.GroupIDs) == 0 {
		nu.GroupIDs = ResolveIDs(ctx, conn, IDLookup{Table: d.desc.Group, TenantID: nu.TenantID, Subscriber: subscriber})
	}

	u := d.desc.User
	query, args, err := schema.Builder().
		Insert(u.Table.Quoted()).
		Columns(
			schema.Ident(u.FirstName), schema.Ident(u.LastName), schema.Ident(u.Username),
			schema.Ident(u.Email), schema.Ident(u.Password), schema.Ident(u.Subscriber),
			schema.Ident(u.Tenant), schema.Ident(u.RoleIDs), schema.Ident(u.GroupIDs),
			schema.Ident(u.Status), schema.Ident(u.Verification), schema.Ident(u.CreatedBy),
			schema.Ident(u.UpdatedBy), schema.Ident(u.AccountType), schema.Ident(u.EmailSent),
		).
		Values(
			nu.FirstName, nu.LastName, nu.Username,
			nu.Email, nu.PasswordHash, nu.Subscriber,
			schema.TenantValue(u.TenantMode, nu.TenantID), nu.RoleIDs, nu.GroupIDs,
			nu.Status, nu.VerificationStatus, nu.CreatedBy,
			nu.UpdatedBy, nu.AccountType, nu.EmailSent,
		).
		Suffix("RETURNING " + schema.Text(u.ID)).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert: %w", err)
	}

	var id string
	if err := conn.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("insert internal user: %w", err)
	}

	log.Info().Str("instance", inst.ID).Str("tenant", nu.TenantID).Str("user", id).Msg("internal user created")
	return id, nil
}

// ApplyDefaults fills nu from inherited, then from fallback.
func ApplyDefaults(nu *domain.NewInternalUser, inherited *domain.UserDefaults, fallback schema.UserDefaults) {
	if inherited == nil {
		inherited = &domain.UserDefaults{}
	}
	if len(nu.RoleIDs) == 0 {
		nu.RoleIDs = inherited.RoleIDs
	}
	if len(nu.GroupIDs) == 0 {
		nu.GroupIDs = inherited.GroupIDs
	}
	nu.Status = firstNonEmpty(nu.Status, domain.Deref(inherited.Status), fallback.Status)
	nu.VerificationStatus = firstNonEmpty(nu.VerificationStatus, domain.Deref(inherited.VerificationStatus), fallback.VerificationStatus)
	nu.CreatedBy = firstNonEmpty(nu.CreatedBy, domain.Deref(inherited.CreatedBy), fallback.CreatedBy)
	nu.UpdatedBy = firstNonEmpty(nu.UpdatedBy, domain.Deref(inherited.UpdatedBy), fallback.UpdatedBy)
	if inherited.EmailSent != nil {
		nu.EmailSent = *inherited.EmailSent
	} else {
		nu.EmailSent = fallback.EmailSent
	}
}

// UpdatePassword sets the password hash of a primary-account-type user in the
// tenant. Returns domain.ErrNotFound when no row matched.
func (d *UserDirectory) UpdatePassword(ctx context.Context, inst domain.Instance, tenantID, subscriber, userID, hash string) error {
	conn, err := d.dial(ctx, inst)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	u := d.desc.User
	b := schema.Builder().
		Update(u.Table.Quoted()).
		Set(schema.Ident(u.Password), hash).
		Where(schema.Eq(u.ID, userID)).
		Where(schema.Eq(u.AccountType, d.desc.AccountTypePrimary)).
		Where(schema.Match(u.Tenant, u.TenantMode, tenantID))
	if subscriber != "" {
		b = b.Where(schema.Eq(u.Subscriber, subscriber))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build password update: %w", err)
	}

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s in tenant %s", domain.ErrNotFound, userID, tenantID)
	}
	return nil
}

func (d *UserDirectory) dial(ctx context.Context, inst domain.Instance) (Conn, error) {
	conn, err := d.dialer.Dial(ctx, inst)
	if errors.Is(err, ErrMissingCredentials) {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDirectoryUnavailable, err)
	}
	return conn, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
