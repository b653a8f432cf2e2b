// Package schema describes the remote directory tables by name and builds
// injection-safe SQL fragments against them. Names come from configuration
// only; values always travel as bound parameters.
package schema

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"vn.io.arda/onboarding/internal/config"
	"vn.io.arda/onboarding/internal/domain"
)

// MatchMode selects the shape of the tenant predicate.
type MatchMode int

const (
	// Exact renders `column = $n`.
	Exact MatchMode = iota
	// AnyOfArray renders `$n = ANY(column)` for array-typed tenant columns.
	AnyOfArray
)

func (m MatchMode) String() string {
	if m == AnyOfArray {
		return "any-of-array"
	}
	return "exact"
}

// ParseMatchMode maps a configured mode name to a MatchMode.
// An empty value is the explicit default (Exact); unknown names fail.
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "eq", "exact":
		return Exact, nil
	case "any", "any-of-array":
		return AnyOfArray, nil
	default:
		return Exact, fmt.Errorf("%w: unknown tenant match mode %q", domain.ErrConfiguration, s)
	}
}

// Table is a parsed, dot-qualified table name.
type Table struct {
	name  string
	ident pgx.Identifier
}

// ParseTable splits name on "." and drops empty segments.
func ParseTable(name string) (Table, error) {
	var parts []string
	for _, p := range strings.Split(name, ".") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return Table{}, fmt.Errorf("%w: table name %q has no identifier", domain.ErrConfiguration, name)
	}
	return Table{name: name, ident: pgx.Identifier(parts)}, nil
}

// Segments returns the identifier segments in order.
func (t Table) Segments() []string {
	return append([]string(nil), t.ident...)
}

// Quoted returns the table as a quoted, schema-qualified identifier.
func (t Table) Quoted() string {
	return t.ident.Sanitize()
}

func (t Table) String() string {
	return t.name
}

// TenantTable describes the remote tenant table.
type TenantTable struct {
	Table      Table
	ID         string
	Name       string
	Match      string
	Subscriber string
}

// MatchesEmail reports whether the match column holds email addresses, in which
// case local customers are joined by contact email instead of by name.
func (t TenantTable) MatchesEmail() bool {
	switch strings.ToLower(t.Match) {
	case "email", "contact_email":
		return true
	}
	return false
}

// UserTable describes the remote internal-user table.
type UserTable struct {
	Table        Table
	ID           string
	Tenant       string
	TenantMode   MatchMode
	Subscriber   string
	AccountType  string
	FirstName    string
	LastName     string
	Username     string
	Email        string
	Password     string
	RoleIDs      string
	GroupIDs     string
	Status       string
	Verification string
	CreatedBy    string
	UpdatedBy    string
	EmailSent    string
}

// LookupTable describes a role or group table probed for default ids.
type LookupTable struct {
	Table        Table
	ID           string
	Name         string
	Tenant       string
	TenantMode   MatchMode
	Subscriber   string
	DefaultNames []string
}

// UserDefaults are used when no existing user supplies a value.
type UserDefaults struct {
	Status             string
	VerificationStatus string
	CreatedBy          string
	UpdatedBy          string
	EmailSent          bool
}

// Descriptor is the validated, immutable description of one deployment's
// remote schema. Build it once at startup and share it read-only.
type Descriptor struct {
	Tenant TenantTable
	User   UserTable
	Role   LookupTable
	Group  LookupTable

	AccountTypePrimary string
	AccountTypeOAuth   string

	Defaults UserDefaults
}

// Build validates cfg and returns the Descriptor. Role and group tenant
// columns and match modes inherit the user table's when unset.
func Build(cfg config.SchemaConfig) (*Descriptor, error) {
	tenantTable, err := ParseTable(cfg.TenantTable)
	if err != nil {
		return nil, fmt.Errorf("tenant table: %w", err)
	}
	userTable, err := ParseTable(cfg.UserTable)
	if err != nil {
		return nil, fmt.Errorf("user table: %w", err)
	}
	roleTable, err := ParseTable(cfg.RoleTable)
	if err != nil {
		return nil, fmt.Errorf("role table: %w", err)
	}
	groupTable, err := ParseTable(cfg.GroupTable)
	if err != nil {
		return nil, fmt.Errorf("group table: %w", err)
	}

	userMode, err := ParseMatchMode(cfg.UserTenantMatchMode)
	if err != nil {
		return nil, fmt.Errorf("user table: %w", err)
	}
	roleMode, err := inheritMode(cfg.RoleTenantMatchMode, userMode)
	if err != nil {
		return nil, fmt.Errorf("role table: %w", err)
	}
	groupMode, err := inheritMode(cfg.GroupTenantMatchMode, userMode)
	if err != nil {
		return nil, fmt.Errorf("group table: %w", err)
	}

	d := &Descriptor{
		Tenant: TenantTable{
			Table:      tenantTable,
			ID:         cfg.TenantIDColumn,
			Name:       cfg.TenantNameColumn,
			Match:      cfg.TenantMatchColumn,
			Subscriber: cfg.TenantSubscriberColumn,
		},
		User: UserTable{
			Table:        userTable,
			ID:           cfg.UserIDColumn,
			Tenant:       cfg.UserTenantColumn,
			TenantMode:   userMode,
			Subscriber:   cfg.UserSubscriberColumn,
			AccountType:  cfg.UserAccountTypeColumn,
			FirstName:    cfg.UserFirstNameColumn,
			LastName:     cfg.UserLastNameColumn,
			Username:     cfg.UserUsernameColumn,
			Email:        cfg.UserEmailColumn,
			Password:     cfg.UserPasswordColumn,
			RoleIDs:      cfg.UserRoleIDsColumn,
			GroupIDs:     cfg.UserGroupIDsColumn,
			Status:       cfg.UserStatusColumn,
			Verification: cfg.UserVerificationColumn,
			CreatedBy:    cfg.UserCreatedByColumn,
			UpdatedBy:    cfg.UserUpdatedByColumn,
			EmailSent:    cfg.UserEmailSentColumn,
		},
		Role: LookupTable{
			Table:        roleTable,
			ID:           cfg.RoleIDColumn,
			Name:         cfg.RoleNameColumn,
			Tenant:       firstNonEmpty(cfg.RoleTenantColumn, cfg.UserTenantColumn),
			TenantMode:   roleMode,
			Subscriber:   cfg.RoleSubscriberColumn,
			DefaultNames: append([]string(nil), cfg.DefaultRoleNames...),
		},
		Group: LookupTable{
			Table:        groupTable,
			ID:           cfg.GroupIDColumn,
			Name:         cfg.GroupNameColumn,
			Tenant:       firstNonEmpty(cfg.GroupTenantColumn, cfg.UserTenantColumn),
			TenantMode:   groupMode,
			Subscriber:   cfg.GroupSubscriberColumn,
			DefaultNames: append([]string(nil), cfg.DefaultGroupNames...),
		},
		AccountTypePrimary: cfg.AccountTypePrimary,
		AccountTypeOAuth:   cfg.AccountTypeOAuth,
		Defaults: UserDefaults{
			Status:             cfg.DefaultStatus,
			VerificationStatus: cfg.DefaultVerificationStatus,
			CreatedBy:          cfg.DefaultCreatedBy,
			UpdatedBy:          cfg.DefaultUpdatedBy,
			EmailSent:          cfg.DefaultEmailSent,
		},
	}

	required := map[string]string{
		"tenant id column":         d.Tenant.ID,
		"tenant name column":       d.Tenant.Name,
		"tenant match column":      d.Tenant.Match,
		"tenant subscriber column": d.Tenant.Subscriber,
		"user id column":           d.User.ID,
		"user tenant column":       d.User.Tenant,
		"user subscriber column":   d.User.Subscriber,
		"user account type column": d.User.AccountType,
		"user email column":        d.User.Email,
		"role id column":           d.Role.ID,
		"group id column":          d.Group.ID,
		"primary account type":     d.AccountTypePrimary,
	}
	for what, v := range required {
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("%w: %s is empty", domain.ErrConfiguration, what)
		}
	}
	return d, nil
}

func inheritMode(s string, fallback MatchMode) (MatchMode, error) {
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	return ParseMatchMode(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
