package domain

import (
	"strings"
	"time"
)

// PlaceholderPrefix prefixes the id of every synthetic tenant-placeholder customer.
const PlaceholderPrefix = "tenant:"

// Instance holds the connection credentials of one externally hosted deployment.
// Owned by the instance-management CRUD layer; read-only here.
type Instance struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	PGHost     string `db:"pg_host" json:"-"`
	PGPort     string `db:"pg_port" json:"-"`
	PGUser     string `db:"pg_user" json:"-"`
	PGPassword string `db:"pg_password" json:"-"`
}

// HasCredentials reports whether host, user and password are all present.
// Without them no remote query is attempted for the instance.
func (i Instance) HasCredentials() bool {
	return i.PGHost != "" && i.PGUser != "" && i.PGPassword != ""
}

// TenantRecord is one row of a remote tenant table, normalized.
// MatchValue is lower-cased and joins a local customer to the tenant.
type TenantRecord struct {
	TenantID   string  `db:"tenant_id" json:"tenant_id"`
	Subscriber string  `db:"subscriber" json:"subscriber"`
	TenantName *string `db:"tenant_name" json:"tenant_name"`
	MatchValue string  `db:"match_value" json:"match_value"`
}

// InternalUser is an application-level account inside a tenant.
type InternalUser struct {
	ID          *string `json:"id"`
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	AccountType string  `json:"account_type"`
}

// InternalUserKey identifies one cached internal-user result set.
type InternalUserKey struct {
	InstanceID  string
	TenantID    string
	Subscriber  string
	AccountType string
}

// UserDefaults are the values copied from an existing user of the same
// account type when a new internal user is created.
type UserDefaults struct {
	RoleIDs            []string
	GroupIDs           []string
	Status             *string
	VerificationStatus *string
	CreatedBy          *string
	UpdatedBy          *string
	EmailSent          *bool
}

// NewInternalUser is the fully resolved row inserted into a remote user table.
type NewInternalUser struct {
	FirstName          string
	LastName           string
	Username           string
	Email              string
	PasswordHash       string
	TenantID           string
	Subscriber         *string
	RoleIDs            []string
	GroupIDs           []string
	Status             string
	VerificationStatus string
	CreatedBy          string
	UpdatedBy          string
	AccountType        string
	EmailSent          bool
}

// Customer is a local customer record decorated with derived tenant fields.
// The tenant fields are never persisted back to the customer store.
type Customer struct {
	ID           string     `db:"id" json:"id"`
	Name         *string    `db:"name" json:"name"`
	FirstName    *string    `db:"first_name" json:"first_name"`
	LastName     *string    `db:"last_name" json:"last_name"`
	Department   *string    `db:"department" json:"department"`
	Vendor       *string    `db:"vendor" json:"vendor"`
	ContactEmail *string    `db:"contact_email" json:"contact_email"`
	InstanceID   *string    `db:"instance_id" json:"instance_id"`
	InstanceName *string    `db:"instance_name" json:"instance_name"`
	CreatedAt    *time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at" json:"updated_at"`

	TenantName *string `db:"-" json:"tenant_name"`
	TenantID   *string `db:"-" json:"tenant_id"`
	Subscriber *string `db:"-" json:"subscriber"`
}

// IsPlaceholder reports whether the record was synthesized from an unmatched tenant.
func (c Customer) IsPlaceholder() bool {
	return strings.HasPrefix(c.ID, PlaceholderPrefix)
}

// ComposeName joins first and last name, skipping blank parts.
// Returns nil when both are blank.
func ComposeName(first, last *string) *string {
	parts := make([]string, 0, 2)
	for _, p := range []*string{first, last} {
		if p == nil {
			continue
		}
		if s := strings.TrimSpace(*p); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	name := strings.Join(parts, " ")
	return &name
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// StringPtr returns nil for "" and a pointer otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
