package application

// CreateInternalUserInput is the request to add an internal user to a tenant.
// The tenant is given either by TenantID or by a match value (MatchEmail or
// MatchName, preferred according to the tenant match column).
type CreateInternalUserInput struct {
	InstanceID  string `json:"instance_id" validate:"required"`
	TenantID    string `json:"tenant_id"`
	Subscriber  string `json:"subscriber"`
	MatchName   string `json:"match_name"`
	MatchEmail  string `json:"match_email" validate:"omitempty,email"`
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	Username    string `json:"username" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password"`
	AccountType string `json:"account_type"`
}

// UpdatePasswordInput sets a new password for a primary-account-type user.
type UpdatePasswordInput struct {
	InstanceID  string `json:"instance_id" validate:"required"`
	TenantID    string `json:"tenant_id" validate:"required"`
	Subscriber  string `json:"subscriber"`
	UserID      string `json:"user_id" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// ListInternalUsersInput selects one internal-user cache key.
type ListInternalUsersInput struct {
	InstanceID   string `query:"instance_id" validate:"required"`
	TenantID     string `query:"tenant_id" validate:"required"`
	Subscriber   string `query:"subscriber"`
	AccountType  string `query:"account_type"`
	ForceRefresh bool   `query:"refresh"`
}
