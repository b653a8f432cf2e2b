package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"vn.io.arda/onboarding/internal/domain"
)

const minPasswordLength = 8

// CreateInternalUser inserts a user into the remote directory of the instance
// and drops the cached user list it belongs to. Role ids, group ids, status
// and audit values are inherited inside the directory client.
func (s *Service) CreateInternalUser(ctx context.Context, in CreateInternalUserInput) (*domain.InternalUser, error) {
	inst, err := s.writableInstance(ctx, in.InstanceID)
	if err != nil {
		return nil, err
	}

	accountType := in.AccountType
	if accountType == "" {
		accountType = s.desc.AccountTypePrimary
	}
	password, err := s.initialPassword(in.Password, accountType)
	if err != nil {
		return nil, err
	}

	tenantID, subscriber, err := s.tenantForWrite(ctx, inst, in)
	if err != nil {
		return nil, err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	id, err := s.users.Create(ctx, inst, domain.NewInternalUser{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		TenantID:     tenantID,
		Subscriber:   domain.StringPtr(subscriber),
		AccountType:  accountType,
	})
	if err != nil {
		return nil, err
	}

	s.invalidateAfterWrite(ctx, domain.InternalUserKey{
		InstanceID:  inst.ID,
		TenantID:    tenantID,
		Subscriber:  subscriber,
		AccountType: accountType,
	})

	email := strings.TrimSpace(in.Email)
	return &domain.InternalUser{
		ID:          &id,
		Name:        domain.ComposeName(&in.FirstName, &in.LastName),
		Email:       &email,
		AccountType: accountType,
	}, nil
}

// initialPassword enforces the password rules: the primary account type needs
// one of at least minPasswordLength characters; other types may omit it and
// get a random one.
func (s *Service) initialPassword(raw, accountType string) (string, error) {
	password := strings.TrimSpace(raw)
	if accountType == s.desc.AccountTypePrimary && password == "" {
		return "", fmt.Errorf("%w: password is required", domain.ErrValidation)
	}
	if password == "" {
		return strings.ReplaceAll(uuid.NewString(), "-", ""), nil
	}
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	}
	return password, nil
}

// tenantForWrite returns the tenant id and subscriber a new user belongs to:
// the explicit tenant id (subscriber inferred from the tenant cache when
// absent), or the tenant found by match value in the remote directory.
func (s *Service) tenantForWrite(ctx context.Context, inst domain.Instance, in CreateInternalUserInput) (string, string, error) {
	if tenantID := strings.TrimSpace(in.TenantID); tenantID != "" {
		key, err := s.userKey(ctx, inst.ID, tenantID, in.Subscriber, "")
		if err != nil {
			return "", "", err
		}
		return tenantID, key.Subscriber, nil
	}

	preferred, other := in.MatchName, in.MatchEmail
	if s.desc.Tenant.MatchesEmail() {
		preferred, other = in.MatchEmail, in.MatchName
	}
	matchValue := domain.NormalizeMatchValue(preferred)
	if matchValue == "" {
		matchValue = domain.NormalizeMatchValue(other)
	}
	if matchValue == "" {
		return "", "", fmt.Errorf("%w: tenant id or tenant match value is required", domain.ErrValidation)
	}

	rec, err := s.ResolveTenant(ctx, inst, matchValue)
	if err != nil {
		return "", "", err
	}
	if rec == nil {
		return "", "", fmt.Errorf("%w: no tenant matches %q on instance %s", domain.ErrNotFound, matchValue, inst.ID)
	}
	return rec.TenantID, strings.TrimSpace(rec.Subscriber), nil
}

// UpdateInternalUserPassword replaces the password of a primary-account-type
// user and drops the cached user list of its tenant.
func (s *Service) UpdateInternalUserPassword(ctx context.Context, in UpdatePasswordInput) error {
	if strings.TrimSpace(in.NewPassword) == "" {
		return fmt.Errorf("%w: password is required", domain.ErrValidation)
	}
	if strings.TrimSpace(in.TenantID) == "" || strings.TrimSpace(in.UserID) == "" {
		return fmt.Errorf("%w: tenant id and user id are required", domain.ErrValidation)
	}
	inst, err := s.writableInstance(ctx, in.InstanceID)
	if err != nil {
		return err
	}

	hash, err := hashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	subscriber := strings.TrimSpace(in.Subscriber)
	if err := s.users.UpdatePassword(ctx, inst, in.TenantID, subscriber, in.UserID, hash); err != nil {
		return err
	}

	log.Info().Str("instance", inst.ID).Str("tenant", in.TenantID).Str("user", in.UserID).Msg("internal user password updated")
	s.invalidateAfterWrite(ctx, domain.InternalUserKey{
		InstanceID:  inst.ID,
		TenantID:    in.TenantID,
		Subscriber:  subscriber,
		AccountType: s.desc.AccountTypePrimary,
	})
	return nil
}

// writableInstance loads an instance that has complete remote credentials.
func (s *Service) writableInstance(ctx context.Context, id string) (domain.Instance, error) {
	inst, err := s.Instance(ctx, id)
	if err != nil {
		return domain.Instance{}, err
	}
	if !inst.HasCredentials() {
		return domain.Instance{}, fmt.Errorf("%w: instance %s postgres credentials are missing", domain.ErrValidation, id)
	}
	return inst, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%w: hash password: %v", domain.ErrValidation, err)
	}
	return string(hash), nil
}
