package handlers

import (
	"strings"

	"vn.io.arda/onboarding/internal/domain"
)

func init() {
	Register(TopicInternalUserEvents, "INTERNAL_USER_CREATED", handleInternalUserChanged)
	Register(TopicInternalUserEvents, "INTERNAL_USER_PASSWORD_UPDATED", handleInternalUserChanged)
}

type internalUserPayload struct {
	InstanceID  string `json:"instanceId"`
	TenantID    string `json:"tenantId"`
	Subscriber  string `json:"subscriber"`
	AccountType string `json:"accountType"`
}

func handleInternalUserChanged(data []byte) *domain.Invalidation {
	var p internalUserPayload
	env, ok := parse(data, &p)
	if !ok {
		return nil
	}
	key := domain.InternalUserKey{
		InstanceID:  strings.TrimSpace(p.InstanceID),
		TenantID:    strings.TrimSpace(p.TenantID),
		Subscriber:  strings.TrimSpace(p.Subscriber),
		AccountType: strings.TrimSpace(p.AccountType),
	}
	if key.InstanceID == "" || key.TenantID == "" {
		return nil
	}
	return &domain.Invalidation{
		Scope:         domain.ScopeInternalUsers,
		UserKey:       key,
		SourceEventID: env.EventID,
	}
}
