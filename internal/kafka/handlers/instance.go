package handlers

import (
	"strings"

	"vn.io.arda/onboarding/internal/domain"
)

func init() {
	Register(TopicInstanceEvents, "INSTANCE_UPDATED", handleInstanceChanged)
	Register(TopicInstanceEvents, "INSTANCE_CREDENTIALS_CHANGED", handleInstanceChanged)
	Register(TopicInstanceEvents, "INSTANCE_DELETED", handleInstanceChanged)
}

type instancePayload struct {
	InstanceID string `json:"instanceId"`
}

// handleInstanceChanged drops the tenant snapshot: after any of these events
// the cached tenants may come from the wrong database or none at all.
func handleInstanceChanged(data []byte) *domain.Invalidation {
	var p instancePayload
	env, ok := parse(data, &p)
	if !ok {
		return nil
	}
	id := strings.TrimSpace(p.InstanceID)
	if id == "" {
		return nil
	}
	return &domain.Invalidation{
		Scope:         domain.ScopeTenants,
		InstanceID:    id,
		SourceEventID: env.EventID,
	}
}
