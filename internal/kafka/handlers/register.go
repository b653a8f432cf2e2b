// Package handlers turns instance and internal-user change events into cache
// invalidations. Each file registers its events in init().
package handlers

import (
	"encoding/json"

	"vn.io.arda/onboarding/internal/kafka/registry"
)

// Topics consumed by the invalidation handlers.
const (
	TopicInstanceEvents     = "instance-events"
	TopicInternalUserEvents = "internal-user-events"
)

// Register is a convenience alias so each domain file calls Register(...)
// instead of registry.Register(...), keeping imports minimal.
func Register(topic, eventType string, h registry.EventHandler) {
	registry.Register(topic, eventType, h)
}

// envelope is the common wrapper used by the portal services for Kafka messages.
type envelope struct {
	EventType string          `json:"eventType"`
	EventID   string          `json:"eventId"`
	Payload   json.RawMessage `json:"payload"`
}

// parse decodes the envelope and its payload into dst.
func parse(data []byte, dst any) (*envelope, bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	if len(env.Payload) == 0 {
		return nil, false
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return nil, false
	}
	return &env, true
}
