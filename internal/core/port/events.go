package port

import "context"

// AuditEvent describes an administrative action for downstream consumers.
type AuditEvent struct {
	Action   string         `json:"action"`
	ActorID  int64          `json:"actor_id"`
	TargetID int64          `json:"target_id,omitempty"`
	Detail   map[string]any `json:"detail,omitempty"`
}

// AuditPublisher delivers audit events. Publishing is best-effort; admin
// operations must not fail because the event bus is down.
type AuditPublisher interface {
	Publish(ctx context.Context, event AuditEvent) error
	Close() error
}
