package events

import (
	"context"
	"log/slog"
)

// SecurityEventTypes lists every event the security services publish.
var SecurityEventTypes = []string{
	EventTypeSessionRevoked,
	EventTypePermissionChanged,
	EventTypeRoleChanged,
	EventTypeAllowListChanged,
	EventTypeAccountDeleted,
}

// AuditLogHandler writes each event to the audit log at info level.
func AuditLogHandler(logger *slog.Logger) Handler {
	return func(ctx context.Context, event Event) error {
		logger.InfoContext(ctx, "audit",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"occurred_at", event.OccurredAt(),
			"payload", event.Payload())
		return nil
	}
}
