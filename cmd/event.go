package cmd

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/frahmantamala/access-management/internal/core/events"
	"github.com/frahmantamala/access-management/pkg/logger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Security event commands",
	Long:  `Inspect the security event types and publish synthetic events through the audit handler`,
}

var listEventTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "List security event types",
	Run: func(cmd *cobra.Command, args []string) {
		for _, t := range events.SecurityEventTypes {
			fmt.Println(t)
		}
	},
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a synthetic security event",
	Long:  `Publish a synthetic security event synchronously so the audit log line can be checked`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishAuditEvent(cmd.Context(), args[0])
	},
}

var eventData string

func publishAuditEvent(ctx context.Context, eventType string) error {
	if !slices.Contains(events.SecurityEventTypes, eventType) {
		return fmt.Errorf("unknown event type %q; see `event types`", eventType)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	lg := logger.LoggerWrapper()
	eventBus := events.NewEventBus(lg)
	eventBus.SubscribeAll(events.AuditLogHandler(lg), events.SecurityEventTypes...)

	event := events.BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"message": eventData,
			"source":  "cli",
		},
	}
	if err := eventBus.PublishSync(ctx, event); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	lg.Info("event published", "event_type", eventType, "event_id", event.ID)
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventData, "data", "synthetic event", "message attached to the event payload")

	eventCmd.AddCommand(listEventTypesCmd)
	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
