package event

import (
	"context"

	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditLogHandler writes every settlement event to the structured log
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates an AuditLogHandler
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{logger: logger.Named("audit")}
}

// Handle logs the event envelope
func (h *AuditLogHandler) Handle(ctx context.Context, evt shared.DomainEvent) error {
	h.logger.Info(evt.EventType(),
		zap.String("event_id", evt.EventID().String()),
		zap.String("aggregate_type", evt.AggregateType()),
		zap.String("aggregate_id", evt.AggregateID().String()),
		zap.String("user_id", evt.OwnerID().String()),
		zap.Time("occurred_at", evt.OccurredAt()),
		zap.Any("event", evt),
	)
	return nil
}

// EventTypes returns nil so the handler receives every event
func (h *AuditLogHandler) EventTypes() []string {
	return nil
}
