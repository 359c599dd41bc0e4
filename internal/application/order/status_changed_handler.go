package order

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/foodcourt/storefront/internal/domain/order"
	"github.com/foodcourt/storefront/internal/domain/shared"
	"github.com/foodcourt/storefront/internal/infrastructure/telemetry"
)

// OrderStatusChangedHandler handles OrderStatusChangedEvent
// and records every accepted transition in the logs and metrics
type OrderStatusChangedHandler struct {
	metrics *telemetry.SyncMetrics
	logger  *zap.Logger
}

// NewOrderStatusChangedHandler creates a new handler for order status changed events
func NewOrderStatusChangedHandler(metrics *telemetry.SyncMetrics, logger *zap.Logger) *OrderStatusChangedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderStatusChangedHandler{
		metrics: metrics,
		logger:  logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *OrderStatusChangedHandler) EventTypes() []string {
	return []string{order.EventTypeOrderStatusChanged}
}

// Handle processes an OrderStatusChangedEvent
func (h *OrderStatusChangedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*order.OrderStatusChangedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", order.EventTypeOrderStatusChanged),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			order.EventTypeOrderStatusChanged, event.EventType())
	}

	h.metrics.Transition(ctx, string(changed.From), string(changed.To), string(changed.Actor))
	h.logger.Info("order transitioned",
		zap.String("order_id", changed.AggregateID().String()),
		zap.String("customer_id", changed.CustomerID.String()),
		zap.String("vendor_id", changed.VendorID.String()),
		zap.String("from", string(changed.From)),
		zap.String("to", string(changed.To)),
		zap.String("actor", string(changed.Actor)),
	)
	return nil
}
