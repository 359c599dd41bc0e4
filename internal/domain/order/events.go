package order

import (
	"time"

	"github.com/google/uuid"

	"github.com/foodcourt/storefront/internal/domain/shared"
)

// Event types
const (
	EventTypeOrderPlaced         = "OrderPlaced"
	EventTypeOrderStatusChanged  = "OrderStatusChanged"
	EventTypeOrderPaymentChanged = "OrderPaymentChanged"
)

// OrderPlacedEvent is raised when checkout creates an order
type OrderPlacedEvent struct {
	shared.BaseDomainEvent
	CustomerID uuid.UUID `json:"customer_id"`
	VendorID   uuid.UUID `json:"vendor_id"`
	TotalPrice int64     `json:"total_price"`
	ItemCount  int       `json:"item_count"`
}

// NewOrderPlacedEvent creates an OrderPlacedEvent
func NewOrderPlacedEvent(o *Order, at time.Time) *OrderPlacedEvent {
	return &OrderPlacedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderPlaced, AggregateTypeOrder, o.ID, at),
		CustomerID:      o.CustomerID,
		VendorID:        o.VendorID,
		TotalPrice:      o.TotalPrice,
		ItemCount:       o.ItemCount(),
	}
}

// OrderStatusChangedEvent is raised on every accepted transition
type OrderStatusChangedEvent struct {
	shared.BaseDomainEvent
	CustomerID uuid.UUID `json:"customer_id"`
	VendorID   uuid.UUID `json:"vendor_id"`
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	Actor      Actor     `json:"actor"`
}

// NewOrderStatusChangedEvent creates an OrderStatusChangedEvent
func NewOrderStatusChangedEvent(o *Order, from Status, actor Actor, at time.Time) *OrderStatusChangedEvent {
	return &OrderStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderStatusChanged, AggregateTypeOrder, o.ID, at),
		CustomerID:      o.CustomerID,
		VendorID:        o.VendorID,
		From:            from,
		To:              o.Status,
		Actor:           actor,
	}
}

// OrderPaymentChangedEvent is raised when a payment result is recorded
type OrderPaymentChangedEvent struct {
	shared.BaseDomainEvent
	From PaymentStatus `json:"from"`
	To   PaymentStatus `json:"to"`
}

// NewOrderPaymentChangedEvent creates an OrderPaymentChangedEvent
func NewOrderPaymentChangedEvent(o *Order, from PaymentStatus, at time.Time) *OrderPaymentChangedEvent {
	return &OrderPaymentChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderPaymentChanged, AggregateTypeOrder, o.ID, at),
		From:            from,
		To:              o.PaymentStatus,
	}
}
