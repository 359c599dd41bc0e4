package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// OrderRow is the wire shape of an order row
type OrderRow struct {
	ID            uuid.UUID  `json:"id" validate:"required"`
	CustomerID    uuid.UUID  `json:"customer_id" validate:"required"`
	VendorID      uuid.UUID  `json:"vendor_id" validate:"required"`
	Status        string     `json:"status" validate:"required,oneof=pending confirmed preparing delivering completed cancelled"`
	PaymentStatus string     `json:"payment_status" validate:"required,oneof=pending paid failed"`
	TotalPrice    int64      `json:"total_price" validate:"gte=0"`
	Version       int        `json:"version" validate:"gte=1"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
}

// OrderItemRow is the wire shape of an order item row. CustomerID is copied
// from the order so list subscriptions can be scoped.
type OrderItemRow struct {
	ID         uuid.UUID `json:"id" validate:"required"`
	OrderID    uuid.UUID `json:"order_id" validate:"required"`
	CustomerID uuid.UUID `json:"customer_id"`
	ProductID  uuid.UUID `json:"product_id" validate:"required"`
	Name       string    `json:"name"`
	Quantity   int       `json:"quantity" validate:"gte=1"`
	Price      int64     `json:"price" validate:"gte=0"`
}

// DeliveryTrackingRow is the wire shape of a delivery tracking row
type DeliveryTrackingRow struct {
	ID               uuid.UUID `json:"id"`
	OrderID          uuid.UUID `json:"order_id" validate:"required"`
	Status           string    `json:"status" validate:"required"`
	EstimatedMinutes int       `json:"estimated_minutes" validate:"gte=0"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DecodeRow parses and validates a row payload into T
func DecodeRow[T any](raw json.RawMessage) (*T, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty row payload")
	}
	var row T
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	if err := validate.Struct(&row); err != nil {
		return nil, fmt.Errorf("invalid row: %w", err)
	}
	return &row, nil
}

// RowID extracts the "id" column of a row payload, returning uuid.Nil when absent
func RowID(raw json.RawMessage) uuid.UUID {
	var row struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return uuid.Nil
	}
	return row.ID
}
