package order

import (
	"time"

	"github.com/google/uuid"

	"github.com/foodcourt/storefront/internal/domain/shared"
)

// DeliveryTracking is written by the vendor side once an order is on its way
type DeliveryTracking struct {
	ID               uuid.UUID `json:"id"`
	OrderID          uuid.UUID `json:"order_id"`
	Status           string    `json:"status"`
	EstimatedMinutes int       `json:"estimated_minutes"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Validate checks tracking invariants
func (t *DeliveryTracking) Validate() error {
	if t.OrderID == uuid.Nil {
		return shared.NewValidationError("tracking requires an order id")
	}
	if t.Status == "" {
		return shared.NewValidationError("tracking requires a status")
	}
	if t.EstimatedMinutes < 0 {
		return shared.NewValidationError("estimated minutes cannot be negative")
	}
	return nil
}
