package order

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the remote order store
type Repository interface {
	// Create inserts the order and its items atomically
	Create(ctx context.Context, o *Order) error
	// FindByID loads an order with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// FindItems loads the items of an order
	FindItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error)
	// FindActiveByCustomer lists a customer's orders that are not terminal
	FindActiveByCustomer(ctx context.Context, customerID uuid.UUID) ([]*Order, error)
	// FindByVendor lists a vendor's orders, newest first
	FindByVendor(ctx context.Context, vendorID uuid.UUID, activeOnly bool) ([]*Order, error)
	// FindPendingPayment lists orders whose payment is unsettled and that were
	// created before the cutoff
	FindPendingPayment(ctx context.Context, createdBefore time.Time, limit int) ([]*Order, error)
	// SaveWithLock persists status fields if the stored version still equals
	// o.Version, then increments o.Version. A mismatch is ErrConcurrencyConflict.
	SaveWithLock(ctx context.Context, o *Order) error
	// Delete removes an order and its items
	Delete(ctx context.Context, id uuid.UUID) error
}

// TrackingRepository stores delivery tracking rows, one per order
type TrackingRepository interface {
	FindTracking(ctx context.Context, orderID uuid.UUID) (*DeliveryTracking, error)
	// SaveTracking upserts by order id; created reports an insert
	SaveTracking(ctx context.Context, t *DeliveryTracking) (created bool, err error)
}
