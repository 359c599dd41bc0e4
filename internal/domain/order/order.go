package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/foodcourt/storefront/internal/domain/cart"
	"github.com/foodcourt/storefront/internal/domain/shared"
)

// AggregateTypeOrder is the aggregate type name used in domain events
const AggregateTypeOrder = "Order"

// OrderItem is an immutable line of an order. Price is the unit price
// captured when the order was placed.
type OrderItem struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Price     int64     `json:"price"`
}

// Amount returns price times quantity
func (i OrderItem) Amount() int64 {
	return i.Price * int64(i.Quantity)
}

// Order is the order aggregate root. After creation only Status,
// PaymentStatus and DeliveredAt change; items are immutable.
type Order struct {
	shared.BaseAggregateRoot
	CustomerID    uuid.UUID
	VendorID      uuid.UUID
	Status        Status
	PaymentStatus PaymentStatus
	TotalPrice    int64
	OrderInfo     string
	Items         []OrderItem
	DeliveredAt   *time.Time
}

// NewOrder builds a pending order from the cart lines of a single vendor
func NewOrder(customerID, vendorID uuid.UUID, lines []cart.CartLine, orderInfo string, now time.Time) (*Order, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewValidationError("order requires an authenticated customer")
	}
	if vendorID == uuid.Nil {
		return nil, shared.NewValidationError("order requires a vendor")
	}
	if len(lines) == 0 {
		return nil, shared.NewValidationError("order must contain at least one item")
	}

	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(now),
		CustomerID:        customerID,
		VendorID:          vendorID,
		Status:            StatusPending,
		PaymentStatus:     PaymentPending,
		OrderInfo:         orderInfo,
		Items:             make([]OrderItem, 0, len(lines)),
	}

	for _, l := range lines {
		if err := l.Validate(); err != nil {
			return nil, err
		}
		if l.VendorID != vendorID {
			return nil, shared.NewValidationError(fmt.Sprintf("product %s belongs to another vendor", l.ProductID))
		}
		item := OrderItem{
			ID:        uuid.New(),
			OrderID:   o.ID,
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			Price:     l.UnitPrice,
		}
		o.Items = append(o.Items, item)
		o.TotalPrice += item.Amount()
	}

	o.AddDomainEvent(NewOrderPlacedEvent(o, now))
	return o, nil
}

// IsActive reports whether the order can still change status
func (o *Order) IsActive() bool {
	return !o.Status.IsTerminal()
}

// ItemCount returns the sum of item quantities
func (o *Order) ItemCount() int {
	n := 0
	for _, i := range o.Items {
		n += i.Quantity
	}
	return n
}

// IsNewerThan reports whether o is a later revision of the same order than
// other. Version is compared first; UpdatedAt breaks ties for rows written
// without a version bump.
func (o *Order) IsNewerThan(other *Order) bool {
	if other == nil {
		return true
	}
	if o.Version != other.Version {
		return o.Version > other.Version
	}
	return o.UpdatedAt.After(other.UpdatedAt)
}

// Clone returns a copy that shares no mutable state with o
func (o *Order) Clone() *Order {
	c := *o
	c.CopyEvents()
	if o.Items != nil {
		c.Items = make([]OrderItem, len(o.Items))
		copy(c.Items, o.Items)
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		c.DeliveredAt = &t
	}
	return &c
}
