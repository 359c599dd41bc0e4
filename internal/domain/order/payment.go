package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/foodcourt/storefront/internal/domain/shared"
)

// PaymentItem is an order line as sent to the payment gateway
type PaymentItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Price     int64     `json:"price"`
}

// PaymentLinkRequest asks the gateway for a hosted payment page
type PaymentLinkRequest struct {
	Amount    int64
	OrderID   uuid.UUID
	OrderInfo string
	Items     []PaymentItem
}

// PaymentLink is the gateway reply. Success=false carries Message.
type PaymentLink struct {
	Success bool
	PayURL  string
	Message string
}

// PaymentResult is the gateway view of an order payment
type PaymentResult struct {
	Status    PaymentStatus
	Amount    int64
	Timestamp time.Time
}

// PaymentGateway is the external payment collaborator
type PaymentGateway interface {
	CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (PaymentLink, error)
	GetPaymentStatus(ctx context.Context, orderID uuid.UUID) (PaymentResult, error)
}

// NewPaymentLinkRequest builds the gateway request for an order
func NewPaymentLinkRequest(o *Order) PaymentLinkRequest {
	items := make([]PaymentItem, 0, len(o.Items))
	for _, i := range o.Items {
		items = append(items, PaymentItem{ProductID: i.ProductID, Name: i.Name, Quantity: i.Quantity, Price: i.Price})
	}
	info := o.OrderInfo
	if info == "" {
		info = fmt.Sprintf("Order %s", o.ID)
	}
	return PaymentLinkRequest{Amount: o.TotalPrice, OrderID: o.ID, OrderInfo: info, Items: items}
}

// ApplyPayment records a gateway result. A paid result must cover exactly
// the order total. A failed payment also cancels the order if it is still
// active. changed is false when the result was already recorded.
func ApplyPayment(o *Order, result PaymentResult, now time.Time) (next *Order, changed bool, err error) {
	status := result.Status
	if !status.IsValid() {
		return nil, false, shared.NewValidationError(fmt.Sprintf("unknown payment status %q", status))
	}
	if status == o.PaymentStatus || status == PaymentPending {
		return o, false, nil
	}
	if o.PaymentStatus != PaymentPending {
		return nil, false, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("payment already settled as %s", o.PaymentStatus))
	}
	if status == PaymentPaid && result.Amount != o.TotalPrice {
		return nil, false, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("paid amount %d does not match order total %d", result.Amount, o.TotalPrice))
	}

	next = o.Clone()
	if status == PaymentFailed && next.IsActive() {
		next, err = Apply(next, StatusCancelled, ActorSystem, now)
		if err != nil {
			return nil, false, err
		}
	}
	prev := next.PaymentStatus
	next.PaymentStatus = status
	next.UpdatedAt = now
	next.AddDomainEvent(NewOrderPaymentChangedEvent(next, prev, now))
	return next, true, nil
}
