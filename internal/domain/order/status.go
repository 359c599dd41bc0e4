package order

// Status is the fulfillment state of an order
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusPreparing  Status = "preparing"
	StatusDelivering Status = "delivering"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// IsValid checks if the status is a known value
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusDelivering, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

// ActiveStatuses are the statuses an order can still move out of
func ActiveStatuses() []Status {
	return []Status{StatusPending, StatusConfirmed, StatusPreparing, StatusDelivering}
}

// PaymentStatus is the payment state of an order
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// IsValid checks if the payment status is a known value
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the gateway has settled the payment
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentPaid || s == PaymentFailed
}

// Actor is the party requesting a status change
type Actor string

const (
	// ActorCustomer is the customer-facing flow
	ActorCustomer Actor = "customer"
	// ActorVendor is the vendor-operator flow
	ActorVendor Actor = "vendor"
	// ActorSystem is used by background reconciliation (payment results)
	ActorSystem Actor = "system"
)

// IsValid checks if the actor is a known value
func (a Actor) IsValid() bool {
	return a == ActorCustomer || a == ActorVendor || a == ActorSystem
}
