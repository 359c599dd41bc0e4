package order

import (
	"fmt"
	"time"

	"github.com/foodcourt/storefront/internal/domain/shared"
)

type edge struct {
	to     Status
	actors []Actor
}

// transitions is the order status DAG. The customer may cancel only while the
// order is pending; the vendor and the system may cancel any active order.
var transitions = map[Status][]edge{
	StatusPending: {
		{to: StatusConfirmed, actors: []Actor{ActorVendor}},
		{to: StatusCancelled, actors: []Actor{ActorCustomer, ActorVendor, ActorSystem}},
	},
	StatusConfirmed: {
		{to: StatusPreparing, actors: []Actor{ActorVendor}},
		{to: StatusCancelled, actors: []Actor{ActorVendor, ActorSystem}},
	},
	StatusPreparing: {
		{to: StatusDelivering, actors: []Actor{ActorVendor}},
		{to: StatusCancelled, actors: []Actor{ActorVendor, ActorSystem}},
	},
	StatusDelivering: {
		{to: StatusCompleted, actors: []Actor{ActorCustomer}},
		{to: StatusCancelled, actors: []Actor{ActorVendor, ActorSystem}},
	},
}

// InvalidTransitionError is returned when a requested status change is not
// an edge of the DAG for the given actor.
type InvalidTransitionError struct {
	Current   Status
	Requested Status
	Actor     Actor
}

// Error implements the error interface
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s as %s", e.Current, e.Requested, e.Actor)
}

// Unwrap classifies the error as an INVALID_TRANSITION domain error
func (e *InvalidTransitionError) Unwrap() error {
	return shared.NewDomainError(shared.CodeInvalidTransition, e.Error())
}

// CanTransition reports whether actor may move an order from one status to another
func CanTransition(from, to Status, actor Actor) bool {
	for _, e := range transitions[from] {
		if e.to != to {
			continue
		}
		for _, a := range e.actors {
			if a == actor {
				return true
			}
		}
	}
	return false
}

// NextStatuses lists the statuses actor may move an order to from status
func NextStatuses(from Status, actor Actor) []Status {
	var out []Status
	for _, e := range transitions[from] {
		if CanTransition(from, e.to, actor) {
			out = append(out, e.to)
		}
	}
	return out
}

// Apply validates and applies a status change. It does not modify o; the
// returned order carries the new status and an OrderStatusChanged event.
// Entering delivering stamps DeliveredAt.
func Apply(o *Order, requested Status, actor Actor, now time.Time) (*Order, error) {
	if !requested.IsValid() || !actor.IsValid() || !CanTransition(o.Status, requested, actor) {
		return nil, &InvalidTransitionError{Current: o.Status, Requested: requested, Actor: actor}
	}

	next := o.Clone()
	next.Status = requested
	next.UpdatedAt = now
	if requested == StatusDelivering {
		at := now
		next.DeliveredAt = &at
	}
	next.AddDomainEvent(NewOrderStatusChangedEvent(next, o.Status, actor, now))
	return next, nil
}
