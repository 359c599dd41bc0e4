package shared

import "time"

// BaseAggregateRoot provides common fields for aggregate roots.
// Version is the optimistic concurrency token; repositories compare and
// increment it on every locked save.
type BaseAggregateRoot struct {
	BaseEntity
	Version      int
	domainEvents []DomainEvent
}

// AddDomainEvent adds a domain event to be published
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns all pending domain events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents clears the pending domain events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// CopyEvents detaches the pending event slice so a value copy of the
// aggregate does not share its backing array with the original.
func (a *BaseAggregateRoot) CopyEvents() {
	if a.domainEvents == nil {
		return
	}
	events := make([]DomainEvent, len(a.domainEvents))
	copy(events, a.domainEvents)
	a.domainEvents = events
}

// NewBaseAggregateRoot creates a new base aggregate root
func NewBaseAggregateRoot(now time.Time) BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity: NewBaseEntity(now),
		Version:    1,
	}
}
