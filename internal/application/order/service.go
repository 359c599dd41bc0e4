package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/foodcourt/storefront/internal/domain/order"
	"github.com/foodcourt/storefront/internal/domain/shared"
)

// Service handles order operations after checkout: status changes, payment
// results, delivery tracking and reads
type Service struct {
	orders         order.Repository
	tracking       order.TrackingRepository
	changes        *ChangePublisher
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewService creates a new order Service
func NewService(
	orders order.Repository,
	tracking order.TrackingRepository,
	changes *ChangePublisher,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		orders:   orders,
		tracking: tracking,
		changes:  changes,
		logger:   logger,
		now:      time.Now,
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// authorize checks that the requester is a party of the order
func authorize(o *order.Order, req Requester) error {
	switch req.Actor {
	case order.ActorSystem:
		return nil
	case order.ActorCustomer:
		if req.UserID != uuid.Nil && req.UserID == o.CustomerID {
			return nil
		}
	case order.ActorVendor:
		if req.VendorID != uuid.Nil && req.VendorID == o.VendorID {
			return nil
		}
	}
	return shared.ErrForbidden
}

// Get returns an order with its items and delivery tracking
func (s *Service) Get(ctx context.Context, orderID uuid.UUID, req Requester) (*OrderDetail, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(o, req); err != nil {
		return nil, err
	}
	t, err := s.findTracking(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: o, Tracking: t}, nil
}

func (s *Service) findTracking(ctx context.Context, orderID uuid.UUID) (*order.DeliveryTracking, error) {
	t, err := s.tracking.FindTracking(ctx, orderID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	return t, err
}

// ListActive returns the customer's orders that can still change
func (s *Service) ListActive(ctx context.Context, customerID uuid.UUID) ([]*order.Order, error) {
	return s.orders.FindActiveByCustomer(ctx, customerID)
}

// ListVendor returns a vendor's orders, newest first
func (s *Service) ListVendor(ctx context.Context, vendorID uuid.UUID, activeOnly bool) ([]*order.Order, error) {
	return s.orders.FindByVendor(ctx, vendorID, activeOnly)
}

// ChangeStatus moves an order one step along the status DAG. The write is a
// compare-and-set on the order version; a concurrent writer yields
// ErrConcurrencyConflict and nothing is changed.
func (s *Service) ChangeStatus(ctx context.Context, orderID uuid.UUID, requested order.Status, req Requester) (*order.Order, error) {
	current, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(current, req); err != nil {
		return nil, err
	}

	next, err := order.Apply(current, requested, req.Actor, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.orders.SaveWithLock(ctx, next); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			s.logger.Warn("order changed concurrently",
				zap.String("order_id", orderID.String()),
				zap.String("requested", string(requested)),
			)
		}
		return nil, err
	}

	s.changes.OrderUpdated(ctx, current, next)
	s.publishEvents(ctx, next)

	s.logger.Info("order status changed",
		zap.String("order_id", orderID.String()),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next.Status)),
		zap.String("actor", string(req.Actor)),
	)
	return next, nil
}

// ApplyPaymentResult records a terminal payment result. changed is false when
// the result was already recorded or is still pending.
func (s *Service) ApplyPaymentResult(ctx context.Context, orderID uuid.UUID, result order.PaymentResult) (*order.Order, bool, error) {
	current, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	next, changed, err := order.ApplyPayment(current, result, s.now())
	if err != nil || !changed {
		return next, false, err
	}
	if err := s.orders.SaveWithLock(ctx, next); err != nil {
		return nil, false, err
	}

	s.changes.OrderUpdated(ctx, current, next)
	s.publishEvents(ctx, next)

	s.logger.Info("payment result recorded",
		zap.String("order_id", orderID.String()),
		zap.String("payment_status", string(next.PaymentStatus)),
		zap.String("status", string(next.Status)),
	)
	return next, true, nil
}

// UpsertTracking writes the delivery tracking of an order. Only the vendor
// of the order may do so.
func (s *Service) UpsertTracking(ctx context.Context, orderID uuid.UUID, in TrackingRequest, req Requester) (*order.DeliveryTracking, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	if req.Actor != order.ActorVendor && req.Actor != order.ActorSystem {
		return nil, shared.ErrForbidden
	}
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(o, req); err != nil {
		return nil, err
	}

	existing, err := s.findTracking(ctx, orderID)
	if err != nil {
		return nil, err
	}
	t := &order.DeliveryTracking{
		ID:               uuid.New(),
		OrderID:          orderID,
		Status:           in.Status,
		EstimatedMinutes: in.EstimatedMinutes,
		UpdatedAt:        s.now(),
	}
	if existing != nil {
		t.ID = existing.ID
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	created, err := s.tracking.SaveTracking(ctx, t)
	if err != nil {
		return nil, err
	}
	s.changes.TrackingSaved(ctx, t, created)
	return t, nil
}

// Delete removes an order. Only the vendor of the order or the system may
// delete.
func (s *Service) Delete(ctx context.Context, orderID uuid.UUID, req Requester) error {
	if req.Actor == order.ActorCustomer {
		return shared.ErrForbidden
	}
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if err := authorize(o, req); err != nil {
		return err
	}
	if err := s.orders.Delete(ctx, orderID); err != nil {
		return err
	}
	s.changes.OrderDeleted(ctx, o)
	s.logger.Info("order deleted", zap.String("order_id", orderID.String()))
	return nil
}

func (s *Service) publishEvents(ctx context.Context, o *order.Order) {
	events := o.GetDomainEvents()
	o.ClearDomainEvents()
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish order events", zap.String("order_id", o.ID.String()), zap.Error(err))
	}
}
