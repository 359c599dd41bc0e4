package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	orderapp "github.com/foodcourt/storefront/internal/application/order"
	"github.com/foodcourt/storefront/internal/domain/cart"
	"github.com/foodcourt/storefront/internal/domain/order"
	"github.com/foodcourt/storefront/internal/domain/shared"
)

// ErrCheckoutRequiresLogin is returned when a guest tries to check out
var ErrCheckoutRequiresLogin = shared.NewDomainError(shared.CodeUnauthorized, "sign in to place an order")

// CheckoutService places one vendor's share of a cart as an order
type CheckoutService struct {
	orders         order.Repository
	remote         cart.RemoteStore
	payments       order.PaymentGateway
	changes        *orderapp.ChangePublisher
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewCheckoutService creates a checkout service. payments may be nil when no
// gateway is configured; orders are then placed without a payment link.
func NewCheckoutService(
	orders order.Repository,
	remote cart.RemoteStore,
	payments order.PaymentGateway,
	changes *orderapp.ChangePublisher,
	logger *zap.Logger,
) *CheckoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutService{
		orders:   orders,
		remote:   remote,
		payments: payments,
		changes:  changes,
		logger:   logger,
		now:      time.Now,
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *CheckoutService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Checkout creates an order from the lines of req.VendorID only. Lines of
// other vendors stay in the cart. A failed payment link does not undo the
// order; it is reported in CheckoutResult.PaymentError.
func (s *CheckoutService) Checkout(ctx context.Context, ctrl *SyncController, req CheckoutRequest) (*CheckoutResult, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	owner := ctrl.Owner()
	if owner.IsGuest() {
		return nil, ErrCheckoutRequiresLogin
	}

	group, ok := ctrl.Group(req.VendorID)
	if !ok {
		return nil, shared.NewValidationError("cart has no items from this vendor")
	}

	o, err := order.NewOrder(owner.UserID(), req.VendorID, group.Items, req.OrderInfo, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, err
	}

	events := o.GetDomainEvents()
	o.ClearDomainEvents()
	if s.eventPublisher != nil && len(events) > 0 {
		if err := s.eventPublisher.Publish(ctx, events...); err != nil {
			s.logger.Warn("failed to publish order events", zap.String("order_id", o.ID.String()), zap.Error(err))
		}
	}
	s.changes.OrderPlaced(ctx, o)

	s.clearVendor(ctx, ctrl, owner, req.VendorID)

	result := &CheckoutResult{Order: o}
	s.requestPaymentLink(ctx, o, result)

	s.logger.Info("order placed",
		zap.String("order_id", o.ID.String()),
		zap.String("vendor_id", req.VendorID.String()),
		zap.Int64("total_price", o.TotalPrice),
		zap.Bool("payment_link", result.PayURL != ""),
	)
	return result, nil
}

// clearVendor removes the ordered vendor from the remote cart and from the
// session cart. Failures leave the lines to be cleaned by the next flush.
func (s *CheckoutService) clearVendor(ctx context.Context, ctrl *SyncController, owner cart.Owner, vid uuid.UUID) {
	if err := s.remote.DeleteForVendor(ctx, owner.UserID(), vid); err != nil {
		s.logger.Warn("failed to clear vendor lines remotely", zap.String("vendor_id", vid.String()), zap.Error(err))
	}
	if _, err := ctrl.RemoveVendor(ctx, vid); err != nil {
		s.logger.Warn("failed to clear vendor lines from session", zap.Error(err))
		return
	}
	if err := ctrl.Flush(ctx); err != nil {
		s.logger.Warn("cart flush after checkout failed", zap.Error(err))
	}
}

func (s *CheckoutService) requestPaymentLink(ctx context.Context, o *order.Order, result *CheckoutResult) {
	if s.payments == nil {
		result.PaymentError = "payment gateway is not configured"
		return
	}
	link, err := s.payments.CreatePaymentLink(ctx, order.NewPaymentLinkRequest(o))
	switch {
	case err != nil:
		result.PaymentError = err.Error()
		s.logger.Warn("payment link request failed", zap.String("order_id", o.ID.String()), zap.Error(err))
	case !link.Success:
		result.PaymentError = link.Message
	default:
		result.PayURL = link.PayURL
	}
}
