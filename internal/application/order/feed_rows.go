package order

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/foodcourt/storefront/internal/domain/feed"
	"github.com/foodcourt/storefront/internal/domain/order"
)

// ToOrderRow converts an order to its change-feed row
func ToOrderRow(o *order.Order) feed.OrderRow {
	return feed.OrderRow{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		VendorID:      o.VendorID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		TotalPrice:    o.TotalPrice,
		Version:       o.Version,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		DeliveredAt:   o.DeliveredAt,
	}
}

// ToOrderItemRow converts an item of o to its change-feed row
func ToOrderItemRow(o *order.Order, i order.OrderItem) feed.OrderItemRow {
	return feed.OrderItemRow{
		ID:         i.ID,
		OrderID:    i.OrderID,
		CustomerID: o.CustomerID,
		ProductID:  i.ProductID,
		Name:       i.Name,
		Quantity:   i.Quantity,
		Price:      i.Price,
	}
}

// ToTrackingRow converts delivery tracking to its change-feed row
func ToTrackingRow(t *order.DeliveryTracking) feed.DeliveryTrackingRow {
	return feed.DeliveryTrackingRow{
		ID:               t.ID,
		OrderID:          t.OrderID,
		Status:           t.Status,
		EstimatedMinutes: t.EstimatedMinutes,
		UpdatedAt:        t.UpdatedAt,
	}
}

// applyOrderRow copies the mutable columns of a row onto a copy of o. Items
// are kept; they never arrive on the order row.
func applyOrderRow(o *order.Order, row *feed.OrderRow) *order.Order {
	next := o.Clone()
	next.Status = order.Status(row.Status)
	next.PaymentStatus = order.PaymentStatus(row.PaymentStatus)
	next.TotalPrice = row.TotalPrice
	next.Version = row.Version
	next.UpdatedAt = row.UpdatedAt
	next.DeliveredAt = row.DeliveredAt
	return next
}

// orderFromRow builds an order without items from a row
func orderFromRow(row *feed.OrderRow) *order.Order {
	o := &order.Order{
		CustomerID:    row.CustomerID,
		VendorID:      row.VendorID,
		Status:        order.Status(row.Status),
		PaymentStatus: order.PaymentStatus(row.PaymentStatus),
		TotalPrice:    row.TotalPrice,
		DeliveredAt:   row.DeliveredAt,
	}
	o.ID = row.ID
	o.CreatedAt = row.CreatedAt
	o.UpdatedAt = row.UpdatedAt
	o.Version = row.Version
	return o
}

// ChangePublisher emits change-feed notifications after remote writes.
// Publishing is best effort: failures are logged, never returned, because
// order views converge through polling.
type ChangePublisher struct {
	publisher feed.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewChangePublisher creates a publisher; a nil feed publishes nothing
func NewChangePublisher(publisher feed.Publisher, logger *zap.Logger) *ChangePublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChangePublisher{publisher: publisher, logger: logger, now: time.Now}
}

// OrderPlaced publishes inserts for the order row and each item row
func (p *ChangePublisher) OrderPlaced(ctx context.Context, o *order.Order) {
	p.emit(ctx, feed.EntityOrder, feed.EventInsert, ToOrderRow(o), nil)
	for _, item := range o.Items {
		p.emit(ctx, feed.EntityOrderItem, feed.EventInsert, ToOrderItemRow(o, item), nil)
	}
}

// OrderUpdated publishes an update of the order row
func (p *ChangePublisher) OrderUpdated(ctx context.Context, prev, next *order.Order) {
	var old any
	if prev != nil {
		old = ToOrderRow(prev)
	}
	p.emit(ctx, feed.EntityOrder, feed.EventUpdate, ToOrderRow(next), old)
}

// OrderDeleted publishes deletes for the items and then the order row
func (p *ChangePublisher) OrderDeleted(ctx context.Context, o *order.Order) {
	for _, item := range o.Items {
		p.emit(ctx, feed.EntityOrderItem, feed.EventDelete, nil, ToOrderItemRow(o, item))
	}
	p.emit(ctx, feed.EntityOrder, feed.EventDelete, nil, ToOrderRow(o))
}

// TrackingSaved publishes an insert or update of a tracking row
func (p *ChangePublisher) TrackingSaved(ctx context.Context, t *order.DeliveryTracking, created bool) {
	typ := feed.EventUpdate
	if created {
		typ = feed.EventInsert
	}
	p.emit(ctx, feed.EntityDeliveryTracking, typ, ToTrackingRow(t), nil)
}

func (p *ChangePublisher) emit(ctx context.Context, entity feed.Entity, typ feed.EventType, newRow, oldRow any) {
	if p == nil || p.publisher == nil {
		return
	}
	c, err := feed.NewChange(entity, typ, newRow, oldRow, p.now())
	if err != nil {
		p.logger.Error("failed to encode change", zap.String("entity", string(entity)), zap.Error(err))
		return
	}
	if err := p.publisher.Publish(ctx, c); err != nil {
		p.logger.Warn("failed to publish change, views will converge by polling",
			zap.String("entity", string(entity)),
			zap.String("type", string(typ)),
			zap.Error(err),
		)
	}
}
