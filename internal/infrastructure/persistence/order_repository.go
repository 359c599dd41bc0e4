package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodcourt/storefront/internal/domain/order"
	"github.com/foodcourt/storefront/internal/domain/shared"
	"github.com/foodcourt/storefront/internal/infrastructure/persistence/models"
)

// GormOrderRepository implements order.Repository and
// order.TrackingRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Create inserts the order and its items in one transaction
func (r *GormOrderRepository) Create(ctx context.Context, o *order.Order) error {
	model := models.OrderModelFromDomain(o)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	return translate("create order", err)
}

// FindByID loads an order with its items
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&model, "id = ?", id).Error; err != nil {
		return nil, translate("find order", err)
	}
	return model.ToDomain(), nil
}

// FindItems loads the items of an order
func (r *GormOrderRepository) FindItems(ctx context.Context, orderID uuid.UUID) ([]order.OrderItem, error) {
	var rows []models.OrderItemModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("name ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, translate("find order items", err)
	}
	items := make([]order.OrderItem, len(rows))
	for i := range rows {
		items[i] = rows[i].ToDomain()
	}
	return items, nil
}

// FindActiveByCustomer lists the customer's non-terminal orders, newest first
func (r *GormOrderRepository) FindActiveByCustomer(ctx context.Context, customerID uuid.UUID) ([]*order.Order, error) {
	return r.findOrders(ctx, "find active orders", func(q *gorm.DB) *gorm.DB {
		return q.Where("customer_id = ? AND status IN ?", customerID, order.ActiveStatuses())
	})
}

// FindByVendor lists the vendor's orders, newest first
func (r *GormOrderRepository) FindByVendor(ctx context.Context, vendorID uuid.UUID, activeOnly bool) ([]*order.Order, error) {
	return r.findOrders(ctx, "find vendor orders", func(q *gorm.DB) *gorm.DB {
		q = q.Where("vendor_id = ?", vendorID)
		if activeOnly {
			q = q.Where("status IN ?", order.ActiveStatuses())
		}
		return q
	})
}

// FindPendingPayment lists unsettled orders created before the cutoff,
// oldest first
func (r *GormOrderRepository) FindPendingPayment(ctx context.Context, createdBefore time.Time, limit int) ([]*order.Order, error) {
	var rows []models.OrderModel
	q := r.db.WithContext(ctx).
		Preload("Items").
		Where("payment_status = ? AND status IN ? AND created_at < ?",
			order.PaymentPending, order.ActiveStatuses(), createdBefore).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, translate("find pending payments", err)
	}
	return toDomainOrders(rows), nil
}

func (r *GormOrderRepository) findOrders(ctx context.Context, op string, scope func(*gorm.DB) *gorm.DB) ([]*order.Order, error) {
	var rows []models.OrderModel
	q := scope(r.db.WithContext(ctx).Model(&models.OrderModel{}).Preload("Items"))
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, translate(op, err)
	}
	return toDomainOrders(rows), nil
}

func toDomainOrders(rows []models.OrderModel) []*order.Order {
	out := make([]*order.Order, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

// SaveWithLock persists the mutable order fields with a compare-and-set on
// version. On success o.Version holds the new version.
func (r *GormOrderRepository) SaveWithLock(ctx context.Context, o *order.Order) error {
	expected := o.Version
	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ? AND version = ?", o.ID, expected).
		Updates(map[string]any{
			"status":         o.Status,
			"payment_status": o.PaymentStatus,
			"delivered_at":   o.DeliveredAt,
			"updated_at":     o.UpdatedAt,
			"version":        expected + 1,
		})
	if result.Error != nil {
		return translate("save order", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).
			Where("id = ?", o.ID).Count(&count).Error; err != nil {
			return translate("save order", err)
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.ErrConcurrencyConflict
	}

	o.Version = expected + 1
	return nil
}

// Delete removes an order together with its items and tracking
func (r *GormOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.DeliveryTrackingModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItemModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.OrderModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
	return translate("delete order", err)
}

// FindTracking loads the tracking row of an order
func (r *GormOrderRepository) FindTracking(ctx context.Context, orderID uuid.UUID) (*order.DeliveryTracking, error) {
	var model models.DeliveryTrackingModel
	if err := r.db.WithContext(ctx).First(&model, "order_id = ?", orderID).Error; err != nil {
		return nil, translate("find tracking", err)
	}
	return model.ToDomain(), nil
}

// SaveTracking inserts or updates the tracking row of t.OrderID
func (r *GormOrderRepository) SaveTracking(ctx context.Context, t *order.DeliveryTracking) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.DeliveryTrackingModel
		err := tx.First(&existing, "order_id = ?", t.OrderID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if t.ID == uuid.Nil {
				t.ID = uuid.New()
			}
			var model models.DeliveryTrackingModel
			model.FromDomain(t)
			created = true
			return tx.Create(&model).Error
		case err != nil:
			return err
		}
		t.ID = existing.ID
		return tx.Model(&existing).Updates(map[string]any{
			"status":            t.Status,
			"estimated_minutes": t.EstimatedMinutes,
			"updated_at":        t.UpdatedAt,
		}).Error
	})
	if err != nil {
		return false, translate("save tracking", err)
	}
	return created, nil
}

var (
	_ order.Repository         = (*GormOrderRepository)(nil)
	_ order.TrackingRepository = (*GormOrderRepository)(nil)
)
