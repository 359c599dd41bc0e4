package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/foodcourt/storefront/internal/domain/cart"
	"github.com/foodcourt/storefront/internal/infrastructure/persistence/models"
)

// GormCartLineRepository implements cart.RemoteStore using GORM. Writes are
// last-writer-wins: an upsert replaces the stored line for (customer,
// product) and bumps its version.
type GormCartLineRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormCartLineRepository creates a new GormCartLineRepository
func NewGormCartLineRepository(db *gorm.DB) *GormCartLineRepository {
	return &GormCartLineRepository{db: db, now: time.Now}
}

// ListActive returns the customer's lines in insertion order
func (r *GormCartLineRepository) ListActive(ctx context.Context, customerID uuid.UUID) ([]cart.CartLine, error) {
	var rows []models.CartLineModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ? AND quantity > 0", customerID).
		Order("position ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, translate("list cart lines", err)
	}

	lines := make([]cart.CartLine, 0, len(rows))
	for i := range rows {
		lines = append(lines, rows[i].ToDomain())
	}
	return lines, nil
}

// Upsert writes lines keyed by (customer_id, product_id). A line with
// quantity below one is deleted instead.
func (r *GormCartLineRepository) Upsert(ctx context.Context, customerID uuid.UUID, lines ...cart.CartLine) error {
	if len(lines) == 0 {
		return nil
	}
	now := r.now()

	var stale []uuid.UUID
	rows := make([]*models.CartLineModel, 0, len(lines))
	for i, l := range lines {
		if l.Quantity < 1 {
			stale = append(stale, l.ProductID)
			continue
		}
		// nanosecond positions keep later batches after earlier ones
		rows = append(rows, models.CartLineModelFromDomain(customerID, l, now.UnixNano()+int64(i), now))
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "customer_id"}, {Name: "product_id"}},
				DoUpdates: clause.Assignments(map[string]any{
					"vendor_id":  gorm.Expr("excluded.vendor_id"),
					"name":       gorm.Expr("excluded.name"),
					"unit_price": gorm.Expr("excluded.unit_price"),
					"quantity":   gorm.Expr("excluded.quantity"),
					"image_ref":  gorm.Expr("excluded.image_ref"),
					"updated_at": gorm.Expr("excluded.updated_at"),
					"version":    gorm.Expr("cart_lines.version + 1"),
				}),
			}).Create(&rows).Error; err != nil {
				return err
			}
		}
		if len(stale) > 0 {
			return tx.Where("customer_id = ? AND product_id IN ?", customerID, stale).
				Delete(&models.CartLineModel{}).Error
		}
		return nil
	})
	return translate("upsert cart lines", err)
}

// Delete removes the given products from the customer's cart
func (r *GormCartLineRepository) Delete(ctx context.Context, customerID uuid.UUID, productIDs ...uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND product_id IN ?", customerID, productIDs).
		Delete(&models.CartLineModel{}).Error
	return translate("delete cart lines", err)
}

// DeleteForVendor removes one vendor's lines from the customer's cart
func (r *GormCartLineRepository) DeleteForVendor(ctx context.Context, customerID, vendorID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND vendor_id = ?", customerID, vendorID).
		Delete(&models.CartLineModel{}).Error
	return translate("delete vendor cart lines", err)
}

// DeleteAll empties the customer's cart
func (r *GormCartLineRepository) DeleteAll(ctx context.Context, customerID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Delete(&models.CartLineModel{}).Error
	return translate("clear cart lines", err)
}

var _ cart.RemoteStore = (*GormCartLineRepository)(nil)
