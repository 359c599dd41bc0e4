package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/foodcourt/storefront/internal/domain/cart"
)

// CartLineModel is a persisted cart line. (customer_id, product_id) is the
// natural key used for last-writer-wins upserts; Version counts writes.
type CartLineModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	CustomerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_lines_customer_product,priority:1"`
	ProductID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_lines_customer_product,priority:2"`
	VendorID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Name       string    `gorm:"type:varchar(200);not null"`
	UnitPrice  int64     `gorm:"not null;default:0"`
	Quantity   int       `gorm:"not null"`
	ImageRef   string    `gorm:"type:varchar(500)"`
	Position   int64     `gorm:"not null;default:0"`
	Version    int       `gorm:"not null;default:1"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CartLineModel) TableName() string {
	return "cart_lines"
}

// ToDomain converts the model to a cart line
func (m *CartLineModel) ToDomain() cart.CartLine {
	return cart.CartLine{
		ProductID: m.ProductID,
		VendorID:  m.VendorID,
		Name:      m.Name,
		UnitPrice: m.UnitPrice,
		Quantity:  m.Quantity,
		ImageRef:  m.ImageRef,
	}
}

// CartLineModelFromDomain builds a model for customerID. position keeps
// the insertion order of the cart.
func CartLineModelFromDomain(customerID uuid.UUID, l cart.CartLine, position int64, now time.Time) *CartLineModel {
	return &CartLineModel{
		ID:         uuid.New(),
		CustomerID: customerID,
		ProductID:  l.ProductID,
		VendorID:   l.VendorID,
		Name:       l.Name,
		UnitPrice:  l.UnitPrice,
		Quantity:   l.Quantity,
		ImageRef:   l.ImageRef,
		Position:   position,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
