package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/foodcourt/storefront/internal/domain/order"
)

// OrderModel is the persistence model for the Order aggregate root.
type OrderModel struct {
	AggregateModel
	CustomerID    uuid.UUID           `gorm:"type:uuid;not null;index"`
	VendorID      uuid.UUID           `gorm:"type:uuid;not null;index"`
	Status        order.Status        `gorm:"type:varchar(20);not null;default:'pending';index"`
	PaymentStatus order.PaymentStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	TotalPrice    int64               `gorm:"not null;default:0"`
	OrderInfo     string              `gorm:"type:varchar(500)"`
	DeliveredAt   *time.Time
	Items         []OrderItemModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order.
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		BaseAggregateRoot: m.AggregateModel.ToDomainAggregateRoot(),
		CustomerID:        m.CustomerID,
		VendorID:          m.VendorID,
		Status:            m.Status,
		PaymentStatus:     m.PaymentStatus,
		TotalPrice:        m.TotalPrice,
		OrderInfo:         m.OrderInfo,
		DeliveredAt:       m.DeliveredAt,
	}
	if m.Items != nil {
		o.Items = make([]order.OrderItem, len(m.Items))
		for i := range m.Items {
			o.Items[i] = m.Items[i].ToDomain()
		}
	}
	return o
}

// FromDomain populates the persistence model from a domain Order.
func (m *OrderModel) FromDomain(o *order.Order) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.CustomerID = o.CustomerID
	m.VendorID = o.VendorID
	m.Status = o.Status
	m.PaymentStatus = o.PaymentStatus
	m.TotalPrice = o.TotalPrice
	m.OrderInfo = o.OrderInfo
	m.DeliveredAt = o.DeliveredAt
	m.Items = make([]OrderItemModel, len(o.Items))
	for i, item := range o.Items {
		m.Items[i].FromDomain(item)
	}
}

// OrderModelFromDomain creates a new persistence model from a domain Order.
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// OrderItemModel is the persistence model for an order item.
type OrderItemModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID `gorm:"type:uuid;not null"`
	Name      string    `gorm:"type:varchar(200);not null"`
	Quantity  int       `gorm:"not null"`
	Price     int64     `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the model to a domain OrderItem
func (m *OrderItemModel) ToDomain() order.OrderItem {
	return order.OrderItem{
		ID:        m.ID,
		OrderID:   m.OrderID,
		ProductID: m.ProductID,
		Name:      m.Name,
		Quantity:  m.Quantity,
		Price:     m.Price,
	}
}

// FromDomain populates the model from a domain OrderItem
func (m *OrderItemModel) FromDomain(i order.OrderItem) {
	m.ID = i.ID
	m.OrderID = i.OrderID
	m.ProductID = i.ProductID
	m.Name = i.Name
	m.Quantity = i.Quantity
	m.Price = i.Price
}

// DeliveryTrackingModel is the persistence model for delivery tracking,
// one row per order.
type DeliveryTrackingModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key"`
	OrderID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Status           string    `gorm:"type:varchar(50);not null"`
	EstimatedMinutes int       `gorm:"not null;default:0"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DeliveryTrackingModel) TableName() string {
	return "delivery_trackings"
}

// ToDomain converts the model to domain DeliveryTracking
func (m *DeliveryTrackingModel) ToDomain() *order.DeliveryTracking {
	return &order.DeliveryTracking{
		ID:               m.ID,
		OrderID:          m.OrderID,
		Status:           m.Status,
		EstimatedMinutes: m.EstimatedMinutes,
		UpdatedAt:        m.UpdatedAt,
	}
}

// FromDomain populates the model from domain DeliveryTracking
func (m *DeliveryTrackingModel) FromDomain(t *order.DeliveryTracking) {
	m.ID = t.ID
	m.OrderID = t.OrderID
	m.Status = t.Status
	m.EstimatedMinutes = t.EstimatedMinutes
	m.UpdatedAt = t.UpdatedAt
}
