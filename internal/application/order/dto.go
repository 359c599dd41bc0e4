package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/foodcourt/storefront/internal/domain/order"
	"github.com/foodcourt/storefront/internal/domain/shared"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs struct validation and reports the first failure as a
// validation error
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return shared.NewValidationError(fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return shared.NewValidationError(err.Error())
}

// Requester is the authenticated caller of an order operation
type Requester struct {
	Actor    order.Actor
	UserID   uuid.UUID
	VendorID uuid.UUID
}

// SystemRequester acts on behalf of background jobs and the payment callback
var SystemRequester = Requester{Actor: order.ActorSystem}

// ==================== Requests ====================

// ChangeStatusRequest asks for one step of the status DAG
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed preparing delivering completed cancelled"`
}

// TrackingRequest writes the delivery tracking of an order
type TrackingRequest struct {
	Status           string `json:"status" validate:"required,max=100"`
	EstimatedMinutes int    `json:"estimated_minutes" validate:"gte=0,lte=600"`
}

// ==================== Responses ====================

// OrderDetail is an order with its delivery tracking, if any
type OrderDetail struct {
	Order    *order.Order
	Tracking *order.DeliveryTracking
}

// OrderItemResponse is an order item as returned to clients
type OrderItemResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Price     int64     `json:"price"`
	Amount    int64     `json:"amount"`
}

// TrackingResponse is delivery tracking as returned to clients
type TrackingResponse struct {
	Status           string    `json:"status"`
	EstimatedMinutes int       `json:"estimated_minutes"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// OrderResponse is an order as returned to clients
type OrderResponse struct {
	ID            uuid.UUID           `json:"id"`
	CustomerID    uuid.UUID           `json:"customer_id"`
	VendorID      uuid.UUID           `json:"vendor_id"`
	Status        string              `json:"status"`
	PaymentStatus string              `json:"payment_status"`
	TotalPrice    int64               `json:"total_price"`
	OrderInfo     string              `json:"order_info,omitempty"`
	Items         []OrderItemResponse `json:"items"`
	ItemCount     int                 `json:"item_count"`
	Version       int                 `json:"version"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	DeliveredAt   *time.Time          `json:"delivered_at,omitempty"`
	Tracking      *TrackingResponse   `json:"tracking,omitempty"`
}

// ToOrderResponse converts an order
func ToOrderResponse(o *order.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Amount:    it.Amount(),
		}
	}
	return OrderResponse{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		VendorID:      o.VendorID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		TotalPrice:    o.TotalPrice,
		OrderInfo:     o.OrderInfo,
		Items:         items,
		ItemCount:     o.ItemCount(),
		Version:       o.Version,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		DeliveredAt:   o.DeliveredAt,
	}
}

// ToOrderDetailResponse converts an order with its tracking
func ToOrderDetailResponse(d OrderDetail) OrderResponse {
	resp := ToOrderResponse(d.Order)
	if d.Tracking != nil {
		resp.Tracking = &TrackingResponse{
			Status:           d.Tracking.Status,
			EstimatedMinutes: d.Tracking.EstimatedMinutes,
			UpdatedAt:        d.Tracking.UpdatedAt,
		}
	}
	return resp
}

// ToOrderResponses converts a list of orders
func ToOrderResponses(orders []*order.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = ToOrderResponse(o)
	}
	return out
}
