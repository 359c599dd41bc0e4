package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	orderapp "github.com/foodcourt/storefront/internal/application/order"
	"github.com/foodcourt/storefront/internal/domain/order"
	"github.com/foodcourt/storefront/internal/interfaces/http/dto"
)

// OrderService is the order use cases served over HTTP
type OrderService interface {
	Get(ctx context.Context, orderID uuid.UUID, req orderapp.Requester) (*orderapp.OrderDetail, error)
	ListActive(ctx context.Context, customerID uuid.UUID) ([]*order.Order, error)
	ListVendor(ctx context.Context, vendorID uuid.UUID, activeOnly bool) ([]*order.Order, error)
	ChangeStatus(ctx context.Context, orderID uuid.UUID, requested order.Status, req orderapp.Requester) (*order.Order, error)
	UpsertTracking(ctx context.Context, orderID uuid.UUID, in orderapp.TrackingRequest, req orderapp.Requester) (*order.DeliveryTracking, error)
	Delete(ctx context.Context, orderID uuid.UUID, req orderapp.Requester) error
}

// OrderHandler serves order reads and status changes
type OrderHandler struct {
	BaseHandler
	orders OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// List returns the active orders of the signed-in customer.
// GET /api/v1/orders
func (h *OrderHandler) List(c *gin.Context) {
	req, ok := requester(c)
	if !ok {
		h.Unauthorized(c, "Authentication required")
		return
	}
	orders, err := h.orders.ListActive(c.Request.Context(), req.UserID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, orderapp.ToOrderResponses(orders))
}

// Get returns an order with its items and tracking.
// GET /api/v1/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	req, ok := requester(c)
	if !ok {
		h.Unauthorized(c, "Authentication required")
		return
	}
	detail, err := h.orders.Get(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, orderapp.ToOrderDetailResponse(*detail))
}

// ChangeStatus moves an order one step. The actor is the role of the token.
// POST /api/v1/orders/:id/status
func (h *OrderHandler) ChangeStatus(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	req, ok := requester(c)
	if !ok {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var body orderapp.ChangeStatusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.InvalidJSON(c, err)
		return
	}
	if err := orderapp.Validate(body); err != nil {
		h.HandleError(c, err)
		return
	}

	o, err := h.orders.ChangeStatus(c.Request.Context(), id, order.Status(body.Status), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ChangeStatusResponse{Order: orderapp.ToOrderResponse(o)})
}

// UpsertTracking writes the delivery tracking of an order.
// PUT /api/v1/orders/:id/tracking
func (h *OrderHandler) UpsertTracking(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	req, ok := requester(c)
	if !ok {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var body orderapp.TrackingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.InvalidJSON(c, err)
		return
	}

	t, err := h.orders.UpsertTracking(c.Request.Context(), id, body, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, orderapp.TrackingResponse{
		Status:           t.Status,
		EstimatedMinutes: t.EstimatedMinutes,
		UpdatedAt:        t.UpdatedAt,
	})
}

// VendorOrders lists the orders of the vendor in the token.
// GET /api/v1/vendor/orders?active=true
func (h *OrderHandler) VendorOrders(c *gin.Context) {
	req, ok := requester(c)
	if !ok || req.Actor != order.ActorVendor {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeForbidden), dto.ErrCodeForbidden, "Vendor access required")
		return
	}
	var q dto.VendorOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, "Invalid query")
		return
	}
	orders, err := h.orders.ListVendor(c.Request.Context(), req.VendorID, q.ActiveOnly)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, orderapp.ToOrderResponses(orders))
}

// Delete removes one of the vendor's orders.
// DELETE /api/v1/vendor/orders/:id
func (h *OrderHandler) Delete(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	req, ok := requester(c)
	if !ok {
		h.Unauthorized(c, "Authentication required")
		return
	}
	if err := h.orders.Delete(c.Request.Context(), id, req); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
