package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	cartapp "github.com/foodcourt/storefront/internal/application/cart"
	orderapp "github.com/foodcourt/storefront/internal/application/order"
)

// CheckoutPlacer places an order from the session cart
type CheckoutPlacer interface {
	Checkout(ctx context.Context, ctrl *cartapp.SyncController, req cartapp.CheckoutRequest) (*cartapp.CheckoutResult, error)
}

// CheckoutHandler turns one vendor group of the cart into an order
type CheckoutHandler struct {
	BaseHandler
	sessions SessionSource
	checkout CheckoutPlacer
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(sessions SessionSource, checkout CheckoutPlacer) *CheckoutHandler {
	return &CheckoutHandler{sessions: sessions, checkout: checkout}
}

// CheckoutResponse is returned after an order was placed. PayURL is empty
// when no payment link could be created; PaymentError then says why.
type CheckoutResponse struct {
	Order        orderapp.OrderResponse `json:"order"`
	PayURL       string                 `json:"pay_url,omitempty"`
	PaymentError string                 `json:"payment_error,omitempty"`
}

// Checkout places an order for one vendor.
// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	var req cartapp.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.InvalidJSON(c, err)
		return
	}

	ctrl, err := cartSession(c, h.sessions)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	result, err := h.checkout.Checkout(c.Request.Context(), ctrl, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, CheckoutResponse{
		Order:        orderapp.ToOrderResponse(result.Order),
		PayURL:       result.PayURL,
		PaymentError: result.PaymentError,
	})
}
