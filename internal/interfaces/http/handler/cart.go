package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	cartapp "github.com/foodcourt/storefront/internal/application/cart"
	"github.com/foodcourt/storefront/internal/interfaces/http/dto"
)

// CartHandler serves the session cart
type CartHandler struct {
	BaseHandler
	sessions SessionSource
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(sessions SessionSource) *CartHandler {
	return &CartHandler{sessions: sessions}
}

// Get returns the cart with vendor groups and sync status.
// GET /api/v1/cart
func (h *CartHandler) Get(c *gin.Context) {
	ctrl, err := cartSession(c, h.sessions)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.respond(c, ctrl)
}

// AddItem adds a quantity of a product.
// POST /api/v1/cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	var req cartapp.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.InvalidJSON(c, err)
		return
	}
	if err := cartapp.Validate(req); err != nil {
		h.HandleError(c, err)
		return
	}

	ctrl, err := cartSession(c, h.sessions)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if err := ctrl.Add(c.Request.Context(), req.ToLine()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.respond(c, ctrl)
}

// Increment adds one unit of a product already in the cart.
// POST /api/v1/cart/items/:productId/increment
func (h *CartHandler) Increment(c *gin.Context) {
	h.mutateProduct(c, (*cartapp.SyncController).Increment)
}

// Decrement removes one unit; the line goes away at zero.
// POST /api/v1/cart/items/:productId/decrement
func (h *CartHandler) Decrement(c *gin.Context) {
	h.mutateProduct(c, (*cartapp.SyncController).Decrement)
}

// Remove drops a product from the cart.
// DELETE /api/v1/cart/items/:productId
func (h *CartHandler) Remove(c *gin.Context) {
	h.mutateProduct(c, (*cartapp.SyncController).Remove)
}

// Clear empties the cart.
// DELETE /api/v1/cart
func (h *CartHandler) Clear(c *gin.Context) {
	ctrl, err := cartSession(c, h.sessions)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if err := ctrl.Clear(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.respond(c, ctrl)
}

// VendorGroup returns one vendor's share of the cart.
// GET /api/v1/cart/vendors/:vendorId
func (h *CartHandler) VendorGroup(c *gin.Context) {
	var req dto.VendorIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid vendor id")
		return
	}
	vendorID := uuid.MustParse(req.VendorID)

	ctrl, err := cartSession(c, h.sessions)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	group, ok := ctrl.Group(vendorID)
	if !ok {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeNotFound), dto.ErrCodeNotFound, "Cart has no items from this vendor")
		return
	}
	h.Success(c, cartapp.ToVendorGroupResponse(group))
}

func (h *CartHandler) mutateProduct(c *gin.Context, op func(*cartapp.SyncController, context.Context, uuid.UUID) error) {
	var req dto.ProductIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid product id")
		return
	}
	productID := uuid.MustParse(req.ProductID)

	ctrl, err := cartSession(c, h.sessions)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if err := op(ctrl, c.Request.Context(), productID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.respond(c, ctrl)
}

func (h *CartHandler) respond(c *gin.Context, ctrl *cartapp.SyncController) {
	h.Success(c, cartapp.ToCartResponse(ctrl.Snapshot(), ctrl.Status()))
}
