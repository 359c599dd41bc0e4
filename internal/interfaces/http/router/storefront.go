package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/foodcourt/storefront/internal/interfaces/http/handler"
	"github.com/foodcourt/storefront/internal/interfaces/http/middleware"
)

// Handlers bundles the storefront HTTP handlers
type Handlers struct {
	Cart     *handler.CartHandler
	Checkout *handler.CheckoutHandler
	Orders   *handler.OrderHandler
	Streams  *handler.OrderStreamHandler
	Payments *handler.PaymentCallbackHandler
	Health   *handler.HealthHandler
}

// StorefrontConfig holds the request-scoped settings of the API group
type StorefrontConfig struct {
	SessionHeader string
}

// RegisterStorefront mounts the storefront API on r and the health probe
// on the engine.
func RegisterStorefront(r *Router, h Handlers, verifier middleware.TokenVerifier, cfg StorefrontConfig, log *zap.Logger) {
	r.Use(
		middleware.SessionID(cfg.SessionHeader),
		middleware.Identity(verifier, log),
		middleware.SpanAttributes(),
	)

	if h.Health != nil {
		r.engine.GET("/health", h.Health.Health)
	}

	for _, group := range storefrontGroups(h) {
		r.Register(group)
	}
}

func storefrontGroups(h Handlers) []*DomainGroup {
	cart := NewDomainGroup("cart", "/cart").
		GET("", h.Cart.Get).
		DELETE("", h.Cart.Clear).
		POST("/items", h.Cart.AddItem).
		POST("/items/:productId/increment", h.Cart.Increment).
		POST("/items/:productId/decrement", h.Cart.Decrement).
		DELETE("/items/:productId", h.Cart.Remove).
		GET("/vendors/:vendorId", h.Cart.VendorGroup)

	checkout := NewDomainGroup("checkout", "/checkout").
		Use(middleware.RequireAuth()).
		POST("", h.Checkout.Checkout)

	orders := NewDomainGroup("orders", "/orders").
		Use(middleware.RequireAuth()).
		GET("", h.Orders.List).
		GET("/stream", h.Streams.StreamActive).
		GET("/:id", h.Orders.Get).
		GET("/:id/stream", h.Streams.StreamDetail).
		POST("/:id/status", h.Orders.ChangeStatus).
		PUT("/:id/tracking", vendorOnly(h.Orders.UpsertTracking)...)

	vendor := NewDomainGroup("vendor", "/vendor")
	vendor.Group("vendor-orders", "/orders").
		Use(middleware.RequireVendor()).
		GET("", h.Orders.VendorOrders).
		DELETE("/:id", h.Orders.Delete)

	groups := []*DomainGroup{cart, checkout, orders, vendor}

	// without a configured gateway there is nobody to call back
	if h.Payments != nil {
		groups = append(groups, NewDomainGroup("payments", "/payments").
			POST("/callback", h.Payments.Handle))
	}
	return groups
}

func vendorOnly(next gin.HandlerFunc) []gin.HandlerFunc {
	return []gin.HandlerFunc{middleware.RequireVendor(), next}
}
