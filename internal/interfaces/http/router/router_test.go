package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodcourt/storefront/internal/interfaces/http/handler"
	"github.com/foodcourt/storefront/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))

	group := NewDomainGroup("test", "/test")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.Register(group)
	r.Setup()

	w := serve(engine, http.MethodGet, "/api/v1/test/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/test/ping").Code)
}

func TestRouterUse(t *testing.T) {
	engine := gin.New()
	engine.GET("/outside", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("mark"))
	})

	r := NewRouter(engine).Use(func(c *gin.Context) {
		c.Set("mark", "api")
		c.Next()
	})
	r.Register(NewDomainGroup("test", "/test").GET("", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("mark"))
	}))
	r.Setup()

	assert.Equal(t, "api", serve(engine, http.MethodGet, "/api/v1/test").Body.String())
	assert.Empty(t, serve(engine, http.MethodGet, "/outside").Body.String())
}

func TestDomainGroup(t *testing.T) {
	t.Run("name and prefix", func(t *testing.T) {
		g := NewDomainGroup("cart", "/cart")
		assert.Equal(t, "cart", g.Name())
		assert.Equal(t, "/cart", g.Prefix())
	})

	t.Run("registers every method", func(t *testing.T) {
		engine := gin.New()
		ok := func(c *gin.Context) { c.String(http.StatusOK, c.Request.Method) }
		g := NewDomainGroup("test", "/test").
			GET("/r", ok).
			POST("/r", ok).
			PUT("/r", ok).
			DELETE("/r", ok).
			Handle(http.MethodOptions, "/r", ok)
		g.RegisterRoutes(engine.Group("/api/v1"))

		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions} {
			w := serve(engine, method, "/api/v1/test/r")
			assert.Equal(t, http.StatusOK, w.Code, method)
			assert.Equal(t, method, w.Body.String())
		}
	})

	t.Run("group middleware", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("test", "/test").Use(func(c *gin.Context) {
			c.AbortWithStatus(http.StatusTeapot)
		})
		g.GET("/blocked", func(c *gin.Context) { c.Status(http.StatusOK) })
		g.RegisterRoutes(engine.Group("/api/v1"))

		assert.Equal(t, http.StatusTeapot, serve(engine, http.MethodGet, "/api/v1/test/blocked").Code)
	})

	t.Run("subgroups inherit prefix and middleware", func(t *testing.T) {
		engine := gin.New()
		parent := NewDomainGroup("vendor", "/vendor").Use(func(c *gin.Context) {
			c.Header("X-Parent", "1")
			c.Next()
		})
		child := parent.Group("orders", "/orders")
		child.GET("", func(c *gin.Context) { c.String(http.StatusOK, "orders") })
		parent.RegisterRoutes(engine.Group("/api/v1"))

		w := serve(engine, http.MethodGet, "/api/v1/vendor/orders")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "orders", w.Body.String())
		assert.Equal(t, "1", w.Header().Get("X-Parent"))
		assert.Equal(t, "orders", child.Name())
	})
}

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(EngineConfig{
		CORSAllowOrigins: []string{"https://shop.example"},
		MaxBodySize:      1 << 10,
	}, nil)
	require.NoError(t, err)

	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	engine.GET("/panic", func(c *gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://shop.example")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestHeader))
	assert.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))

	assert.Equal(t, http.StatusInternalServerError, serve(engine, http.MethodGet, "/panic").Code)
}

func TestNewEngine_RejectsBadProxy(t *testing.T) {
	_, err := NewEngine(EngineConfig{TrustedProxies: []string{"not-a-cidr"}}, nil)
	assert.Error(t, err)
}

func TestRegisterStorefront(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)
	h := Handlers{Payments: handler.NewPaymentCallbackHandler(nil, nil)}
	RegisterStorefront(r, h, nil, StorefrontConfig{SessionHeader: middleware.SessionHeader}, nil)
	r.Setup()

	registered := make(map[string]bool)
	for _, route := range engine.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	want := []string{
		"GET /api/v1/cart",
		"DELETE /api/v1/cart",
		"POST /api/v1/cart/items",
		"POST /api/v1/cart/items/:productId/increment",
		"POST /api/v1/cart/items/:productId/decrement",
		"DELETE /api/v1/cart/items/:productId",
		"GET /api/v1/cart/vendors/:vendorId",
		"POST /api/v1/checkout",
		"GET /api/v1/orders",
		"GET /api/v1/orders/stream",
		"GET /api/v1/orders/:id",
		"GET /api/v1/orders/:id/stream",
		"POST /api/v1/orders/:id/status",
		"PUT /api/v1/orders/:id/tracking",
		"GET /api/v1/vendor/orders",
		"DELETE /api/v1/vendor/orders/:id",
		"POST /api/v1/payments/callback",
	}
	for _, route := range want {
		assert.True(t, registered[route], route)
	}
	assert.False(t, registered["GET /health"], "health is only mounted when a handler exists")
}

func TestRegisterStorefront_NoGateway(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)
	RegisterStorefront(r, Handlers{}, nil, StorefrontConfig{}, nil)
	r.Setup()

	for _, route := range engine.Routes() {
		assert.NotEqual(t, "/api/v1/payments/callback", route.Path)
	}
}

func TestRegisterStorefront_AuthGates(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)
	RegisterStorefront(r, Handlers{}, nil, StorefrontConfig{SessionHeader: middleware.SessionHeader}, nil)
	r.Setup()

	// guests are stopped before any handler runs
	assert.Equal(t, http.StatusUnauthorized, serve(engine, http.MethodPost, "/api/v1/checkout").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(engine, http.MethodGet, "/api/v1/orders").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(engine, http.MethodGet, "/api/v1/vendor/orders").Code)
}
