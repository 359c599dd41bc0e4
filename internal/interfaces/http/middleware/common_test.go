package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodcourt/storefront/internal/infrastructure/auth"
	"github.com/foodcourt/storefront/internal/infrastructure/config"
	"github.com/foodcourt/storefront/internal/infrastructure/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCORS(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"https://shop.example"}

	router := gin.New()
	router.Use(CORSWithConfig(cfg))
	router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "https://shop.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), SessionHeader)
	})

	t.Run("unknown origin gets no headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/test", nil)
		req.Header.Set("Origin", "https://shop.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "43200", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("wildcard never allows credentials", func(t *testing.T) {
		wild := DefaultCORSConfig()
		wild.AllowOrigins = []string{"*"}
		r := gin.New()
		r.Use(CORSWithConfig(wild))
		r.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "https://any.example")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	})
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		assert.Equal(t, GetRequestID(c), logger.GetRequestID(c.Request.Context()))
		c.String(http.StatusOK, GetRequestID(c))
	})

	t.Run("keeps client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestHeader, "client-id")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "client-id", w.Header().Get(RequestHeader))
		assert.Equal(t, "client-id", w.Body.String())
	})

	t.Run("generates one", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		_, err := uuid.Parse(w.Header().Get(RequestHeader))
		assert.NoError(t, err)
	})
}

func TestSessionID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), SessionID(""))
	router.GET("/test", func(c *gin.Context) {
		assert.Equal(t, GetSessionID(c), logger.GetSessionID(c.Request.Context()))
		c.String(http.StatusOK, GetSessionID(c))
	})

	t.Run("echoes a valid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(SessionHeader, "abcdef123456")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "abcdef123456", w.Body.String())
		assert.Equal(t, "abcdef123456", w.Header().Get(SessionHeader))
	})

	t.Run("issues a new id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, w.Header().Get(SessionHeader), 32)
	})

	t.Run("rejects ids unsafe for cache keys", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(SessionHeader, "a:b:c:d:e:f")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func newTestVerifier() *auth.TokenVerifier {
	return auth.NewTokenVerifier(config.JWTConfig{Secret: "test-secret-key-at-least-32-chars", Issuer: "storefront-test"})
}

func TestIdentity(t *testing.T) {
	verifier := newTestVerifier()
	userID, vendorID := uuid.New(), uuid.New()

	router := gin.New()
	router.Use(RequestID(), Identity(verifier, nil))
	router.GET("/whoami", func(c *gin.Context) {
		if claims := GetClaims(c); claims != nil {
			c.String(http.StatusOK, claims.UserID)
			return
		}
		c.String(http.StatusOK, "guest")
	})
	router.GET("/mine", RequireAuth(), func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/vendor", RequireVendor(), func(c *gin.Context) { c.Status(http.StatusOK) })

	customerToken, err := verifier.Sign(auth.SignInput{UserID: userID, Role: auth.RoleCustomer})
	require.NoError(t, err)
	vendorToken, err := verifier.Sign(auth.SignInput{UserID: uuid.New(), Role: auth.RoleVendor, VendorID: vendorID})
	require.NoError(t, err)
	expiredToken, err := verifier.Sign(auth.SignInput{UserID: userID, TTL: time.Minute, IssuedAt: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	do := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := do("/whoami", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "guest", w.Body.String())

	w = do("/whoami", customerToken)
	assert.Equal(t, userID.String(), w.Body.String())

	w = do("/whoami", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_TOKEN_INVALID")

	w = do("/whoami", expiredToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_TOKEN_EXPIRED")

	assert.Equal(t, http.StatusUnauthorized, do("/mine", "").Code)
	assert.Equal(t, http.StatusOK, do("/mine", customerToken).Code)

	assert.Equal(t, http.StatusForbidden, do("/vendor", customerToken).Code)
	assert.Equal(t, http.StatusOK, do("/vendor", vendorToken).Code)
}
