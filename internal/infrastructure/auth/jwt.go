package auth

import (
	"errors"
	"time"

	"github.com/foodcourt/storefront/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role identifies which write path a caller may use on an order
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
)

// IsValid reports whether the role is known
func (r Role) IsValid() bool {
	return r == RoleCustomer || r == RoleVendor
}

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingUserID    = errors.New("missing user_id in claims")
	ErrMissingVendorID  = errors.New("vendor token without vendor_id")
	ErrInvalidIssuer    = errors.New("token issuer mismatch")
)

// Claims represents the identity carried by a bearer token
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Role     Role   `json:"role"`
	VendorID string `json:"vendor_id,omitempty"`
}

// UserUUID returns the parsed user id
func (c *Claims) UserUUID() uuid.UUID {
	id, _ := uuid.Parse(c.UserID)
	return id
}

// VendorUUID returns the parsed vendor id, uuid.Nil for customers
func (c *Claims) VendorUUID() uuid.UUID {
	if c.VendorID == "" {
		return uuid.Nil
	}
	id, _ := uuid.Parse(c.VendorID)
	return id
}

// IsVendor reports whether the token belongs to a vendor operator
func (c *Claims) IsVendor() bool {
	return c.Role == RoleVendor
}

// TokenVerifier validates HS256 tokens issued by the identity service.
// Issuance lives outside this service; Sign exists for tooling and tests.
type TokenVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewTokenVerifier creates a verifier from configuration
func NewTokenVerifier(cfg config.JWTConfig) *TokenVerifier {
	return &TokenVerifier{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		leeway: 30 * time.Second,
	}
}

// Verify parses and validates a token string and returns its claims
func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, opts...)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, ErrInvalidIssuer
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	if claims.UserID == "" {
		return nil, ErrMissingUserID
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, ErrInvalidClaims
	}
	if claims.Role == "" {
		claims.Role = RoleCustomer
	}
	if !claims.Role.IsValid() {
		return nil, ErrInvalidClaims
	}
	if claims.IsVendor() {
		if claims.VendorID == "" {
			return nil, ErrMissingVendorID
		}
		if _, err := uuid.Parse(claims.VendorID); err != nil {
			return nil, ErrInvalidClaims
		}
	}

	return claims, nil
}

// SignInput contains the identity to encode into a token
type SignInput struct {
	UserID   uuid.UUID
	Role     Role
	VendorID uuid.UUID
	TTL      time.Duration
	// IssuedAt defaults to now
	IssuedAt time.Time
}

// Sign produces a token the verifier accepts
func (v *TokenVerifier) Sign(input SignInput) (string, error) {
	now := input.IssuedAt
	if now.IsZero() {
		now = time.Now()
	}
	ttl := input.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    v.issuer,
			Subject:   input.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: input.UserID.String(),
		Role:   input.Role,
	}
	if input.VendorID != uuid.Nil {
		claims.VendorID = input.VendorID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
