package payment

import (
	"errors"
	"net/url"
	"time"

	"github.com/foodcourt/storefront/internal/infrastructure/config"
)

// GatewayConfig contains settings for the hosted payment gateway
type GatewayConfig struct {
	// BaseURL is the gateway API root, e.g. https://pay.example.com
	BaseURL string
	// PartnerCode identifies this merchant at the gateway
	PartnerCode string
	// SecretKey is the shared HMAC key used in both directions
	SecretKey string
	// ReturnURL is where the customer lands after paying
	ReturnURL string
	// NotifyURL receives signed status callbacks
	NotifyURL string
	// Timeout bounds every gateway call
	Timeout time.Duration
}

// Errors for configuration validation
var (
	ErrMissingBaseURL     = errors.New("payment: missing base URL")
	ErrInvalidBaseURL     = errors.New("payment: base URL must be absolute http(s)")
	ErrMissingPartnerCode = errors.New("payment: missing partner code")
	ErrMissingSecretKey   = errors.New("payment: missing secret key")
)

// GatewayConfigFromConfig maps application configuration
func GatewayConfigFromConfig(cfg config.PaymentConfig) *GatewayConfig {
	return &GatewayConfig{
		BaseURL:     cfg.BaseURL,
		PartnerCode: cfg.PartnerCode,
		SecretKey:   cfg.SecretKey,
		ReturnURL:   cfg.ReturnURL,
		NotifyURL:   cfg.NotifyURL,
		Timeout:     cfg.Timeout,
	}
}

// Validate validates the configuration
func (c *GatewayConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBaseURL
	}
	if c.PartnerCode == "" {
		return ErrMissingPartnerCode
	}
	if c.SecretKey == "" {
		return ErrMissingSecretKey
	}
	return nil
}
