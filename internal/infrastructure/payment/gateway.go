package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/foodcourt/storefront/internal/domain/order"
	"github.com/foodcourt/storefront/internal/domain/shared"
)

const defaultTimeout = 10 * time.Second

// Gateway errors
var (
	ErrGatewayRequestFailed = errors.New("payment: gateway rejected request")
	ErrInvalidSignature     = errors.New("payment: invalid callback signature")
	ErrPartnerMismatch      = errors.New("payment: callback for another partner")
	ErrMalformedCallback    = errors.New("payment: malformed callback payload")
)

// HTTPGateway implements order.PaymentGateway against a JSON HTTP API
// authenticated with HMAC-SHA256 signatures.
type HTTPGateway struct {
	config     *GatewayConfig
	signer     *Signer
	httpClient *http.Client
}

var _ order.PaymentGateway = (*HTTPGateway)(nil)

// GatewayOption customizes the gateway client
type GatewayOption func(*HTTPGateway)

// WithHTTPClient replaces the default instrumented client
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *HTTPGateway) {
		g.httpClient = c
	}
}

// NewHTTPGateway creates a new gateway client
func NewHTTPGateway(cfg *GatewayConfig, opts ...GatewayOption) (*HTTPGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	g := &HTTPGateway{
		config: cfg,
		signer: NewSigner(cfg.SecretKey),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// CreatePaymentLink requests a hosted payment page for an order. A gateway
// refusal is reported as PaymentLink{Success: false}; transport failures are
// NetworkErrors.
func (g *HTTPGateway) CreatePaymentLink(ctx context.Context, req order.PaymentLinkRequest) (order.PaymentLink, error) {
	if req.OrderID == uuid.Nil || req.Amount <= 0 {
		return order.PaymentLink{}, shared.NewValidationError("payment link needs an order id and a positive amount")
	}

	body := &createPaymentRequest{
		PartnerCode: g.config.PartnerCode,
		RequestID:   uuid.New().String(),
		OrderID:     req.OrderID.String(),
		Amount:      req.Amount,
		OrderInfo:   req.OrderInfo,
		ReturnURL:   g.config.ReturnURL,
		NotifyURL:   g.config.NotifyURL,
		Items:       req.Items,
	}
	body.Signature = g.signer.Sign(body.fields())

	var resp createPaymentResponse
	if err := g.post(ctx, createPath, body, &resp); err != nil {
		return order.PaymentLink{}, err
	}

	if resp.ResultCode != resultCodeSuccess {
		return order.PaymentLink{Success: false, Message: resp.Message}, nil
	}
	if resp.PayURL == "" {
		return order.PaymentLink{Success: false, Message: "gateway returned no payment URL"}, nil
	}
	return order.PaymentLink{Success: true, PayURL: resp.PayURL}, nil
}

// GetPaymentStatus queries the gateway for the payment state of an order
func (g *HTTPGateway) GetPaymentStatus(ctx context.Context, orderID uuid.UUID) (order.PaymentResult, error) {
	body := &queryPaymentRequest{
		PartnerCode: g.config.PartnerCode,
		RequestID:   uuid.New().String(),
		OrderID:     orderID.String(),
	}
	body.Signature = g.signer.Sign(body.fields())

	var resp queryPaymentResponse
	if err := g.post(ctx, queryPath, body, &resp); err != nil {
		return order.PaymentResult{}, err
	}
	if resp.ResultCode != resultCodeSuccess {
		return order.PaymentResult{}, fmt.Errorf("%w: %d - %s", ErrGatewayRequestFailed, resp.ResultCode, resp.Message)
	}

	return order.PaymentResult{
		Status:    mapGatewayStatus(resp.Status),
		Amount:    resp.Amount,
		Timestamp: fromMillis(resp.Timestamp),
	}, nil
}

// VerifyCallback checks the signature of a gateway notification and parses it
func (g *HTTPGateway) VerifyCallback(payload []byte) (*Callback, error) {
	var p callbackPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	if p.OrderID == "" || p.Signature == "" {
		return nil, ErrMalformedCallback
	}
	if p.PartnerCode != g.config.PartnerCode {
		return nil, ErrPartnerMismatch
	}
	if !g.signer.Verify(p.fields(), p.Signature) {
		return nil, ErrInvalidSignature
	}

	return &Callback{
		OrderID:   p.OrderID,
		RequestID: p.RequestID,
		Status:    mapGatewayStatus(p.Status),
		Amount:    p.Amount,
		Message:   p.Message,
		Timestamp: fromMillis(p.Timestamp),
	}, nil
}

// post performs a signed JSON request to the gateway API
func (g *HTTPGateway) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("payment: failed to marshal request: %w", err)
	}

	url := strings.TrimRight(g.config.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("payment: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return shared.NewNetworkError("payment gateway unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return shared.NewNetworkError("payment gateway response truncated", err)
	}

	if resp.StatusCode >= 500 {
		return shared.NewNetworkError("payment gateway unavailable",
			fmt.Errorf("HTTP %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
			return fmt.Errorf("%w: %d - %s", ErrGatewayRequestFailed, errResp.ResultCode, errResp.Message)
		}
		return fmt.Errorf("%w: HTTP %d", ErrGatewayRequestFailed, resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("payment: failed to parse response: %w", err)
	}
	return nil
}
