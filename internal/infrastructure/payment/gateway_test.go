package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodcourt/storefront/internal/domain/order"
	"github.com/foodcourt/storefront/internal/domain/shared"
)

const (
	testPartner = "FOODCOURT"
	testSecret  = "gateway-shared-secret"
)

func newTestGateway(t *testing.T, baseURL string) *HTTPGateway {
	t.Helper()
	g, err := NewHTTPGateway(&GatewayConfig{
		BaseURL:     baseURL,
		PartnerCode: testPartner,
		SecretKey:   testSecret,
		ReturnURL:   "https://shop.example.com/orders",
		NotifyURL:   "https://shop.example.com/api/v1/payments/callback",
		Timeout:     2 * time.Second,
	}, WithHTTPClient(&http.Client{Timeout: 2 * time.Second}))
	require.NoError(t, err)
	return g
}

// ==================== Config ====================

func TestGatewayConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     GatewayConfig
		wantErr error
	}{
		{"valid", GatewayConfig{BaseURL: "https://pay.example.com", PartnerCode: "P", SecretKey: "S"}, nil},
		{"missing base url", GatewayConfig{PartnerCode: "P", SecretKey: "S"}, ErrMissingBaseURL},
		{"relative base url", GatewayConfig{BaseURL: "/pay", PartnerCode: "P", SecretKey: "S"}, ErrInvalidBaseURL},
		{"missing partner", GatewayConfig{BaseURL: "https://pay.example.com", SecretKey: "S"}, ErrMissingPartnerCode},
		{"missing secret", GatewayConfig{BaseURL: "https://pay.example.com", PartnerCode: "P"}, ErrMissingSecretKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// ==================== Signature ====================

func TestCanonical_SortsKeysAndSkipsSignature(t *testing.T) {
	got := Canonical(map[string]string{
		"orderId":   "o1",
		"amount":    "100",
		"signature": "ignored",
		"message":   "",
	})
	assert.Equal(t, "amount=100&message=&orderId=o1", got)
}

func TestSigner_SignVerify(t *testing.T) {
	s := NewSigner(testSecret)
	fields := map[string]string{"orderId": "o1", "amount": "100"}

	sig := s.Sign(fields)

	assert.Len(t, sig, 64)
	assert.True(t, s.Verify(fields, sig))
	assert.False(t, s.Verify(fields, "zz"))
	assert.False(t, NewSigner("other").Verify(fields, sig))

	fields["amount"] = "101"
	assert.False(t, s.Verify(fields, sig))
}

// ==================== CreatePaymentLink ====================

func TestCreatePaymentLink_Success(t *testing.T) {
	orderID := uuid.New()
	var received createPaymentRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, createPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(createPaymentResponse{ResultCode: 0, PayURL: "https://pay.example.com/p/123"})
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	link, err := g.CreatePaymentLink(context.Background(), order.PaymentLinkRequest{
		Amount:    20000,
		OrderID:   orderID,
		OrderInfo: "Order at Noodle Bar",
		Items:     []order.PaymentItem{{ProductID: uuid.New(), Name: "Pho", Quantity: 2, Price: 10000}},
	})

	require.NoError(t, err)
	assert.True(t, link.Success)
	assert.Equal(t, "https://pay.example.com/p/123", link.PayURL)

	assert.Equal(t, testPartner, received.PartnerCode)
	assert.Equal(t, orderID.String(), received.OrderID)
	assert.Equal(t, int64(20000), received.Amount)
	assert.Len(t, received.Items, 1)
	assert.True(t, NewSigner(testSecret).Verify(received.fields(), received.Signature))
}

func TestCreatePaymentLink_Refused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(createPaymentResponse{ResultCode: 42, Message: "amount out of range"})
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	link, err := g.CreatePaymentLink(context.Background(), order.PaymentLinkRequest{Amount: 1, OrderID: uuid.New()})

	require.NoError(t, err)
	assert.False(t, link.Success)
	assert.Equal(t, "amount out of range", link.Message)
}

func TestCreatePaymentLink_InvalidInput(t *testing.T) {
	g := newTestGateway(t, "http://127.0.0.1:1")

	_, err := g.CreatePaymentLink(context.Background(), order.PaymentLinkRequest{Amount: 0, OrderID: uuid.New()})

	assert.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestCreatePaymentLink_ServerErrorIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	_, err := g.CreatePaymentLink(context.Background(), order.PaymentLinkRequest{Amount: 100, OrderID: uuid.New()})

	assert.Equal(t, shared.KindNetwork, shared.KindOf(err))
}

func TestCreatePaymentLink_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	g := newTestGateway(t, url)
	_, err := g.CreatePaymentLink(context.Background(), order.PaymentLinkRequest{Amount: 100, OrderID: uuid.New()})

	assert.Equal(t, shared.KindNetwork, shared.KindOf(err))
}

func TestCreatePaymentLink_ClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(errorResponse{ResultCode: 11, Message: "bad signature"})
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	_, err := g.CreatePaymentLink(context.Background(), order.PaymentLinkRequest{Amount: 100, OrderID: uuid.New()})

	assert.ErrorIs(t, err, ErrGatewayRequestFailed)
	assert.Contains(t, err.Error(), "bad signature")
}

// ==================== GetPaymentStatus ====================

func TestGetPaymentStatus(t *testing.T) {
	paidAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		gatewayStatus string
		want          order.PaymentStatus
	}{
		{"PAID", order.PaymentPaid},
		{"FAILED", order.PaymentFailed},
		{"EXPIRED", order.PaymentFailed},
		{"PENDING", order.PaymentPending},
		{"SOMETHING_NEW", order.PaymentPending},
	}

	for _, tt := range tests {
		t.Run(tt.gatewayStatus, func(t *testing.T) {
			orderID := uuid.New()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, queryPath, r.URL.Path)
				var req queryPaymentRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, orderID.String(), req.OrderID)
				assert.True(t, NewSigner(testSecret).Verify(req.fields(), req.Signature))

				_ = json.NewEncoder(w).Encode(queryPaymentResponse{
					OrderID:   req.OrderID,
					Status:    tt.gatewayStatus,
					Amount:    20000,
					Timestamp: paidAt.UnixMilli(),
				})
			}))
			defer srv.Close()

			g := newTestGateway(t, srv.URL)
			result, err := g.GetPaymentStatus(context.Background(), orderID)

			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Status)
			assert.Equal(t, int64(20000), result.Amount)
			assert.True(t, paidAt.Equal(result.Timestamp))
		})
	}
}

func TestGetPaymentStatus_ResultCodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(queryPaymentResponse{ResultCode: 1004, Message: "unknown order"})
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	_, err := g.GetPaymentStatus(context.Background(), uuid.New())

	assert.ErrorIs(t, err, ErrGatewayRequestFailed)
}

// ==================== VerifyCallback ====================

func signedCallback(t *testing.T, mutate func(p *callbackPayload)) []byte {
	t.Helper()
	p := &callbackPayload{
		PartnerCode: testPartner,
		RequestID:   uuid.New().String(),
		OrderID:     uuid.New().String(),
		Amount:      20000,
		Status:      "PAID",
		Timestamp:   time.Now().UnixMilli(),
	}
	p.Signature = NewSigner(testSecret).Sign(p.fields())
	if mutate != nil {
		mutate(p)
	}
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return raw
}

func TestVerifyCallback_Valid(t *testing.T) {
	g := newTestGateway(t, "https://pay.example.com")

	cb, err := g.VerifyCallback(signedCallback(t, nil))

	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, cb.Status)
	assert.Equal(t, int64(20000), cb.Amount)
	assert.False(t, cb.Timestamp.IsZero())
}

func TestVerifyCallback_Rejections(t *testing.T) {
	g := newTestGateway(t, "https://pay.example.com")

	tests := []struct {
		name    string
		payload []byte
		want    error
	}{
		{"not json", []byte("{"), ErrMalformedCallback},
		{"missing signature", signedCallback(t, func(p *callbackPayload) { p.Signature = "" }), ErrMalformedCallback},
		{"other partner", signedCallback(t, func(p *callbackPayload) { p.PartnerCode = "OTHER" }), ErrPartnerMismatch},
		{"tampered amount", signedCallback(t, func(p *callbackPayload) { p.Amount = 1 }), ErrInvalidSignature},
		{"tampered status", signedCallback(t, func(p *callbackPayload) { p.Status = "FAILED" }), ErrInvalidSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.VerifyCallback(tt.payload)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
