package payment

import (
	"strconv"
	"strings"
	"time"

	"github.com/foodcourt/storefront/internal/domain/order"
)

const (
	createPath = "/v1/payments"
	queryPath  = "/v1/payments/query"

	resultCodeSuccess = 0
)

// Gateway-side payment states
const (
	gatewayStatusPending = "PENDING"
	gatewayStatusPaid    = "PAID"
	gatewayStatusFailed  = "FAILED"
	gatewayStatusExpired = "EXPIRED"
)

type createPaymentRequest struct {
	PartnerCode string              `json:"partnerCode"`
	RequestID   string              `json:"requestId"`
	OrderID     string              `json:"orderId"`
	Amount      int64               `json:"amount"`
	OrderInfo   string              `json:"orderInfo"`
	ReturnURL   string              `json:"returnUrl"`
	NotifyURL   string              `json:"notifyUrl"`
	Items       []order.PaymentItem `json:"items"`
	Signature   string              `json:"signature"`
}

func (r *createPaymentRequest) fields() map[string]string {
	return map[string]string{
		"partnerCode": r.PartnerCode,
		"requestId":   r.RequestID,
		"orderId":     r.OrderID,
		"amount":      strconv.FormatInt(r.Amount, 10),
		"orderInfo":   r.OrderInfo,
		"returnUrl":   r.ReturnURL,
		"notifyUrl":   r.NotifyURL,
	}
}

type createPaymentResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
}

type queryPaymentRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	OrderID     string `json:"orderId"`
	Signature   string `json:"signature"`
}

func (r *queryPaymentRequest) fields() map[string]string {
	return map[string]string{
		"partnerCode": r.PartnerCode,
		"requestId":   r.RequestID,
		"orderId":     r.OrderID,
	}
}

type queryPaymentResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	Timestamp  int64  `json:"timestamp"` // unix millis
}

type errorResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
}

// Callback is a verified gateway notification
type Callback struct {
	OrderID   string
	RequestID string
	Status    order.PaymentStatus
	Amount    int64
	Message   string
	Timestamp time.Time
}

type callbackPayload struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	OrderID     string `json:"orderId"`
	Amount      int64  `json:"amount"`
	Status      string `json:"status"`
	Message     string `json:"message"`
	Timestamp   int64  `json:"timestamp"`
	Signature   string `json:"signature"`
}

func (p *callbackPayload) fields() map[string]string {
	return map[string]string{
		"partnerCode": p.PartnerCode,
		"requestId":   p.RequestID,
		"orderId":     p.OrderID,
		"amount":      strconv.FormatInt(p.Amount, 10),
		"status":      p.Status,
		"message":     p.Message,
		"timestamp":   strconv.FormatInt(p.Timestamp, 10),
	}
}

// mapGatewayStatus converts gateway status to the order payment status
func mapGatewayStatus(status string) order.PaymentStatus {
	switch strings.ToUpper(status) {
	case gatewayStatusPaid:
		return order.PaymentPaid
	case gatewayStatusFailed, gatewayStatusExpired:
		return order.PaymentFailed
	default:
		return order.PaymentPending
	}
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
