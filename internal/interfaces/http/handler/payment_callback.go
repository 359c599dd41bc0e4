package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/foodcourt/storefront/internal/domain/order"
	"github.com/foodcourt/storefront/internal/domain/shared"
	"github.com/foodcourt/storefront/internal/infrastructure/logger"
	"github.com/foodcourt/storefront/internal/infrastructure/payment"
)

// CallbackVerifier authenticates gateway notifications
type CallbackVerifier interface {
	VerifyCallback(payload []byte) (*payment.Callback, error)
}

// PaymentApplier records a payment outcome on an order
type PaymentApplier interface {
	ApplyPaymentResult(ctx context.Context, orderID uuid.UUID, result order.PaymentResult) (*order.Order, bool, error)
}

// PaymentCallbackHandler receives payment gateway notifications. The
// endpoint is called by the gateway and carries no user token; the payload
// signature is the authentication.
type PaymentCallbackHandler struct {
	BaseHandler
	verifier CallbackVerifier
	payments PaymentApplier
}

// NewPaymentCallbackHandler creates a new PaymentCallbackHandler
func NewPaymentCallbackHandler(verifier CallbackVerifier, payments PaymentApplier) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{verifier: verifier, payments: payments}
}

// gatewayAck is the body the gateway expects. Any other answer makes it
// retry the notification.
type gatewayAck struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
}

// Handle processes a signed notification.
// POST /api/v1/payments/callback
func (h *PaymentCallbackHandler) Handle(c *gin.Context) {
	log := logger.GetGinLogger(c)

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gatewayAck{ResultCode: 1, Message: "unreadable body"})
		return
	}

	cb, err := h.verifier.VerifyCallback(payload)
	if err != nil {
		log.Warn("payment callback rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, gatewayAck{ResultCode: 1, Message: "rejected"})
		return
	}

	orderID, err := uuid.Parse(cb.OrderID)
	if err != nil {
		log.Warn("payment callback for unknown order id", zap.String("order_id", cb.OrderID))
		c.JSON(http.StatusOK, gatewayAck{ResultCode: 0, Message: "ignored"})
		return
	}

	o, changed, err := h.payments.ApplyPaymentResult(c.Request.Context(), orderID, order.PaymentResult{
		Status:    cb.Status,
		Amount:    cb.Amount,
		Timestamp: cb.Timestamp,
	})
	switch {
	case errors.Is(err, shared.ErrNotFound):
		// a deleted order will never settle; stop the retries
		log.Warn("payment callback for missing order", zap.String("order_id", cb.OrderID))
		c.JSON(http.StatusOK, gatewayAck{ResultCode: 0, Message: "ignored"})
		return
	case errors.Is(err, shared.ErrInvalidState):
		// settled elsewhere or a wrong amount; retrying cannot fix either
		log.Warn("payment callback contradicts order",
			zap.String("order_id", cb.OrderID),
			zap.String("status", string(cb.Status)),
			zap.Int64("amount", cb.Amount),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gatewayAck{ResultCode: 0, Message: "ignored"})
		return
	case err != nil:
		// let the gateway retry
		log.Error("failed to apply payment callback", zap.String("order_id", cb.OrderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gatewayAck{ResultCode: 99, Message: "retry"})
		return
	}

	fields := []zap.Field{
		zap.String("order_id", cb.OrderID),
		zap.String("request_id", cb.RequestID),
		zap.Bool("changed", changed),
	}
	if o != nil {
		fields = append(fields, zap.String("payment_status", string(o.PaymentStatus)), zap.String("order_status", string(o.Status)))
	}
	log.Info("payment callback applied", fields...)
	c.JSON(http.StatusOK, gatewayAck{ResultCode: 0, Message: "ok"})
}
