package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	orderapp "github.com/foodcourt/storefront/internal/application/order"
	"github.com/foodcourt/storefront/internal/interfaces/http/dto"
	"github.com/foodcourt/storefront/internal/interfaces/http/middleware"
)

// SSE event names
const (
	EventSnapshot  = "snapshot"
	EventUpdate    = "update"
	EventDeleted   = "deleted"
	EventHeartbeat = "heartbeat"
)

// ViewOpener opens live order views
type ViewOpener interface {
	OpenDetail(ctx context.Context, orderID uuid.UUID, req orderapp.Requester) (*orderapp.DetailView, error)
	OpenActive(ctx context.Context, customerID uuid.UUID) (*orderapp.ActiveOrdersView, error)
}

// orderView is what both view kinds share
type orderView interface {
	Updates() <-chan orderapp.ViewUpdate
	Close() error
}

// SSEMessage represents a message to be sent to SSE clients
type SSEMessage struct {
	Event string
	Data  string
	ID    string
}

// ActiveOrdersEvent is the payload of active-orders stream events
type ActiveOrdersEvent struct {
	Source string                   `json:"source"`
	Orders []orderapp.OrderResponse `json:"orders"`
}

// OrderEvent is the payload of order detail stream events
type OrderEvent struct {
	Source  string                  `json:"source"`
	Order   *orderapp.OrderResponse `json:"order,omitempty"`
	Deleted bool                    `json:"deleted,omitempty"`
}

// OrderStreamHandler streams order views over Server-Sent Events
type OrderStreamHandler struct {
	BaseHandler
	views      ViewOpener
	logger     *zap.Logger
	clients    sync.Map // map[string]struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	heartbeat  time.Duration
	maxClients int
}

// OrderStreamOption is a functional option for configuring the handler
type OrderStreamOption func(*OrderStreamHandler)

// WithStreamLogger sets the logger for the handler
func WithStreamLogger(logger *zap.Logger) OrderStreamOption {
	return func(h *OrderStreamHandler) {
		h.logger = logger
	}
}

// WithStreamHeartbeat sets the heartbeat interval
func WithStreamHeartbeat(interval time.Duration) OrderStreamOption {
	return func(h *OrderStreamHandler) {
		if interval > 0 {
			h.heartbeat = interval
		}
	}
}

// WithStreamMaxClients sets the maximum number of concurrent streams
func WithStreamMaxClients(max int) OrderStreamOption {
	return func(h *OrderStreamHandler) {
		h.maxClients = max
	}
}

// NewOrderStreamHandler creates a new stream handler
func NewOrderStreamHandler(views ViewOpener, opts ...OrderStreamOption) *OrderStreamHandler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &OrderStreamHandler{
		views:      views,
		logger:     zap.NewNop(),
		ctx:        ctx,
		cancel:     cancel,
		heartbeat:  15 * time.Second,
		maxClients: 10000,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Stop ends every open stream. The HTTP server does not wait for streaming
// responses on shutdown, so this runs first.
func (h *OrderStreamHandler) Stop() {
	h.cancel()
	h.logger.Info("order streams stopped")
}

// StreamActive streams the active orders of the signed-in customer.
// GET /api/v1/orders/stream
func (h *OrderStreamHandler) StreamActive(c *gin.Context) {
	req, ok := requester(c)
	if !ok {
		h.Unauthorized(c, "Authentication required")
		return
	}
	if !h.admit(c) {
		return
	}

	view, err := h.views.OpenActive(c.Request.Context(), req.UserID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.stream(c, view, func(u orderapp.ViewUpdate) any {
		return ActiveOrdersEvent{Source: string(u.Source), Orders: orderapp.ToOrderResponses(u.Orders)}
	})
}

// StreamDetail streams one order with its tracking.
// GET /api/v1/orders/:id/stream
func (h *OrderStreamHandler) StreamDetail(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	req, ok := requester(c)
	if !ok {
		h.Unauthorized(c, "Authentication required")
		return
	}
	if !h.admit(c) {
		return
	}

	view, err := h.views.OpenDetail(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.stream(c, view, func(u orderapp.ViewUpdate) any {
		ev := OrderEvent{Source: string(u.Source), Deleted: u.Deleted}
		if u.Order != nil {
			resp := orderapp.ToOrderDetailResponse(orderapp.OrderDetail{Order: u.Order, Tracking: u.Tracking})
			ev.Order = &resp
		}
		return ev
	})
}

func (h *OrderStreamHandler) admit(c *gin.Context) bool {
	if h.maxClients > 0 && h.GetClientCount() >= h.maxClients {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeTooManySSE, "Maximum number of SSE connections reached")
		return false
	}
	return true
}

// stream writes view updates until the client leaves, the view ends or the
// handler stops
func (h *OrderStreamHandler) stream(c *gin.Context, view orderView, encode func(orderapp.ViewUpdate) any) {
	clientID := uuid.NewString()
	h.clients.Store(clientID, struct{}{})
	defer func() {
		h.clients.Delete(clientID)
		if err := view.Close(); err != nil {
			h.logger.Warn("failed to close order view", zap.String("client_id", clientID), zap.Error(err))
		}
	}()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	log := h.logger.With(
		zap.String("client_id", clientID),
		zap.String("session_id", middleware.GetSessionID(c)),
		zap.String("path", c.FullPath()),
	)
	log.Info("SSE client connected")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	reqCtx := c.Request.Context()
	updates := view.Updates()
	var seq int64
	first := true

	for {
		select {
		case <-reqCtx.Done():
			log.Info("SSE client disconnected")
			return
		case <-h.ctx.Done():
			log.Info("order streams stopped, disconnecting client")
			return
		case <-ticker.C:
			h.sendEvent(c.Writer, SSEMessage{
				Event: EventHeartbeat,
				Data:  fmt.Sprintf(`{"timestamp":%d}`, time.Now().Unix()),
			})
			c.Writer.Flush()
		case u, ok := <-updates:
			if !ok {
				log.Info("order view ended")
				return
			}
			data, err := json.Marshal(encode(u))
			if err != nil {
				log.Error("failed to marshal SSE event", zap.Error(err))
				continue
			}
			event := EventUpdate
			switch {
			case u.Deleted:
				event = EventDeleted
			case first:
				event = EventSnapshot
			}
			first = false
			seq++
			h.sendEvent(c.Writer, SSEMessage{Event: event, Data: string(data), ID: fmt.Sprintf("%d", seq)})
			c.Writer.Flush()
			if u.Deleted {
				return
			}
		}
	}
}

// sendEvent writes an SSE event to the response writer
func (h *OrderStreamHandler) sendEvent(w io.Writer, msg SSEMessage) {
	if msg.Event != "" {
		fmt.Fprintf(w, "event: %s\n", msg.Event)
	}
	if msg.ID != "" {
		fmt.Fprintf(w, "id: %s\n", msg.ID)
	}
	fmt.Fprintf(w, "data: %s\n\n", msg.Data)
}

// GetClientCount returns the number of connected SSE clients
func (h *OrderStreamHandler) GetClientCount() int {
	count := 0
	h.clients.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
