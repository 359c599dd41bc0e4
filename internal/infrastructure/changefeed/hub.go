// Package changefeed provides transports for the order change feed. Every
// transport fans changes out to local subscribers through a Hub; the
// broker-backed transports only differ in how changes reach the Hub.
package changefeed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/foodcourt/storefront/internal/domain/feed"
)

// ErrClosed is returned when publishing to or subscribing on a closed transport
var ErrClosed = errors.New("change feed closed")

const defaultBufferSize = 64

// Hub delivers changes to in-process subscribers. Delivery never blocks:
// a subscriber whose buffer is full misses the change.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]*channel
	nextID  uint64
	buffer  int
	closed  bool
	dropped atomic.Int64
	logger  *zap.Logger
}

// NewHub creates a hub whose subscriber channels hold bufferSize changes
func NewHub(bufferSize int, logger *zap.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[uint64]*channel),
		buffer: bufferSize,
		logger: logger,
	}
}

// Publish implements feed.Publisher by delivering locally
func (h *Hub) Publish(_ context.Context, c feed.Change) error {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	h.Deliver(c)
	return nil
}

// Deliver hands the change to every matching subscriber
func (h *Hub) Deliver(c feed.Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.subs {
		if !s.sub.Accepts(c) {
			continue
		}
		select {
		case s.ch <- c:
		default:
			h.dropped.Add(1)
			h.logger.Debug("Dropped change for slow subscriber",
				zap.String("entity", string(c.Entity)),
				zap.String("type", string(c.Type)),
				zap.Uint64("subscriber", s.id))
		}
	}
}

// Subscribe implements feed.Feed. The channel is closed when ctx ends or
// Close is called.
func (h *Hub) Subscribe(ctx context.Context, sub feed.Subscription) (feed.Channel, error) {
	if !sub.Entity.IsValid() {
		return nil, errors.New("unknown entity: " + string(sub.Entity))
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	h.nextID++
	s := &channel{
		id:   h.nextID,
		hub:  h,
		sub:  sub,
		ch:   make(chan feed.Change, h.buffer),
		done: make(chan struct{}),
	}
	h.subs[s.id] = s
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

// Subscribers returns the number of open subscriptions
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because a buffer was full
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close closes every open subscription
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for id, s := range h.subs {
		delete(h.subs, id)
		s.closeLocked()
	}
	return nil
}

func (h *Hub) remove(s *channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s.id]; !ok {
		return
	}
	delete(h.subs, s.id)
	s.closeLocked()
}

type channel struct {
	id   uint64
	hub  *Hub
	sub  feed.Subscription
	ch   chan feed.Change
	done chan struct{}
	once sync.Once
}

func (c *channel) C() <-chan feed.Change { return c.ch }

func (c *channel) Close() error {
	c.hub.remove(c)
	return nil
}

// closeLocked must be called with the hub's write lock held
func (c *channel) closeLocked() {
	c.once.Do(func() {
		close(c.done)
		close(c.ch)
	})
}

var (
	_ feed.Transport = (*Memory)(nil)
	_ feed.Channel   = (*channel)(nil)
)

// Memory is the single-process transport
type Memory struct {
	*Hub
}

// NewMemory creates an in-process transport
func NewMemory(bufferSize int, logger *zap.Logger) *Memory {
	return &Memory{Hub: NewHub(bufferSize, logger)}
}
