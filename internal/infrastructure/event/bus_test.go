package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/foodcourt/storefront/internal/domain/shared"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Order", uuid.New(), time.Now()),
	}
}

type testHandler struct {
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	panicMsg   string
	started    chan struct{}
	block      chan struct{}
	mu         sync.Mutex
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if h.started != nil {
		close(h.started)
	}
	if h.block != nil {
		<-h.block
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	if h.panicMsg != "" {
		panic(h.panicMsg)
	}
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) getHandled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("OrderStatusChanged")
	bus.Subscribe(handler)

	event := newTestEvent("OrderStatusChanged")
	require.NoError(t, bus.Publish(context.Background(), event))

	require.Len(t, handler.getHandled(), 1)
	assert.Equal(t, event, handler.getHandled()[0])
}

func TestInMemoryEventBus_Publish_PreservesOrder(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler()
	bus.Subscribe(handler)

	e1, e2, e3 := newTestEvent("A"), newTestEvent("B"), newTestEvent("C")
	require.NoError(t, bus.Publish(context.Background(), e1, e2, e3))

	assert.Equal(t, []shared.DomainEvent{e1, e2, e3}, handler.getHandled())
}

func TestInMemoryEventBus_Publish_NoMatchingHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("OrderPlaced")
	bus.Subscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("OrderStatusChanged")))

	assert.Empty(t, handler.getHandled())
}

func TestInMemoryEventBus_HandlerFailuresAreIsolated(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	failing := newTestHandler("E")
	failing.err = errors.New("boom")
	panicking := newTestHandler("E")
	panicking.panicMsg = "kaboom"
	healthy := newTestHandler("E")

	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newTestEvent("E"))

	require.NoError(t, err)
	assert.Len(t, healthy.getHandled(), 1)
	assert.Equal(t, int64(2), bus.Failures())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("E")
	bus.Subscribe(handler)

	_ = bus.Publish(context.Background(), newTestEvent("E"))
	bus.Unsubscribe(handler)
	_ = bus.Publish(context.Background(), newTestEvent("E"))

	assert.Len(t, handler.getHandled(), 1)
}

func TestInMemoryEventBus_StopDropsLaterEvents(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("E")
	bus.Subscribe(handler)

	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("E")))
	require.NoError(t, bus.Stop(context.Background()))
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("E")))

	assert.Len(t, handler.getHandled(), 1)
}

func TestInMemoryEventBus_StopWaitsForInflight(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("E")
	handler.started = make(chan struct{})
	handler.block = make(chan struct{})
	bus.Subscribe(handler)

	published := make(chan struct{})
	go func() {
		_ = bus.Publish(context.Background(), newTestEvent("E"))
		close(published)
	}()

	<-handler.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Stop(ctx), context.DeadlineExceeded)

	close(handler.block)
	<-published

	assert.NoError(t, bus.Stop(context.Background()))
	assert.Len(t, handler.getHandled(), 1)
}
