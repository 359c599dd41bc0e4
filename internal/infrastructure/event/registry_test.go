package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry_Register_SpecificTypes(t *testing.T) {
	registry := NewHandlerRegistry()
	handler := newTestHandler()

	registry.Register(handler, "OrderPlaced", "OrderStatusChanged")

	assert.Len(t, registry.GetHandlers("OrderPlaced"), 1)
	assert.Len(t, registry.GetHandlers("OrderStatusChanged"), 1)
	assert.Empty(t, registry.GetHandlers("OrderPaymentChanged"))
	assert.Equal(t, 2, registry.Len())
}

func TestHandlerRegistry_WildcardComesAfterTyped(t *testing.T) {
	registry := NewHandlerRegistry()
	typed := newTestHandler()
	wildcard := newTestHandler()

	registry.Register(wildcard)
	registry.Register(typed, "OrderPlaced")

	handlers := registry.GetHandlers("OrderPlaced")
	assert.Len(t, handlers, 2)
	assert.Same(t, typed, handlers[0])
	assert.Same(t, wildcard, handlers[1])

	assert.Len(t, registry.GetHandlers("Anything"), 1)
}

func TestHandlerRegistry_RegisterTwiceIsNoop(t *testing.T) {
	registry := NewHandlerRegistry()
	handler := newTestHandler()

	registry.Register(handler, "OrderPlaced")
	registry.Register(handler, "OrderPlaced")
	registry.Register(handler)
	registry.Register(handler)

	assert.Equal(t, 2, registry.Len())
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	registry := NewHandlerRegistry()
	keep := newTestHandler()
	drop := newTestHandler()

	registry.Register(keep, "OrderPlaced")
	registry.Register(drop, "OrderPlaced", "OrderStatusChanged")
	registry.Register(drop)

	registry.Unregister(drop)

	handlers := registry.GetHandlers("OrderPlaced")
	assert.Len(t, handlers, 1)
	assert.Same(t, keep, handlers[0])
	assert.Empty(t, registry.GetHandlers("OrderStatusChanged"))
	assert.Equal(t, 1, registry.Len())
}
