package order

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodcourt/storefront/internal/domain/order"
)

func TestOrderStatusChangedHandler(t *testing.T) {
	h := NewOrderStatusChangedHandler(nil, nil)
	assert.Equal(t, []string{order.EventTypeOrderStatusChanged}, h.EventTypes())

	placed := placeOrder(newMemoryRepo(), uuid.New(), uuid.New())
	next, err := order.Apply(placed, order.StatusConfirmed, order.ActorVendor, time.Now())
	require.NoError(t, err)
	events := next.GetDomainEvents()
	require.Len(t, events, 1)

	assert.NoError(t, h.Handle(context.Background(), events[0]))

	err = h.Handle(context.Background(), order.NewOrderPlacedEvent(placed, time.Now()))
	assert.Error(t, err)
}
