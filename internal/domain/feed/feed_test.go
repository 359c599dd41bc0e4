package feed

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Matches(t *testing.T) {
	orderID := uuid.New()
	c, err := NewChange(EntityOrderItem, EventUpdate, map[string]any{"id": uuid.New(), "order_id": orderID}, nil, time.Now())
	require.NoError(t, err)

	assert.True(t, Eq("order_id", orderID.String()).Matches(c))
	assert.False(t, Eq("order_id", uuid.NewString()).Matches(c))
	assert.False(t, Eq("customer_id", orderID.String()).Matches(c))
	assert.True(t, Filter{}.Matches(c))
}

func TestFilter_MatchesOldRowOnDelete(t *testing.T) {
	orderID := uuid.New()
	c, err := NewChange(EntityOrder, EventDelete, nil, map[string]any{"id": orderID}, time.Now())
	require.NoError(t, err)

	assert.True(t, Eq("id", orderID.String()).Matches(c))
	assert.Equal(t, orderID, RowID(c.Row()))
}

func TestSubscription_Accepts(t *testing.T) {
	orderID := uuid.New()
	c, _ := NewChange(EntityOrder, EventUpdate, map[string]any{"id": orderID}, nil, time.Now())

	tests := []struct {
		name string
		sub  Subscription
		want bool
	}{
		{"all events", Subscription{Entity: EntityOrder, Filter: Eq("id", orderID.String())}, true},
		{"update only", Subscription{Entity: EntityOrder, Events: []EventType{EventUpdate}}, true},
		{"insert only", Subscription{Entity: EntityOrder, Events: []EventType{EventInsert}}, false},
		{"other entity", Subscription{Entity: EntityOrderItem}, false},
		{"other row", Subscription{Entity: EntityOrder, Filter: Eq("id", uuid.NewString())}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.Accepts(c))
		})
	}
}

func TestDecodeRow_ValidatesAtBoundary(t *testing.T) {
	row := OrderRow{
		ID: uuid.New(), CustomerID: uuid.New(), VendorID: uuid.New(),
		Status: "confirmed", PaymentStatus: "paid", TotalPrice: 100, Version: 2,
	}
	c, err := NewChange(EntityOrder, EventUpdate, row, nil, time.Now())
	require.NoError(t, err)

	decoded, err := DecodeRow[OrderRow](c.New)
	require.NoError(t, err)
	assert.Equal(t, row.ID, decoded.ID)
	assert.Equal(t, "confirmed", decoded.Status)

	_, err = DecodeRow[OrderRow]([]byte(`{"id":"` + uuid.NewString() + `","status":"teleported"}`))
	assert.Error(t, err)

	_, err = DecodeRow[OrderItemRow](nil)
	assert.Error(t, err)
}
