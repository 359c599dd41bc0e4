package cart

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLine(productID, vendorID uuid.UUID, price int64, qty int) CartLine {
	return CartLine{
		ProductID: productID,
		VendorID:  vendorID,
		Name:      "item-" + productID.String()[:8],
		UnitPrice: price,
		Quantity:  qty,
	}
}

// ==================== Add ====================

func TestCart_Add_AccumulatesExistingProduct(t *testing.T) {
	c := New(GuestOwner)
	p, vendorA := uuid.New(), uuid.New()

	c.Add(newLine(p, vendorA, 500, 2))
	c.Add(newLine(p, vendorA, 500, 1))

	require.Equal(t, 1, c.Len())
	line, ok := c.Line(p)
	require.True(t, ok)
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, int64(1500), c.Total())
	assert.Equal(t, 3, c.ItemCount())
}

func TestCart_Add_RefreshesNameAndPrice(t *testing.T) {
	c := New(GuestOwner)
	p, v := uuid.New(), uuid.New()

	c.Add(CartLine{ProductID: p, VendorID: v, Name: "Pho", UnitPrice: 100, Quantity: 1})
	c.Add(CartLine{ProductID: p, VendorID: v, Name: "Pho bo", UnitPrice: 120, Quantity: 1})

	line, _ := c.Line(p)
	assert.Equal(t, "Pho bo", line.Name)
	assert.Equal(t, int64(120), line.UnitPrice)
	assert.Equal(t, 2, line.Quantity)
}

func TestCart_Add_KeepsOriginalVendor(t *testing.T) {
	c := New(GuestOwner)
	p, first, other := uuid.New(), uuid.New(), uuid.New()

	c.Add(CartLine{ProductID: p, VendorID: first, Name: "Pho", UnitPrice: 100, Quantity: 2})
	c.Add(CartLine{ProductID: p, VendorID: other, Name: "Pho", UnitPrice: 100, Quantity: 1})

	line, ok := c.Line(p)
	require.True(t, ok)
	assert.Equal(t, first, line.VendorID)
	assert.Equal(t, 3, line.Quantity)

	_, found := ForVendor(c.Lines(), other)
	assert.False(t, found, "the line must not check out under another vendor")
}

func TestCart_Add_IgnoresNonPositiveQuantity(t *testing.T) {
	c := New(GuestOwner)
	c.Add(newLine(uuid.New(), uuid.New(), 100, 0))
	c.Add(newLine(uuid.New(), uuid.New(), 100, -3))

	assert.True(t, c.IsEmpty())
	assert.False(t, c.Dirty())
}

// ==================== Increment / Decrement ====================

func TestCart_Decrement_ToZeroRemovesLine(t *testing.T) {
	c := New(GuestOwner)
	p := uuid.New()
	c.Add(newLine(p, uuid.New(), 100, 1))
	c.TakeChanges()

	c.Decrement(p)

	_, ok := c.Line(p)
	assert.False(t, ok)
	assert.True(t, c.IsEmpty())
	changes := c.TakeChanges()
	require.Len(t, changes.Lines, 1)
	assert.Equal(t, LineChange{ProductID: p, Removed: true}, changes.Lines[0])
}

func TestCart_IncrementDecrement(t *testing.T) {
	c := New(GuestOwner)
	p := uuid.New()
	c.Add(newLine(p, uuid.New(), 100, 2))

	c.Increment(p)
	line, _ := c.Line(p)
	assert.Equal(t, 3, line.Quantity)

	c.Decrement(p)
	line, _ = c.Line(p)
	assert.Equal(t, 2, line.Quantity)
}

func TestCart_IncrementMissingIsNoop(t *testing.T) {
	c := New(GuestOwner)
	c.Increment(uuid.New())
	c.Decrement(uuid.New())
	c.Remove(uuid.New())

	assert.True(t, c.IsEmpty())
	assert.False(t, c.Dirty())
}

// ==================== Dirty signal ====================

func TestCart_TakeChanges_LatestStateWins(t *testing.T) {
	c := New(GuestOwner)
	p1, p2 := uuid.New(), uuid.New()
	v := uuid.New()

	c.Add(newLine(p1, v, 100, 1))
	c.Add(newLine(p2, v, 100, 1))
	c.Remove(p1)
	c.Increment(p2)

	changes := c.TakeChanges()
	assert.False(t, changes.Cleared)
	assert.Equal(t, []LineChange{
		{ProductID: p1, Removed: true},
		{ProductID: p2, Removed: false},
	}, changes.Lines)

	assert.False(t, c.Dirty())
	assert.True(t, c.TakeChanges().IsEmpty())
}

func TestCart_Clear_ReportsClearedThenLaterAdds(t *testing.T) {
	c := New(GuestOwner)
	c.Add(newLine(uuid.New(), uuid.New(), 100, 1))
	c.Clear()
	p := uuid.New()
	c.Add(newLine(p, uuid.New(), 100, 1))

	changes := c.TakeChanges()
	assert.True(t, changes.Cleared)
	assert.Equal(t, []LineChange{{ProductID: p}}, changes.Lines)
	assert.Equal(t, 1, c.Len())
}

func TestCart_Restore_KeepsNewerMarks(t *testing.T) {
	c := New(GuestOwner)
	p1, p2, v := uuid.New(), uuid.New(), uuid.New()
	c.Add(newLine(p1, v, 100, 1))
	c.Add(newLine(p2, v, 100, 1))

	failed := c.TakeChanges()
	c.Remove(p2)
	c.Restore(failed)

	ch := c.TakeChanges()
	require.Len(t, ch.Lines, 2)
	assert.Equal(t, LineChange{ProductID: p2, Removed: true}, ch.Lines[0])
	assert.Equal(t, LineChange{ProductID: p1, Removed: false}, ch.Lines[1])
	assert.False(t, c.Dirty())
}

func TestCart_Restore_ReportsCurrentState(t *testing.T) {
	c := New(GuestOwner)
	p, v := uuid.New(), uuid.New()
	c.Add(newLine(p, v, 100, 1))
	failed := c.TakeChanges()

	// removed without a new mark, e.g. through Replace
	c.Replace(nil)
	c.Restore(Changes{Cleared: true, Lines: failed.Lines})

	ch := c.TakeChanges()
	assert.True(t, ch.Cleared)
	assert.Equal(t, []LineChange{{ProductID: p, Removed: true}}, ch.Lines)
}

func TestCart_FromLines_IsClean(t *testing.T) {
	p := uuid.New()
	c := FromLines(UserOwner(uuid.New()), []CartLine{
		newLine(p, uuid.New(), 100, 2),
		{ProductID: uuid.New(), VendorID: uuid.New(), Quantity: 0},
	})

	assert.Equal(t, 1, c.Len())
	assert.False(t, c.Dirty())
}

func TestCart_RemoveVendor_LeavesOtherVendors(t *testing.T) {
	c := New(GuestOwner)
	vendorA, vendorB := uuid.New(), uuid.New()
	a1, b1, a2 := uuid.New(), uuid.New(), uuid.New()
	c.Add(newLine(a1, vendorA, 100, 1))
	c.Add(newLine(b1, vendorB, 200, 1))
	c.Add(newLine(a2, vendorA, 300, 2))
	c.TakeChanges()

	removed := c.RemoveVendor(vendorA)

	assert.Len(t, removed, 2)
	assert.Equal(t, 1, c.Len())
	_, ok := c.Line(b1)
	assert.True(t, ok)
	assert.Len(t, c.TakeChanges().Lines, 2)
}

func TestCart_LinesKeepInsertionOrder(t *testing.T) {
	c := New(GuestOwner)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		c.Add(newLine(id, uuid.New(), 1, 1))
	}
	c.Remove(ids[1])

	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, ids[0], lines[0].ProductID)
	assert.Equal(t, ids[2], lines[1].ProductID)
}

// ==================== Validation ====================

func TestCartLine_Validate(t *testing.T) {
	tests := []struct {
		name    string
		line    CartLine
		wantErr bool
	}{
		{"valid", newLine(uuid.New(), uuid.New(), 0, 1), false},
		{"missing product", CartLine{VendorID: uuid.New(), Quantity: 1}, true},
		{"missing vendor", CartLine{ProductID: uuid.New(), Quantity: 1}, true},
		{"negative price", newLine(uuid.New(), uuid.New(), -1, 1), true},
		{"zero quantity", newLine(uuid.New(), uuid.New(), 10, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.line.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// ==================== Owner ====================

func TestOwner_CacheKey(t *testing.T) {
	id := uuid.MustParse("5b1f6a3e-1111-4c2d-9f00-000000000001")

	assert.Equal(t, "cart_guest", GuestOwner.CacheKey())
	assert.Equal(t, "cart_5b1f6a3e-1111-4c2d-9f00-000000000001", UserOwner(id).CacheKey())
	assert.True(t, GuestOwner.IsGuest())
	assert.False(t, UserOwner(id).IsGuest())

	parsed, err := ParseOwner(id.String())
	require.NoError(t, err)
	assert.Equal(t, UserOwner(id), parsed)

	parsed, err = ParseOwner("guest")
	require.NoError(t, err)
	assert.True(t, parsed.IsGuest())
}
