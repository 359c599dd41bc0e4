package cart

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/foodcourt/storefront/internal/domain/shared"
)

// CartLine is one product-and-quantity entry in a cart.
// UnitPrice is in integer currency units.
type CartLine struct {
	ProductID uuid.UUID `json:"product_id"`
	VendorID  uuid.UUID `json:"vendor_id"`
	Name      string    `json:"name"`
	UnitPrice int64     `json:"unit_price"`
	Quantity  int       `json:"quantity"`
	ImageRef  string    `json:"image_ref,omitempty"`
}

// Subtotal returns unit price times quantity
func (l CartLine) Subtotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Validate checks the line invariants
func (l CartLine) Validate() error {
	if l.ProductID == uuid.Nil {
		return shared.NewValidationError("cart line requires a product id")
	}
	if l.VendorID == uuid.Nil {
		return shared.NewValidationError("cart line requires a vendor id")
	}
	if l.UnitPrice < 0 {
		return shared.NewValidationError(fmt.Sprintf("unit price cannot be negative, got %d", l.UnitPrice))
	}
	if l.Quantity < 1 {
		return shared.NewValidationError(fmt.Sprintf("quantity must be at least 1, got %d", l.Quantity))
	}
	return nil
}

// LineChange is the dirty signal recorded for a single product. Removed means
// the line no longer exists and must be deleted from the remote store.
type LineChange struct {
	ProductID uuid.UUID
	Removed   bool
}

// Changes is the drained dirty state of a cart
type Changes struct {
	// Cleared is set when the whole cart was emptied since the last drain.
	// Lines listed in Lines were touched after the clear.
	Cleared bool
	Lines   []LineChange
}

// IsEmpty reports whether nothing changed
func (c Changes) IsEmpty() bool {
	return !c.Cleared && len(c.Lines) == 0
}

// Cart is the in-memory cart aggregate. Lines are keyed by product id; the
// order of first insertion is kept for presentation.
//
// Cart is not safe for concurrent use; the sync controller serializes access.
type Cart struct {
	owner   Owner
	lines   map[uuid.UUID]*CartLine
	order   []uuid.UUID
	dirty   map[uuid.UUID]bool
	touched []uuid.UUID
	cleared bool
}

// New creates an empty cart for owner
func New(owner Owner) *Cart {
	return &Cart{
		owner: owner,
		lines: make(map[uuid.UUID]*CartLine),
		dirty: make(map[uuid.UUID]bool),
	}
}

// FromLines rebuilds a cart from persisted lines without marking it dirty.
// Invalid lines are skipped; repeated product ids accumulate.
func FromLines(owner Owner, lines []CartLine) *Cart {
	c := New(owner)
	for _, l := range lines {
		if l.Validate() != nil {
			continue
		}
		c.put(l)
	}
	return c
}

// Owner returns the cart owner
func (c *Cart) Owner() Owner {
	return c.owner
}

// Reassign moves the cart to a new owner without touching its lines
func (c *Cart) Reassign(owner Owner) {
	c.owner = owner
}

// Add puts qty of a product into the cart. Adding an existing product
// increases its quantity; name, price and image are refreshed from the call
// while the line stays with the vendor it was first added under. A quantity
// below 1 is ignored.
func (c *Cart) Add(line CartLine) {
	if line.Quantity < 1 {
		return
	}
	c.put(line)
	c.markDirty(line.ProductID, false)
}

func (c *Cart) put(line CartLine) {
	if existing, ok := c.lines[line.ProductID]; ok {
		existing.Quantity += line.Quantity
		existing.UnitPrice = line.UnitPrice
		existing.Name = line.Name
		if line.ImageRef != "" {
			existing.ImageRef = line.ImageRef
		}
		return
	}
	l := line
	c.lines[line.ProductID] = &l
	c.order = append(c.order, line.ProductID)
}

// Remove deletes a line. Removing a missing product is a no-op.
func (c *Cart) Remove(productID uuid.UUID) {
	if _, ok := c.lines[productID]; !ok {
		return
	}
	c.delete(productID)
	c.markDirty(productID, true)
}

// Increment raises a line's quantity by one
func (c *Cart) Increment(productID uuid.UUID) {
	l, ok := c.lines[productID]
	if !ok {
		return
	}
	l.Quantity++
	c.markDirty(productID, false)
}

// Decrement lowers a line's quantity by one and removes the line when the
// quantity would drop to zero.
func (c *Cart) Decrement(productID uuid.UUID) {
	l, ok := c.lines[productID]
	if !ok {
		return
	}
	if l.Quantity <= 1 {
		c.Remove(productID)
		return
	}
	l.Quantity--
	c.markDirty(productID, false)
}

// RemoveVendor deletes every line of one vendor and returns the removed lines
func (c *Cart) RemoveVendor(vendorID uuid.UUID) []CartLine {
	var removed []CartLine
	for _, id := range append([]uuid.UUID(nil), c.order...) {
		l := c.lines[id]
		if l.VendorID != vendorID {
			continue
		}
		removed = append(removed, *l)
		c.delete(id)
		c.markDirty(id, true)
	}
	return removed
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.lines = make(map[uuid.UUID]*CartLine)
	c.order = nil
	c.dirty = make(map[uuid.UUID]bool)
	c.touched = nil
	c.cleared = true
}

// Replace swaps all lines for the given ones and marks the cart as clean
func (c *Cart) Replace(lines []CartLine) {
	fresh := FromLines(c.owner, lines)
	c.lines = fresh.lines
	c.order = fresh.order
	c.dirty = make(map[uuid.UUID]bool)
	c.touched = nil
	c.cleared = false
}

func (c *Cart) delete(productID uuid.UUID) {
	delete(c.lines, productID)
	for i, id := range c.order {
		if id == productID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Cart) markDirty(productID uuid.UUID, removed bool) {
	if _, seen := c.dirty[productID]; !seen {
		c.touched = append(c.touched, productID)
	}
	c.dirty[productID] = removed
}

// Dirty reports whether there are undrained changes
func (c *Cart) Dirty() bool {
	return c.cleared || len(c.touched) > 0
}

// TakeChanges drains the dirty signal. The latest state of each product wins:
// a product added and then removed is reported as removed.
func (c *Cart) TakeChanges() Changes {
	out := Changes{Cleared: c.cleared}
	for _, id := range c.touched {
		out.Lines = append(out.Lines, LineChange{ProductID: id, Removed: c.dirty[id]})
	}
	c.dirty = make(map[uuid.UUID]bool)
	c.touched = nil
	c.cleared = false
	return out
}

// Restore puts undelivered changes back into the dirty signal. Products
// touched since the drain keep their newer mark; restored products are
// reported against the current lines.
func (c *Cart) Restore(ch Changes) {
	if ch.Cleared {
		c.cleared = true
	}
	for _, lc := range ch.Lines {
		if _, seen := c.dirty[lc.ProductID]; seen {
			continue
		}
		_, present := c.lines[lc.ProductID]
		c.markDirty(lc.ProductID, !present)
	}
}

// Line returns a copy of the line for productID
func (c *Cart) Line(productID uuid.UUID) (CartLine, bool) {
	l, ok := c.lines[productID]
	if !ok {
		return CartLine{}, false
	}
	return *l, true
}

// Lines returns copies of all lines in insertion order
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.lines[id])
	}
	return out
}

// Len returns the number of distinct products
func (c *Cart) Len() int {
	return len(c.order)
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.order) == 0
}

// Total returns the sum of unit price times quantity
func (c *Cart) Total() int64 {
	var total int64
	for _, l := range c.lines {
		total += l.Subtotal()
	}
	return total
}

// ItemCount returns the sum of quantities
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}
