package cart

import "github.com/google/uuid"

// VendorGroup is the per-vendor projection of a cart
type VendorGroup struct {
	VendorID   uuid.UUID  `json:"vendor_id"`
	Items      []CartLine `json:"items"`
	TotalItems int        `json:"total_items"`
	TotalPrice int64      `json:"total_price"`
}

// GroupByVendor groups lines by vendor. Groups appear in the order their
// vendor is first seen.
func GroupByVendor(lines []CartLine) []VendorGroup {
	var groups []VendorGroup
	index := make(map[uuid.UUID]int)
	for _, l := range lines {
		i, ok := index[l.VendorID]
		if !ok {
			i = len(groups)
			index[l.VendorID] = i
			groups = append(groups, VendorGroup{VendorID: l.VendorID})
		}
		g := &groups[i]
		g.Items = append(g.Items, l)
		g.TotalItems += l.Quantity
		g.TotalPrice += l.Subtotal()
	}
	return groups
}

// ForVendor returns the group of a single vendor. ok is false when the cart
// holds nothing from that vendor.
func ForVendor(lines []CartLine, vendorID uuid.UUID) (VendorGroup, bool) {
	g := VendorGroup{VendorID: vendorID}
	for _, l := range lines {
		if l.VendorID != vendorID {
			continue
		}
		g.Items = append(g.Items, l)
		g.TotalItems += l.Quantity
		g.TotalPrice += l.Subtotal()
	}
	return g, len(g.Items) > 0
}

// VendorCount returns the number of distinct vendors in lines
func VendorCount(lines []CartLine) int {
	seen := make(map[uuid.UUID]struct{})
	for _, l := range lines {
		seen[l.VendorID] = struct{}{}
	}
	return len(seen)
}
