package cart

import "github.com/google/uuid"

// Merge folds the guest lines into the authenticated user's lines.
//
// Quantities of matching products are summed; name, price, vendor and image
// of the authenticated line win. Lines keep the authenticated order first,
// followed by guest-only products in guest order. The fold is a single pass
// over both inputs. Neither input is modified.
//
// Merge(user, nil) returns the user lines unchanged, which is what makes a
// repeated login merge a no-op once the guest cart has been discarded.
func Merge(authenticated, guest []CartLine) []CartLine {
	merged := make([]CartLine, 0, len(authenticated)+len(guest))
	index := make(map[uuid.UUID]int, len(authenticated)+len(guest))

	fold := func(l CartLine, preferExisting bool) {
		if l.Quantity < 1 {
			return
		}
		if i, ok := index[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
			if !preferExisting {
				qty := merged[i].Quantity
				merged[i] = l
				merged[i].Quantity = qty
			}
			return
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, l)
	}

	for _, l := range authenticated {
		fold(l, false)
	}
	for _, l := range guest {
		fold(l, true)
	}
	return merged
}

// Diff returns the lines of next that are new or whose quantity differs from
// prev. These are the only rows a merge needs to write back.
func Diff(prev, next []CartLine) []CartLine {
	before := make(map[uuid.UUID]int, len(prev))
	for _, l := range prev {
		before[l.ProductID] = l.Quantity
	}
	var changed []CartLine
	for _, l := range next {
		if q, ok := before[l.ProductID]; ok && q == l.Quantity {
			continue
		}
		changed = append(changed, l)
	}
	return changed
}
