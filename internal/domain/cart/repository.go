package cart

import (
	"context"

	"github.com/google/uuid"
)

// LocalCache is the durable key/value store holding serialized carts.
// Get returns found=false when the key is absent.
type LocalCache interface {
	Get(ctx context.Context, key string) (data []byte, found bool, err error)
	Set(ctx context.Context, key string, data []byte) error
	Remove(ctx context.Context, key string) error
}

// RemoteStore is the authoritative store of cart lines of authenticated
// customers. Writes are last-writer-wins on the (customer, product) key.
type RemoteStore interface {
	// ListActive returns the active lines of a customer
	ListActive(ctx context.Context, customerID uuid.UUID) ([]CartLine, error)
	// Upsert inserts or replaces lines keyed by (customer, product)
	Upsert(ctx context.Context, customerID uuid.UUID, lines ...CartLine) error
	// Delete removes lines of the given products
	Delete(ctx context.Context, customerID uuid.UUID, productIDs ...uuid.UUID) error
	// DeleteForVendor removes the lines of one vendor
	DeleteForVendor(ctx context.Context, customerID, vendorID uuid.UUID) error
	// DeleteAll removes every line of a customer
	DeleteAll(ctx context.Context, customerID uuid.UUID) error
}
