package cache

import (
	"context"

	"github.com/foodcourt/storefront/internal/domain/cart"
)

// Namespaced scopes the guest cart key of a shared cache to one client
// session, so several guests can each own a cart_guest. User cart keys pass
// through unchanged and are shared by all sessions of that user.
type Namespaced struct {
	inner  cart.LocalCache
	prefix string
}

// NewNamespaced wraps inner, prefixing the guest key with "session:<id>:"
func NewNamespaced(inner cart.LocalCache, sessionID string) *Namespaced {
	return &Namespaced{inner: inner, prefix: "session:" + sessionID + ":"}
}

func (n *Namespaced) key(k string) string {
	if k == cart.GuestOwner.CacheKey() {
		return n.prefix + k
	}
	return k
}

// Get implements cart.LocalCache
func (n *Namespaced) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return n.inner.Get(ctx, n.key(key))
}

// Set implements cart.LocalCache
func (n *Namespaced) Set(ctx context.Context, key string, data []byte) error {
	return n.inner.Set(ctx, n.key(key), data)
}

// Remove implements cart.LocalCache
func (n *Namespaced) Remove(ctx context.Context, key string) error {
	return n.inner.Remove(ctx, n.key(key))
}

var _ cart.LocalCache = (*Namespaced)(nil)
