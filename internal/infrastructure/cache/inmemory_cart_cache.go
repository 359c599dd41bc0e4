package cache

import (
	"context"
	"sync"
	"time"

	"github.com/foodcourt/storefront/internal/domain/cart"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// InMemoryCartCache implements cart.LocalCache with a map. It is used for
// tests and single-instance deployments without Redis.
type InMemoryCartCache struct {
	mu        sync.RWMutex
	entries   map[string]entry
	ttl       time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryCartCache creates the cache. When ttl is positive a background
// goroutine evicts expired entries every cleanupInterval; call Close to stop it.
func NewInMemoryCartCache(ttl, cleanupInterval time.Duration) *InMemoryCartCache {
	c := &InMemoryCartCache{
		entries:  make(map[string]entry),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}
	if ttl > 0 && cleanupInterval > 0 {
		c.wg.Add(1)
		go c.cleanupLoop(cleanupInterval)
	}
	return c
}

// Get implements cart.LocalCache
func (c *InMemoryCartCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || e.expired(time.Now()) {
		return nil, false, nil
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, true, nil
}

// Set implements cart.LocalCache
func (c *InMemoryCartCache) Set(_ context.Context, key string, data []byte) error {
	e := entry{data: append([]byte(nil), data...)}
	if c.ttl > 0 {
		e.expiresAt = time.Now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

// Remove implements cart.LocalCache
func (c *InMemoryCartCache) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Len returns the number of live entries
func (c *InMemoryCartCache) Len() int {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, e := range c.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

func (c *InMemoryCartCache) cleanupLoop(interval time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *InMemoryCartCache) evictExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
}

// Close stops the cleanup goroutine
func (c *InMemoryCartCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

var _ cart.LocalCache = (*InMemoryCartCache)(nil)
