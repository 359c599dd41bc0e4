package cache

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/foodcourt/storefront/internal/domain/cart"
	"github.com/foodcourt/storefront/internal/infrastructure/config"
)

// CartCacheFactory builds the local cart cache from configuration
type CartCacheFactory struct {
	redisConfig           config.RedisConfig
	cartConfig            config.CartConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// CartCacheFactoryOption is a functional option for the factory
type CartCacheFactoryOption func(*CartCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) CartCacheFactoryOption {
	return func(f *CartCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory cache
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) CartCacheFactoryOption {
	return func(f *CartCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewCartCacheFactory creates a new factory
func NewCartCacheFactory(redisCfg config.RedisConfig, cartCfg config.CartConfig, opts ...CartCacheFactoryOption) *CartCacheFactory {
	f := &CartCacheFactory{
		redisConfig:           redisCfg,
		cartConfig:            cartCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: !cartCfg.RequireRedis,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CartCache is a local cache that owns resources to release on shutdown
type CartCache interface {
	cart.LocalCache
	io.Closer
}

type redisCartCacheCloser struct {
	*RedisCartCache
	closer io.Closer
}

func (r redisCartCacheCloser) Close() error { return r.closer.Close() }

// CreateCache tries Redis first and falls back to memory when allowed
func (f *CartCacheFactory) CreateCache() (CartCache, error) {
	client, err := NewRedisClient(f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis cart cache", zap.String("addr", f.redisConfig.Addr()))
		return redisCartCacheCloser{
			RedisCartCache: NewRedisCartCache(client, f.cartConfig.CacheKeyPrefix, f.cartConfig.CacheTTL),
			closer:         client,
		}, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for cart cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory cart cache. "+
		"Carts will not survive a restart or be shared between instances.",
		zap.Error(err),
	)
	return NewInMemoryCartCache(f.cartConfig.CacheTTL, time.Minute), nil
}
