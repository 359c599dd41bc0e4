package changefeed

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/foodcourt/storefront/internal/domain/feed"
	"github.com/foodcourt/storefront/internal/infrastructure/config"
)

// Transport names accepted in configuration
const (
	TransportMemory   = "memory"
	TransportRedis    = "redis"
	TransportRabbitMQ = "rabbitmq"
	TransportPostgres = "postgres"
)

// Dependencies are the shared connections a transport may reuse
type Dependencies struct {
	Redis  *redis.Client
	DB     *sql.DB
	Logger *zap.Logger
}

// New builds the transport named in cfg.Feed.Transport
func New(cfg *config.Config, deps Dependencies) (feed.Transport, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "changefeed"), zap.String("transport", cfg.Feed.Transport))
	size := cfg.Feed.BufferSize

	switch cfg.Feed.Transport {
	case TransportMemory, "":
		return NewMemory(size, logger), nil
	case TransportRedis:
		if deps.Redis == nil {
			return nil, errors.New("redis change feed requires a Redis connection")
		}
		return NewRedis(deps.Redis, cfg.Feed.ChannelPrefix, size, logger)
	case TransportRabbitMQ:
		return NewRabbitMQ(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, size, logger)
	case TransportPostgres:
		if deps.DB == nil {
			return nil, errors.New("postgres change feed requires a database connection")
		}
		return NewPostgres(deps.DB, cfg.Database.DSN(), PostgresChannelName(cfg.Feed.ChannelPrefix), size, logger)
	default:
		return nil, fmt.Errorf("unknown change feed transport %q", cfg.Feed.Transport)
	}
}
