package changefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/foodcourt/storefront/internal/domain/feed"
)

const defaultCloseTimeout = 5 * time.Second

// Redis relays changes through Redis Pub/Sub, one channel per entity named
// <prefix>:<entity>, so every instance sees writes made by the others. The
// caller owns the client.
type Redis struct {
	*Hub
	client *redis.Client
	prefix string
	logger *zap.Logger
	cancel context.CancelFunc
	doneCh chan struct{}
	once   sync.Once
}

// NewRedis subscribes to every entity channel under prefix and starts
// relaying into a local hub
func NewRedis(client *redis.Client, prefix string, bufferSize int, logger *zap.Logger) (*Redis, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	channels := make([]string, 0, len(feed.Entities()))
	for _, e := range feed.Entities() {
		channels = append(channels, redisChannel(prefix, e))
	}

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := client.Subscribe(ctx, channels...)

	confirmCtx, confirmCancel := context.WithTimeout(ctx, defaultCloseTimeout)
	defer confirmCancel()
	if _, err := pubsub.Receive(confirmCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", prefix, err)
	}

	r := &Redis{
		Hub:    NewHub(bufferSize, logger),
		client: client,
		prefix: prefix,
		logger: logger,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}
	go r.relay(ctx, pubsub)

	logger.Info("Subscribed to change feed channels", zap.Strings("channels", channels))
	return r, nil
}

// Publish sends the change to every instance, this one included
func (r *Redis) Publish(ctx context.Context, c feed.Change) error {
	data, err := encodeChange(c)
	if err != nil {
		return err
	}
	channel := redisChannel(r.prefix, c.Entity)
	if err := r.client.Publish(ctx, channel, data).Err(); err != nil {
		r.logger.Error("Failed to publish change",
			zap.String("channel", channel),
			zap.Error(err))
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

func redisChannel(prefix string, e feed.Entity) string {
	return prefix + ":" + string(e)
}

func (r *Redis) relay(ctx context.Context, pubsub *redis.PubSub) {
	defer close(r.doneCh)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				r.logger.Warn("Change feed channel closed")
				return
			}
			c, err := decodeChange([]byte(msg.Payload))
			if err != nil {
				r.logger.Error("Discarding malformed change", zap.Error(err))
				continue
			}
			r.Hub.Deliver(c)
		}
	}
}

// Close stops relaying and closes all subscriptions
func (r *Redis) Close() error {
	r.once.Do(func() {
		r.cancel()
		select {
		case <-r.doneCh:
		case <-time.After(defaultCloseTimeout):
			r.logger.Warn("Timeout waiting for change feed relay to stop")
		}
		_ = r.Hub.Close()
	})
	return nil
}

var _ feed.Transport = (*Redis)(nil)
