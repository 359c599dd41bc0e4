package changefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/foodcourt/storefront/internal/domain/feed"
)

const publishTimeout = 3 * time.Second

// RabbitMQ relays changes through a topic exchange. Each instance binds its
// own exclusive queue, so every instance receives every change. Messages are
// auto-acknowledged; a change lost in transit is recovered by polling.
type RabbitMQ struct {
	*Hub
	conn     *amqp.Connection
	pubMu    sync.Mutex
	pubCh    *amqp.Channel
	exchange string
	logger   *zap.Logger
	doneCh   chan struct{}
	once     sync.Once
}

// NewRabbitMQ dials the broker, declares the exchange and starts consuming
func NewRabbitMQ(url, exchange string, bufferSize int, logger *zap.Logger) (*RabbitMQ, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	r := &RabbitMQ{
		Hub:      NewHub(bufferSize, logger),
		conn:     conn,
		exchange: exchange,
		logger:   logger,
		doneCh:   make(chan struct{}),
	}
	deliveries, err := r.setup()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	go r.relay(deliveries)

	logger.Info("Consuming change feed exchange", zap.String("exchange", exchange))
	return r, nil
}

func (r *RabbitMQ) setup() (<-chan amqp.Delivery, error) {
	pubCh, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := pubCh.ExchangeDeclare(r.exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", r.exchange, err)
	}
	r.pubCh = pubCh

	subCh, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	q, err := subCh.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // autoDelete
		true,  // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	if err := subCh.QueueBind(q.Name, "#", r.exchange, false, nil); err != nil {
		return nil, fmt.Errorf("queue bind: %w", err)
	}
	deliveries, err := subCh.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	return deliveries, nil
}

// Publish sends the change to the exchange with routing key entity.type
func (r *RabbitMQ) Publish(ctx context.Context, c feed.Change) error {
	body, err := encodeChange(c)
	if err != nil {
		return err
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	r.pubMu.Lock()
	defer r.pubMu.Unlock()
	err = r.pubCh.PublishWithContext(pubCtx, r.exchange, routingKey(c), false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   c.ID.String(),
		Timestamp:   c.CommitTime,
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey(c), err)
	}
	return nil
}

func (r *RabbitMQ) relay(deliveries <-chan amqp.Delivery) {
	defer close(r.doneCh)
	for msg := range deliveries {
		c, err := decodeChange(msg.Body)
		if err != nil {
			r.logger.Error("Discarding malformed change",
				zap.String("routing_key", msg.RoutingKey),
				zap.Error(err))
			continue
		}
		r.Hub.Deliver(c)
	}
	r.logger.Info("Change feed deliveries stopped")
}

// Close closes the connection, which ends the consumer, then the hub
func (r *RabbitMQ) Close() error {
	var err error
	r.once.Do(func() {
		err = r.conn.Close()
		select {
		case <-r.doneCh:
		case <-time.After(defaultCloseTimeout):
			r.logger.Warn("Timeout waiting for change feed consumer to stop")
		}
		_ = r.Hub.Close()
	})
	return err
}

var _ feed.Transport = (*RabbitMQ)(nil)
