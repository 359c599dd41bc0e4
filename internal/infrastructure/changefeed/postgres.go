package changefeed

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/foodcourt/storefront/internal/domain/feed"
)

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPing         = 90 * time.Second
)

// Postgres relays changes with NOTIFY/LISTEN on the primary database.
// Notifications sent while a listener is reconnecting are lost.
type Postgres struct {
	*Hub
	db       *sql.DB
	listener *pq.Listener
	channel  string
	logger   *zap.Logger
	stop     chan struct{}
	doneCh   chan struct{}
	once     sync.Once
}

// PostgresChannelName turns a configured prefix into a LISTEN channel name
func PostgresChannelName(prefix string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, prefix)
}

// NewPostgres starts listening on channel. db is used for publishing and is
// owned by the caller.
func NewPostgres(db *sql.DB, dsn, channel string, bufferSize int, logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	listener := pq.NewListener(dsn, listenerMinReconnect, listenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Warn("Change feed listener event", zap.Int("event", int(ev)), zap.Error(err))
			}
		})
	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen on %s: %w", channel, err)
	}

	p := &Postgres{
		Hub:      NewHub(bufferSize, logger),
		db:       db,
		listener: listener,
		channel:  channel,
		logger:   logger,
		stop:     make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go p.relay()

	logger.Info("Listening for change notifications", zap.String("channel", channel))
	return p, nil
}

// Publish issues pg_notify on the shared channel
func (p *Postgres) Publish(ctx context.Context, c feed.Change) error {
	payload, err := encodeChange(c)
	if err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", p.channel, string(payload)); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

func (p *Postgres) relay() {
	defer close(p.doneCh)
	ticker := time.NewTicker(listenerPing)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case n, ok := <-p.listener.Notify:
			if !ok {
				return
			}
			// nil after a reconnect
			if n == nil {
				continue
			}
			c, err := decodeChange([]byte(n.Extra))
			if err != nil {
				p.logger.Error("Discarding malformed change", zap.Error(err))
				continue
			}
			p.Hub.Deliver(c)
		case <-ticker.C:
			go func() {
				if err := p.listener.Ping(); err != nil {
					p.logger.Warn("Change feed listener ping failed", zap.Error(err))
				}
			}()
		}
	}
}

// Close stops the listener and closes all subscriptions
func (p *Postgres) Close() error {
	var err error
	p.once.Do(func() {
		close(p.stop)
		<-p.doneCh
		err = p.listener.Close()
		_ = p.Hub.Close()
	})
	return err
}

var _ feed.Transport = (*Postgres)(nil)
