package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/foodcourt/storefront/internal/domain/cart"
	"github.com/foodcourt/storefront/internal/domain/shared"
	"github.com/foodcourt/storefront/internal/infrastructure/cache"
	"github.com/foodcourt/storefront/internal/infrastructure/scheduler"
)

// ErrRegistryClosed is returned once the registry has shut down
var ErrRegistryClosed = shared.NewDomainError(shared.CodeInvalidState, "session registry is closed")

// RegistryConfig configures session lifetime
type RegistryConfig struct {
	// IdleTTL evicts sessions without activity for this long
	IdleTTL time.Duration
	// SweepInterval is how often idle sessions are looked for
	SweepInterval time.Duration
}

// SessionRegistry owns one SyncController per client session. Each session
// sees the shared local cache through a namespace so guest carts do not
// collide.
type SessionRegistry struct {
	local  cart.LocalCache
	remote cart.RemoteStore
	config RegistryConfig
	opts   []Option
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*SyncController
	closed   bool

	sweeper *scheduler.IntervalRunner
}

// NewSessionRegistry creates a registry. opts are applied to every controller.
func NewSessionRegistry(local cart.LocalCache, remote cart.RemoteStore, config RegistryConfig, logger *zap.Logger, opts ...Option) (*SessionRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 2 * time.Hour
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Minute
	}

	r := &SessionRegistry{
		local:    local,
		remote:   remote,
		config:   config,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*SyncController),
	}

	sweeper, err := scheduler.NewIntervalRunner(scheduler.IntervalConfig{
		Name:     "cart-session-sweep",
		Interval: config.SweepInterval,
		Timeout:  config.SweepInterval,
	}, r.Sweep, logger)
	if err != nil {
		return nil, err
	}
	r.sweeper = sweeper
	return r, nil
}

// Start launches the idle sweep
func (r *SessionRegistry) Start(ctx context.Context) error {
	return r.sweeper.Start(ctx)
}

// Get returns the controller of a session, creating and loading it on first
// use.
func (r *SessionRegistry) Get(ctx context.Context, sessionID string) (*SyncController, error) {
	if sessionID == "" {
		return nil, shared.NewValidationError("session id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	if c, ok := r.sessions[sessionID]; ok {
		return c, nil
	}

	opts := make([]Option, 0, len(r.opts)+1)
	opts = append(opts, r.opts...)
	opts = append(opts, WithLogger(r.logger.With(zap.String("session_id", sessionID))))
	c := NewSyncController(cache.NewNamespaced(r.local, sessionID), r.remote, opts...)
	if err := c.Load(ctx); err != nil {
		return nil, err
	}
	r.sessions[sessionID] = c
	return c, nil
}

// Len returns the number of live sessions
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than IdleTTL, flushing them first
func (r *SessionRegistry) Sweep(ctx context.Context) error {
	cutoff := r.now().Add(-r.config.IdleTTL)

	r.mu.Lock()
	var idle []*SyncController
	for id, c := range r.sessions {
		if c.LastActive().Before(cutoff) {
			idle = append(idle, c)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	var errs []error
	for _, c := range idle {
		if err := c.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(idle) > 0 {
		r.logger.Info("evicted idle cart sessions",
			zap.Int("evicted", len(idle)),
			zap.Int("flush_failures", len(errs)),
		)
	}
	return errors.Join(errs...)
}

// Close stops the sweep and closes every session
func (r *SessionRegistry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*SyncController)
	r.mu.Unlock()

	errs := []error{r.sweeper.Stop(ctx)}
	for _, c := range sessions {
		errs = append(errs, c.Close(ctx))
	}
	return errors.Join(errs...)
}
