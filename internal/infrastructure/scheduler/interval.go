package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IntervalConfig configures an interval runner
type IntervalConfig struct {
	// Name identifies the job in logs
	Name string
	// Interval between runs
	Interval time.Duration
	// Timeout bounds a single run; zero means no timeout
	Timeout time.Duration
	// RunOnStart executes the job once immediately after Start
	RunOnStart bool
}

// Validate checks the configuration
func (c IntervalConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Job is the work executed on every tick
type Job func(ctx context.Context) error

// IntervalRunner runs a job at a fixed interval until stopped
type IntervalRunner struct {
	config    IntervalConfig
	job       Job
	logger    *zap.Logger
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewIntervalRunner creates a runner; it does nothing until Start
func NewIntervalRunner(config IntervalConfig, job Job, logger *zap.Logger) (*IntervalRunner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntervalRunner{
		config: config,
		job:    job,
		logger: logger.With(zap.String("job", config.Name)),
	}, nil
}

// Start launches the ticker goroutine. Starting a running runner is a no-op.
func (r *IntervalRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRunning {
		return nil
	}
	r.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.loop(ctx)

	r.logger.Info("Interval job started", zap.Duration("interval", r.config.Interval))
	return nil
}

// Stop cancels the loop and waits for the current run to return, bounded by ctx
func (r *IntervalRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Interval job stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("Interval job stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the runner is started
func (r *IntervalRunner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isRunning
}

// RunNow executes the job once on the caller's goroutine
func (r *IntervalRunner) RunNow(ctx context.Context) error {
	if !r.IsRunning() {
		return ErrSchedulerNotRunning
	}
	return r.execute(ctx)
}

func (r *IntervalRunner) loop(ctx context.Context) {
	defer r.wg.Done()

	if r.config.RunOnStart {
		_ = r.execute(ctx)
	}

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.execute(ctx)
		}
	}
}

func (r *IntervalRunner) execute(ctx context.Context) (err error) {
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job %s panicked: %v", r.config.Name, p)
			r.logger.Error("Interval job panicked", zap.Any("panic", p))
		}
	}()

	start := time.Now()
	if err = r.job(ctx); err != nil {
		r.logger.Warn("Interval job failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return err
	}
	r.logger.Debug("Interval job finished", zap.Duration("elapsed", time.Since(start)))
	return nil
}
