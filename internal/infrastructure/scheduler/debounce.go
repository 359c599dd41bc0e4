package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Debouncer coalesces bursts of Trigger calls into one trailing call of fn,
// fired once the window has elapsed without a new trigger. Calls of fn never
// overlap. The window always elapses eventually, so a steady stream of
// triggers delays but never starves the write.
type Debouncer struct {
	window time.Duration
	fn     func(ctx context.Context)
	logger *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	stopped bool
	runMu   sync.Mutex
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewDebouncer creates a debouncer that calls fn after window of quiet
func NewDebouncer(window time.Duration, fn func(ctx context.Context), logger *zap.Logger) *Debouncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer{
		window: window,
		fn:     fn,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Trigger (re)starts the quiet window
func (d *Debouncer) Trigger() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrDebouncerStopped
	}
	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
	return nil
}

// Pending reports whether a call is scheduled but has not started
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.stopped || !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.wg.Add(1)
	d.mu.Unlock()

	defer d.wg.Done()
	d.run(d.ctx)
}

func (d *Debouncer) run(ctx context.Context) {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("debounced call panicked", zap.Any("panic", r))
		}
	}()
	d.fn(ctx)
}

// Flush runs a pending call immediately on the caller's goroutine. It waits
// for an in-flight call to finish first. Returns false if nothing was pending.
func (d *Debouncer) Flush(ctx context.Context) bool {
	d.mu.Lock()
	if d.stopped || !d.pending {
		d.mu.Unlock()
		// wait out an in-flight call so callers observe its effects
		d.runMu.Lock()
		d.runMu.Unlock()
		return false
	}
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()

	d.run(ctx)
	return true
}

// Stop cancels any scheduled call and waits for an in-flight call to return.
// When flush is true a pending call is executed before stopping.
func (d *Debouncer) Stop(ctx context.Context, flush bool) {
	if flush {
		d.Flush(ctx)
	}
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}
