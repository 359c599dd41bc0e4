package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when triggering a stopped runner
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrDebouncerStopped is returned when scheduling on a stopped debouncer
	ErrDebouncerStopped = errors.New("debouncer is stopped")
)
