package telemetry

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// ProfilerConfig holds continuous profiling settings
type ProfilerConfig struct {
	Enabled         bool
	ServerAddress   string
	ApplicationName string
	// ProfileTypes names the collected profiles, e.g. "cpu", "inuse_space",
	// "goroutines", "mutex". Empty means cpu, alloc and inuse.
	ProfileTypes []string
}

var profileTypesByName = map[string][]pyroscope.ProfileType{
	"cpu":         {pyroscope.ProfileCPU},
	"alloc":       {pyroscope.ProfileAllocObjects, pyroscope.ProfileAllocSpace},
	"inuse":       {pyroscope.ProfileInuseObjects, pyroscope.ProfileInuseSpace},
	"inuse_space": {pyroscope.ProfileInuseSpace},
	"goroutines":  {pyroscope.ProfileGoroutines},
	"mutex":       {pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration},
	"block":       {pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration},
}

// Profiler pushes pprof profiles to a Pyroscope server
type Profiler struct {
	profiler *pyroscope.Profiler
	mu       sync.Mutex
	stopped  bool
}

// NewProfiler starts profiling. A disabled config yields a no-op profiler.
func NewProfiler(cfg ProfilerConfig, logger *zap.Logger) (*Profiler, error) {
	p := &Profiler{}
	if !cfg.Enabled {
		return p, nil
	}
	if cfg.ServerAddress == "" {
		return nil, fmt.Errorf("profiler server address is required when profiling is enabled")
	}

	names := cfg.ProfileTypes
	if len(names) == 0 {
		names = []string{"cpu", "alloc", "inuse"}
	}
	var types []pyroscope.ProfileType
	for _, name := range names {
		t, ok := profileTypesByName[name]
		if !ok {
			return nil, fmt.Errorf("unknown profile type %q", name)
		}
		types = append(types, t...)
		switch name {
		case "mutex":
			runtime.SetMutexProfileFraction(5)
		case "block":
			runtime.SetBlockProfileRate(5)
		}
	}

	tags := map[string]string{}
	if hostname, err := os.Hostname(); err == nil {
		tags["hostname"] = hostname
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.ServerAddress,
		Logger:          pyroscopeLogger{logger.Named("pyroscope").Sugar()},
		Tags:            tags,
		ProfileTypes:    types,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}
	p.profiler = profiler

	logger.Info("Pyroscope profiler started",
		zap.String("server_address", cfg.ServerAddress),
		zap.Strings("profiles", names),
	)
	return p, nil
}

// Stop flushes and stops profiling. It may be called more than once.
func (p *Profiler) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || p.profiler == nil {
		p.stopped = true
		return nil
	}
	p.stopped = true
	if err := p.profiler.Stop(); err != nil {
		return fmt.Errorf("failed to stop profiler: %w", err)
	}
	return nil
}

// IsEnabled reports whether profiles are being pushed
func (p *Profiler) IsEnabled() bool {
	return p.profiler != nil
}

// pyroscopeLogger satisfies pyroscope.Logger through the sugared methods
type pyroscopeLogger struct {
	*zap.SugaredLogger
}
