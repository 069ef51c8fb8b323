package session

import (
	"sync"
	"time"

	"github.com/imgsmith/imgsmith/pkg/logging"
)

const (
	// DefaultSweepInterval is how often the reaper scans the registry.
	DefaultSweepInterval = time.Hour

	// DefaultMaxIdle is how long a session may sit untouched before its
	// registry entry is evicted.
	DefaultMaxIdle = 24 * time.Hour
)

// Reaper periodically evicts idle sessions from a registry. It removes
// registry entries only; stored files are untouched (Clear is the
// storage-reclaiming path).
type Reaper struct {
	registry *Registry
	interval time.Duration
	maxIdle  time.Duration
	logger   *logging.Logger

	stopCh  chan struct{}
	stopped bool
	mu      sync.Mutex
}

// NewReaper creates a reaper. Zero durations fall back to the defaults.
func NewReaper(registry *Registry, interval, maxIdle time.Duration, logger *logging.Logger) *Reaper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}

	return &Reaper{
		registry: registry,
		interval: interval,
		maxIdle:  maxIdle,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (rp *Reaper) Start() {
	go rp.loop()
}

func (rp *Reaper) loop() {
	ticker := time.NewTicker(rp.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rp.sweep()
		case <-rp.stopCh:
			return
		}
	}
}

// sweep runs one eviction pass. A panic inside the sweep is logged and
// must not kill the loop.
func (rp *Reaper) sweep() {
	defer func() {
		if rec := recover(); rec != nil {
			rp.logger.Error("session sweep panicked", "panic", rec)
		}
	}()

	evicted := rp.registry.SweepIdle(rp.maxIdle)
	rp.logger.Debug("session sweep finished", "evicted", evicted)
}

// Close stops the reaper. Safe to call more than once.
func (rp *Reaper) Close() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.stopped {
		return
	}
	close(rp.stopCh)
	rp.stopped = true
}
