package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reaper periodically evicts finished sessions from a Runner.
type Reaper struct {
	log      *zap.Logger
	runner   *Runner
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	retention time.Duration
}

const defaultSweepInterval = time.Minute

// NewReaper creates a reaper. A non-positive interval falls back to one
// minute.
func NewReaper(log *zap.Logger, runner *Runner, interval, retention time.Duration) *Reaper {
	if interval <= 0 {
		log.Warn("Invalid sweep interval, using default",
			zap.Duration("interval", interval),
			zap.Duration("default", defaultSweepInterval),
		)
		interval = defaultSweepInterval
	}
	return &Reaper{
		log:       log,
		runner:    runner,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

// Start runs the reaper in a goroutine until ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	r.log.Info("Starting session reaper...",
		zap.Duration("interval", r.interval),
		zap.Duration("retention", r.retention),
	)
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()
}

// SetRetention changes how long finished sessions are kept from the next
// sweep on.
func (r *Reaper) SetRetention(d time.Duration) {
	r.mu.Lock()
	r.retention = d
	r.mu.Unlock()
}

func (r *Reaper) sweep() int {
	r.mu.Lock()
	retention := r.retention
	r.mu.Unlock()

	evicted := r.runner.Evict(r.now().Add(-retention))
	if evicted > 0 {
		r.log.Debug("Evicted finished sessions", zap.Int("count", evicted), zap.Int("remaining", r.runner.Len()))
	}
	return evicted
}
