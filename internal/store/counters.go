// internal/store/counters.go
package store

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Counters persists diagnostic failure counters under KindFailCounts.
// The counters are advisory telemetry: a lost increment is acceptable,
// a doubled one is not, so each Inc is a single read-modify-write and
// errors are logged rather than propagated.
type Counters struct {
	mu     sync.Mutex
	store  Store
	logger *zap.Logger
}

// NewCounters creates a counter sink backed by the given store.
func NewCounters(s Store, logger *zap.Logger) *Counters {
	return &Counters{store: s, logger: logger.Named("counters")}
}

// Inc increments the named counter by one.
func (c *Counters) Inc(ctx context.Context, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var current int
	if _, err := c.store.Load(ctx, KindFailCounts, name, &current); err != nil {
		c.logger.Warn("Failed to read failure counter",
			zap.String("criterion", name), zap.Error(err))
		return
	}
	if err := c.store.Save(ctx, KindFailCounts, name, current+1); err != nil {
		c.logger.Warn("Failed to update failure counter",
			zap.String("criterion", name), zap.Error(err))
	}
}

// Get returns the current value of the named counter.
func (c *Counters) Get(ctx context.Context, name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var current int
	if _, err := c.store.Load(ctx, KindFailCounts, name, &current); err != nil {
		c.logger.Warn("Failed to read failure counter",
			zap.String("criterion", name), zap.Error(err))
		return 0
	}
	return current
}
