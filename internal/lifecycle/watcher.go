// internal/lifecycle/watcher.go
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kothwatch/internal/criteria"
	"kothwatch/internal/store"
	"kothwatch/internal/token"
)

// SnapshotFetcher supplies a fresh market snapshot for a mint.
// A nil snapshot with a nil error means no data this tick.
type SnapshotFetcher interface {
	Snapshot(ctx context.Context, mint string) (*token.PriceSnapshot, error)
}

// Result describes how a coin's lifecycle ended.
type Result struct {
	State    State
	Coin     *token.CoinRecord
	Snapshot *token.PriceSnapshot // snapshot that decided the terminal state, if any
	Elapsed  time.Duration
}

// Config bounds the observation windows of a watcher.
type Config struct {
	// Warmup is the period after detection during which snapshots
	// accumulate without any evaluation.
	Warmup time.Duration
	// Deadline is the hard wall after detection; an undecided coin
	// expires there.
	Deadline time.Duration
	// Interval is the polling period during the qualification window.
	Interval time.Duration
}

// DefaultConfig returns the production windows: a 2-minute warm-up, a
// 5-minute deadline, and 1-second polling in between.
func DefaultConfig() Config {
	return Config{
		Warmup:   2 * time.Minute,
		Deadline: 5 * time.Minute,
		Interval: time.Second,
	}
}

func (c Config) validate() error {
	if c.Warmup < 0 || c.Deadline <= 0 || c.Interval <= 0 {
		return fmt.Errorf("non-positive watcher window")
	}
	if c.Warmup >= c.Deadline {
		return fmt.Errorf("warmup %s must end before deadline %s", c.Warmup, c.Deadline)
	}
	return nil
}

// Watcher drives one coin from Observing to a terminal state. Each
// coin gets its own watcher goroutine, so a coin in its high-frequency
// window never blocks the rest of the engine.
type Watcher struct {
	cfg       Config
	coin      *token.CoinRecord
	fetcher   SnapshotFetcher
	evaluator *criteria.Evaluator
	store     store.Store
	logger    *zap.Logger
}

// NewWatcher creates a watcher for the coin.
func NewWatcher(cfg Config, coin *token.CoinRecord, fetcher SnapshotFetcher,
	evaluator *criteria.Evaluator, st store.Store, logger *zap.Logger) (*Watcher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if coin == nil || coin.Mint == "" {
		return nil, fmt.Errorf("watcher requires a coin with a mint")
	}
	return &Watcher{
		cfg:       cfg,
		coin:      coin,
		fetcher:   fetcher,
		evaluator: evaluator,
		store:     st,
		logger:    logger.Named("watcher").With(zap.String("mint", coin.Mint)),
	}, nil
}

// Run polls snapshots until the coin reaches a terminal state or the
// context is cancelled. Deadlines are enforced by wall-clock checks on
// every tick, not by sleeping out the window.
func (w *Watcher) Run(ctx context.Context) (*Result, error) {
	w.logger.Info("Observation started",
		zap.Duration("warmup", w.cfg.Warmup),
		zap.Duration("deadline", w.cfg.Deadline))

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		now := time.Now()
		elapsed := w.coin.Elapsed(now)

		if elapsed >= w.cfg.Deadline {
			return w.finish(ctx, Expired, nil, elapsed)
		}

		snap, err := w.fetcher.Snapshot(ctx, w.coin.Mint)
		if err != nil || snap == nil {
			// No data this tick: no transition, no counters, retry on
			// the next tick. Retries with backoff live in the fetcher.
			if err != nil {
				w.logger.Warn("Snapshot fetch failed, skipping tick", zap.Error(err))
			}
			continue
		}

		// Each recorded snapshot carries the audit risks known for
		// the coin, like the initial one written at registration.
		if w.coin.Report != nil {
			snap.Risks = w.coin.Report.Risks
		}

		if err := w.coin.AppendSnapshot(*snap); err != nil {
			w.logger.Warn("Dropping out-of-order snapshot", zap.Error(err))
			continue
		}
		if err := w.store.Save(ctx, store.KindCoins, w.coin.Mint, w.coin); err != nil {
			w.logger.Warn("Failed to persist price history", zap.Error(err))
		}

		// Warm-up: history grows, nothing is evaluated yet.
		if elapsed < w.cfg.Warmup {
			continue
		}

		switch w.evaluator.Evaluate(ctx, w.coin, now) {
		case criteria.Reject:
			return w.finish(ctx, Rejected, snap, elapsed)
		case criteria.Qualify:
			w.coin.Posted = true
			if err := w.store.Save(ctx, store.KindCoins, w.coin.Mint, w.coin); err != nil {
				w.logger.Warn("Failed to persist posted flag", zap.Error(err))
			}
			return w.finish(ctx, Qualified, snap, elapsed)
		case criteria.Undecided:
			// Keep observing until the deadline.
		}
	}
}

// finish removes the coin from active storage and reports the terminal
// state.
func (w *Watcher) finish(ctx context.Context, state State, snap *token.PriceSnapshot, elapsed time.Duration) (*Result, error) {
	if err := w.store.Remove(ctx, store.KindCoins, w.coin.Mint); err != nil {
		w.logger.Warn("Failed to remove coin record", zap.Error(err))
	}

	w.logger.Info("Observation finished",
		zap.String("state", state.String()),
		zap.Float64("elapsed_minutes", elapsed.Minutes()),
		zap.Int("snapshots", len(w.coin.History)))

	return &Result{State: state, Coin: w.coin, Snapshot: snap, Elapsed: elapsed}, nil
}
