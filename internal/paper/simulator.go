// internal/paper/simulator.go
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"kothwatch/internal/store"
	"kothwatch/internal/token"
)

// SnapshotFetcher supplies a fresh market snapshot for a mint.
type SnapshotFetcher interface {
	Snapshot(ctx context.Context, mint string) (*token.PriceSnapshot, error)
}

// Config bounds the simulator.
type Config struct {
	// StartingBalance seeds the ledger the first time it is created.
	StartingBalance float64
	// HoldLimit is the wall after which an open position is force-closed.
	HoldLimit time.Duration
	// Interval is the polling period while a position is open.
	Interval time.Duration
}

// DefaultConfig returns the production settings: a 10-minute hold
// limit polled every 10 seconds, starting from a 1000-unit balance.
func DefaultConfig() Config {
	return Config{
		StartingBalance: 1000,
		HoldLimit:       10 * time.Minute,
		Interval:        10 * time.Second,
	}
}

func (c Config) validate() error {
	if c.StartingBalance <= 0 || c.HoldLimit <= 0 || c.Interval <= 0 {
		return fmt.Errorf("non-positive simulator setting")
	}
	return nil
}

// Simulator opens paper positions for qualified coins and drives each
// one to a closed outcome. Positions track independently; only the
// ledger settlement is serialized.
type Simulator struct {
	cfg     Config
	fetcher SnapshotFetcher
	store   store.Store
	logger  *zap.Logger

	// ledgerMu makes the ledger read-modify-write all-or-nothing when
	// several positions close close together.
	ledgerMu sync.Mutex
}

// NewSimulator creates a simulator.
func NewSimulator(cfg Config, fetcher SnapshotFetcher, st store.Store, logger *zap.Logger) (*Simulator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Simulator{
		cfg:     cfg,
		fetcher: fetcher,
		store:   st,
		logger:  logger.Named("simulator"),
	}, nil
}

// Open creates a position for the mint. Entry values come from a just
// refetched snapshot when one is available, falling back to the
// snapshot that triggered qualification. If a position for the mint
// already exists the stored one is returned untouched.
func (s *Simulator) Open(ctx context.Context, mint string, fallback *token.PriceSnapshot) (*Position, error) {
	var existing Position
	found, err := s.store.Load(ctx, store.KindPositions, mint, &existing)
	if err != nil {
		return nil, fmt.Errorf("load position: %w", err)
	}
	if found {
		s.logger.Warn("Position already exists, not reopening",
			zap.String("mint", mint), zap.String("status", string(existing.Status)))
		return &existing, nil
	}

	entry := fallback
	if snap, err := s.fetcher.Snapshot(ctx, mint); err == nil && snap != nil {
		entry = snap
	} else if err != nil {
		s.logger.Warn("Entry refetch failed, using qualifying snapshot",
			zap.String("mint", mint), zap.Error(err))
	}
	if entry == nil {
		return nil, fmt.Errorf("no entry snapshot for %s", mint)
	}

	pos := NewPosition(mint, entry.Price, entry.MarketCap, time.Now())
	if err := s.store.Save(ctx, store.KindPositions, mint, pos); err != nil {
		return nil, fmt.Errorf("save position: %w", err)
	}

	s.logger.Info("Paper position opened",
		zap.String("mint", mint),
		zap.Float64("entry_price", pos.EntryPrice),
		zap.Float64("entry_market_cap", pos.EntryMarketCap))
	return pos, nil
}

// Track polls the position until an exit rule fires or the context is
// cancelled, then settles it into the ledger. A fetch failure skips
// the tick, except that the hold-time wall still closes the position
// at the last observed values.
func (s *Simulator) Track(ctx context.Context, pos *Position) (*Trade, error) {
	logger := s.logger.With(zap.String("mint", pos.Mint))

	lastPrice := pos.EntryPrice
	lastMC := pos.EntryMarketCap

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for pos.Status == StatusOpen {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		now := time.Now()
		snap, err := s.fetcher.Snapshot(ctx, pos.Mint)
		if err != nil || snap == nil {
			if err != nil {
				logger.Warn("Snapshot fetch failed while tracking", zap.Error(err))
			}
			// Time exit does not wait for the feed to recover.
			if now.Sub(pos.AlertTime) >= s.cfg.HoldLimit {
				return s.close(ctx, pos, lastPrice, lastMC, now, OutcomeMarketExit)
			}
			continue
		}

		lastPrice, lastMC = snap.Price, snap.MarketCap
		pos.Observe(snap.Price)
		if err := s.store.Save(ctx, store.KindPositions, pos.Mint, pos); err != nil {
			logger.Warn("Failed to persist position", zap.Error(err))
		}

		if outcome, done := pos.ExitOutcome(snap.Price, now, s.cfg.HoldLimit); done {
			return s.close(ctx, pos, snap.Price, snap.MarketCap, now, outcome)
		}
	}
	return nil, fmt.Errorf("position %s is not open", pos.Mint)
}

// close finalizes the position and books it into the ledger.
func (s *Simulator) close(ctx context.Context, pos *Position, price, marketCap float64, now time.Time, outcome Outcome) (*Trade, error) {
	if !pos.Close(price, marketCap, now, outcome) {
		return nil, fmt.Errorf("position %s already closed", pos.Mint)
	}
	if err := s.store.Save(ctx, store.KindPositions, pos.Mint, pos); err != nil {
		return nil, fmt.Errorf("save closed position: %w", err)
	}

	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	ledger, err := s.Ledger(ctx)
	if err != nil {
		return nil, err
	}
	trade := ledger.Settle(pos)
	if err := s.store.Save(ctx, store.KindSimulation, store.SimulationID, ledger); err != nil {
		return nil, fmt.Errorf("save ledger: %w", err)
	}

	s.logger.Info("Paper position closed",
		zap.String("mint", pos.Mint),
		zap.String("outcome", string(outcome)),
		zap.Float64("return_pct", trade.Return*100),
		zap.Float64("profit", trade.Profit),
		zap.Bool("win", trade.Win),
		zap.Float64("balance", ledger.Balance),
		zap.Float64("winrate", ledger.Winrate))
	return &trade, nil
}

// Ledger loads the singleton ledger, creating it at the starting
// balance on first use.
func (s *Simulator) Ledger(ctx context.Context) (*Ledger, error) {
	var ledger Ledger
	found, err := s.store.Load(ctx, store.KindSimulation, store.SimulationID, &ledger)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if !found {
		return NewLedger(s.cfg.StartingBalance), nil
	}
	return &ledger, nil
}

// Resume returns the open positions left behind by a previous run so
// the caller can hand each back to Track.
func (s *Simulator) Resume(ctx context.Context) ([]*Position, error) {
	ids, err := s.store.List(ctx, store.KindPositions)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	var open []*Position
	for _, id := range ids {
		var pos Position
		found, err := s.store.Load(ctx, store.KindPositions, id, &pos)
		if err != nil || !found {
			continue
		}
		if pos.Status == StatusOpen {
			open = append(open, &pos)
		}
	}
	return open, nil
}
