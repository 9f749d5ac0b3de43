// internal/bot/engine.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kothwatch/internal/config"
	"kothwatch/internal/criteria"
	"kothwatch/internal/lifecycle"
	"kothwatch/internal/logger"
	"kothwatch/internal/market"
	"kothwatch/internal/notify"
	"kothwatch/internal/paper"
	"kothwatch/internal/store"
	"kothwatch/internal/token"
)

// Discovery supplies the currently-trending coin, or nil when the
// feed has nothing usable.
type Discovery interface {
	KingOfTheHill(ctx context.Context) (*market.DiscoveredCoin, error)
}

// ReportFetcher supplies audit reports. Implementations fail soft: an
// unreachable auditor yields an empty report, never an error.
type ReportFetcher interface {
	Report(ctx context.Context, mint string) *token.RiskReport
}

// Engine ties discovery, observation, and simulation together. Each
// discovered coin gets its own watcher task and, on qualification,
// its own position tracker; the discovery loop never blocks on them.
type Engine struct {
	cfg       *config.Config
	discovery Discovery
	fetcher   lifecycle.SnapshotFetcher
	reports   ReportFetcher
	evaluator *criteria.Evaluator
	store     store.Store
	simulator *paper.Simulator
	notifier  notify.Notifier
	logger    *logger.Logger

	mu       sync.Mutex
	watching map[string]bool
}

// NewEngine wires an engine from its collaborators.
func NewEngine(cfg *config.Config, discovery Discovery, fetcher lifecycle.SnapshotFetcher,
	reports ReportFetcher, evaluator *criteria.Evaluator, st store.Store,
	simulator *paper.Simulator, notifier notify.Notifier, log *logger.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		discovery: discovery,
		fetcher:   fetcher,
		reports:   reports,
		evaluator: evaluator,
		store:     st,
		simulator: simulator,
		notifier:  notifier,
		logger:    log.Named("engine"),
		watching:  make(map[string]bool),
	}
}

// Run drives the discovery loop until the context is cancelled, then
// waits for in-flight watchers and trackers to wind down. Per-coin
// failures are logged and never stop the loop.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("Engine started",
		zap.String("policy", e.evaluator.PolicyName()),
		zap.Duration("discovery_interval", e.cfg.DiscoveryInterval()))

	group, groupCtx := errgroup.WithContext(ctx)

	e.resume(groupCtx, group)

	ticker := time.NewTicker(e.cfg.DiscoveryInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Discovery loop stopping, waiting for watchers")
			err := group.Wait()
			e.logger.Info("Engine stopped")
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return ctx.Err()
		case <-ticker.C:
			e.discover(groupCtx, group)
		}
	}
}

// discover polls the feed once and registers the trending coin if it
// is new. A second discovery of a known mint is a no-op.
func (e *Engine) discover(ctx context.Context, group *errgroup.Group) {
	coin, err := e.discovery.KingOfTheHill(ctx)
	if err != nil {
		e.logger.Warn("Discovery fetch failed", zap.Error(err))
		return
	}
	if coin == nil {
		return
	}

	if !e.claim(coin.Mint) {
		return
	}

	record, err := e.register(ctx, coin)
	if err != nil {
		e.release(coin.Mint)
		e.logger.Warn("Failed to register coin", zap.String("mint", coin.Mint), zap.Error(err))
		return
	}
	if record == nil {
		// Already recorded or no market data yet.
		e.release(coin.Mint)
		return
	}

	e.spawnWatcher(ctx, group, record)
}

// register creates the coin record with its initial snapshot and
// audit report. Returns nil when the mint is already recorded or has
// no market data yet.
func (e *Engine) register(ctx context.Context, coin *market.DiscoveredCoin) (*token.CoinRecord, error) {
	found, err := e.store.Load(ctx, store.KindCoins, coin.Mint, &token.CoinRecord{})
	if err != nil {
		return nil, fmt.Errorf("load coin record: %w", err)
	}
	if found {
		return nil, nil
	}

	snap, err := e.fetcher.Snapshot(ctx, coin.Mint)
	if err != nil {
		return nil, fmt.Errorf("initial snapshot: %w", err)
	}
	if snap == nil {
		e.logger.Debug("No market data yet, will retry on a later tick", zap.String("mint", coin.Mint))
		return nil, nil
	}

	report := e.reports.Report(ctx, coin.Mint)
	if report != nil {
		snap.Risks = report.Risks
	}

	record := &token.CoinRecord{
		Mint:    coin.Mint,
		Name:    coin.Name,
		Symbol:  coin.Symbol,
		AddedAt: time.Now(),
		Initial: snap,
		History: []token.PriceSnapshot{*snap},
		Report:  report,
	}
	if err := e.store.Save(ctx, store.KindCoins, record.Mint, record); err != nil {
		return nil, fmt.Errorf("save coin record: %w", err)
	}

	e.logger.WithMint(record.Mint).Info("Coin registered",
		zap.String("symbol", record.Symbol),
		zap.Float64("market_cap", snap.MarketCap))
	return record, nil
}

// resume picks up coins and open positions left behind by a previous
// run. Expired coins fall out naturally on their watcher's first tick.
func (e *Engine) resume(ctx context.Context, group *errgroup.Group) {
	mints, err := e.store.List(ctx, store.KindCoins)
	if err != nil {
		e.logger.Warn("Failed to list stored coins", zap.Error(err))
	}
	for _, mint := range mints {
		record := &token.CoinRecord{}
		found, err := e.store.Load(ctx, store.KindCoins, mint, record)
		if err != nil || !found {
			continue
		}
		if !e.claim(record.Mint) {
			continue
		}
		e.logger.Info("Resuming coin observation", zap.String("mint", record.Mint))
		e.spawnWatcher(ctx, group, record)
	}

	positions, err := e.simulator.Resume(ctx)
	if err != nil {
		e.logger.Warn("Failed to resume positions", zap.Error(err))
		return
	}
	for _, pos := range positions {
		pos := pos
		e.logger.Info("Resuming open position", zap.String("mint", pos.Mint))
		group.Go(func() error {
			e.track(ctx, pos)
			return nil
		})
	}
}

func (e *Engine) spawnWatcher(ctx context.Context, group *errgroup.Group, record *token.CoinRecord) {
	group.Go(func() error {
		defer e.release(record.Mint)

		watcherCfg := lifecycle.Config{
			Warmup:   e.cfg.Warmup(),
			Deadline: e.cfg.Deadline(),
			Interval: e.cfg.WatchInterval(),
		}
		watchLog := e.logger.WithOperation("watch")
		watcher, err := lifecycle.NewWatcher(watcherCfg, record, e.fetcher, e.evaluator, e.store, watchLog)
		if err != nil {
			watchLog.Error("Failed to create watcher", zap.String("mint", record.Mint), zap.Error(err))
			return nil
		}

		result, err := watcher.Run(ctx)
		if err != nil {
			// Cancellation during shutdown; the record stays for resume.
			return nil
		}

		if result.State == lifecycle.Qualified {
			e.onQualified(ctx, result)
		}
		return nil
	})
}

// onQualified sends the alert and hands the coin to the simulator.
func (e *Engine) onQualified(ctx context.Context, result *lifecycle.Result) {
	message := fmt.Sprintf(
		"🚀 <b>Coin Alert!</b>\n<b>Mint:</b> %s\n<b>Elapsed:</b> %.2f minutes\n<b>Market Cap:</b> %s USD",
		result.Coin.Mint,
		result.Elapsed.Minutes(),
		token.FormatMarketCap(result.Snapshot.MarketCap),
	)
	log := e.logger.WithMint(result.Coin.Mint)
	if err := e.notifier.Alert(ctx, message); err != nil {
		log.Warn("Alert delivery failed", zap.Error(err))
	}

	pos, err := e.simulator.Open(ctx, result.Coin.Mint, result.Snapshot)
	if err != nil {
		log.Error("Failed to open position", zap.Error(err))
		return
	}
	e.track(ctx, pos)
}

func (e *Engine) track(ctx context.Context, pos *paper.Position) {
	log := e.logger.WithOperation("track").With(zap.String("mint", pos.Mint))
	trade, err := e.simulator.Track(ctx, pos)
	if err != nil {
		if ctx.Err() == nil {
			log.Error("Position tracking failed", zap.Error(err))
		}
		return
	}
	log.Info("Trade settled",
		zap.String("outcome", string(trade.Outcome)),
		zap.Bool("win", trade.Win))
}

func (e *Engine) claim(mint string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.watching[mint] {
		return false
	}
	e.watching[mint] = true
	return true
}

func (e *Engine) release(mint string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.watching, mint)
}
