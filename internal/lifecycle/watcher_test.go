package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kothwatch/internal/criteria"
	"kothwatch/internal/store"
	"kothwatch/internal/token"
)

// priceScript returns scripted prices: before the switch time the warm
// price, after it the live price. An error budget fails the first N
// fetches.
type priceScript struct {
	warmPrice float64
	livePrice float64
	switchAt  time.Time
	failFirst int32

	calls atomic.Int32
}

func (p *priceScript) Snapshot(_ context.Context, _ string) (*token.PriceSnapshot, error) {
	n := p.calls.Add(1)
	if n <= p.failFirst {
		return nil, errors.New("dexscreener: transient failure")
	}
	price := p.warmPrice
	if time.Now().After(p.switchAt) {
		price = p.livePrice
	}
	return &token.PriceSnapshot{
		Timestamp: time.Now(),
		Price:     price,
		BuyVolume: 100,
		Buyers:    10,
		Sellers:   2,
		MarketCap: price * 1_000_000,
	}, nil
}

func testConfig() Config {
	return Config{
		Warmup:   40 * time.Millisecond,
		Deadline: 400 * time.Millisecond,
		Interval: 5 * time.Millisecond,
	}
}

// cleanReport passes the secondary checks: a modest holder spread and
// a single allow-listed warning.
func cleanReport() *token.RiskReport {
	return &token.RiskReport{
		Risks: []token.RiskFlag{{
			Name:        "Copycat token",
			Description: "This token is using a verified tokens symbol",
			Level:       "warn",
		}},
		TopHolders: []token.HolderEntry{
			{Address: "h1", Pct: 5},
			{Address: "h2", Pct: 4},
			{Address: "h3", Pct: 3},
			{Address: "h4", Pct: 2},
			{Address: "h5", Pct: 1},
		},
	}
}

// seededCoin carries enough history for the 20-period window before
// the watcher starts.
func seededCoin(mem *store.Memory, price float64) *token.CoinRecord {
	added := time.Now()
	coin := &token.CoinRecord{
		Mint:    "mint1",
		AddedAt: added,
		Report:  cleanReport(),
	}
	for i := 0; i < 24; i++ {
		snap := token.PriceSnapshot{
			Timestamp: added.Add(time.Duration(i-24) * time.Second),
			Price:     price,
			MarketCap: price * 1_000_000,
		}
		if i == 0 {
			coin.Initial = &snap
		}
		coin.History = append(coin.History, snap)
	}
	_ = mem.Save(context.Background(), store.KindCoins, coin.Mint, coin)
	return coin
}

func newWatcher(t *testing.T, cfg Config, coin *token.CoinRecord, mem *store.Memory, fetcher SnapshotFetcher) *Watcher {
	t.Helper()
	logger := zap.NewNop()
	evaluator := criteria.NewEvaluator(
		criteria.NewBollingerPolicy(logger),
		criteria.NewSecondaryChecks(criteria.DefaultAllowlist(), logger),
		store.NewCounters(mem, logger),
		logger,
	)
	w, err := NewWatcher(cfg, coin, fetcher, evaluator, mem, logger)
	require.NoError(t, err)
	return w
}

func storedCoinExists(t *testing.T, mem *store.Memory, mint string) bool {
	t.Helper()
	found, err := mem.Load(context.Background(), store.KindCoins, mint, &token.CoinRecord{})
	require.NoError(t, err)
	return found
}

func TestWatcherRejectsOnBearishClose(t *testing.T) {
	mem := store.NewMemory()
	cfg := testConfig()
	coin := seededCoin(mem, 1.0)

	fetcher := &priceScript{
		warmPrice: 1.0,
		livePrice: 0.2,
		switchAt:  coin.AddedAt.Add(cfg.Warmup),
	}

	w := newWatcher(t, cfg, coin, mem, fetcher)
	result, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Rejected, result.State)
	assert.True(t, result.State.Terminal())
	assert.Less(t, result.Elapsed, cfg.Deadline)
	assert.False(t, storedCoinExists(t, mem, "mint1"), "rejected record must be removed")
	assert.False(t, result.Coin.Posted)
}

func TestWatcherQualifiesOnBreakout(t *testing.T) {
	mem := store.NewMemory()
	cfg := testConfig()
	coin := seededCoin(mem, 1.0)

	fetcher := &priceScript{
		warmPrice: 1.0,
		livePrice: 2.0,
		switchAt:  coin.AddedAt.Add(cfg.Warmup),
	}

	w := newWatcher(t, cfg, coin, mem, fetcher)
	result, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Qualified, result.State)
	assert.True(t, result.Coin.Posted)
	require.NotNil(t, result.Snapshot)
	assert.Equal(t, 2.0, result.Snapshot.Price)
	assert.False(t, storedCoinExists(t, mem, "mint1"), "qualified record must be removed")

	// Appended snapshots carry the coin's audit risks even though the
	// fetcher itself knows nothing about them.
	assert.Equal(t, coin.Report.Risks, result.Snapshot.Risks)
	latest := result.Coin.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, coin.Report.Risks, latest.Risks)
}

func TestWatcherExpiresWhenUndecided(t *testing.T) {
	mem := store.NewMemory()
	cfg := testConfig()
	coin := seededCoin(mem, 1.0)

	// A flat series never breaks out of the band.
	fetcher := &priceScript{warmPrice: 1.0, livePrice: 1.0, switchAt: coin.AddedAt}

	w := newWatcher(t, cfg, coin, mem, fetcher)
	result, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Expired, result.State)
	assert.GreaterOrEqual(t, result.Elapsed, cfg.Deadline)
	assert.Nil(t, result.Snapshot)
	assert.False(t, storedCoinExists(t, mem, "mint1"), "expired record must be removed")
}

func TestWatcherSkipsFailedFetches(t *testing.T) {
	mem := store.NewMemory()
	cfg := testConfig()
	coin := seededCoin(mem, 1.0)
	seeded := len(coin.History)

	fetcher := &priceScript{
		warmPrice: 1.0,
		livePrice: 2.0,
		switchAt:  coin.AddedAt.Add(cfg.Warmup),
		failFirst: 3,
	}

	w := newWatcher(t, cfg, coin, mem, fetcher)
	result, err := w.Run(context.Background())
	require.NoError(t, err)

	// Failed ticks neither transition nor append history.
	assert.Equal(t, Qualified, result.State)
	appended := len(result.Coin.History) - seeded
	assert.Equal(t, int(fetcher.calls.Load())-3, appended)
}

func TestWatcherStopsOnCancel(t *testing.T) {
	mem := store.NewMemory()
	coin := seededCoin(mem, 1.0)
	fetcher := &priceScript{warmPrice: 1.0, livePrice: 1.0, switchAt: coin.AddedAt}

	ctx, cancel := context.WithCancel(context.Background())
	w := newWatcher(t, testConfig(), coin, mem, fetcher)

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := w.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	// Cancellation is not a terminal transition: the record survives.
	assert.True(t, storedCoinExists(t, mem, "mint1"))
}

func TestWatcherConfigValidation(t *testing.T) {
	mem := store.NewMemory()
	coin := seededCoin(mem, 1.0)
	logger := zap.NewNop()
	evaluator := criteria.NewEvaluator(
		criteria.NewBollingerPolicy(logger),
		criteria.NewSecondaryChecks(criteria.DefaultAllowlist(), logger),
		store.NewCounters(mem, logger),
		logger,
	)

	bad := []Config{
		{Warmup: time.Minute, Deadline: time.Minute, Interval: time.Second},
		{Warmup: -time.Second, Deadline: time.Minute, Interval: time.Second},
		{Warmup: time.Second, Deadline: time.Minute, Interval: 0},
	}
	for _, cfg := range bad {
		_, err := NewWatcher(cfg, coin, &priceScript{}, evaluator, mem, logger)
		assert.Error(t, err, "config %+v", cfg)
	}

	_, err := NewWatcher(DefaultConfig(), nil, &priceScript{}, evaluator, mem, logger)
	assert.Error(t, err)
}
