package paper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kothwatch/internal/store"
	"kothwatch/internal/token"
)

type step struct {
	snap *token.PriceSnapshot
	err  error
}

// scriptFetcher replays a fixed sequence of fetch results, repeating
// the last step once exhausted.
type scriptFetcher struct {
	mu    sync.Mutex
	steps []step
	idx   int
}

func (f *scriptFetcher) Snapshot(context.Context, string) (*token.PriceSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.steps) == 0 {
		return nil, errors.New("no script")
	}
	s := f.steps[f.idx]
	if f.idx < len(f.steps)-1 {
		f.idx++
	}
	return s.snap, s.err
}

func snapAt(price, marketCap float64) *token.PriceSnapshot {
	return &token.PriceSnapshot{Timestamp: time.Now(), Price: price, MarketCap: marketCap}
}

func testSimulator(t *testing.T, fetcher SnapshotFetcher, mem *store.Memory) *Simulator {
	t.Helper()
	cfg := Config{
		StartingBalance: 1000,
		HoldLimit:       200 * time.Millisecond,
		Interval:        5 * time.Millisecond,
	}
	sim, err := NewSimulator(cfg, fetcher, mem, zap.NewNop())
	require.NoError(t, err)
	return sim
}

func TestPeakPriceRatchet(t *testing.T) {
	pos := NewPosition("mint1", 1.0, 100, time.Now())
	assert.Equal(t, 1.0, pos.PeakPrice)

	pos.Observe(1.4)
	assert.Equal(t, 1.4, pos.PeakPrice)

	pos.Observe(0.7)
	assert.Equal(t, 1.4, pos.PeakPrice, "peak never goes down")
}

func TestExitRulePriority(t *testing.T) {
	now := time.Now()
	pos := NewPosition("mint1", 1.0, 100, now.Add(-time.Hour))

	// A price that satisfies both the stop loss and the expired hold
	// limit resolves to the stop loss.
	outcome, done := pos.ExitOutcome(0.90, now, 10*time.Minute)
	require.True(t, done)
	assert.Equal(t, OutcomeStopLoss, outcome)

	outcome, done = pos.ExitOutcome(1.50, now, 10*time.Minute)
	require.True(t, done)
	assert.Equal(t, OutcomeTakeProfit, outcome)

	outcome, done = pos.ExitOutcome(1.2, now, 10*time.Minute)
	require.True(t, done)
	assert.Equal(t, OutcomeMarketExit, outcome)

	fresh := NewPosition("mint1", 1.0, 100, now)
	_, done = fresh.ExitOutcome(1.2, now, 10*time.Minute)
	assert.False(t, done)
}

// A stop-loss exit with the market cap up 60% still books as a win:
// the win rule looks at market cap, not at the exit rule.
func TestStopLossExitCanBeALedgerWin(t *testing.T) {
	pos := NewPosition("mint1", 1.0, 100, time.Now())
	pos.Close(0.88, 160, time.Now(), OutcomeStopLoss)

	ledger := NewLedger(1000)
	trade := ledger.Settle(pos)

	assert.Equal(t, OutcomeStopLoss, trade.Outcome)
	assert.True(t, trade.Win)
	assert.InDelta(t, 0.6, trade.Return, 1e-9)
	assert.InDelta(t, 60.0, trade.Profit, 1e-9) // 10% stake of 1000
	assert.InDelta(t, 1060.0, ledger.Balance, 1e-9)
	assert.Equal(t, 1, ledger.Wins)
	assert.Equal(t, 0, ledger.Losses)
	assert.InDelta(t, 100.0, ledger.Winrate, 1e-9)
}

// The mirror case: a take-profit exit whose market cap only grew 20%
// books as a loss even though the trade made money.
func TestTakeProfitExitCanBeALedgerLoss(t *testing.T) {
	pos := NewPosition("mint1", 1.0, 100, time.Now())
	pos.Close(1.55, 120, time.Now(), OutcomeTakeProfit)

	ledger := NewLedger(1000)
	trade := ledger.Settle(pos)

	assert.Equal(t, OutcomeTakeProfit, trade.Outcome)
	assert.False(t, trade.Win)
	assert.InDelta(t, 0.2, trade.Return, 1e-9)
	assert.InDelta(t, 1020.0, ledger.Balance, 1e-9)
	assert.Equal(t, 0, ledger.Wins)
	assert.Equal(t, 1, ledger.Losses)
	assert.Zero(t, ledger.Winrate)
}

func TestLedgerCountersStayConsistent(t *testing.T) {
	ledger := NewLedger(1000)

	win := NewPosition("m1", 1.0, 100, time.Now())
	win.Close(1.6, 170, time.Now(), OutcomeTakeProfit)
	loss := NewPosition("m2", 1.0, 100, time.Now())
	loss.Close(0.8, 80, time.Now(), OutcomeStopLoss)

	ledger.Settle(win)
	ledger.Settle(loss)

	assert.Equal(t, ledger.Wins+ledger.Losses, ledger.TotalTrades)
	assert.InDelta(t, 50.0, ledger.Winrate, 1e-9)
	assert.Equal(t, "m2", ledger.LastTrade.Mint)
}

// Settling nothing leaves the persisted ledger byte-for-byte alone.
func TestLedgerUntouchedWithoutTrades(t *testing.T) {
	mem := store.NewMemory()
	sim := testSimulator(t, &scriptFetcher{}, mem)
	ctx := context.Background()

	before, err := sim.Ledger(ctx)
	require.NoError(t, err)
	after, err := sim.Ledger(ctx)
	require.NoError(t, err)

	assert.Equal(t, before, after)
	assert.InDelta(t, 1000.0, after.Balance, 1e-9)
	assert.Zero(t, after.TotalTrades)
	assert.Zero(t, after.Winrate)
}

func TestOpenPrefersRefetchedSnapshot(t *testing.T) {
	mem := store.NewMemory()
	fetcher := &scriptFetcher{steps: []step{{snap: snapAt(1.1, 110)}}}
	sim := testSimulator(t, fetcher, mem)

	pos, err := sim.Open(context.Background(), "mint1", snapAt(1.0, 100))
	require.NoError(t, err)

	assert.Equal(t, 1.1, pos.EntryPrice)
	assert.Equal(t, 110.0, pos.EntryMarketCap)
	assert.Equal(t, StatusOpen, pos.Status)

	var stored Position
	found, err := mem.Load(context.Background(), store.KindPositions, "mint1", &stored)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, pos.EntryPrice, stored.EntryPrice)
}

func TestOpenFallsBackWhenRefetchFails(t *testing.T) {
	mem := store.NewMemory()
	fetcher := &scriptFetcher{steps: []step{{err: errors.New("down")}}}
	sim := testSimulator(t, fetcher, mem)

	pos, err := sim.Open(context.Background(), "mint1", snapAt(1.0, 100))
	require.NoError(t, err)
	assert.Equal(t, 1.0, pos.EntryPrice)

	_, err = sim.Open(context.Background(), "mint2", nil)
	assert.Error(t, err, "no snapshot from either source")
}

func TestOpenIsIdempotentPerMint(t *testing.T) {
	mem := store.NewMemory()
	fetcher := &scriptFetcher{steps: []step{{snap: snapAt(1.0, 100)}, {snap: snapAt(9.9, 999)}}}
	sim := testSimulator(t, fetcher, mem)

	first, err := sim.Open(context.Background(), "mint1", nil)
	require.NoError(t, err)

	second, err := sim.Open(context.Background(), "mint1", nil)
	require.NoError(t, err)

	assert.Equal(t, first.EntryPrice, second.EntryPrice, "second open returns the stored position")
}

func TestTrackClosesOnStopLoss(t *testing.T) {
	mem := store.NewMemory()
	fetcher := &scriptFetcher{steps: []step{
		{snap: snapAt(1.0, 100)}, // entry refetch
		{snap: snapAt(1.2, 140)},
		{snap: snapAt(0.85, 160)},
	}}
	sim := testSimulator(t, fetcher, mem)
	ctx := context.Background()

	pos, err := sim.Open(ctx, "mint1", nil)
	require.NoError(t, err)

	trade, err := sim.Track(ctx, pos)
	require.NoError(t, err)

	assert.Equal(t, OutcomeStopLoss, trade.Outcome)
	assert.True(t, trade.Win, "market cap 1.6x entry wins despite the stop")
	assert.Equal(t, 1.2, pos.PeakPrice)
	assert.Equal(t, StatusClosed, pos.Status)
	assert.Equal(t, 0.85, pos.ExitPrice)
	assert.Equal(t, 160.0, pos.ExitMarketCap)
	assert.Greater(t, pos.DurationMinutes, 0.0)

	var stored Position
	found, err := mem.Load(ctx, store.KindPositions, "mint1", &stored)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StatusClosed, stored.Status)

	ledger, err := sim.Ledger(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.TotalTrades)
	assert.InDelta(t, 1060.0, ledger.Balance, 1e-9)
}

func TestTrackTimeExitSurvivesDeadFeed(t *testing.T) {
	mem := store.NewMemory()
	fetcher := &scriptFetcher{steps: []step{
		{snap: snapAt(1.0, 100)}, // entry refetch
		{err: errors.New("feed down")},
	}}
	sim := testSimulator(t, fetcher, mem)
	sim.cfg.HoldLimit = 40 * time.Millisecond
	ctx := context.Background()

	pos, err := sim.Open(ctx, "mint1", nil)
	require.NoError(t, err)

	trade, err := sim.Track(ctx, pos)
	require.NoError(t, err)

	// Closed at the last observed values, which are the entry values.
	assert.Equal(t, OutcomeMarketExit, trade.Outcome)
	assert.Zero(t, trade.Return)
	assert.False(t, trade.Win)

	ledger, err := sim.Ledger(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, ledger.Balance, 1e-9)
	assert.Equal(t, 1, ledger.Losses)
}

func TestTrackStopsOnCancel(t *testing.T) {
	mem := store.NewMemory()
	fetcher := &scriptFetcher{steps: []step{{snap: snapAt(1.0, 100)}, {snap: snapAt(1.1, 110)}}}
	sim := testSimulator(t, fetcher, mem)

	pos, err := sim.Open(context.Background(), "mint1", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err = sim.Track(ctx, pos)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusOpen, pos.Status, "cancellation does not close the position")
}

func TestResumeReturnsOpenPositionsOnly(t *testing.T) {
	mem := store.NewMemory()
	sim := testSimulator(t, &scriptFetcher{}, mem)
	ctx := context.Background()

	open := NewPosition("m-open", 1.0, 100, time.Now())
	closed := NewPosition("m-closed", 1.0, 100, time.Now())
	closed.Close(1.6, 160, time.Now(), OutcomeTakeProfit)
	require.NoError(t, mem.Save(ctx, store.KindPositions, open.Mint, open))
	require.NoError(t, mem.Save(ctx, store.KindPositions, closed.Mint, closed))

	got, err := sim.Resume(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m-open", got[0].Mint)
}
