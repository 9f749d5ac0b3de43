// internal/criteria/growth.go
package criteria

import (
	"context"
	"time"

	"go.uber.org/zap"

	"kothwatch/internal/token"
)

// Failure counter names for the growth-rate policy.
const (
	CounterGrowthRate       = "MarketCapGrowth"
	CounterGrowthBuyVolume  = "BuyVolumeGrowth"
	CounterGrowthBuyerCount = "BuyerCount"
	CounterGrowthSellRatio  = "SellerBuyerRatio"
	CounterGrowthBadData    = "GrowthDataMalformed"
)

const (
	minGrowthPerMinutePct = 0.5
	minBuyVolumeRatio     = 1.05
	minRecentBuyers       = 3
	maxSellerBuyerRatio   = 0.85
)

// GrowthPolicy qualifies a coin on market-cap acceleration: growth of
// at least 0.5%/minute since the initial snapshot, buy volume up 5%,
// at least 3 recent buyers, and a seller/buyer ratio under 0.85. All
// four sub-checks are evaluated on every call so each failing
// dimension is counted separately; a single failure votes Reject.
type GrowthPolicy struct {
	logger *zap.Logger
}

// NewGrowthPolicy creates the market-cap-growth policy.
func NewGrowthPolicy(logger *zap.Logger) *GrowthPolicy {
	return &GrowthPolicy{logger: logger.Named("growth")}
}

func (p *GrowthPolicy) Name() string { return PolicyGrowth }

func (p *GrowthPolicy) Evaluate(ctx context.Context, coin *token.CoinRecord, now time.Time, counters CounterSink) Verdict {
	initial := coin.Initial
	current := coin.Latest()
	elapsedMin := coin.Elapsed(now).Minutes()

	// Malformed inputs are a stronger negative signal than missing
	// history: the evaluation hard-fails instead of staying undecided.
	// A non-positive initial buy volume is a broken denominator, the
	// same class as a non-positive initial market cap.
	if initial == nil || current == nil || initial.MarketCap <= 0 ||
		initial.BuyVolume <= 0 || elapsedMin <= 0 {
		counters.Inc(ctx, CounterGrowthBadData)
		p.logger.Debug("Growth evaluation rejected on malformed data",
			zap.String("mint", coin.Mint),
			zap.Bool("has_initial", initial != nil),
			zap.Bool("has_current", current != nil))
		return Reject
	}

	pass := true

	growthPct := (current.MarketCap - initial.MarketCap) / initial.MarketCap * 100
	perMinute := growthPct / elapsedMin
	if perMinute < minGrowthPerMinutePct {
		counters.Inc(ctx, CounterGrowthRate)
		pass = false
	}

	if current.BuyVolume < minBuyVolumeRatio*initial.BuyVolume {
		counters.Inc(ctx, CounterGrowthBuyVolume)
		pass = false
	}

	if current.Buyers < minRecentBuyers {
		counters.Inc(ctx, CounterGrowthBuyerCount)
		pass = false
	}

	if current.Buyers <= 0 || float64(current.Sellers)/float64(current.Buyers) >= maxSellerBuyerRatio {
		counters.Inc(ctx, CounterGrowthSellRatio)
		pass = false
	}

	if !pass {
		return Reject
	}

	p.logger.Debug("Growth criteria satisfied",
		zap.String("mint", coin.Mint),
		zap.Float64("growth_per_minute_pct", perMinute),
		zap.Int("buyers", current.Buyers),
		zap.Int("sellers", current.Sellers))
	return Qualify
}
