// internal/criteria/bollinger.go
package criteria

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"kothwatch/internal/token"
)

// Failure counter names for the volatility-breakout policy.
const (
	CounterBollingerNotEnoughData = "BollingerBands_NotEnoughData"
	CounterBollingerBearish       = "BollingerBands_Bearish"
	CounterBollingerNoBreakout    = "BollingerBands_NoBreakout"
)

const (
	bollingerWindow     = 20
	bollingerMultiplier = 2.0
)

// BollingerPolicy qualifies a coin when its latest price closes above
// the upper Bollinger band (20-period mean, 2x population standard
// deviation) and rejects it terminally when it closes below the lower
// band.
type BollingerPolicy struct {
	window     int
	multiplier float64
	logger     *zap.Logger
}

// NewBollingerPolicy creates the volatility-breakout policy with the
// standard 20-period, 2-sigma construction.
func NewBollingerPolicy(logger *zap.Logger) *BollingerPolicy {
	return &BollingerPolicy{
		window:     bollingerWindow,
		multiplier: bollingerMultiplier,
		logger:     logger.Named("bollinger"),
	}
}

func (p *BollingerPolicy) Name() string { return PolicyBollinger }

func (p *BollingerPolicy) Evaluate(ctx context.Context, coin *token.CoinRecord, _ time.Time, counters CounterSink) Verdict {
	prices := coin.Prices()
	if len(prices) < p.window {
		counters.Inc(ctx, CounterBollingerNotEnoughData)
		return Undecided
	}

	upper, lower := p.bands(prices)
	current := prices[len(prices)-1]

	switch {
	case current > upper:
		p.logger.Debug("Bullish breakout above upper band",
			zap.String("mint", coin.Mint),
			zap.Float64("price", current),
			zap.Float64("upper", upper))
		return Qualify
	case current < lower:
		counters.Inc(ctx, CounterBollingerBearish)
		p.logger.Debug("Close below lower band",
			zap.String("mint", coin.Mint),
			zap.Float64("price", current),
			zap.Float64("lower", lower))
		return Reject
	default:
		counters.Inc(ctx, CounterBollingerNoBreakout)
		return Undecided
	}
}

// bands computes the upper and lower Bollinger bands over the trailing
// window: mean +/- multiplier * population standard deviation.
func (p *BollingerPolicy) bands(prices []float64) (upper, lower float64) {
	tail := prices[len(prices)-p.window:]

	var sum float64
	for _, v := range tail {
		sum += v
	}
	mean := sum / float64(p.window)

	var variance float64
	for _, v := range tail {
		d := v - mean
		variance += d * d
	}
	sigma := math.Sqrt(variance / float64(p.window))

	return mean + p.multiplier*sigma, mean - p.multiplier*sigma
}
