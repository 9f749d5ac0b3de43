// internal/criteria/policy.go
package criteria

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kothwatch/internal/token"
)

// Verdict is the outcome of an entry-policy evaluation.
type Verdict int

const (
	// Undecided means keep observing; not enough evidence either way.
	Undecided Verdict = iota
	// Qualify means the coin shows the qualifying entry pattern.
	Qualify
	// Reject means the coin failed terminally and must be dropped.
	Reject
)

func (v Verdict) String() string {
	switch v {
	case Qualify:
		return "qualify"
	case Reject:
		return "reject"
	default:
		return "undecided"
	}
}

// CounterSink records diagnostic failure counters. Each failing
// dimension is incremented exactly once per evaluation call.
type CounterSink interface {
	Inc(ctx context.Context, name string)
}

// EntryPolicy decides whether a coin's accumulated snapshots show a
// qualifying entry pattern. Implementations are pure over the coin's
// history except for failure-counter telemetry.
type EntryPolicy interface {
	Name() string
	Evaluate(ctx context.Context, coin *token.CoinRecord, now time.Time, counters CounterSink) Verdict
}

// Policy names accepted by the factory.
const (
	PolicyBollinger = "bollinger"
	PolicyGrowth    = "growth"
)

// NewPolicy constructs an entry policy by name.
func NewPolicy(name string, logger *zap.Logger) (EntryPolicy, error) {
	switch name {
	case PolicyBollinger:
		return NewBollingerPolicy(logger), nil
	case PolicyGrowth:
		return NewGrowthPolicy(logger), nil
	default:
		return nil, fmt.Errorf("unsupported entry policy: %q", name)
	}
}
