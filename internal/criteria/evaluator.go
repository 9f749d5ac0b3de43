// internal/criteria/evaluator.go
package criteria

import (
	"context"
	"time"

	"go.uber.org/zap"

	"kothwatch/internal/token"
)

// Evaluator combines an entry policy with the shared secondary checks.
//
// The final verdict is Qualify only when the policy says Qualify and
// every secondary check passes. An explicit Reject from the policy is
// terminal regardless of the secondary checks. Everything else stays
// Undecided so the lifecycle keeps observing.
type Evaluator struct {
	policy    EntryPolicy
	secondary *SecondaryChecks
	counters  CounterSink
	logger    *zap.Logger
}

// NewEvaluator wires a policy, the secondary checks, and the counter
// sink into a ready evaluator.
func NewEvaluator(policy EntryPolicy, secondary *SecondaryChecks, counters CounterSink, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		policy:    policy,
		secondary: secondary,
		counters:  counters,
		logger:    logger.Named("evaluator"),
	}
}

// Evaluate produces the verdict for the coin's current state.
func (e *Evaluator) Evaluate(ctx context.Context, coin *token.CoinRecord, now time.Time) Verdict {
	verdict := e.policy.Evaluate(ctx, coin, now, e.counters)

	switch verdict {
	case Reject:
		return Reject
	case Qualify:
		if e.secondary.Pass(ctx, coin.Mint, coin.Report, e.counters) {
			return Qualify
		}
		return Undecided
	default:
		return Undecided
	}
}

// PolicyName reports the active entry policy.
func (e *Evaluator) PolicyName() string {
	return e.policy.Name()
}
