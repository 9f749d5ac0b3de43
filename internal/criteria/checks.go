// internal/criteria/checks.go
package criteria

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"kothwatch/internal/token"
)

// Failure counter names for the shared secondary checks.
const (
	CounterRiskAnalysis    = "RiskAnalysis"
	CounterTopHolders      = "TopHolders"
	CounterInsiderHoldings = "InsiderHoldings"
	CounterDevHoldings     = "DevHoldings"
)

// AMMAddress is the automated-market-maker account whose holdings are
// structural and therefore excluded from concentration math.
const AMMAddress = "1AGR5BGaEwgTQpmQmPbAdgqi8jKzFnrsig5FmQRkGdy"

const (
	maxRiskFlags         = 2
	minTopHoldersPct     = 3.0
	maxTopHoldersPct     = 30.0
	topHoldersConsidered = 5
	maxInsiderPct        = 20.0
	maxCreatorPct        = 7.0
)

// SecondaryChecks are the risk, concentration, insider, and creator
// checks applied under either entry policy before a Qualify verdict
// becomes final.
type SecondaryChecks struct {
	allow  Allowlist
	logger *zap.Logger
}

// NewSecondaryChecks creates the shared secondary-check set with the
// given benign-warning allow-list.
func NewSecondaryChecks(allow Allowlist, logger *zap.Logger) *SecondaryChecks {
	return &SecondaryChecks{allow: allow, logger: logger.Named("checks")}
}

// Pass evaluates every check against the report. All checks run on
// every call so each failing dimension is counted exactly once; the
// result is the logical AND.
func (s *SecondaryChecks) Pass(ctx context.Context, mint string, report *token.RiskReport, counters CounterSink) bool {
	if report == nil {
		report = &token.RiskReport{}
	}
	passed := true

	if !s.riskOK(report.Risks) {
		counters.Inc(ctx, CounterRiskAnalysis)
		passed = false
	}
	if !s.concentrationOK(report.TopHolders) {
		counters.Inc(ctx, CounterTopHolders)
		passed = false
	}
	if !s.insiderOK(report.TopHolders) {
		counters.Inc(ctx, CounterInsiderHoldings)
		passed = false
	}
	if !s.creatorOK(report.Creator, report.TopHolders) {
		counters.Inc(ctx, CounterDevHoldings)
		passed = false
	}

	if !passed {
		s.logger.Debug("Secondary checks failed", zap.String("mint", mint))
	}
	return passed
}

// riskOK passes with no flags, with up to two flags that all match the
// allow-list, and fails with three or more flags regardless of content.
func (s *SecondaryChecks) riskOK(risks []token.RiskFlag) bool {
	if len(risks) == 0 {
		return true
	}
	if len(risks) > maxRiskFlags {
		return false
	}
	for _, risk := range risks {
		if !s.allow.Permits(risk) {
			return false
		}
	}
	return true
}

// concentrationOK sums the top-5 holder percentages, excluding the AMM
// account, and requires the sum to lie in [3, 30] inclusive.
func (s *SecondaryChecks) concentrationOK(holders []token.HolderEntry) bool {
	filtered := make([]token.HolderEntry, 0, len(holders))
	for _, h := range holders {
		if h.Address != AMMAddress {
			filtered = append(filtered, h)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Pct > filtered[j].Pct })

	var total float64
	for i, h := range filtered {
		if i >= topHoldersConsidered {
			break
		}
		total += h.Pct
	}
	return total >= minTopHoldersPct && total <= maxTopHoldersPct
}

func (s *SecondaryChecks) insiderOK(holders []token.HolderEntry) bool {
	var insiderPct float64
	for _, h := range holders {
		if h.Insider {
			insiderPct += h.Pct
		}
	}
	return insiderPct <= maxInsiderPct
}

// creatorOK caps the creator's own holding at 7% when the report names
// a creator that appears among the top holders.
func (s *SecondaryChecks) creatorOK(creator string, holders []token.HolderEntry) bool {
	creator = strings.TrimSpace(creator)
	if creator == "" {
		return true
	}
	for _, h := range holders {
		if strings.TrimSpace(h.Address) == creator {
			return h.Pct <= maxCreatorPct
		}
	}
	return true
}
