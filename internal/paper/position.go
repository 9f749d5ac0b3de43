// internal/paper/position.go
package paper

import (
	"time"
)

// Status of a simulated position.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Outcome names the exit rule that closed a position.
type Outcome string

const (
	OutcomeStopLoss   Outcome = "Stop Loss"
	OutcomeTakeProfit Outcome = "Take Profit"
	OutcomeMarketExit Outcome = "Market Exit"
)

// Exit thresholds relative to the entry price, and the ledger win
// threshold relative to the entry market cap.
const (
	StopLossRatio    = 0.90
	TakeProfitRatio  = 1.50
	WinRatio         = 1.5
	PositionFraction = 0.10
)

// Position is a paper trade opened when a coin qualifies. Exactly one
// position exists per mint; it is mutated only by the peak-price
// ratchet while open and finalized exactly once.
type Position struct {
	Mint           string    `json:"mint"`
	EntryPrice     float64   `json:"entry_price"`
	EntryMarketCap float64   `json:"entry_market_cap"`
	PeakPrice      float64   `json:"peak_price"`
	AlertTime      time.Time `json:"alert_time"`
	Status         Status    `json:"status"`

	ExitPrice       float64   `json:"exit_price,omitempty"`
	ExitMarketCap   float64   `json:"exit_market_cap,omitempty"`
	ExitTime        time.Time `json:"exit_time,omitempty"`
	Outcome         Outcome   `json:"outcome,omitempty"`
	DurationMinutes float64   `json:"duration_minutes,omitempty"`
}

// NewPosition opens a position at the given entry snapshot values.
func NewPosition(mint string, entryPrice, entryMarketCap float64, alertTime time.Time) *Position {
	return &Position{
		Mint:           mint,
		EntryPrice:     entryPrice,
		EntryMarketCap: entryMarketCap,
		PeakPrice:      entryPrice,
		AlertTime:      alertTime,
		Status:         StatusOpen,
	}
}

// Observe ratchets the peak price. It never lowers it.
func (p *Position) Observe(price float64) {
	if price > p.PeakPrice {
		p.PeakPrice = price
	}
}

// ExitOutcome evaluates the exit rules in priority order against the
// current price and clock. First match wins: stop loss, then take
// profit, then the hold-time wall.
func (p *Position) ExitOutcome(price float64, now time.Time, holdLimit time.Duration) (Outcome, bool) {
	switch {
	case price <= p.EntryPrice*StopLossRatio:
		return OutcomeStopLoss, true
	case price >= p.EntryPrice*TakeProfitRatio:
		return OutcomeTakeProfit, true
	case now.Sub(p.AlertTime) >= holdLimit:
		return OutcomeMarketExit, true
	}
	return "", false
}

// Close finalizes the position. Closing an already-closed position is
// a no-op so the settlement path stays exactly-once.
func (p *Position) Close(price, marketCap float64, now time.Time, outcome Outcome) bool {
	if p.Status == StatusClosed {
		return false
	}
	p.Status = StatusClosed
	p.ExitPrice = price
	p.ExitMarketCap = marketCap
	p.ExitTime = now
	p.Outcome = outcome
	p.DurationMinutes = now.Sub(p.AlertTime).Minutes()
	return true
}
