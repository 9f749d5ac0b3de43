// internal/token/types.go
package token

import (
	"fmt"
	"time"
)

// RiskFlag is a single warning from the third-party audit report.
type RiskFlag struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Level       string `json:"level"`
}

// HolderEntry describes one entry of the top-holders list.
type HolderEntry struct {
	Address string  `json:"address"`
	Pct     float64 `json:"pct"`
	Insider bool    `json:"insider"`
}

// RiskReport is the normalized audit report for a mint.
// An empty report (no risks, no holders, no creator) is the degraded
// result when the audit service is unreachable or unauthenticated.
type RiskReport struct {
	Risks      []RiskFlag    `json:"risks"`
	TopHolders []HolderEntry `json:"topHolders"`
	Creator    string        `json:"creator,omitempty"`
}

// PriceSnapshot is one observation of a coin's market state.
// Immutable once recorded.
type PriceSnapshot struct {
	Timestamp  time.Time  `json:"timestamp"`
	Price      float64    `json:"price"`
	BuyVolume  float64    `json:"buy_volume"`
	SellVolume float64    `json:"sell_volume"`
	Buyers     int        `json:"buyers"`
	Sellers    int        `json:"sellers"`
	MarketCap  float64    `json:"market_cap"`
	Risks      []RiskFlag `json:"risks,omitempty"`
}

// CoinRecord is the unit of state tracked per discovered mint.
// Created once per mint, mutated by snapshot appends and lifecycle
// transitions, removed from storage on a terminal transition.
type CoinRecord struct {
	Mint    string          `json:"mint"`
	Name    string          `json:"name,omitempty"`
	Symbol  string          `json:"symbol,omitempty"`
	AddedAt time.Time       `json:"timestamp_added"`
	Initial *PriceSnapshot  `json:"initial_performance,omitempty"`
	History []PriceSnapshot `json:"price_history"`
	Report  *RiskReport     `json:"rugcheck_report,omitempty"`
	Posted  bool            `json:"posted"`
}

// AppendSnapshot appends a snapshot to the coin's history.
// History is append-only and must stay ordered by timestamp.
func (c *CoinRecord) AppendSnapshot(snap PriceSnapshot) error {
	if n := len(c.History); n > 0 && snap.Timestamp.Before(c.History[n-1].Timestamp) {
		return fmt.Errorf("snapshot timestamp %s precedes last recorded %s",
			snap.Timestamp.Format(time.RFC3339Nano),
			c.History[n-1].Timestamp.Format(time.RFC3339Nano))
	}
	c.History = append(c.History, snap)
	return nil
}

// Latest returns the most recent snapshot, or nil if none were recorded.
func (c *CoinRecord) Latest() *PriceSnapshot {
	if len(c.History) == 0 {
		return nil
	}
	return &c.History[len(c.History)-1]
}

// Prices returns the recorded price series in observation order.
func (c *CoinRecord) Prices() []float64 {
	prices := make([]float64, len(c.History))
	for i, snap := range c.History {
		prices[i] = snap.Price
	}
	return prices
}

// Elapsed returns how long the coin has been tracked as of now.
func (c *CoinRecord) Elapsed(now time.Time) time.Duration {
	return now.Sub(c.AddedAt)
}

// FormatMarketCap renders a market cap with thousands separators,
// matching the alert format of the original bot.
func FormatMarketCap(marketCap float64) string {
	s := fmt.Sprintf("%.2f", marketCap)
	dot := len(s) - 3
	intPart := s[:dot]
	neg := false
	if len(intPart) > 0 && intPart[0] == '-' {
		neg = true
		intPart = intPart[1:]
	}
	var out []byte
	for i, ch := range []byte(intPart) {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, ch)
	}
	if neg {
		return "-" + string(out) + s[dot:]
	}
	return string(out) + s[dot:]
}
