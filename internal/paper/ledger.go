// internal/paper/ledger.go
package paper

import (
	"time"
)

// Trade summarizes one settled position for the ledger's last-trade
// slot.
type Trade struct {
	Mint     string    `json:"mint"`
	Outcome  Outcome   `json:"outcome"`
	Return   float64   `json:"return"`
	Profit   float64   `json:"profit"`
	Win      bool      `json:"win"`
	ClosedAt time.Time `json:"closed_at"`
}

// Ledger is the process-wide simulation aggregate. It is persisted as
// a singleton and updated by a single read-modify-write per closed
// position.
type Ledger struct {
	Balance     float64 `json:"balance"`
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Winrate     float64 `json:"winrate"`
	LastTrade   *Trade  `json:"last_trade,omitempty"`
}

// NewLedger starts a ledger at the given balance.
func NewLedger(startingBalance float64) *Ledger {
	return &Ledger{Balance: startingBalance}
}

// Settle books a closed position into the ledger. The stake is a fixed
// fraction of the current balance, the return is the market-cap ratio
// over the trade, and a win is an exit market cap at or above WinRatio
// times entry regardless of which exit rule fired.
func (l *Ledger) Settle(pos *Position) Trade {
	var ret float64
	if pos.EntryMarketCap > 0 {
		ret = pos.ExitMarketCap/pos.EntryMarketCap - 1
	}
	size := l.Balance * PositionFraction
	profit := size * ret

	l.Balance += profit
	l.TotalTrades++

	win := pos.EntryMarketCap > 0 && pos.ExitMarketCap >= WinRatio*pos.EntryMarketCap
	if win {
		l.Wins++
	} else {
		l.Losses++
	}
	l.Winrate = float64(l.Wins) / float64(l.TotalTrades) * 100

	trade := Trade{
		Mint:     pos.Mint,
		Outcome:  pos.Outcome,
		Return:   ret,
		Profit:   profit,
		Win:      win,
		ClosedAt: pos.ExitTime,
	}
	l.LastTrade = &trade
	return trade
}
