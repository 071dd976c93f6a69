// Package trades reconstructs realized round-trip trades from the execution
// history by FIFO lot matching and persists each day's slice of them.
package trades

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot is an open inventory unit for one instrument. Long lots have a positive
// quantity; the fallback for an unmatched sell opens a negative lot.
type Lot struct {
	InstrumentID string          `json:"instrument_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	OpenedAt     time.Time       `json:"opened_at"`
	Fees         decimal.Decimal `json:"fees"`
}

// RealizedTrade is one matched round trip. A sell that consumes several lots
// yields one trade per lot, numbered by MatchSeq.
type RealizedTrade struct {
	AccountID       int64           `json:"account_id"`
	ExitExecutionID string          `json:"exit_execution_id"`
	MatchSeq        int             `json:"match_seq"`
	InstrumentID    string          `json:"instrument_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	EntryPrice      decimal.Decimal `json:"entry_price"`
	EntryTime       time.Time       `json:"entry_time"`
	ExitPrice       decimal.Decimal `json:"exit_price"`
	ExitTime        time.Time       `json:"exit_time"`
	Fees            decimal.Decimal `json:"fees"`
	GrossPnL        decimal.Decimal `json:"gross_pnl"`
	NetPnL          decimal.Decimal `json:"net_pnl"`
	// RiskMultiple is reserved for a risk-adjusted return; nothing computes it yet.
	RiskMultiple *decimal.Decimal `json:"risk_multiple"`
}

// IsWin reports a strictly positive net result.
func (t RealizedTrade) IsWin() bool {
	return t.NetPnL.IsPositive()
}

// IsLoss reports a strictly negative net result.
func (t RealizedTrade) IsLoss() bool {
	return t.NetPnL.IsNegative()
}
