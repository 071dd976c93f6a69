// Package aggregates rebuilds the day-scoped derived records of an account:
// the equity and drawdown point, the trade summary and the risk-flag placeholder.
package aggregates

import (
	"github.com/aristath/eodledger/internal/modules/trades"
	"github.com/aristath/eodledger/internal/utils"
	"github.com/shopspring/decimal"
)

// EquityPoint is one day of the equity curve.
type EquityPoint struct {
	AccountID int64           `json:"account_id"`
	Date      utils.Date      `json:"date"`
	Equity    decimal.Decimal `json:"equity"`
	Peak      float64         `json:"peak"`
	Drawdown  float64         `json:"drawdown"`
}

// DailySummary aggregates the realized trades that exited on one day.
type DailySummary struct {
	AccountID    int64                  `json:"account_id"`
	Date         utils.Date             `json:"date"`
	Trades       []trades.RealizedTrade `json:"trades"`
	TradeCount   int                    `json:"trade_count"`
	PnLSum       decimal.Decimal        `json:"pnl_sum"`
	AvgStatistic *float64               `json:"avg_statistic"`
	WinCount     int                    `json:"win_count"`
	LossCount    int                    `json:"loss_count"`
	WinRate      float64                `json:"win_rate"`
}

// RiskFlags is the per-day flag record. Nothing populates the list yet.
type RiskFlags struct {
	AccountID int64      `json:"account_id"`
	Date      utils.Date `json:"date"`
	Flags     []string   `json:"flags"`
	CreatedAt int64      `json:"created_at"`
}

// Result reports what one rebuild produced.
type Result struct {
	Equity           *EquityPoint
	Summary          DailySummary
	RiskFlagsCreated bool
}
