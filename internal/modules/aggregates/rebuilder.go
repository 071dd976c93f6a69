package aggregates

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/eodledger/internal/modules/ledger"
	"github.com/aristath/eodledger/internal/modules/trades"
	"github.com/aristath/eodledger/internal/utils"
	"github.com/rs/zerolog"
)

// Rebuilder recomputes the derived records of one account-day from the
// ledger. Each record is a pure function of ledger data up to that date.
type Rebuilder struct {
	balances  *ledger.BalanceRepository
	trades    *trades.RealizedTradeRepository
	equity    *EquityRepository
	summaries *SummaryRepository
	flags     *RiskFlagRepository
	loc       *time.Location
	log       zerolog.Logger
}

// NewRebuilder creates a rebuilder over the ledger database.
func NewRebuilder(ledgerDB *sql.DB, loc *time.Location, log zerolog.Logger) *Rebuilder {
	if loc == nil {
		loc = time.UTC
	}
	return &Rebuilder{
		balances:  ledger.NewBalanceRepository(ledgerDB, log),
		trades:    trades.NewRealizedTradeRepository(ledgerDB, log),
		equity:    NewEquityRepository(ledgerDB, log),
		summaries: NewSummaryRepository(ledgerDB, log),
		flags:     NewRiskFlagRepository(ledgerDB, log),
		loc:       loc,
		log:       log.With().Str("service", "aggregate_rebuilder").Logger(),
	}
}

// Rebuild recomputes the equity point, the trade summary and the risk-flag
// placeholder for (account, date).
func (r *Rebuilder) Rebuild(ctx context.Context, accountID int64, date utils.Date) (*Result, error) {
	result := &Result{}

	point, err := r.rebuildEquity(ctx, accountID, date)
	if err != nil {
		return nil, err
	}
	result.Equity = point

	summary, err := r.rebuildSummary(ctx, accountID, date)
	if err != nil {
		return nil, err
	}
	result.Summary = summary

	created, err := r.flags.EnsureExists(ctx, accountID, date)
	if err != nil {
		return nil, err
	}
	result.RiskFlagsCreated = created

	return result, nil
}

func (r *Rebuilder) rebuildEquity(ctx context.Context, accountID int64, date utils.Date) (*EquityPoint, error) {
	balance, err := r.balances.GetByDate(ctx, accountID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load balance snapshot: %w", err)
	}
	if balance == nil {
		r.log.Debug().Int64("account_id", accountID).Str("date", date.String()).Msg("No balance snapshot, equity point skipped")
		return nil, nil
	}
	if balance.NetEquity == nil {
		r.log.Warn().Int64("account_id", accountID).Str("date", date.String()).Msg("Balance snapshot has no net equity, equity point skipped")
		return nil, nil
	}

	history, err := r.equity.HistoryBefore(ctx, accountID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load equity history: %w", err)
	}

	peak, drawdown := Drawdown(history, balance.NetEquity.InexactFloat64())
	point := EquityPoint{
		AccountID: accountID,
		Date:      date,
		Equity:    *balance.NetEquity,
		Peak:      peak,
		Drawdown:  drawdown,
	}
	if err := r.equity.Upsert(ctx, point); err != nil {
		return nil, err
	}
	return &point, nil
}

func (r *Rebuilder) rebuildSummary(ctx context.Context, accountID int64, date utils.Date) (DailySummary, error) {
	dayTrades, err := r.trades.ListByExitWindow(ctx, accountID, date.Window(r.loc))
	if err != nil {
		return DailySummary{}, fmt.Errorf("failed to load realized trades: %w", err)
	}

	pnlSum, wins, losses, winRate, avg := Summarize(dayTrades)
	summary := DailySummary{
		AccountID:    accountID,
		Date:         date,
		Trades:       dayTrades,
		TradeCount:   len(dayTrades),
		PnLSum:       pnlSum,
		AvgStatistic: avg,
		WinCount:     wins,
		LossCount:    losses,
		WinRate:      winRate,
	}
	if err := r.summaries.Upsert(ctx, summary); err != nil {
		return DailySummary{}, err
	}
	return summary, nil
}
