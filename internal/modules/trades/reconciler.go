package trades

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/eodledger/internal/modules/extracts"
	"github.com/aristath/eodledger/internal/modules/ledger"
	"github.com/aristath/eodledger/internal/utils"
	"github.com/rs/zerolog"
)

// Reconciler recomputes the realized trades of one account-day from the
// account's full execution history.
type Reconciler struct {
	executions *ledger.ExecutionRepository
	trades     *RealizedTradeRepository
	loc        *time.Location
	log        zerolog.Logger
}

// NewReconciler creates a reconciler over the ledger database. Day windows
// are taken in loc.
func NewReconciler(ledgerDB *sql.DB, loc *time.Location, log zerolog.Logger) *Reconciler {
	if loc == nil {
		loc = time.UTC
	}
	return &Reconciler{
		executions: ledger.NewExecutionRepository(ledgerDB, log),
		trades:     NewRealizedTradeRepository(ledgerDB, log),
		loc:        loc,
		log:        log.With().Str("service", "trade_reconciler").Logger(),
	}
}

// Rebuild replays every execution filled up to the end of date and replaces
// the stored trades exiting on date with the ones the replay produced.
// Trades of earlier days are recomputed in memory but left untouched.
func (r *Reconciler) Rebuild(ctx context.Context, accountID int64, date utils.Date) ([]RealizedTrade, error) {
	window := date.Window(r.loc)

	records, err := r.executions.ListUpTo(ctx, accountID, window.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load executions: %w", err)
	}

	executions := make([]extracts.Execution, len(records))
	for i, rec := range records {
		executions[i] = rec.Execution
	}

	result := Match(accountID, executions)
	dayTrades := InWindow(result.Trades, window)

	if err := r.trades.ReplaceWindow(ctx, accountID, window, dayTrades); err != nil {
		return nil, fmt.Errorf("failed to replace realized trades for %s: %w", date, err)
	}

	r.log.Info().
		Int64("account_id", accountID).
		Str("date", date.String()).
		Int("executions", len(executions)).
		Int("trades_total", len(result.Trades)).
		Int("trades_day", len(dayTrades)).
		Int("open_instruments", len(result.OpenLots)).
		Msg("Realized trades rebuilt")

	return dayTrades, nil
}
