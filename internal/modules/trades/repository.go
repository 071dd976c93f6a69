package trades

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/eodledger/internal/database"
	"github.com/aristath/eodledger/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// realizedTradeColumns must match scanRealizedTrade
const realizedTradeColumns = `account_id, exit_execution_id, match_seq, instrument_id, quantity,
	entry_price, entry_time, exit_price, exit_time, fees, gross_pnl, net_pnl, risk_multiple`

// RealizedTradeRepository stores the derived realized_trades set.
type RealizedTradeRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewRealizedTradeRepository creates a new realized trade repository
func NewRealizedTradeRepository(ledgerDB *sql.DB, log zerolog.Logger) *RealizedTradeRepository {
	return &RealizedTradeRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "realized_trades").Logger(),
	}
}

// ReplaceWindow atomically deletes every stored trade of the account whose
// exit falls in window and inserts trades in their place.
func (r *RealizedTradeRepository) ReplaceWindow(ctx context.Context, accountID int64, window utils.DayWindow, trades []RealizedTrade) error {
	var affected int64
	done := utils.MeasureDBQuery("realized_trades.replace_window", r.log)
	defer func() { done(affected) }()

	return database.WithTransaction(ctx, r.ledgerDB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM realized_trades WHERE account_id = ? AND exit_time BETWEEN ? AND ?",
			accountID, window.StartUnix(), window.EndUnix(),
		)
		if err != nil {
			return fmt.Errorf("failed to delete realized trades: %w", err)
		}
		deleted, _ := res.RowsAffected()

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO realized_trades (`+realizedTradeColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare realized trade insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range trades {
			if !window.Contains(t.ExitTime) {
				return fmt.Errorf("trade %s/%d exits at %s, outside %s..%s",
					t.ExitExecutionID, t.MatchSeq, t.ExitTime, window.Start, window.End)
			}
			var risk sql.NullString
			if t.RiskMultiple != nil {
				risk = sql.NullString{String: t.RiskMultiple.String(), Valid: true}
			}
			_, err := stmt.ExecContext(ctx,
				accountID,
				t.ExitExecutionID,
				t.MatchSeq,
				t.InstrumentID,
				t.Quantity.String(),
				t.EntryPrice.String(),
				t.EntryTime.Unix(),
				t.ExitPrice.String(),
				t.ExitTime.Unix(),
				t.Fees.String(),
				t.GrossPnL.String(),
				t.NetPnL.String(),
				risk,
			)
			if err != nil {
				return fmt.Errorf("failed to insert realized trade %s/%d: %w", t.ExitExecutionID, t.MatchSeq, err)
			}
		}

		affected = deleted + int64(len(trades))
		r.log.Debug().
			Int64("account_id", accountID).
			Int64("deleted", deleted).
			Int("inserted", len(trades)).
			Msg("Replaced realized trades for day window")
		return nil
	})
}

// ListByExitWindow returns the trades of the account that exited inside window.
func (r *RealizedTradeRepository) ListByExitWindow(ctx context.Context, accountID int64, window utils.DayWindow) ([]RealizedTrade, error) {
	query := `SELECT ` + realizedTradeColumns + `
		FROM realized_trades
		WHERE account_id = ? AND exit_time BETWEEN ? AND ?
		ORDER BY exit_time ASC, exit_execution_id ASC, match_seq ASC`

	rows, err := r.ledgerDB.QueryContext(ctx, query, accountID, window.StartUnix(), window.EndUnix())
	if err != nil {
		return nil, fmt.Errorf("failed to query realized trades: %w", err)
	}
	defer rows.Close()

	trades := make([]RealizedTrade, 0)
	for rows.Next() {
		t, err := scanRealizedTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating realized trades: %w", err)
	}

	return trades, nil
}

func scanRealizedTrade(rows *sql.Rows) (RealizedTrade, error) {
	var t RealizedTrade
	var quantity, entryPrice, exitPrice, fees, gross, net string
	var entryTime, exitTime int64
	var risk sql.NullString

	err := rows.Scan(
		&t.AccountID,
		&t.ExitExecutionID,
		&t.MatchSeq,
		&t.InstrumentID,
		&quantity,
		&entryPrice,
		&entryTime,
		&exitPrice,
		&exitTime,
		&fees,
		&gross,
		&net,
		&risk,
	)
	if err != nil {
		return t, fmt.Errorf("failed to scan realized trade: %w", err)
	}

	t.EntryTime = time.Unix(entryTime, 0).UTC()
	t.ExitTime = time.Unix(exitTime, 0).UTC()

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&t.Quantity, quantity},
		{&t.EntryPrice, entryPrice},
		{&t.ExitPrice, exitPrice},
		{&t.Fees, fees},
		{&t.GrossPnL, gross},
		{&t.NetPnL, net},
	} {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return t, fmt.Errorf("realized trade %s/%d has malformed decimal %q: %w", t.ExitExecutionID, t.MatchSeq, f.src, err)
		}
		*f.dst = d
	}

	if risk.Valid {
		d, err := decimal.NewFromString(risk.String)
		if err != nil {
			return t, fmt.Errorf("realized trade %s/%d has malformed risk multiple: %w", t.ExitExecutionID, t.MatchSeq, err)
		}
		t.RiskMultiple = &d
	}

	return t, nil
}
