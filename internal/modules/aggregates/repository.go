package aggregates

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/eodledger/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// EquityRepository stores the daily_equity curve.
type EquityRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewEquityRepository creates a new equity repository
func NewEquityRepository(ledgerDB *sql.DB, log zerolog.Logger) *EquityRepository {
	return &EquityRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "daily_equity").Logger(),
	}
}

// Upsert writes the point for (account, date), replacing any previous one.
func (r *EquityRepository) Upsert(ctx context.Context, p EquityPoint) error {
	query := `
		INSERT INTO daily_equity (account_id, date, equity, peak, drawdown)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_id, date) DO UPDATE SET
			equity = excluded.equity,
			peak = excluded.peak,
			drawdown = excluded.drawdown
	`
	_, err := r.ledgerDB.ExecContext(ctx, query, p.AccountID, p.Date.String(), p.Equity.String(), p.Peak, p.Drawdown)
	if err != nil {
		return fmt.Errorf("failed to upsert daily equity for %s: %w", p.Date, err)
	}
	return nil
}

// HistoryBefore returns the recorded equity values of the account for dates
// strictly before date, oldest first.
func (r *EquityRepository) HistoryBefore(ctx context.Context, accountID int64, date utils.Date) ([]float64, error) {
	points, err := r.list(ctx, `
		SELECT account_id, date, equity, peak, drawdown FROM daily_equity
		WHERE account_id = ? AND date < ?
		ORDER BY date ASC`, accountID, date.String())
	if err != nil {
		return nil, err
	}

	history := make([]float64, len(points))
	for i, p := range points {
		history[i] = p.Equity.InexactFloat64()
	}
	return history, nil
}

// List returns the full equity curve of the account, oldest first.
func (r *EquityRepository) List(ctx context.Context, accountID int64) ([]EquityPoint, error) {
	return r.list(ctx, `
		SELECT account_id, date, equity, peak, drawdown FROM daily_equity
		WHERE account_id = ?
		ORDER BY date ASC`, accountID)
}

// Get returns the point for (account, date), or nil if none is recorded.
func (r *EquityRepository) Get(ctx context.Context, accountID int64, date utils.Date) (*EquityPoint, error) {
	points, err := r.list(ctx, `
		SELECT account_id, date, equity, peak, drawdown FROM daily_equity
		WHERE account_id = ? AND date = ?`, accountID, date.String())
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, nil
	}
	return &points[0], nil
}

func (r *EquityRepository) list(ctx context.Context, query string, args ...interface{}) ([]EquityPoint, error) {
	rows, err := r.ledgerDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily equity: %w", err)
	}
	defer rows.Close()

	points := make([]EquityPoint, 0)
	for rows.Next() {
		var p EquityPoint
		var date, equity string
		if err := rows.Scan(&p.AccountID, &date, &equity, &p.Peak, &p.Drawdown); err != nil {
			return nil, fmt.Errorf("failed to scan daily equity: %w", err)
		}
		if p.Date, err = utils.ParseDate(date); err != nil {
			return nil, fmt.Errorf("malformed equity date %q: %w", date, err)
		}
		if p.Equity, err = decimal.NewFromString(equity); err != nil {
			return nil, fmt.Errorf("malformed equity value %q: %w", equity, err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily equity: %w", err)
	}
	return points, nil
}

// SummaryRepository stores daily_trade_summary records.
type SummaryRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewSummaryRepository creates a new daily summary repository
func NewSummaryRepository(ledgerDB *sql.DB, log zerolog.Logger) *SummaryRepository {
	return &SummaryRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "daily_trade_summary").Logger(),
	}
}

// Upsert fully overwrites the summary for (account, date).
func (r *SummaryRepository) Upsert(ctx context.Context, s DailySummary) error {
	tradesJSON, err := json.Marshal(s.Trades)
	if err != nil {
		return fmt.Errorf("failed to encode trades for %s: %w", s.Date, err)
	}

	var avg sql.NullFloat64
	if s.AvgStatistic != nil {
		avg = sql.NullFloat64{Float64: *s.AvgStatistic, Valid: true}
	}

	query := `
		INSERT INTO daily_trade_summary (
			account_id, date, trades_json, trade_count, pnl_sum, avg_statistic,
			win_count, loss_count, win_rate
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, date) DO UPDATE SET
			trades_json = excluded.trades_json,
			trade_count = excluded.trade_count,
			pnl_sum = excluded.pnl_sum,
			avg_statistic = excluded.avg_statistic,
			win_count = excluded.win_count,
			loss_count = excluded.loss_count,
			win_rate = excluded.win_rate
	`
	_, err = r.ledgerDB.ExecContext(ctx, query,
		s.AccountID, s.Date.String(), string(tradesJSON), s.TradeCount, s.PnLSum.String(),
		avg, s.WinCount, s.LossCount, s.WinRate,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily trade summary for %s: %w", s.Date, err)
	}
	return nil
}

// Get returns the summary for (account, date), or nil if none is recorded.
func (r *SummaryRepository) Get(ctx context.Context, accountID int64, date utils.Date) (*DailySummary, error) {
	query := `
		SELECT trades_json, trade_count, pnl_sum, avg_statistic, win_count, loss_count, win_rate
		FROM daily_trade_summary
		WHERE account_id = ? AND date = ?
	`

	s := DailySummary{AccountID: accountID, Date: date}
	var tradesJSON, pnlSum string
	var avg sql.NullFloat64

	err := r.ledgerDB.QueryRowContext(ctx, query, accountID, date.String()).Scan(
		&tradesJSON, &s.TradeCount, &pnlSum, &avg, &s.WinCount, &s.LossCount, &s.WinRate,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily trade summary: %w", err)
	}

	if err := json.Unmarshal([]byte(tradesJSON), &s.Trades); err != nil {
		return nil, fmt.Errorf("malformed trades_json for %s: %w", date, err)
	}
	if s.PnLSum, err = decimal.NewFromString(pnlSum); err != nil {
		return nil, fmt.Errorf("malformed pnl_sum for %s: %w", date, err)
	}
	if avg.Valid {
		s.AvgStatistic = &avg.Float64
	}

	return &s, nil
}

// RiskFlagRepository stores the daily_risk_flags placeholder records.
type RiskFlagRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewRiskFlagRepository creates a new risk flag repository
func NewRiskFlagRepository(ledgerDB *sql.DB, log zerolog.Logger) *RiskFlagRepository {
	return &RiskFlagRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "daily_risk_flags").Logger(),
	}
}

// EnsureExists creates an empty flag record for (account, date) unless one
// already exists. Existing records are never modified. Reports whether a
// record was created.
func (r *RiskFlagRepository) EnsureExists(ctx context.Context, accountID int64, date utils.Date) (bool, error) {
	res, err := r.ledgerDB.ExecContext(ctx, `
		INSERT INTO daily_risk_flags (account_id, date, flags_json, created_at)
		VALUES (?, ?, '[]', ?)
		ON CONFLICT(account_id, date) DO NOTHING`,
		accountID, date.String(), time.Now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to ensure risk flags for %s: %w", date, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read risk flag insert result: %w", err)
	}
	return n > 0, nil
}

// Get returns the flag record for (account, date), or nil if none exists.
func (r *RiskFlagRepository) Get(ctx context.Context, accountID int64, date utils.Date) (*RiskFlags, error) {
	rf := RiskFlags{AccountID: accountID, Date: date}
	var flagsJSON string

	err := r.ledgerDB.QueryRowContext(ctx,
		"SELECT flags_json, created_at FROM daily_risk_flags WHERE account_id = ? AND date = ?",
		accountID, date.String(),
	).Scan(&flagsJSON, &rf.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get risk flags: %w", err)
	}
	if err := json.Unmarshal([]byte(flagsJSON), &rf.Flags); err != nil {
		return nil, fmt.Errorf("malformed flags_json for %s: %w", date, err)
	}
	return &rf, nil
}
