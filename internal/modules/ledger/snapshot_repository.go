package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aristath/eodledger/internal/modules/extracts"
	"github.com/aristath/eodledger/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PositionRepository upserts position snapshots keyed by (account_id, as_of, instrument_id).
type PositionRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewPositionRepository creates a new position snapshot repository
func NewPositionRepository(ledgerDB *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "position_snapshots").Logger(),
	}
}

// Upsert writes the whole snapshot record at its natural key.
func (r *PositionRepository) Upsert(ctx context.Context, accountID int64, p extracts.PositionSnapshot, sourceFile string) error {
	payload, err := encodeRaw(p.Raw.Fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO position_snapshots (
			account_id, as_of, instrument_id, quantity, average_cost, market_price,
			market_value, unrealized_pnl, currency, raw_payload, raw_hash, source_file
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, as_of, instrument_id) DO UPDATE SET
			quantity = excluded.quantity,
			average_cost = excluded.average_cost,
			market_price = excluded.market_price,
			market_value = excluded.market_value,
			unrealized_pnl = excluded.unrealized_pnl,
			currency = excluded.currency,
			raw_payload = excluded.raw_payload,
			raw_hash = excluded.raw_hash,
			source_file = excluded.source_file
	`

	_, err = r.ledgerDB.ExecContext(ctx, query,
		accountID,
		p.AsOf.String(),
		p.InstrumentID,
		nullDecimal(p.Quantity),
		nullDecimal(p.AverageCost),
		nullDecimal(p.MarketPrice),
		nullDecimal(p.MarketValue),
		nullDecimal(p.UnrealizedPnL),
		nullString(p.Currency),
		payload,
		p.Raw.Hash,
		sourceFile,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert position %s@%s: %w", p.InstrumentID, p.AsOf, err)
	}
	return nil
}

// BalanceRecord is a stored balance snapshot.
type BalanceRecord struct {
	AccountID   int64
	AsOf        utils.Date
	Cash        *decimal.Decimal
	NetEquity   *decimal.Decimal
	BuyingPower *decimal.Decimal
	Currency    string
	RawHash     string
}

// BalanceRepository upserts balance snapshots keyed by (account_id, as_of).
type BalanceRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewBalanceRepository creates a new balance snapshot repository
func NewBalanceRepository(ledgerDB *sql.DB, log zerolog.Logger) *BalanceRepository {
	return &BalanceRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "balance_snapshots").Logger(),
	}
}

// Upsert writes the whole snapshot record at its natural key.
func (r *BalanceRepository) Upsert(ctx context.Context, accountID int64, b extracts.BalanceSnapshot, sourceFile string) error {
	payload, err := encodeRaw(b.Raw.Fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO balance_snapshots (
			account_id, as_of, cash, net_equity, buying_power, currency,
			raw_payload, raw_hash, source_file
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, as_of) DO UPDATE SET
			cash = excluded.cash,
			net_equity = excluded.net_equity,
			buying_power = excluded.buying_power,
			currency = excluded.currency,
			raw_payload = excluded.raw_payload,
			raw_hash = excluded.raw_hash,
			source_file = excluded.source_file
	`

	_, err = r.ledgerDB.ExecContext(ctx, query,
		accountID,
		b.AsOf.String(),
		nullDecimal(b.Cash),
		nullDecimal(b.NetEquity),
		nullDecimal(b.BuyingPower),
		nullString(b.Currency),
		payload,
		b.Raw.Hash,
		sourceFile,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert balance %s: %w", b.AsOf, err)
	}
	return nil
}

// GetByDate returns the balance snapshot for a date, or nil if none was ingested.
func (r *BalanceRepository) GetByDate(ctx context.Context, accountID int64, date utils.Date) (*BalanceRecord, error) {
	query := `
		SELECT cash, net_equity, buying_power, currency, raw_hash
		FROM balance_snapshots
		WHERE account_id = ? AND as_of = ?
	`

	var cash, netEquity, buyingPower, currency sql.NullString
	rec := BalanceRecord{AccountID: accountID, AsOf: date}

	err := r.ledgerDB.QueryRowContext(ctx, query, accountID, date.String()).Scan(
		&cash, &netEquity, &buyingPower, &currency, &rec.RawHash,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance snapshot: %w", err)
	}

	if rec.Cash, err = decimalPtr(cash); err != nil {
		return nil, fmt.Errorf("malformed cash for %s: %w", date, err)
	}
	if rec.NetEquity, err = decimalPtr(netEquity); err != nil {
		return nil, fmt.Errorf("malformed net equity for %s: %w", date, err)
	}
	if rec.BuyingPower, err = decimalPtr(buyingPower); err != nil {
		return nil, fmt.Errorf("malformed buying power for %s: %w", date, err)
	}
	rec.Currency = currency.String

	return &rec, nil
}
