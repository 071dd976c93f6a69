package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aristath/eodledger/internal/modules/extracts"
	"github.com/rs/zerolog"
)

// OrderRepository upserts order rows keyed by (account_id, external_order_id).
type OrderRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(ledgerDB *sql.DB, log zerolog.Logger) *OrderRepository {
	return &OrderRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "orders").Logger(),
	}
}

// Upsert writes the whole order record at its natural key.
func (r *OrderRepository) Upsert(ctx context.Context, accountID int64, o extracts.Order, sourceFile string) error {
	payload, err := encodeRaw(o.Raw.Fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (
			account_id, external_order_id, submitted_at, instrument_id, side, quantity,
			limit_price, order_type, status, currency, raw_payload, raw_hash, source_file
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, external_order_id) DO UPDATE SET
			submitted_at = excluded.submitted_at,
			instrument_id = excluded.instrument_id,
			side = excluded.side,
			quantity = excluded.quantity,
			limit_price = excluded.limit_price,
			order_type = excluded.order_type,
			status = excluded.status,
			currency = excluded.currency,
			raw_payload = excluded.raw_payload,
			raw_hash = excluded.raw_hash,
			source_file = excluded.source_file
	`

	_, err = r.ledgerDB.ExecContext(ctx, query,
		accountID,
		o.ExternalID,
		nullUnix(o.SubmittedAt),
		nullString(o.InstrumentID),
		nullString(string(o.Side)),
		nullDecimal(o.Quantity),
		nullDecimal(o.LimitPrice),
		nullString(o.OrderType),
		nullString(o.Status),
		nullString(o.Currency),
		payload,
		o.Raw.Hash,
		sourceFile,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert order %s: %w", o.ExternalID, err)
	}
	return nil
}

// Count returns the number of stored orders for an account.
func (r *OrderRepository) Count(ctx context.Context, accountID int64) (int, error) {
	var n int
	err := r.ledgerDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders WHERE account_id = ?", accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}
