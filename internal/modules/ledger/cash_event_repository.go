package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aristath/eodledger/internal/modules/extracts"
	"github.com/rs/zerolog"
)

// CashEventRepository upserts cash events keyed by (account_id, external_id).
// Events without an identifier in the extract are keyed by their raw hash.
type CashEventRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewCashEventRepository creates a new cash event repository
func NewCashEventRepository(ledgerDB *sql.DB, log zerolog.Logger) *CashEventRepository {
	return &CashEventRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "cash_events").Logger(),
	}
}

// CashEventKey returns the natural key used to store ev.
func CashEventKey(ev extracts.CashEvent) string {
	if ev.ExternalID != "" {
		return ev.ExternalID
	}
	return ev.Raw.Hash
}

// Upsert writes the whole cash event record at its natural key.
func (r *CashEventRepository) Upsert(ctx context.Context, accountID int64, ev extracts.CashEvent, sourceFile string) error {
	payload, err := encodeRaw(ev.Raw.Fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO cash_events (
			account_id, external_id, posted_at, value_date, type, amount, currency,
			description, raw_payload, raw_hash, source_file
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, external_id) DO UPDATE SET
			posted_at = excluded.posted_at,
			value_date = excluded.value_date,
			type = excluded.type,
			amount = excluded.amount,
			currency = excluded.currency,
			description = excluded.description,
			raw_payload = excluded.raw_payload,
			raw_hash = excluded.raw_hash,
			source_file = excluded.source_file
	`

	key := CashEventKey(ev)
	_, err = r.ledgerDB.ExecContext(ctx, query,
		accountID,
		key,
		ev.PostedAt.Unix(),
		ev.ValueDate.String(),
		ev.Type,
		ev.Amount.String(),
		nullString(ev.Currency),
		nullString(ev.Description),
		payload,
		ev.Raw.Hash,
		sourceFile,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cash event %s: %w", key, err)
	}
	return nil
}
