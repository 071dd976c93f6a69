package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/eodledger/internal/modules/extracts"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ExecutionRecord is a stored execution together with its first-seen arrival order.
type ExecutionRecord struct {
	AccountID  int64
	ArrivalSeq int64
	SourceFile string
	extracts.Execution
}

const executionColumns = `account_id, external_execution_id, external_order_id, instrument_id, side,
	quantity, price, commission, fees, currency, filled_at, filled_nanos, arrival_seq, raw_hash, source_file`

// ExecutionRepository upserts executions keyed by (account_id, external_execution_id)
// and serves the chronological replay used by trade reconciliation.
type ExecutionRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewExecutionRepository creates a new execution repository
func NewExecutionRepository(ledgerDB *sql.DB, log zerolog.Logger) *ExecutionRepository {
	return &ExecutionRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "executions").Logger(),
	}
}

// Upsert writes the whole execution record at its natural key. A new
// execution gets the next arrival sequence for the account; an existing one
// keeps the sequence it was first stored with.
func (r *ExecutionRepository) Upsert(ctx context.Context, accountID int64, e extracts.Execution, sourceFile string) error {
	payload, err := encodeRaw(e.Raw.Fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO executions (
			account_id, external_execution_id, external_order_id, instrument_id, side,
			quantity, price, commission, fees, currency, filled_at, filled_nanos, arrival_seq,
			raw_payload, raw_hash, source_file
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(arrival_seq), 0) + 1 FROM executions WHERE account_id = ?),
			?, ?, ?
		)
		ON CONFLICT(account_id, external_execution_id) DO UPDATE SET
			external_order_id = excluded.external_order_id,
			instrument_id = excluded.instrument_id,
			side = excluded.side,
			quantity = excluded.quantity,
			price = excluded.price,
			commission = excluded.commission,
			fees = excluded.fees,
			currency = excluded.currency,
			filled_at = excluded.filled_at,
			filled_nanos = excluded.filled_nanos,
			raw_payload = excluded.raw_payload,
			raw_hash = excluded.raw_hash,
			source_file = excluded.source_file
	`

	_, err = r.ledgerDB.ExecContext(ctx, query,
		accountID,
		e.ExternalID,
		nullString(e.ExternalOrderID),
		e.InstrumentID,
		string(e.Side),
		e.Quantity.String(),
		e.Price.String(),
		e.Commission.String(),
		e.Fees.String(),
		nullString(e.Currency),
		e.FilledAt.Unix(),
		e.FilledAt.Nanosecond(),
		accountID,
		payload,
		e.Raw.Hash,
		sourceFile,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert execution %s: %w", e.ExternalID, err)
	}
	return nil
}

// ListUpTo returns every execution of the account filled at or before end,
// ordered by fill time and then arrival order. end is compared at whole
// seconds; the sub-second part of a fill only orders fills within a second.
func (r *ExecutionRepository) ListUpTo(ctx context.Context, accountID int64, end time.Time) ([]ExecutionRecord, error) {
	query := `SELECT ` + executionColumns + `
		FROM executions
		WHERE account_id = ? AND filled_at <= ?
		ORDER BY filled_at ASC, filled_nanos ASC, arrival_seq ASC`

	return r.query(ctx, query, accountID, end.Unix())
}

// ListRecent returns the most recent executions of an account, newest first.
func (r *ExecutionRepository) ListRecent(ctx context.Context, accountID int64, limit int) ([]ExecutionRecord, error) {
	query := `SELECT ` + executionColumns + `
		FROM executions
		WHERE account_id = ?
		ORDER BY filled_at DESC, filled_nanos DESC, arrival_seq DESC
		LIMIT ?`

	return r.query(ctx, query, accountID, limit)
}

func (r *ExecutionRepository) query(ctx context.Context, query string, args ...interface{}) ([]ExecutionRecord, error) {
	rows, err := r.ledgerDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var records []ExecutionRecord
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return records, nil
}

func scanExecution(rows *sql.Rows) (ExecutionRecord, error) {
	var rec ExecutionRecord
	var orderID, currency sql.NullString
	var side, quantity, price, commission, fees string
	var filledAt, filledNanos int64

	err := rows.Scan(
		&rec.AccountID,
		&rec.ExternalID,
		&orderID,
		&rec.InstrumentID,
		&side,
		&quantity,
		&price,
		&commission,
		&fees,
		&currency,
		&filledAt,
		&filledNanos,
		&rec.ArrivalSeq,
		&rec.Raw.Hash,
		&rec.SourceFile,
	)
	if err != nil {
		return rec, fmt.Errorf("failed to scan execution: %w", err)
	}

	rec.ExternalOrderID = orderID.String
	rec.Currency = currency.String
	rec.Side = extracts.Side(side)
	rec.FilledAt = time.Unix(filledAt, filledNanos).UTC()

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&rec.Quantity, quantity},
		{&rec.Price, price},
		{&rec.Commission, commission},
		{&rec.Fees, fees},
	} {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return rec, fmt.Errorf("execution %s has malformed decimal %q: %w", rec.ExternalID, f.src, err)
		}
		*f.dst = d
	}

	return rec, nil
}
