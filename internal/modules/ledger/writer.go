package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/eodledger/internal/modules/audit"
	"github.com/aristath/eodledger/internal/modules/extracts"
	"github.com/rs/zerolog"
)

// Writer normalises the records of an extract file and upserts each valid row
// into its domain store. Rows are written independently: a bad row becomes a
// warning on the file's audit entry and the rest of the file still applies.
type Writer struct {
	orders     *OrderRepository
	executions *ExecutionRepository
	positions  *PositionRepository
	balances   *BalanceRepository
	cash       *CashEventRepository
	loc        *time.Location
	log        zerolog.Logger
}

// NewWriter creates a writer over the ledger database. loc is used for
// timestamps that carry no zone.
func NewWriter(ledgerDB *sql.DB, loc *time.Location, log zerolog.Logger) *Writer {
	if loc == nil {
		loc = time.UTC
	}
	return &Writer{
		orders:     NewOrderRepository(ledgerDB, log),
		executions: NewExecutionRepository(ledgerDB, log),
		positions:  NewPositionRepository(ledgerDB, log),
		balances:   NewBalanceRepository(ledgerDB, log),
		cash:       NewCashEventRepository(ledgerDB, log),
		loc:        loc,
		log:        log.With().Str("component", "ledger_writer").Logger(),
	}
}

// WriteFile applies every record of file for the account and returns the
// file's audit entry. The returned error is non-nil only when ctx is done.
func (w *Writer) WriteFile(ctx context.Context, accountID int64, file *extracts.ExtractFile) (audit.FileAudit, error) {
	entry := audit.NewFileAudit(file.Name, file.Size, file.Hash)
	written := 0

	for _, rec := range file.Records {
		if err := ctx.Err(); err != nil {
			return entry.WithRowCount(written), err
		}

		row, err := extracts.Normalize(file.Kind, rec.Fields, w.loc)
		if err != nil {
			var rve *extracts.RowValidationError
			if errors.As(err, &rve) {
				rve.Row = rec.Number
			}
			w.log.Warn().
				Str("file", file.Name).
				Int("row", rec.Number).
				Err(err).
				Msg("Skipping invalid extract row")
			entry = entry.WithWarning(err.Error())
			continue
		}

		if err := w.upsert(ctx, accountID, row, file.Name); err != nil {
			w.log.Error().
				Str("file", file.Name).
				Int("row", rec.Number).
				Err(err).
				Msg("Failed to store extract row")
			entry = entry.WithWarning(fmt.Sprintf("row %d: %v", rec.Number, err))
			continue
		}
		written++
	}

	w.log.Debug().
		Str("file", file.Name).
		Int("rows", written).
		Int("warnings", len(entry.Warnings)).
		Msg("Extract file applied")

	return entry.WithRowCount(written), nil
}

func (w *Writer) upsert(ctx context.Context, accountID int64, row extracts.Row, sourceFile string) error {
	switch r := row.(type) {
	case extracts.Order:
		return w.orders.Upsert(ctx, accountID, r, sourceFile)
	case extracts.Execution:
		return w.executions.Upsert(ctx, accountID, r, sourceFile)
	case extracts.PositionSnapshot:
		return w.positions.Upsert(ctx, accountID, r, sourceFile)
	case extracts.BalanceSnapshot:
		return w.balances.Upsert(ctx, accountID, r, sourceFile)
	case extracts.CashEvent:
		return w.cash.Upsert(ctx, accountID, r, sourceFile)
	default:
		return fmt.Errorf("unsupported row type %T", row)
	}
}
