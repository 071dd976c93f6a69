package scheduler

import (
	"context"

	"github.com/aristath/eodledger/internal/modules/accounts"
	"github.com/aristath/eodledger/internal/modules/eod"
)

// BatchProcessor runs one end-of-day batch
// Used by scheduler to enable testing with fakes
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, account accounts.Account, dateString, baseDir string) (*eod.BatchSummary, error)
}

// AccountRegistry resolves configured external account ids
type AccountRegistry interface {
	EnsureByExternalID(ctx context.Context, externalID string) (accounts.Account, error)
}

// WALCheckpointer is implemented by *database.DB
type WALCheckpointer interface {
	WALCheckpoint(mode string) error
	Name() string
}
