/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to handlers for access to services.
 */
package di

import (
	"github.com/aristath/eodledger/internal/database"
	"github.com/aristath/eodledger/internal/modules/accounts"
	"github.com/aristath/eodledger/internal/modules/aggregates"
	"github.com/aristath/eodledger/internal/modules/archive"
	"github.com/aristath/eodledger/internal/modules/eod"
	"github.com/aristath/eodledger/internal/modules/ledger"
	"github.com/aristath/eodledger/internal/modules/trades"
	"github.com/aristath/eodledger/internal/scheduler"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: the single ledger database
 * - Repositories: accounts and read access to the ledger stores
 * - Services: the batch orchestrator and its optional archiver
 */
type Container struct {
	// Databases
	LedgerDB *database.DB

	// Repositories
	AccountRepo       *accounts.Repository
	ExecutionRepo     *ledger.ExecutionRepository
	RealizedTradeRepo *trades.RealizedTradeRepository
	EquityRepo        *aggregates.EquityRepository
	SummaryRepo       *aggregates.SummaryRepository

	// Services
	Archiver   archive.Archiver // nil when no bucket is configured
	EODService *eod.Service
}

// JobInstances holds the scheduler jobs for manual triggering
type JobInstances struct {
	NightlyBatch  *scheduler.NightlyBatchJob
	WALCheckpoint *scheduler.WALCheckpointJob
}

// Close releases the container's resources
func (c *Container) Close() error {
	if c.LedgerDB == nil {
		return nil
	}
	return c.LedgerDB.Close()
}
