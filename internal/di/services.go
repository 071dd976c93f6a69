package di

import (
	"context"
	"fmt"

	"github.com/aristath/eodledger/internal/config"
	"github.com/aristath/eodledger/internal/modules/accounts"
	"github.com/aristath/eodledger/internal/modules/aggregates"
	"github.com/aristath/eodledger/internal/modules/archive"
	"github.com/aristath/eodledger/internal/modules/eod"
	"github.com/aristath/eodledger/internal/modules/ledger"
	"github.com/aristath/eodledger/internal/modules/trades"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the repositories used outside the batch pipeline
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.LedgerDB == nil {
		return fmt.Errorf("container has no ledger database")
	}
	conn := container.LedgerDB.Conn()

	container.AccountRepo = accounts.NewRepository(conn, log)
	container.ExecutionRepo = ledger.NewExecutionRepository(conn, log)
	container.RealizedTradeRepo = trades.NewRealizedTradeRepository(conn, log)
	container.EquityRepo = aggregates.NewEquityRepository(conn, log)
	container.SummaryRepo = aggregates.NewSummaryRepository(conn, log)

	return nil
}

// InitializeServices builds the archiver (when configured) and the batch
// orchestrator, and registers the configured accounts.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if cfg.Archive.Enabled() {
		archiver, err := archive.NewS3Archiver(ctx, archive.Config{
			Bucket:    cfg.Archive.Bucket,
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to initialize extract archiver: %w", err)
		}
		container.Archiver = archiver
		log.Info().Str("bucket", cfg.Archive.Bucket).Msg("Extract archiving enabled")
	}

	container.EODService = eod.NewService(container.LedgerDB.Conn(), eod.ServiceConfig{
		BaseDir:     cfg.ExtractDir,
		Location:    cfg.Location,
		LockTimeout: cfg.LockTimeout,
	}, container.Archiver, log)

	for _, externalID := range cfg.Accounts {
		acct, err := container.AccountRepo.EnsureByExternalID(ctx, externalID)
		if err != nil {
			return fmt.Errorf("failed to register account %s: %w", externalID, err)
		}
		log.Debug().Str("account", acct.ExternalID).Int64("id", acct.ID).Msg("Account registered")
	}

	return nil
}
