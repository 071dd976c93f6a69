// Package eod runs the end-of-day batch for one (account, date): it ingests
// the day's extracts into the ledger and rebuilds the derived records.
package eod

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aristath/eodledger/internal/modules/accounts"
	"github.com/aristath/eodledger/internal/modules/aggregates"
	"github.com/aristath/eodledger/internal/modules/archive"
	"github.com/aristath/eodledger/internal/modules/audit"
	"github.com/aristath/eodledger/internal/modules/extracts"
	"github.com/aristath/eodledger/internal/modules/ledger"
	"github.com/aristath/eodledger/internal/modules/trades"
	"github.com/aristath/eodledger/internal/utils"
	"github.com/rs/zerolog"
)

// BatchSummary is what one batch run reports back to its caller.
type BatchSummary struct {
	RunID          string            `json:"run_id"`
	AccountID      int64             `json:"account_id"`
	Account        string            `json:"account"`
	Date           string            `json:"date"`
	ArtifactHash   *string           `json:"artifact_hash"`
	FileAudit      []audit.FileAudit `json:"file_audit"`
	RealizedTrades int               `json:"realized_trades"`
	EquityRecorded bool              `json:"equity_recorded"`
	Warnings       []string          `json:"warnings"`
}

// ServiceConfig holds the batch settings that come from configuration.
type ServiceConfig struct {
	BaseDir     string         // default extract base directory
	Location    *time.Location // zone of the trading day
	LockTimeout time.Duration  // how long to wait for a busy (account, date)
}

// Service orchestrates batch runs.
type Service struct {
	accounts   *accounts.Repository
	reader     *extracts.Reader
	writer     *ledger.Writer
	reconciler *trades.Reconciler
	rebuilder  *aggregates.Rebuilder
	runs       *RunRepository
	locks      *KeyedLock
	archiver   archive.Archiver
	cfg        ServiceConfig
	log        zerolog.Logger
}

// NewService creates the batch orchestrator. archiver may be nil.
func NewService(ledgerDB *sql.DB, cfg ServiceConfig, archiver archive.Archiver, log zerolog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		accounts:   accounts.NewRepository(ledgerDB, log),
		reader:     extracts.NewReader(log),
		writer:     ledger.NewWriter(ledgerDB, cfg.Location, log),
		reconciler: trades.NewReconciler(ledgerDB, cfg.Location, log),
		rebuilder:  aggregates.NewRebuilder(ledgerDB, cfg.Location, log),
		runs:       NewRunRepository(ledgerDB, log),
		locks:      NewKeyedLock(),
		archiver:   archiver,
		cfg:        cfg,
		log:        log.With().Str("service", "eod").Logger(),
	}
}

// Runs exposes the run journal.
func (s *Service) Runs() *RunRepository {
	return s.runs
}

// ErrBaseDirOutsideRoot is returned when a requested base directory does not
// lie under the configured extract root.
var ErrBaseDirOutsideRoot = errors.New("base directory outside extract root")

// ProcessAccount looks up a registered account by external id and runs its
// batch. Unknown accounts fail with accounts.ErrInvalidAccount. A non-empty
// baseDir must resolve to the configured base directory or a directory under
// it; relative paths are taken from the configured base directory.
func (s *Service) ProcessAccount(ctx context.Context, externalID, dateString, baseDir string) (*BatchSummary, error) {
	baseDir, err := s.resolveBaseDir(baseDir)
	if err != nil {
		return nil, err
	}

	acct, err := s.accounts.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, fmt.Errorf("%w: account %q is not registered", accounts.ErrInvalidAccount, externalID)
	}
	return s.ProcessBatch(ctx, *acct, dateString, baseDir)
}

// ProcessBatch ingests the extracts of account for the date named by
// dateString found under baseDir (the configured base directory when empty),
// then rebuilds the day's realized trades and aggregates.
//
// Missing, unreadable and invalid input never fails the batch; it shows up
// as warnings in the file audit. Errors are returned for an invalid account
// or date, a busy lock, cancellation and store failures while rebuilding.
func (s *Service) ProcessBatch(ctx context.Context, account accounts.Account, dateString, baseDir string) (*BatchSummary, error) {
	if err := account.Validate(); err != nil {
		return nil, err
	}
	date, err := utils.NormalizeDate(dateString)
	if err != nil {
		return nil, err
	}
	if baseDir == "" {
		baseDir = s.cfg.BaseDir
	}
	if baseDir == "" {
		return nil, errors.New("extract base directory is not configured")
	}

	release, err := s.acquire(ctx, account.ExternalID, date)
	if err != nil {
		return nil, err
	}
	defer release()

	log := s.log.With().Str("account", account.ExternalID).Str("date", date.String()).Logger()
	timer := utils.NewTimer("eod_batch", log)

	runID, err := s.runs.Start(ctx, account.ID, date)
	if err != nil {
		return nil, err
	}

	summary, err := s.run(ctx, account, date, baseDir, log)
	if summary != nil {
		summary.RunID = runID
	}

	if finishErr := s.runs.Finish(context.WithoutCancel(ctx), runID, summary, err); finishErr != nil {
		log.Warn().Err(finishErr).Str("run_id", runID).Msg("Failed to record batch run")
	}
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("Batch failed")
		return nil, err
	}

	log.Info().
		Str("run_id", runID).
		Str("artifact_hash", *summary.ArtifactHash).
		Int("files", countPresent(summary.FileAudit)).
		Int("realized_trades", summary.RealizedTrades).
		Int("warnings", countWarnings(summary)).
		Dur("elapsed", timer.Stop()).
		Msg("Batch completed")

	return summary, nil
}

func (s *Service) resolveBaseDir(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	if s.cfg.BaseDir == "" {
		return "", fmt.Errorf("%w: %s", ErrBaseDirOutsideRoot, dir)
	}

	root, err := filepath.Abs(s.cfg.BaseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve extract root: %w", err)
	}
	candidate := dir
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}
	candidate = filepath.Clean(candidate)

	rel, err := filepath.Rel(root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrBaseDirOutsideRoot, dir)
	}
	return candidate, nil
}

func (s *Service) acquire(ctx context.Context, externalID string, date utils.Date) (func(), error) {
	lockCtx := ctx
	if s.cfg.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.cfg.LockTimeout)
		defer cancel()
	}
	return s.locks.Acquire(lockCtx, externalID+"|"+date.String())
}

func (s *Service) run(ctx context.Context, account accounts.Account, date utils.Date, baseDir string, log zerolog.Logger) (*BatchSummary, error) {
	layout := extracts.Locate(baseDir, account.ExternalID, date)

	summary := &BatchSummary{
		AccountID: account.ID,
		Account:   account.ExternalID,
		Date:      date.String(),
		FileAudit: make([]audit.FileAudit, 0, len(extracts.BatchOrder)),
		Warnings:  []string{},
	}

	var fileHashes []string
	var archived []archive.File

	for _, kind := range extracts.BatchOrder {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		name := layout.FileName(kind)
		file, err := s.reader.ReadFile(kind, layout.Path(kind))
		switch {
		case errors.Is(err, extracts.ErrFileMissing):
			log.Warn().Str("file", name).Msg("Extract file missing")
			summary.FileAudit = append(summary.FileAudit, audit.Missing(name, kind.String()))
			continue
		case err != nil:
			log.Warn().Str("file", name).Err(err).Msg("Extract file unreadable")
			summary.FileAudit = append(summary.FileAudit, audit.Unreadable(name, kind.String(), err))
			continue
		}

		entry, err := s.writer.WriteFile(ctx, account.ID, file)
		summary.FileAudit = append(summary.FileAudit, entry)
		if err != nil {
			return summary, err
		}

		fileHashes = append(fileHashes, file.Hash)
		archived = append(archived, archive.File{Name: file.Name, Content: file.Content})
	}

	artifactHash := audit.ArtifactHash(fileHashes)
	summary.ArtifactHash = &artifactHash

	dayTrades, err := s.reconciler.Rebuild(ctx, account.ID, date)
	if err != nil {
		return summary, fmt.Errorf("failed to rebuild realized trades: %w", err)
	}
	summary.RealizedTrades = len(dayTrades)

	result, err := s.rebuilder.Rebuild(ctx, account.ID, date)
	if err != nil {
		return summary, fmt.Errorf("failed to rebuild daily aggregates: %w", err)
	}
	summary.EquityRecorded = result.Equity != nil

	if s.archiver != nil && len(archived) > 0 {
		if err := s.archiver.Archive(ctx, account.ExternalID, date.String(), artifactHash, archived); err != nil {
			log.Warn().Err(err).Msg("Failed to archive extract files")
			summary.Warnings = append(summary.Warnings, "archive failed: "+err.Error())
		}
	}

	return summary, nil
}

func countPresent(entries []audit.FileAudit) int {
	n := 0
	for _, e := range entries {
		if e.Present() {
			n++
		}
	}
	return n
}

func countWarnings(summary *BatchSummary) int {
	n := len(summary.Warnings)
	for _, e := range summary.FileAudit {
		n += len(e.Warnings)
	}
	return n
}
