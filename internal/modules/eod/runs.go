package eod

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/eodledger/internal/modules/audit"
	"github.com/aristath/eodledger/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Run statuses recorded in the journal.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

const runColumns = `run_id, account_id, date, status, artifact_hash, file_audit_json,
	realized_trades, warnings_json, error, started_at, finished_at`

// Run is one entry of the batch journal.
type Run struct {
	RunID          string            `json:"run_id"`
	AccountID      int64             `json:"account_id"`
	Date           string            `json:"date"`
	Status         string            `json:"status"`
	ArtifactHash   *string           `json:"artifact_hash"`
	FileAudit      []audit.FileAudit `json:"file_audit"`
	RealizedTrades int               `json:"realized_trades"`
	Warnings       []string          `json:"warnings"`
	Error          *string           `json:"error,omitempty"`
	StartedAt      int64             `json:"started_at"`
	FinishedAt     *int64            `json:"finished_at,omitempty"`
}

// RunRepository persists the eod_runs journal.
type RunRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewRunRepository creates a new run journal repository
func NewRunRepository(ledgerDB *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "eod_runs").Logger(),
	}
}

// Start opens a journal entry for (account, date) and returns its run id.
func (r *RunRepository) Start(ctx context.Context, accountID int64, date utils.Date) (string, error) {
	runID := uuid.New().String()
	_, err := r.ledgerDB.ExecContext(ctx, `
		INSERT INTO eod_runs (run_id, account_id, date, status, file_audit_json, started_at)
		VALUES (?, ?, ?, ?, '[]', ?)`,
		runID, accountID, date.String(), RunStatusRunning, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to start run journal entry: %w", err)
	}
	return runID, nil
}

// Finish closes the journal entry. runErr, when non-nil, marks the run failed.
func (r *RunRepository) Finish(ctx context.Context, runID string, summary *BatchSummary, runErr error) error {
	status := RunStatusCompleted
	var errText sql.NullString
	if runErr != nil {
		status = RunStatusFailed
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}

	fileAudit := []audit.FileAudit{}
	warnings := []string{}
	var artifactHash sql.NullString
	realized := 0
	if summary != nil {
		if summary.FileAudit != nil {
			fileAudit = summary.FileAudit
		}
		if summary.Warnings != nil {
			warnings = summary.Warnings
		}
		if summary.ArtifactHash != nil {
			artifactHash = sql.NullString{String: *summary.ArtifactHash, Valid: true}
		}
		realized = summary.RealizedTrades
	}

	auditJSON, err := json.Marshal(fileAudit)
	if err != nil {
		return fmt.Errorf("failed to marshal file audit: %w", err)
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}

	_, err = r.ledgerDB.ExecContext(ctx, `
		UPDATE eod_runs SET
			status = ?, artifact_hash = ?, file_audit_json = ?, realized_trades = ?,
			warnings_json = ?, error = ?, finished_at = ?
		WHERE run_id = ?`,
		status, artifactHash, string(auditJSON), realized,
		string(warningsJSON), errText, time.Now().Unix(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	return nil
}

// List returns the most recent runs of an account, newest first.
func (r *RunRepository) List(ctx context.Context, accountID int64, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.ledgerDB.QueryContext(ctx,
		"SELECT "+runColumns+" FROM eod_runs WHERE account_id = ? ORDER BY started_at DESC, run_id LIMIT ?",
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// Get returns a run by id, or nil if it does not exist.
func (r *RunRepository) Get(ctx context.Context, runID string) (*Run, error) {
	rows, err := r.ledgerDB.QueryContext(ctx, "SELECT "+runColumns+" FROM eod_runs WHERE run_id = ?", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	run, err := scanRun(rows)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var run Run
	var artifactHash, errText sql.NullString
	var finishedAt sql.NullInt64
	var auditJSON, warningsJSON string

	err := rows.Scan(&run.RunID, &run.AccountID, &run.Date, &run.Status, &artifactHash, &auditJSON,
		&run.RealizedTrades, &warningsJSON, &errText, &run.StartedAt, &finishedAt)
	if err != nil {
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}

	if artifactHash.Valid {
		run.ArtifactHash = &artifactHash.String
	}
	if errText.Valid {
		run.Error = &errText.String
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Int64
	}
	if err := json.Unmarshal([]byte(auditJSON), &run.FileAudit); err != nil {
		return Run{}, fmt.Errorf("failed to unmarshal file audit of run %s: %w", run.RunID, err)
	}
	if err := json.Unmarshal([]byte(warningsJSON), &run.Warnings); err != nil {
		return Run{}, fmt.Errorf("failed to unmarshal warnings of run %s: %w", run.RunID, err)
	}
	return run, nil
}
