package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/eodledger/internal/utils"
	"github.com/rs/zerolog"
)

// NightlyBatchJob processes today's extracts for every configured account
type NightlyBatchJob struct {
	log        zerolog.Logger
	processor  BatchProcessor
	registry   AccountRegistry
	accountIDs []string
	loc        *time.Location
	timeout    time.Duration
	now        func() time.Time
}

// NewNightlyBatchJob creates a new NightlyBatchJob
func NewNightlyBatchJob(
	processor BatchProcessor,
	registry AccountRegistry,
	accountIDs []string,
	loc *time.Location,
) *NightlyBatchJob {
	if loc == nil {
		loc = time.UTC
	}
	return &NightlyBatchJob{
		log:        zerolog.Nop(),
		processor:  processor,
		registry:   registry,
		accountIDs: accountIDs,
		loc:        loc,
		timeout:    30 * time.Minute,
		now:        time.Now,
	}
}

// SetLogger sets the logger for the job
func (j *NightlyBatchJob) SetLogger(log zerolog.Logger) {
	j.log = log.With().Str("job", j.Name()).Logger()
}

// Name returns the job name
func (j *NightlyBatchJob) Name() string {
	return "nightly_eod_batch"
}

// Run processes each account in turn. A failing account is logged and does
// not stop the rest; the returned error counts the failures.
func (j *NightlyBatchJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	date := utils.DateOf(j.now().In(j.loc)).String()
	failed := 0

	for _, externalID := range j.accountIDs {
		acct, err := j.registry.EnsureByExternalID(ctx, externalID)
		if err != nil {
			j.log.Error().Err(err).Str("account", externalID).Msg("Failed to resolve account")
			failed++
			continue
		}

		summary, err := j.processor.ProcessBatch(ctx, acct, date, "")
		if err != nil {
			j.log.Error().Err(err).Str("account", externalID).Str("date", date).Msg("Nightly batch failed")
			failed++
			continue
		}

		j.log.Info().
			Str("account", externalID).
			Str("date", date).
			Str("run_id", summary.RunID).
			Int("realized_trades", summary.RealizedTrades).
			Msg("Nightly batch processed")
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d accounts failed", failed, len(j.accountIDs))
	}
	return nil
}
