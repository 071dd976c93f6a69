package di

import (
	"fmt"

	"github.com/aristath/eodledger/internal/config"
	"github.com/aristath/eodledger/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the scheduler jobs. They are attached to a Scheduler
// only when scheduling is enabled; see ScheduleJobs.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.EODService == nil {
		return nil, fmt.Errorf("container services are not initialized")
	}

	nightly := scheduler.NewNightlyBatchJob(container.EODService, container.AccountRepo, cfg.Accounts, cfg.Location)
	nightly.SetLogger(log)

	checkpoint := scheduler.NewWALCheckpointJob(container.LedgerDB)
	checkpoint.SetLogger(log)

	return &JobInstances{
		NightlyBatch:  nightly,
		WALCheckpoint: checkpoint,
	}, nil
}

// ScheduleJobs attaches the jobs to s
func ScheduleJobs(s *scheduler.Scheduler, jobs *JobInstances, cfg *config.Config) error {
	if err := s.AddJob(cfg.Schedule, jobs.NightlyBatch); err != nil {
		return fmt.Errorf("invalid batch schedule %q: %w", cfg.Schedule, err)
	}
	if err := s.AddJob("0 0 4 * * *", jobs.WALCheckpoint); err != nil {
		return fmt.Errorf("failed to schedule WAL checkpoint: %w", err)
	}
	return nil
}
