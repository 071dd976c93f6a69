package scheduler

import (
	"github.com/rs/zerolog"
)

// WALCheckpointJob truncates the ledger WAL after the nightly batches
type WALCheckpointJob struct {
	log zerolog.Logger
	db  WALCheckpointer
}

// NewWALCheckpointJob creates a new WALCheckpointJob
func NewWALCheckpointJob(db WALCheckpointer) *WALCheckpointJob {
	return &WALCheckpointJob{
		log: zerolog.Nop(),
		db:  db,
	}
}

// SetLogger sets the logger for the job
func (j *WALCheckpointJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run executes the checkpoint
func (j *WALCheckpointJob) Run() error {
	if j.db == nil {
		return nil
	}

	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		return err
	}

	j.log.Debug().Str("database", j.db.Name()).Msg("WAL checkpoint completed")
	return nil
}
