package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/eodledger/internal/modules/accounts"
	"github.com/aristath/eodledger/internal/modules/eod"
	testingpkg "github.com/aristath/eodledger/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs int
	err  error
}

func (j *countingJob) Run() error   { j.runs++; return j.err }
func (j *countingJob) Name() string { return "counting" }

func TestScheduler_AddJob(t *testing.T) {
	s := New(time.UTC, zerolog.New(nil).Level(zerolog.Disabled))

	require.NoError(t, s.AddJob("0 30 22 * * MON-FRI", &countingJob{}))
	require.NoError(t, s.AddJob("@every 1h", &countingJob{}))
	assert.Equal(t, 2, s.Entries())

	assert.Error(t, s.AddJob("not a schedule", &countingJob{}))
	assert.Equal(t, 2, s.Entries())

	s.Start()
	s.Stop()
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(nil, zerolog.New(nil).Level(zerolog.Disabled))

	job := &countingJob{}
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)

	failing := &countingJob{err: errors.New("boom")}
	assert.Error(t, s.RunNow(failing))
}

type fakeProcessor struct {
	calls []string
	fail  map[string]error
}

func (f *fakeProcessor) ProcessBatch(_ context.Context, acct accounts.Account, date, _ string) (*eod.BatchSummary, error) {
	f.calls = append(f.calls, acct.ExternalID+"@"+date)
	if err := f.fail[acct.ExternalID]; err != nil {
		return nil, err
	}
	return &eod.BatchSummary{RunID: "run-" + acct.ExternalID, Account: acct.ExternalID, Date: date}, nil
}

type fakeRegistry struct{}

func (fakeRegistry) EnsureByExternalID(_ context.Context, externalID string) (accounts.Account, error) {
	if externalID == "" {
		return accounts.Account{}, accounts.ErrInvalidAccount
	}
	return accounts.Account{ID: int64(len(externalID)), ExternalID: externalID}, nil
}

func TestNightlyBatchJob_Run(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	processor := &fakeProcessor{}
	job := NewNightlyBatchJob(processor, fakeRegistry{}, []string{"U100", "U200"}, ny)
	job.SetLogger(zerolog.New(nil).Level(zerolog.Disabled))
	// 02:30 UTC on the 6th is still the 5th in New York
	job.now = func() time.Time { return time.Date(2024, 3, 6, 2, 30, 0, 0, time.UTC) }

	require.NoError(t, job.Run())
	assert.Equal(t, []string{"U100@2024-03-05", "U200@2024-03-05"}, processor.calls)
	assert.Equal(t, "nightly_eod_batch", job.Name())
}

func TestNightlyBatchJob_FailureDoesNotStopOthers(t *testing.T) {
	processor := &fakeProcessor{fail: map[string]error{"U100": errors.New("disk gone")}}
	job := NewNightlyBatchJob(processor, fakeRegistry{}, []string{"U100", "", "U300"}, time.UTC)
	job.now = func() time.Time { return time.Date(2024, 3, 5, 22, 30, 0, 0, time.UTC) }

	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 accounts failed")
	assert.Equal(t, []string{"U100@2024-03-05", "U300@2024-03-05"}, processor.calls)
}

func TestWALCheckpointJob(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	defer cleanup()

	job := NewWALCheckpointJob(db)
	job.SetLogger(zerolog.New(nil).Level(zerolog.Disabled))
	assert.Equal(t, "wal_checkpoint", job.Name())
	assert.NoError(t, job.Run())

	assert.NoError(t, NewWALCheckpointJob(nil).Run())
}
