package di

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/eodledger/internal/config"
	"github.com/aristath/eodledger/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DataDir:     dir,
		ExtractDir:  dir + "/extracts",
		Port:        8011,
		Accounts:    []string{"U100", "U200"},
		Schedule:    "0 30 22 * * MON-FRI",
		Location:    time.UTC,
		LockTimeout: time.Second,
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)
	log := zerolog.Nop()

	container, jobs, err := Wire(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.NotNil(t, container.LedgerDB)
	assert.NotNil(t, container.AccountRepo)
	assert.NotNil(t, container.ExecutionRepo)
	assert.NotNil(t, container.RealizedTradeRepo)
	assert.NotNil(t, container.EquityRepo)
	assert.NotNil(t, container.SummaryRepo)
	assert.NotNil(t, container.EODService)
	assert.Nil(t, container.Archiver)

	require.NotNil(t, jobs)
	assert.NotNil(t, jobs.NightlyBatch)
	assert.NotNil(t, jobs.WALCheckpoint)

	registered, err := container.AccountRepo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, registered, 2)
	assert.Equal(t, "U100", registered[0].ExternalID)
}

func TestWire_IsRepeatable(t *testing.T) {
	cfg := testConfig(t)

	first, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer second.Close()

	registered, err := second.AccountRepo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, registered, 2)
}

func TestScheduleJobs(t *testing.T) {
	cfg := testConfig(t)
	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	s := scheduler.New(cfg.Location, zerolog.Nop())
	require.NoError(t, ScheduleJobs(s, jobs, cfg))
	assert.Equal(t, 2, s.Entries())

	cfg.Schedule = "whenever"
	assert.Error(t, ScheduleJobs(scheduler.New(cfg.Location, zerolog.Nop()), jobs, cfg))
}

func TestInitializeRepositories_RequiresDatabase(t *testing.T) {
	assert.Error(t, InitializeRepositories(&Container{}, zerolog.Nop()))
	_, err := RegisterJobs(&Container{}, testConfig(t), zerolog.Nop())
	assert.Error(t, err)
}
