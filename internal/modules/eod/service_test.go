package eod

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aristath/eodledger/internal/modules/accounts"
	"github.com/aristath/eodledger/internal/modules/archive"
	"github.com/aristath/eodledger/internal/modules/audit"
	testingpkg "github.com/aristath/eodledger/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDate = "2024-03-05"

type fakeArchiver struct {
	mu    sync.Mutex
	calls []archiveCall
	err   error
}

type archiveCall struct {
	account, date, artifactHash string
	files                       []archive.File
}

func (f *fakeArchiver) Archive(_ context.Context, account, date, artifactHash string, files []archive.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, archiveCall{account, date, artifactHash, files})
	return f.err
}

type fixture struct {
	db      *sql.DB
	baseDir string
	account accounts.Account
	service *Service
}

func newFixture(t *testing.T, archiver archive.Archiver) *fixture {
	t.Helper()
	db := testingpkg.NewLedgerDB(t)
	baseDir := t.TempDir()
	id := testingpkg.SeedAccount(t, db, "U1")

	log := zerolog.New(nil).Level(zerolog.Disabled)
	svc := NewService(db, ServiceConfig{BaseDir: baseDir, Location: time.UTC, LockTimeout: time.Second}, archiver, log)

	return &fixture{
		db:      db,
		baseDir: baseDir,
		account: accounts.Account{ID: id, ExternalID: "U1", Name: "U1"},
		service: svc,
	}
}

// dumpLedger renders every ledger table in primary-key order.
func dumpLedger(t *testing.T, db *sql.DB) map[string][]string {
	t.Helper()
	tables := []string{
		"orders", "executions", "position_snapshots", "balance_snapshots", "cash_events",
		"realized_trades", "daily_equity", "daily_trade_summary", "daily_risk_flags",
	}
	dump := make(map[string][]string, len(tables))
	for _, table := range tables {
		rows, err := db.Query("SELECT * FROM " + table + " ORDER BY 1, 2, 3")
		require.NoError(t, err)
		cols, err := rows.Columns()
		require.NoError(t, err)

		lines := []string{}
		for rows.Next() {
			values := make([]interface{}, len(cols))
			ptrs := make([]interface{}, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			require.NoError(t, rows.Scan(ptrs...))
			parts := make([]string, len(values))
			for i, v := range values {
				if b, ok := v.([]byte); ok {
					v = fmt.Sprintf("%x", b)
				}
				parts[i] = fmt.Sprint(v)
			}
			lines = append(lines, strings.Join(parts, "|"))
		}
		require.NoError(t, rows.Err())
		_ = rows.Close()
		dump[table] = lines
	}
	return dump
}

func TestProcessBatch_StandardDay(t *testing.T) {
	f := newFixture(t, nil)
	testingpkg.WriteStandardDay(t, f.baseDir, "U1", testDate)

	summary, err := f.service.ProcessBatch(context.Background(), f.account, testDate, "")
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, testDate, summary.Date)
	require.NotNil(t, summary.ArtifactHash)
	assert.Len(t, *summary.ArtifactHash, 64)
	assert.Equal(t, 2, summary.RealizedTrades)
	assert.True(t, summary.EquityRecorded)
	assert.Empty(t, summary.Warnings)

	require.Len(t, summary.FileAudit, 5)
	names := make([]string, len(summary.FileAudit))
	rowCounts := make([]int, len(summary.FileAudit))
	for i, entry := range summary.FileAudit {
		names[i] = entry.Name
		rowCounts[i] = entry.RowCount
		assert.True(t, entry.Present(), entry.Name)
		assert.Empty(t, entry.Warnings, entry.Name)
	}
	assert.Equal(t, []string{
		"balances_U1_20240305.csv",
		"positions_U1_20240305.csv",
		"orders_U1_20240305.csv",
		"executions_U1_20240305.csv",
		"cash_U1_20240305.csv",
	}, names)
	assert.Equal(t, []int{1, 1, 3, 3, 1}, rowCounts)

	assert.Equal(t, 2, testingpkg.CountRows(t, f.db, "realized_trades"))
	assert.Equal(t, 1, testingpkg.CountRows(t, f.db, "daily_equity"))
	assert.Equal(t, 1, testingpkg.CountRows(t, f.db, "daily_trade_summary"))
	assert.Equal(t, 1, testingpkg.CountRows(t, f.db, "daily_risk_flags"))

	run, err := f.service.Runs().Get(context.Background(), summary.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.Equal(t, summary.ArtifactHash, run.ArtifactHash)
	assert.Equal(t, 2, run.RealizedTrades)
	assert.Len(t, run.FileAudit, 5)
	assert.NotNil(t, run.FinishedAt)
}

func TestProcessBatch_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	testingpkg.WriteStandardDay(t, f.baseDir, "U1", testDate)
	ctx := context.Background()

	first, err := f.service.ProcessBatch(ctx, f.account, testDate, "")
	require.NoError(t, err)
	before := dumpLedger(t, f.db)

	second, err := f.service.ProcessBatch(ctx, f.account, testDate, "")
	require.NoError(t, err)
	after := dumpLedger(t, f.db)

	assert.Equal(t, *first.ArtifactHash, *second.ArtifactHash)
	assert.Equal(t, first.FileAudit, second.FileAudit)
	assert.Equal(t, before, after)
	assert.NotEqual(t, first.RunID, second.RunID)

	runs, err := f.service.Runs().List(ctx, f.account.ID, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestProcessBatch_ChangedFileChangesArtifactHash(t *testing.T) {
	f := newFixture(t, nil)
	testingpkg.WriteStandardDay(t, f.baseDir, "U1", testDate)
	ctx := context.Background()

	first, err := f.service.ProcessBatch(ctx, f.account, testDate, "")
	require.NoError(t, err)

	testingpkg.WriteExtract(t, f.baseDir, "U1", testDate, "balances",
		testingpkg.BalancesHeader,
		testDate+",5000.00,25000.01,10000.00,USD",
	)

	second, err := f.service.ProcessBatch(ctx, f.account, testDate, "")
	require.NoError(t, err)
	assert.NotEqual(t, *first.ArtifactHash, *second.ArtifactHash)
}

func TestProcessBatch_MissingOrdersFile(t *testing.T) {
	f := newFixture(t, nil)
	testingpkg.WriteStandardDay(t, f.baseDir, "U1", testDate)
	require.NoError(t, os.Remove(filepath.Join(f.baseDir, "U1", testDate, "orders_U1_20240305.csv")))

	summary, err := f.service.ProcessBatch(context.Background(), f.account, testDate, "")
	require.NoError(t, err)

	require.Len(t, summary.FileAudit, 5)
	assert.Equal(t, audit.FileAudit{
		Name:     "orders_U1_20240305.csv",
		Bytes:    0,
		RowCount: 0,
		FileHash: nil,
		Warnings: []string{"missing orders file"},
	}, summary.FileAudit[2])

	for _, i := range []int{0, 1, 3, 4} {
		assert.True(t, summary.FileAudit[i].Present(), summary.FileAudit[i].Name)
		assert.Empty(t, summary.FileAudit[i].Warnings)
	}
	assert.Equal(t, 3, summary.FileAudit[3].RowCount)
	assert.Equal(t, 0, testingpkg.CountRows(t, f.db, "orders"))
	assert.Equal(t, 3, testingpkg.CountRows(t, f.db, "executions"))
	assert.Equal(t, 2, summary.RealizedTrades)
}

func TestProcessBatch_AllFilesMissingStillRebuilds(t *testing.T) {
	f := newFixture(t, nil)

	summary, err := f.service.ProcessBatch(context.Background(), f.account, testDate, "")
	require.NoError(t, err)

	require.NotNil(t, summary.ArtifactHash)
	assert.Equal(t, audit.NoFilesArtifact, *summary.ArtifactHash)
	require.Len(t, summary.FileAudit, 5)
	for _, entry := range summary.FileAudit {
		assert.False(t, entry.Present())
		require.Len(t, entry.Warnings, 1)
		assert.True(t, strings.HasPrefix(entry.Warnings[0], "missing "), entry.Warnings[0])
	}

	assert.Equal(t, 0, summary.RealizedTrades)
	assert.False(t, summary.EquityRecorded)
	assert.Equal(t, 1, testingpkg.CountRows(t, f.db, "daily_trade_summary"))
	assert.Equal(t, 1, testingpkg.CountRows(t, f.db, "daily_risk_flags"))
	assert.Equal(t, 0, testingpkg.CountRows(t, f.db, "daily_equity"))
}

func TestProcessBatch_UnreadableFile(t *testing.T) {
	f := newFixture(t, nil)
	testingpkg.WriteStandardDay(t, f.baseDir, "U1", testDate)
	path := filepath.Join(f.baseDir, "U1", testDate, "cash_U1_20240305.csv")
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0755))

	summary, err := f.service.ProcessBatch(context.Background(), f.account, testDate, "")
	require.NoError(t, err)

	cash := summary.FileAudit[4]
	assert.False(t, cash.Present())
	assert.Zero(t, cash.RowCount)
	require.Len(t, cash.Warnings, 1)
	assert.True(t, strings.HasPrefix(cash.Warnings[0], "unreadable cash file: "), cash.Warnings[0])
	assert.Equal(t, 2, summary.RealizedTrades)
}

func TestProcessBatch_InvalidAccountFailsBeforeIO(t *testing.T) {
	f := newFixture(t, nil)
	testingpkg.WriteStandardDay(t, f.baseDir, "U1", testDate)

	_, err := f.service.ProcessBatch(context.Background(), accounts.Account{ExternalID: "U1"}, testDate, "")
	assert.ErrorIs(t, err, accounts.ErrInvalidAccount)

	_, err = f.service.ProcessBatch(context.Background(), accounts.Account{ID: f.account.ID}, testDate, "")
	assert.ErrorIs(t, err, accounts.ErrInvalidAccount)

	assert.Equal(t, 0, testingpkg.CountRows(t, f.db, "eod_runs"))
	assert.Equal(t, 0, testingpkg.CountRows(t, f.db, "executions"))
}

func TestProcessBatch_DateNormalization(t *testing.T) {
	f := newFixture(t, nil)
	testingpkg.WriteStandardDay(t, f.baseDir, "U1", testDate)

	for _, input := range []string{"2024/3/5", " 20240305 ", "2024-03-05T16:30:00Z"} {
		t.Run(input, func(t *testing.T) {
			summary, err := f.service.ProcessBatch(context.Background(), f.account, input, "")
			require.NoError(t, err)
			assert.Equal(t, testDate, summary.Date)
			assert.True(t, summary.FileAudit[0].Present())
		})
	}

	_, err := f.service.ProcessBatch(context.Background(), f.account, "05/03/2024", "")
	assert.Error(t, err)
	assert.Equal(t, 3, testingpkg.CountRows(t, f.db, "eod_runs"))
}

func TestProcessBatch_ExplicitBaseDir(t *testing.T) {
	f := newFixture(t, nil)
	other := t.TempDir()
	testingpkg.WriteStandardDay(t, other, "U1", testDate)

	summary, err := f.service.ProcessBatch(context.Background(), f.account, testDate, other)
	require.NoError(t, err)
	assert.True(t, summary.FileAudit[0].Present())
}

func TestProcessBatch_WarningsNameFileLines(t *testing.T) {
	f := newFixture(t, nil)
	testingpkg.WriteExtract(t, f.baseDir, "U1", testDate, "executions",
		testingpkg.ExecutionsHeader,
		"E-1,O-1,AAPL,BUY,10,100,1.00,0,USD,"+testDate+"T14:00:01Z",
		"",
		"E-2,O-2,AAPL,BUY,10,oops,1.00,0,USD,"+testDate+"T15:00:01Z",
	)

	summary, err := f.service.ProcessBatch(context.Background(), f.account, testDate, "")
	require.NoError(t, err)

	var executions *audit.FileAudit
	for i := range summary.FileAudit {
		if strings.HasPrefix(summary.FileAudit[i].Name, "executions_") {
			executions = &summary.FileAudit[i]
		}
	}
	require.NotNil(t, executions)
	assert.Equal(t, 1, executions.RowCount)
	require.Len(t, executions.Warnings, 1)
	assert.True(t, strings.HasPrefix(executions.Warnings[0], "row 4: "), executions.Warnings[0])
}

func TestProcessAccount_BaseDirMustStayUnderRoot(t *testing.T) {
	f := newFixture(t, nil)
	outside := t.TempDir()
	testingpkg.WriteStandardDay(t, outside, "U1", testDate)

	for _, dir := range []string{outside, "..", "nested/../../x", "/"} {
		t.Run(dir, func(t *testing.T) {
			_, err := f.service.ProcessAccount(context.Background(), "U1", testDate, dir)
			assert.ErrorIs(t, err, ErrBaseDirOutsideRoot)
		})
	}
	assert.Equal(t, 0, testingpkg.CountRows(t, f.db, "eod_runs"))

	nested := filepath.Join(f.baseDir, "nested")
	testingpkg.WriteStandardDay(t, nested, "U1", testDate)
	for _, dir := range []string{"nested", nested, f.baseDir} {
		t.Run(dir, func(t *testing.T) {
			_, err := f.service.ProcessAccount(context.Background(), "U1", testDate, dir)
			require.NoError(t, err)
		})
	}
}

func TestProcessAccount_UnknownAccount(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.ProcessAccount(context.Background(), "U404", testDate, "")
	assert.ErrorIs(t, err, accounts.ErrInvalidAccount)

	testingpkg.WriteStandardDay(t, f.baseDir, "U1", testDate)
	summary, err := f.service.ProcessAccount(context.Background(), "U1", testDate, "")
	require.NoError(t, err)
	assert.Equal(t, f.account.ID, summary.AccountID)
}

func TestProcessBatch_LockedBatch(t *testing.T) {
	f := newFixture(t, nil)
	f.service.cfg.LockTimeout = 20 * time.Millisecond

	release, err := f.service.locks.Acquire(context.Background(), "U1|"+testDate)
	require.NoError(t, err)
	defer release()

	_, err = f.service.ProcessBatch(context.Background(), f.account, testDate, "")
	assert.ErrorIs(t, err, ErrBatchLocked)

	// A different date is not blocked.
	_, err = f.service.ProcessBatch(context.Background(), f.account, "2024-03-06", "")
	assert.NoError(t, err)
}

func TestProcessBatch_ConcurrentSameDay(t *testing.T) {
	f := newFixture(t, nil)
	testingpkg.WriteStandardDay(t, f.baseDir, "U1", testDate)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.ProcessBatch(context.Background(), f.account, testDate, "")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 2, testingpkg.CountRows(t, f.db, "realized_trades"))
	assert.Equal(t, 3, testingpkg.CountRows(t, f.db, "executions"))
}

func TestProcessBatch_Archive(t *testing.T) {
	archiver := &fakeArchiver{}
	f := newFixture(t, archiver)
	testingpkg.WriteStandardDay(t, f.baseDir, "U1", testDate)

	summary, err := f.service.ProcessBatch(context.Background(), f.account, testDate, "")
	require.NoError(t, err)

	require.Len(t, archiver.calls, 1)
	call := archiver.calls[0]
	assert.Equal(t, "U1", call.account)
	assert.Equal(t, testDate, call.date)
	assert.Equal(t, *summary.ArtifactHash, call.artifactHash)
	require.Len(t, call.files, 5)
	assert.Equal(t, "balances_U1_20240305.csv", call.files[0].Name)
	assert.NotEmpty(t, call.files[0].Content)
}

func TestProcessBatch_ArchiveFailureIsWarning(t *testing.T) {
	archiver := &fakeArchiver{err: errors.New("bucket unavailable")}
	f := newFixture(t, archiver)
	testingpkg.WriteStandardDay(t, f.baseDir, "U1", testDate)

	summary, err := f.service.ProcessBatch(context.Background(), f.account, testDate, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"archive failed: bucket unavailable"}, summary.Warnings)

	run, err := f.service.Runs().Get(context.Background(), summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, summary.Warnings, run.Warnings)
}

func TestProcessBatch_NoArchiveWhenNothingPresent(t *testing.T) {
	archiver := &fakeArchiver{}
	f := newFixture(t, archiver)

	_, err := f.service.ProcessBatch(context.Background(), f.account, testDate, "")
	require.NoError(t, err)
	assert.Empty(t, archiver.calls)
}
