package extracts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/eodledger/internal/modules/audit"
	"github.com/aristath/eodledger/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReader() *Reader {
	return NewReader(zerolog.New(nil).Level(zerolog.Disabled))
}

func TestLocate(t *testing.T) {
	layout := Locate("/data/extracts", "U123", utils.NewDate(2024, time.March, 5))

	assert.Equal(t, filepath.Join("/data/extracts", "U123", "2024-03-05"), layout.Dir)

	want := map[Kind]string{
		KindBalances:   "balances_U123_20240305.csv",
		KindPositions:  "positions_U123_20240305.csv",
		KindOrders:     "orders_U123_20240305.csv",
		KindExecutions: "executions_U123_20240305.csv",
		KindCash:       "cash_U123_20240305.csv",
	}
	for kind, name := range want {
		assert.Equal(t, name, layout.FileName(kind))
		assert.Equal(t, filepath.Join(layout.Dir, name), layout.Path(kind))
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	reader := newTestReader()

	t.Run("trims headers and values and keeps extras", func(t *testing.T) {
		content := "\xEF\xBB\xBF Execution_ID , Symbol ,side\n" +
			" E-1 , AAPL ,BUY,extra-value\n" +
			"\n" +
			"E-2,MSFT\n"
		path := filepath.Join(dir, "executions.csv")
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		file, err := reader.ReadFile(KindExecutions, path)
		require.NoError(t, err)

		assert.Equal(t, "executions.csv", file.Name)
		assert.Equal(t, int64(len(content)), file.Size)
		assert.Equal(t, audit.HashFileContent([]byte(content)), file.Hash)
		require.Len(t, file.Records, 2)

		first := file.Records[0]
		assert.Equal(t, 2, first.Number)
		assert.Equal(t, "E-1", first.Fields["execution_id"])
		assert.Equal(t, "AAPL", first.Fields["symbol"])
		assert.Equal(t, "extra-value", first.Fields["_extra_3"])

		second := file.Records[1]
		// the blank third line is skipped but still counted
		assert.Equal(t, 4, second.Number)
		assert.Equal(t, "", second.Fields["side"])
	})

	t.Run("record numbers follow file lines", func(t *testing.T) {
		content := "order_id,side\n" +
			"\n" +
			" , \n" +
			"O-1,BUY\n" +
			"\n" +
			"O-2,\"SE\nLL\"\n" +
			"O-3,SELL\n"
		path := filepath.Join(dir, "orders_lines.csv")
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		file, err := reader.ReadFile(KindOrders, path)
		require.NoError(t, err)
		require.Len(t, file.Records, 3)

		assert.Equal(t, 4, file.Records[0].Number)
		assert.Equal(t, 6, file.Records[1].Number)
		assert.Equal(t, 8, file.Records[2].Number)
		assert.Equal(t, "O-3", file.Records[2].Fields["order_id"])
	})

	t.Run("empty file has no records", func(t *testing.T) {
		path := filepath.Join(dir, "empty.csv")
		require.NoError(t, os.WriteFile(path, nil, 0644))

		file, err := reader.ReadFile(KindCash, path)
		require.NoError(t, err)
		assert.Empty(t, file.Records)
		assert.Zero(t, file.Size)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := reader.ReadFile(KindOrders, filepath.Join(dir, "nope.csv"))
		assert.ErrorIs(t, err, ErrFileMissing)
	})

	t.Run("directory is unreadable", func(t *testing.T) {
		path := filepath.Join(dir, "orders.csv")
		require.NoError(t, os.Mkdir(path, 0755))

		_, err := reader.ReadFile(KindOrders, path)
		assert.ErrorIs(t, err, ErrUnreadableFile)
		assert.NotErrorIs(t, err, ErrFileMissing)
	})
}

func TestKind(t *testing.T) {
	for _, k := range BatchOrder {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseKind("trades")
	assert.Error(t, err)

	assert.Equal(t, []Kind{KindBalances, KindPositions, KindOrders, KindExecutions, KindCash}, BatchOrder)
}
