package testing

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// SeedAccount inserts an account row and returns its surrogate id.
func SeedAccount(t *testing.T, db *sql.DB, externalID string) int64 {
	t.Helper()
	res, err := db.Exec(
		"INSERT INTO accounts (external_id, name, created_at) VALUES (?, ?, ?)",
		externalID, externalID, 1700000000,
	)
	if err != nil {
		t.Fatalf("Failed to seed account %s: %v", externalID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("Failed to read account id: %v", err)
	}
	return id
}

// WriteExtract writes an extract file into the per-account date directory
// (baseDir/<account>/<date>/<prefix>_<account>_<compact date>.csv) and returns its path.
// lines are joined with newlines; the first line is the header.
func WriteExtract(t *testing.T, baseDir, account, date, prefix string, lines ...string) string {
	t.Helper()
	dir := filepath.Join(baseDir, account, date)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create extract dir: %v", err)
	}
	name := prefix + "_" + account + "_" + strings.ReplaceAll(date, "-", "") + ".csv"
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("Failed to write extract %s: %v", path, err)
	}
	return path
}

// ExecutionsHeader is the header line used by execution extract fixtures.
const ExecutionsHeader = "execution_id,order_id,symbol,side,quantity,price,commission,fees,currency,filled_at"

// BalancesHeader is the header line used by balance extract fixtures.
const BalancesHeader = "as_of,cash,net_equity,buying_power,currency"

// WriteStandardDay writes a complete, valid set of five extracts for one
// account-day: two buys and one partially closing sell of AAPL.
func WriteStandardDay(t *testing.T, baseDir, account, date string) {
	t.Helper()
	WriteExtract(t, baseDir, account, date, "balances",
		BalancesHeader,
		date+",5000.00,25000.00,10000.00,USD",
	)
	WriteExtract(t, baseDir, account, date, "positions",
		"as_of,symbol,quantity,average_cost,market_price,market_value,unrealized_pnl,currency",
		date+",AAPL,5,100,120,600,100,USD",
	)
	WriteExtract(t, baseDir, account, date, "orders",
		"order_id,symbol,side,quantity,limit_price,order_type,status,submitted_at",
		"O-1,AAPL,BUY,10,100,LMT,FILLED,"+date+"T14:00:00Z",
		"O-2,AAPL,BUY,10,110,LMT,FILLED,"+date+"T15:00:00Z",
		"O-3,AAPL,SELL,15,120,LMT,FILLED,"+date+"T19:00:00Z",
	)
	WriteExtract(t, baseDir, account, date, "executions",
		ExecutionsHeader,
		"E-1,O-1,AAPL,BUY,10,100,1.00,0,USD,"+date+"T14:00:01Z",
		"E-2,O-2,AAPL,BUY,10,110,1.00,0,USD,"+date+"T15:00:01Z",
		"E-3,O-3,AAPL,SELL,15,120,1.50,0,USD,"+date+"T19:00:01Z",
	)
	WriteExtract(t, baseDir, account, date, "cash",
		"event_id,posted_at,value_date,type,amount,currency,description",
		"C-1,"+date+"T12:00:00Z,"+date+",DIVIDEND,12.50,USD,AAPL dividend",
	)
}
