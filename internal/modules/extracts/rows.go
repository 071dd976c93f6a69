package extracts

import (
	"time"

	"github.com/aristath/eodledger/internal/utils"
	"github.com/shopspring/decimal"
)

// Side is the normalised direction of an order or execution.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Raw keeps the original field map of an extract row and its content hash.
// Unknown columns live here and are never promoted to typed fields.
type Raw struct {
	Fields map[string]string
	Hash   string
}

// Row is a normalised extract row. The set of implementations is closed:
// Order, Execution, PositionSnapshot, BalanceSnapshot and CashEvent.
type Row interface {
	Kind() Kind
	RawRow() Raw
	isRow()
}

// Order is a normalised order row.
type Order struct {
	Raw
	ExternalID   string
	SubmittedAt  *time.Time
	InstrumentID string
	Side         Side
	Quantity     *decimal.Decimal
	LimitPrice   *decimal.Decimal
	OrderType    string
	Status       string
	Currency     string
}

// Execution is a normalised fill.
type Execution struct {
	Raw
	ExternalID      string
	ExternalOrderID string
	InstrumentID    string
	Side            Side
	Quantity        decimal.Decimal
	Price           decimal.Decimal
	Commission      decimal.Decimal
	Fees            decimal.Decimal
	Currency        string
	FilledAt        time.Time
}

// TotalFees is commission plus fees.
func (e Execution) TotalFees() decimal.Decimal {
	return e.Commission.Add(e.Fees)
}

// PositionSnapshot is one instrument's end-of-day position.
type PositionSnapshot struct {
	Raw
	AsOf          utils.Date
	InstrumentID  string
	Quantity      *decimal.Decimal
	AverageCost   *decimal.Decimal
	MarketPrice   *decimal.Decimal
	MarketValue   *decimal.Decimal
	UnrealizedPnL *decimal.Decimal
	Currency      string
}

// BalanceSnapshot is the account's end-of-day balance.
type BalanceSnapshot struct {
	Raw
	AsOf        utils.Date
	Cash        *decimal.Decimal
	NetEquity   *decimal.Decimal
	BuyingPower *decimal.Decimal
	Currency    string
}

// CashEvent is a deposit, withdrawal, dividend, fee or similar ledger movement.
type CashEvent struct {
	Raw
	// ExternalID is empty when the extract carries no event identifier.
	ExternalID  string
	PostedAt    time.Time
	ValueDate   utils.Date
	Type        string
	Amount      decimal.Decimal
	Currency    string
	Description string
}

func (Order) Kind() Kind            { return KindOrders }
func (Execution) Kind() Kind        { return KindExecutions }
func (PositionSnapshot) Kind() Kind { return KindPositions }
func (BalanceSnapshot) Kind() Kind  { return KindBalances }
func (CashEvent) Kind() Kind        { return KindCash }

func (r Raw) RawRow() Raw { return r }

func (Order) isRow()            {}
func (Execution) isRow()        {}
func (PositionSnapshot) isRow() {}
func (BalanceSnapshot) isRow()  {}
func (CashEvent) isRow()        {}
