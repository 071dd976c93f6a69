package extracts

import (
	"fmt"
	"strings"
	"time"

	"github.com/aristath/eodledger/internal/modules/audit"
	"github.com/aristath/eodledger/internal/utils"
	"github.com/shopspring/decimal"
)

// RowValidationError reports a row that is missing a required field or whose
// field could not be coerced to its type.
type RowValidationError struct {
	Row    int // file line of the record (header is line 1), 0 when unknown
	Field  string
	Reason string
}

func (e *RowValidationError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Accepted timestamp layouts. Layouts without a zone are read in the batch location.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	utils.DateLayout,
}

// Column aliases, first match wins.
var (
	colOrderID     = []string{"external_order_id", "order_id"}
	colExecutionID = []string{"external_execution_id", "execution_id", "exec_id"}
	colInstrument  = []string{"instrument_id", "symbol"}
	colQuantity    = []string{"quantity", "qty"}
	colPrice       = []string{"price", "fill_price"}
	colNetEquity   = []string{"net_equity", "equity", "net_liquidation"}
	colAsOf        = []string{"as_of", "date"}
	colCashID      = []string{"external_id", "event_id", "transaction_id"}
	colCashType    = []string{"type", "event_type"}
	colAverageCost = []string{"average_cost", "avg_cost"}
	colUnrealized  = []string{"unrealized_pnl", "unrealized"}
	colSubmittedAt = []string{"submitted_at", "created_at"}
	colOrderType   = []string{"order_type"}
	colLimitPrice  = []string{"limit_price"}
	colStatus      = []string{"status"}
	colSide        = []string{"side", "action"}
	colCommission  = []string{"commission"}
	colFees        = []string{"fees"}
	colCurrency    = []string{"currency"}
	colFilledAt    = []string{"filled_at", "executed_at", "time"}
	colMarketPrice = []string{"market_price"}
	colMarketValue = []string{"market_value"}
	colCash        = []string{"cash"}
	colBuyingPower = []string{"buying_power"}
	colPostedAt    = []string{"posted_at"}
	colValueDate   = []string{"value_date"}
	colAmount      = []string{"amount"}
	colDescription = []string{"description"}
)

// Normalize converts one raw record of the given kind into its typed row.
// Unknown columns are kept in the row's raw map. A missing or malformed
// required field yields a *RowValidationError.
func Normalize(kind Kind, fields map[string]string, loc *time.Location) (Row, error) {
	if loc == nil {
		loc = time.UTC
	}
	p := &fieldParser{fields: fields, loc: loc}
	raw := Raw{Fields: fields, Hash: audit.HashRow(fields)}

	var row Row
	switch kind {
	case KindOrders:
		row = p.order(raw)
	case KindExecutions:
		row = p.execution(raw)
	case KindPositions:
		row = p.position(raw)
	case KindBalances:
		row = p.balance(raw)
	case KindCash:
		row = p.cashEvent(raw)
	default:
		return nil, fmt.Errorf("unknown extract kind %d", int(kind))
	}

	if p.err != nil {
		return nil, p.err
	}
	return row, nil
}

// fieldParser records the first validation failure and turns every later
// lookup into a no-op, so the per-kind builders read top to bottom.
type fieldParser struct {
	fields map[string]string
	loc    *time.Location
	err    *RowValidationError
}

func (p *fieldParser) fail(field, reason string) {
	if p.err == nil {
		p.err = &RowValidationError{Field: field, Reason: reason}
	}
}

func (p *fieldParser) lookup(names []string) string {
	for _, name := range names {
		if v, ok := p.fields[name]; ok && v != "" {
			return v
		}
	}
	return ""
}

func (p *fieldParser) requiredString(names []string) string {
	v := p.lookup(names)
	if v == "" {
		p.fail(names[0], "required field missing")
	}
	return v
}

func (p *fieldParser) decimalValue(names []string, v string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(v, ",", ""))
	if err != nil {
		p.fail(names[0], fmt.Sprintf("not a decimal: %q", v))
		return decimal.Zero, false
	}
	return d, true
}

func (p *fieldParser) requiredDecimal(names []string) decimal.Decimal {
	v := p.requiredString(names)
	if v == "" {
		return decimal.Zero
	}
	d, _ := p.decimalValue(names, v)
	return d
}

func (p *fieldParser) optionalDecimal(names []string) *decimal.Decimal {
	v := p.lookup(names)
	if v == "" {
		return nil
	}
	d, ok := p.decimalValue(names, v)
	if !ok {
		return nil
	}
	return &d
}

func (p *fieldParser) defaultDecimal(names []string) decimal.Decimal {
	if d := p.optionalDecimal(names); d != nil {
		return *d
	}
	return decimal.Zero
}

func (p *fieldParser) nonNegative(names []string, d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		p.fail(names[0], "must not be negative")
	}
	return d
}

func (p *fieldParser) parseTime(names []string, v string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, p.loc); err == nil {
			return t, true
		}
	}
	p.fail(names[0], fmt.Sprintf("not a timestamp: %q", v))
	return time.Time{}, false
}

func (p *fieldParser) requiredTime(names []string) time.Time {
	v := p.requiredString(names)
	if v == "" {
		return time.Time{}
	}
	t, _ := p.parseTime(names, v)
	return t
}

func (p *fieldParser) optionalTime(names []string) *time.Time {
	v := p.lookup(names)
	if v == "" {
		return nil
	}
	t, ok := p.parseTime(names, v)
	if !ok {
		return nil
	}
	return &t
}

func (p *fieldParser) requiredDate(names []string) utils.Date {
	v := p.requiredString(names)
	if v == "" {
		return utils.Date{}
	}
	d, err := utils.NormalizeDate(v)
	if err != nil {
		p.fail(names[0], fmt.Sprintf("not a date: %q", v))
	}
	return d
}

func (p *fieldParser) side(names []string, required bool) Side {
	v := p.lookup(names)
	if v == "" {
		if required {
			p.fail(names[0], "required field missing")
		}
		return ""
	}
	s, ok := ParseSide(v)
	if !ok {
		p.fail(names[0], fmt.Sprintf("unknown side %q", v))
	}
	return s
}

// ParseSide accepts BUY/SELL and the common broker abbreviations in any case.
func ParseSide(v string) (Side, bool) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "BUY", "B", "BOT", "BOUGHT":
		return SideBuy, true
	case "SELL", "S", "SLD", "SOLD":
		return SideSell, true
	}
	return "", false
}

func (p *fieldParser) order(raw Raw) Order {
	return Order{
		Raw:          raw,
		ExternalID:   p.requiredString(colOrderID),
		SubmittedAt:  p.optionalTime(colSubmittedAt),
		InstrumentID: utils.NormalizeSymbol(p.lookup(colInstrument)),
		Side:         p.side(colSide, false),
		Quantity:     p.optionalDecimal(colQuantity),
		LimitPrice:   p.optionalDecimal(colLimitPrice),
		OrderType:    strings.ToUpper(p.lookup(colOrderType)),
		Status:       strings.ToUpper(p.lookup(colStatus)),
		Currency:     strings.ToUpper(p.lookup(colCurrency)),
	}
}

func (p *fieldParser) execution(raw Raw) Execution {
	e := Execution{
		Raw:             raw,
		ExternalID:      p.requiredString(colExecutionID),
		ExternalOrderID: p.lookup(colOrderID),
		InstrumentID:    utils.NormalizeSymbol(p.requiredString(colInstrument)),
		Side:            p.side(colSide, true),
		Quantity:        p.nonNegative(colQuantity, p.requiredDecimal(colQuantity)),
		Price:           p.nonNegative(colPrice, p.requiredDecimal(colPrice)),
		Commission:      p.defaultDecimal(colCommission),
		Fees:            p.defaultDecimal(colFees),
		Currency:        strings.ToUpper(p.lookup(colCurrency)),
		FilledAt:        p.requiredTime(colFilledAt),
	}
	return e
}

func (p *fieldParser) position(raw Raw) PositionSnapshot {
	return PositionSnapshot{
		Raw:           raw,
		AsOf:          p.requiredDate(colAsOf),
		InstrumentID:  utils.NormalizeSymbol(p.requiredString(colInstrument)),
		Quantity:      p.optionalDecimal(colQuantity),
		AverageCost:   p.optionalDecimal(colAverageCost),
		MarketPrice:   p.optionalDecimal(colMarketPrice),
		MarketValue:   p.optionalDecimal(colMarketValue),
		UnrealizedPnL: p.optionalDecimal(colUnrealized),
		Currency:      strings.ToUpper(p.lookup(colCurrency)),
	}
}

func (p *fieldParser) balance(raw Raw) BalanceSnapshot {
	return BalanceSnapshot{
		Raw:         raw,
		AsOf:        p.requiredDate(colAsOf),
		Cash:        p.optionalDecimal(colCash),
		NetEquity:   p.optionalDecimal(colNetEquity),
		BuyingPower: p.optionalDecimal(colBuyingPower),
		Currency:    strings.ToUpper(p.lookup(colCurrency)),
	}
}

func (p *fieldParser) cashEvent(raw Raw) CashEvent {
	return CashEvent{
		Raw:         raw,
		ExternalID:  p.lookup(colCashID),
		PostedAt:    p.requiredTime(colPostedAt),
		ValueDate:   p.requiredDate(colValueDate),
		Type:        strings.ToUpper(p.requiredString(colCashType)),
		Amount:      p.requiredDecimal(colAmount),
		Currency:    strings.ToUpper(p.lookup(colCurrency)),
		Description: p.lookup(colDescription),
	}
}
