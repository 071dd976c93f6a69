package trades

import (
	"github.com/aristath/eodledger/internal/modules/extracts"
	"github.com/aristath/eodledger/internal/utils"
	"github.com/shopspring/decimal"
)

// epsilon below which a quantity counts as exhausted
var epsilon = decimal.New(1, -9)

// MatchResult is the outcome of one replay.
type MatchResult struct {
	Trades []RealizedTrade
	// OpenLots holds what is left per instrument: long lots oldest first,
	// followed by any negative lots opened by unmatched sells.
	OpenLots map[string][]Lot
}

// lotQueue is the open inventory of one instrument. Long lots form a strict
// FIFO queue. Negative lots from unmatched sells are kept apart: they are
// reported but never matched against later executions.
type lotQueue struct {
	long  []Lot
	short []Lot
}

func (q *lotQueue) pushBack(l Lot) {
	q.long = append(q.long, l)
}

// pushFront returns a partially consumed lot to the head of the queue, where
// it stays the oldest available lot.
func (q *lotQueue) pushFront(l Lot) {
	q.long = append([]Lot{l}, q.long...)
}

func (q *lotQueue) popFront() (Lot, bool) {
	if len(q.long) == 0 {
		return Lot{}, false
	}
	l := q.long[0]
	q.long = q.long[1:]
	return l, true
}

// Match replays executions in the given order and returns every realized
// trade plus the residual inventory. Callers must pass executions sorted by
// fill time with ties in arrival order. Lot state lives only for this call.
func Match(accountID int64, executions []extracts.Execution) MatchResult {
	queues := make(map[string]*lotQueue)
	queue := func(instrument string) *lotQueue {
		q, ok := queues[instrument]
		if !ok {
			q = &lotQueue{}
			queues[instrument] = q
		}
		return q
	}

	var trades []RealizedTrade
	for _, exec := range executions {
		q := queue(exec.InstrumentID)

		switch exec.Side {
		case extracts.SideBuy:
			if !exec.Quantity.GreaterThan(epsilon) {
				continue
			}
			q.pushBack(Lot{
				InstrumentID: exec.InstrumentID,
				Quantity:     exec.Quantity,
				Price:        exec.Price,
				OpenedAt:     exec.FilledAt,
				Fees:         exec.TotalFees(),
			})

		case extracts.SideSell:
			trades = append(trades, matchSell(accountID, q, exec)...)
		}
	}

	result := MatchResult{Trades: trades, OpenLots: make(map[string][]Lot)}
	for instrument, q := range queues {
		if len(q.long)+len(q.short) == 0 {
			continue
		}
		lots := make([]Lot, 0, len(q.long)+len(q.short))
		lots = append(lots, q.long...)
		lots = append(lots, q.short...)
		result.OpenLots[instrument] = lots
	}

	return result
}

func matchSell(accountID int64, q *lotQueue, exec extracts.Execution) []RealizedTrade {
	var trades []RealizedTrade
	execFees := exec.TotalFees()
	remaining := exec.Quantity

	for remaining.GreaterThan(epsilon) {
		lot, ok := q.popFront()
		if !ok {
			// Nothing left to close: the remainder opens a negative lot. This is
			// not a short-position model (no borrow cost, no symmetric close).
			q.short = append(q.short, Lot{
				InstrumentID: exec.InstrumentID,
				Quantity:     remaining.Neg(),
				Price:        exec.Price,
				OpenedAt:     exec.FilledAt,
			})
			break
		}

		used := decimal.Min(remaining, lot.Quantity)

		exitFeeShare := decimal.Zero
		if !exec.Quantity.IsZero() {
			exitFeeShare = execFees.Mul(used).Div(exec.Quantity)
		}
		fees := lot.Fees.Add(exitFeeShare)
		gross := exec.Price.Sub(lot.Price).Mul(used)

		trades = append(trades, RealizedTrade{
			AccountID:       accountID,
			ExitExecutionID: exec.ExternalID,
			MatchSeq:        len(trades),
			InstrumentID:    exec.InstrumentID,
			Quantity:        used,
			EntryPrice:      lot.Price,
			EntryTime:       lot.OpenedAt,
			ExitPrice:       exec.Price,
			ExitTime:        exec.FilledAt,
			Fees:            fees,
			GrossPnL:        gross,
			NetPnL:          gross.Sub(fees),
		})

		lot.Quantity = lot.Quantity.Sub(used)
		remaining = remaining.Sub(used)
		if lot.Quantity.GreaterThan(epsilon) {
			q.pushFront(lot)
		}
	}

	return trades
}

// InWindow keeps the trades whose exit falls inside the day window.
func InWindow(trades []RealizedTrade, window utils.DayWindow) []RealizedTrade {
	var out []RealizedTrade
	for _, t := range trades {
		if window.Contains(t.ExitTime) {
			out = append(out, t)
		}
	}
	return out
}
