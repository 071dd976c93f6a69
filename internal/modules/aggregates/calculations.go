package aggregates

import (
	"github.com/aristath/eodledger/internal/modules/trades"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Drawdown returns the running peak over history plus current and the
// fractional decline of current from that peak (0 when the peak is 0).
func Drawdown(history []float64, current float64) (peak, drawdown float64) {
	series := make([]float64, 0, len(history)+1)
	series = append(series, history...)
	series = append(series, current)

	peak = floats.Max(series)
	if peak == 0 {
		return peak, 0
	}
	return peak, (current - peak) / peak
}

// Summarize computes the day's trade statistics. The average statistic is
// the mean risk multiple over trades that carry one, nil when none do.
func Summarize(dayTrades []trades.RealizedTrade) (pnlSum decimal.Decimal, wins, losses int, winRate float64, avg *float64) {
	pnlSum = decimal.Zero
	var multiples []float64

	for _, t := range dayTrades {
		pnlSum = pnlSum.Add(t.NetPnL)
		switch {
		case t.IsWin():
			wins++
		case t.IsLoss():
			losses++
		}
		if t.RiskMultiple != nil {
			multiples = append(multiples, t.RiskMultiple.InexactFloat64())
		}
	}

	if len(dayTrades) > 0 {
		winRate = float64(wins) / float64(len(dayTrades))
	}
	if len(multiples) > 0 {
		mean := stat.Mean(multiples, nil)
		avg = &mean
	}
	return pnlSum, wins, losses, winRate, avg
}
