package backtest

import (
	"math"

	"github.com/contactkeval/kiss-signal/internal/ohlcv"
	"github.com/contactkeval/kiss-signal/internal/ruleset"
)

// ComputeMetrics recomputes total_return, win_pct, sharpe, avg_return, and
// edge_score over a trade log against price (spec §4.D step 8). It is
// shared by the single-window path and internal/walkforward, which calls it
// once on the concatenated OOS trade log across accepted windows (spec
// §4.E "Aggregation").
func ComputeMetrics(trades []Trade, price ohlcv.Frame, cfg ruleset.Config) Metrics {
	if len(trades) == 0 {
		return Metrics{}
	}

	equity := equityCurve(trades, price, cfg.PortfolioInitialCapital)
	finalEquity := cfg.PortfolioInitialCapital
	if len(equity) > 0 {
		finalEquity = equity[len(equity)-1]
	}

	wins := 0
	sumReturn := 0.0
	for _, tr := range trades {
		if tr.ReturnPct > 0 {
			wins++
		}
		sumReturn += tr.ReturnPct
	}

	sharpe := annualizedSharpe(dailyReturns(equity))
	m := Metrics{
		TotalReturn: (finalEquity - cfg.PortfolioInitialCapital) / cfg.PortfolioInitialCapital,
		WinPct:      float64(wins) / float64(len(trades)),
		Sharpe:      sharpe,
		AvgReturn:   sumReturn / float64(len(trades)),
		TotalTrades: len(trades),
	}
	m.EdgeScore = cfg.EdgeScoreWeights.WinPct*m.WinPct + cfg.EdgeScoreWeights.Sharpe*normalizeSharpe(sharpe)
	return m
}

// normalizeSharpe clips sharpe into [0, 3] and scales to [0, 1] (spec §9:
// "This spec fixes clip(sharpe, 0, 3)/3 for determinism").
func normalizeSharpe(sharpe float64) float64 {
	clipped := math.Max(0, math.Min(3, sharpe))
	return clipped / 3
}

// equityCurve marks the portfolio to market at every bar: flat cash between
// trades, mark-to-market on shares while a position is open. Trades are
// assumed chronologically ordered and non-overlapping (simulate() enforces
// at most one open position at a time).
func equityCurve(trades []Trade, price ohlcv.Frame, initialCapital float64) []float64 {
	n := price.Len()
	if n == 0 {
		return nil
	}
	closes := price.Closes()
	dates := price.Index()
	equity := make([]float64, n)

	cash := initialCapital
	ti := 0
	for t := 0; t < n; t++ {
		for ti < len(trades) && dates[t].After(trades[ti].ExitDate) {
			cash += trades[ti].Shares * (trades[ti].ExitPrice - trades[ti].EntryPrice)
			ti++
		}
		switch {
		case ti < len(trades) && !dates[t].Before(trades[ti].EntryDate) && dates[t].Equal(trades[ti].ExitDate):
			equity[t] = cash + trades[ti].Shares*(trades[ti].ExitPrice-trades[ti].EntryPrice)
		case ti < len(trades) && !dates[t].Before(trades[ti].EntryDate) && dates[t].Before(trades[ti].ExitDate):
			equity[t] = cash + trades[ti].Shares*(closes[t]-trades[ti].EntryPrice)
		default:
			equity[t] = cash
		}
	}
	return equity
}

// dailyReturns converts an equity curve into simple bar-over-bar returns,
// skipping a bar whose prior equity was zero (cannot happen with a
// positive initial capital, guarded defensively).
func dailyReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		out = append(out, (equity[i]-equity[i-1])/equity[i-1])
	}
	return out
}

// annualizedSharpe computes mean(returns)/stdev(returns) * sqrt(252) with a
// zero risk-free rate (spec §4.D: "annualized Sharpe on daily portfolio
// returns (risk-free = 0, scaling factor √252)"). Grounded on the teacher's
// AnnualizedVolatility (internal/backtest/engine/executor.go), adapted from
// annualizing a standalone volatility figure to a Sharpe ratio over the
// strategy's own daily returns.
func annualizedSharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	stdev := math.Sqrt(variance)
	if stdev == 0 {
		return 0
	}
	return (mean / stdev) * math.Sqrt(252.0)
}
