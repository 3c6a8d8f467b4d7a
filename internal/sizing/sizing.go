// Package sizing is the Position Sizer component (spec §4.C): converts an
// entry signal sequence into ATR-risk-based share counts, replacing the
// "unlimited leverage" legacy mode (spec §9) with a bounded, risk-per-trade
// allocation.
package sizing

import (
	"math"

	"github.com/contactkeval/kiss-signal/internal/logger"
	"github.com/contactkeval/kiss-signal/internal/ohlcv"
	"github.com/contactkeval/kiss-signal/internal/ruleset"
	"github.com/contactkeval/kiss-signal/internal/rules"
)

// defaultATRPeriod and defaultMultiplier back spec §4.C's algorithm: ATR(22)
// and k=2.0 absent an ATR-based trailing stop in exit_conditions.
const (
	defaultATRPeriod  = 22
	defaultMultiplier = 2.0
)

// Series computes size_series(price_data, entry_signals, exit_conditions,
// initial_capital, risk_per_trade_pct) → float sequence aligned to
// price.Index, per spec §4.C. Non-entry bars hold math.NaN(); the
// Backtester reads only entry-bar values.
//
// trailing is the bound Chandelier spec from internal/ruleset (nil if no
// trailing stop is configured); its ATRMultiplier supplies k when present.
// allowUnlimitedSize is the explicit debug-only escape hatch (spec §9); it
// always logs a warning and must never be set outside a debug run.
func Series(price ohlcv.Frame, entries rules.Signal, trailing *ruleset.TrailingStopSpec, initialCapital, riskPerTradePct float64, allowUnlimitedSize bool) []float64 {
	n := price.Len()
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if n == 0 || len(entries) != n {
		return out
	}

	if allowUnlimitedSize {
		logger.Warnf("sizing: allow_unlimited_size is set — position sizes are uncapped and backtest metrics are not realistic")
	}

	k := defaultMultiplier
	if trailing != nil {
		k = trailing.ATRMultiplier
	}

	atr := rules.ATR(price, defaultATRPeriod)
	riskAmount := initialCapital * riskPerTradePct

	for t := 0; t < n; t++ {
		if !entries[t] {
			continue
		}
		if allowUnlimitedSize {
			out[t] = math.Inf(1)
			continue
		}
		riskPerShare := atr[t] * k
		if math.IsNaN(riskPerShare) || riskPerShare <= 0 {
			out[t] = 0
			continue
		}
		out[t] = math.Floor(riskAmount / riskPerShare)
	}
	return out
}
