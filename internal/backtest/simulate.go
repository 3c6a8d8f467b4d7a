package backtest

import (
	"fmt"
	"strconv"

	"github.com/contactkeval/kiss-signal/internal/logger"
	"github.com/contactkeval/kiss-signal/internal/ohlcv"
	"github.com/contactkeval/kiss-signal/internal/ruleset"
	"github.com/contactkeval/kiss-signal/internal/rules"
	"github.com/contactkeval/kiss-signal/internal/sizing"
)

// andAll combines bar-level signals with logical AND; an empty set of
// signals is vacuously all-true (no gate configured).
func andAll(n int, sigs ...rules.Signal) rules.Signal {
	out := make(rules.Signal, n)
	for i := range out {
		out[i] = true
	}
	for _, s := range sigs {
		for i := range out {
			out[i] = out[i] && s[i]
		}
	}
	return out
}

// orAll OR-combines bar-level signals; an empty set is all-false.
func orAll(n int, sigs ...rules.Signal) rules.Signal {
	out := make(rules.Signal, n)
	for _, s := range sigs {
		for i := range out {
			out[i] = out[i] || s[i]
		}
	}
	return out
}

func evalSection(price ohlcv.Frame, section []ruleset.BoundRule) ([]rules.Signal, error) {
	out := make([]rules.Signal, 0, len(section))
	for _, br := range section {
		sig, err := br.Fn(price)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, nil
}

// Run is the core simulation: precondition/context gating, entry
// combination, exit construction with priority stop-loss > take-profit >
// trailing > indicator > time, position sizing, and trade-log production
// (spec §4.D steps 1-6). It never applies the min_trades_threshold gate or
// computes Metrics — callers (BacktestCombination, internal/walkforward)
// decide what to do with the raw trade log.
//
// Execution convention (spec §9 open question, resolved): entries fire on
// the signal bar's own close; exits fire at the triggering event's price —
// the stop/target level for SL/TP, the bar's close otherwise. The entry bar
// itself is protected: stops are evaluated starting the bar after entry.
func Run(price ohlcv.Frame, entryRules []ruleset.BoundRule, bound *ruleset.BoundRulesConfig, cfg ruleset.Config) ([]Trade, error) {
	n := price.Len()
	if n == 0 {
		return nil, nil
	}

	preconditionSigs, err := evalSection(price, bound.Preconditions)
	if err != nil {
		return nil, err
	}
	preconditionGate := andAll(n, preconditionSigs...)
	if !anyTrue(preconditionGate) {
		return nil, nil
	}

	contextSigs, err := evalSection(price, bound.ContextFilters)
	if err != nil {
		return nil, err
	}
	contextGate := andAll(n, contextSigs...)

	entrySigs, err := evalSection(price, entryRules)
	if err != nil {
		return nil, err
	}
	entries := andAll(n, append([]rules.Signal{preconditionGate, contextGate}, entrySigs...)...)

	indicatorSigs, err := evalSection(price, bound.ExitConditions)
	if err != nil {
		return nil, err
	}
	indicatorExits := orAll(n, indicatorSigs...)

	sizes := sizing.Series(price, entries, bound.Trailing, cfg.PortfolioInitialCapital, cfg.RiskPerTradePct, cfg.AllowUnlimitedSize)

	return simulate(price, entries, indicatorExits, sizes, bound, cfg), nil
}

func anyTrue(s rules.Signal) bool {
	for _, v := range s {
		if v {
			return true
		}
	}
	return false
}

// simulate walks the frame bar by bar. At most one position is open at a
// time — a second entry signal while a position is open is ignored, matching
// the "at most one OPEN position per symbol" invariant the Lifecycle also
// enforces (spec §3).
func simulate(price ohlcv.Frame, entries rules.Signal, indicatorExits rules.Signal, sizes []float64, bound *ruleset.BoundRulesConfig, cfg ruleset.Config) []Trade {
	closes := price.Closes()
	highs := price.Highs()
	lows := price.Lows()
	dates := price.Index()
	n := price.Len()

	var trades []Trade
	open := false
	var entryIdx int
	var entryPrice, shares float64
	var chandelierLevels []float64

	closeTrade := func(t int, exitPrice float64, reason string) {
		ret := (exitPrice - entryPrice) / entryPrice
		trades = append(trades, Trade{
			EntryDate:  dates[entryIdx],
			EntryPrice: entryPrice,
			Shares:     shares,
			ExitDate:   dates[t],
			ExitPrice:  exitPrice,
			ExitReason: reason,
			ReturnPct:  ret,
		})
		open = false
	}

	for t := 0; t < n; t++ {
		if !open {
			if entries[t] && sizes[t] > 0 {
				open = true
				entryIdx = t
				entryPrice = closes[t]
				shares = sizes[t]
				if bound.Trailing != nil {
					chandelierLevels = rules.ChandelierExitLevel(price, entryIdx, bound.Trailing.ATRPeriod, bound.Trailing.ATRMultiplier)
				}
			}
			continue
		}

		// The entry bar is protected: no same-bar stop exit (spec §9 open
		// question resolution).
		if t == entryIdx {
			continue
		}

		if bound.StopLossPct != nil {
			stopLevel := entryPrice * (1 - *bound.StopLossPct)
			if lows[t] <= stopLevel {
				closeTrade(t, stopLevel, fmt.Sprintf("Stop-loss at -%.1f%%", *bound.StopLossPct*100))
				continue
			}
		}
		if bound.TakeProfitPct != nil {
			targetLevel := entryPrice * (1 + *bound.TakeProfitPct)
			if highs[t] >= targetLevel {
				closeTrade(t, targetLevel, fmt.Sprintf("Take-profit at +%.1f%%", *bound.TakeProfitPct*100))
				continue
			}
		}
		if bound.Trailing != nil && chandelierLevels != nil && closes[t] <= chandelierLevels[t] {
			closeTrade(t, closes[t], "Trailing: Chandelier")
			continue
		}
		if indicatorExits[t] {
			closeTrade(t, closes[t], "Rule: indicator exit")
			continue
		}
		if t-entryIdx >= cfg.HoldPeriod {
			closeTrade(t, closes[t], "Time limit: "+strconv.Itoa(cfg.HoldPeriod)+" days")
			continue
		}
	}

	if open {
		logger.Debugf("backtest: position open at end of window, closing at last bar (data_end)")
		closeTrade(n-1, closes[n-1], "data_end")
	}

	return trades
}
