// Package walkforward implements the Walk-Forward Orchestrator (spec §4.E):
// a rolling train/test window schedule that picks a training winner among
// candidate rule stacks on in-sample data and validates it on the
// immediately following out-of-sample slice, then aggregates the
// out-of-sample trade log across every accepted window into one
// StrategyResult.
//
// Grounded on the teacher's date-window stepping in
// internal/backtest/scheduler.go (ResolveScheduleDates: a calendar-day
// AddDate loop snapped to the nearest available bar) — generalized from a
// one-shot schedule of option-entry dates to a rolling train/test split.
package walkforward

import (
	"time"

	"github.com/contactkeval/kiss-signal/internal/backtest"
	"github.com/contactkeval/kiss-signal/internal/logger"
	"github.com/contactkeval/kiss-signal/internal/ohlcv"
	"github.com/contactkeval/kiss-signal/internal/ruleset"
)

// Window is one train/test split. TrainEndIdx and TestEndIdx are exclusive
// bar-index upper bounds suitable for ohlcv.Frame.Slice(0, idx): slicing
// from zero (rather than from the window start) preserves warmup history so
// indicators see real data, while entries are filtered to the window itself
// so no signal outside the window is counted (spec §4.E "strict temporal
// boundary").
type Window struct {
	TrainStart, TrainEnd time.Time
	TestStart, TestEnd   time.Time
	TrainEndIdx          int
	TestEndIdx           int
}

// Windows computes the rolling schedule: tₖ = t₀ + k·StepDays, stepping
// while tₖ+T+V ≤ end_of_data (spec §4.E). t₀ is the date of the frame's
// first bar; callers are expected to pass the full available history
// (including any warmup the rules need), not a pre-trimmed window.
func Windows(price ohlcv.Frame, wf ruleset.WalkForwardConfig) []Window {
	dates := price.Index()
	if len(dates) == 0 {
		return nil
	}
	if wf.StepDays <= 0 {
		// A zero step never advances the scan cursor tₖ — rather than spin
		// forever, treat an unconfigured (or explicitly disabled) schedule
		// as producing no windows. cfg.InSample is the supported way to
		// bypass walk-forward entirely (spec §4.E).
		return nil
	}
	end := dates[len(dates)-1]

	var out []Window
	for tk := dates[0]; ; tk = tk.AddDate(0, 0, wf.StepDays) {
		trainEnd := tk.AddDate(0, 0, wf.TrainingPeriodDays)
		testEnd := trainEnd.AddDate(0, 0, wf.TestingPeriodDays)
		if testEnd.After(end) {
			break
		}

		trainEndIdx, _ := price.IndexOf(trainEnd)
		testEndIdx, _ := price.IndexOf(testEnd)
		if testEndIdx <= trainEndIdx {
			// Not enough bars between train and test ends to form a usable
			// test slice (e.g. a holiday-heavy window); skip it rather than
			// emit a window with zero test bars.
			continue
		}

		out = append(out, Window{
			TrainStart:  tk,
			TrainEnd:    trainEnd,
			TestStart:   trainEnd,
			TestEnd:     testEnd,
			TrainEndIdx: trainEndIdx,
			TestEndIdx:  testEndIdx,
		})
	}
	return out
}

// candidateResult is a training-window outcome for one candidate rule
// stack, kept only long enough to pick the window's winner.
type candidateResult struct {
	entryRules []ruleset.BoundRule
	metrics    backtest.Metrics
}

// better implements the training-winner tie-break order (spec §4.E step
// 2): higher edge_score; ties broken by higher total_trades, then by
// lexicographically-earlier rule stack.
func better(a, b candidateResult) bool {
	if a.metrics.EdgeScore != b.metrics.EdgeScore {
		return a.metrics.EdgeScore > b.metrics.EdgeScore
	}
	if a.metrics.TotalTrades != b.metrics.TotalTrades {
		return a.metrics.TotalTrades > b.metrics.TotalTrades
	}
	return ruleset.RuleStackString(defsOf(a.entryRules)) < ruleset.RuleStackString(defsOf(b.entryRules))
}

func defsOf(rules []ruleset.BoundRule) []ruleset.RuleDef {
	defs := make([]ruleset.RuleDef, len(rules))
	for i, r := range rules {
		defs[i] = r.Def
	}
	return defs
}

// filterByEntryWindow keeps only the trades whose EntryDate falls in
// [start, end) — the mechanism behind "signals outside the window are
// discarded" even though indicators were evaluated over a longer history.
func filterByEntryWindow(trades []backtest.Trade, start, end time.Time) []backtest.Trade {
	out := make([]backtest.Trade, 0, len(trades))
	for _, tr := range trades {
		if !tr.EntryDate.Before(start) && tr.EntryDate.Before(end) {
			out = append(out, tr)
		}
	}
	return out
}

// Run is the Walk-Forward Orchestrator entry point (spec §4.E
// walk_forward). candidates is the set of entry-rule-stack combinations to
// compete against each other every training window (the Seeker passes one
// or two candidates per call; Run itself is agnostic to how many).
//
// cfg.InSample bypasses the split entirely: candidates[0] is backtested
// in-sample over the full frame via backtest.BacktestCombination, and the
// result is returned with a mandatory warning, since it is not an
// out-of-sample validation and must never be persisted as though it were.
func Run(
	price ohlcv.Frame,
	candidates [][]ruleset.BoundRule,
	bound *ruleset.BoundRulesConfig,
	cfg ruleset.Config,
	symbol string,
	snapshot ruleset.ConfigSnapshot,
	now time.Time,
) (*backtest.StrategyResult, error) {
	if cfg.InSample {
		logger.Warnf("walkforward: in_sample debug override active for %s — result is NOT out-of-sample", symbol)
		if len(candidates) == 0 {
			return nil, nil
		}
		return backtest.BacktestCombination(price, candidates[0], bound, cfg, symbol, snapshot, now)
	}

	windows := Windows(price, cfg.WalkForward)
	if len(windows) == 0 {
		logger.Debugf("walkforward: %s: no windows fit the available history, skipping", symbol)
		return nil, nil
	}

	var oosTrades []backtest.Trade
	var lastWinner []ruleset.BoundRule
	accepted := 0

	for _, w := range windows {
		trainFrame := price.Slice(0, w.TrainEndIdx)

		var winner *candidateResult
		for _, cand := range candidates {
			trades, err := backtest.Run(trainFrame, cand, bound, cfg)
			if err != nil {
				return nil, err
			}
			trades = filterByEntryWindow(trades, w.TrainStart, w.TrainEnd)
			if len(trades) < cfg.MinTradesThreshold {
				logger.Debugf("walkforward: %s: candidate %s rejected in window [%s,%s): %d trades < min_trades_threshold",
					symbol, ruleset.RuleStackString(defsOf(cand)), w.TrainStart.Format("2006-01-02"), w.TrainEnd.Format("2006-01-02"), len(trades))
				continue
			}
			metrics := backtest.ComputeMetrics(trades, trainFrame, cfg)
			cr := candidateResult{entryRules: cand, metrics: metrics}
			if winner == nil || better(cr, *winner) {
				winner = &cr
			}
		}
		if winner == nil {
			logger.Debugf("walkforward: %s: no candidate passed the training gate in window [%s,%s)",
				symbol, w.TrainStart.Format("2006-01-02"), w.TrainEnd.Format("2006-01-02"))
			continue
		}

		testFrame := price.Slice(0, w.TestEndIdx)
		testTrades, err := backtest.Run(testFrame, winner.entryRules, bound, cfg)
		if err != nil {
			return nil, err
		}
		testTrades = filterByEntryWindow(testTrades, w.TestStart, w.TestEnd)
		if len(testTrades) < cfg.WalkForward.MinTradesPerPeriod {
			logger.Debugf("walkforward: %s: window [%s,%s) discarded: %d OOS trades < min_trades_per_period",
				symbol, w.TestStart.Format("2006-01-02"), w.TestEnd.Format("2006-01-02"), len(testTrades))
			continue
		}

		oosTrades = append(oosTrades, testTrades...)
		lastWinner = winner.entryRules
		accepted++
	}

	if accepted == 0 {
		logger.Debugf("walkforward: %s: no window accepted", symbol)
		return nil, nil
	}

	metrics := backtest.ComputeMetrics(oosTrades, price, cfg)
	return &backtest.StrategyResult{
		Symbol:         symbol,
		RuleStack:      defsOf(lastWinner),
		Metrics:        metrics,
		RunTimestamp:   now,
		ConfigSnapshot: snapshot,
		ConfigHash:     snapshot.Hash(),
		Trades:         oosTrades,
	}, nil
}
