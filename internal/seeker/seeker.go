// Package seeker implements the Strategy Seeker (spec §4.F): a bounded,
// no-param-tuning search over entry rule stacks of length at most two,
// stopping at the first candidate that clears the seeker's acceptance
// threshold, with a best-observed fallback when nothing does.
package seeker

import (
	"time"

	"github.com/contactkeval/kiss-signal/internal/apperrors"
	"github.com/contactkeval/kiss-signal/internal/backtest"
	"github.com/contactkeval/kiss-signal/internal/logger"
	"github.com/contactkeval/kiss-signal/internal/metrics"
	"github.com/contactkeval/kiss-signal/internal/ohlcv"
	"github.com/contactkeval/kiss-signal/internal/ruleset"
	"github.com/contactkeval/kiss-signal/internal/walkforward"
)

// FindStrategies runs the three-phase search and returns at most one
// StrategyResult (spec §4.F: "len 0 or 1"). Preconditions, context filters,
// exit conditions, and the walk-forward split are fixed by bound/cfg — only
// the entry rule stack varies across candidates.
//
// Phase 1: each entry rule alone, in the config's declaration order;
// returns immediately on the first to meet seeker_min_edge_score and
// seeker_min_trades.
//
// Phase 2 (only if phase 1 found nothing and there is more than one entry
// rule): the best individual result from phase 1 paired with every other
// entry rule in turn; returns immediately on the first pair to clear the
// threshold.
//
// Phase 3: if nothing cleared the threshold, returns the best-scored
// candidate observed across every phase-1 and phase-2 attempt. Returns an
// empty (non-nil) slice only if every candidate attempted produced no
// result at all (e.g. every combination failed the precondition gate).
func FindStrategies(
	price ohlcv.Frame,
	bound *ruleset.BoundRulesConfig,
	cfg ruleset.Config,
	symbol string,
	snapshot ruleset.ConfigSnapshot,
	now time.Time,
) ([]*backtest.StrategyResult, error) {
	if len(bound.EntrySignals) == 0 {
		return nil, apperrors.Configurationf("seeker.FindStrategies", "%s: no entry_signals configured", symbol)
	}

	var best *backtest.StrategyResult

	// tryCandidate backtests one entry-rule stack via the walk-forward
	// orchestrator, logs the accept/reject decision (spec §4.F "every
	// candidate tested must be logged"), and tracks the best-scored result
	// seen so far for the phase-3 fallback.
	tryCandidate := func(stack []ruleset.BoundRule) (*backtest.StrategyResult, error) {
		result, err := walkforward.Run(price, [][]ruleset.BoundRule{stack}, bound, cfg, symbol, snapshot, now)
		if err != nil {
			return nil, err
		}
		stackName := ruleset.RuleStackString(defsOf(stack))
		if result == nil {
			logger.Infof("seeker: %s: candidate %s rejected: no result (gates never passed)", symbol, stackName)
			metrics.RecordCandidate(symbol, false)
			return nil, nil
		}
		accept := result.Metrics.EdgeScore >= cfg.SeekerMinEdgeScore && result.Metrics.TotalTrades >= cfg.SeekerMinTrades
		logger.Infof("seeker: %s: candidate %s edge_score=%.4f total_trades=%d accept=%v",
			symbol, stackName, result.Metrics.EdgeScore, result.Metrics.TotalTrades, accept)
		metrics.RecordCandidate(symbol, accept)
		if best == nil || result.Metrics.EdgeScore > best.Metrics.EdgeScore {
			best = result
		}
		if accept {
			return result, nil
		}
		return nil, nil
	}

	// Phase 1: individual rules, declaration order, early return.
	for _, r := range bound.EntrySignals {
		result, err := tryCandidate([]ruleset.BoundRule{r})
		if err != nil {
			return nil, err
		}
		if result != nil {
			return []*backtest.StrategyResult{result}, nil
		}
	}

	// Phase 2: best individual result paired with each other entry rule.
	if len(bound.EntrySignals) > 1 && best != nil {
		bestRule, ok := singleRuleOf(best, bound.EntrySignals)
		if ok {
			for _, c := range bound.EntrySignals {
				if c.Def.Name == bestRule.Def.Name {
					continue
				}
				result, err := tryCandidate([]ruleset.BoundRule{bestRule, c})
				if err != nil {
					return nil, err
				}
				if result != nil {
					return []*backtest.StrategyResult{result}, nil
				}
			}
		}
	}

	// Phase 3: fallback to the best-scored candidate observed.
	if best == nil {
		logger.Infof("seeker: %s: no viable candidate found in any phase", symbol)
		return []*backtest.StrategyResult{}, nil
	}
	logger.Infof("seeker: %s: falling back to best-scored candidate %s below threshold (edge_score=%.4f)",
		symbol, ruleset.RuleStackString(best.RuleStack), best.Metrics.EdgeScore)
	return []*backtest.StrategyResult{best}, nil
}

// singleRuleOf finds the BoundRule in entrySignals whose name matches a
// phase-1 result's (single-rule) RuleStack.
func singleRuleOf(result *backtest.StrategyResult, entrySignals []ruleset.BoundRule) (ruleset.BoundRule, bool) {
	if len(result.RuleStack) != 1 {
		return ruleset.BoundRule{}, false
	}
	for _, r := range entrySignals {
		if r.Def.Name == result.RuleStack[0].Name {
			return r, true
		}
	}
	return ruleset.BoundRule{}, false
}

func defsOf(rules []ruleset.BoundRule) []ruleset.RuleDef {
	defs := make([]ruleset.RuleDef, len(rules))
	for i, r := range rules {
		defs[i] = r.Def
	}
	return defs
}
