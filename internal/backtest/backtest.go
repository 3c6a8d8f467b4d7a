package backtest

import (
	"time"

	"github.com/contactkeval/kiss-signal/internal/ohlcv"
	"github.com/contactkeval/kiss-signal/internal/ruleset"
)

// BacktestCombination implements the Single-Window Backtester contract
// (spec §4.D): runs entryRules over price, rejects on the precondition gate
// or the min_trades_threshold floor, and returns a populated StrategyResult
// otherwise. Returns (nil, nil) — not an error — for a rejected combination;
// callers (internal/seeker, internal/walkforward) treat nil as "no result".
func BacktestCombination(
	price ohlcv.Frame,
	entryRules []ruleset.BoundRule,
	bound *ruleset.BoundRulesConfig,
	cfg ruleset.Config,
	symbol string,
	snapshot ruleset.ConfigSnapshot,
	now time.Time,
) (*StrategyResult, error) {
	trades, err := Run(price, entryRules, bound, cfg)
	if err != nil {
		return nil, err
	}
	if len(trades) < cfg.MinTradesThreshold {
		return nil, nil
	}

	metrics := ComputeMetrics(trades, price, cfg)

	defs := make([]ruleset.RuleDef, len(entryRules))
	for i, br := range entryRules {
		defs[i] = br.Def
	}

	return &StrategyResult{
		Symbol:         symbol,
		RuleStack:      defs,
		Metrics:        metrics,
		RunTimestamp:   now,
		ConfigSnapshot: snapshot,
		ConfigHash:     snapshot.Hash(),
		Trades:         trades,
	}, nil
}
