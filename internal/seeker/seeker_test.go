package seeker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/kiss-signal/internal/ohlcv"
	"github.com/contactkeval/kiss-signal/internal/ruleset"
	"github.com/contactkeval/kiss-signal/internal/rules"
	"github.com/contactkeval/kiss-signal/internal/seeker"
)

// buildTrendingFrame builds n daily bars on a steady uptrend, so any entry
// followed by cfg.HoldPeriod days of holding is a winning trade.
func buildTrendingFrame(t *testing.T, n int) ohlcv.Frame {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]ohlcv.Bar, n)
	for i := 0; i < n; i++ {
		px := 100 + float64(i)*0.5
		bars[i] = ohlcv.Bar{Date: start.AddDate(0, 0, i), Open: px, High: px + 2, Low: px - 2, Close: px, Volume: 1000}
	}
	f, err := ohlcv.NewFrame(bars)
	require.NoError(t, err)
	return f
}

// countingEntryRule fires at the given indices and increments calls[name]
// every time its function is invoked, so tests can assert which candidates
// the seeker actually evaluated.
func countingEntryRule(calls map[string]int, name string, indices ...int) ruleset.BoundRule {
	set := make(map[int]bool, len(indices))
	for _, i := range indices {
		set[i] = true
	}
	fn := func(price ohlcv.Frame) (rules.Signal, error) {
		calls[name]++
		sig := make(rules.Signal, price.Len())
		for i := range sig {
			sig[i] = set[i]
		}
		return sig, nil
	}
	return ruleset.BoundRule{Def: ruleset.RuleDef{Name: name, Type: name}, Fn: fn}
}

func seekerConfig(minEdge float64, minTrades int) ruleset.Config {
	return ruleset.Config{
		HoldPeriod:              3,
		MinTradesThreshold:      1,
		EdgeScoreWeights:        ruleset.EdgeScoreWeights{WinPct: 0.6, Sharpe: 0.4},
		PortfolioInitialCapital: 100_000,
		RiskPerTradePct:         0.01,
		SeekerMinEdgeScore:      minEdge,
		SeekerMinTrades:         minTrades,
		InSample:                true, // isolate seeker logic from walkforward's window schedule
	}
}

// TestFindStrategiesEarlyStopsOnFirstAcceptablePhase1Candidate is spec §8
// scenario 6: entry_signals = [A, B, C], A alone clears the threshold, so
// exactly one backtest (A) runs and B/C are never evaluated.
func TestFindStrategiesEarlyStopsOnFirstAcceptablePhase1Candidate(t *testing.T) {
	price := buildTrendingFrame(t, 60)
	calls := map[string]int{}
	bound := &ruleset.BoundRulesConfig{
		EntrySignals: []ruleset.BoundRule{
			countingEntryRule(calls, "A", 5, 15, 25, 35, 45),
			countingEntryRule(calls, "B", 6, 16, 26, 36, 46),
			countingEntryRule(calls, "C", 7, 17, 27, 37, 47),
		},
	}
	cfg := seekerConfig(0.3, 3)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	snapshot := ruleset.NewSnapshot(ruleset.RulesConfig{}, cfg, "universe.csv", now)

	results, err := seeker.FindStrategies(price, bound, cfg, "TEST", snapshot, now)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].RuleStack[0].Name)
	assert.Equal(t, 1, calls["A"])
	assert.Equal(t, 0, calls["B"], "phase 1 must stop before reaching the second entry rule")
	assert.Equal(t, 0, calls["C"], "phase 1 must stop before reaching the third entry rule")
}

// TestFindStrategiesPhase2EvaluatesBestRulePairedWithTheOther checks that
// when no individual rule clears the (here unreachable) threshold, phase 2
// fires: the best phase-1 rule gets re-evaluated paired with the other
// entry rule before falling back to the best-observed candidate.
func TestFindStrategiesPhase2EvaluatesBestRulePairedWithTheOther(t *testing.T) {
	price := buildTrendingFrame(t, 60)
	calls := map[string]int{}
	bound := &ruleset.BoundRulesConfig{
		EntrySignals: []ruleset.BoundRule{
			// Disjoint index sets: the AND-combined pair fires on no bar at
			// all, so the pair attempt is always rejected by the
			// min_trades_threshold gate, but its rule functions still run.
			countingEntryRule(calls, "A", 5, 15, 25, 35, 45),
			countingEntryRule(calls, "B", 7, 17, 27, 37, 47),
		},
	}
	// edge_score is capped at 1.0 by construction (normalizeSharpe is
	// clipped into [0,1]), so 2.0 is unreachable: nothing ever clears
	// phase 1 or phase 2, forcing the full traversal and a phase-3 fallback.
	cfg := seekerConfig(2.0, 1)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	snapshot := ruleset.NewSnapshot(ruleset.RulesConfig{}, cfg, "universe.csv", now)

	results, err := seeker.FindStrategies(price, bound, cfg, "TEST", snapshot, now)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].RuleStack, 1, "the pair never produces a trade, so the fallback must be a solo rule")
	assert.Equal(t, 5, results[0].Metrics.TotalTrades)
	assert.Equal(t, 4, calls["A"]+calls["B"], "phase 1 (2 calls) plus the one phase-2 pair attempt (2 more calls)")
}

// TestFindStrategiesReturnsEmptySliceWhenNoCandidateProducesAnyResult
// covers the only case where the seeker's result may be empty: no rule, in
// any combination, ever fires.
func TestFindStrategiesReturnsEmptySliceWhenNoCandidateProducesAnyResult(t *testing.T) {
	price := buildTrendingFrame(t, 60)
	calls := map[string]int{}
	bound := &ruleset.BoundRulesConfig{
		EntrySignals: []ruleset.BoundRule{
			countingEntryRule(calls, "A"),
			countingEntryRule(calls, "B"),
		},
	}
	cfg := seekerConfig(0.1, 1)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	snapshot := ruleset.NewSnapshot(ruleset.RulesConfig{}, cfg, "universe.csv", now)

	results, err := seeker.FindStrategies(price, bound, cfg, "TEST", snapshot, now)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestFindStrategiesRejectsConfigWithNoEntrySignals(t *testing.T) {
	price := buildTrendingFrame(t, 60)
	bound := &ruleset.BoundRulesConfig{}
	cfg := seekerConfig(0.1, 1)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	snapshot := ruleset.NewSnapshot(ruleset.RulesConfig{}, cfg, "universe.csv", now)

	_, err := seeker.FindStrategies(price, bound, cfg, "TEST", snapshot, now)
	assert.Error(t, err)
}
