package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/kiss-signal/internal/backtest"
	"github.com/contactkeval/kiss-signal/internal/ruleset"
	"github.com/contactkeval/kiss-signal/internal/store"
)

func sampleResult(symbol string, stack []ruleset.RuleDef, configHash string, ts time.Time) *backtest.StrategyResult {
	return &backtest.StrategyResult{
		Symbol:       symbol,
		RuleStack:    stack,
		Metrics:      backtest.Metrics{EdgeScore: 0.71, WinPct: 0.6, Sharpe: 1.2, TotalReturn: 0.15, TotalTrades: 12},
		RunTimestamp: ts,
		ConfigSnapshot: ruleset.ConfigSnapshot{
			Timestamp: ts,
		},
		ConfigHash: configHash,
	}
}

func TestSaveStrategyThenQueryRoundTrips(t *testing.T) {
	s := openTestStore(t)
	stack := []ruleset.RuleDef{{Name: "rsi_oversold", Type: "rsi_oversold", Params: map[string]any{"period": float64(14)}}}
	ts := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveStrategy(sampleResult("RELIANCE", stack, "abcd1234", ts)))

	rows, err := s.QueryStrategies(store.QueryFilter{Symbol: "RELIANCE"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "RELIANCE", rows[0].Symbol)
	assert.Equal(t, "rsi_oversold", rows[0].RuleStack[0].Name)
	assert.InDelta(t, 0.71, rows[0].Metrics.EdgeScore, 1e-9)
	assert.Equal(t, 12, rows[0].Metrics.TotalTrades)
}

func TestSaveStrategyOnConflictReplacesRatherThanDuplicates(t *testing.T) {
	s := openTestStore(t)
	stack := []ruleset.RuleDef{{Name: "rsi_oversold", Type: "rsi_oversold"}}
	t1 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)

	first := sampleResult("RELIANCE", stack, "abcd1234", t1)
	require.NoError(t, s.SaveStrategy(first))

	second := sampleResult("RELIANCE", stack, "abcd1234", t2)
	second.Metrics.EdgeScore = 0.9
	require.NoError(t, s.SaveStrategy(second))

	rows, err := s.QueryStrategies(store.QueryFilter{Symbol: "RELIANCE"})
	require.NoError(t, err)
	require.Len(t, rows, 1, "same (symbol, rule_stack, config_hash) must replace, not append")
	assert.InDelta(t, 0.9, rows[0].Metrics.EdgeScore, 1e-9)
}

func TestQueryStrategiesDedupsToTheHighestIdPerSymbolAndRuleStack(t *testing.T) {
	s := openTestStore(t)
	stackA := []ruleset.RuleDef{{Name: "rsi_oversold", Type: "rsi_oversold"}}
	stackB := []ruleset.RuleDef{{Name: "sma_cross", Type: "sma_cross"}}
	t1 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveStrategy(sampleResult("RELIANCE", stackA, "hash1", t1)))
	require.NoError(t, s.SaveStrategy(sampleResult("RELIANCE", stackA, "hash2", t2)))
	require.NoError(t, s.SaveStrategy(sampleResult("RELIANCE", stackB, "hash2", t2)))

	rows, err := s.QueryStrategies(store.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 2, "two distinct (symbol, rule_stack) pairs even though three rows were written")
}

func TestClearCurrentStrategiesDeletesOnlyActiveCombinationsAtTheGivenHash(t *testing.T) {
	s := openTestStore(t)
	stackA := []ruleset.RuleDef{{Name: "rsi_oversold", Type: "rsi_oversold"}}
	stackB := []ruleset.RuleDef{{Name: "sma_cross", Type: "sma_cross"}}
	ts := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveStrategy(sampleResult("RELIANCE", stackA, "hashX", ts)))
	require.NoError(t, s.SaveStrategy(sampleResult("RELIANCE", stackB, "hashX", ts)))
	require.NoError(t, s.SaveStrategy(sampleResult("INFY", stackA, "hashY", ts)))

	active := []string{ruleset.RuleStackString(stackA)}
	preserved, deleted, err := s.ClearCurrentStrategies("hashX", active)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, 2, preserved, "stackB at hashX and the hashY row both survive")

	rows, err := s.QueryStrategies(store.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestClearCurrentStrategiesRejectsTheLegacyHash(t *testing.T) {
	s := openTestStore(t)
	_, _, err := s.ClearCurrentStrategies("legacy", nil)
	assert.Error(t, err)
}
