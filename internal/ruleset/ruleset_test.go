package ruleset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEntrySignals() []RuleDef {
	return []RuleDef{
		{Name: "sma_fast_slow", Type: "sma_crossover", Params: map[string]any{"fast_period": 10.0, "slow_period": 30.0}},
	}
}

func TestBindRejectsUnknownRuleType(t *testing.T) {
	cfg := RulesConfig{
		EntrySignals: []RuleDef{{Name: "bogus", Type: "not_a_rule", Params: map[string]any{}}},
	}
	_, err := Bind(cfg)
	require.Error(t, err)
}

func TestBindRejectsDuplicateNameWithinSection(t *testing.T) {
	cfg := RulesConfig{
		EntrySignals: []RuleDef{
			{Name: "dup", Type: "sma_crossover", Params: map[string]any{"fast_period": 5.0, "slow_period": 20.0}},
			{Name: "dup", Type: "ema_crossover", Params: map[string]any{"fast_period": 5.0, "slow_period": 20.0}},
		},
	}
	_, err := Bind(cfg)
	require.Error(t, err)
}

func TestBindExtractsSingleSlotExitRules(t *testing.T) {
	cfg := RulesConfig{
		EntrySignals: validEntrySignals(),
		ExitConditions: []RuleDef{
			{Name: "sl", Type: "stop_loss_pct", Params: map[string]any{"percentage": 0.05}},
			{Name: "tp", Type: "take_profit_pct", Params: map[string]any{"percentage": 0.10}},
			{Name: "trail", Type: "chandelier_exit", Params: map[string]any{"atr_period": 22.0, "atr_multiplier": 3.0}},
			{Name: "macd_exit", Type: "macd_crossover", Params: map[string]any{}},
		},
	}
	bound, err := Bind(cfg)
	require.NoError(t, err)
	require.NotNil(t, bound.StopLossPct)
	require.NotNil(t, bound.TakeProfitPct)
	require.NotNil(t, bound.Trailing)
	assert.InDelta(t, 0.05, *bound.StopLossPct, 1e-9)
	assert.InDelta(t, 0.10, *bound.TakeProfitPct, 1e-9)
	assert.Equal(t, 22, bound.Trailing.ATRPeriod)
	assert.Len(t, bound.ExitConditions, 1) // only macd_exit remains as an indicator exit
}

func TestBindDuplicateExitSlotIgnoresSecondOccurrence(t *testing.T) {
	cfg := RulesConfig{
		EntrySignals: validEntrySignals(),
		ExitConditions: []RuleDef{
			{Name: "sl1", Type: "stop_loss_pct", Params: map[string]any{"percentage": 0.05}},
			{Name: "sl2", Type: "stop_loss_pct", Params: map[string]any{"percentage": 0.08}},
		},
	}
	bound, err := Bind(cfg)
	require.NoError(t, err)
	require.NotNil(t, bound.StopLossPct)
	assert.InDelta(t, 0.05, *bound.StopLossPct, 1e-9, "first occurrence must win")
}

func TestConfigValidateRejectsWeightsNotSummingToOne(t *testing.T) {
	cfg := Config{
		HoldPeriod:              20,
		MinTradesThreshold:      5,
		EdgeScoreWeights:        EdgeScoreWeights{WinPct: 0.5, Sharpe: 0.6},
		PortfolioInitialCapital: 100000,
		RiskPerTradePct:         0.01,
	}
	err := cfg.Validate()
	require.Error(t, err)
}

func TestConfigValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := Config{
		HoldPeriod:              20,
		MinTradesThreshold:      5,
		EdgeScoreWeights:        EdgeScoreWeights{WinPct: 0.6, Sharpe: 0.4},
		SeekerMinEdgeScore:      0.5,
		SeekerMinTrades:         10,
		PortfolioInitialCapital: 100000,
		RiskPerTradePct:         0.01,
		WalkForward:             WalkForwardConfig{Enabled: true, TrainingPeriodDays: 365, TestingPeriodDays: 90, StepDays: 90},
	}
	require.NoError(t, cfg.Validate())
}

func TestConfigHashDeterministicAcrossEqualSnapshots(t *testing.T) {
	cfg := Config{
		HoldPeriod:      20,
		RiskPerTradePct: 0.01,
		WalkForward:     WalkForwardConfig{TrainingPeriodDays: 365, TestingPeriodDays: 90, StepDays: 90},
	}
	rc := RulesConfig{EntrySignals: validEntrySignals()}

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	snap1 := NewSnapshot(rc, cfg, "universe.csv", t1)
	snap2 := NewSnapshot(rc, cfg, "universe.csv", t2)

	assert.Equal(t, snap1.Hash(), snap2.Hash(), "hash must not depend on timestamp")
	assert.Len(t, snap1.Hash(), 8)
}

func TestConfigHashChangesWithRuleContent(t *testing.T) {
	cfg := Config{HoldPeriod: 20, RiskPerTradePct: 0.01}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	rc1 := RulesConfig{EntrySignals: validEntrySignals()}
	rc2 := RulesConfig{EntrySignals: []RuleDef{
		{Name: "sma_fast_slow", Type: "sma_crossover", Params: map[string]any{"fast_period": 5.0, "slow_period": 20.0}},
	}}

	h1 := NewSnapshot(rc1, cfg, "universe.csv", now).Hash()
	h2 := NewSnapshot(rc2, cfg, "universe.csv", now).Hash()
	assert.NotEqual(t, h1, h2)
}

func TestApplyAdvisoryValidationNeverRejects(t *testing.T) {
	cfg := RulesConfig{
		EntrySignals: []RuleDef{
			{Name: "bad_rsi", Type: "rsi_oversold", Params: map[string]any{"period": 14.0, "oversold_threshold": 30.0}},
		},
		Validation: []ValidationRule{
			{Type: "rsi_oversold", Expression: "period > 0 && period < 5"}, // deliberately fails: period=14
		},
	}
	bound, err := Bind(cfg)
	require.NoError(t, err)
	// Must not panic or return an error; it only logs a warning.
	ApplyAdvisoryValidation(cfg, bound)
}
