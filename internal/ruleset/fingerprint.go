package ruleset

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// ConfigSnapshot is the JSON-serializable provenance record attached to
// every StrategyResult (spec §3). RunParameters carries only the Config
// scalars listed on it, so changes to any other Config field (e.g. the
// seeker thresholds or edge_score_weights) never move the hash; rule
// definitions, descriptions included, enter the hash through RulesHash.
type ConfigSnapshot struct {
	RulesHash     string         `json:"rules_hash"`
	UniversePath  string         `json:"universe_path"`
	RunParameters RunParameters  `json:"run_parameters"`
	Timestamp     time.Time      `json:"timestamp"`
}

// RunParameters is the subset of Config that participates in fingerprinting
// (spec §4.B "Fingerprinting"): hold_period, risk_per_trade_pct, the
// walk-forward window sizes, and freeze_date.
type RunParameters struct {
	HoldPeriod         int        `json:"hold_period"`
	RiskPerTradePct    float64    `json:"risk_per_trade_pct"`
	TrainingPeriodDays int        `json:"training_period_days"`
	TestingPeriodDays  int        `json:"testing_period_days"`
	StepDays           int        `json:"step_days"`
	FreezeDate         *time.Time `json:"freeze_date,omitempty"`
}

// NewSnapshot builds a ConfigSnapshot from a raw (unbound) RulesConfig and
// Config.
// now is passed in rather than read from time.Now() so that callers (tests,
// and the deterministic-hash property in spec §8) control it explicitly.
func NewSnapshot(raw RulesConfig, cfg Config, universePath string, now time.Time) ConfigSnapshot {
	return ConfigSnapshot{
		RulesHash:    rulesHash(raw),
		UniversePath: universePath,
		RunParameters: RunParameters{
			HoldPeriod:         cfg.HoldPeriod,
			RiskPerTradePct:    cfg.RiskPerTradePct,
			TrainingPeriodDays: cfg.WalkForward.TrainingPeriodDays,
			TestingPeriodDays:  cfg.WalkForward.TestingPeriodDays,
			StepDays:           cfg.WalkForward.StepDays,
			FreezeDate:         cfg.FreezeDate,
		},
		Timestamp: now,
	}
}

// Hash computes the deterministic 8-char ConfigHash over the snapshot's
// essentials (everything except Timestamp, which changes every run but
// must not move the hash — spec §3: "Same inputs → same hash").
func (s ConfigSnapshot) Hash() string {
	essentials := struct {
		RulesHash     string        `json:"rules_hash"`
		UniversePath  string        `json:"universe_path"`
		RunParameters RunParameters `json:"run_parameters"`
	}{s.RulesHash, s.UniversePath, s.RunParameters}

	b, _ := json.Marshal(essentials) // struct marshal never errors
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:8]
}

// rulesHash normalizes a RulesConfig (stable key order via Go's JSON
// marshaling of structs, which is already field-order-stable, plus rules
// sorted by name within preconditions, context_filters and exit_conditions
// so reordering those sections doesn't change the hash; entry_signals keep
// their declared order) and returns its SHA256 hex digest.
func rulesHash(raw RulesConfig) string {
	normalized := struct {
		Preconditions  []RuleDef `json:"preconditions"`
		ContextFilters []RuleDef `json:"context_filters"`
		EntrySignals   []RuleDef `json:"entry_signals"`
		ExitConditions []RuleDef `json:"exit_conditions"`
	}{
		sortedByName(raw.Preconditions),
		sortedByName(raw.ContextFilters),
		raw.EntrySignals, // order matters here: Seeker's phase-1 search is declaration-order (spec §4.F)
		sortedByName(raw.ExitConditions),
	}
	b, _ := json.Marshal(normalized)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func sortedByName(defs []RuleDef) []RuleDef {
	out := make([]RuleDef, len(defs))
	copy(out, defs)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
