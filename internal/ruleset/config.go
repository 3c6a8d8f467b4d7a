// Package ruleset is the Config & Rule Binding component (spec §4.B): it
// loads and validates a RulesConfig and application Config, binds each
// RuleDef to a callable from internal/rules, enforces the single-slot exit
// constraints, and fingerprints the bound configuration for persistence
// provenance (spec §3 "ConfigSnapshot / ConfigHash").
package ruleset

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/contactkeval/kiss-signal/internal/apperrors"
)

var validate = validator.New()

// RuleDef is an immutable description of one rule instance: type names a
// function in the Rule Library; params validates against that function's
// declared parameter schema at bind time (see bind.go). Mirrors spec §3.
type RuleDef struct {
	Name        string         `json:"name" validate:"required"`
	Type        string         `json:"type" validate:"required"`
	Params      map[string]any `json:"params"`
	Description string         `json:"description,omitempty"`
}

// ValidationRule is one entry of the RulesConfig's advisory `validation`
// section: a govaluate expression evaluated against a rule type's bound
// params. Never rejects a config — see validate.go.
type ValidationRule struct {
	Type       string `json:"type" validate:"required"`
	Expression string `json:"expression" validate:"required"`
}

// RulesConfig holds the five ordered sections described in spec §3. Field
// order matches declaration order since Go struct fields already preserve
// it; JSON round-trips keep list order, which matters for Seeker's
// declaration-order phase-1 search (spec §4.F).
type RulesConfig struct {
	Preconditions   []RuleDef        `json:"preconditions"`
	ContextFilters  []RuleDef        `json:"context_filters"`
	EntrySignals    []RuleDef        `json:"entry_signals"`
	ExitConditions  []RuleDef        `json:"exit_conditions"`
	Validation      []ValidationRule `json:"validation"`
}

// EdgeScoreWeights must sum to 1 (spec §3); checked in Config.Validate.
type EdgeScoreWeights struct {
	WinPct float64 `json:"win_pct" validate:"gte=0,lte=1"`
	Sharpe float64 `json:"sharpe" validate:"gte=0,lte=1"`
}

// WalkForwardConfig describes the rolling train/test window schedule (spec
// §4.E). Disabled only via an explicit in_sample override at the call site,
// never by this struct (walk-forward is enabled by default per spec).
type WalkForwardConfig struct {
	Enabled            bool `json:"enabled"`
	TrainingPeriodDays int  `json:"training_period_days" validate:"required_if=Enabled true,gt=0"`
	TestingPeriodDays  int  `json:"testing_period_days" validate:"required_if=Enabled true,gt=0"`
	StepDays           int  `json:"step_days" validate:"required_if=Enabled true,gt=0"`
	MinTradesPerPeriod int  `json:"min_trades_per_period" validate:"gte=0"`
}

// Config holds the scalar application parameters consumed by the core
// (spec §3 "Config (application)"). Immutable per run.
type Config struct {
	HoldPeriod              int               `json:"hold_period" validate:"required,gte=1"`
	MinTradesThreshold      int               `json:"min_trades_threshold" validate:"required,gte=1"`
	EdgeScoreWeights        EdgeScoreWeights  `json:"edge_score_weights" validate:"required"`
	SeekerMinEdgeScore      float64           `json:"seeker_min_edge_score" validate:"gte=0,lte=1"`
	SeekerMinTrades         int               `json:"seeker_min_trades" validate:"gte=0"`
	PortfolioInitialCapital float64           `json:"portfolio_initial_capital" validate:"gt=0"`
	RiskPerTradePct         float64           `json:"risk_per_trade_pct" validate:"gt=0,lte=0.1"`
	WalkForward             WalkForwardConfig `json:"walk_forward"`
	FreezeDate              *time.Time        `json:"freeze_date,omitempty"`

	// AllowUnlimitedSize is the "unlimited leverage" legacy debug escape
	// hatch (spec §9 "'Unlimited size' legacy"). Must never be set outside
	// an explicit debug run; the sizer logs a loud warning when honored.
	AllowUnlimitedSize bool `json:"allow_unlimited_size,omitempty"`

	// InSample bypasses the walk-forward split entirely and backtests the
	// full history in sample (spec §4.E "in_sample=true debug override").
	// internal/walkforward logs a warning whenever this is honored; results
	// produced this way are not out-of-sample and must never be persisted
	// as if they were.
	InSample bool `json:"in_sample,omitempty"`
}

// Validate runs struct-tag validation plus the one cross-field rule
// validator tags can't express: edge_score_weights must sum to 1.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.Configurationf("ruleset.Config", "invalid config: %w", err)
	}
	sum := c.EdgeScoreWeights.WinPct + c.EdgeScoreWeights.Sharpe
	if sum < 0.999999 || sum > 1.000001 {
		return apperrors.Configurationf("ruleset.Config", "edge_score_weights must sum to 1, got %f", sum)
	}
	return nil
}
