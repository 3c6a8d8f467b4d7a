package ruleset

import (
	"github.com/contactkeval/kiss-signal/internal/apperrors"
	"github.com/contactkeval/kiss-signal/internal/logger"
	"github.com/contactkeval/kiss-signal/internal/rules"
)

// BoundRule pairs a validated RuleDef with its bound, callable Func.
type BoundRule struct {
	Def RuleDef
	Fn  rules.Func
}

// TrailingStopSpec is the extracted Chandelier (or future trailing-stop)
// parameters, handed to the simulator as a dynamic stop rather than folded
// into the indicator_exits boolean OR (spec §4.D step 4, §9 "Trailing-stop
// state across bars").
type TrailingStopSpec struct {
	ATRPeriod     int
	ATRMultiplier float64
}

// BoundRulesConfig is a RulesConfig whose rule defs have all been resolved
// to callables, with the single-slot exit rules (stop_loss_pct,
// take_profit_pct, the trailing stop) extracted for direct use by the
// Backtester and Lifecycle rather than treated as opaque boolean signals.
type BoundRulesConfig struct {
	Preconditions  []BoundRule
	ContextFilters []BoundRule
	EntrySignals   []BoundRule
	ExitConditions []BoundRule // every non-extracted exit rule (indicator exits)

	StopLossPct   *float64
	TakeProfitPct *float64
	Trailing      *TrailingStopSpec
}

// Bind validates and resolves every RuleDef in cfg against the Rule
// Library registry, enforces name uniqueness within each section, and
// extracts the single-slot exit rules per spec §4.B's validation rules.
func Bind(cfg RulesConfig) (*BoundRulesConfig, error) {
	out := &BoundRulesConfig{}

	var err error
	if out.Preconditions, err = bindSection("preconditions", cfg.Preconditions); err != nil {
		return nil, err
	}
	if out.ContextFilters, err = bindSection("context_filters", cfg.ContextFilters); err != nil {
		return nil, err
	}
	if out.EntrySignals, err = bindSection("entry_signals", cfg.EntrySignals); err != nil {
		return nil, err
	}

	exits, err := bindSection("exit_conditions", cfg.ExitConditions)
	if err != nil {
		return nil, err
	}
	if err := extractExitSlots(out, exits); err != nil {
		return nil, err
	}

	return out, nil
}

func bindSection(section string, defs []RuleDef) ([]BoundRule, error) {
	seen := make(map[string]bool, len(defs))
	out := make([]BoundRule, 0, len(defs))
	for _, def := range defs {
		if seen[def.Name] {
			return nil, apperrors.Configurationf("ruleset.Bind",
				"%s: duplicate rule name %q", section, def.Name)
		}
		seen[def.Name] = true

		binder, ok := rules.Lookup(def.Type)
		if !ok {
			return nil, apperrors.Configurationf("ruleset.Bind",
				"%s: unknown rule type %q (name=%q); known types: %v", section, def.Type, def.Name, rules.Names())
		}
		fn, err := binder(def.Params)
		if err != nil {
			return nil, apperrors.Configurationf("ruleset.Bind",
				"%s: binding %q: %w", section, def.Name, err)
		}
		out = append(out, BoundRule{Def: def, Fn: fn})
	}
	return out, nil
}

// extractExitSlots pulls stop_loss_pct, take_profit_pct, and the trailing
// stop (chandelier_exit) out of the bound exit rules, leaving the rest in
// ExitConditions as indicator exits. Spec §4.B: "additional occurrences
// emit a warning and are ignored" — first occurrence wins, deterministically.
func extractExitSlots(out *BoundRulesConfig, exits []BoundRule) error {
	remaining := make([]BoundRule, 0, len(exits))
	for _, br := range exits {
		switch br.Def.Type {
		case "stop_loss_pct":
			if out.StopLossPct != nil {
				logger.Warnf("ruleset: duplicate stop_loss_pct rule %q ignored, first occurrence wins", br.Def.Name)
				continue
			}
			pct, err := percentageParam(br.Def)
			if err != nil {
				return err
			}
			out.StopLossPct = &pct
		case "take_profit_pct":
			if out.TakeProfitPct != nil {
				logger.Warnf("ruleset: duplicate take_profit_pct rule %q ignored, first occurrence wins", br.Def.Name)
				continue
			}
			pct, err := percentageParam(br.Def)
			if err != nil {
				return err
			}
			out.TakeProfitPct = &pct
		case "chandelier_exit":
			if out.Trailing != nil {
				logger.Warnf("ruleset: duplicate trailing-stop rule %q ignored, first occurrence wins", br.Def.Name)
				continue
			}
			spec, err := trailingSpec(br.Def)
			if err != nil {
				return err
			}
			out.Trailing = spec
		default:
			remaining = append(remaining, br)
		}
	}
	out.ExitConditions = remaining
	return nil
}

func percentageParam(def RuleDef) (float64, error) {
	v, ok := def.Params["percentage"]
	if !ok {
		return 0, apperrors.Configurationf("ruleset.Bind", "%s: missing percentage param", def.Name)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, apperrors.Configurationf("ruleset.Bind", "%s: percentage must be numeric, got %T", def.Name, v)
	}
	return f, nil
}

func trailingSpec(def RuleDef) (*TrailingStopSpec, error) {
	period := 22
	if v, ok := def.Params["atr_period"]; ok {
		f, ok := v.(float64)
		if !ok {
			return nil, apperrors.Configurationf("ruleset.Bind", "%s: atr_period must be numeric, got %T", def.Name, v)
		}
		period = int(f)
	}
	mult := 3.0
	if v, ok := def.Params["atr_multiplier"]; ok {
		f, ok := v.(float64)
		if !ok {
			return nil, apperrors.Configurationf("ruleset.Bind", "%s: atr_multiplier must be numeric, got %T", def.Name, v)
		}
		mult = f
	}
	return &TrailingStopSpec{ATRPeriod: period, ATRMultiplier: mult}, nil
}

// RuleStackString renders a rule stack as a stable, human-readable identifier for
// logs and persistence (spec §4.F "Every candidate tested must be logged
// with symbol, rule stack").
func RuleStackString(defs []RuleDef) string {
	s := ""
	for i, d := range defs {
		if i > 0 {
			s += "+"
		}
		s += d.Name
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
