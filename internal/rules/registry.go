package rules

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Binder validates a raw params map against a rule's declared parameter
// schema and returns the bound, pure Func. Binding happens once at
// config-bind time (internal/ruleset), not per bar.
type Binder func(params map[string]any) (Func, error)

var validate = validator.New()

// registry maps a RuleDef.Type name to its Binder. This is the "dynamic
// dispatch by rule type" registry described in spec §9: a string type name
// resolves to a callable with a declared parameter schema, avoiding runtime
// type switches scattered through the backtester.
var registry = map[string]Binder{
	"sma_crossover":    bindSMACrossover,
	"sma_cross_under":  bindSMACrossUnder,
	"ema_crossover":    bindEMACrossover,
	"rsi_oversold":     bindRSIOversold,
	"macd_crossover":   bindMACDCrossover,
	"bollinger_squeeze": bindBollingerSqueeze,
	"hammer_pattern":    bindHammerPattern,
	"engulfing_pattern": bindEngulfingPattern,
	"volume_spike":      bindVolumeSpike,
	"stop_loss_pct":     bindStopLossPct,
	"take_profit_pct":   bindTakeProfitPct,
	"chandelier_exit":   bindChandelierExit,
}

// Lookup resolves a rule type name to its Binder. ok is false for an
// unregistered type, which internal/ruleset turns into a ConfigurationError.
func Lookup(ruleType string) (Binder, bool) {
	b, ok := registry[ruleType]
	return b, ok
}

// Names lists every registered rule type, for config validation error
// messages and documentation.
func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}

// decodeParams round-trips a raw params map into a concrete, tagged struct
// via JSON, then runs struct-tag validation. This is the schema-validation
// step of spec §4.B ("params must validate against the function's declared
// parameter ranges") without hand-written per-field range checks.
func decodeParams(ruleName string, raw map[string]any, dst any) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return &ValidationError{Rule: ruleName, Field: "params", Reason: err.Error()}
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return &ValidationError{Rule: ruleName, Field: "params", Reason: err.Error()}
	}
	if err := validate.Struct(dst); err != nil {
		return &ValidationError{Rule: ruleName, Field: "params", Reason: err.Error()}
	}
	return nil
}

// applyDefault sets a struct field's default in raw when unset. Used so that
// zero-value JSON (the param omitted entirely) still resolves to the spec's
// documented default instead of failing validation's "required" tag.
func applyDefault(raw map[string]any, key string, def any) {
	if _, ok := raw[key]; !ok {
		raw[key] = def
	}
}

func fieldLessThan(ruleName, lessField, greaterField string, less, greater int) error {
	if less >= greater {
		return &ValidationError{
			Rule:   ruleName,
			Field:  lessField,
			Reason: fmt.Sprintf("%s (%d) must be less than %s (%d)", lessField, less, greaterField, greater),
		}
	}
	return nil
}
