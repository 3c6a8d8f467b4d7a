package ruleset

import (
	"github.com/Knetic/govaluate"

	"github.com/contactkeval/kiss-signal/internal/logger"
)

// ApplyAdvisoryValidation evaluates each RulesConfig.Validation entry's
// govaluate expression against the bound params of every rule of the
// matching type. Per spec §3 ("validation — optional per-type parameter
// range metadata; advisory") this never rejects the config: a failing or
// unparsable expression only produces a warning log line.
func ApplyAdvisoryValidation(cfg RulesConfig, bound *BoundRulesConfig) {
	if len(cfg.Validation) == 0 {
		return
	}
	byType := make(map[string][]govaluate.EvaluableExpression)
	for _, v := range cfg.Validation {
		expr, err := govaluate.NewEvaluableExpression(v.Expression)
		if err != nil {
			logger.Warnf("ruleset: validation expression for %q is unparsable, skipping: %v", v.Type, err)
			continue
		}
		byType[v.Type] = append(byType[v.Type], *expr)
	}
	if len(byType) == 0 {
		return
	}

	allSections := [][]BoundRule{bound.Preconditions, bound.ContextFilters, bound.EntrySignals, bound.ExitConditions}
	for _, section := range allSections {
		for _, br := range section {
			exprs, ok := byType[br.Def.Type]
			if !ok {
				continue
			}
			checkAdvisory(br.Def.Name, br.Def.Type, br.Def.Params, exprs)
		}
	}
}

func checkAdvisory(name, ruleType string, params map[string]any, exprs []govaluate.EvaluableExpression) {
	evalParams := make(map[string]any, len(params))
	for k, v := range params {
		evalParams[k] = v
	}
	for _, expr := range exprs {
		result, err := expr.Evaluate(evalParams)
		if err != nil {
			logger.Warnf("ruleset: validation expression for %q (rule %q) errored: %v", ruleType, name, err)
			continue
		}
		ok, isBool := result.(bool)
		if !isBool {
			logger.Warnf("ruleset: validation expression for %q (rule %q) did not evaluate to bool, got %T", ruleType, name, result)
			continue
		}
		if !ok {
			logger.Warnf("ruleset: rule %q (%q) params fail advisory range check %q", name, ruleType, expr.String())
		}
	}
}
