package rules

import "github.com/contactkeval/kiss-signal/internal/ohlcv"

// StopLossPctParams and TakeProfitPctParams back the two percentage-based
// exit rules. Their Func is a placeholder returning all-false: the
// percentage itself is read directly out of the bound RuleDef by the
// Backtester and Lifecycle (spec §4.A, §4.D, §4.H), which compare it against
// the bar's low/high rather than evaluating a boolean series.
type StopLossPctParams struct {
	Percentage float64 `json:"percentage" validate:"gt=0,lt=1"`
}

func bindStopLossPct(raw map[string]any) (Func, error) {
	var p StopLossPctParams
	if err := decodeParams("stop_loss_pct", raw, &p); err != nil {
		return nil, err
	}
	return func(price ohlcv.Frame) (Signal, error) {
		return allFalse(price.Len()), nil
	}, nil
}

type TakeProfitPctParams struct {
	Percentage float64 `json:"percentage" validate:"gt=0"`
}

func bindTakeProfitPct(raw map[string]any) (Func, error) {
	var p TakeProfitPctParams
	if err := decodeParams("take_profit_pct", raw, &p); err != nil {
		return nil, err
	}
	return func(price ohlcv.Frame) (Signal, error) {
		return allFalse(price.Len()), nil
	}, nil
}
