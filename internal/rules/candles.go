package rules

import (
	"math"

	"github.com/contactkeval/kiss-signal/internal/ohlcv"
)

// HammerPatternParams. TA-Lib's CDLHAMMER has no configurable thresholds, so
// this rule is hand-rolled directly against OHLC to honor body_ratio and
// shadow_ratio as spec params rather than TA-Lib's fixed internal ones.
type HammerPatternParams struct {
	BodyRatio   float64 `json:"body_ratio" validate:"gt=0,lt=1"`
	ShadowRatio float64 `json:"shadow_ratio" validate:"gt=0"`
}

func bindHammerPattern(raw map[string]any) (Func, error) {
	applyDefault(raw, "body_ratio", 0.3)
	applyDefault(raw, "shadow_ratio", 2.0)
	var p HammerPatternParams
	if err := decodeParams("hammer_pattern", raw, &p); err != nil {
		return nil, err
	}
	return func(price ohlcv.Frame) (Signal, error) {
		bars := price.Bars()
		out := make(Signal, len(bars))
		for i, b := range bars {
			rng := b.High - b.Low
			if rng <= 0 {
				continue
			}
			body := math.Abs(b.Close - b.Open)
			lowerShadow := math.Min(b.Open, b.Close) - b.Low
			upperShadow := b.High - math.Max(b.Open, b.Close)
			out[i] = body <= p.BodyRatio*rng &&
				lowerShadow >= p.ShadowRatio*body &&
				upperShadow <= body
		}
		return out, nil
	}, nil
}

// EngulfingPatternParams: the current bar's body must be at least
// min_body_ratio times the previous bar's body and of the opposite color,
// with the current body fully containing the previous one.
type EngulfingPatternParams struct {
	MinBodyRatio float64 `json:"min_body_ratio" validate:"gt=0"`
}

func bindEngulfingPattern(raw map[string]any) (Func, error) {
	applyDefault(raw, "min_body_ratio", 1.2)
	var p EngulfingPatternParams
	if err := decodeParams("engulfing_pattern", raw, &p); err != nil {
		return nil, err
	}
	return func(price ohlcv.Frame) (Signal, error) {
		bars := price.Bars()
		out := make(Signal, len(bars))
		for i := 1; i < len(bars); i++ {
			prev, cur := bars[i-1], bars[i]
			prevBody := math.Abs(prev.Close - prev.Open)
			curBody := math.Abs(cur.Close - cur.Open)
			if prevBody <= 0 {
				continue
			}
			prevBullish := prev.Close > prev.Open
			curBullish := cur.Close > cur.Open
			opposite := prevBullish != curBullish
			engulfs := math.Max(cur.Open, cur.Close) >= math.Max(prev.Open, prev.Close) &&
				math.Min(cur.Open, cur.Close) <= math.Min(prev.Open, prev.Close)
			out[i] = opposite && engulfs && curBody >= p.MinBodyRatio*prevBody
		}
		return out, nil
	}, nil
}
