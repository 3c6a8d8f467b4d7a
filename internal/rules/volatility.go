package rules

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/contactkeval/kiss-signal/internal/ohlcv"
)

// ATR computes the Average True Range using Wilder's smoothing on True
// Range. True Range for bar t is max(high-low, |high-prevClose|,
// |low-prevClose|); the first bar uses high-low, per spec §4.A. ATR[0] is
// the first bar's True Range and ATR[t] = ATR[t-1] + (TR[t]-ATR[t-1])/period,
// so there is no zero-filled warmup: a value is 0 only when every True Range
// up to that bar is 0. Exported as a shared helper: the position sizer
// (internal/sizing) and the Chandelier trailing stop both need the same ATR
// sequence calculate_atr describes, rather than a standalone boolean rule.
func ATR(price ohlcv.Frame, period int) []float64 {
	n := price.Len()
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	if period < 1 {
		return out
	}
	highs, lows, closes := price.Highs(), price.Lows(), price.Closes()
	out[0] = highs[0] - lows[0]
	for t := 1; t < n; t++ {
		tr := math.Max(highs[t]-lows[t], math.Max(math.Abs(highs[t]-closes[t-1]), math.Abs(lows[t]-closes[t-1])))
		out[t] = out[t-1] + (tr-out[t-1])/float64(period)
	}
	return out
}

// BollingerSqueezeParams: fires when the previous bar's normalized band
// width was below squeeze_threshold and the current close breaks above the
// upper band.
type BollingerSqueezeParams struct {
	Period           int     `json:"period" validate:"required,gt=1"`
	StdDev           float64 `json:"std_dev" validate:"gt=0"`
	SqueezeThreshold float64 `json:"squeeze_threshold" validate:"gt=0"`
}

func bindBollingerSqueeze(raw map[string]any) (Func, error) {
	applyDefault(raw, "period", 20)
	applyDefault(raw, "std_dev", 2.0)
	applyDefault(raw, "squeeze_threshold", 0.1)
	var p BollingerSqueezeParams
	if err := decodeParams("bollinger_squeeze", raw, &p); err != nil {
		return nil, err
	}
	return func(price ohlcv.Frame) (Signal, error) {
		warmup := p.Period + 1
		if price.Len() < warmup {
			return allFalse(price.Len()), nil
		}
		closes := price.Closes()
		upper, middle, lower := talib.BBands(closes, p.Period, p.StdDev, p.StdDev, talib.SMA)
		out := make(Signal, price.Len())
		for i := warmup; i < len(upper); i++ {
			if middle[i-1] == 0 {
				continue
			}
			prevWidth := (upper[i-1] - lower[i-1]) / middle[i-1]
			out[i] = prevWidth < p.SqueezeThreshold && closes[i] > upper[i]
		}
		return out, nil
	}, nil
}

// ChandelierParams describes a trailing stop: exit level at bar t is
// max(high) since entry minus atr_multiplier * ATR(atr_period). Because this
// is stateful across a position (it depends on an entry bar, not just the
// frame), it has no standalone boolean meaning — spec §4.A evaluates it
// per-position in the Lifecycle, and the Backtester approximates it via a
// trailing-stop mechanism in the portfolio simulator (see internal/backtest).
type ChandelierParams struct {
	ATRPeriod     int     `json:"atr_period" validate:"required,gt=0"`
	ATRMultiplier float64 `json:"atr_multiplier" validate:"gt=0"`
}

func bindChandelierExit(raw map[string]any) (Func, error) {
	applyDefault(raw, "atr_period", 22)
	applyDefault(raw, "atr_multiplier", 3.0)
	var p ChandelierParams
	if err := decodeParams("chandelier_exit", raw, &p); err != nil {
		return nil, err
	}
	return func(price ohlcv.Frame) (Signal, error) {
		// Not evaluable without a position's entry bar; callers use
		// ChandelierExitLevel directly instead of this Func.
		return allFalse(price.Len()), nil
	}, nil
}

// ChandelierExitLevel returns, for each bar from entryIdx onward, the
// Chandelier trailing-stop level: the running high since entry minus
// atrMultiplier * ATR(atrPeriod) evaluated at that bar. Bars before entryIdx
// hold math.Inf(1); the backtester and the Lifecycle compare only bars after
// the entry bar against the level.
func ChandelierExitLevel(price ohlcv.Frame, entryIdx int, atrPeriod int, atrMultiplier float64) []float64 {
	n := price.Len()
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Inf(1)
	}
	if entryIdx >= n {
		return out
	}
	highs := price.Highs()
	atr := ATR(price, atrPeriod)
	peak := highs[entryIdx]
	for i := entryIdx; i < n; i++ {
		if highs[i] > peak {
			peak = highs[i]
		}
		out[i] = peak - atrMultiplier*atr[i]
	}
	return out
}
