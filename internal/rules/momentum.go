package rules

import (
	"github.com/markcheno/go-talib"

	"github.com/contactkeval/kiss-signal/internal/ohlcv"
)

// RSIOversoldParams: RSI uses Wilder's smoothing on gains/losses (TA-Lib's
// Rsi implementation), firing on the bar RSI crosses from >= threshold down
// to < threshold.
type RSIOversoldParams struct {
	Period            int     `json:"period" validate:"required,gt=1"`
	OversoldThreshold float64 `json:"oversold_threshold" validate:"gt=0,lt=100"`
}

func bindRSIOversold(raw map[string]any) (Func, error) {
	applyDefault(raw, "period", 14)
	applyDefault(raw, "oversold_threshold", 30.0)
	var p RSIOversoldParams
	if err := decodeParams("rsi_oversold", raw, &p); err != nil {
		return nil, err
	}
	return func(price ohlcv.Frame) (Signal, error) {
		warmup := p.Period + 1
		if price.Len() < warmup {
			return allFalse(price.Len()), nil
		}
		rsi := talib.Rsi(price.Closes(), p.Period)
		out := make(Signal, price.Len())
		for i := warmup; i < len(rsi); i++ {
			out[i] = rsi[i-1] >= p.OversoldThreshold && rsi[i] < p.OversoldThreshold
		}
		return out, nil
	}, nil
}

// MACDCrossoverParams fires on the bar the MACD line crosses above its
// signal line. Warmup = slow + signal, per spec §4.A.
type MACDCrossoverParams struct {
	Fast   int `json:"fast" validate:"required,gt=0"`
	Slow   int `json:"slow" validate:"required,gt=0"`
	Signal int `json:"signal" validate:"required,gt=0"`
}

func bindMACDCrossover(raw map[string]any) (Func, error) {
	applyDefault(raw, "fast", 12)
	applyDefault(raw, "slow", 26)
	applyDefault(raw, "signal", 9)
	var p MACDCrossoverParams
	if err := decodeParams("macd_crossover", raw, &p); err != nil {
		return nil, err
	}
	if err := fieldLessThan("macd_crossover", "fast", "slow", p.Fast, p.Slow); err != nil {
		return nil, err
	}
	return func(price ohlcv.Frame) (Signal, error) {
		warmup := p.Slow + p.Signal
		if price.Len() < warmup {
			return allFalse(price.Len()), nil
		}
		macd, signal, _ := talib.Macd(price.Closes(), p.Fast, p.Slow, p.Signal)
		return crossAbove(macd, signal, warmup), nil
	}, nil
}
