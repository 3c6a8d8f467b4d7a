package rules

import (
	"github.com/markcheno/go-talib"

	"github.com/contactkeval/kiss-signal/internal/ohlcv"
)

// SMACrossoverParams: fast_period must stay strictly below slow_period — a
// fast SMA that never leads the slow one can never cross above it.
type SMACrossoverParams struct {
	FastPeriod int `json:"fast_period" validate:"required,gt=0"`
	SlowPeriod int `json:"slow_period" validate:"required,gt=0"`
}

func bindSMACrossover(raw map[string]any) (Func, error) {
	var p SMACrossoverParams
	if err := decodeParams("sma_crossover", raw, &p); err != nil {
		return nil, err
	}
	if err := fieldLessThan("sma_crossover", "fast_period", "slow_period", p.FastPeriod, p.SlowPeriod); err != nil {
		return nil, err
	}
	return func(price ohlcv.Frame) (Signal, error) {
		if price.Len() < p.SlowPeriod {
			return allFalse(price.Len()), nil
		}
		closes := price.Closes()
		fast := talib.Sma(closes, p.FastPeriod)
		slow := talib.Sma(closes, p.SlowPeriod)
		return crossAbove(fast, slow, p.SlowPeriod), nil
	}, nil
}

// SMACrossUnderParams mirrors SMACrossoverParams; used as a bearish
// indicator-based exit (spec §4.A: "used as an indicator-based exit").
type SMACrossUnderParams = SMACrossoverParams

func bindSMACrossUnder(raw map[string]any) (Func, error) {
	var p SMACrossUnderParams
	if err := decodeParams("sma_cross_under", raw, &p); err != nil {
		return nil, err
	}
	if err := fieldLessThan("sma_cross_under", "fast_period", "slow_period", p.FastPeriod, p.SlowPeriod); err != nil {
		return nil, err
	}
	return func(price ohlcv.Frame) (Signal, error) {
		if price.Len() < p.SlowPeriod {
			return allFalse(price.Len()), nil
		}
		closes := price.Closes()
		fast := talib.Sma(closes, p.FastPeriod)
		slow := talib.Sma(closes, p.SlowPeriod)
		return crossBelow(fast, slow, p.SlowPeriod), nil
	}, nil
}

// EMACrossoverParams: as SMACrossoverParams, but using exponential moving
// averages (alpha = 2/(period+1), TA-Lib's default EMA seeding).
type EMACrossoverParams struct {
	FastPeriod int `json:"fast_period" validate:"required,gt=0"`
	SlowPeriod int `json:"slow_period" validate:"required,gt=0"`
}

func bindEMACrossover(raw map[string]any) (Func, error) {
	var p EMACrossoverParams
	if err := decodeParams("ema_crossover", raw, &p); err != nil {
		return nil, err
	}
	if err := fieldLessThan("ema_crossover", "fast_period", "slow_period", p.FastPeriod, p.SlowPeriod); err != nil {
		return nil, err
	}
	return func(price ohlcv.Frame) (Signal, error) {
		if price.Len() < p.SlowPeriod {
			return allFalse(price.Len()), nil
		}
		closes := price.Closes()
		fast := talib.Ema(closes, p.FastPeriod)
		slow := talib.Ema(closes, p.SlowPeriod)
		return crossAbove(fast, slow, p.SlowPeriod), nil
	}, nil
}
