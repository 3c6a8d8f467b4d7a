package rules

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/contactkeval/kiss-signal/internal/ohlcv"
)

// VolumeSpikeParams: volume > spike_multiplier * rolling mean AND the daily
// percent change in close exceeds price_change_threshold.
type VolumeSpikeParams struct {
	Period                int     `json:"period" validate:"required,gt=1"`
	SpikeMultiplier       float64 `json:"spike_multiplier" validate:"gt=0"`
	PriceChangeThreshold  float64 `json:"price_change_threshold" validate:"gt=0"`
}

func bindVolumeSpike(raw map[string]any) (Func, error) {
	applyDefault(raw, "period", 20)
	applyDefault(raw, "spike_multiplier", 2.0)
	applyDefault(raw, "price_change_threshold", 0.01)
	var p VolumeSpikeParams
	if err := decodeParams("volume_spike", raw, &p); err != nil {
		return nil, err
	}
	return func(price ohlcv.Frame) (Signal, error) {
		warmup := p.Period + 1
		if price.Len() < warmup {
			return allFalse(price.Len()), nil
		}
		volumes := price.Volumes()
		closes := price.Closes()
		avgVol := talib.Sma(volumes, p.Period)
		out := make(Signal, price.Len())
		for i := warmup; i < len(out); i++ {
			if avgVol[i] <= 0 || closes[i-1] == 0 {
				continue
			}
			pctChange := math.Abs((closes[i] - closes[i-1]) / closes[i-1])
			out[i] = volumes[i] > p.SpikeMultiplier*avgVol[i] && pctChange > p.PriceChangeThreshold
		}
		return out, nil
	}, nil
}
