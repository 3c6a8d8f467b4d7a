package rules

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/kiss-signal/internal/ohlcv"
)

func mustFrame(t *testing.T, closes []float64) ohlcv.Frame {
	t.Helper()
	bars := make([]ohlcv.Bar, len(closes))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = ohlcv.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	f, err := ohlcv.NewFrame(bars)
	require.NoError(t, err)
	return f
}

// Spec §8 scenario 1: OHLC hand-calc, ATR(3) stabilizes to 5.0 +/- 0.1.
func TestATRHandCalc(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []ohlcv.Bar{
		{Date: start, Open: 100, High: 105, Low: 98, Close: 103, Volume: 1},
		{Date: start.AddDate(0, 0, 1), Open: 103, High: 108, Low: 101, Close: 106, Volume: 1},
		{Date: start.AddDate(0, 0, 2), Open: 106, High: 109, Low: 104, Close: 107, Volume: 1},
		{Date: start.AddDate(0, 0, 3), Open: 107, High: 112, Low: 105, Close: 110, Volume: 1},
		{Date: start.AddDate(0, 0, 4), Open: 110, High: 113, Low: 108, Close: 111, Volume: 1},
	}
	f, err := ohlcv.NewFrame(bars)
	require.NoError(t, err)

	atr := ATR(f, 3)
	require.Len(t, atr, 5)
	// True ranges here are [7,5,5,5,5]; Wilder-smoothed ATR(3) converges to 5.0.
	assert.InDelta(t, 5.0, atr[len(atr)-1], 0.1)
	for _, v := range atr {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

// Spec §8 scenario 2: flat then rising closes, sma_crossover(2,5) fires once
// the 2-bar SMA is unambiguously above the 5-bar SMA.
func TestSMACrossoverFiresOnRisingSeries(t *testing.T) {
	closes := []float64{10, 10, 10, 10, 10, 11, 12, 13, 14, 15}
	f := mustFrame(t, closes)

	bind, ok := Lookup("sma_crossover")
	require.True(t, ok)
	fn, err := bind(map[string]any{"fast_period": 2, "slow_period": 5})
	require.NoError(t, err)

	sig, err := fn(f)
	require.NoError(t, err)
	require.Len(t, sig, len(closes))

	fired := false
	for _, v := range sig {
		if v {
			fired = true
			break
		}
	}
	assert.True(t, fired, "expected sma_crossover to fire on a clearly rising series")
}

func TestSMACrossoverRejectsFastNotLessThanSlow(t *testing.T) {
	bind, ok := Lookup("sma_crossover")
	require.True(t, ok)
	_, err := bind(map[string]any{"fast_period": 10, "slow_period": 5})
	require.Error(t, err)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestWarmupShortFrameReturnsAllFalse(t *testing.T) {
	closes := []float64{10, 11, 12}
	f := mustFrame(t, closes)

	bind, ok := Lookup("sma_crossover")
	require.True(t, ok)
	fn, err := bind(map[string]any{"fast_period": 5, "slow_period": 20})
	require.NoError(t, err)

	sig, err := fn(f)
	require.NoError(t, err)
	require.Len(t, sig, len(closes))
	for _, v := range sig {
		assert.False(t, v)
	}
}

func TestUnknownRuleTypeNotRegistered(t *testing.T) {
	_, ok := Lookup("not_a_real_rule")
	assert.False(t, ok)
}

func TestHammerPattern(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []ohlcv.Bar{
		// small body near the top, long lower shadow: a hammer.
		{Date: start, Open: 99, High: 100, Low: 90, Close: 100, Volume: 1},
	}
	f, err := ohlcv.NewFrame(bars)
	require.NoError(t, err)

	bind, ok := Lookup("hammer_pattern")
	require.True(t, ok)
	fn, err := bind(map[string]any{})
	require.NoError(t, err)

	sig, err := fn(f)
	require.NoError(t, err)
	require.True(t, bool(sig[0]))
}

func TestEngulfingPattern(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []ohlcv.Bar{
		{Date: start, Open: 100, High: 101, Low: 98, Close: 99, Volume: 1},               // bearish small body
		{Date: start.AddDate(0, 0, 1), Open: 98, High: 103, Low: 97, Close: 102, Volume: 1}, // bullish, engulfs
	}
	f, err := ohlcv.NewFrame(bars)
	require.NoError(t, err)

	bind, ok := Lookup("engulfing_pattern")
	require.True(t, ok)
	fn, err := bind(map[string]any{"min_body_ratio": 1.2})
	require.NoError(t, err)

	sig, err := fn(f)
	require.NoError(t, err)
	require.True(t, bool(sig[1]))
}

func TestChandelierExitLevelProtectsEntryBar(t *testing.T) {
	closes := []float64{100, 101, 102, 103, 104, 105, 106, 107}
	f := mustFrame(t, closes)
	levels := ChandelierExitLevel(f, 3, 3, 2.0)
	require.Len(t, levels, len(closes))
	for i := 0; i < 3; i++ {
		assert.True(t, math.IsInf(levels[i], 1)) // +Inf sentinel before entry
	}
	for i := 3; i < len(levels); i++ {
		assert.Less(t, levels[i], closes[i])
	}
}
