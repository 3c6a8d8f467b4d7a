package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntheticProviderGetDailyBarsStaysWithinRangeAndSkipsWeekends(t *testing.T) {
	p := NewSyntheticProvider(nil)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)  // Monday
	to := time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)   // two weeks later

	bars, err := p.GetDailyBars("AAPL", from, to)
	require.NoError(t, err)
	require.NotEmpty(t, bars)
	for _, b := range bars {
		assert.False(t, b.Date.Before(from))
		assert.False(t, b.Date.After(to))
		assert.NotEqual(t, time.Saturday, b.Date.Weekday())
		assert.NotEqual(t, time.Sunday, b.Date.Weekday())
		assert.GreaterOrEqual(t, b.High, b.Low)
	}
}

func TestSyntheticProviderGetIndexBarsProducesBars(t *testing.T) {
	p := NewSyntheticProvider(nil)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)

	bars, err := p.GetIndexBars(from, to)
	require.NoError(t, err)
	assert.NotEmpty(t, bars)
}
