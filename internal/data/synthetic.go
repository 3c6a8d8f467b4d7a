package data

import (
	"math"
	"math/rand"
	"time"

	"github.com/contactkeval/kiss-signal/internal/ohlcv"
)

// synthDataProvider generates a random-walk price series instead of calling
// out to a vendor — grounded on the teacher's synthDataProvider, which did
// the same thing for option underlyings. Useful for local development and
// for deterministic-shape (if not deterministic-value) test fixtures.
type synthDataProvider struct {
	secondary Provider
}

// NewSyntheticProvider builds a Provider that fabricates bars on demand.
func NewSyntheticProvider(secondary Provider) Provider {
	return &synthDataProvider{secondary: secondary}
}

func (s *synthDataProvider) Secondary() Provider { return s.secondary }

func (s *synthDataProvider) GetDailyBars(symbol string, from, to time.Time) ([]ohlcv.Bar, error) {
	return randomWalk(from, to, 100.0+float64(rand.Intn(200)), 0.01), nil
}

func (s *synthDataProvider) GetIndexBars(from, to time.Time) ([]ohlcv.Bar, error) {
	// A benchmark index is less volatile than a single name.
	return randomWalk(from, to, 20000.0, 0.004), nil
}

func randomWalk(from, to time.Time, startPrice, dailyVolPct float64) []ohlcv.Bar {
	var out []ohlcv.Bar
	price := startPrice
	for cur := from; !cur.After(to); cur = cur.AddDate(0, 0, 1) {
		if cur.Weekday() == time.Saturday || cur.Weekday() == time.Sunday {
			continue
		}
		delta := rand.NormFloat64() * dailyVolPct * price
		open := price
		close := price + delta
		high := math.Max(open, close) + math.Abs(rand.NormFloat64()*dailyVolPct*price*0.3)
		low := math.Min(open, close) - math.Abs(rand.NormFloat64()*dailyVolPct*price*0.3)
		out = append(out, ohlcv.Bar{
			Date:   cur,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: float64(1000 + rand.Intn(5000)),
		})
		price = close
	}
	return out
}
