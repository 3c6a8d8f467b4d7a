// Package ohlcv defines the price-history value type shared by every rule,
// backtest, and sizing computation in the engine.
//
// A Frame is read-only from the core's point of view: it is produced once by
// a data.PriceDataProvider and then passed by value through rules, the
// backtester, and the walk-forward orchestrator. Nothing here performs I/O.
package ohlcv

import (
	"fmt"
	"time"
)

// Bar is one trading day of OHLCV data.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Frame is a time-indexed OHLCV table, ascending by date, with no duplicate
// dates. Every rule in internal/rules receives a Frame and returns a boolean
// sequence aligned to Frame.Index().
type Frame struct {
	bars []Bar
}

// NewFrame validates and wraps bars into a Frame. Bars must already be sorted
// ascending by Date; NewFrame does not sort, since silently reordering input
// the caller believes is chronological would hide a data-provider bug.
func NewFrame(bars []Bar) (Frame, error) {
	seen := make(map[string]struct{}, len(bars))
	for i, b := range bars {
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return Frame{}, fmt.Errorf("ohlcv: bar %d (%s): non-positive price", i, b.Date.Format("2006-01-02"))
		}
		if b.Volume < 0 {
			return Frame{}, fmt.Errorf("ohlcv: bar %d (%s): negative volume", i, b.Date.Format("2006-01-02"))
		}
		if b.High < b.Low {
			return Frame{}, fmt.Errorf("ohlcv: bar %d (%s): high < low", i, b.Date.Format("2006-01-02"))
		}
		key := b.Date.Format("2006-01-02")
		if _, dup := seen[key]; dup {
			return Frame{}, fmt.Errorf("ohlcv: duplicate date %s", key)
		}
		seen[key] = struct{}{}
		if i > 0 && !b.Date.After(bars[i-1].Date) {
			return Frame{}, fmt.Errorf("ohlcv: bar %d (%s) out of order", i, b.Date.Format("2006-01-02"))
		}
	}
	return Frame{bars: bars}, nil
}

// Len returns the number of bars.
func (f Frame) Len() int { return len(f.bars) }

// Bars returns the underlying bar slice. Callers must not mutate it.
func (f Frame) Bars() []Bar { return f.bars }

// Index returns the date index, ascending.
func (f Frame) Index() []time.Time {
	out := make([]time.Time, len(f.bars))
	for i, b := range f.bars {
		out[i] = b.Date
	}
	return out
}

// Closes returns the close-price sequence.
func (f Frame) Closes() []float64 { return column(f.bars, func(b Bar) float64 { return b.Close }) }

// Opens returns the open-price sequence.
func (f Frame) Opens() []float64 { return column(f.bars, func(b Bar) float64 { return b.Open }) }

// Highs returns the high-price sequence.
func (f Frame) Highs() []float64 { return column(f.bars, func(b Bar) float64 { return b.High }) }

// Lows returns the low-price sequence.
func (f Frame) Lows() []float64 { return column(f.bars, func(b Bar) float64 { return b.Low }) }

// Volumes returns the volume sequence.
func (f Frame) Volumes() []float64 { return column(f.bars, func(b Bar) float64 { return b.Volume }) }

func column(bars []Bar, sel func(Bar) float64) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = sel(b)
	}
	return out
}

// Slice returns the sub-Frame over [from, to) bar indices. It shares the
// backing array; callers never mutate bars so this is safe.
func (f Frame) Slice(from, to int) Frame {
	if from < 0 {
		from = 0
	}
	if to > len(f.bars) {
		to = len(f.bars)
	}
	if from >= to {
		return Frame{}
	}
	return Frame{bars: f.bars[from:to]}
}

// IndexOf returns the position of the first bar on or after d, and false if d
// is after every bar's date.
func (f Frame) IndexOf(d time.Time) (int, bool) {
	for i, b := range f.bars {
		if !b.Date.Before(d) {
			return i, true
		}
	}
	return len(f.bars), false
}

// GapsAfter5Days reports the dates after which more than 5 trading days
// elapsed before the next bar — an advisory data-quality signal, never an
// error (spec §3: "Gaps >5 trading days are flagged (advisory)"). Trading
// days are counted as weekdays; exchange holidays are not known here and are
// counted like any other weekday.
func (f Frame) GapsAfter5Days() []time.Time {
	var gaps []time.Time
	for i := 1; i < len(f.bars); i++ {
		days := 0
		for d := f.bars[i-1].Date.AddDate(0, 0, 1); !d.After(f.bars[i].Date); d = d.AddDate(0, 0, 1) {
			if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
				days++
			}
		}
		if days > 5 {
			gaps = append(gaps, f.bars[i-1].Date)
		}
	}
	return gaps
}
