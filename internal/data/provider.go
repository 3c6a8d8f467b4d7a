// Package data is the PriceDataProvider / MarketIndexProvider boundary
// (spec §6): the engine's only point of contact with raw OHLCV history,
// kept deliberately outside the core's scope (spec §1 "Out of scope:
// ... raw-data fetching from vendor APIs").
//
// The teacher's Provider interface was shaped entirely around options data
// (GetContracts, GetOptionMidPrice, RoundToNearestStrike); this module
// generalizes it to what an equities rule engine actually needs — daily
// bars for a symbol, and daily bars for a benchmark index — while keeping
// the teacher's secondary-provider fallback-chaining convention and its
// per-implementation shape (synthetic, local file, vendor HTTP).
package data

import (
	"time"

	"github.com/contactkeval/kiss-signal/internal/ohlcv"
)

// Provider supplies price history. Secondary returns a fallback Provider to
// consult when this one has no data for a request, or nil if there is none
// — every implementation in this package threads that chain the same way
// the teacher's options providers did.
type Provider interface {
	Secondary() Provider
	GetDailyBars(symbol string, from, to time.Time) ([]ohlcv.Bar, error)
	GetIndexBars(from, to time.Time) ([]ohlcv.Bar, error)
}
