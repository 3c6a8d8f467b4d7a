// Package backtest is the Single-Window Backtester (spec §4.D): it runs one
// rule combination over one price slice and produces a StrategyResult, or
// nil if the combination fails a gate. internal/walkforward drives this
// package once per train/test window, and calls BacktestCombination
// directly for the (rare) in_sample debug path.
package backtest

import (
	"time"

	"github.com/contactkeval/kiss-signal/internal/ruleset"
)

// Trade is one completed round-trip: entry at EntryDate/EntryPrice, exit at
// ExitDate/ExitPrice for ExitReason. Mirrors the teacher's engine.Trade
// shape (open/close dates, prices, a closing reason) generalized from
// option-leg premiums to a single equity position's share price.
type Trade struct {
	EntryDate  time.Time
	EntryPrice float64
	Shares     float64
	ExitDate   time.Time
	ExitPrice  float64
	ExitReason string
	ReturnPct  float64
}

// Metrics is the numeric summary computed over a trade log (spec §4.D step
// 8). Shared between the single-window path and internal/walkforward's
// OOS-aggregated recomputation over a concatenated trade log.
type Metrics struct {
	TotalReturn float64
	WinPct      float64
	Sharpe      float64
	AvgReturn   float64
	EdgeScore   float64
	TotalTrades int
}

// StrategyResult is the output of one backtest (spec §3). RuleStack is the
// entry-rule combination that produced it; ConfigSnapshot/ConfigHash carry
// provenance for Persistence's intelligent-clear and dedup operations.
type StrategyResult struct {
	Symbol         string
	RuleStack      []ruleset.RuleDef
	Metrics        Metrics
	RunTimestamp   time.Time
	ConfigSnapshot ruleset.ConfigSnapshot
	ConfigHash     string
	Trades         []Trade
}
