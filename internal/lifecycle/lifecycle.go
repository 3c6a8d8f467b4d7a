// Package lifecycle is the Position Lifecycle component (spec §4.H): the
// day-to-day reconciliation of open positions against fresh price data and
// fresh entry signals. Grounded on internal/backtest/simulate.go's
// priority-ordered exit chain (stop-loss > take-profit > trailing >
// indicator > time), generalized from a full-history simulation loop to a
// single day's evaluation against an already-open Position.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/contactkeval/kiss-signal/internal/apperrors"
	"github.com/contactkeval/kiss-signal/internal/logger"
	"github.com/contactkeval/kiss-signal/internal/ohlcv"
	"github.com/contactkeval/kiss-signal/internal/ruleset"
	"github.com/contactkeval/kiss-signal/internal/rules"
	"github.com/contactkeval/kiss-signal/internal/store"
)

// Signal is one fresh entry produced by today's run of the Seeker/core
// pipeline: (symbol, rule_stack, signal_date, entry_price) per spec §4.H.
type Signal struct {
	Symbol     string
	RuleStack  []ruleset.RuleDef
	SignalDate time.Time
	EntryPrice float64
}

// PriceProvider resolves a symbol's full price history on demand. The
// concrete implementation (internal/data) is an external collaborator the
// spec deliberately keeps out of core scope; Lifecycle only needs the
// narrow read it uses to evaluate exits.
type PriceProvider interface {
	GetPrice(symbol string) (ohlcv.Frame, error)
}

// IndexProvider resolves the benchmark index series used for the
// informational nifty_return_pct figure (spec §6 MarketIndexProvider). May
// be nil; when absent, HeldPosition.NiftyReturnPct is left at zero.
type IndexProvider interface {
	GetIndex() (ohlcv.Frame, error)
}

// HeldPosition is a still-open position plus the informational figures
// spec §4.H step 6 computes but does not persist.
type HeldPosition struct {
	store.Position
	CurrentPrice   float64
	ReturnPct      float64
	NiftyReturnPct float64
	DaysHeld       int
}

// Reconcile implements the §4.H contract: reconcile(today, new_signals,
// open_positions, price_data_provider, config) → (positions_to_hold,
// positions_to_close, positions_to_open).
func Reconcile(
	today time.Time,
	newSignals []Signal,
	openPositions []store.Position,
	prices PriceProvider,
	index IndexProvider,
	bound *ruleset.BoundRulesConfig,
	cfg ruleset.Config,
) (toHold []HeldPosition, toClose []store.Position, toOpen []store.Position, err error) {
	openSymbols := make(map[string]bool, len(openPositions))
	for _, p := range openPositions {
		openSymbols[p.Symbol] = true

		frame, ferr := prices.GetPrice(p.Symbol)
		if ferr != nil {
			return nil, nil, nil, apperrors.Dataf("lifecycle.Reconcile", p.Symbol, "%w", ferr)
		}

		held, closed, evalErr := evaluatePosition(today, p, frame, index, bound, cfg)
		if evalErr != nil {
			return nil, nil, nil, evalErr
		}
		if closed != nil {
			toClose = append(toClose, *closed)
		} else {
			toHold = append(toHold, *held)
		}
	}

	seenToday := make(map[string]bool)
	for _, sig := range newSignals {
		if openSymbols[sig.Symbol] || seenToday[sig.Symbol] {
			logger.Infof("lifecycle: %s: duplicate open-position attempt for %s ignored", sig.Symbol, sig.SignalDate.Format("2006-01-02"))
			continue
		}
		seenToday[sig.Symbol] = true
		toOpen = append(toOpen, store.NewPosition(sig.Symbol, sig.SignalDate, sig.EntryPrice, sig.RuleStack))
	}

	return toHold, toClose, toOpen, nil
}

// evaluatePosition applies the five-step priority chain to one open
// position against today's bar. Returns either a HeldPosition (not closed)
// or a closed store.Position with its exit fields populated, never both.
func evaluatePosition(
	today time.Time,
	p store.Position,
	frame ohlcv.Frame,
	index IndexProvider,
	bound *ruleset.BoundRulesConfig,
	cfg ruleset.Config,
) (*HeldPosition, *store.Position, error) {
	entryIdx, ok := frame.IndexOf(p.EntryDate)
	if !ok {
		return nil, nil, apperrors.Dataf("lifecycle.evaluatePosition", p.Symbol, "entry_date %s not found in price history", p.EntryDate.Format("2006-01-02"))
	}
	todayIdx, ok := frame.IndexOf(today)
	if !ok {
		logger.Infof("lifecycle: %s: no bar for %s, holding position unevaluated", p.Symbol, today.Format("2006-01-02"))
		return heldPosition(p, frame, entryIdx, frame.Len()-1, today, index), nil, nil
	}

	closes, highs, lows := frame.Closes(), frame.Highs(), frame.Lows()

	// The entry bar is protected: no same-bar exit evaluation, mirroring
	// the Backtester's execution convention (spec §9).
	if todayIdx > entryIdx {
		if bound.StopLossPct != nil {
			stopLevel := p.EntryPrice * (1 - *bound.StopLossPct)
			if lows[todayIdx] <= stopLevel {
				reason := fmt.Sprintf("Stop-loss at -%.1f%%", *bound.StopLossPct*100)
				return nil, closePosition(p, today, stopLevel, reason), nil
			}
		}
		if bound.TakeProfitPct != nil {
			targetLevel := p.EntryPrice * (1 + *bound.TakeProfitPct)
			if highs[todayIdx] >= targetLevel {
				reason := fmt.Sprintf("Take-profit at +%.1f%%", *bound.TakeProfitPct*100)
				return nil, closePosition(p, today, targetLevel, reason), nil
			}
		}
		if bound.Trailing != nil {
			levels := rules.ChandelierExitLevel(frame, entryIdx, bound.Trailing.ATRPeriod, bound.Trailing.ATRMultiplier)
			if closes[todayIdx] <= levels[todayIdx] {
				return nil, closePosition(p, today, closes[todayIdx], "Trailing: Chandelier"), nil
			}
		}
		if name, fired, err := firstFiringExit(frame.Slice(0, todayIdx+1), bound.ExitConditions); err != nil {
			return nil, nil, apperrors.Computationf("lifecycle.evaluatePosition", p.Symbol, ruleset.RuleStackString(p.RuleStackUsed), "%w", err)
		} else if fired {
			return nil, closePosition(p, today, closes[todayIdx], "Rule: "+name), nil
		}
		if daysBetween(p.EntryDate, today) >= cfg.HoldPeriod {
			reason := fmt.Sprintf("Time limit: %d days", cfg.HoldPeriod)
			return nil, closePosition(p, today, closes[todayIdx], reason), nil
		}
	}

	return heldPosition(p, frame, entryIdx, todayIdx, today, index), nil, nil
}

// firstFiringExit evaluates every indicator exit rule over price data ending
// today (spec §4.H step 4) and reports the name of the first whose signal
// is true at the last bar. frame is expected to already be sliced so its
// last bar is today's.
func firstFiringExit(frame ohlcv.Frame, exits []ruleset.BoundRule) (string, bool, error) {
	todayIdx := frame.Len() - 1
	for _, r := range exits {
		sig, err := r.Fn(frame)
		if err != nil {
			return "", false, err
		}
		if sig[todayIdx] {
			return r.Def.Name, true, nil
		}
	}
	return "", false, nil
}

func daysBetween(entryDate, today time.Time) int {
	return int(today.Sub(entryDate).Hours() / 24)
}

func closePosition(p store.Position, today time.Time, exitPrice float64, reason string) *store.Position {
	returnPct := (exitPrice - p.EntryPrice) / p.EntryPrice
	days := daysBetween(p.EntryDate, today)
	closed := p
	closed.Status = store.PositionClosed
	closed.ExitDate = &today
	closed.ExitPrice = &exitPrice
	closed.FinalReturnPct = &returnPct
	closed.DaysHeld = &days
	closed.ExitReason = &reason
	return &closed
}

func heldPosition(p store.Position, frame ohlcv.Frame, entryIdx, todayIdx int, today time.Time, index IndexProvider) *HeldPosition {
	closes := frame.Closes()
	currentPrice := closes[todayIdx]
	h := &HeldPosition{
		Position:     p,
		CurrentPrice: currentPrice,
		ReturnPct:    (currentPrice - p.EntryPrice) / p.EntryPrice,
		DaysHeld:     daysBetween(p.EntryDate, today),
	}
	if index == nil {
		return h
	}
	idxFrame, err := index.GetIndex()
	if err != nil {
		logger.Infof("lifecycle: %s: benchmark index unavailable, nifty_return_pct left at zero: %v", p.Symbol, err)
		return h
	}
	entryMark, ok1 := idxFrame.IndexOf(p.EntryDate)
	todayMark, ok2 := idxFrame.IndexOf(today)
	if !ok1 || !ok2 {
		return h
	}
	idxCloses := idxFrame.Closes()
	h.NiftyReturnPct = (idxCloses[todayMark] - idxCloses[entryMark]) / idxCloses[entryMark]
	return h
}
