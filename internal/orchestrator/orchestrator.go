// Package orchestrator is the embarrassingly-parallel-across-symbols fan-out
// boundary described by spec §5: one worker per symbol runs the seeker
// pipeline against that symbol's own PriceFrame, no state is shared between
// workers, and persistence writes are batched into a single transaction
// after every worker has finished rather than interleaved across symbols.
// Grounded on the teacher's cmd/option-replay wiring of one Engine.Run per
// invocation, generalized here to N symbols run concurrently with a bounded
// worker pool instead of the teacher's single-underlying, single-goroutine
// shape.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/contactkeval/kiss-signal/internal/apperrors"
	"github.com/contactkeval/kiss-signal/internal/backtest"
	"github.com/contactkeval/kiss-signal/internal/lifecycle"
	"github.com/contactkeval/kiss-signal/internal/logger"
	"github.com/contactkeval/kiss-signal/internal/metrics"
	"github.com/contactkeval/kiss-signal/internal/ohlcv"
	"github.com/contactkeval/kiss-signal/internal/ruleset"
	"github.com/contactkeval/kiss-signal/internal/seeker"
)

// SymbolFrame pairs a symbol with its own immutable PriceFrame, the unit of
// work handed to one worker (spec §5 "Each worker receives: its symbol's
// PriceFrame (value)...").
type SymbolFrame struct {
	Symbol string
	Price  ohlcv.Frame
}

// Options bounds the worker pool and the per-symbol wall-clock budget (spec
// §5 "Cancellation & timeouts").
type Options struct {
	MaxWorkers    int
	SymbolTimeout time.Duration
}

func (o Options) workers() int {
	if o.MaxWorkers > 0 {
		return o.MaxWorkers
	}
	return 4
}

// DiscoverUniverse runs the seeker pipeline for every symbol concurrently,
// bounded by Options.MaxWorkers, and returns the strategies discovered
// across the whole universe. A symbol whose worker errors or exceeds
// SymbolTimeout is logged and its partial result discarded (spec §5
// "Completed symbols' results are preserved"); it never aborts the rest of
// the run. A ConfigurationError is the one exception: the rule binding is
// shared across every worker, so a config fault aborts immediately rather
// than being retried symbol by symbol.
func DiscoverUniverse(
	ctx context.Context,
	symbols []SymbolFrame,
	bound *ruleset.BoundRulesConfig,
	cfg ruleset.Config,
	snapshot ruleset.ConfigSnapshot,
	now time.Time,
	opts Options,
) ([]*backtest.StrategyResult, error) {
	sem := make(chan struct{}, opts.workers())
	var wg sync.WaitGroup
	var mu sync.Mutex
	var results []*backtest.StrategyResult
	var configErr error

	for _, sf := range symbols {
		sf := sf
		mu.Lock()
		aborted := configErr != nil
		mu.Unlock()
		if aborted {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			workerCtx := ctx
			var cancel context.CancelFunc
			if opts.SymbolTimeout > 0 {
				workerCtx, cancel = context.WithTimeout(ctx, opts.SymbolTimeout)
				defer cancel()
			}

			result, err := runSymbol(workerCtx, sf, bound, cfg, snapshot, now)
			if err != nil {
				if apperrors.Is(err, apperrors.Configuration) {
					mu.Lock()
					if configErr == nil {
						configErr = err
					}
					mu.Unlock()
					return
				}
				logger.Warnf("orchestrator: %s: worker discarded: %v", sf.Symbol, err)
				metrics.SymbolsFailed.Inc()
				return
			}

			mu.Lock()
			results = append(results, result...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if configErr != nil {
		return nil, configErr
	}
	return results, nil
}

// runSymbol times and runs the seeker for one symbol, respecting ctx
// cancellation — the seeker itself is CPU-bound and non-blocking (spec §5
// "Core computation is CPU-bound and non-blocking"), so the context is
// checked before the call starts rather than threaded through it.
func runSymbol(
	ctx context.Context,
	sf SymbolFrame,
	bound *ruleset.BoundRulesConfig,
	cfg ruleset.Config,
	snapshot ruleset.ConfigSnapshot,
	now time.Time,
) ([]*backtest.StrategyResult, error) {
	select {
	case <-ctx.Done():
		return nil, apperrors.Dataf("orchestrator", sf.Symbol, "cancelled before start: %w", ctx.Err())
	default:
	}

	timer := prometheusTimer(sf.Symbol)
	defer timer()

	results, err := seeker.FindStrategies(sf.Price, bound, cfg, sf.Symbol, snapshot, now)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, apperrors.Dataf("orchestrator", sf.Symbol, "cancelled after run: %w", ctx.Err())
	}
	return results, nil
}

func prometheusTimer(symbol string) func() {
	start := time.Now()
	return func() {
		metrics.SymbolWorkerDuration.WithLabelValues(symbol).Observe(time.Since(start).Seconds())
	}
}

// BuildSignals evaluates each discovered strategy's rule stack against the
// latest bar of its symbol's PriceFrame to decide whether a live entry
// signal fires today (spec §4.H "new_signals: list of (symbol, rule_stack,
// signal_date, entry_price) produced from current-day signal evaluation").
// Only strategies that cleared the seeker's acceptance threshold generate
// signals; a phase-3 fallback result (logged but below threshold) is
// informational only and never opens a position. Symbols with an existing
// open position are skipped here too, even though Reconcile enforces the
// same rule, so a caller inspecting the returned signals sees the same set
// Reconcile will actually act on.
func BuildSignals(
	results []*backtest.StrategyResult,
	bound *ruleset.BoundRulesConfig,
	frames map[string]ohlcv.Frame,
	openSymbols map[string]bool,
	cfg ruleset.Config,
	today time.Time,
) []lifecycle.Signal {
	entryByName := make(map[string]ruleset.BoundRule, len(bound.EntrySignals))
	for _, r := range bound.EntrySignals {
		entryByName[r.Def.Name] = r
	}

	var signals []lifecycle.Signal
	for _, result := range results {
		if openSymbols[result.Symbol] {
			continue
		}
		accepted := result.Metrics.EdgeScore >= cfg.SeekerMinEdgeScore && result.Metrics.TotalTrades >= cfg.SeekerMinTrades
		if !accepted {
			continue
		}
		frame, ok := frames[result.Symbol]
		if !ok || frame.Len() == 0 {
			continue
		}
		idx, ok := frame.IndexOf(today)
		if !ok {
			idx = frame.Len() - 1
		}
		fires, err := stackFires(result.RuleStack, entryByName, frame, idx)
		if err != nil {
			logger.Warnf("orchestrator: %s: evaluating live signal: %v", result.Symbol, err)
			continue
		}
		if !fires {
			continue
		}
		bar := frame.Bars()[idx]
		signals = append(signals, lifecycle.Signal{
			Symbol:     result.Symbol,
			RuleStack:  result.RuleStack,
			SignalDate: bar.Date,
			EntryPrice: bar.Close,
		})
	}
	return signals
}

// stackFires evaluates every rule in stack against frame and ANDs their
// signal at idx — the same combination semantics the backtester uses for
// an entry rule stack (spec §4.D).
func stackFires(stack []ruleset.RuleDef, entryByName map[string]ruleset.BoundRule, frame ohlcv.Frame, idx int) (bool, error) {
	for _, def := range stack {
		r, ok := entryByName[def.Name]
		if !ok {
			return false, apperrors.Configurationf("orchestrator.stackFires", "unknown entry rule %q in persisted rule stack", def.Name)
		}
		sig, err := r.Fn(frame)
		if err != nil {
			return false, err
		}
		if idx >= len(sig) || !sig[idx] {
			return false, nil
		}
	}
	return true, nil
}
