// Package rules is the rule library: pure, vectorized predicates over
// ohlcv.Frame. Every exported rule function is deterministic, free of I/O and
// hidden state, and returns a boolean sequence aligned to the frame's index.
//
// Rules never raise for insufficient data — a frame shorter than a rule's
// warmup yields an all-false Signal. They do raise (a *ValidationError) for
// malformed parameters, before any computation runs, per spec §4.A.
package rules

import (
	"fmt"

	"github.com/contactkeval/kiss-signal/internal/ohlcv"
)

// Signal is a boolean sequence aligned to a Frame's index.
type Signal []bool

// ValidationError reports a malformed rule parameter, caught at config-bind
// time (spec §7: "Rule-level invalid params: raised at config-binding time").
type ValidationError struct {
	Rule   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rules: %s.%s: %s", e.Rule, e.Field, e.Reason)
}

// Func is the shape every registered rule implementation satisfies. params
// has already been decoded and validated into the rule's concrete Params
// struct by the time Func runs.
type Func func(price ohlcv.Frame) (Signal, error)

// allFalse returns a Signal the length of n, every element false — the
// required output for warmup bars and insufficient-data frames.
func allFalse(n int) Signal {
	return make(Signal, n)
}

// and combines signals with logical AND. Panics if lengths differ, which
// never happens when every signal is produced from the same Frame.
func and(sigs ...Signal) Signal {
	if len(sigs) == 0 {
		return nil
	}
	out := make(Signal, len(sigs[0]))
	for i := range out {
		v := true
		for _, s := range sigs {
			v = v && s[i]
		}
		out[i] = v
	}
	return out
}

// or combines signals with logical OR.
func or(sigs ...Signal) Signal {
	if len(sigs) == 0 {
		return nil
	}
	out := make(Signal, len(sigs[0]))
	for i := range out {
		v := false
		for _, s := range sigs {
			v = v || s[i]
		}
		out[i] = v
	}
	return out
}

// crossAbove reports, per bar, whether a crossed strictly above b on that
// bar (a[i-1] <= b[i-1] and a[i] > b[i]). Index 0 is always false: there is
// no prior bar to cross from.
func crossAbove(a, b []float64, warmup int) Signal {
	out := make(Signal, len(a))
	for i := 1; i < len(a); i++ {
		if i < warmup {
			continue
		}
		out[i] = a[i-1] <= b[i-1] && a[i] > b[i]
	}
	return out
}

// crossBelow reports, per bar, whether a crossed strictly below b.
func crossBelow(a, b []float64, warmup int) Signal {
	out := make(Signal, len(a))
	for i := 1; i < len(a); i++ {
		if i < warmup {
			continue
		}
		out[i] = a[i-1] >= b[i-1] && a[i] < b[i]
	}
	return out
}
