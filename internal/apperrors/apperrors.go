// Package apperrors defines the error taxonomy shared across the engine
// (spec §7): kinds, not names, so callers can branch with errors.As instead
// of string matching. Every error carries enough context (stage, symbol,
// rule stack) to satisfy the "never silently swallow" propagation policy —
// the caller logs it with that context before deciding whether to continue
// (per-symbol faults) or abort (persistence faults).
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is one of the four error categories the spec distinguishes.
type Kind string

const (
	Configuration Kind = "configuration"
	Data          Kind = "data"
	Computation   Kind = "computation"
	Persistence   Kind = "persistence"
)

// Error is the concrete type every package in this module raises instead of
// bare fmt.Errorf, so that Stage/Symbol/RuleStack survive to the log line
// that records the failure.
type Error struct {
	Kind      Kind
	Stage     string // component that raised it, e.g. "seeker", "backtest"
	Symbol    string // empty when not symbol-scoped
	RuleStack string // empty when not rule-scoped
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s[%s]", e.Kind, e.Stage)
	if e.Symbol != "" {
		msg += fmt.Sprintf(" symbol=%s", e.Symbol)
	}
	if e.RuleStack != "" {
		msg += fmt.Sprintf(" rule_stack=%s", e.RuleStack)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Configurationf wraps a formatted error as Configuration-kind.
func Configurationf(stage string, format string, args ...any) error {
	return &Error{Kind: Configuration, Stage: stage, Err: fmt.Errorf(format, args...)}
}

// Dataf wraps a formatted error as Data-kind, scoped to symbol.
func Dataf(stage, symbol string, format string, args ...any) error {
	return &Error{Kind: Data, Stage: stage, Symbol: symbol, Err: fmt.Errorf(format, args...)}
}

// Computationf wraps a formatted error as Computation-kind, scoped to
// symbol and rule stack.
func Computationf(stage, symbol, ruleStack string, format string, args ...any) error {
	return &Error{Kind: Computation, Stage: stage, Symbol: symbol, RuleStack: ruleStack, Err: fmt.Errorf(format, args...)}
}

// Persistencef wraps a formatted error as Persistence-kind.
func Persistencef(stage string, format string, args ...any) error {
	return &Error{Kind: Persistence, Stage: stage, Err: fmt.Errorf(format, args...)}
}

// Is reports whether err (or anything it wraps) is an *Error of the given
// Kind. Used by callers that need to decide "continue this symbol" vs.
// "abort the run" without string-matching messages.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
