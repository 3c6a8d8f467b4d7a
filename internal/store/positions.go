package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/contactkeval/kiss-signal/internal/apperrors"
	"github.com/contactkeval/kiss-signal/internal/metrics"
	"github.com/contactkeval/kiss-signal/internal/ruleset"
)

// PositionStatus is the Position state machine's two states (spec §4.H
// "OPEN → CLOSED. Terminal: CLOSED. No reopen.").
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// Position mirrors spec §3's Position schema.
type Position struct {
	ID                  string
	Symbol              string
	EntryDate           time.Time
	EntryPrice          float64
	Status              PositionStatus
	RuleStackUsed       []ruleset.RuleDef
	ExitDate            *time.Time
	ExitPrice           *float64
	FinalReturnPct      *float64
	FinalNiftyReturnPct *float64
	DaysHeld            *int
	ExitReason          *string
	CreatedAt           time.Time
}

// NewPosition constructs a fresh OPEN position for a new signal (spec
// §4.H "New-position opening").
func NewPosition(symbol string, entryDate time.Time, entryPrice float64, ruleStack []ruleset.RuleDef) Position {
	return Position{
		ID:            uuid.NewString(),
		Symbol:        symbol,
		EntryDate:     entryDate,
		EntryPrice:    entryPrice,
		Status:        PositionOpen,
		RuleStackUsed: ruleStack,
		CreatedAt:     time.Now().UTC(),
	}
}

// GetOpenPositions returns every position with status='OPEN' (spec §4.G
// read contract).
func (s *Store) GetOpenPositions() ([]Position, error) {
	rows, err := s.db.Query(`
		SELECT id, symbol, entry_date, entry_price, rule_stack_used, created_at
		FROM positions WHERE status = 'OPEN'
	`)
	if err != nil {
		return nil, apperrors.Persistencef("store.GetOpenPositions", "%w", err)
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		p := Position{Status: PositionOpen}
		var ruleStackJSON string
		if err := rows.Scan(&p.ID, &p.Symbol, &p.EntryDate, &p.EntryPrice, &ruleStackJSON, &p.CreatedAt); err != nil {
			return nil, apperrors.Persistencef("store.GetOpenPositions", "scan: %w", err)
		}
		if err := json.Unmarshal([]byte(ruleStackJSON), &p.RuleStackUsed); err != nil {
			return nil, apperrors.Persistencef("store.GetOpenPositions", "unmarshal rule_stack_used: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ApplyReconciliation persists one Lifecycle reconciliation pass in a
// single transaction: close positions, then insert newly-opened ones
// (spec §4.H "A single transaction updates closed positions and inserts
// opened positions"). Opening a position for a symbol that already has an
// OPEN row is a no-op, enforced by the partial unique index rather than an
// application-level check, since it is the index that is the actual
// source of truth for the "at most one OPEN per symbol" invariant.
func (s *Store) ApplyReconciliation(toClose, toOpen []Position) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return apperrors.Persistencef("store.ApplyReconciliation", "begin: %w", err)
	}
	defer func() {
		metrics.RecordCommit("positions", err)
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, p := range toClose {
		if err = closePosition(tx, p); err != nil {
			return err
		}
	}
	for _, p := range toOpen {
		if err = openPosition(tx, p); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return apperrors.Persistencef("store.ApplyReconciliation", "commit: %w", err)
	}
	return nil
}

func closePosition(tx *sql.Tx, p Position) error {
	_, err := tx.Exec(`
		UPDATE positions SET
			status = 'CLOSED', exit_date = ?, exit_price = ?, final_return_pct = ?,
			final_nifty_return_pct = ?, days_held = ?, exit_reason = ?
		WHERE id = ? AND status = 'OPEN'
	`, p.ExitDate, p.ExitPrice, p.FinalReturnPct, p.FinalNiftyReturnPct, p.DaysHeld, p.ExitReason, p.ID)
	if err != nil {
		return apperrors.Persistencef("store.ApplyReconciliation", "close %s: %w", p.ID, err)
	}
	return nil
}

func openPosition(tx *sql.Tx, p Position) error {
	ruleStackJSON, err := json.Marshal(p.RuleStackUsed)
	if err != nil {
		return apperrors.Persistencef("store.ApplyReconciliation", "marshal rule_stack_used: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO positions (id, symbol, entry_date, entry_price, status, rule_stack_used, created_at)
		VALUES (?, ?, ?, ?, 'OPEN', ?, ?)
		ON CONFLICT(symbol) WHERE status = 'OPEN' DO NOTHING
	`, p.ID, p.Symbol, p.EntryDate, p.EntryPrice, string(ruleStackJSON), p.CreatedAt)
	if err != nil {
		return apperrors.Persistencef("store.ApplyReconciliation", "open %s: %w", p.Symbol, err)
	}
	return nil
}
