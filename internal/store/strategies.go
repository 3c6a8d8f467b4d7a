package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/contactkeval/kiss-signal/internal/apperrors"
	"github.com/contactkeval/kiss-signal/internal/backtest"
	"github.com/contactkeval/kiss-signal/internal/logger"
	"github.com/contactkeval/kiss-signal/internal/metrics"
	"github.com/contactkeval/kiss-signal/internal/ruleset"
)

// SaveStrategy inserts result, replacing any existing row with the same
// (symbol, rule_stack, config_hash) — spec §4.G "insert-or-replace on the
// unique key".
func (s *Store) SaveStrategy(result *backtest.StrategyResult) error {
	ruleStackJSON, err := json.Marshal(result.RuleStack)
	if err != nil {
		return apperrors.Persistencef("store.SaveStrategy", "marshal rule_stack: %w", err)
	}
	snapshotJSON, err := json.Marshal(result.ConfigSnapshot)
	if err != nil {
		return apperrors.Persistencef("store.SaveStrategy", "marshal config_snapshot: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO strategies (symbol, rule_stack, edge_score, win_pct, sharpe, total_return, total_trades, run_timestamp, config_snapshot, config_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, rule_stack, config_hash) DO UPDATE SET
			edge_score = excluded.edge_score,
			win_pct = excluded.win_pct,
			sharpe = excluded.sharpe,
			total_return = excluded.total_return,
			total_trades = excluded.total_trades,
			run_timestamp = excluded.run_timestamp,
			config_snapshot = excluded.config_snapshot
	`, result.Symbol, string(ruleStackJSON), result.Metrics.EdgeScore, result.Metrics.WinPct, result.Metrics.Sharpe,
		result.Metrics.TotalReturn, result.Metrics.TotalTrades, result.RunTimestamp, string(snapshotJSON), result.ConfigHash)
	if err != nil {
		return apperrors.Persistencef("store.SaveStrategy", "%s: %w", result.Symbol, err)
	}
	return nil
}

// SaveStrategies writes every result in a single transaction (spec §5
// "writes are batched at the end of the run and committed in one
// transaction — writers do not interleave"), so a per-symbol worker
// fan-out never produces interleaved commits. An error rolls back the
// whole batch; no partial set of strategies is ever persisted.
func (s *Store) SaveStrategies(results []*backtest.StrategyResult) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return apperrors.Persistencef("store.SaveStrategies", "begin: %w", err)
	}
	defer func() {
		metrics.RecordCommit("strategies", err)
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, result := range results {
		if err = saveStrategyTx(tx, result); err != nil {
			return apperrors.Persistencef("store.SaveStrategies", "%s: %w", result.Symbol, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return apperrors.Persistencef("store.SaveStrategies", "commit: %w", err)
	}
	logger.Infof("store: save_strategies: committed %d rows", len(results))
	return nil
}

func saveStrategyTx(tx *sql.Tx, result *backtest.StrategyResult) error {
	ruleStackJSON, err := json.Marshal(result.RuleStack)
	if err != nil {
		return err
	}
	snapshotJSON, err := json.Marshal(result.ConfigSnapshot)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO strategies (symbol, rule_stack, edge_score, win_pct, sharpe, total_return, total_trades, run_timestamp, config_snapshot, config_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, rule_stack, config_hash) DO UPDATE SET
			edge_score = excluded.edge_score,
			win_pct = excluded.win_pct,
			sharpe = excluded.sharpe,
			total_return = excluded.total_return,
			total_trades = excluded.total_trades,
			run_timestamp = excluded.run_timestamp,
			config_snapshot = excluded.config_snapshot
	`, result.Symbol, string(ruleStackJSON), result.Metrics.EdgeScore, result.Metrics.WinPct, result.Metrics.Sharpe,
		result.Metrics.TotalReturn, result.Metrics.TotalTrades, result.RunTimestamp, string(snapshotJSON), result.ConfigHash)
	return err
}

// QueryFilter narrows QueryStrategies; an empty Symbol matches every
// symbol.
type QueryFilter struct {
	Symbol string
}

// StrategyRow is one deduplicated strategies-table row.
type StrategyRow struct {
	ID           int64
	Symbol       string
	RuleStack    []ruleset.RuleDef
	Metrics      backtest.Metrics
	RunTimestamp time.Time
	ConfigHash   string
}

// QueryStrategies reads strategies matching filter, deduplicated so that
// when multiple rows share (symbol, rule_stack), only the row with the
// max id (the latest insertion) is returned (spec §4.G).
func (s *Store) QueryStrategies(filter QueryFilter) ([]StrategyRow, error) {
	query := `
		SELECT id, symbol, rule_stack, edge_score, win_pct, sharpe, total_return, total_trades, run_timestamp, config_hash
		FROM strategies s
		WHERE id = (SELECT MAX(id) FROM strategies s2 WHERE s2.symbol = s.symbol AND s2.rule_stack = s.rule_stack)
	`
	args := []any{}
	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	query += " ORDER BY id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Persistencef("store.QueryStrategies", "%w", err)
	}
	defer rows.Close()

	var out []StrategyRow
	for rows.Next() {
		var row StrategyRow
		var ruleStackJSON string
		if err := rows.Scan(&row.ID, &row.Symbol, &ruleStackJSON, &row.Metrics.EdgeScore, &row.Metrics.WinPct,
			&row.Metrics.Sharpe, &row.Metrics.TotalReturn, &row.Metrics.TotalTrades, &row.RunTimestamp, &row.ConfigHash); err != nil {
			return nil, apperrors.Persistencef("store.QueryStrategies", "scan: %w", err)
		}
		if err := json.Unmarshal([]byte(ruleStackJSON), &row.RuleStack); err != nil {
			return nil, apperrors.Persistencef("store.QueryStrategies", "unmarshal rule_stack: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ClearCurrentStrategies deletes only rows whose config_hash matches
// configHash AND whose rule stack (rendered via ruleset.RuleStackString)
// is in activeCombinations, leaving every other row — other config
// hashes, deprecated combinations, and every legacy row — untouched (spec
// §4.G "Intelligent clear"). Transactional; returns the preserved and
// deleted row counts across the whole table.
func (s *Store) ClearCurrentStrategies(configHash string, activeCombinations []string) (preserved, deleted int, err error) {
	if configHash == legacyConfigHash {
		return 0, 0, apperrors.Configurationf("store.ClearCurrentStrategies", "config_hash %q is reserved and always preserved", legacyConfigHash)
	}
	active := make(map[string]bool, len(activeCombinations))
	for _, c := range activeCombinations {
		active[c] = true
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, 0, apperrors.Persistencef("store.ClearCurrentStrategies", "begin: %w", err)
	}
	defer tx.Rollback()

	var totalBefore int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM strategies`).Scan(&totalBefore); err != nil {
		return 0, 0, apperrors.Persistencef("store.ClearCurrentStrategies", "count: %w", err)
	}

	rows, err := tx.Query(`SELECT id, rule_stack FROM strategies WHERE config_hash = ?`, configHash)
	if err != nil {
		return 0, 0, apperrors.Persistencef("store.ClearCurrentStrategies", "query: %w", err)
	}
	var toDelete []int64
	for rows.Next() {
		var id int64
		var ruleStackJSON string
		if err := rows.Scan(&id, &ruleStackJSON); err != nil {
			rows.Close()
			return 0, 0, apperrors.Persistencef("store.ClearCurrentStrategies", "scan: %w", err)
		}
		var defs []ruleset.RuleDef
		if err := json.Unmarshal([]byte(ruleStackJSON), &defs); err != nil {
			rows.Close()
			return 0, 0, apperrors.Persistencef("store.ClearCurrentStrategies", "unmarshal: %w", err)
		}
		if active[ruleset.RuleStackString(defs)] {
			toDelete = append(toDelete, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, 0, apperrors.Persistencef("store.ClearCurrentStrategies", "rows: %w", err)
	}
	rows.Close()

	for _, id := range toDelete {
		if _, err := tx.Exec(`DELETE FROM strategies WHERE id = ?`, id); err != nil {
			return 0, 0, apperrors.Persistencef("store.ClearCurrentStrategies", "delete id=%d: %w", id, err)
		}
	}
	deleted = len(toDelete)
	preserved = totalBefore - deleted

	if err := tx.Commit(); err != nil {
		return 0, 0, apperrors.Persistencef("store.ClearCurrentStrategies", "commit: %w", err)
	}
	logger.Infof("store: clear_current_strategies(config_hash=%s): preserved=%d deleted=%d", configHash, preserved, deleted)
	return preserved, deleted, nil
}
