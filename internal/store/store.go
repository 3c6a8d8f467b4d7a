// Package store is the Persistence component (spec §4.G): an append-only
// store of StrategyResult rows and a mutable store of Position rows,
// backed by SQLite via modernc.org/sqlite (pure Go, no cgo).
//
// The teacher has no persistence layer of its own (option-replay is a
// stateless backtesting CLI); this package is grounded on
// poorman-SynapseStrike's store.TacticStore — plain database/sql, no ORM,
// CREATE TABLE IF NOT EXISTS, idempotent ALTER TABLE migrations guarded by
// a PRAGMA table_info check rather than swallowed errors.
package store

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/contactkeval/kiss-signal/internal/apperrors"
	"github.com/contactkeval/kiss-signal/internal/logger"
)

// legacyConfigHash marks rows written before config provenance existed.
// Always preserved by ClearCurrentStrategies (spec §4.G "Intelligent clear").
const legacyConfigHash = "legacy"

// legacyConfigSnapshot is the backfill value for config_snapshot on rows
// migrated from a schema that predates it (spec §4.G "Migration").
const legacyConfigSnapshot = `{"legacy":true}`

// Store wraps a SQLite connection and the two tables the core reads and
// writes.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) a SQLite database at path and runs
// migrations. path may be ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.Persistencef("store.Open", "open %s: %w", path, err)
	}
	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS strategies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			rule_stack TEXT NOT NULL,
			edge_score REAL NOT NULL,
			win_pct REAL NOT NULL,
			sharpe REAL NOT NULL,
			total_return REAL NOT NULL,
			total_trades INTEGER NOT NULL,
			run_timestamp DATETIME NOT NULL,
			config_snapshot TEXT NOT NULL DEFAULT '` + legacyConfigSnapshot + `',
			config_hash TEXT NOT NULL DEFAULT '` + legacyConfigHash + `',
			UNIQUE(symbol, rule_stack, config_hash)
		)
	`); err != nil {
		return apperrors.Persistencef("store.migrate", "create strategies: %w", err)
	}

	if err := s.backfillLegacyColumns(); err != nil {
		return err
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS positions (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			entry_date DATETIME NOT NULL,
			entry_price REAL NOT NULL,
			status TEXT NOT NULL,
			rule_stack_used TEXT NOT NULL,
			exit_date DATETIME,
			exit_price REAL,
			final_return_pct REAL,
			final_nifty_return_pct REAL,
			days_held INTEGER,
			exit_reason TEXT,
			created_at DATETIME NOT NULL
		)
	`); err != nil {
		return apperrors.Persistencef("store.migrate", "create positions: %w", err)
	}
	if _, err := s.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_one_open_per_symbol
		ON positions(symbol) WHERE status = 'OPEN'
	`); err != nil {
		return apperrors.Persistencef("store.migrate", "create open-position index: %w", err)
	}
	return nil
}

// backfillLegacyColumns adds config_snapshot/config_hash to a strategies
// table that predates them, backing up the database file first (spec
// §4.G: "migration is idempotent and takes a backup before altering").
// A freshly created table already has both columns via CREATE TABLE, so
// this is a no-op on a new database.
func (s *Store) backfillLegacyColumns() error {
	cols, err := s.columns("strategies")
	if err != nil {
		return err
	}
	missing := []string{}
	for _, col := range []string{"config_snapshot", "config_hash"} {
		if !cols[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	if err := s.backupFile(); err != nil {
		return err
	}
	for _, col := range missing {
		if _, err := s.db.Exec(fmt.Sprintf(`ALTER TABLE strategies ADD COLUMN %s TEXT`, col)); err != nil {
			return apperrors.Persistencef("store.migrate", "add column %s: %w", col, err)
		}
	}
	if _, err := s.db.Exec(`UPDATE strategies SET config_snapshot = ? WHERE config_snapshot IS NULL`, legacyConfigSnapshot); err != nil {
		return apperrors.Persistencef("store.migrate", "backfill config_snapshot: %w", err)
	}
	if _, err := s.db.Exec(`UPDATE strategies SET config_hash = ? WHERE config_hash IS NULL`, legacyConfigHash); err != nil {
		return apperrors.Persistencef("store.migrate", "backfill config_hash: %w", err)
	}
	logger.Infof("store: migrated strategies table, backfilled legacy config_snapshot/config_hash for %d column(s)", len(missing))
	return nil
}

func (s *Store) columns(table string) (map[string]bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, apperrors.Persistencef("store.migrate", "table_info(%s): %w", table, err)
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, apperrors.Persistencef("store.migrate", "scan table_info: %w", err)
		}
		out[name] = true
	}
	return out, rows.Err()
}

// backupFile copies the database file aside before an altering migration.
// A no-op for in-memory databases and for a database that doesn't exist on
// disk yet (nothing to back up).
func (s *Store) backupFile() error {
	if s.path == "" || s.path == ":memory:" {
		return nil
	}
	src, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperrors.Persistencef("store.migrate", "open db file for backup: %w", err)
	}
	defer src.Close()

	backupPath := fmt.Sprintf("%s.bak.%d", s.path, time.Now().UnixNano())
	dst, err := os.Create(backupPath)
	if err != nil {
		return apperrors.Persistencef("store.migrate", "create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return apperrors.Persistencef("store.migrate", "copy backup: %w", err)
	}
	logger.Infof("store: migration backup written to %s", backupPath)
	return nil
}
