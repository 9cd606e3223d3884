package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lanemc/hivemind/internal/config"
	_ "modernc.org/sqlite"
)

// ErrNoFields is returned by partial updates called with an empty clause
// set; a zero-column SET is a caller bug, not a no-op.
var ErrNoFields = errors.New("no fields to update")

// ErrProposalResolved is returned when a vote or status transition targets
// a consensus proposal that has already reached a terminal status.
var ErrProposalResolved = errors.New("proposal already resolved")

type Store struct {
	db *sql.DB

	mu    sync.Mutex
	stmts map[string]*sql.Stmt
}

func New(cfg config.StoreConfig) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Enable WAL mode for concurrent read/write access and set a busy
	// timeout so writers retry instead of immediately returning SQLITE_BUSY.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-8000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("exec %s: %w", p, err)
		}
	}

	s := &Store{db: db, stmts: make(map[string]*sql.Stmt)}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	for _, st := range s.stmts {
		st.Close()
	}
	s.stmts = nil
	s.mu.Unlock()
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// stmt compiles the SQL for op once and reuses the prepared statement for
// all subsequent calls with the same operation key.
func (s *Store) stmt(op, query string) (*sql.Stmt, error) {
	s.mu.Lock()
	st, ok := s.stmts[op]
	s.mu.Unlock()
	if ok {
		return st, nil
	}

	st, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("%s: prepare: %w", op, err)
	}

	s.mu.Lock()
	if prev, ok := s.stmts[op]; ok {
		// Lost the race; keep the first one.
		s.mu.Unlock()
		st.Close()
		return prev, nil
	}
	s.stmts[op] = st
	s.mu.Unlock()
	return st, nil
}

func (s *Store) exec(op, query string, args ...any) (sql.Result, error) {
	st, err := s.stmt(op, query)
	if err != nil {
		return nil, err
	}
	res, err := st.Exec(args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

func (s *Store) query(op, query string, args ...any) (*sql.Rows, error) {
	st, err := s.stmt(op, query)
	if err != nil {
		return nil, err
	}
	rows, err := st.Query(args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rows, nil
}

func (s *Store) queryRow(op, query string, args ...any) (*sql.Row, error) {
	st, err := s.stmt(op, query)
	if err != nil {
		return nil, err
	}
	return st.QueryRow(args...), nil
}

// withTx runs fn inside a transaction, rolling back on error. Compound
// operations (set-active, submit-vote) go through here so concurrent
// callers cannot interleave between their statements.
func (s *Store) withTx(op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

// Health reports per-table row counts and an overall healthy flag. Used by
// operational tooling, not by the coordination logic itself.
type Health struct {
	Healthy bool             `json:"healthy"`
	Tables  map[string]int64 `json:"tables"`
}

func (s *Store) HealthCheck() (*Health, error) {
	tables := []string{"swarms", "agents", "tasks", "memory", "communications", "consensus", "performance_metrics"}
	h := &Health{Healthy: true, Tables: make(map[string]int64, len(tables))}
	for _, t := range tables {
		var n int64
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + t).Scan(&n); err != nil {
			return nil, fmt.Errorf("health check %s: %w", t, err)
		}
		h.Tables[t] = n
	}
	return h, nil
}
