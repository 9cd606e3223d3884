package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// MemoryEntry is one row of the namespaced ephemeral cache. TTL is in
// seconds; nil means the entry never expires.
type MemoryEntry struct {
	Key            string          `json:"key"`
	Namespace      string          `json:"namespace"`
	Value          string          `json:"value"`
	AccessCount    int64           `json:"access_count"`
	LastAccessedAt time.Time       `json:"last_accessed_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	TTL            *int64          `json:"ttl,omitempty"`
}

const memoryColumns = `key, namespace, value, access_count, last_accessed_at, created_at, updated_at, metadata, ttl`

func scanMemory(scanner interface {
	Scan(dest ...any) error
}) (*MemoryEntry, error) {
	e := &MemoryEntry{}
	var metadata *string
	err := scanner.Scan(&e.Key, &e.Namespace, &e.Value, &e.AccessCount,
		&e.LastAccessedAt, &e.CreatedAt, &e.UpdatedAt, &metadata, &e.TTL)
	if err != nil {
		return nil, err
	}
	if metadata != nil {
		e.Metadata = json.RawMessage(*metadata)
	}
	return e, nil
}

// StoreMemory upserts by (key, namespace). Re-storing an existing key
// replaces value/metadata/ttl and bumps updated_at but preserves
// created_at and the access counter.
func (s *Store) StoreMemory(e *MemoryEntry) error {
	var metadata any
	if len(e.Metadata) > 0 {
		metadata = string(e.Metadata)
	}
	_, err := s.exec("store memory", `
		INSERT INTO memory (key, namespace, value, metadata, ttl)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key, namespace) DO UPDATE SET
			value = excluded.value,
			metadata = excluded.metadata,
			ttl = excluded.ttl,
			updated_at = CURRENT_TIMESTAMP`,
		e.Key, e.Namespace, e.Value, metadata, e.TTL)
	return err
}

// GetMemory reads an entry and touches it: every read increments
// access_count and bumps last_accessed_at, the recency/frequency signal
// eviction ranks by. Both happen in one transaction.
func (s *Store) GetMemory(key, namespace string) (*MemoryEntry, error) {
	var entry *MemoryEntry
	err := s.withTx("get memory", func(tx *sql.Tx) error {
		row := tx.QueryRow(`SELECT `+memoryColumns+` FROM memory WHERE key = ? AND namespace = ?`, key, namespace)
		e, err := scanMemory(row)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`
			UPDATE memory SET access_count = access_count + 1, last_accessed_at = CURRENT_TIMESTAMP
			WHERE key = ? AND namespace = ?`, key, namespace); err != nil {
			return err
		}
		// Mirror the touch on the returned entry so both recency signals
		// reflect this read.
		e.AccessCount++
		e.LastAccessedAt = time.Now().UTC()
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// SearchMemory finds entries in a namespace whose key or value contains
// the pattern, best-ranked first (most accessed, then most recent).
func (s *Store) SearchMemory(namespace, pattern string, limit int) ([]MemoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	like := "%" + pattern + "%"
	rows, err := s.query("search memory", `
		SELECT `+memoryColumns+` FROM memory
		WHERE namespace = ? AND (key LIKE ? OR value LIKE ?)
		ORDER BY access_count DESC, last_accessed_at DESC
		LIMIT ?`, namespace, like, like, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemory(rows)
}

func (s *Store) DeleteMemory(key, namespace string) error {
	_, err := s.exec("delete memory", `DELETE FROM memory WHERE key = ? AND namespace = ?`, key, namespace)
	return err
}

func (s *Store) ListNamespace(namespace string, limit int) ([]MemoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.query("list namespace", `
		SELECT `+memoryColumns+` FROM memory
		WHERE namespace = ?
		ORDER BY access_count DESC, last_accessed_at DESC
		LIMIT ?`, namespace, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemory(rows)
}

func collectMemory(rows *sql.Rows) ([]MemoryEntry, error) {
	var entries []MemoryEntry
	for rows.Next() {
		e, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

type MemoryStats struct {
	Entries    int64 `json:"entries"`
	TotalBytes int64 `json:"total_bytes"`
	Namespaces int64 `json:"namespaces"`
}

func (s *Store) GetMemoryStats() (*MemoryStats, error) {
	row, err := s.queryRow("memory stats", `
		SELECT COUNT(*), COALESCE(SUM(LENGTH(value)), 0), COUNT(DISTINCT namespace) FROM memory`)
	if err != nil {
		return nil, err
	}
	st := &MemoryStats{}
	if err := row.Scan(&st.Entries, &st.TotalBytes, &st.Namespaces); err != nil {
		return nil, fmt.Errorf("memory stats: %w", err)
	}
	return st, nil
}

type NamespaceStats struct {
	Namespace    string     `json:"namespace"`
	Entries      int64      `json:"entries"`
	TotalBytes   int64      `json:"total_bytes"`
	AvgTTL       float64    `json:"avg_ttl"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
}

func (s *Store) GetNamespaceStats(namespace string) (*NamespaceStats, error) {
	row, err := s.queryRow("namespace stats", `
		SELECT COUNT(*), COALESCE(SUM(LENGTH(value)), 0), COALESCE(AVG(ttl), 0), MAX(last_accessed_at)
		FROM memory WHERE namespace = ?`, namespace)
	if err != nil {
		return nil, err
	}
	st := &NamespaceStats{Namespace: namespace}
	var lastAccessed sql.NullString
	if err := row.Scan(&st.Entries, &st.TotalBytes, &st.AvgTTL, &lastAccessed); err != nil {
		return nil, fmt.Errorf("namespace stats: %w", err)
	}
	if lastAccessed.Valid {
		// Aggregates come back untyped; MAX of a DATETIME column is a string.
		if t, err := time.Parse(time.DateTime, lastAccessed.String); err == nil {
			st.LastAccessed = &t
		}
	}
	return st, nil
}

// ExpireNamespace deletes entries in a namespace older than maxAgeSeconds,
// regardless of popularity. Returns the number of rows removed.
func (s *Store) ExpireNamespace(namespace string, maxAgeSeconds int64) (int64, error) {
	res, err := s.exec("expire namespace", `
		DELETE FROM memory
		WHERE namespace = ?
		  AND (strftime('%s','now') - strftime('%s', created_at)) > ?`, namespace, maxAgeSeconds)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExpireTTL deletes entries in a namespace whose own ttl has elapsed.
// Entries with NULL ttl are immortal.
func (s *Store) ExpireTTL(namespace string) (int64, error) {
	res, err := s.exec("expire ttl", `
		DELETE FROM memory
		WHERE namespace = ? AND ttl IS NOT NULL
		  AND (strftime('%s','now') - strftime('%s', created_at)) > ttl`, namespace)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// TrimNamespace bounds a namespace to its keep best-ranked entries by
// (access_count DESC, last_accessed_at DESC) and deletes the rest. Trim and
// TTL expiry are independent knobs: trim bounds size regardless of
// staleness.
func (s *Store) TrimNamespace(namespace string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.exec("trim namespace", `
		DELETE FROM memory
		WHERE namespace = ? AND key NOT IN (
			SELECT key FROM memory
			WHERE namespace = ?
			ORDER BY access_count DESC, last_accessed_at DESC
			LIMIT ?
		)`, namespace, namespace, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
