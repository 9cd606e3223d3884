package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Swarm struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Topology           string          `json:"topology"`
	QueenMode          string          `json:"queen_mode"`
	MaxAgents          int             `json:"max_agents"`
	ConsensusThreshold float64         `json:"consensus_threshold"`
	MemoryTTL          int64           `json:"memory_ttl"`
	Config             json.RawMessage `json:"config,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	IsActive           bool            `json:"is_active"`
	Status             string          `json:"status"`
	AgentCount         int             `json:"agent_count,omitempty"`
}

const swarmColumns = `id, name, topology, queen_mode, max_agents, consensus_threshold, memory_ttl, config, created_at, updated_at, is_active, status`

func scanSwarm(scanner interface {
	Scan(dest ...any) error
}) (*Swarm, error) {
	sw := &Swarm{}
	var cfg *string
	err := scanner.Scan(&sw.ID, &sw.Name, &sw.Topology, &sw.QueenMode, &sw.MaxAgents,
		&sw.ConsensusThreshold, &sw.MemoryTTL, &cfg, &sw.CreatedAt, &sw.UpdatedAt,
		&sw.IsActive, &sw.Status)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		sw.Config = json.RawMessage(*cfg)
	}
	return sw, nil
}

func (s *Store) CreateSwarm(sw *Swarm) error {
	var cfg any
	if len(sw.Config) > 0 {
		cfg = string(sw.Config)
	}
	_, err := s.exec("create swarm", `
		INSERT INTO swarms (id, name, topology, queen_mode, max_agents, consensus_threshold, memory_ttl, config, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sw.ID, sw.Name, sw.Topology, sw.QueenMode, sw.MaxAgents,
		sw.ConsensusThreshold, sw.MemoryTTL, cfg, sw.Status)
	return err
}

func (s *Store) GetSwarm(id string) (*Swarm, error) {
	row, err := s.queryRow("get swarm", `SELECT `+swarmColumns+` FROM swarms WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	sw, err := scanSwarm(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get swarm: %w", err)
	}
	return sw, nil
}

// GetActiveSwarmID returns the id of the active swarm, or "" when none is
// active.
func (s *Store) GetActiveSwarmID() (string, error) {
	row, err := s.queryRow("get active swarm", `SELECT id FROM swarms WHERE is_active = TRUE LIMIT 1`)
	if err != nil {
		return "", err
	}
	var id string
	err = row.Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get active swarm: %w", err)
	}
	return id, nil
}

// SetActiveSwarm atomically deactivates every swarm and activates the given
// one so that at most one swarm is ever active, even under concurrent calls.
func (s *Store) SetActiveSwarm(id string) error {
	return s.withTx("set active swarm", func(tx *sql.Tx) error {
		if _, err := tx.Exec(`UPDATE swarms SET is_active = FALSE WHERE is_active = TRUE`); err != nil {
			return err
		}
		res, err := tx.Exec(`UPDATE swarms SET is_active = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("swarm %s not found", id)
		}
		return nil
	})
}

// ListSwarms returns all swarms newest first, each with its agent count.
func (s *Store) ListSwarms() ([]Swarm, error) {
	rows, err := s.query("list swarms", `
		SELECT `+swarmColumns+`,
		       (SELECT COUNT(*) FROM agents a WHERE a.swarm_id = swarms.id) AS agent_count
		FROM swarms
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var swarms []Swarm
	for rows.Next() {
		sw := Swarm{}
		var cfg *string
		if err := rows.Scan(&sw.ID, &sw.Name, &sw.Topology, &sw.QueenMode, &sw.MaxAgents,
			&sw.ConsensusThreshold, &sw.MemoryTTL, &cfg, &sw.CreatedAt, &sw.UpdatedAt,
			&sw.IsActive, &sw.Status, &sw.AgentCount); err != nil {
			return nil, fmt.Errorf("scan swarm: %w", err)
		}
		if cfg != nil {
			sw.Config = json.RawMessage(*cfg)
		}
		swarms = append(swarms, sw)
	}
	return swarms, rows.Err()
}

// UpdateSwarmStatus moves a swarm between active/paused/archived. Archived
// swarms are retained; this layer never deletes them.
func (s *Store) UpdateSwarmStatus(id, status string) error {
	_, err := s.exec("update swarm status", `
		UPDATE swarms SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	return err
}
