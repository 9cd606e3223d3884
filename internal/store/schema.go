package store

import "fmt"

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS swarms (
			id                  TEXT PRIMARY KEY,
			name                TEXT NOT NULL,
			topology            TEXT NOT NULL DEFAULT 'mesh',
			queen_mode          TEXT NOT NULL DEFAULT 'centralized',
			max_agents          INTEGER NOT NULL DEFAULT 8,
			consensus_threshold REAL NOT NULL DEFAULT 0.66,
			memory_ttl          INTEGER NOT NULL DEFAULT 86400,
			config              TEXT,
			created_at          DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at          DATETIME DEFAULT CURRENT_TIMESTAMP,
			is_active           BOOLEAN NOT NULL DEFAULT FALSE,
			status              TEXT NOT NULL DEFAULT 'active'
		)`,
		`CREATE TABLE IF NOT EXISTS agents (
			id              TEXT PRIMARY KEY,
			swarm_id        TEXT NOT NULL REFERENCES swarms(id),
			name            TEXT NOT NULL,
			type            TEXT NOT NULL,
			status          TEXT NOT NULL DEFAULT 'idle',
			capabilities    TEXT,
			current_task_id TEXT,
			message_count   INTEGER NOT NULL DEFAULT 0,
			error_count     INTEGER NOT NULL DEFAULT 0,
			success_count   INTEGER NOT NULL DEFAULT 0,
			created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_active_at  DATETIME,
			metadata        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agents_swarm ON agents(swarm_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id                 TEXT PRIMARY KEY,
			swarm_id           TEXT NOT NULL REFERENCES swarms(id),
			type               TEXT,
			description        TEXT NOT NULL,
			status             TEXT NOT NULL DEFAULT 'pending',
			priority           TEXT NOT NULL DEFAULT 'medium',
			assigned_agent_id  TEXT,
			dependencies       TEXT,
			requirements       TEXT,
			result             TEXT,
			created_at         DATETIME DEFAULT CURRENT_TIMESTAMP,
			assigned_at        DATETIME,
			started_at         DATETIME,
			completed_at       DATETIME,
			estimated_duration INTEGER,
			actual_duration    INTEGER,
			metadata           TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_swarm_status ON tasks(swarm_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_agent ON tasks(assigned_agent_id)`,
		`CREATE TABLE IF NOT EXISTS memory (
			key              TEXT NOT NULL,
			namespace        TEXT NOT NULL DEFAULT 'default',
			value            TEXT NOT NULL,
			access_count     INTEGER NOT NULL DEFAULT 0,
			last_accessed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			created_at       DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at       DATETIME DEFAULT CURRENT_TIMESTAMP,
			metadata         TEXT,
			ttl              INTEGER,
			PRIMARY KEY (key, namespace)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_namespace ON memory(namespace, access_count DESC, last_accessed_at DESC)`,
		`CREATE TABLE IF NOT EXISTS communications (
			id                TEXT PRIMARY KEY,
			swarm_id          TEXT NOT NULL REFERENCES swarms(id),
			from_agent_id     TEXT NOT NULL,
			to_agent_id       TEXT,
			message_type      TEXT NOT NULL,
			content           TEXT NOT NULL,
			broadcast_scope   TEXT NOT NULL DEFAULT 'none',
			priority          TEXT NOT NULL DEFAULT 'medium',
			created_at        DATETIME DEFAULT CURRENT_TIMESTAMP,
			delivered_at      DATETIME,
			read_at           DATETIME,
			acknowledged_at   DATETIME,
			requires_response BOOLEAN NOT NULL DEFAULT FALSE,
			parent_message_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comms_pending ON communications(to_agent_id, delivered_at)`,
		`CREATE INDEX IF NOT EXISTS idx_comms_swarm ON communications(swarm_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS consensus (
			id                 TEXT PRIMARY KEY,
			swarm_id           TEXT NOT NULL REFERENCES swarms(id),
			proposal_type      TEXT NOT NULL,
			proposal_data      TEXT,
			proposed_by        TEXT NOT NULL,
			threshold_required REAL NOT NULL,
			votes_for          INTEGER NOT NULL DEFAULT 0,
			votes_against      INTEGER NOT NULL DEFAULT 0,
			votes_total        INTEGER NOT NULL DEFAULT 0,
			status             TEXT NOT NULL DEFAULT 'pending',
			created_at         DATETIME DEFAULT CURRENT_TIMESTAMP,
			resolved_at        DATETIME,
			timeout_at         DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_consensus_swarm ON consensus(swarm_id, status)`,
		`CREATE TABLE IF NOT EXISTS performance_metrics (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			swarm_id    TEXT,
			agent_id    TEXT,
			metric_name TEXT NOT NULL,
			value       REAL NOT NULL,
			recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_swarm ON performance_metrics(swarm_id, recorded_at)`,
	}

	// One transaction so a partial schema never survives a failed startup.
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for _, m := range migrations {
		if _, err := tx.Exec(m); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return tx.Commit()
}
