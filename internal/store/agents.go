package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Agent struct {
	ID            string          `json:"id"`
	SwarmID       string          `json:"swarm_id"`
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	Capabilities  json.RawMessage `json:"capabilities,omitempty"`
	CurrentTaskID string          `json:"current_task_id,omitempty"`
	MessageCount  int64           `json:"message_count"`
	ErrorCount    int64           `json:"error_count"`
	SuccessCount  int64           `json:"success_count"`
	CreatedAt     time.Time       `json:"created_at"`
	LastActiveAt  *time.Time      `json:"last_active_at,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

const agentColumns = `id, swarm_id, name, type, status, capabilities, current_task_id, message_count, error_count, success_count, created_at, last_active_at, metadata`

func scanAgent(scanner interface {
	Scan(dest ...any) error
}) (*Agent, error) {
	a := &Agent{}
	var capabilities, currentTask, metadata *string
	err := scanner.Scan(&a.ID, &a.SwarmID, &a.Name, &a.Type, &a.Status, &capabilities,
		&currentTask, &a.MessageCount, &a.ErrorCount, &a.SuccessCount,
		&a.CreatedAt, &a.LastActiveAt, &metadata)
	if err != nil {
		return nil, err
	}
	if capabilities != nil {
		a.Capabilities = json.RawMessage(*capabilities)
	}
	if currentTask != nil {
		a.CurrentTaskID = *currentTask
	}
	if metadata != nil {
		a.Metadata = json.RawMessage(*metadata)
	}
	return a, nil
}

func (s *Store) CreateAgent(a *Agent) error {
	var capabilities, metadata any
	if len(a.Capabilities) > 0 {
		capabilities = string(a.Capabilities)
	}
	if len(a.Metadata) > 0 {
		metadata = string(a.Metadata)
	}
	_, err := s.exec("create agent", `
		INSERT INTO agents (id, swarm_id, name, type, status, capabilities, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SwarmID, a.Name, a.Type, a.Status, capabilities, metadata)
	return err
}

func (s *Store) GetAgent(id string) (*Agent, error) {
	row, err := s.queryRow("get agent", `SELECT `+agentColumns+` FROM agents WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

func (s *Store) ListAgents(swarmID string) ([]Agent, error) {
	rows, err := s.query("list agents", `
		SELECT `+agentColumns+` FROM agents WHERE swarm_id = ? ORDER BY created_at`, swarmID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

// UpdateAgent applies an arbitrary set of column assignments. An empty
// clause set returns ErrNoFields.
func (s *Store) UpdateAgent(id string, clauses ...Clause) error {
	query, args, err := buildUpdate("agents", clauses, "id = ?", id)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	return nil
}

// UpdateAgentStatus sets status and bumps last_active_at together.
func (s *Store) UpdateAgentStatus(id, status string) error {
	_, err := s.exec("update agent status", `
		UPDATE agents SET status = ?, last_active_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	return err
}

// AgentPerformance summarizes an agent's execution counters together with
// task outcomes derived from the tasks table.
type AgentPerformance struct {
	AgentID         string  `json:"agent_id"`
	SuccessCount    int64   `json:"success_count"`
	ErrorCount      int64   `json:"error_count"`
	MessageCount    int64   `json:"message_count"`
	TasksCompleted  int64   `json:"tasks_completed"`
	TasksFailed     int64   `json:"tasks_failed"`
	AvgTaskDuration float64 `json:"avg_task_duration"`
}

func (s *Store) GetAgentPerformance(id string) (*AgentPerformance, error) {
	row, err := s.queryRow("agent performance", `
		SELECT id, success_count, error_count, message_count,
		       (SELECT COUNT(*) FROM tasks t WHERE t.assigned_agent_id = agents.id AND t.status = 'completed'),
		       (SELECT COUNT(*) FROM tasks t WHERE t.assigned_agent_id = agents.id AND t.status = 'failed'),
		       (SELECT COALESCE(AVG(actual_duration), 0) FROM tasks t WHERE t.assigned_agent_id = agents.id AND t.actual_duration IS NOT NULL)
		FROM agents WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	p := &AgentPerformance{}
	err = row.Scan(&p.AgentID, &p.SuccessCount, &p.ErrorCount, &p.MessageCount,
		&p.TasksCompleted, &p.TasksFailed, &p.AvgTaskDuration)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("agent performance: %w", err)
	}
	return p, nil
}
