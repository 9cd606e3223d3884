package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Task struct {
	ID                string          `json:"id"`
	SwarmID           string          `json:"swarm_id"`
	Type              string          `json:"type,omitempty"`
	Description       string          `json:"description"`
	Status            string          `json:"status"`
	Priority          string          `json:"priority"`
	AssignedAgentID   string          `json:"assigned_agent_id,omitempty"`
	AssignedAgentName string          `json:"assigned_agent_name,omitempty"`
	Dependencies      json.RawMessage `json:"dependencies,omitempty"`
	Requirements      json.RawMessage `json:"requirements,omitempty"`
	Result            json.RawMessage `json:"result,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	AssignedAt        *time.Time      `json:"assigned_at,omitempty"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	EstimatedDuration int64           `json:"estimated_duration,omitempty"`
	ActualDuration    int64           `json:"actual_duration,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
}

const taskColumns = `id, swarm_id, type, description, status, priority, assigned_agent_id, dependencies, requirements, result, created_at, assigned_at, started_at, completed_at, estimated_duration, actual_duration, metadata`

func scanTask(scanner interface {
	Scan(dest ...any) error
}) (*Task, error) {
	t := &Task{}
	var typ, agentID *string
	var deps, reqs, result, metadata *string
	var estimated, actual sql.NullInt64
	err := scanner.Scan(&t.ID, &t.SwarmID, &typ, &t.Description, &t.Status, &t.Priority,
		&agentID, &deps, &reqs, &result, &t.CreatedAt, &t.AssignedAt, &t.StartedAt,
		&t.CompletedAt, &estimated, &actual, &metadata)
	if err != nil {
		return nil, err
	}
	if typ != nil {
		t.Type = *typ
	}
	if agentID != nil {
		t.AssignedAgentID = *agentID
	}
	if deps != nil {
		t.Dependencies = json.RawMessage(*deps)
	}
	if reqs != nil {
		t.Requirements = json.RawMessage(*reqs)
	}
	if result != nil {
		t.Result = json.RawMessage(*result)
	}
	if metadata != nil {
		t.Metadata = json.RawMessage(*metadata)
	}
	t.EstimatedDuration = estimated.Int64
	t.ActualDuration = actual.Int64
	return t, nil
}

func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func (s *Store) CreateTask(t *Task) error {
	var estimated any
	if t.EstimatedDuration > 0 {
		estimated = t.EstimatedDuration
	}
	_, err := s.exec("create task", `
		INSERT INTO tasks (id, swarm_id, type, description, status, priority, dependencies, requirements, estimated_duration, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SwarmID, t.Type, t.Description, t.Status, t.Priority,
		jsonArg(t.Dependencies), jsonArg(t.Requirements), estimated, jsonArg(t.Metadata))
	return err
}

func (s *Store) GetTask(id string) (*Task, error) {
	row, err := s.queryRow("get task", `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *Store) ListTasks(swarmID string) ([]Task, error) {
	rows, err := s.query("list tasks", `
		SELECT `+taskColumns+` FROM tasks WHERE swarm_id = ? ORDER BY created_at DESC`, swarmID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func collectTasks(rows *sql.Rows) ([]Task, error) {
	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// UpdateTask applies an arbitrary set of column assignments. An empty
// clause set returns ErrNoFields.
func (s *Store) UpdateTask(id string, clauses ...Clause) error {
	query, args, err := buildUpdate("tasks", clauses, "id = ?", id)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// UpdateTaskStatus sets the status and maintains the invariant that
// completed_at is set exactly when the status is terminal.
func (s *Store) UpdateTaskStatus(id, status string) error {
	_, err := s.exec("update task status", `
		UPDATE tasks
		SET status = ?,
		    completed_at = CASE WHEN ? IN ('completed', 'failed', 'cancelled') THEN CURRENT_TIMESTAMP ELSE NULL END
		WHERE id = ?`, status, status, id)
	return err
}

// PendingTasks returns up to limit pending tasks in dispatch order:
// priority rank first, then created_at so equal-priority tasks go strictly
// FIFO. rowid breaks same-second created_at ties in insertion order.
func (s *Store) PendingTasks(swarmID string, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.query("pending tasks", `
		SELECT `+taskColumns+` FROM tasks
		WHERE swarm_id = ? AND status = 'pending'
		ORDER BY `+taskPriorityRank+`, created_at, rowid
		LIMIT ?`, swarmID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ActiveTasks returns assigned and in-progress tasks joined with the
// assignee's name for display.
func (s *Store) ActiveTasks(swarmID string) ([]Task, error) {
	rows, err := s.query("active tasks", `
		SELECT t.id, t.swarm_id, t.type, t.description, t.status, t.priority, t.assigned_agent_id,
		       t.dependencies, t.requirements, t.result, t.created_at, t.assigned_at, t.started_at,
		       t.completed_at, t.estimated_duration, t.actual_duration, t.metadata,
		       COALESCE(a.name, '') AS agent_name
		FROM tasks t
		LEFT JOIN agents a ON a.id = t.assigned_agent_id
		WHERE t.swarm_id = ? AND t.status IN ('assigned', 'in_progress')
		ORDER BY t.created_at`, swarmID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t := &Task{}
		var typ, agentID, deps, reqs, result, metadata *string
		var estimated, actual sql.NullInt64
		if err := rows.Scan(&t.ID, &t.SwarmID, &typ, &t.Description, &t.Status, &t.Priority,
			&agentID, &deps, &reqs, &result, &t.CreatedAt, &t.AssignedAt, &t.StartedAt,
			&t.CompletedAt, &estimated, &actual, &metadata, &t.AssignedAgentName); err != nil {
			return nil, fmt.Errorf("scan active task: %w", err)
		}
		if typ != nil {
			t.Type = *typ
		}
		if agentID != nil {
			t.AssignedAgentID = *agentID
		}
		if deps != nil {
			t.Dependencies = json.RawMessage(*deps)
		}
		if reqs != nil {
			t.Requirements = json.RawMessage(*reqs)
		}
		if result != nil {
			t.Result = json.RawMessage(*result)
		}
		if metadata != nil {
			t.Metadata = json.RawMessage(*metadata)
		}
		t.EstimatedDuration = estimated.Int64
		t.ActualDuration = actual.Int64
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// ReassignTask hands a task to an agent, preserving its identity but
// refreshing assignment state.
func (s *Store) ReassignTask(taskID, agentID string) error {
	res, err := s.exec("reassign task", `
		UPDATE tasks
		SET assigned_agent_id = ?, status = 'assigned', assigned_at = CURRENT_TIMESTAMP
		WHERE id = ?`, agentID, taskID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reassign task: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("reassign task: task %s not found", taskID)
	}
	return nil
}
