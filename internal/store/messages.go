package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Communication is one inter-agent message. A nil ToAgentID marks a
// broadcast whose audience is given by BroadcastScope.
type Communication struct {
	ID               string     `json:"id"`
	SwarmID          string     `json:"swarm_id"`
	FromAgentID      string     `json:"from_agent_id"`
	ToAgentID        *string    `json:"to_agent_id,omitempty"`
	MessageType      string     `json:"message_type"`
	Content          string     `json:"content"`
	BroadcastScope   string     `json:"broadcast_scope"`
	Priority         string     `json:"priority"`
	CreatedAt        time.Time  `json:"created_at"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty"`
	ReadAt           *time.Time `json:"read_at,omitempty"`
	AcknowledgedAt   *time.Time `json:"acknowledged_at,omitempty"`
	RequiresResponse bool       `json:"requires_response"`
	ParentMessageID  *string    `json:"parent_message_id,omitempty"`
}

const commColumns = `id, swarm_id, from_agent_id, to_agent_id, message_type, content, broadcast_scope, priority, created_at, delivered_at, read_at, acknowledged_at, requires_response, parent_message_id`

func scanComm(scanner interface {
	Scan(dest ...any) error
}) (*Communication, error) {
	m := &Communication{}
	err := scanner.Scan(&m.ID, &m.SwarmID, &m.FromAgentID, &m.ToAgentID, &m.MessageType,
		&m.Content, &m.BroadcastScope, &m.Priority, &m.CreatedAt, &m.DeliveredAt,
		&m.ReadAt, &m.AcknowledgedAt, &m.RequiresResponse, &m.ParentMessageID)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) CreateMessage(m *Communication) error {
	_, err := s.exec("create message", `
		INSERT INTO communications (id, swarm_id, from_agent_id, to_agent_id, message_type, content, broadcast_scope, priority, requires_response, parent_message_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SwarmID, m.FromAgentID, m.ToAgentID, m.MessageType, m.Content,
		m.BroadcastScope, m.Priority, m.RequiresResponse, m.ParentMessageID)
	return err
}

func (s *Store) GetMessage(id string) (*Communication, error) {
	row, err := s.queryRow("get message", `SELECT `+commColumns+` FROM communications WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	m, err := scanComm(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// PendingMessages returns undelivered traffic for an agent: direct messages
// addressed to it plus broadcasts in swarm or global scope, urgent-first,
// FIFO within a priority band.
func (s *Store) PendingMessages(agentID, swarmID string) ([]Communication, error) {
	rows, err := s.query("pending messages", `
		SELECT `+commColumns+` FROM communications
		WHERE delivered_at IS NULL
		  AND (to_agent_id = ?
		       OR (to_agent_id IS NULL AND broadcast_scope = 'global')
		       OR (to_agent_id IS NULL AND broadcast_scope = 'swarm' AND swarm_id = ?))
		ORDER BY `+msgPriorityRank+`, created_at, rowid`, agentID, swarmID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Communication
	for rows.Next() {
		m, err := scanComm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// MarkDelivered sets delivered_at once; repeated calls leave the original
// timestamp in place.
func (s *Store) MarkDelivered(id string) error {
	_, err := s.exec("mark delivered", `
		UPDATE communications SET delivered_at = CURRENT_TIMESTAMP
		WHERE id = ? AND delivered_at IS NULL`, id)
	return err
}

// MarkRead sets read_at once, also settling delivered_at so the timestamps
// stay monotonic (delivered <= read).
func (s *Store) MarkRead(id string) error {
	_, err := s.exec("mark read", `
		UPDATE communications
		SET read_at = CURRENT_TIMESTAMP,
		    delivered_at = COALESCE(delivered_at, CURRENT_TIMESTAMP)
		WHERE id = ? AND read_at IS NULL`, id)
	return err
}

// MarkAcknowledged sets acknowledged_at once, settling the earlier
// timestamps the same way.
func (s *Store) MarkAcknowledged(id string) error {
	_, err := s.exec("mark acknowledged", `
		UPDATE communications
		SET acknowledged_at = CURRENT_TIMESTAMP,
		    read_at = COALESCE(read_at, CURRENT_TIMESTAMP),
		    delivered_at = COALESCE(delivered_at, CURRENT_TIMESTAMP)
		WHERE id = ? AND acknowledged_at IS NULL`, id)
	return err
}

// RecentMessages returns swarm-scoped traffic created within the window,
// newest first.
func (s *Store) RecentMessages(swarmID string, window time.Duration, limit int) ([]Communication, error) {
	if limit <= 0 {
		limit = 50
	}
	// created_at is written by CURRENT_TIMESTAMP, so compare in its format.
	since := time.Now().UTC().Add(-window).Format(time.DateTime)
	rows, err := s.query("recent messages", `
		SELECT `+commColumns+` FROM communications
		WHERE swarm_id = ? AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT ?`, swarmID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Communication
	for rows.Next() {
		m, err := scanComm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}
