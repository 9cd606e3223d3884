package store

import (
	"fmt"
	"time"
)

// Metric is one append-only performance counter sample. This layer only
// writes and windows them; interpretation belongs to operational tooling.
type Metric struct {
	ID         int64     `json:"id"`
	SwarmID    string    `json:"swarm_id,omitempty"`
	AgentID    string    `json:"agent_id,omitempty"`
	MetricName string    `json:"metric_name"`
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (s *Store) RecordMetric(swarmID, agentID, name string, value float64) error {
	var sw, ag any
	if swarmID != "" {
		sw = swarmID
	}
	if agentID != "" {
		ag = agentID
	}
	_, err := s.exec("record metric", `
		INSERT INTO performance_metrics (swarm_id, agent_id, metric_name, value)
		VALUES (?, ?, ?, ?)`, sw, ag, name, value)
	return err
}

func (s *Store) MetricsSince(swarmID string, window time.Duration, limit int) ([]Metric, error) {
	if limit <= 0 {
		limit = 100
	}
	since := time.Now().UTC().Add(-window).Format(time.DateTime)
	rows, err := s.query("metrics since", `
		SELECT id, COALESCE(swarm_id, ''), COALESCE(agent_id, ''), metric_name, value, recorded_at
		FROM performance_metrics
		WHERE swarm_id = ? AND recorded_at >= ?
		ORDER BY recorded_at DESC
		LIMIT ?`, swarmID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []Metric
	for rows.Next() {
		var m Metric
		if err := rows.Scan(&m.ID, &m.SwarmID, &m.AgentID, &m.MetricName, &m.Value, &m.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}
