package hive

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lanemc/hivemind/internal/natsbus"
	"github.com/lanemc/hivemind/internal/store"
)

// Coordinator is the single access point external callers use: one method
// per store operation, plus id generation, enum validation and best-effort
// event publication. It holds no entity state of its own, only the store
// handle and the bus client. Construct one per process and pass it by
// reference; there is no package-level instance.
type Coordinator struct {
	store  *store.Store
	client *natsbus.Client
}

// NewCoordinator wires the facade. A nil bus disables event publication,
// which is what tests want.
func NewCoordinator(s *store.Store, bus *natsbus.Bus) *Coordinator {
	c := &Coordinator{store: s}

	if bus != nil {
		client, err := natsbus.NewClient(bus)
		if err != nil {
			slog.Error("coordinator nats client failed", "error", err)
		} else {
			c.client = client
		}
	}

	return c
}

func (c *Coordinator) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

func (c *Coordinator) publishEvent(topic, event string, data map[string]any) {
	if c.client == nil {
		return
	}
	if err := c.client.PublishEvent(topic, event, data); err != nil {
		slog.Warn("publish event failed", "topic", topic, "event", event, "error", err)
	}
}

// --- Swarm registry ---

type CreateSwarmRequest struct {
	ID                 string
	Name               string
	Topology           string
	QueenMode          string
	MaxAgents          int
	ConsensusThreshold float64
	MemoryTTL          int64
	Config             json.RawMessage
}

func (c *Coordinator) CreateSwarm(req CreateSwarmRequest) (*store.Swarm, error) {
	sw := &store.Swarm{
		ID:                 req.ID,
		Name:               req.Name,
		Topology:           req.Topology,
		QueenMode:          req.QueenMode,
		MaxAgents:          req.MaxAgents,
		ConsensusThreshold: req.ConsensusThreshold,
		MemoryTTL:          req.MemoryTTL,
		Config:             req.Config,
		Status:             store.SwarmActive,
	}
	if sw.ID == "" {
		sw.ID = uuid.New().String()
	}
	if sw.Topology == "" {
		sw.Topology = store.TopologyMesh
	}
	if sw.QueenMode == "" {
		sw.QueenMode = store.QueenCentralized
	}
	if sw.MaxAgents <= 0 {
		sw.MaxAgents = 8
	}
	if sw.ConsensusThreshold == 0 {
		sw.ConsensusThreshold = 0.66
	}
	if sw.MemoryTTL <= 0 {
		sw.MemoryTTL = 86400
	}

	if err := validateEnum("topology", sw.Topology, topologies); err != nil {
		return nil, err
	}
	if err := validateEnum("queen mode", sw.QueenMode, queenModes); err != nil {
		return nil, err
	}
	if sw.ConsensusThreshold < 0 || sw.ConsensusThreshold > 1 {
		return nil, fmt.Errorf("consensus threshold %v out of range [0,1]", sw.ConsensusThreshold)
	}

	if err := c.store.CreateSwarm(sw); err != nil {
		return nil, err
	}
	c.publishEvent(natsbus.TopicSwarmEvents(sw.ID), "swarm_created", map[string]any{
		"name": sw.Name, "topology": sw.Topology,
	})
	return sw, nil
}

func (c *Coordinator) GetSwarm(id string) (*store.Swarm, error) {
	return c.store.GetSwarm(id)
}

func (c *Coordinator) ActiveSwarmID() (string, error) {
	return c.store.GetActiveSwarmID()
}

func (c *Coordinator) SetActiveSwarm(id string) error {
	if err := c.store.SetActiveSwarm(id); err != nil {
		return err
	}
	c.publishEvent(natsbus.TopicSwarmEvents(id), "swarm_activated", nil)
	return nil
}

func (c *Coordinator) ListSwarms() ([]store.Swarm, error) {
	return c.store.ListSwarms()
}

func (c *Coordinator) UpdateSwarmStatus(id, status string) error {
	return c.store.UpdateSwarmStatus(id, status)
}

// --- Agent registry ---

type SpawnAgentRequest struct {
	ID           string
	SwarmID      string
	Name         string
	Type         string
	Capabilities json.RawMessage
	Metadata     json.RawMessage
}

// SpawnAgent registers an agent in a swarm, enforcing the swarm's
// max_agents budget.
func (c *Coordinator) SpawnAgent(req SpawnAgentRequest) (*store.Agent, error) {
	if err := validateEnum("agent type", req.Type, agentTypes); err != nil {
		return nil, err
	}

	sw, err := c.store.GetSwarm(req.SwarmID)
	if err != nil {
		return nil, err
	}
	if sw == nil {
		return nil, fmt.Errorf("swarm %s not found", req.SwarmID)
	}
	existing, err := c.store.ListAgents(req.SwarmID)
	if err != nil {
		return nil, err
	}
	if len(existing) >= sw.MaxAgents {
		return nil, ErrMaxAgentsReached
	}

	a := &store.Agent{
		ID:           req.ID,
		SwarmID:      req.SwarmID,
		Name:         req.Name,
		Type:         req.Type,
		Status:       store.AgentIdle,
		Capabilities: req.Capabilities,
		Metadata:     req.Metadata,
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if err := c.store.CreateAgent(a); err != nil {
		return nil, err
	}
	c.publishEvent(natsbus.TopicSwarmEvents(req.SwarmID), "agent_spawned", map[string]any{
		"agent_id": a.ID, "type": a.Type,
	})
	return a, nil
}

func (c *Coordinator) GetAgent(id string) (*store.Agent, error) {
	return c.store.GetAgent(id)
}

func (c *Coordinator) ListAgents(swarmID string) ([]store.Agent, error) {
	return c.store.ListAgents(swarmID)
}

func (c *Coordinator) UpdateAgent(id string, clauses ...store.Clause) error {
	return c.store.UpdateAgent(id, clauses...)
}

func (c *Coordinator) UpdateAgentStatus(id, status string) error {
	return c.store.UpdateAgentStatus(id, status)
}

// ReportAgentResult records one execution outcome on the agent's monotonic
// counters. Only the owning agent's execution reports should call this.
func (c *Coordinator) ReportAgentResult(id string, success bool) error {
	counter := "error_count"
	if success {
		counter = "success_count"
	}
	return c.store.UpdateAgent(id,
		store.SetExpr(counter, counter+" + 1"),
		store.SetExpr("last_active_at", "CURRENT_TIMESTAMP"),
	)
}

func (c *Coordinator) AgentPerformance(id string) (*store.AgentPerformance, error) {
	return c.store.GetAgentPerformance(id)
}

// --- Task queue ---

type SubmitTaskRequest struct {
	ID                string
	SwarmID           string
	Type              string
	Description       string
	Priority          string
	Dependencies      json.RawMessage
	Requirements      json.RawMessage
	EstimatedDuration int64
	Metadata          json.RawMessage
}

func (c *Coordinator) SubmitTask(req SubmitTaskRequest) (*store.Task, error) {
	t := &store.Task{
		ID:                req.ID,
		SwarmID:           req.SwarmID,
		Type:              req.Type,
		Description:       req.Description,
		Status:            store.TaskPending,
		Priority:          req.Priority,
		Dependencies:      req.Dependencies,
		Requirements:      req.Requirements,
		EstimatedDuration: req.EstimatedDuration,
		Metadata:          req.Metadata,
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Priority == "" {
		t.Priority = store.PriorityMedium
	}
	if err := validateEnum("task priority", t.Priority, taskPriorities); err != nil {
		return nil, err
	}
	if err := c.store.CreateTask(t); err != nil {
		return nil, err
	}
	c.publishEvent(natsbus.TopicTaskEvents(req.SwarmID), "task_created", map[string]any{
		"task_id": t.ID, "priority": t.Priority,
	})
	return t, nil
}

func (c *Coordinator) GetTask(id string) (*store.Task, error) {
	return c.store.GetTask(id)
}

func (c *Coordinator) ListTasks(swarmID string) ([]store.Task, error) {
	return c.store.ListTasks(swarmID)
}

func (c *Coordinator) PendingTasks(swarmID string, limit int) ([]store.Task, error) {
	return c.store.PendingTasks(swarmID, limit)
}

func (c *Coordinator) ActiveTasks(swarmID string) ([]store.Task, error) {
	return c.store.ActiveTasks(swarmID)
}

func (c *Coordinator) UpdateTask(id string, clauses ...store.Clause) error {
	return c.store.UpdateTask(id, clauses...)
}

func (c *Coordinator) UpdateTaskStatus(id, status string) error {
	if err := c.store.UpdateTaskStatus(id, status); err != nil {
		return err
	}
	if store.TerminalTaskStatus(status) {
		if t, err := c.store.GetTask(id); err == nil && t != nil {
			c.publishEvent(natsbus.TopicTaskEvents(t.SwarmID), "task_finished", map[string]any{
				"task_id": id, "status": status,
			})
		}
	}
	return nil
}

func (c *Coordinator) ReassignTask(taskID, agentID string) error {
	if err := c.store.ReassignTask(taskID, agentID); err != nil {
		return err
	}
	if t, err := c.store.GetTask(taskID); err == nil && t != nil {
		c.publishEvent(natsbus.TopicTaskEvents(t.SwarmID), "task_assigned", map[string]any{
			"task_id": taskID, "agent_id": agentID,
		})
	}
	return nil
}

// --- Memory cache ---

func (c *Coordinator) StoreMemory(key, namespace, value string, ttlSeconds *int64) error {
	if namespace == "" {
		namespace = "default"
	}
	return c.store.StoreMemory(&store.MemoryEntry{
		Key:       key,
		Namespace: namespace,
		Value:     value,
		TTL:       ttlSeconds,
	})
}

func (c *Coordinator) GetMemory(key, namespace string) (*store.MemoryEntry, error) {
	if namespace == "" {
		namespace = "default"
	}
	return c.store.GetMemory(key, namespace)
}

func (c *Coordinator) SearchMemory(namespace, pattern string, limit int) ([]store.MemoryEntry, error) {
	return c.store.SearchMemory(namespace, pattern, limit)
}

func (c *Coordinator) DeleteMemory(key, namespace string) error {
	return c.store.DeleteMemory(key, namespace)
}

func (c *Coordinator) ListNamespace(namespace string, limit int) ([]store.MemoryEntry, error) {
	return c.store.ListNamespace(namespace, limit)
}

func (c *Coordinator) MemoryStats() (*store.MemoryStats, error) {
	return c.store.GetMemoryStats()
}

func (c *Coordinator) NamespaceStats(namespace string) (*store.NamespaceStats, error) {
	return c.store.GetNamespaceStats(namespace)
}

// --- Communication log ---

type SendMessageRequest struct {
	SwarmID          string
	FromAgentID      string
	ToAgentID        *string
	MessageType      string
	Content          string
	BroadcastScope   string
	Priority         string
	RequiresResponse bool
	ParentMessageID  *string
}

func (c *Coordinator) SendMessage(req SendMessageRequest) (*store.Communication, error) {
	m := &store.Communication{
		ID:               uuid.New().String(),
		SwarmID:          req.SwarmID,
		FromAgentID:      req.FromAgentID,
		ToAgentID:        req.ToAgentID,
		MessageType:      req.MessageType,
		Content:          req.Content,
		BroadcastScope:   req.BroadcastScope,
		Priority:         req.Priority,
		RequiresResponse: req.RequiresResponse,
		ParentMessageID:  req.ParentMessageID,
	}
	if m.Priority == "" {
		m.Priority = store.MsgMedium
	}
	if err := validateEnum("message priority", m.Priority, msgPriorities); err != nil {
		return nil, err
	}
	if m.ToAgentID == nil {
		if m.BroadcastScope != store.ScopeSwarm && m.BroadcastScope != store.ScopeGlobal {
			return nil, fmt.Errorf("broadcast message requires swarm or global scope, got %q", m.BroadcastScope)
		}
	} else if m.BroadcastScope == "" {
		m.BroadcastScope = store.ScopeNone
	}

	if err := c.store.CreateMessage(m); err != nil {
		return nil, err
	}

	// Sender's message counter moves with every send.
	if err := c.store.UpdateAgent(m.FromAgentID,
		store.SetExpr("message_count", "message_count + 1")); err != nil {
		slog.Warn("message counter update failed", "agent", m.FromAgentID, "error", err)
	}

	if m.ToAgentID != nil {
		c.publishEvent(natsbus.TopicAgentMessages(*m.ToAgentID), "message_created", map[string]any{
			"message_id": m.ID, "from": m.FromAgentID,
		})
	} else {
		c.publishEvent(natsbus.TopicSwarmEvents(m.SwarmID), "broadcast_created", map[string]any{
			"message_id": m.ID, "scope": m.BroadcastScope,
		})
	}
	return m, nil
}

func (c *Coordinator) GetMessage(id string) (*store.Communication, error) {
	return c.store.GetMessage(id)
}

func (c *Coordinator) PendingMessages(agentID, swarmID string) ([]store.Communication, error) {
	return c.store.PendingMessages(agentID, swarmID)
}

func (c *Coordinator) MarkMessageDelivered(id string) error {
	return c.store.MarkDelivered(id)
}

func (c *Coordinator) MarkMessageRead(id string) error {
	return c.store.MarkRead(id)
}

func (c *Coordinator) MarkMessageAcknowledged(id string) error {
	return c.store.MarkAcknowledged(id)
}

func (c *Coordinator) RecentMessages(swarmID string, window time.Duration, limit int) ([]store.Communication, error) {
	return c.store.RecentMessages(swarmID, window, limit)
}

// --- Consensus engine ---

type ProposeRequest struct {
	SwarmID           string
	ProposalType      string
	ProposalData      json.RawMessage
	ProposedBy        string
	ThresholdRequired float64
	TimeoutAt         *time.Time
}

func (c *Coordinator) ProposeConsensus(req ProposeRequest) (*store.Proposal, error) {
	p := &store.Proposal{
		ID:                uuid.New().String(),
		SwarmID:           req.SwarmID,
		ProposalType:      req.ProposalType,
		ProposalData:      req.ProposalData,
		ProposedBy:        req.ProposedBy,
		ThresholdRequired: req.ThresholdRequired,
		TimeoutAt:         req.TimeoutAt,
		Status:            store.ProposalPending,
	}
	if p.ThresholdRequired == 0 {
		p.ThresholdRequired = 0.66
	}
	if err := c.store.CreateProposal(p); err != nil {
		return nil, err
	}
	c.publishEvent(natsbus.TopicConsensusEvents(req.SwarmID), "proposal_created", map[string]any{
		"proposal_id": p.ID, "threshold": p.ThresholdRequired,
	})
	return p, nil
}

// SubmitConsensusVote records one vote; if it crosses the threshold the
// store flips the proposal to achieved in the same transaction.
func (c *Coordinator) SubmitConsensusVote(id string, inFavor bool) (*store.Proposal, error) {
	p, err := c.store.SubmitVote(id, inFavor)
	if err != nil {
		return nil, err
	}
	if p.Status == store.ProposalAchieved {
		c.publishEvent(natsbus.TopicConsensusEvents(p.SwarmID), "proposal_achieved", map[string]any{
			"proposal_id": p.ID, "votes_for": p.VotesFor, "votes_total": p.VotesTotal,
		})
	}
	return p, nil
}

func (c *Coordinator) GetProposal(id string) (*store.Proposal, error) {
	return c.store.GetProposal(id)
}

func (c *Coordinator) ResolveProposal(id, status string) error {
	if err := c.store.ResolveProposal(id, status); err != nil {
		return err
	}
	if p, err := c.store.GetProposal(id); err == nil && p != nil {
		c.publishEvent(natsbus.TopicConsensusEvents(p.SwarmID), "proposal_resolved", map[string]any{
			"proposal_id": id, "status": status,
		})
	}
	return nil
}

func (c *Coordinator) RecentProposals(swarmID string, limit int) ([]store.Proposal, error) {
	return c.store.RecentProposals(swarmID, limit)
}

// --- Metrics & health ---

func (c *Coordinator) RecordMetric(swarmID, agentID, name string, value float64) error {
	return c.store.RecordMetric(swarmID, agentID, name, value)
}

func (c *Coordinator) MetricsSince(swarmID string, window time.Duration, limit int) ([]store.Metric, error) {
	return c.store.MetricsSince(swarmID, window, limit)
}

func (c *Coordinator) HealthCheck() (*store.Health, error) {
	return c.store.HealthCheck()
}
