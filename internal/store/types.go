package store

// Swarm topologies.
const (
	TopologyMesh         = "mesh"
	TopologyHierarchical = "hierarchical"
	TopologyRing         = "ring"
	TopologyStar         = "star"
)

// Queen modes.
const (
	QueenCentralized = "centralized"
	QueenDistributed = "distributed"
)

// Swarm statuses.
const (
	SwarmActive   = "active"
	SwarmPaused   = "paused"
	SwarmArchived = "archived"
)

// Agent roles.
const (
	AgentQueen       = "queen"
	AgentCoordinator = "coordinator"
	AgentResearcher  = "researcher"
	AgentCoder       = "coder"
	AgentAnalyst     = "analyst"
	AgentArchitect   = "architect"
	AgentTester      = "tester"
	AgentReviewer    = "reviewer"
	AgentOptimizer   = "optimizer"
	AgentDocumenter  = "documenter"
	AgentMonitor     = "monitor"
)

// Agent statuses.
const (
	AgentIdle    = "idle"
	AgentBusy    = "busy"
	AgentActive  = "active"
	AgentError   = "error"
	AgentOffline = "offline"
)

// Task statuses.
const (
	TaskPending    = "pending"
	TaskAssigned   = "assigned"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
	TaskFailed     = "failed"
	TaskCancelled  = "cancelled"
)

// Task priorities.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// Message priorities.
const (
	MsgUrgent = "urgent"
	MsgHigh   = "high"
	MsgMedium = "medium"
	MsgLow    = "low"
)

// Broadcast scopes.
const (
	ScopeSwarm  = "swarm"
	ScopeGlobal = "global"
	ScopeNone   = "none"
)

// Proposal statuses.
const (
	ProposalPending  = "pending"
	ProposalAchieved = "achieved"
	ProposalFailed   = "failed"
	ProposalTimeout  = "timeout"
)

// Priority rank expressions used in ORDER BY clauses. Lower ranks dispatch
// first; equal ranks fall back to created_at for FIFO fairness.
const (
	taskPriorityRank = `CASE priority
		WHEN 'critical' THEN 1
		WHEN 'high' THEN 2
		WHEN 'medium' THEN 3
		WHEN 'low' THEN 4
		ELSE 5 END`

	msgPriorityRank = `CASE priority
		WHEN 'urgent' THEN 1
		WHEN 'high' THEN 2
		WHEN 'medium' THEN 3
		WHEN 'low' THEN 4
		ELSE 5 END`
)

// TerminalTaskStatus reports whether a task status ends the task's
// lifecycle; completed_at is set exactly for these.
func TerminalTaskStatus(status string) bool {
	switch status {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	}
	return false
}

// TerminalProposalStatus reports whether a proposal status is terminal.
func TerminalProposalStatus(status string) bool {
	switch status {
	case ProposalAchieved, ProposalFailed, ProposalTimeout:
		return true
	}
	return false
}
