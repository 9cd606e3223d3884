package hive

import (
	"errors"
	"fmt"

	"github.com/lanemc/hivemind/internal/store"
)

// ErrMaxAgentsReached is returned when spawning would exceed the swarm's
// max_agents budget.
var ErrMaxAgentsReached = errors.New("maximum number of agents reached")

var topologies = map[string]bool{
	store.TopologyMesh:         true,
	store.TopologyHierarchical: true,
	store.TopologyRing:         true,
	store.TopologyStar:         true,
}

var queenModes = map[string]bool{
	store.QueenCentralized: true,
	store.QueenDistributed: true,
}

var agentTypes = map[string]bool{
	store.AgentQueen:       true,
	store.AgentCoordinator: true,
	store.AgentResearcher:  true,
	store.AgentCoder:       true,
	store.AgentAnalyst:     true,
	store.AgentArchitect:   true,
	store.AgentTester:      true,
	store.AgentReviewer:    true,
	store.AgentOptimizer:   true,
	store.AgentDocumenter:  true,
	store.AgentMonitor:     true,
}

var taskPriorities = map[string]bool{
	store.PriorityCritical: true,
	store.PriorityHigh:     true,
	store.PriorityMedium:   true,
	store.PriorityLow:      true,
}

var msgPriorities = map[string]bool{
	store.MsgUrgent: true,
	store.MsgHigh:   true,
	store.MsgMedium: true,
	store.MsgLow:    true,
}

func validateEnum(kind, value string, allowed map[string]bool) error {
	if !allowed[value] {
		return fmt.Errorf("invalid %s %q", kind, value)
	}
	return nil
}
