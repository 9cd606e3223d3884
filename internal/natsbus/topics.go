package natsbus

import "fmt"

// Topic patterns for the in-process event fabric.

func TopicSwarmEvents(swarmID string) string {
	return fmt.Sprintf("swarm.%s.events", swarmID)
}

func TopicAgentMessages(agentID string) string {
	return fmt.Sprintf("agent.%s.messages", agentID)
}

func TopicTaskEvents(swarmID string) string {
	return fmt.Sprintf("events.task.%s", swarmID)
}

func TopicConsensusEvents(swarmID string) string {
	return fmt.Sprintf("events.consensus.%s", swarmID)
}

// Wildcard subjects the serve-mode event log subscribes to, covering every
// topic the publishers above produce.
const (
	TopicEventsAll        = "events.>"
	TopicEventsMemory     = "events.memory.swept"
	TopicSwarmEventsAll   = "swarm.*.events"
	TopicAgentMessagesAll = "agent.*.messages"
)
