package natsbus

import (
	"testing"
	"time"

	"github.com/lanemc/hivemind/internal/config"
	"github.com/nats-io/nats.go"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	bus, err := New(config.NATSConfig{Port: 0, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("create bus: %v", err)
	}
	t.Cleanup(bus.Close)
	return bus
}

func newTestClient(t *testing.T, bus *Bus) *Client {
	t.Helper()
	client, err := NewClient(bus)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestBusStartStop(t *testing.T) {
	bus := newTestBus(t)
	if bus.ClientURL() == "" {
		t.Fatal("expected non-empty client URL")
	}
}

func TestEventEnvelopeRoundTrip(t *testing.T) {
	bus := newTestBus(t)
	client := newTestClient(t, bus)

	received := make(chan Event, 1)
	// The events.> wildcard must catch concrete task topics
	if _, err := client.SubscribeEvents(TopicEventsAll, func(subject string, ev Event) {
		if subject == TopicTaskEvents("sw-1") {
			received <- ev
		}
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := client.PublishEvent(TopicTaskEvents("sw-1"), "task_created", map[string]any{"task_id": "t-1"}); err != nil {
		t.Fatalf("publish event: %v", err)
	}
	client.Flush()

	select {
	case ev := <-received:
		if ev.Type != "task_created" {
			t.Errorf("expected task_created, got %s", ev.Type)
		}
		if ev.Data["task_id"] != "t-1" {
			t.Errorf("expected task_id t-1, got %v", ev.Data["task_id"])
		}
		if ev.Timestamp.IsZero() {
			t.Error("expected a stamped timestamp")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestSubscribeEventsDropsMalformed(t *testing.T) {
	bus := newTestBus(t)
	client := newTestClient(t, bus)

	topic := TopicConsensusEvents("sw-1")
	received := make(chan Event, 2)
	if _, err := client.SubscribeEvents(topic, func(_ string, ev Event) {
		received <- ev
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := client.Publish(topic, []byte("not json")); err != nil {
		t.Fatalf("publish garbage: %v", err)
	}
	if err := client.PublishEvent(topic, "proposal_created", nil); err != nil {
		t.Fatalf("publish event: %v", err)
	}
	client.Flush()

	select {
	case ev := <-received:
		if ev.Type != "proposal_created" {
			t.Errorf("expected only the well-formed event, got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestRawPubSub(t *testing.T) {
	bus := newTestBus(t)
	client := newTestClient(t, bus)

	received := make(chan []byte, 1)
	if _, err := client.Subscribe(TopicAgentMessages("a-1"), func(msg *nats.Msg) {
		received <- msg.Data
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := client.Publish(TopicAgentMessages("a-1"), []byte("wake up")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	client.Flush()

	select {
	case data := <-received:
		if string(data) != "wake up" {
			t.Errorf("expected 'wake up', got %q", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestTopicNames(t *testing.T) {
	if got := TopicSwarmEvents("s1"); got != "swarm.s1.events" {
		t.Errorf("expected swarm.s1.events, got %s", got)
	}
	if got := TopicAgentMessages("a1"); got != "agent.a1.messages" {
		t.Errorf("expected agent.a1.messages, got %s", got)
	}
	if got := TopicTaskEvents("s1"); got != "events.task.s1" {
		t.Errorf("expected events.task.s1, got %s", got)
	}
	if got := TopicConsensusEvents("s1"); got != "events.consensus.s1" {
		t.Errorf("expected events.consensus.s1, got %s", got)
	}
}
