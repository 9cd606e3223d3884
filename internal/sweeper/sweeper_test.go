package sweeper

import (
	"testing"
	"time"

	"github.com/lanemc/hivemind/internal/config"
	"github.com/lanemc/hivemind/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(config.StoreConfig{Path: t.TempDir() + "/hivemind.db"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSweepNamespacePolicy(t *testing.T) {
	s := newTestStore(t)

	ttl := int64(60)
	seed := []store.MemoryEntry{
		{Key: "expired-own-ttl", Namespace: "cache", Value: "v", TTL: &ttl},
		{Key: "expired-by-age", Namespace: "cache", Value: "v"},
		{Key: "keep-1", Namespace: "cache", Value: "v"},
		{Key: "keep-2", Namespace: "cache", Value: "v"},
		{Key: "over-capacity", Namespace: "cache", Value: "v"},
		{Key: "untouched", Namespace: "other", Value: "v"},
	}
	for i := range seed {
		if err := s.StoreMemory(&seed[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	// Rank the keepers above the capacity victim
	for _, key := range []string{"keep-1", "keep-2"} {
		if _, err := s.GetMemory(key, "cache"); err != nil {
			t.Fatalf("touch %s: %v", key, err)
		}
	}
	if _, err := s.DB().Exec(`UPDATE memory SET created_at = datetime('now', '-2 hours') WHERE key IN ('expired-own-ttl', 'expired-by-age')`); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	sw := New(s, nil, config.SweeperConfig{
		Namespaces: []config.NamespacePolicy{
			{Name: "cache", MaxEntries: 2, TTLSeconds: 3600},
		},
	})
	sw.Sweep()

	remaining, err := s.ListNamespace("cache", 0)
	if err != nil {
		t.Fatalf("list namespace: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 survivors, got %d: %+v", len(remaining), remaining)
	}
	for _, e := range remaining {
		if e.Key != "keep-1" && e.Key != "keep-2" {
			t.Errorf("unexpected survivor %s", e.Key)
		}
	}

	// Other namespaces are out of the policy's reach
	if e, _ := s.GetMemory("untouched", "other"); e == nil {
		t.Error("entries outside the policy namespace must survive")
	}
}

func TestSweepProposalTimeouts(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateSwarm(&store.Swarm{ID: "sw-1", Name: "alpha", Topology: store.TopologyMesh,
		QueenMode: store.QueenCentralized, MaxAgents: 8, ConsensusThreshold: 0.66,
		MemoryTTL: 86400, Status: store.SwarmActive}); err != nil {
		t.Fatalf("create swarm: %v", err)
	}
	past := time.Now().UTC().Add(-time.Minute)
	if err := s.CreateProposal(&store.Proposal{ID: "p-1", SwarmID: "sw-1", ProposalType: "x",
		ProposedBy: "a-1", ThresholdRequired: 0.5, TimeoutAt: &past}); err != nil {
		t.Fatalf("create proposal: %v", err)
	}

	// Timeouts off: the proposal stays pending
	sw := New(s, nil, config.SweeperConfig{ProposalTimeouts: false})
	sw.Sweep()
	p, _ := s.GetProposal("p-1")
	if p.Status != store.ProposalPending {
		t.Fatalf("expected pending with timeouts disabled, got %s", p.Status)
	}

	sw.UpdateConfig(config.SweeperConfig{ProposalTimeouts: true})
	sw.Sweep()
	p, _ = s.GetProposal("p-1")
	if p.Status != store.ProposalTimeout {
		t.Errorf("expected timeout, got %s", p.Status)
	}
}

func TestIntervalSelection(t *testing.T) {
	s := newTestStore(t)

	sw := New(s, nil, config.SweeperConfig{Interval: 5 * time.Second})
	if got := sw.interval(); got != 5*time.Second {
		t.Errorf("expected 5s, got %v", got)
	}

	// Cron schedules poll at minute granularity regardless of interval
	sw.UpdateConfig(config.SweeperConfig{Interval: 5 * time.Second, Cron: "0 3 * * *"})
	if got := sw.interval(); got != time.Minute {
		t.Errorf("expected 1m under cron, got %v", got)
	}

	sw.UpdateConfig(config.SweeperConfig{})
	if got := sw.interval(); got != time.Minute {
		t.Errorf("expected 1m default, got %v", got)
	}
}
