package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/lanemc/hivemind/internal/config"
	"github.com/lanemc/hivemind/internal/natsbus"
	"github.com/lanemc/hivemind/internal/store"
)

// Sweeper runs periodic memory maintenance: per-entry TTL expiry, policy
// age expiry and capacity trimming per namespace, plus optional consensus
// proposal timeouts. Nothing here runs unless Start is called; all the
// same operations stay callable on demand through the store.
type Sweeper struct {
	store      *store.Store
	natsClient *natsbus.Client
	cfg        config.SweeperConfig
	cron       *gronx.Gronx
	reloadCh   chan struct{}

	mu       sync.Mutex
	inFlight map[string]bool // one sweep per namespace at a time
}

func New(s *store.Store, bus *natsbus.Bus, cfg config.SweeperConfig) *Sweeper {
	sw := &Sweeper{
		store:    s,
		cfg:      cfg,
		cron:     gronx.New(),
		reloadCh: make(chan struct{}, 1),
		inFlight: make(map[string]bool),
	}

	if bus != nil {
		client, err := natsbus.NewClient(bus)
		if err != nil {
			slog.Error("sweeper nats client failed", "error", err)
		} else {
			sw.natsClient = client
		}
	}

	return sw
}

// UpdateConfig swaps the sweep policy and signals the run loop to reset
// its ticker.
func (s *Sweeper) UpdateConfig(cfg config.SweeperConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	select {
	case s.reloadCh <- struct{}{}:
	default:
	}
}

func (s *Sweeper) interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.Cron != "" {
		// Cron schedules are evaluated with minute granularity.
		return time.Minute
	}
	if s.cfg.Interval <= 0 {
		return time.Minute
	}
	return s.cfg.Interval
}

// Start blocks until ctx is canceled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()

	slog.Info("sweeper started", "interval", s.interval(), "cron", s.cfg.Cron)

	for {
		select {
		case <-ctx.Done():
			slog.Info("sweeper stopped")
			return
		case <-s.reloadCh:
			ticker.Reset(s.interval())
			slog.Info("sweeper config reloaded", "interval", s.interval())
		case <-ticker.C:
			s.mu.Lock()
			cron := s.cfg.Cron
			s.mu.Unlock()
			if cron != "" {
				due, err := s.cron.IsDue(cron, time.Now())
				if err != nil {
					slog.Error("invalid sweep cron expression", "cron", cron, "error", err)
					continue
				}
				if !due {
					continue
				}
			}
			s.Sweep()
		}
	}
}

// Sweep runs one full maintenance pass. Namespaces with a sweep already in
// flight are skipped rather than swept concurrently.
func (s *Sweeper) Sweep() {
	s.mu.Lock()
	policies := make([]config.NamespacePolicy, len(s.cfg.Namespaces))
	copy(policies, s.cfg.Namespaces)
	proposalTimeouts := s.cfg.ProposalTimeouts
	s.mu.Unlock()

	for _, p := range policies {
		s.sweepNamespace(p)
	}

	if proposalTimeouts {
		expired, err := s.store.ExpireProposals(time.Now())
		if err != nil {
			slog.Error("proposal timeout sweep failed", "error", err)
		} else if len(expired) > 0 {
			slog.Info("proposals timed out", "count", len(expired))
		}
	}
}

func (s *Sweeper) sweepNamespace(p config.NamespacePolicy) {
	s.mu.Lock()
	if s.inFlight[p.Name] {
		s.mu.Unlock()
		slog.Debug("sweep already in flight, skipping", "namespace", p.Name)
		return
	}
	s.inFlight[p.Name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, p.Name)
		s.mu.Unlock()
	}()

	var expired, trimmed int64

	n, err := s.store.ExpireTTL(p.Name)
	if err != nil {
		slog.Error("ttl expiry failed", "namespace", p.Name, "error", err)
		return
	}
	expired += n

	if p.TTLSeconds > 0 {
		n, err := s.store.ExpireNamespace(p.Name, p.TTLSeconds)
		if err != nil {
			slog.Error("age expiry failed", "namespace", p.Name, "error", err)
			return
		}
		expired += n
	}

	if p.MaxEntries > 0 {
		n, err := s.store.TrimNamespace(p.Name, p.MaxEntries)
		if err != nil {
			slog.Error("namespace trim failed", "namespace", p.Name, "error", err)
			return
		}
		trimmed = n
	}

	if expired > 0 || trimmed > 0 {
		slog.Info("namespace swept", "namespace", p.Name, "expired", expired, "trimmed", trimmed)
		s.publishSweptEvent(p.Name, expired, trimmed)
	}
}

func (s *Sweeper) publishSweptEvent(namespace string, expired, trimmed int64) {
	if s.natsClient == nil {
		return
	}
	err := s.natsClient.PublishEvent(natsbus.TopicEventsMemory, "memory_swept", map[string]any{
		"namespace": namespace,
		"expired":   expired,
		"trimmed":   trimmed,
	})
	if err != nil {
		slog.Warn("publish swept event failed", "error", err)
	}
}
