package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	t.Setenv("HIVEMIND_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Path != "data/hivemind.db" {
		t.Errorf("unexpected store path %s", cfg.Store.Path)
	}
	if cfg.NATS.Port != 4222 || cfg.NATS.DataDir != "data/nats" {
		t.Errorf("unexpected nats defaults: %+v", cfg.NATS)
	}
	if cfg.Sweeper.Interval != time.Minute || !cfg.Sweeper.ProposalTimeouts {
		t.Errorf("unexpected sweeper defaults: %+v", cfg.Sweeper)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hivemind.yaml")
	data := `
store:
  path: /var/lib/hivemind/store.db
nats:
  port: 14222
sweeper:
  interval: 30s
  cron: "0 3 * * *"
  proposal_timeouts: false
  namespaces:
    - name: cache
      max_entries: 100
      ttl_seconds: 3600
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HIVEMIND_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Path != "/var/lib/hivemind/store.db" {
		t.Errorf("unexpected store path %s", cfg.Store.Path)
	}
	if cfg.NATS.Port != 14222 {
		t.Errorf("unexpected port %d", cfg.NATS.Port)
	}
	if cfg.NATS.DataDir != "data/nats" {
		t.Errorf("file should not clobber unset defaults, got %s", cfg.NATS.DataDir)
	}
	if cfg.Sweeper.Interval != 30*time.Second || cfg.Sweeper.Cron != "0 3 * * *" {
		t.Errorf("unexpected sweeper config: %+v", cfg.Sweeper)
	}
	if cfg.Sweeper.ProposalTimeouts {
		t.Error("expected proposal timeouts disabled")
	}
	if len(cfg.Sweeper.Namespaces) != 1 || cfg.Sweeper.Namespaces[0].MaxEntries != 100 {
		t.Errorf("unexpected namespaces: %+v", cfg.Sweeper.Namespaces)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HIVEMIND_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("HIVEMIND_STORE_PATH", "/tmp/override.db")
	t.Setenv("HIVEMIND_NATS_PORT", "24222")
	t.Setenv("HIVEMIND_SWEEP_INTERVAL", "45s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Path != "/tmp/override.db" {
		t.Errorf("unexpected store path %s", cfg.Store.Path)
	}
	if cfg.NATS.Port != 24222 {
		t.Errorf("unexpected port %d", cfg.NATS.Port)
	}
	if cfg.Sweeper.Interval != 45*time.Second {
		t.Errorf("unexpected interval %v", cfg.Sweeper.Interval)
	}
}

func TestExpandEnvInFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hivemind.yaml")
	if err := os.WriteFile(path, []byte("store:\n  path: ${HIVE_DATA}/store.db\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HIVEMIND_CONFIG", path)
	t.Setenv("HIVE_DATA", "/srv/hivemind")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Path != "/srv/hivemind/store.db" {
		t.Errorf("expected env expansion, got %s", cfg.Store.Path)
	}
}
