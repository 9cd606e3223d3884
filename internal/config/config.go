package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Store   StoreConfig   `yaml:"store"`
	NATS    NATSConfig    `yaml:"nats"`
	Sweeper SweeperConfig `yaml:"sweeper"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type NATSConfig struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type SweeperConfig struct {
	// Interval is the fixed poll interval. Cron, when set, takes
	// precedence and is evaluated with minute granularity.
	Interval         time.Duration     `yaml:"interval"`
	Cron             string            `yaml:"cron"`
	ProposalTimeouts bool              `yaml:"proposal_timeouts"`
	Namespaces       []NamespacePolicy `yaml:"namespaces"`
}

// NamespacePolicy bounds one memory namespace. Zero values disable the
// corresponding knob: MaxEntries=0 means no capacity trim, TTLSeconds=0
// means rely on per-entry TTLs only.
type NamespacePolicy struct {
	Name       string `yaml:"name"`
	MaxEntries int    `yaml:"max_entries"`
	TTLSeconds int64  `yaml:"ttl_seconds"`
}

func defaults() Config {
	return Config{
		Store: StoreConfig{
			Path: "data/hivemind.db",
		},
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Sweeper: SweeperConfig{
			Interval:         time.Minute,
			ProposalTimeouts: true,
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("HIVEMIND_CONFIG")
	if path == "" {
		path = "config/hivemind.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HIVEMIND_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("HIVEMIND_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("HIVEMIND_NATS_DATA_DIR"); v != "" {
		cfg.NATS.DataDir = v
	}
	if v := os.Getenv("HIVEMIND_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sweeper.Interval = d
		}
	}
}
