package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Nodes     []string        `mapstructure:"nodes"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Mirror    MirrorConfig    `mapstructure:"mirror"`
	Events    EventsConfig    `mapstructure:"events"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Tasks     TasksConfig     `mapstructure:"tasks"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// StorageConfig locates the record database and the per-node file areas
type StorageConfig struct {
	DataDir  string `mapstructure:"data_dir"`  // Directory holding zkbalancer.db
	FilesDir string `mapstructure:"files_dir"` // Root of per-node storage directories
}

// ProbeConfig controls the diagnostic probe sent to each node
type ProbeConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	Retries    int           `mapstructure:"retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	Command    string        `mapstructure:"command"`
}

// SchedulerConfig controls the background rebalance loop
type SchedulerConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	Threshold int           `mapstructure:"threshold"` // Minimum count delta before migrating
}

// MirrorConfig selects the metadata mirror backend
type MirrorConfig struct {
	Type      string        `mapstructure:"type"`      // zookeeper, etcd or none
	Endpoints []string      `mapstructure:"endpoints"` // Defaults to Nodes for zookeeper
	RootPath  string        `mapstructure:"root_path"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// EventsConfig selects where operation events are forwarded
type EventsConfig struct {
	Sink    string   `mapstructure:"sink"`    // none, nats, kafka or redis
	URL     string   `mapstructure:"url"`     // nats:// or redis:// URL
	Subject string   `mapstructure:"subject"` // NATS subject, Kafka topic or Redis stream
	Brokers []string `mapstructure:"brokers"` // Kafka brokers
	Buffer  int      `mapstructure:"buffer"`
}

// MetricsConfig controls the observability endpoint and refresh loop
type MetricsConfig struct {
	Addr            string        `mapstructure:"addr"`
	CollectInterval time.Duration `mapstructure:"collect_interval"`
}

// TasksConfig bounds the simulated task history
type TasksConfig struct {
	HistoryLimit int `mapstructure:"history_limit"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// Mirror backends
const (
	MirrorNone      = "none"
	MirrorZooKeeper = "zookeeper"
	MirrorEtcd      = "etcd"
)

// Event sinks
const (
	SinkNone  = "none"
	SinkNATS  = "nats"
	SinkKafka = "kafka"
	SinkRedis = "redis"
)

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if len(c.Nodes) == 0 {
		return fmt.Errorf("at least one node must be configured")
	}
	seen := make(map[string]bool, len(c.Nodes))
	for _, node := range c.Nodes {
		host, port, err := net.SplitHostPort(node)
		if err != nil {
			return fmt.Errorf("invalid node endpoint %q: %w", node, err)
		}
		if host == "" {
			return fmt.Errorf("invalid node endpoint %q: empty host", node)
		}
		if p, err := strconv.Atoi(port); err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid node endpoint %q: bad port", node)
		}
		if seen[host] {
			return fmt.Errorf("duplicate node name %q", host)
		}
		seen[host] = true
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if c.Storage.FilesDir == "" {
		return fmt.Errorf("storage.files_dir is required")
	}

	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe.timeout must be positive")
	}
	if c.Probe.Retries < 0 {
		return fmt.Errorf("probe.retries must not be negative")
	}
	if c.Probe.RetryDelay < 0 {
		return fmt.Errorf("probe.retry_delay must not be negative")
	}
	if c.Probe.Command == "" {
		return fmt.Errorf("probe.command is required")
	}

	if c.Scheduler.Threshold < 0 {
		return fmt.Errorf("scheduler.threshold must not be negative")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive when the scheduler is enabled")
	}

	switch c.Mirror.Type {
	case "", MirrorNone, MirrorZooKeeper, MirrorEtcd:
	default:
		return fmt.Errorf("unsupported mirror type: %s (supported: zookeeper, etcd, none)", c.Mirror.Type)
	}
	if c.Mirror.Type == MirrorEtcd && len(c.Mirror.Endpoints) == 0 {
		return fmt.Errorf("mirror.endpoints is required for etcd")
	}

	switch c.Events.Sink {
	case "", SinkNone:
	case SinkNATS, SinkRedis:
		if c.Events.URL == "" {
			return fmt.Errorf("events.url is required for %s sink", c.Events.Sink)
		}
	case SinkKafka:
		if len(c.Events.Brokers) == 0 {
			return fmt.Errorf("events.brokers is required for kafka sink")
		}
	default:
		return fmt.Errorf("unsupported event sink: %s (supported: nats, kafka, redis, none)", c.Events.Sink)
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}

	return nil
}

// MirrorEndpoints returns the endpoints the mirror should connect to
func (c *Config) MirrorEndpoints() []string {
	if len(c.Mirror.Endpoints) > 0 {
		return c.Mirror.Endpoints
	}
	return c.Nodes
}
