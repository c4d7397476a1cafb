package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("zkbalancer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/zkbalancer")
	}

	setDefaults(v)

	// ZKBAL_SCHEDULER_THRESHOLD overrides scheduler.threshold
	v.SetEnvPrefix("ZKBAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("nodes", d.Nodes)

	v.SetDefault("storage.data_dir", d.Storage.DataDir)
	v.SetDefault("storage.files_dir", d.Storage.FilesDir)

	v.SetDefault("probe.timeout", d.Probe.Timeout)
	v.SetDefault("probe.retries", d.Probe.Retries)
	v.SetDefault("probe.retry_delay", d.Probe.RetryDelay)
	v.SetDefault("probe.command", d.Probe.Command)

	v.SetDefault("scheduler.enabled", d.Scheduler.Enabled)
	v.SetDefault("scheduler.interval", d.Scheduler.Interval)
	v.SetDefault("scheduler.threshold", d.Scheduler.Threshold)

	v.SetDefault("mirror.type", d.Mirror.Type)
	v.SetDefault("mirror.root_path", d.Mirror.RootPath)
	v.SetDefault("mirror.timeout", d.Mirror.Timeout)

	v.SetDefault("events.sink", d.Events.Sink)
	v.SetDefault("events.subject", d.Events.Subject)
	v.SetDefault("events.buffer", d.Events.Buffer)

	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("metrics.collect_interval", d.Metrics.CollectInterval)

	v.SetDefault("tasks.history_limit", d.Tasks.HistoryLimit)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hooks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// ZKBAL_NODES arrives as a single comma separated string
	if len(cfg.Nodes) == 1 && strings.Contains(cfg.Nodes[0], ",") {
		cfg.Nodes = splitList(cfg.Nodes[0])
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// secondsToDurationHook reads a bare number given for a duration as
// seconds, so "interval: 15" and ZKBAL_SCHEDULER_INTERVAL=15 both mean 15s.
// Values with a unit ("500ms") are left to StringToTimeDurationHookFunc.
func secondsToDurationHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType || from == durationType {
		return data, nil
	}
	switch n := data.(type) {
	case int:
		return time.Duration(n) * time.Second, nil
	case int64:
		return time.Duration(n) * time.Second, nil
	case uint64:
		return time.Duration(n) * time.Second, nil
	case float64:
		return time.Duration(n * float64(time.Second)), nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return time.Duration(f * float64(time.Second)), nil
		}
	}
	return data, nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Nodes: []string{"zk1:2181", "zk2:2181", "zk3:2181"},
		Storage: StorageConfig{
			DataDir:  "./data",
			FilesDir: "./data/uploads",
		},
		Probe: ProbeConfig{
			Timeout:    2500 * time.Millisecond,
			Retries:    2,
			RetryDelay: 500 * time.Millisecond,
			Command:    "mntr",
		},
		Scheduler: SchedulerConfig{
			Enabled:   true,
			Interval:  15 * time.Second,
			Threshold: 5,
		},
		Mirror: MirrorConfig{
			Type:     MirrorNone,
			RootPath: "/demo/files",
			Timeout:  2500 * time.Millisecond,
		},
		Events: EventsConfig{
			Sink:    SinkNone,
			Subject: "zkbalancer.operations",
			Buffer:  100,
		},
		Metrics: MetricsConfig{
			Addr:            ":9100",
			CollectInterval: 15 * time.Second,
		},
		Tasks: TasksConfig{
			HistoryLimit: 50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
