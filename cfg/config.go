package cfg

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
)

// BackendType selects which log system the helper talks to
type BackendType string

const (
	BackendKafka BackendType = "kafka" // Kafka brokers via kafka-go
	BackendNats  BackendType = "nats"  // NATS JetStream, one stream per partition
	BackendLocal BackendType = "local" // Embedded Pebble log, no broker needed
)

// LogConfiguration controls the connection to the log system
type LogConfiguration struct {
	Backend          BackendType `toml:"backend"`
	Brokers          []string    `toml:"brokers"`
	NatsURL          string      `toml:"nats_url"`
	LocalDir         string      `toml:"local_dir"`
	DialTimeoutMS    int         `toml:"dial_timeout_ms"`
	RequestTimeoutMS int         `toml:"request_timeout_ms"`
}

// TopicConfiguration holds defaults used when provisioning topics
type TopicConfiguration struct {
	Partitions        int               `toml:"partitions"`
	ReplicationFactor int               `toml:"replication_factor"`
	Config            map[string]string `toml:"config"` // e.g. retention.ms, cleanup.policy
}

// ProducerConfiguration controls how test messages are written
type ProducerConfiguration struct {
	Key            string `toml:"key"`
	RequiredAcks   int    `toml:"required_acks"` // -1 all, 0 none, 1 leader
	BatchTimeoutMS int    `toml:"batch_timeout_ms"`
}

// LoggingConfiguration controls logging behavior
type LoggingConfiguration struct {
	Verbose bool   `toml:"verbose"`
	Format  string `toml:"format"` // "console" or "json"
}

// PrometheusConfiguration for metrics
type PrometheusConfiguration struct {
	Enabled bool `toml:"enabled"`
}

// AdminConfiguration controls the HTTP surface started by "serve"
type AdminConfiguration struct {
	BindAddress     string   `toml:"bind_address"`
	Port            int      `toml:"port"`
	WatchTopics     []string `toml:"watch_topics"`
	WatchIntervalMS int      `toml:"watch_interval_ms"`
	Secret          string   `toml:"secret"` // empty disables authentication
}

// Configuration is the main configuration structure
type Configuration struct {
	Log        LogConfiguration        `toml:"log"`
	Topic      TopicConfiguration      `toml:"topic"`
	Producer   ProducerConfiguration   `toml:"producer"`
	Logging    LoggingConfiguration    `toml:"logging"`
	Prometheus PrometheusConfiguration `toml:"prometheus"`
	Admin      AdminConfiguration      `toml:"admin"`
}

// Command line flags
var (
	ConfigPathFlag = flag.String("config", "logcursor.toml", "Path to configuration file")
	BackendFlag    = flag.String("backend", "", "Log backend: kafka, nats or local (overrides config)")
	BrokersFlag    = flag.String("brokers", "", "Comma-separated broker addresses (overrides config)")
	LocalDirFlag   = flag.String("local-dir", "", "Data directory of the local backend (overrides config)")
)

// Default configuration
var Config = DefaultConfiguration()

// DefaultConfiguration returns a fresh Configuration holding the defaults
func DefaultConfiguration() *Configuration {
	return &Configuration{
		Log: LogConfiguration{
			Backend:          BackendKafka,
			Brokers:          []string{"localhost:9092"},
			NatsURL:          "nats://localhost:4222",
			LocalDir:         "./logcursor-data",
			DialTimeoutMS:    10000,
			RequestTimeoutMS: 30000,
		},

		Topic: TopicConfiguration{
			Partitions:        1,
			ReplicationFactor: 1,
			Config:            map[string]string{},
		},

		Producer: ProducerConfiguration{
			Key:            "someKey",
			RequiredAcks:   -1,
			BatchTimeoutMS: 10,
		},

		Logging: LoggingConfiguration{
			Verbose: false,
			Format:  "console",
		},

		Prometheus: PrometheusConfiguration{
			Enabled: true,
		},

		Admin: AdminConfiguration{
			BindAddress:     "127.0.0.1",
			Port:            8089,
			WatchTopics:     []string{},
			WatchIntervalMS: 5000,
		},
	}
}

// Load loads configuration from file and applies CLI overrides
func Load(configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			log.Info().Str("path", configPath).Msg("Loading configuration")
			if _, err := toml.DecodeFile(configPath, Config); err != nil {
				return fmt.Errorf("failed to decode config: %w", err)
			}
		} else {
			log.Debug().Str("path", configPath).Msg("Config file not found, using defaults")
		}
	}

	applyOverrides(*BackendFlag, *BrokersFlag, *LocalDirFlag)
	return nil
}

func applyOverrides(backend, brokers, localDir string) {
	if backend != "" {
		Config.Log.Backend = BackendType(backend)
	}
	if brokers != "" {
		Config.Log.Brokers = splitList(brokers)
	}
	if localDir != "" {
		Config.Log.LocalDir = localDir
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsAdminAuthEnabled reports whether admin requests must carry the shared secret
func IsAdminAuthEnabled() bool {
	return Config.Admin.Secret != ""
}

// GetAdminSecret returns the shared admin secret
func GetAdminSecret() string {
	return Config.Admin.Secret
}

// Validate checks configuration for errors
func Validate() error {
	switch Config.Log.Backend {
	case BackendKafka:
		if len(Config.Log.Brokers) == 0 {
			return fmt.Errorf("kafka backend requires at least one broker")
		}
	case BackendNats:
		if Config.Log.NatsURL == "" {
			return fmt.Errorf("nats backend requires nats_url")
		}
	case BackendLocal:
		if Config.Log.LocalDir == "" {
			return fmt.Errorf("local backend requires local_dir")
		}
	default:
		return fmt.Errorf("invalid log backend: %q", Config.Log.Backend)
	}

	if Config.Log.DialTimeoutMS < 1 {
		return fmt.Errorf("dial timeout must be >= 1ms")
	}

	if Config.Log.RequestTimeoutMS < 1 {
		return fmt.Errorf("request timeout must be >= 1ms")
	}

	if Config.Topic.Partitions < 1 {
		return fmt.Errorf("topic partitions must be >= 1")
	}

	if Config.Topic.ReplicationFactor < 1 {
		return fmt.Errorf("topic replication factor must be >= 1")
	}

	switch Config.Producer.RequiredAcks {
	case -1, 0, 1:
	default:
		return fmt.Errorf("invalid producer required_acks: %d", Config.Producer.RequiredAcks)
	}

	if Config.Producer.BatchTimeoutMS < 0 {
		return fmt.Errorf("producer batch timeout must be >= 0")
	}

	if Config.Logging.Format != "console" && Config.Logging.Format != "json" {
		return fmt.Errorf("invalid logging format: %q", Config.Logging.Format)
	}

	if Config.Admin.Port < 1 || Config.Admin.Port > 65535 {
		return fmt.Errorf("invalid admin port: %d", Config.Admin.Port)
	}

	if Config.Admin.WatchIntervalMS < 1 {
		return fmt.Errorf("watch interval must be >= 1ms")
	}

	return nil
}
