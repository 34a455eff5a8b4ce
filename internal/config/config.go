// Package config defines service configuration and how it is loaded.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMongo    = "mongo"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Backend selects the counter store: memory, postgres, redis or mongo.
	Backend string `koanf:"backend"`

	PostgresURL    string `koanf:"postgres_url"`
	PostgresSchema string `koanf:"postgres_schema"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisPrefix   string `koanf:"redis_prefix"`

	MongoURI      string `koanf:"mongo_uri"`
	MongoDatabase string `koanf:"mongo_database"`

	// HistoryEnabled turns play history on; HistoryCap bounds the records
	// kept per group by the memory and Redis recorders.
	HistoryEnabled bool `koanf:"history_enabled"`
	HistoryCap     int  `koanf:"history_cap"`

	// StorageTimeoutMS bounds every storage call; 0 disables the bound.
	StorageTimeoutMS int `koanf:"storage_timeout_ms"`

	// EventQueueSize bounds the in-memory event queue.
	EventQueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of ingestion workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize bounds the remembered event ids.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// AdminToken authorizes the administrative routes. Empty denies them.
	AdminToken string `koanf:"admin_token"`

	// KafkaBrokers is a comma separated broker list. Empty disables the
	// Kafka consumer.
	KafkaBrokers string `koanf:"kafka_brokers"`
	KafkaTopic   string `koanf:"kafka_topic"`
	KafkaGroup   string `koanf:"kafka_group"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		Backend:             BackendMemory,
		PostgresSchema:      "playstats",
		RedisAddr:           "127.0.0.1:6379",
		RedisPrefix:         "playstats",
		MongoURI:            "mongodb://127.0.0.1:27017",
		MongoDatabase:       "playstats",
		HistoryEnabled:      true,
		HistoryCap:          100,
		StorageTimeoutMS:    2000,
		EventQueueSize:      10_000,
		WorkerCount:         runtime.NumCPU() * 2,
		DedupeSize:          50_000,
		MaxLeaderboardLimit: 100,
		KafkaTopic:          "plays",
		KafkaGroup:          "playstats",
	}
}

// StorageTimeout returns StorageTimeoutMS as a duration.
func (c *Config) StorageTimeout() time.Duration {
	return time.Duration(c.StorageTimeoutMS) * time.Millisecond
}

// Brokers splits KafkaBrokers, dropping empty entries.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Validate reports the first invalid setting as ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	switch {
	case strings.TrimSpace(c.Addr) == "":
		return invalid("addr must not be empty")
	case c.LogFormat != "text" && c.LogFormat != "json":
		return invalid("log_format %q must be text or json", c.LogFormat)
	case c.EventQueueSize < 1:
		return invalid("queue_size must be positive")
	case c.WorkerCount < 1:
		return invalid("worker_count must be positive")
	case c.MaxLeaderboardLimit < 1:
		return invalid("max_leaderboard_limit must be positive")
	case c.StorageTimeoutMS < 0:
		return invalid("storage_timeout_ms must not be negative")
	case c.HistoryEnabled && c.HistoryCap < 1:
		return invalid("history_cap must be positive when history is enabled")
	}

	switch c.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.PostgresURL == "" {
			return invalid("postgres_url is required for the postgres backend")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return invalid("redis_addr is required for the redis backend")
		}
	case BackendMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return invalid("mongo_uri and mongo_database are required for the mongo backend")
		}
	default:
		return invalid("unknown backend %q", c.Backend)
	}

	if len(c.Brokers()) > 0 && (c.KafkaTopic == "" || c.KafkaGroup == "") {
		return invalid("kafka_topic and kafka_group are required with kafka_brokers")
	}
	return nil
}
