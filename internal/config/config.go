package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CHRONOLOOM_"

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Scheduler backends.
const (
	SchedulerLocal = "local"
	SchedulerKafka = "kafka"
)

// Config holds application configuration.
type Config struct {
	HTTP       HTTPConfig       `koanf:"http"`
	Storage    StorageConfig    `koanf:"storage"`
	Reconciler ReconcilerConfig `koanf:"reconciler"`
	Scheduler  SchedulerConfig  `koanf:"scheduler"`
	Kafka      KafkaConfig      `koanf:"kafka"`
	Auth       AuthConfig       `koanf:"auth"`
	Log        LogConfig        `koanf:"log"`
}

type HTTPConfig struct {
	Port string `koanf:"port"`
}

type StorageConfig struct {
	Backend       string `koanf:"backend"`
	SQLitePath    string `koanf:"sqlite_path"`
	RedisURL      string `koanf:"redis_url"`
	RedisPoolSize int    `koanf:"redis_pool_size"`
	DatabaseURL   string `koanf:"database_url"`
	DBPoolSize    int    `koanf:"db_pool_size"`
	RemindersKey  string `koanf:"reminders_key"`
	PushTokenKey  string `koanf:"push_token_key"`
	ShadowKey     string `koanf:"shadow_key"` // scheduled set for query-less schedulers
}

type ReconcilerConfig struct {
	LeadTime      time.Duration `koanf:"lead_time"`
	Interval      time.Duration `koanf:"interval"` // periodic re-evaluation, 0 disables
	Concurrency   int           `koanf:"concurrency"`
	DueSoonWindow time.Duration `koanf:"due_soon_window"` // start-up digest horizon, 0 disables
}

type SchedulerConfig struct {
	Backend     string        `koanf:"backend"`
	CheckPeriod time.Duration `koanf:"check_period"`
	MaxPending  int           `koanf:"max_pending"` // local scheduler capacity, 0 is unbounded
}

type KafkaConfig struct {
	Brokers      []string `koanf:"brokers"`
	TriggerTopic string   `koanf:"trigger_topic"`
	PushTopic    string   `koanf:"push_topic"`
	Partitions   int      `koanf:"partitions"`
	GroupID      string   `koanf:"group_id"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

// Load builds the config from defaults, an optional YAML file and the
// environment. A missing file at configPath is not an error.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	// CHRONOLOOM_STORAGE__REDIS_URL -> storage.redis_url
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// Plain variable names kept for existing deployments.
	legacy := map[string]string{
		"HTTP_PORT":    "http.port",
		"DATABASE_URL": "storage.database_url",
		"REDIS_URL":    "storage.redis_url",
		"JWT_SECRET":   "auth.jwt_secret",
	}
	for name, key := range legacy {
		if v := os.Getenv(name); v != "" {
			k.Set(key, v)
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		k.Set("kafka.brokers", splitList(v))
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(cfg.Kafka.Brokers) == 1 {
		cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers[0])
	}
	return &cfg, nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendSQLite, BackendRedis:
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage.database_url is required for the postgres backend (set DATABASE_URL)")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s (supported: %s, %s, %s, %s)",
			c.Storage.Backend, BackendMemory, BackendSQLite, BackendRedis, BackendPostgres)
	}

	switch c.Scheduler.Backend {
	case SchedulerLocal:
	case SchedulerKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is required for the kafka scheduler")
		}
	default:
		return fmt.Errorf("unknown scheduler backend: %s (supported: %s, %s)",
			c.Scheduler.Backend, SchedulerLocal, SchedulerKafka)
	}

	if c.Reconciler.LeadTime < 0 {
		return fmt.Errorf("reconciler.lead_time must not be negative")
	}
	if c.Reconciler.Interval < 0 {
		return fmt.Errorf("reconciler.interval must not be negative")
	}
	if c.Reconciler.DueSoonWindow < 0 {
		return fmt.Errorf("reconciler.due_soon_window must not be negative")
	}
	if c.Reconciler.Concurrency <= 0 {
		return fmt.Errorf("reconciler.concurrency must be positive")
	}
	if c.Scheduler.CheckPeriod <= 0 {
		return fmt.Errorf("scheduler.check_period must be positive")
	}
	if c.Scheduler.MaxPending < 0 {
		return fmt.Errorf("scheduler.max_pending must not be negative")
	}
	if c.Storage.RemindersKey == "" || c.Storage.PushTokenKey == "" || c.Storage.ShadowKey == "" {
		return fmt.Errorf("storage keys must not be empty")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
