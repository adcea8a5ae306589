// Package config reads process configuration from the environment so main
// stays lean. Every value has a development default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	Environment   string
	InternalToken string
	ShutdownGrace time.Duration
}

type Auth struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
}

// Database is optional; an empty URL selects the in-memory stores.
type Database struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Bus struct {
	Driver            string // memory, kafka or nats
	Brokers           []string
	NATSURL           string
	ConsumerGroup     string
	ClientID          string
	Partitions        int32
	ReplicationFactor int16
}

type Relay struct {
	Enabled        bool
	Interval       time.Duration
	BatchSize      int
	Lease          time.Duration
	RedeliverAfter time.Duration
	Concurrency    int
	TargetSystem   string
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Recovery drives the sweep that finishes actions left EXECUTING by a
// crash. A zero Interval disables it.
type Recovery struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

type Approval struct {
	StoreDriver string // memory, redis or postgres
	TTL         time.Duration
	Retention   time.Duration
}

type Guardrail struct {
	FailClosed   bool
	RuleCacheTTL time.Duration
	ScopeTTL     time.Duration
	ScopeSize    int
}

type Config struct {
	Server         Server
	Auth           Auth
	Database       Database
	Redis          RedisConfig
	Bus            Bus
	Relay          Relay
	Recovery       Recovery
	Approval       Approval
	Guardrail      Guardrail
	PolicySeedFile string
	LogLevel       string
	LogFormat      string
}

// FromEnv builds a Config from environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		Server: Server{
			Addr:          envString("ACTIONGATE_ADDR", ":8080"),
			Environment:   envString("ENVIRONMENT", "local"),
			InternalToken: os.Getenv("INTERNAL_API_TOKEN"),
			ShutdownGrace: envDuration("SHUTDOWN_GRACE", 10*time.Second),
		},
		Auth: Auth{
			JWTSigningKey: envString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:        envString("JWT_ISSUER", "actiongate"),
			Audience:      envString("JWT_AUDIENCE", "actiongate-api"),
		},
		Database: Database{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
			AutoMigrate:  envBool("DATABASE_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Bus: Bus{
			Driver:            strings.ToLower(envString("BUS_DRIVER", "memory")),
			Brokers:           envList("KAFKA_BROKERS"),
			NATSURL:           envString("NATS_URL", "nats://127.0.0.1:4222"),
			ConsumerGroup:     envString("BUS_CONSUMER_GROUP", "actiongate"),
			ClientID:          envString("BUS_CLIENT_ID", "actiongate"),
			Partitions:        int32(envInt("KAFKA_PARTITIONS", 3)),
			ReplicationFactor: int16(envInt("KAFKA_REPLICATION_FACTOR", 1)),
		},
		Relay: Relay{
			Enabled:        envBool("RELAY_ENABLED", true),
			Interval:       envDuration("RELAY_INTERVAL", time.Second),
			BatchSize:      envInt("RELAY_BATCH_SIZE", 50),
			Lease:          envDuration("RELAY_LEASE", 30*time.Second),
			RedeliverAfter: envDuration("RELAY_REDELIVER_AFTER", 5*time.Minute),
			Concurrency:    envInt("RELAY_CONCURRENCY", 4),
			TargetSystem:   envString("INTEGRATION_TARGET", "erp"),
			MaxRetries:     envInt("OUTBOX_MAX_RETRIES", 5),
			BackoffInitial: envDuration("OUTBOX_BACKOFF_INITIAL", 2*time.Second),
			BackoffMax:     envDuration("OUTBOX_BACKOFF_MAX", 10*time.Minute),
		},
		Recovery: Recovery{
			Interval:   envDuration("ACTION_RECOVERY_INTERVAL", 30*time.Second),
			StaleAfter: envDuration("ACTION_RECOVERY_STALE_AFTER", 2*time.Minute),
			BatchSize:  envInt("ACTION_RECOVERY_BATCH_SIZE", 50),
		},
		Approval: Approval{
			StoreDriver: strings.ToLower(envString("APPROVAL_STORE", "")),
			TTL:         envDuration("APPROVAL_TTL", 72*time.Hour),
			Retention:   envDuration("APPROVAL_RETENTION", 30*24*time.Hour),
		},
		Guardrail: Guardrail{
			FailClosed:   envBool("GUARDRAIL_FAIL_CLOSED", false),
			RuleCacheTTL: envDuration("GUARDRAIL_RULE_CACHE_TTL", time.Minute),
			ScopeTTL:     envDuration("SCOPE_CACHE_TTL", 5*time.Minute),
			ScopeSize:    envInt("SCOPE_CACHE_SIZE", 4096),
		},
		PolicySeedFile: os.Getenv("POLICY_SEED_FILE"),
		LogLevel:       envString("LOG_LEVEL", "info"),
		LogFormat:      envString("LOG_FORMAT", "json"),
	}

	if cfg.Approval.StoreDriver == "" {
		cfg.Approval.StoreDriver = "memory"
		if cfg.Database.URL != "" {
			cfg.Approval.StoreDriver = "postgres"
		}
	}
	return cfg, cfg.Validate()
}

// Validate rejects combinations main cannot wire.
func (c Config) Validate() error {
	switch c.Bus.Driver {
	case "memory":
	case "kafka":
		if len(c.Bus.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for the kafka bus")
		}
	case "nats":
		if c.Bus.NATSURL == "" {
			return fmt.Errorf("NATS_URL is required for the nats bus")
		}
	default:
		return fmt.Errorf("unknown BUS_DRIVER %q", c.Bus.Driver)
	}
	switch c.Approval.StoreDriver {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis approval store")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres approval store")
		}
	default:
		return fmt.Errorf("unknown APPROVAL_STORE %q", c.Approval.StoreDriver)
	}
	if c.Environment() == "production" {
		if c.Auth.JWTSigningKey == "dev-secret-key-change-in-production" {
			return fmt.Errorf("JWT_SIGNING_KEY must be set in production")
		}
		if c.Server.InternalToken == "" {
			return fmt.Errorf("INTERNAL_API_TOKEN must be set in production")
		}
	}
	return nil
}

func (c Config) Environment() string { return c.Server.Environment }

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
