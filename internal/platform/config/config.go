package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration.
type Config struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string

	PostgresURL string
	Redis       RedisConfig

	KafkaBrokers    []string
	AuditTopic      string
	SummaryCacheTTL time.Duration

	// LiveDisplayDriver cadence.
	DisplayTick       time.Duration
	ReconcileInterval time.Duration
}

// RedisConfig holds Redis connection tuning.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
// Postgres, Redis, and Kafka are all optional: an unset URL selects the
// in-memory fallback for that concern.
func FromEnv() Config {
	addr := os.Getenv("TIMEKEEP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	auditTopic := os.Getenv("AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "timekeep.audit"
	}

	return Config{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		JWTIssuer:     "timekeep",
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaBrokers:      brokers,
		AuditTopic:        auditTopic,
		SummaryCacheTTL:   durationEnv("SUMMARY_CACHE_TTL", 30*time.Second),
		DisplayTick:       durationEnv("DISPLAY_TICK", time.Second),
		ReconcileInterval: durationEnv("RECONCILE_INTERVAL", 30*time.Second),
	}
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
