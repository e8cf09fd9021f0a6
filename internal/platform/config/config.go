package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"civreg/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string        `env:"CIVREG_ADDR" envDefault:":8080"`
	Environment   string        `env:"CIVREG_ENV" envDefault:"development"`
	LogLevel      string        `env:"CIVREG_LOG_LEVEL" envDefault:"info"`
	Storage       string        `env:"CIVREG_STORAGE" envDefault:"postgres"`
	DatabaseURL   string        `env:"DATABASE_URL"`
	TxTimeout     time.Duration `env:"TX_TIMEOUT" envDefault:"5s"`
	JWTSigningKey string        `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer     string        `env:"JWT_ISSUER" envDefault:"civreg"`

	Redis     RedisConfig
	Kafka     KafkaConfig
	Dashboard DashboardConfig

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// RedisConfig configures the optional dashboard cache.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig configures the audit outbox relay. Empty brokers disable it.
type KafkaConfig struct {
	Brokers      []string      `env:"KAFKA_BROKERS" envSeparator:","`
	AuditTopic   string        `env:"KAFKA_AUDIT_TOPIC" envDefault:"civreg.audit"`
	PollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	BatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
}

type DashboardConfig struct {
	CacheTTL time.Duration `env:"DASHBOARD_CACHE_TTL" envDefault:"1m"`
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Kafka.Brokers = strings.DedupeAndTrim(cfg.Kafka.Brokers)
	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (c Server) validate() error {
	switch c.Storage {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when CIVREG_STORAGE=postgres")
		}
	default:
		return fmt.Errorf("unknown CIVREG_STORAGE %q", c.Storage)
	}
	if c.IsProduction() && c.JWTSigningKey == "dev-secret-key-change-in-production" {
		return fmt.Errorf("JWT_SIGNING_KEY must be set in production")
	}
	return nil
}

func (c Server) IsProduction() bool {
	return c.Environment == "production"
}
