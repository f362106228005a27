package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds runtime configuration for the mail administration API.
type Config struct {
	Addr                    string   `env:"ADDR,default=:8080"`
	DBDSN                   string   `env:"DB_DSN"`
	StoreDriver             string   `env:"STORE_DRIVER,default=postgres"`
	AllowedOrigins          []string `env:"CORS_ALLOWED_ORIGINS"`
	RateLimitPerMinute      int      `env:"RATE_LIMIT_PER_MINUTE,default=100"`
	LoginRateLimitPerMinute int      `env:"LOGIN_RATE_LIMIT_PER_MINUTE,default=10"`
	OTLPEndpoint            string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	NATSURL                 string   `env:"NATS_URL"`
	AuditSubject            string   `env:"AUDIT_SUBJECT,default=mailadmin.audit.appended"`
	LogLevel                string   `env:"LOG_LEVEL,default=info"`
	LogFormat               string   `env:"LOG_FORMAT,default=json"`
	SeedAdmin               bool     `env:"SEED_ADMIN,default=true"`
	SeedAdminEmail          string   `env:"SEED_ADMIN_EMAIL,default=a@a.pl"`
	SeedAdminPassword       string   `env:"SEED_ADMIN_PASSWORD,default=admin"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required when STORE_DRIVER=%s", DriverPostgres)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q: want %s or %s", c.StoreDriver, DriverPostgres, DriverMemory)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q: want json or console", c.LogFormat)
	}
	return nil
}

// Level returns the parsed LOG_LEVEL.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
