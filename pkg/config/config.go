package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/FACorreiaa/movement-ingest/pkg/money"
)

// Config holds all application configuration
type Config struct {
	Database      DatabaseConfig
	Redis         RedisConfig
	Import        ImportConfig
	Notify        NotifyConfig
	Archive       ArchiveConfig
	Observability ObservabilityConfig
	Log           LogConfig
}

// DatabaseConfig takes DATABASE_URL when set and falls back to the
// POSTGRES_* parts otherwise.
type DatabaseConfig struct {
	URL      string `env:"DATABASE_URL"`
	Host     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT"     envDefault:"5432"`
	User     string `env:"POSTGRES_USER"     envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Database string `env:"POSTGRES_DB"       envDefault:"movements"`
	SSLMode  string `env:"POSTGRES_SSLMODE"  envDefault:"disable"`

	MaxConns int `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	MinConns int `env:"DATABASE_MIN_CONNS" envDefault:"1"`
}

type RedisConfig struct {
	// URL is optional; without it tenant lookups are not cached.
	URL            string        `env:"REDIS_URL"`
	TenantCacheTTL time.Duration `env:"TENANT_CACHE_TTL" envDefault:"10m"`
}

type ImportConfig struct {
	HomeCurrency           string        `env:"HOME_CURRENCY"            envDefault:"ARS"`
	DuplicateLookupTimeout time.Duration `env:"DUPLICATE_LOOKUP_TIMEOUT" envDefault:"5s"`
	// OrganizationID pins every user to one organization, skipping the
	// membership lookup. Zero disables it.
	OrganizationID int64 `env:"ORGANIZATION_ID" envDefault:"0"`
}

type NotifyConfig struct {
	// BaseURL is optional; without it events are only logged.
	BaseURL     string        `env:"NOTIFY_BASE_URL"`
	FallbackURL string        `env:"NOTIFY_FALLBACK_URL" envDefault:"http://localhost:8084"`
	Timeout     time.Duration `env:"NOTIFY_TIMEOUT"      envDefault:"5s"`
}

// ArchiveConfig locates the archive of uploaded source files.
type ArchiveConfig struct {
	Path string `env:"ARCHIVE_PATH" envDefault:"./uploads"`
}

// ObservabilityConfig controls the metrics textfile written when a command
// finishes, in the node exporter textfile format.
type ObservabilityConfig struct {
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"false"`
	MetricsFile    string `env:"METRICS_FILE"    envDefault:"importer.prom"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; variables already set in
// the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return parse(env.Options{})
}

// FromMap reads configuration from the given variables only.
func FromMap(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.Import.HomeCurrency = strings.ToUpper(strings.TrimSpace(c.Import.HomeCurrency))
	if !money.IsKnownCurrency(c.Import.HomeCurrency) {
		return fmt.Errorf("HOME_CURRENCY %q is not an ISO 4217 code", c.Import.HomeCurrency)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}
	if c.Import.OrganizationID < 0 {
		return errors.New("ORGANIZATION_ID must not be negative")
	}
	return nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// SlogLevel parses Level. Accepted values are debug, info, warn and error.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}
