package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	NATS         NATSConfig
	Dashboard    DashboardConfig
	Cache        CacheConfig
	Seed         SeedConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// NATSConfig controls forwarding of ticket events to NATS. An empty URL
// disables forwarding.
type NATSConfig struct {
	URL           string
	ClientName    string
	SubjectPrefix string
}

// DashboardConfig tunes dashboard paging.
type DashboardConfig struct {
	PageSize    int
	MaxPageSize int
}

// CacheConfig tunes Redis backed caches.
type CacheConfig struct {
	CategoryTTLSeconds int
}

// SeedConfig drives first-start bootstrap data.
type SeedConfig struct {
	AdminUsername     string
	AdminEmail        string
	AdminPassword     string
	DefaultCategories bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "quickdesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		NATS: NATSConfig{
			URL:           os.Getenv("NATS_URL"),
			ClientName:    getEnv("NATS_CLIENT_NAME", "quickdesk"),
			SubjectPrefix: strings.TrimSuffix(getEnv("NATS_SUBJECT_PREFIX", "quickdesk.tickets"), "."),
		},
		Dashboard: DashboardConfig{
			PageSize:    getEnvAsInt("DASHBOARD_PAGE_SIZE", 20),
			MaxPageSize: getEnvAsInt("DASHBOARD_MAX_PAGE_SIZE", 100),
		},
		Cache: CacheConfig{
			CategoryTTLSeconds: getEnvAsInt("CATEGORY_CACHE_TTL_SECONDS", 300),
		},
		Seed: SeedConfig{
			AdminUsername:     getEnv("SEED_ADMIN_USERNAME", "admin"),
			AdminEmail:        getEnv("SEED_ADMIN_EMAIL", "admin@quickdesk.local"),
			AdminPassword:     os.Getenv("SEED_ADMIN_PASSWORD"),
			DefaultCategories: getEnvAsBool("SEED_DEFAULT_CATEGORIES", true),
		},
	}

	if cfg.Dashboard.PageSize <= 0 {
		cfg.Dashboard.PageSize = 20
	}
	if cfg.Dashboard.MaxPageSize < cfg.Dashboard.PageSize {
		cfg.Dashboard.MaxPageSize = cfg.Dashboard.PageSize
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// CategoryTTL returns how long the category list stays cached.
func (c CacheConfig) CategoryTTL() time.Duration {
	if c.CategoryTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.CategoryTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
