package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration. It is built once at process start
// and injected into every component; nothing else reads the environment.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	LogLevel string

	// MaxOrgLimit caps the number of organizations a user can belong to.
	MaxOrgLimit int

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string

	Keycloak KeycloakConfig
	Email    EmailConfig
	Storage  StorageConfig

	// SecretKey seals credential material at rest (client secrets, passwords).
	SecretKey string

	// RPCMode selects how the gateway reaches backend workflows:
	// "redis" (request/reply over the broker) or "local" (in-process dispatch).
	RPCMode string

	RateLimit RateLimitConfig

	MetricsPush MetricsPushConfig
}

// KeycloakConfig describes the external identity provider.
type KeycloakConfig struct {
	Domain string
	Realm  string

	// Environment-scoped management client, used when the principal is a
	// platform admin.
	ManagementClientID     string
	ManagementClientSecret string
}

// EmailConfig configures the SMTP provider.
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// StorageConfig selects where uploaded images (org logos) are written.
type StorageConfig struct {
	Backend  string // "local" or "s3"
	LocalDir string
	BaseURL  string
}

// RateLimitConfig tunes the per-caller token bucket on the gateway.
type RateLimitConfig struct {
	Enabled bool
	Rate    float64
	Burst   int
}

// MetricsPushConfig configures optional remote-write of platform accounting
// metrics to an aggregation endpoint.
type MetricsPushConfig struct {
	Enabled   bool
	Endpoint  string
	AuthToken string
}

// Load loads configuration from environment variables and an optional .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "confirmd-platform"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":5000"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		LogLevel:     getenv("LOG_LEVEL", "info"),

		MaxOrgLimit: getenvInt("MAX_ORG_LIMIT", 10),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "confirmd"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		Keycloak: KeycloakConfig{
			Domain:                 strings.TrimRight(getenv("KEYCLOAK_DOMAIN", "http://localhost:8080"), "/") + "/",
			Realm:                  getenv("KEYCLOAK_REALM", "confirmd"),
			ManagementClientID:     strings.TrimSpace(getenv("KEYCLOAK_MANAGEMENT_CLIENT_ID", "")),
			ManagementClientSecret: strings.TrimSpace(getenv("KEYCLOAK_MANAGEMENT_CLIENT_SECRET", "")),
		},

		Email: EmailConfig{
			SMTPHost:     getenv("SMTP_HOST", "localhost"),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "no-reply@confirmd.io"),
		},

		Storage: StorageConfig{
			Backend:  getenv("STORAGE_BACKEND", "local"),
			LocalDir: getenv("STORAGE_LOCAL_DIR", "uploads"),
			BaseURL:  getenv("STORAGE_BASE_URL", "/uploads"),
		},

		SecretKey: strings.TrimSpace(getenv("PLATFORM_SECRET_KEY", "")),

		RPCMode: strings.ToLower(getenv("RPC_MODE", "local")),

		RateLimit: RateLimitConfig{
			Enabled: getenvBool("RATE_LIMIT_ENABLED", false),
			Rate:    getenvFloat("RATE_LIMIT_RATE", 10),
			Burst:   getenvInt("RATE_LIMIT_BURST", 20),
		},

		MetricsPush: MetricsPushConfig{
			Enabled:   getenvBool("METRICS_PUSH_ENABLED", false),
			Endpoint:  strings.TrimSpace(getenv("METRICS_PUSH_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(getenv("METRICS_PUSH_AUTH_TOKEN", "")),
		},
	}
}

// Module provides the process configuration.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewPlatformConfigHolder),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
