package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server settings
	ServerAddr   string
	BaseURL      string
	IsProduction bool

	// Session settings
	JWTSecret     string        // Signs the session JWT cookie
	SessionMaxAge time.Duration // Session JWT lifetime
	SessionSecret string        // Signs the short-lived flow cookie (OAuth state, CSRF)

	// Linking state settings
	StateSecret     string        // Signs the Gmail linking state token
	StateExpiration time.Duration // Linking state lifetime

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string

	// Google OAuth (federated sign-in and Gmail linking share one app)
	GoogleClientID     string
	GoogleClientSecret string

	// GitHub OAuth (federated sign-in)
	GitHubClientID     string
	GitHubClientSecret string

	// Gmail linking
	GmailScopes           []string
	TokenFallbackLifetime time.Duration // Used when the provider omits an expiry

	// OAuth HTTP client settings
	OAuthTimeout            time.Duration
	OAuthInsecureSkipVerify bool

	// Metrics
	MetricsEnabled             bool
	MetricsToken               string
	MetricsGaugeUpdateEnabled  bool
	MetricsGaugeUpdateInterval time.Duration

	// Cache
	CacheType    string // "memory" or "redis"
	UserCacheTTL time.Duration

	// Redis (cache and rate limiting)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Rate limiting
	EnableRateLimit          bool
	RateLimitStore           string // "memory" or "redis"
	RateLimitCleanupInterval time.Duration
	SignInRateLimit          int
	SignUpRateLimit          int
	RequestAccessRateLimit   int
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	// Determine database driver and DSN
	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", getEnv("DATABASE_PATH", "flowmate.db"))
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	return &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":8080"),
		BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
		IsProduction: getEnv("ENV", "development") == "production",

		JWTSecret:     getEnv("JWT_SECRET", "your-256-bit-secret-change-in-production"),
		SessionMaxAge: getEnvDuration("SESSION_MAX_AGE", 24*time.Hour),
		SessionSecret: getEnv("SESSION_SECRET", "session-secret-change-in-production"),

		StateSecret:     getEnv("STATE_SECRET", getEnv("JWT_SECRET", "your-256-bit-secret-change-in-production")),
		StateExpiration: getEnvDuration("STATE_EXPIRATION", 10*time.Minute),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),

		GitHubClientID:     getEnv("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),

		GmailScopes: getEnvSlice("GMAIL_SCOPES", []string{
			"https://www.googleapis.com/auth/gmail.readonly",
			"https://www.googleapis.com/auth/gmail.modify",
		}),
		TokenFallbackLifetime: getEnvDuration("TOKEN_FALLBACK_LIFETIME", time.Hour),

		OAuthTimeout:            getEnvDuration("OAUTH_TIMEOUT", 15*time.Second),
		OAuthInsecureSkipVerify: getEnvBool("OAUTH_INSECURE_SKIP_VERIFY", false),

		MetricsEnabled:             getEnvBool("METRICS_ENABLED", false),
		MetricsToken:               getEnv("METRICS_TOKEN", ""),
		MetricsGaugeUpdateEnabled:  getEnvBool("METRICS_GAUGE_UPDATE_ENABLED", true),
		MetricsGaugeUpdateInterval: getEnvDuration("METRICS_GAUGE_UPDATE_INTERVAL", time.Minute),

		CacheType:    getEnv("CACHE_TYPE", "memory"),
		UserCacheTTL: getEnvDuration("USER_CACHE_TTL", 5*time.Minute),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		EnableRateLimit:          getEnvBool("ENABLE_RATE_LIMIT", true),
		RateLimitStore:           getEnv("RATE_LIMIT_STORE", "memory"),
		RateLimitCleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		SignInRateLimit:          getEnvInt("SIGNIN_RATE_LIMIT", 10),
		SignUpRateLimit:          getEnvInt("SIGNUP_RATE_LIMIT", 5),
		RequestAccessRateLimit:   getEnvInt("REQUEST_ACCESS_RATE_LIMIT", 20),
	}
}

// GmailRedirectURL returns the callback URL registered with Google
func (c *Config) GmailRedirectURL() string {
	return c.BaseURL + "/api/gmail/callback"
}

// FederatedRedirectURL returns the callback URL for a federated sign-in provider
func (c *Config) FederatedRedirectURL(provider string) string {
	return c.BaseURL + "/auth/callback/" + provider
}

// Validate checks that required configuration is present
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("BASE_URL is required")
	}
	if c.DatabaseDriver != "sqlite" && c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required for driver %q", c.DatabaseDriver)
	}
	if c.IsProduction {
		if c.JWTSecret == "your-256-bit-secret-change-in-production" {
			return errors.New("JWT_SECRET must be changed in production")
		}
		if c.SessionSecret == "session-secret-change-in-production" {
			return errors.New("SESSION_SECRET must be changed in production")
		}
	}
	switch c.CacheType {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid CACHE_TYPE: %s (must be: memory, redis)", c.CacheType)
	}
	switch c.RateLimitStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid RATE_LIMIT_STORE: %s (must be: memory, redis)", c.RateLimitStore)
	}
	return nil
}

// GmailConfigured reports whether the Gmail linking flow can be used
func (c *Config) GmailConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var parts []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}
