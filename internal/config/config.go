package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultEncryptionKey is the development fallback for token encryption.
// Startup logs a warning when it is still in use.
const DefaultEncryptionKey = "vidsage-dev-insecure-key"

// Config contains runtime configuration values.
type Config struct {
	Environment          string
	HTTPPort             string
	DatabaseURL          string
	GoogleClientID       string
	GoogleClientSecret   string
	GoogleRedirectURL    string
	FrontendURL          string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	EncryptionKey        string
	StateSigningSecret   string
	StateTTL             time.Duration
	TokenRefreshBuffer   time.Duration
	TokenCleanupInterval time.Duration
	ServiceName          string
	RateLimitRPM         int
	TelemetryEndpoint    string
	TelemetryInsecure    bool
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults.
// Google client credentials and the database URL are mandatory: the process
// refuses to start without them.
func Load() (Config, error) {
	_ = godotenv.Load()

	clientID := strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID"))
	if clientID == "" {
		return Config{}, fmt.Errorf("GOOGLE_CLIENT_ID is required")
	}
	clientSecret := strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET"))
	if clientSecret == "" {
		return Config{}, fmt.Errorf("GOOGLE_CLIENT_SECRET is required")
	}
	redirectURL := strings.TrimSpace(os.Getenv("GOOGLE_REDIRECT_URL"))
	if redirectURL == "" {
		return Config{}, fmt.Errorf("GOOGLE_REDIRECT_URL is required")
	}

	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		GoogleClientID:       clientID,
		GoogleClientSecret:   clientSecret,
		GoogleRedirectURL:    redirectURL,
		FrontendURL:          strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		RedisAddr:            getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		EncryptionKey:        getEnv("TOKEN_ENCRYPTION_KEY", DefaultEncryptionKey),
		StateSigningSecret:   os.Getenv("STATE_SIGNING_SECRET"),
		StateTTL:             getDuration("STATE_TTL", 10*time.Minute),
		TokenRefreshBuffer:   getDuration("TOKEN_REFRESH_BUFFER", 5*time.Minute),
		TokenCleanupInterval: getDuration("TOKEN_CLEANUP_INTERVAL", time.Hour),
		ServiceName:          getEnv("SERVICE_NAME", "vidsage-google"),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "DELETE", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	if strings.TrimSpace(cfg.StateSigningSecret) == "" {
		cfg.StateSigningSecret = cfg.EncryptionKey
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
