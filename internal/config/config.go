package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	JWTSecret               string
	JWTAccessTTL            time.Duration
	CORSOrigins             []string
	RateLimitRPM            int
	AuthRateLimitRPM        int
	DeletionRateLimitRPM    int
	OperatorsFile           string
	PlatformBaseURL         string
	PlatformToken           string
	PlatformTimeout         time.Duration
	Resources               []string
	UndoWindow              int
	UndoTick                time.Duration
	PollInterval            time.Duration
	NameCollation           string
	DatabaseURL             string
	DBMaxConns              int32
	DBMinConns              int32
	LogLevel                string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 45*time.Second),
		JWTSecret:               strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTAccessTTL:            getDuration("JWT_ACCESS_TTL", 8*time.Hour),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 300),
		AuthRateLimitRPM:        getInt("AUTH_RATE_LIMIT_RPM", 10),
		DeletionRateLimitRPM:    getInt("DELETION_RATE_LIMIT_RPM", 30),
		OperatorsFile:           getEnv("OPERATORS_FILE", "./state/operators.yaml"),
		PlatformBaseURL:         strings.TrimSpace(os.Getenv("PLATFORM_BASE_URL")),
		PlatformToken:           strings.TrimSpace(os.Getenv("PLATFORM_TOKEN")),
		PlatformTimeout:         getDuration("PLATFORM_TIMEOUT", 15*time.Second),
		Resources:               splitCSV(getEnv("DESK_RESOURCES", "agents,escorts")),
		UndoWindow:              getInt("UNDO_WINDOW", 20),
		UndoTick:                getDuration("UNDO_TICK", time.Second),
		PollInterval:            getDuration("POLL_INTERVAL", 30*time.Second),
		NameCollation:           getEnv("NAME_COLLATION", "en"),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:              int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:              int32(getInt("DB_MIN_CONNS", 1)),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if strings.TrimSpace(c.OperatorsFile) == "" {
		return fmt.Errorf("OPERATORS_FILE cannot be empty")
	}

	if c.PlatformBaseURL == "" {
		return fmt.Errorf("PLATFORM_BASE_URL is required")
	}
	if parsed, err := url.Parse(c.PlatformBaseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("PLATFORM_BASE_URL must be an absolute URL")
	}

	if c.PlatformTimeout <= 0 {
		return fmt.Errorf("PLATFORM_TIMEOUT must be positive")
	}

	// finalize runs a platform delete and a list refresh inside one request
	if c.RequestTimeout <= 2*c.PlatformTimeout {
		return fmt.Errorf("REQUEST_TIMEOUT (%s) must exceed twice PLATFORM_TIMEOUT (%s)", c.RequestTimeout, c.PlatformTimeout)
	}
	if c.ServerWriteTimeout > 0 && c.ServerWriteTimeout <= c.RequestTimeout {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT (%s) must exceed REQUEST_TIMEOUT (%s)", c.ServerWriteTimeout, c.RequestTimeout)
	}

	if len(c.Resources) == 0 {
		return fmt.Errorf("DESK_RESOURCES must name at least one list")
	}

	if c.UndoWindow <= 0 {
		return fmt.Errorf("UNDO_WINDOW must be positive")
	}

	if c.UndoTick <= 0 {
		return fmt.Errorf("UNDO_TICK must be positive")
	}

	if c.PollInterval < 0 {
		return fmt.Errorf("POLL_INTERVAL cannot be negative")
	}

	if _, err := language.Parse(c.NameCollation); err != nil {
		return fmt.Errorf("NAME_COLLATION is not a valid language tag: %w", err)
	}

	if c.DatabaseURL != "" && (c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns) {
		return fmt.Errorf("DB_MAX_CONNS/DB_MIN_CONNS are inconsistent")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.ToLower(strings.TrimSpace(part))
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
