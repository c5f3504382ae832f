package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures the runtime configuration for the application.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Logging       LoggingConfig
	Session       SessionConfig
	OpenFoodFacts OpenFoodFactsConfig
	Cache         CacheConfig
}

// ServerConfig configures the HTTP server runtime behavior.
type ServerConfig struct {
	Addr string
}

// DatabaseConfig contains the database connection settings.
type DatabaseConfig struct {
	URL             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	UseMock         bool
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string
	Format string
}

// SessionConfig controls the cookie session that holds product drafts.
type SessionConfig struct {
	Lifetime     time.Duration
	CookieName   string
	CookieDomain string
	CookieSecure bool
}

// OpenFoodFactsConfig configures the upstream product lookup client.
type OpenFoodFactsConfig struct {
	BaseURL       string
	APIVersion    string
	Timeout       time.Duration
	UserAgent     string
	RatePerMinute int
	RateBurst     int
}

// CacheConfig enables the optional Redis product cache.
type CacheConfig struct {
	RedisURL string
	TTL      time.Duration
}

// Load inspects the environment and builds a Config value.
func Load() (Config, error) {
	cfg := Config{}

	cfg.Server = ServerConfig{
		Addr: firstNonEmpty(
			os.Getenv("SERVER_ADDR"),
			os.Getenv("ADDR"),
			":8080",
		),
	}

	cfg.Database = DatabaseConfig{
		URL: firstNonEmpty(
			os.Getenv("DATABASE_URL"),
			os.Getenv("DB_URL"),
			"",
		),
		MaxIdleConns:    parseIntWithDefault(os.Getenv("DATABASE_MAX_IDLE_CONNS"), 0),
		MaxOpenConns:    parseIntWithDefault(os.Getenv("DATABASE_MAX_OPEN_CONNS"), 0),
		ConnMaxLifetime: parseDurationWithDefault(os.Getenv("DATABASE_CONN_MAX_LIFETIME"), 0),
		ConnMaxIdleTime: parseDurationWithDefault(os.Getenv("DATABASE_CONN_MAX_IDLE_TIME"), 0),
		UseMock:         parseBoolWithDefault(os.Getenv("DATABASE_USE_MOCK"), false),
	}

	cfg.Logging = LoggingConfig{
		Level:  firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),
		Format: strings.ToLower(firstNonEmpty(os.Getenv("LOG_FORMAT"), "text")),
	}

	cfg.Session = SessionConfig{
		Lifetime:     parseDurationWithDefault(os.Getenv("SESSION_LIFETIME"), 12*time.Hour),
		CookieName:   firstNonEmpty(os.Getenv("SESSION_COOKIE_NAME"), "nutrilab_session"),
		CookieDomain: strings.TrimSpace(os.Getenv("SESSION_COOKIE_DOMAIN")),
		CookieSecure: parseBoolWithDefault(os.Getenv("SESSION_COOKIE_SECURE"), true),
	}

	cfg.OpenFoodFacts = OpenFoodFactsConfig{
		BaseURL:       firstNonEmpty(os.Getenv("OFF_BASE_URL"), "https://world.openfoodfacts.org"),
		APIVersion:    strings.ToLower(firstNonEmpty(os.Getenv("OFF_API_VERSION"), "v3")),
		Timeout:       parseDurationWithDefault(os.Getenv("OFF_TIMEOUT"), 5*time.Second),
		UserAgent:     firstNonEmpty(os.Getenv("OFF_USER_AGENT"), "nutrilab/1.0"),
		RatePerMinute: parseIntWithDefault(os.Getenv("OFF_RATE_PER_MINUTE"), 100),
		RateBurst:     parseIntWithDefault(os.Getenv("OFF_RATE_BURST"), 5),
	}

	cfg.Cache = CacheConfig{
		RedisURL: strings.TrimSpace(os.Getenv("REDIS_URL")),
		TTL:      parseDurationWithDefault(os.Getenv("CACHE_TTL"), 24*time.Hour),
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return Config{}, fmt.Errorf("server address must not be empty")
	}

	switch cfg.OpenFoodFacts.APIVersion {
	case "v2", "v3":
	default:
		return Config{}, fmt.Errorf("unsupported open food facts api version: %s", cfg.OpenFoodFacts.APIVersion)
	}

	if cfg.OpenFoodFacts.RatePerMinute < 0 {
		return Config{}, fmt.Errorf("open food facts rate must not be negative")
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func parseIntWithDefault(value string, def int) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func parseDurationWithDefault(value string, def time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func parseBoolWithDefault(value string, def bool) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}
