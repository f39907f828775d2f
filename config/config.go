package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// CacheBackend is "memory" or "postgres".
	CacheBackend       string
	CacheTTL           time.Duration
	CacheSweepInterval time.Duration

	RateLimitMaxRequests int
	RateLimitWindow      time.Duration
	RateLimitDelay       time.Duration

	NavTimeout      time.Duration
	SettleDelay     time.Duration
	MaxRetries      int
	DefaultMaxPages int
	ChromeBin       string
	Headless        bool
	UserAgent       string

	HTTPPort    string
	CORSOrigins []string

	ImageFetchRPS     float64
	ImageFetchTimeout time.Duration

	LogLevel      string
	LogFormat     string
	FluentEnabled bool
	FluentHost    string
	FluentPort    int
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}
	return FromEnv()
}

// LoadFile reads settings from the given .env file, then the environment.
func LoadFile(path string) *Config {
	if err := godotenv.Load(path); err != nil {
		log.Printf("[config] Could not read %s: %v", path, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() *Config {
	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "propscout"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		CacheBackend:       strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		CacheTTL:           getEnvDuration("CACHE_TTL", 30*time.Minute),
		CacheSweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", 10*time.Minute),

		RateLimitMaxRequests: getEnvInt("RATE_LIMIT_MAX_REQUESTS", 8),
		RateLimitWindow:      getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitDelay:       getEnvDuration("RATE_LIMIT_DELAY", 3*time.Second),

		NavTimeout:      getEnvDuration("NAV_TIMEOUT", 60*time.Second),
		SettleDelay:     getEnvDuration("SETTLE_DELAY", 3*time.Second),
		MaxRetries:      getEnvInt("MAX_RETRIES", 2),
		DefaultMaxPages: getEnvInt("DEFAULT_MAX_PAGES", 3),
		ChromeBin:       getEnv("CHROME_BIN", ""),
		Headless:        getEnvBool("HEADLESS", true),
		UserAgent: getEnv("USER_AGENT",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),

		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),

		ImageFetchRPS:     getEnvFloat("IMAGE_FETCH_RPS", 2),
		ImageFetchTimeout: getEnvDuration("IMAGE_FETCH_TIMEOUT", 15*time.Second),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     strings.ToLower(getEnv("LOG_FORMAT", "text")),
		FluentEnabled: getEnvBool("FLUENT_ENABLED", false),
		FluentHost:    getEnv("FLUENT_HOST", "localhost"),
		FluentPort:    getEnvInt("FLUENT_PORT", 24224),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") or bare milliseconds ("60000").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
