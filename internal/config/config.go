package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scraper   ScraperConfig
	Firecrawl FirecrawlConfig
	Cron      CronConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int32
}

type RedisConfig struct {
	// Addr empty disables the dedup cache; the service falls back to
	// database-only duplicate checks.
	Addr     string
	Password string
	DB       int
}

type ScraperConfig struct {
	UserAgent        string
	RequestTimeout   time.Duration
	MaxRetries       int
	RateLimitMin     time.Duration
	RateLimitMax     time.Duration
	DefaultMaxItems  int
	CollectionTarget int
	PollInterval     time.Duration
	Collections      []string
}

type FirecrawlConfig struct {
	BaseURL string
	APIKey  string
}

type CronConfig struct {
	Secret string
}

// defaultCollections is the known collection list the auto-scrape
// orchestrator walks when none is configured.
var defaultCollections = []string{
	"https://eu.stussy.com/collections/new-arrivals",
	"https://eu.stussy.com/collections/tees",
	"https://eu.stussy.com/collections/sweats",
	"https://eu.stussy.com/collections/tops-shirts",
	"https://eu.stussy.com/collections/knits",
	"https://eu.stussy.com/collections/outerwear",
	"https://eu.stussy.com/collections/pants",
	"https://eu.stussy.com/collections/shorts",
	"https://eu.stussy.com/collections/hats",
	"https://eu.stussy.com/collections/bags",
	"https://eu.stussy.com/collections/accessories",
	"https://eu.stussy.com/collections/womens",
}

func Load() (*Config, error) {
	// Best effort; env vars win over the .env file.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "catalog"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Scraper: ScraperConfig{
			UserAgent:        getEnv("SCRAPER_USER_AGENT", ""),
			RequestTimeout:   time.Duration(getEnvInt("SCRAPER_TIMEOUT_SECONDS", 30)) * time.Second,
			MaxRetries:       getEnvInt("SCRAPER_MAX_RETRIES", 3),
			RateLimitMin:     time.Duration(getEnvInt("SCRAPER_RATE_LIMIT_MIN_MS", 500)) * time.Millisecond,
			RateLimitMax:     time.Duration(getEnvInt("SCRAPER_RATE_LIMIT_MAX_MS", 2000)) * time.Millisecond,
			DefaultMaxItems:  getEnvInt("SCRAPER_DEFAULT_MAX_ITEMS", 10),
			CollectionTarget: getEnvInt("SCRAPER_COLLECTION_TARGET", 20),
			PollInterval:     time.Duration(getEnvInt("SCRAPER_POLL_INTERVAL_MS", 2000)) * time.Millisecond,
			Collections:      getEnvList("SCRAPER_COLLECTIONS", defaultCollections),
		},
		Firecrawl: FirecrawlConfig{
			BaseURL: getEnv("FIRECRAWL_BASE_URL", "https://api.firecrawl.dev"),
			APIKey:  getEnv("FIRECRAWL_API_KEY", ""),
		},
		Cron: CronConfig{
			Secret: getEnv("CRON_SECRET", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}

	if len(c.Scraper.Collections) == 0 {
		return fmt.Errorf("at least one collection URL is required")
	}

	if c.Scraper.RateLimitMax < c.Scraper.RateLimitMin {
		return fmt.Errorf("rate limit max must be >= min")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		var out []string
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
