package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	strutil "allergystats/pkg/platform/strings"
)

// Feed sources understood by FEED_SOURCE.
const (
	FeedSourceHTTP     = "http"
	FeedSourcePostgres = "postgres"
)

// Server captures process-level configuration.
type Server struct {
	Addr               string
	LogLevel           string
	AllowedOrigins     []string
	StatsMode          string
	ConcurrentReducers bool
	Feeds              FeedConfig
	Redis              RedisConfig
	Postgres           PostgresConfig
}

// FeedConfig configures the data access layer.
type FeedConfig struct {
	Source           string
	BaseURL          string
	Timeout          time.Duration
	CacheTTL         time.Duration
	FailureThreshold int
	SuccessThreshold int
}

// RedisConfig configures the optional shared feed cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the optional datalake feed source.
type PostgresConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxLife  time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:           getenv("ALLERGYSTATS_ADDR", ":8080"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		StatsMode:      strings.ToLower(getenv("STATS_MODE", "legacy")),
		Feeds: FeedConfig{
			Source:  strings.ToLower(getenv("FEED_SOURCE", FeedSourceHTTP)),
			BaseURL: strings.TrimRight(getenv("DATA_SERVER", "http://localhost:3000"), "/"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
	}

	var err error
	if cfg.Feeds.Timeout, err = durationEnv("FEED_TIMEOUT", 5*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Feeds.CacheTTL, err = durationEnv("FEED_CACHE_TTL", 30*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Feeds.FailureThreshold, err = intEnv("FEED_BREAKER_FAILURES", 3); err != nil {
		return Server{}, err
	}
	if cfg.Feeds.SuccessThreshold, err = intEnv("FEED_BREAKER_SUCCESSES", 2); err != nil {
		return Server{}, err
	}

	if v := os.Getenv("STATS_CONCURRENT_REDUCERS"); v != "" {
		if cfg.ConcurrentReducers, err = strconv.ParseBool(v); err != nil {
			return Server{}, fmt.Errorf("invalid STATS_CONCURRENT_REDUCERS %q: %w", v, err)
		}
	}

	cfg.Redis.PoolSize, _ = intEnv("REDIS_POOL_SIZE", 10)
	cfg.Redis.MinIdleConns, _ = intEnv("REDIS_MIN_IDLE_CONNS", 2)
	cfg.Redis.DialTimeout, _ = durationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second)
	cfg.Redis.ReadTimeout, _ = durationEnv("REDIS_READ_TIMEOUT", 3*time.Second)
	cfg.Redis.WriteTimeout, _ = durationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second)

	cfg.Postgres.MaxOpenConns, _ = intEnv("DATABASE_MAX_OPEN_CONNS", 10)
	cfg.Postgres.MaxIdleConns, _ = intEnv("DATABASE_MAX_IDLE_CONNS", 5)
	cfg.Postgres.ConnMaxLife, _ = durationEnv("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute)

	return cfg, cfg.Validate()
}

// Validate rejects combinations the server cannot start with.
func (c Server) Validate() error {
	switch c.Feeds.Source {
	case FeedSourceHTTP:
		if c.Feeds.BaseURL == "" {
			return fmt.Errorf("DATA_SERVER is required for the http feed source")
		}
	case FeedSourcePostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres feed source")
		}
	default:
		return fmt.Errorf("unknown FEED_SOURCE %q", c.Feeds.Source)
	}
	switch c.StatsMode {
	case "legacy", "scoped":
	default:
		return fmt.Errorf("unknown STATS_MODE %q", c.StatsMode)
	}
	if c.Feeds.Timeout <= 0 {
		return fmt.Errorf("FEED_TIMEOUT must be positive")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return strutil.DedupeAndTrim(strings.Split(v, ","))
}
