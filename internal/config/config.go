package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Upstream UpstreamConfig
	Server   ServerConfig
	Session  SessionConfig
	Redis    RedisConfig
	UI       UIConfig
}

// UpstreamConfig points at the business REST backend.
type UpstreamConfig struct {
	BaseURL string
	Timeout time.Duration
	Rate    float64 // requests per second, 0 disables limiting
	Burst   int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
	RateLimit    float64 // per client IP, requests per second
	RateBurst    int
	ServeUI      bool
}

// Session backends.
const (
	SessionFile  = "file"
	SessionRedis = "redis"
)

// SessionConfig selects where the bearer token is persisted.
type SessionConfig struct {
	Backend string
	File    string
}

// RedisConfig holds Redis connection settings for the redis session backend.
type RedisConfig struct {
	Addr      string
	Password  string //nolint:gosec // G117: Redis connection config
	DB        int
	KeyPrefix string
}

// UIConfig holds list-view and localization defaults.
type UIConfig struct {
	Locale          string
	SearchDebounce  time.Duration
	DefaultPageSize int
	MaxPageSize     int
	FileNameCache   int
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".backoffice", "storage.json")
	}
	return filepath.Join(home, ".backoffice", "storage.json")
}

// Load reads configuration from environment variables.
// Only BACKOFFICE_UPSTREAM_BASE_URL is required; everything else has a
// default suitable for local development.
func Load() (*Config, error) {
	upstreamTimeout, err := getEnvDuration("BACKOFFICE_UPSTREAM_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	upstreamRate, err := getEnvFloat("BACKOFFICE_UPSTREAM_RATE", 20)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	upstreamBurst, err := getEnvInt("BACKOFFICE_UPSTREAM_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("BACKOFFICE_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("BACKOFFICE_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateLimit, err := getEnvFloat("BACKOFFICE_RATE_LIMIT", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateBurst, err := getEnvInt("BACKOFFICE_RATE_BURST", 200)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	serveUI, err := getEnvBool("BACKOFFICE_SERVE_UI", true)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("BACKOFFICE_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	debounce, err := getEnvDuration("BACKOFFICE_SEARCH_DEBOUNCE", 350*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	pageSize, err := getEnvInt("BACKOFFICE_DEFAULT_PAGE_SIZE", 12)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxPageSize, err := getEnvInt("BACKOFFICE_MAX_PAGE_SIZE", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	nameCache, err := getEnvInt("BACKOFFICE_FILE_NAME_CACHE", 256)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := &Config{
		Upstream: UpstreamConfig{
			BaseURL: strings.TrimRight(getEnv("BACKOFFICE_UPSTREAM_BASE_URL", ""), "/"),
			Timeout: upstreamTimeout,
			Rate:    upstreamRate,
			Burst:   upstreamBurst,
		},
		Server: ServerConfig{
			Addr:         getEnv("BACKOFFICE_SERVER_ADDR", "127.0.0.1:8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  getEnvList("BACKOFFICE_CORS_ORIGINS", []string{"http://localhost:5173"}),
			RateLimit:    rateLimit,
			RateBurst:    rateBurst,
			ServeUI:      serveUI,
		},
		Session: SessionConfig{
			Backend: strings.ToLower(getEnv("BACKOFFICE_SESSION_BACKEND", SessionFile)),
			File:    getEnv("BACKOFFICE_SESSION_FILE", defaultSessionFile()),
		},
		Redis: RedisConfig{
			Addr:      getEnv("BACKOFFICE_REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("BACKOFFICE_REDIS_PASSWORD", ""),
			DB:        redisDB,
			KeyPrefix: getEnv("BACKOFFICE_REDIS_KEY_PREFIX", ""),
		},
		UI: UIConfig{
			Locale:          strings.ToLower(getEnv("BACKOFFICE_LOCALE", "es")),
			SearchDebounce:  debounce,
			DefaultPageSize: pageSize,
			MaxPageSize:     maxPageSize,
			FileNameCache:   nameCache,
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.Upstream.BaseURL == "" {
		return errors.New("BACKOFFICE_UPSTREAM_BASE_URL is required")
	}
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BACKOFFICE_UPSTREAM_BASE_URL must be an absolute http(s) URL, got %q", c.Upstream.BaseURL)
	}
	if u.Scheme == "http" && u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
		log.Warn().Str("url", c.Upstream.BaseURL).Msg("BACKOFFICE_UPSTREAM_BASE_URL is plain http; bearer tokens travel unencrypted")
	}

	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("BACKOFFICE_UPSTREAM_TIMEOUT must be positive, got %s", c.Upstream.Timeout)
	}
	if c.Upstream.Rate < 0 {
		return fmt.Errorf("BACKOFFICE_UPSTREAM_RATE must be >= 0, got %g", c.Upstream.Rate)
	}
	if c.Upstream.Burst < 1 {
		return fmt.Errorf("BACKOFFICE_UPSTREAM_BURST must be >= 1, got %d", c.Upstream.Burst)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("BACKOFFICE_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("BACKOFFICE_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.RateLimit <= 0 {
		return fmt.Errorf("BACKOFFICE_RATE_LIMIT must be positive, got %g", c.Server.RateLimit)
	}
	if c.Server.RateBurst < 1 {
		return fmt.Errorf("BACKOFFICE_RATE_BURST must be >= 1, got %d", c.Server.RateBurst)
	}

	switch c.Session.Backend {
	case SessionFile:
		if c.Session.File == "" {
			return errors.New("BACKOFFICE_SESSION_FILE must not be empty")
		}
	case SessionRedis:
		if c.Redis.Addr == "" {
			return errors.New("BACKOFFICE_REDIS_ADDR is required for the redis session backend")
		}
	default:
		return fmt.Errorf("BACKOFFICE_SESSION_BACKEND must be %q or %q, got %q", SessionFile, SessionRedis, c.Session.Backend)
	}

	if c.UI.Locale != "es" && c.UI.Locale != "en" {
		return fmt.Errorf("BACKOFFICE_LOCALE must be es or en, got %q", c.UI.Locale)
	}
	if c.UI.SearchDebounce < 0 {
		return fmt.Errorf("BACKOFFICE_SEARCH_DEBOUNCE must be >= 0, got %s", c.UI.SearchDebounce)
	}
	if c.UI.DefaultPageSize < 1 {
		return fmt.Errorf("BACKOFFICE_DEFAULT_PAGE_SIZE must be >= 1, got %d", c.UI.DefaultPageSize)
	}
	if c.UI.MaxPageSize < c.UI.DefaultPageSize {
		return fmt.Errorf("BACKOFFICE_MAX_PAGE_SIZE must be >= BACKOFFICE_DEFAULT_PAGE_SIZE, got %d < %d", c.UI.MaxPageSize, c.UI.DefaultPageSize)
	}
	if c.UI.FileNameCache < 1 {
		return fmt.Errorf("BACKOFFICE_FILE_NAME_CACHE must be >= 1, got %d", c.UI.FileNameCache)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
