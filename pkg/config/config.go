package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is the prefix shared by every environment variable the tool reads
	EnvPrefix = "IMGURCOMMENTS_"

	// MaxPageSize is the largest page the comments endpoint will serve
	MaxPageSize = 100

	appDirName = "imgurcomments"
)

// Config holds all configuration options for the comment fetcher
type Config struct {
	// Remote API settings
	Imgur ImgurConfig `yaml:"imgur" json:"imgur"`

	// Pagination settings
	Fetch FetchConfig `yaml:"fetch" json:"fetch"`

	// Local history cache
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Client-side pacing and quota handling
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Caller-level retry policy
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ImgurConfig holds API-specific configuration
type ImgurConfig struct {
	ClientID   string `yaml:"client_id" json:"client_id"`
	UserAgent  string `yaml:"user_agent" json:"user_agent"`
	BaseURL    string `yaml:"base_url" json:"base_url"`
	APIVersion string `yaml:"api_version" json:"api_version"`
}

// FetchConfig controls how comment pages are requested
type FetchConfig struct {
	PageSize int           `yaml:"page_size" json:"page_size"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	// RequireEmptyPage keeps paginating after a short page until the API
	// returns an empty one
	RequireEmptyPage bool `yaml:"require_empty_page" json:"require_empty_page"`
}

// CacheConfig controls where the comment history is persisted
type CacheConfig struct {
	Backend     string `yaml:"backend" json:"backend"`
	Directory   string `yaml:"directory" json:"directory"`
	SQLitePath  string `yaml:"sqlite_path" json:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn" json:"postgres_dsn"`
	RedisURL    string `yaml:"redis_url" json:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix" json:"redis_prefix"`
	Persist     bool   `yaml:"persist" json:"persist"`
	Deferred    bool   `yaml:"deferred" json:"deferred"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerMinute of 0 disables client-side pacing
	RequestsPerMinute int    `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int    `yaml:"burst_size" json:"burst_size"`
	Strategy          string `yaml:"strategy" json:"strategy"`
	QuotaMargin       int    `yaml:"quota_margin" json:"quota_margin"`
	AbortOnQuota      bool   `yaml:"abort_on_quota" json:"abort_on_quota"`
}

// RetryConfig holds retry configuration for a whole sync
type RetryConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" json:"multiplier"`
	// MaxWait caps a server-requested pause; longer ones fail instead
	MaxWait time.Duration `yaml:"max_wait" json:"max_wait"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Format string `yaml:"format" json:"format"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Imgur: ImgurConfig{
			UserAgent:  "imgurcomments/1.0",
			BaseURL:    "https://api.imgur.com",
			APIVersion: "3",
		},
		Fetch: FetchConfig{
			PageSize:         MaxPageSize,
			Timeout:          30 * time.Second,
			RequireEmptyPage: false,
		},
		Cache: CacheConfig{
			Backend:     "file",
			Directory:   DefaultCacheDirectory(),
			SQLitePath:  "",
			PostgresDSN: "",
			RedisURL:    "",
			RedisPrefix: "imgurcomments:history:",
			Persist:     true,
			Deferred:    false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 0,
			BurstSize:         10,
			Strategy:          "token_bucket",
			QuotaMargin:       1,
			AbortOnQuota:      false,
		},
		Retry: RetryConfig{
			Enabled:        true,
			MaxAttempts:    3,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     60 * time.Second,
			Multiplier:     2.0,
			MaxWait:        5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			File:   "",
			Format: "console",
		},
	}
}

// DefaultCacheDirectory returns the per-user data directory for cached histories
func DefaultCacheDirectory() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "cache")
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appDirName, "cache")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appDirName, "cache")
		}
		return filepath.Join(home, appDirName, "cache")
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			return filepath.Join(xdgDataHome, appDirName, "cache")
		}
		return filepath.Join(home, ".local", "share", appDirName, "cache")
	}
}

// DefaultConfigDir returns the per-user directory for the config file and
// stored credentials
func DefaultConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support", appDirName)
		}
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appDirName)
		}
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, appDirName)
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+appDirName)
	}
	return filepath.Join(home, ".config", appDirName)
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if clientID := os.Getenv(EnvPrefix + "CLIENT_ID"); clientID != "" {
		c.Imgur.ClientID = clientID
	}
	if userAgent := os.Getenv(EnvPrefix + "USER_AGENT"); userAgent != "" {
		c.Imgur.UserAgent = userAgent
	}
	if baseURL := os.Getenv(EnvPrefix + "BASE_URL"); baseURL != "" {
		c.Imgur.BaseURL = baseURL
	}

	if pageSize := os.Getenv(EnvPrefix + "PAGE_SIZE"); pageSize != "" {
		val, err := strconv.Atoi(pageSize)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPAGE_SIZE: %w", EnvPrefix, err))
		} else {
			c.Fetch.PageSize = val
		}
	}
	if timeout := os.Getenv(EnvPrefix + "TIMEOUT"); timeout != "" {
		val, err := time.ParseDuration(timeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err))
		} else {
			c.Fetch.Timeout = val
		}
	}

	// Cache
	if backend := os.Getenv(EnvPrefix + "CACHE_BACKEND"); backend != "" {
		c.Cache.Backend = backend
	}
	if dir := os.Getenv(EnvPrefix + "CACHE_DIR"); dir != "" {
		c.Cache.Directory = dir
	}
	if path := os.Getenv(EnvPrefix + "SQLITE_PATH"); path != "" {
		c.Cache.SQLitePath = path
	}
	if dsn := os.Getenv(EnvPrefix + "POSTGRES_DSN"); dsn != "" {
		c.Cache.PostgresDSN = dsn
	}
	if redisURL := os.Getenv(EnvPrefix + "REDIS_URL"); redisURL != "" {
		c.Cache.RedisURL = redisURL
	}
	if persist := os.Getenv(EnvPrefix + "CACHE_PERSIST"); persist != "" {
		c.Cache.Persist = strings.ToLower(persist) == "true"
	}

	// Rate limiting
	if rpm := os.Getenv(EnvPrefix + "REQUESTS_PER_MINUTE"); rpm != "" {
		val, err := strconv.Atoi(rpm)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREQUESTS_PER_MINUTE: %w", EnvPrefix, err))
		} else {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	if margin := os.Getenv(EnvPrefix + "QUOTA_MARGIN"); margin != "" {
		val, err := strconv.Atoi(margin)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sQUOTA_MARGIN: %w", EnvPrefix, err))
		} else {
			c.RateLimit.QuotaMargin = val
		}
	}

	if logLevel := os.Getenv(EnvPrefix + "LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv(EnvPrefix + "LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".imgurcomments.yaml",
		".imgurcomments.yml",
		filepath.Join(home, ".config", appDirName, "config.yaml"),
		filepath.Join(home, ".config", appDirName, "config.yml"),
		filepath.Join(home, ".imgurcomments.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Imgur.BaseURL == "" {
		errs = append(errs, errors.New("API base URL is required"))
	}
	if c.Fetch.PageSize < 1 || c.Fetch.PageSize > MaxPageSize {
		errs = append(errs, fmt.Errorf("page size must be between 1 and %d", MaxPageSize))
	}
	if c.Fetch.Timeout < 0 {
		errs = append(errs, errors.New("fetch timeout cannot be negative"))
	}

	switch strings.ToLower(c.Cache.Backend) {
	case "file":
		if c.Cache.Directory == "" {
			errs = append(errs, errors.New("cache directory is required for the file backend"))
		}
	case "sqlite":
		if c.Cache.SQLitePath == "" && c.Cache.Directory == "" {
			errs = append(errs, errors.New("sqlite backend needs sqlite_path or a cache directory"))
		}
	case "postgres":
		if c.Cache.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres backend needs postgres_dsn"))
		}
	case "redis":
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("redis backend needs redis_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	if c.RateLimit.RequestsPerMinute > 0 && c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive when pacing is enabled"))
	}
	if c.RateLimit.QuotaMargin < 0 {
		errs = append(errs, errors.New("quota margin cannot be negative"))
	}
	validStrategies := map[string]bool{"token_bucket": true, "sliding_window": true}
	if !validStrategies[strings.ToLower(c.RateLimit.Strategy)] {
		errs = append(errs, fmt.Errorf("unknown rate limit strategy %q", c.RateLimit.Strategy))
	}

	if c.Retry.Enabled {
		if c.Retry.MaxAttempts < 1 {
			errs = append(errs, errors.New("retry max attempts must be at least 1"))
		}
		if c.Retry.Multiplier < 1 {
			errs = append(errs, errors.New("retry multiplier must be at least 1"))
		}
		if c.Retry.MaxWait < 0 {
			errs = append(errs, errors.New("retry max wait cannot be negative"))
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	validFormats := map[string]bool{"console": true, "json": true, "": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, errors.New("invalid log format"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Masked returns a copy of the configuration with the client id hidden
func (c *Config) Masked() *Config {
	masked := *c
	masked.Imgur.ClientID = MaskSecret(c.Imgur.ClientID)
	if c.Cache.RedisURL != "" {
		masked.Cache.RedisURL = MaskSecret(c.Cache.RedisURL)
	}
	if c.Cache.PostgresDSN != "" {
		masked.Cache.PostgresDSN = MaskSecret(c.Cache.PostgresDSN)
	}
	return &masked
}

// MaskSecret masks all but the first 4 and last 4 characters of a string
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only flags the user actually set should be present in the map.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if clientID, ok := flags["client-id"].(string); ok && clientID != "" {
		c.Imgur.ClientID = clientID
	}
	if baseURL, ok := flags["base-url"].(string); ok && baseURL != "" {
		c.Imgur.BaseURL = baseURL
	}
	if pageSize, ok := flags["page-size"].(int); ok && pageSize > 0 {
		c.Fetch.PageSize = pageSize
	}
	if requireEmpty, ok := flags["require-empty-page"].(bool); ok {
		c.Fetch.RequireEmptyPage = requireEmpty
	}
	if backend, ok := flags["cache-backend"].(string); ok && backend != "" {
		c.Cache.Backend = backend
	}
	if dir, ok := flags["cache-dir"].(string); ok && dir != "" {
		c.Cache.Directory = dir
	}
	if noCache, ok := flags["no-cache"].(bool); ok && noCache {
		c.Cache.Persist = false
	}
	if deferred, ok := flags["deferred"].(bool); ok {
		c.Cache.Deferred = deferred
	}
	if rpm, ok := flags["rate-limit"].(int); ok && rpm >= 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if retries, ok := flags["max-retries"].(int); ok {
		if retries <= 0 {
			c.Retry.Enabled = false
		} else {
			c.Retry.MaxAttempts = retries
		}
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".imgurcomments.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
