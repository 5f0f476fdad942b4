// ABOUTME: Configuration loading and parsing for skillchat
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete skillchat configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Stream    StreamConfig    `yaml:"stream" toml:"stream"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Theme     ThemeConfig     `yaml:"theme" toml:"theme"`
	DevServer DevServerConfig `yaml:"devserver" toml:"devserver"`
}

// ServerConfig holds the backend address and request pacing
type ServerConfig struct {
	BaseURL string        `yaml:"base_url" toml:"base_url"`
	Timeout time.Duration `yaml:"-" toml:"-"`

	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`

	// Raw string values for unmarshaling
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// RateLimitConfig paces outgoing requests. Zero requests_per_second disables pacing.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int     `yaml:"burst" toml:"burst"`
}

// StreamConfig holds defaults for streamed chat replies
type StreamConfig struct {
	Timeout         time.Duration `yaml:"-" toml:"-"`
	DuplicateWindow time.Duration `yaml:"-" toml:"-"`

	ModelType      string `yaml:"model_type" toml:"model_type"`
	Expert         bool   `yaml:"expert" toml:"expert"`
	EnableThinking bool   `yaml:"enable_thinking" toml:"enable_thinking"`
	ReadBufferSize int    `yaml:"read_buffer_size" toml:"read_buffer_size"`

	// Raw string values for unmarshaling
	TimeoutRaw         string `yaml:"timeout" toml:"timeout"`
	DuplicateWindowRaw string `yaml:"duplicate_window" toml:"duplicate_window"`
}

// StorageConfig holds the local preference database location
type StorageConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// ThemeConfig holds the initial terminal theme when none is persisted
type ThemeConfig struct {
	Mode string `yaml:"mode" toml:"mode"`
}

// DevServerConfig configures the local fake backend
type DevServerConfig struct {
	Addr       string        `yaml:"addr" toml:"addr"`
	JWTSecret  string        `yaml:"jwt_secret" toml:"jwt_secret"`
	ChunkDelay time.Duration `yaml:"-" toml:"-"`
	TokenTTL   time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ChunkDelayRaw string `yaml:"chunk_delay" toml:"chunk_delay"`
	TokenTTLRaw   string `yaml:"token_ttl" toml:"token_ttl"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// DefaultPath returns $SKILLCHAT_CONFIG, or config.yaml under the user config directory.
func DefaultPath() string {
	if p := os.Getenv("SKILLCHAT_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultDataPath returns where the preference database lives by default.
func DefaultDataPath() string {
	return filepath.Join(configDir(), "skillchat.db")
}

func configDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "skillchat")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadOptional is Load, except that a missing file yields Default().
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:8000"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}
	if cfg.Server.RateLimit.RequestsPerSecond > 0 && cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = 1
	}

	if cfg.Stream.Timeout == 0 {
		cfg.Stream.Timeout = 5 * time.Minute
	}
	if cfg.Stream.DuplicateWindow == 0 {
		cfg.Stream.DuplicateWindow = 2 * time.Second
	}
	if cfg.Stream.ModelType == "" {
		cfg.Stream.ModelType = "general"
	}
	if cfg.Stream.ReadBufferSize == 0 {
		cfg.Stream.ReadBufferSize = 4096
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultDataPath()
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Theme.Mode == "" {
		cfg.Theme.Mode = "system"
	}

	if cfg.DevServer.Addr == "" {
		cfg.DevServer.Addr = "127.0.0.1:8000"
	}
	if cfg.DevServer.ChunkDelay == 0 {
		cfg.DevServer.ChunkDelay = 30 * time.Millisecond
	}
	if cfg.DevServer.TokenTTL == 0 {
		cfg.DevServer.TokenTTL = 24 * time.Hour
	}
}

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server.base_url %q must be an http or https URL", c.Server.BaseURL)
	}
	if c.Server.Timeout < 0 {
		return fmt.Errorf("server.timeout must not be negative")
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must not be negative")
	}

	switch c.Stream.ModelType {
	case "general", "vision":
	default:
		return fmt.Errorf("stream.model_type %q must be general or vision", c.Stream.ModelType)
	}
	if c.Stream.Timeout < 0 {
		return fmt.Errorf("stream.timeout must not be negative")
	}
	if c.Stream.ReadBufferSize < 0 {
		return fmt.Errorf("stream.read_buffer_size must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}

	switch c.Theme.Mode {
	case "light", "dark", "system":
	default:
		return fmt.Errorf("theme.mode %q must be light, dark or system", c.Theme.Mode)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.timeout", cfg.Server.TimeoutRaw, &cfg.Server.Timeout},
		{"stream.timeout", cfg.Stream.TimeoutRaw, &cfg.Stream.Timeout},
		{"stream.duplicate_window", cfg.Stream.DuplicateWindowRaw, &cfg.Stream.DuplicateWindow},
		{"devserver.chunk_delay", cfg.DevServer.ChunkDelayRaw, &cfg.DevServer.ChunkDelay},
		{"devserver.token_ttl", cfg.DevServer.TokenTTLRaw, &cfg.DevServer.TokenTTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
