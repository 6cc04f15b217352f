// ABOUTME: Configuration loading and parsing for handoff-gateway
// ABOUTME: Supports YAML or TOML files with env var expansion, env fallbacks and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete handoff-gateway configuration
type Config struct {
	Staff    StaffConfig    `yaml:"staff" toml:"staff"`
	Storage  StorageConfig  `yaml:"storage" toml:"storage"`
	Sessions SessionsConfig `yaml:"sessions" toml:"sessions"`
	Telegram TelegramConfig `yaml:"telegram" toml:"telegram"`
	Matrix   MatrixConfig   `yaml:"matrix" toml:"matrix"`
	Delivery DeliveryConfig `yaml:"delivery" toml:"delivery"`
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Auth     AuthConfig     `yaml:"auth" toml:"auth"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
}

// StaffConfig lists the principals allowed to act as operators.
// Admins are operators that may also close dialogs they do not own.
type StaffConfig struct {
	Admins       []string `yaml:"admins" toml:"admins"`
	Operators    []string `yaml:"operators" toml:"operators"`
	AnnounceChat string   `yaml:"announce_chat" toml:"announce_chat"`
}

// Recipients returns operators and admins, deduplicated, in config order.
func (s StaffConfig) Recipients() []string {
	out := make([]string, 0, len(s.Operators)+len(s.Admins))
	for _, id := range slices.Concat(s.Operators, s.Admins) {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Empty reports whether no staff member is configured.
func (s StaffConfig) Empty() bool {
	return len(s.Recipients()) == 0
}

// StorageConfig selects where dialogs and phone numbers are persisted
type StorageConfig struct {
	Driver     string `yaml:"driver" toml:"driver"` // file or sqlite
	DataDir    string `yaml:"data_dir" toml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path" toml:"sqlite_path"`
}

// SessionsConfig selects the conversation state backend
type SessionsConfig struct {
	Driver        string `yaml:"driver" toml:"driver"` // memory or redis
	RedisAddr     string `yaml:"redis_addr" toml:"redis_addr"`
	RedisPassword string `yaml:"redis_password" toml:"redis_password"`
	RedisDB       int    `yaml:"redis_db" toml:"redis_db"`

	TTL    time.Duration `yaml:"-" toml:"-"`
	TTLRaw string        `yaml:"ttl" toml:"ttl"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Token   string `yaml:"token" toml:"token"`
	Debug   bool   `yaml:"debug" toml:"debug"`

	PollTimeout    time.Duration `yaml:"-" toml:"-"`
	PollTimeoutRaw string        `yaml:"poll_timeout" toml:"poll_timeout"`
}

// MatrixConfig holds Matrix integration configuration. Matrix principals
// are direct-message room ids, so the bridge carries its own staff list.
type MatrixConfig struct {
	Enabled     bool        `yaml:"enabled" toml:"enabled"`
	Homeserver  string      `yaml:"homeserver" toml:"homeserver"`
	UserID      string      `yaml:"user_id" toml:"user_id"`
	AccessToken string      `yaml:"access_token" toml:"access_token"`
	Staff       StaffConfig `yaml:"staff" toml:"staff"`
}

// DeliveryConfig bounds outbound sends
type DeliveryConfig struct {
	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`
}

// ServerConfig holds the HTTP API address. An empty address disables the API.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // text or json
	File   string `yaml:"file" toml:"file"`     // optional JSON log file
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// MinSecretLength is the shortest accepted JWT secret.
const MinSecretLength = 32

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// An empty path builds the configuration from the environment alone.
func Load(path string) (*Config, error) {
	if path == "" {
		return FromEnv()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return finish(&cfg)
}

// FromEnv builds a configuration from environment variables only:
// BOT_TOKEN, ADMIN_IDS, OPERATOR_IDS, NOTIFICATION_CHAT_ID and DATA_DIR.
// Telegram is enabled when BOT_TOKEN is set.
func FromEnv() (*Config, error) {
	var cfg Config
	cfg.Telegram.Enabled = os.Getenv("BOT_TOKEN") != ""
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	applyEnvFallbacks(cfg)
	applyDefaults(cfg)

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultPath returns the configuration file location.
// Priority: HANDOFF_CONFIG env var > XDG_CONFIG_HOME/handoff/gateway.yaml > ~/.config/handoff/gateway.yaml
func DefaultPath() (string, error) {
	if envPath := os.Getenv("HANDOFF_CONFIG"); envPath != "" {
		return envPath, nil
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "handoff", "gateway.yaml"), nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// applyEnvFallbacks fills unset fields from the plain environment variables
// older deployments were configured with.
func applyEnvFallbacks(cfg *Config) {
	if cfg.Telegram.Token == "" {
		cfg.Telegram.Token = os.Getenv("BOT_TOKEN")
	}
	if len(cfg.Staff.Admins) == 0 {
		cfg.Staff.Admins = splitList(os.Getenv("ADMIN_IDS"))
	}
	if len(cfg.Staff.Operators) == 0 {
		cfg.Staff.Operators = splitList(os.Getenv("OPERATOR_IDS"))
	}
	if cfg.Staff.AnnounceChat == "" {
		cfg.Staff.AnnounceChat = os.Getenv("NOTIFICATION_CHAT_ID")
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = os.Getenv("DATA_DIR")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "file"
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = filepath.Join(cfg.Storage.DataDir, "handoff.db")
	}
	if cfg.Sessions.Driver == "" {
		cfg.Sessions.Driver = "memory"
	}
	if cfg.Sessions.TTLRaw == "" {
		cfg.Sessions.TTLRaw = "24h"
	}
	if cfg.Telegram.PollTimeoutRaw == "" {
		cfg.Telegram.PollTimeoutRaw = "60s"
	}
	if cfg.Delivery.TimeoutRaw == "" {
		cfg.Delivery.TimeoutRaw = "10s"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// splitList parses a comma separated id list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Telegram.Enabled && !c.Matrix.Enabled {
		return fmt.Errorf("no transport enabled: enable telegram or matrix")
	}

	if c.Telegram.Enabled {
		if c.Telegram.Token == "" {
			return fmt.Errorf("telegram.token is required when telegram is enabled (or set BOT_TOKEN)")
		}
		if c.Staff.Empty() {
			return fmt.Errorf("staff.operators or staff.admins is required when telegram is enabled")
		}
	}

	if c.Matrix.Enabled {
		switch {
		case c.Matrix.Homeserver == "":
			return fmt.Errorf("matrix.homeserver is required when matrix is enabled")
		case c.Matrix.UserID == "":
			return fmt.Errorf("matrix.user_id is required when matrix is enabled")
		case c.Matrix.AccessToken == "":
			return fmt.Errorf("matrix.access_token is required when matrix is enabled")
		case c.Matrix.Staff.Empty():
			return fmt.Errorf("matrix.staff.operators or matrix.staff.admins is required when matrix is enabled")
		}
	}

	switch c.Storage.Driver {
	case "file", "sqlite":
	default:
		return fmt.Errorf("storage.driver %q is not supported (use file or sqlite)", c.Storage.Driver)
	}

	switch c.Sessions.Driver {
	case "memory":
	case "redis":
		if c.Sessions.RedisAddr == "" {
			return fmt.Errorf("sessions.redis_addr is required when sessions.driver is redis")
		}
	default:
		return fmt.Errorf("sessions.driver %q is not supported (use memory or redis)", c.Sessions.Driver)
	}

	if c.Server.HTTPAddr != "" && len(c.Auth.JWTSecret) < MinSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes when server.http_addr is set", MinSecretLength)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (use text or json)", c.Logging.Format)
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
		{"sessions.ttl", cfg.Sessions.TTLRaw, &cfg.Sessions.TTL},
		{"telegram.poll_timeout", cfg.Telegram.PollTimeoutRaw, &cfg.Telegram.PollTimeout},
		{"delivery.timeout", cfg.Delivery.TimeoutRaw, &cfg.Delivery.Timeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %q", f.name, f.raw)
		}
		*f.dst = d
	}

	return nil
}
