// ABOUTME: Configuration loading and parsing for coven-script
// ABOUTME: Supports YAML files with environment variable expansion, duration parsing and defaults

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport kinds.
const (
	TransportWhatsApp = "whatsapp"
	TransportMatrix   = "matrix"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Delivery modes, mirrored by dispatch.Delivery.
const (
	DeliveryAtMostOnce  = "at_most_once"
	DeliveryAtLeastOnce = "at_least_once"
)

// DefaultDelays are the named waits scripts can refer to.
var DefaultDelays = map[string]time.Duration{
	"typing":         5 * time.Second,
	"recording":      8 * time.Second,
	"between_videos": 6 * time.Second,
	"between_audios": 10 * time.Second,
}

// Config represents the complete coven-script configuration
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Store     StoreConfig     `yaml:"store"`
	Script    ScriptConfig    `yaml:"script"`
	Media     MediaConfig     `yaml:"media"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Delays maps delay names to durations, defaults merged in.
	Delays    map[string]time.Duration `yaml:"-"`
	DelaysRaw map[string]string        `yaml:"delays"`
}

// TransportConfig selects and configures the chat platform
type TransportConfig struct {
	Kind     string         `yaml:"kind"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Matrix   MatrixConfig   `yaml:"matrix"`
}

// WhatsAppConfig holds WhatsApp multi-device settings
type WhatsAppConfig struct {
	SessionPath  string        `yaml:"session_path"`
	SendInterval time.Duration `yaml:"-"`
	SendBurst    int           `yaml:"send_burst"`

	SendIntervalRaw string `yaml:"send_interval"`
}

// MatrixConfig holds Matrix integration configuration
type MatrixConfig struct {
	Homeserver   string   `yaml:"homeserver"`
	UserID       string   `yaml:"user_id"`
	AccessToken  string   `yaml:"access_token"`
	AllowedRooms []string `yaml:"allowed_rooms"`

	// End-to-end encryption for encrypted rooms.
	Encryption  bool   `yaml:"encryption"`
	RecoveryKey string `yaml:"recovery_key"`
	DataDir     string `yaml:"data_dir"` // crypto store location
}

// StoreConfig holds conversation store configuration
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// ScriptConfig points at the stage script file
type ScriptConfig struct {
	Path string `yaml:"path"`
}

// MediaConfig holds the media library settings
type MediaConfig struct {
	Dir     string `yaml:"dir"`
	MaxSize int64  `yaml:"max_size"` // bytes
}

// DispatchConfig holds dispatcher behavior
type DispatchConfig struct {
	Delivery  string        `yaml:"delivery"`
	DedupeTTL time.Duration `yaml:"-"`

	DedupeTTLRaw string `yaml:"dedupe_ttl"`
}

// ReconnectConfig holds the reconnect policy
type ReconnectConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"-"`

	BaseDelayRaw string `yaml:"base_delay"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultPath returns COVEN_SCRIPT_CONFIG if set, otherwise
// $XDG_CONFIG_HOME/coven/script.yaml (falling back to ~/.config).
func DefaultPath() string {
	if p := os.Getenv("COVEN_SCRIPT_CONFIG"); p != "" {
		return p
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "script.yaml"
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "coven", "script.yaml")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Relative paths inside the file are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	cfg.resolvePaths(filepath.Dir(absPath))

	return cfg, nil
}

// Parse decodes, defaults and validates configuration bytes.
func Parse(data []byte) (*Config, error) {
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Transport.Kind == "" {
		c.Transport.Kind = TransportWhatsApp
	}
	if c.Transport.WhatsApp.SessionPath == "" {
		c.Transport.WhatsApp.SessionPath = "whatsapp-session.db"
	}
	// An explicit 0s disables send throttling.
	if c.Transport.WhatsApp.SendIntervalRaw == "" {
		c.Transport.WhatsApp.SendInterval = time.Second
	}
	if c.Transport.WhatsApp.SendBurst == 0 {
		c.Transport.WhatsApp.SendBurst = 1
	}

	if c.Transport.Matrix.DataDir == "" {
		c.Transport.Matrix.DataDir = "matrix-data"
	}

	if c.Store.Driver == "" {
		c.Store.Driver = DriverSQLite
	}
	if c.Store.Path == "" && c.Store.Driver == DriverSQLite {
		c.Store.Path = "conversations.db"
	}

	if c.Script.Path == "" {
		c.Script.Path = "script.yaml"
	}
	if c.Media.Dir == "" {
		c.Media.Dir = "media"
	}
	if c.Media.MaxSize == 0 {
		c.Media.MaxSize = 16 * 1024 * 1024
	}

	if c.Dispatch.Delivery == "" {
		c.Dispatch.Delivery = DeliveryAtMostOnce
	}
	if c.Dispatch.DedupeTTL == 0 {
		c.Dispatch.DedupeTTL = 10 * time.Minute
	}

	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = 5
	}
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = 5 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	merged := make(map[string]time.Duration, len(DefaultDelays)+len(c.Delays))
	for name, d := range DefaultDelays {
		merged[name] = d
	}
	for name, d := range c.Delays {
		merged[name] = d
	}
	c.Delays = merged
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Transport.Kind {
	case TransportWhatsApp:
		if c.Transport.WhatsApp.SendInterval < 0 {
			return fmt.Errorf("transport.whatsapp.send_interval must not be negative")
		}
	case TransportMatrix:
		m := c.Transport.Matrix
		if m.Homeserver == "" {
			return fmt.Errorf("transport.matrix.homeserver is required")
		}
		if m.UserID == "" {
			return fmt.Errorf("transport.matrix.user_id is required")
		}
		if m.AccessToken == "" {
			return fmt.Errorf("transport.matrix.access_token is required")
		}
	default:
		return fmt.Errorf("transport.kind %q is not one of whatsapp, matrix", c.Transport.Kind)
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("store.driver %q is not one of memory, sqlite", c.Store.Driver)
	}

	if c.Media.MaxSize < 0 {
		return fmt.Errorf("media.max_size must not be negative")
	}

	switch c.Dispatch.Delivery {
	case DeliveryAtMostOnce, DeliveryAtLeastOnce:
	default:
		return fmt.Errorf("dispatch.delivery %q is not one of at_most_once, at_least_once", c.Dispatch.Delivery)
	}

	if c.Reconnect.MaxAttempts < 1 {
		return fmt.Errorf("reconnect.max_attempts must be at least 1")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

// DelayNames returns the configured delay names in sorted order.
func (c *Config) DelayNames() []string {
	names := make([]string, 0, len(c.Delays))
	for name := range c.Delays {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) resolvePaths(baseDir string) {
	resolve := func(p *string) {
		if *p == "" || *p == ":memory:" || filepath.IsAbs(*p) {
			return
		}
		*p = filepath.Join(baseDir, *p)
	}

	resolve(&c.Transport.WhatsApp.SessionPath)
	resolve(&c.Transport.Matrix.DataDir)
	resolve(&c.Store.Path)
	resolve(&c.Script.Path)
	resolve(&c.Media.Dir)
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Transport.WhatsApp.SendIntervalRaw != "" {
		cfg.Transport.WhatsApp.SendInterval, err = time.ParseDuration(cfg.Transport.WhatsApp.SendIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing send_interval %q: %w", cfg.Transport.WhatsApp.SendIntervalRaw, err)
		}
	}

	if cfg.Dispatch.DedupeTTLRaw != "" {
		cfg.Dispatch.DedupeTTL, err = time.ParseDuration(cfg.Dispatch.DedupeTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing dedupe_ttl %q: %w", cfg.Dispatch.DedupeTTLRaw, err)
		}
	}

	if cfg.Reconnect.BaseDelayRaw != "" {
		cfg.Reconnect.BaseDelay, err = time.ParseDuration(cfg.Reconnect.BaseDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing base_delay %q: %w", cfg.Reconnect.BaseDelayRaw, err)
		}
	}

	if len(cfg.DelaysRaw) > 0 {
		cfg.Delays = make(map[string]time.Duration, len(cfg.DelaysRaw))
		for name, raw := range cfg.DelaysRaw {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("parsing delay %s %q: %w", name, raw, err)
			}
			if d < 0 {
				return fmt.Errorf("delay %s must not be negative", name)
			}
			cfg.Delays[name] = d
		}
	}

	return nil
}
