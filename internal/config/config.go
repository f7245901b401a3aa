// Package config loads the chat server configuration from defaults, an
// optional YAML file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Event log sink types.
const (
	SinkFile   = "file"
	SinkSQLite = "sqlite"
	SinkNone   = "none"
)

// EventLogConfig selects where chat events are recorded.
type EventLogConfig struct {
	Type   string `yaml:"type"`
	Path   string `yaml:"path"`
	Buffer int    `yaml:"buffer"`
}

// LoggingConfig controls the diagnostic logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config holds every tunable of the chat server.
type Config struct {
	ListenAddr        string         `yaml:"listen_addr"`
	HTTPAddr          string         `yaml:"http_addr"`
	AdminPassword     string         `yaml:"admin_password"`
	AdminPasswordCost int            `yaml:"admin_password_cost"`
	MaxLineBytes      int            `yaml:"max_line_bytes"`
	WriteTimeout      time.Duration  `yaml:"write_timeout"`
	AnnounceJoins     bool           `yaml:"announce_joins"`
	AllowedOrigins    []string       `yaml:"allowed_origins"`
	EventLog          EventLogConfig `yaml:"event_log"`
	Logging           LoggingConfig  `yaml:"logging"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		ListenAddr:    ":3000",
		HTTPAddr:      ":8080",
		AdminPassword: "supersecretpw",
		MaxLineBytes:  4096,
		WriteTimeout:  10 * time.Second,
		AnnounceJoins: true,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		EventLog: EventLogConfig{
			Type:   SinkFile,
			Path:   "chat.log",
			Buffer: 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (if non-empty)
// and environment overrides, then sanitizes and validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.Sanitize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if addr := os.Getenv("CHAT_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}

	// An explicitly empty value disables the HTTP listener.
	if addr, ok := os.LookupEnv("CHAT_HTTP_ADDR"); ok {
		cfg.HTTPAddr = addr
	}

	if pw := os.Getenv("CHAT_ADMIN_PASSWORD"); pw != "" {
		cfg.AdminPassword = pw
	}

	if size := os.Getenv("CHAT_MAX_LINE_BYTES"); size != "" {
		cfg.MaxLineBytes = parseIntValue(size, cfg.MaxLineBytes)
	}

	if timeout := os.Getenv("CHAT_WRITE_TIMEOUT"); timeout != "" {
		cfg.WriteTimeout = parseDuration(timeout, cfg.WriteTimeout)
	}

	if announce := os.Getenv("CHAT_ANNOUNCE_JOINS"); announce != "" {
		if v, err := strconv.ParseBool(announce); err == nil {
			cfg.AnnounceJoins = v
		}
	}

	if origins := os.Getenv("CHAT_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseList(origins)
	}

	if sink := os.Getenv("CHAT_EVENT_LOG_TYPE"); sink != "" {
		cfg.EventLog.Type = sink
	}

	if p := os.Getenv("CHAT_EVENT_LOG_PATH"); p != "" {
		cfg.EventLog.Path = p
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
}

// Sanitize replaces unset or nonsensical values with defaults.
func (c *Config) Sanitize() {
	def := Default()

	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = def.MaxLineBytes
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.EventLog.Type == "" {
		c.EventLog.Type = def.EventLog.Type
	}
	c.EventLog.Type = strings.ToLower(c.EventLog.Type)
	if c.EventLog.Path == "" && c.EventLog.Type != SinkNone {
		c.EventLog.Path = def.EventLog.Path
	}
	if c.EventLog.Buffer <= 0 {
		c.EventLog.Buffer = def.EventLog.Buffer
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
}

// Validate reports configuration that cannot be started.
func (c *Config) Validate() error {
	if c.AdminPassword == "" {
		return errors.New("admin_password must not be empty")
	}
	if c.AdminPasswordCost < 0 {
		return fmt.Errorf("admin_password_cost must not be negative, got %d", c.AdminPasswordCost)
	}
	switch c.EventLog.Type {
	case SinkFile, SinkSQLite, SinkNone:
	default:
		return fmt.Errorf("unsupported event log type: %s", c.EventLog.Type)
	}
	return nil
}

// String renders the config for startup diagnostics with the secret masked.
func (c *Config) String() string {
	return fmt.Sprintf("listen=%s http=%s event_log=%s:%s max_line=%d write_timeout=%s announce_joins=%t",
		c.ListenAddr, c.HTTPAddr, c.EventLog.Type, c.EventLog.Path, c.MaxLineBytes, c.WriteTimeout, c.AnnounceJoins)
}

func parseList(value string) []string {
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseDuration accepts Go duration syntax or a bare number of seconds.
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
