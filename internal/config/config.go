// ABOUTME: Configuration loading and parsing for convsession
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete convsession configuration
type Config struct {
	Server       ServerConfig       `yaml:"server" toml:"server"`
	Database     DatabaseConfig     `yaml:"database" toml:"database"`
	Conversation ConversationConfig `yaml:"conversation" toml:"conversation"`
	Logging      LoggingConfig      `yaml:"logging" toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr" toml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	ShutdownTimeoutRaw string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // "sqlite" (modernc) or "sqlite3" (mattn)
	Path   string `yaml:"path" toml:"path"`
}

// ConversationConfig holds cookie and binding settings for the conversation filter.
// Pointer fields distinguish "unset" from an explicit false.
type ConversationConfig struct {
	CookieName          string `yaml:"cookie_name" toml:"cookie_name"`
	AttributeName       string `yaml:"attribute_name" toml:"attribute_name"`
	CookiePath          string `yaml:"cookie_path" toml:"cookie_path"`
	CookieSecure        *bool  `yaml:"cookie_secure" toml:"cookie_secure"`
	CookieHTTPOnly      *bool  `yaml:"cookie_http_only" toml:"cookie_http_only"`
	CookieSameSite      string `yaml:"cookie_same_site" toml:"cookie_same_site"` // lax, strict, none
	FilterAsyncDispatch bool   `yaml:"filter_async_dispatch" toml:"filter_async_dispatch"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

const (
	defaultHTTPAddr        = "127.0.0.1:8080"
	defaultShutdownTimeout = 5 * time.Second
	defaultDriver          = "sqlite"
	defaultCookiePath      = "/"
	defaultSameSite        = "lax"
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data, formatFromPath(path))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Format is a configuration file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

func formatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes raw configuration data, applies defaults, and validates it.
func Parse(data []byte, format Format) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
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

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// envVarPattern matches ${VAR_NAME}
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills unset fields.
func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = defaultHTTPAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.Database.Driver == "" {
		c.Database.Driver = defaultDriver
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(DefaultDataDir(), "convsession.db")
	}

	conv := &c.Conversation
	if conv.CookieName == "" {
		conv.CookieName = "org.mael.hibernate.conversation"
	}
	if conv.AttributeName == "" {
		conv.AttributeName = "hibernate.conversation.id"
	}
	if conv.CookiePath == "" {
		conv.CookiePath = defaultCookiePath
	}
	if conv.CookieSecure == nil {
		secure := true
		conv.CookieSecure = &secure
	}
	if conv.CookieHTTPOnly == nil {
		httpOnly := true
		conv.CookieHTTPOnly = &httpOnly
	}
	if conv.CookieSameSite == "" {
		conv.CookieSameSite = defaultSameSite
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must not be negative")
	}

	switch c.Database.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be \"sqlite\" or \"sqlite3\", got %q", c.Database.Driver)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.Path == ":memory:" || strings.Contains(c.Database.Path, "mode=memory") {
		return fmt.Errorf("database.path must be a file: in-memory databases are per connection")
	}

	if strings.ContainsAny(c.Conversation.CookieName, " \t;,=\"") {
		return fmt.Errorf("conversation.cookie_name %q contains invalid characters", c.Conversation.CookieName)
	}
	if _, err := ParseSameSite(c.Conversation.CookieSameSite); err != nil {
		return err
	}
	if c.Conversation.CookieSameSite == "none" && c.Conversation.CookieSecure != nil && !*c.Conversation.CookieSecure {
		return fmt.Errorf("conversation.cookie_same_site \"none\" requires cookie_secure")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	return nil
}

// ParseSameSite converts a config value to an http.SameSite mode.
func ParseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(s) {
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("conversation.cookie_same_site must be lax, strict or none, got %q", s)
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Server.ShutdownTimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Server.ShutdownTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_timeout %q: %w", cfg.Server.ShutdownTimeoutRaw, err)
		}
		cfg.Server.ShutdownTimeout = d
	}
	return nil
}

// DefaultPath returns the path to the config file.
// Priority: CONVSESSION_CONFIG env var > XDG_CONFIG_HOME/convsession/config.yaml > ~/.config/convsession/config.yaml
func DefaultPath() string {
	if envPath := os.Getenv("CONVSESSION_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "convsession", "config.yaml")
}

// DefaultDataDir returns the convsession data directory.
// Priority: XDG_DATA_HOME/convsession > ~/.local/share/convsession
func DefaultDataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "convsession")
}

// Encode renders cfg as YAML, for writing a starter config file.
func (c *Config) Encode() ([]byte, error) {
	out := struct {
		Server struct {
			HTTPAddr        string `yaml:"http_addr"`
			ShutdownTimeout string `yaml:"shutdown_timeout"`
		} `yaml:"server"`
		Database     DatabaseConfig     `yaml:"database"`
		Conversation ConversationConfig `yaml:"conversation"`
		Logging      LoggingConfig      `yaml:"logging"`
	}{
		Database:     c.Database,
		Conversation: c.Conversation,
		Logging:      c.Logging,
	}
	out.Server.HTTPAddr = c.Server.HTTPAddr
	out.Server.ShutdownTimeout = c.Server.ShutdownTimeout.String()
	return yaml.Marshal(out)
}
