package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Session timing defaults.
const (
	DefaultEditDebounce = 500 * time.Millisecond
	DefaultClickWindow  = 250 * time.Millisecond
	DefaultRest         = 90 * time.Second
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Session   SessionConfig   `yaml:"session"`
	Drafts    DraftsConfig    `yaml:"drafts"`
	Remote    RemoteConfig    `yaml:"remote"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// SessionConfig tunes the live session engine.
type SessionConfig struct {
	PlanID       string        `yaml:"plan_id"`
	EditDebounce time.Duration `yaml:"edit_debounce"`
	ClickWindow  time.Duration `yaml:"click_window"`
	DefaultRest  time.Duration `yaml:"default_rest"`
}

// DraftsConfig locates the local journal of unsaved edits.
type DraftsConfig struct {
	Dir string `yaml:"dir"`
}

// RemoteConfig points a client session at a shaper server. When URL is
// empty the client talks to the database directly.
type RemoteConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads the server config from a YAML file, then applies environment
// variable overrides. Env vars use the prefix SHAPER_ and underscore-separated
// paths:
//
//	SHAPER_SERVER_HOST, SHAPER_SERVER_PORT,
//	SHAPER_DB_HOST, SHAPER_DB_PORT, SHAPER_DB_NAME,
//	SHAPER_DB_USER, SHAPER_DB_PASSWORD, SHAPER_DB_SSLMODE,
//	SHAPER_AUTH_API_KEY,
//	SHAPER_TS_ENABLED, SHAPER_TS_HOSTNAME, SHAPER_TS_STATE_DIR,
//	SHAPER_SESSION_PLAN_ID, SHAPER_SESSION_EDIT_DEBOUNCE,
//	SHAPER_SESSION_CLICK_WINDOW, SHAPER_SESSION_DEFAULT_REST,
//	SHAPER_DRAFTS_DIR, SHAPER_REMOTE_URL, SHAPER_REMOTE_API_KEY
func Load(path string) (*Config, error) {
	return load(path, (*Config).validate)
}

// LoadClient reads the config of a session client such as the MCP server.
// It needs a plan and either a remote URL or database settings.
func LoadClient(path string) (*Config, error) {
	return load(path, (*Config).validateClient)
}

func load(path string, validate func(*Config) error) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SHAPER_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SHAPER_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SHAPER_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("SHAPER_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("SHAPER_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("SHAPER_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("SHAPER_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("SHAPER_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("SHAPER_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("SHAPER_TS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	if v := os.Getenv("SHAPER_TS_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
	if v := os.Getenv("SHAPER_TS_STATE_DIR"); v != "" {
		cfg.Tailscale.StateDir = v
	}
	if v := os.Getenv("SHAPER_SESSION_PLAN_ID"); v != "" {
		cfg.Session.PlanID = v
	}
	if v := os.Getenv("SHAPER_SESSION_EDIT_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Session.EditDebounce = d
		}
	}
	if v := os.Getenv("SHAPER_SESSION_CLICK_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Session.ClickWindow = d
		}
	}
	if v := os.Getenv("SHAPER_SESSION_DEFAULT_REST"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Session.DefaultRest = d
		}
	}
	if v := os.Getenv("SHAPER_DRAFTS_DIR"); v != "" {
		cfg.Drafts.Dir = v
	}
	if v := os.Getenv("SHAPER_REMOTE_URL"); v != "" {
		cfg.Remote.URL = v
	}
	if v := os.Getenv("SHAPER_REMOTE_API_KEY"); v != "" {
		cfg.Remote.APIKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Session.EditDebounce == 0 {
		cfg.Session.EditDebounce = DefaultEditDebounce
	}
	if cfg.Session.ClickWindow == 0 {
		cfg.Session.ClickWindow = DefaultClickWindow
	}
	if cfg.Session.DefaultRest == 0 {
		cfg.Session.DefaultRest = DefaultRest
	}
	if cfg.Drafts.Dir == "" {
		cfg.Drafts.Dir = "data/drafts"
	}
	if cfg.Tailscale.Enabled && cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "shaper"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	if err := c.Database.validate(); err != nil {
		return err
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	return c.Session.validate()
}

func (c *Config) validateClient() error {
	if c.Session.PlanID == "" {
		return fmt.Errorf("session.plan_id is required")
	}
	if c.Remote.URL == "" {
		if err := c.Database.validate(); err != nil {
			return fmt.Errorf("remote.url or database settings required: %w", err)
		}
	}
	return c.Session.validate()
}

func (d DatabaseConfig) validate() error {
	if d.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if d.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if d.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if d.User == "" {
		return fmt.Errorf("database.user is required")
	}
	return nil
}

func (s SessionConfig) validate() error {
	if s.EditDebounce < 0 || s.ClickWindow < 0 || s.DefaultRest < 0 {
		return fmt.Errorf("session durations must not be negative")
	}
	return nil
}
