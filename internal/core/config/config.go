// Package config handles configuration loading and validation for herald.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/colonyops/herald/internal/core/styles"
	"github.com/colonyops/herald/pkg/tmpl"
	"gopkg.in/yaml.v3"
)

// Transport modes accepted by transport.mode.
const (
	ModePush = "push"
	ModePoll = "poll"
)

// Config holds the application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Transport    TransportConfig    `yaml:"transport"`
	Toasts       ToastConfig        `yaml:"toasts"`
	Sound        SoundConfig        `yaml:"sound"`
	Panel        PanelConfig        `yaml:"panel"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Auth         AuthConfig         `yaml:"auth"`
	Serve        ServeConfig        `yaml:"serve"`
	Theme        string             `yaml:"theme"`
	DataDir      string             `yaml:"-"` // set by caller, not from config file
}

// ServerConfig points the client at the events backend.
type ServerConfig struct {
	URL    string `yaml:"url"`     // http(s) base URL; ws(s) is derived from it
	WSPath string `yaml:"ws_path"` // websocket endpoint path
}

// TransportConfig controls how notifications are received.
type TransportConfig struct {
	Mode         string        `yaml:"mode"`          // push (default) or poll
	PollInterval time.Duration `yaml:"poll_interval"` // fallback/poll period
	PushRetry    time.Duration `yaml:"push_retry"`    // 0 disables retrying push from fallback
	DialTimeout  time.Duration `yaml:"dial_timeout"`
}

// ToastConfig overrides toast lifetimes. A negative duration keeps toasts on
// screen until dismissed.
type ToastConfig struct {
	DefaultDuration time.Duration `yaml:"default_duration"`
	ErrorDuration   time.Duration `yaml:"error_duration"`
}

// SoundConfig controls the new-notification sound.
type SoundConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Command string `yaml:"command"` // shell command; empty rings the terminal bell
}

// PanelConfig holds notification panel preferences.
type PanelConfig struct {
	DisplayDays int `yaml:"display_days"` // 7, 15 or 30
}

// ConnectivityConfig controls the backend health probe.
type ConnectivityConfig struct {
	Interval time.Duration `yaml:"interval"`
	Disabled bool          `yaml:"disabled"`
}

// AuthConfig locates the bearer credential.
type AuthConfig struct {
	TokenFile string `yaml:"token_file"` // defaults to <data_dir>/token
}

// ServeConfig configures the reference events server (herald serve).
type ServeConfig struct {
	Listen         string   `yaml:"listen"`
	Secret         string   `yaml:"secret"`
	DBPath         string   `yaml:"db_path"` // defaults to <data_dir>/events.db
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			URL:    "http://localhost:8080",
			WSPath: "/ws",
		},
		Transport: TransportConfig{
			Mode:         ModePush,
			PollInterval: 30 * time.Second,
			DialTimeout:  10 * time.Second,
		},
		Toasts: ToastConfig{
			DefaultDuration: 4 * time.Second,
			ErrorDuration:   5 * time.Second,
		},
		Panel: PanelConfig{
			DisplayDays: 7,
		},
		Connectivity: ConnectivityConfig{
			Interval: 15 * time.Second,
		},
		Serve: ServeConfig{
			Listen:         "127.0.0.1:8080",
			AllowedOrigins: []string{"*"},
		},
		Theme: styles.DefaultTheme,
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Server.URL == "" {
		c.Server.URL = defaults.Server.URL
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = defaults.Server.WSPath
	}
	if c.Transport.Mode == "" {
		c.Transport.Mode = defaults.Transport.Mode
	}
	if c.Transport.PollInterval == 0 {
		c.Transport.PollInterval = defaults.Transport.PollInterval
	}
	if c.Transport.DialTimeout == 0 {
		c.Transport.DialTimeout = defaults.Transport.DialTimeout
	}
	if c.Toasts.DefaultDuration == 0 {
		c.Toasts.DefaultDuration = defaults.Toasts.DefaultDuration
	}
	if c.Toasts.ErrorDuration == 0 {
		c.Toasts.ErrorDuration = defaults.Toasts.ErrorDuration
	}
	if c.Panel.DisplayDays == 0 {
		c.Panel.DisplayDays = defaults.Panel.DisplayDays
	}
	if c.Connectivity.Interval == 0 {
		c.Connectivity.Interval = defaults.Connectivity.Interval
	}
	if c.Serve.Listen == "" {
		c.Serve.Listen = defaults.Serve.Listen
	}
	if len(c.Serve.AllowedOrigins) == 0 {
		c.Serve.AllowedOrigins = defaults.Serve.AllowedOrigins
	}
	if c.Theme == "" {
		c.Theme = defaults.Theme
	}
}

// Validate performs basic validation of the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.url: scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("server.url: missing host")
	}

	if c.Transport.Mode != ModePush && c.Transport.Mode != ModePoll {
		return fmt.Errorf("transport.mode: must be %q or %q, got %q", ModePush, ModePoll, c.Transport.Mode)
	}
	if c.Transport.PollInterval < time.Second {
		return fmt.Errorf("transport.poll_interval: must be at least 1s, got %s", c.Transport.PollInterval)
	}
	if c.Transport.PushRetry < 0 {
		return fmt.Errorf("transport.push_retry: must not be negative")
	}
	if c.Transport.DialTimeout < 0 {
		return fmt.Errorf("transport.dial_timeout: must not be negative")
	}

	if !slices.Contains([]int{7, 15, 30}, c.Panel.DisplayDays) {
		return fmt.Errorf("panel.display_days: must be 7, 15 or 30, got %d", c.Panel.DisplayDays)
	}

	if c.Connectivity.Interval < time.Second {
		return fmt.Errorf("connectivity.interval: must be at least 1s, got %s", c.Connectivity.Interval)
	}

	if err := tmpl.Check(c.Sound.Command); err != nil {
		return fmt.Errorf("sound.command: %w", err)
	}

	if _, ok := styles.GetPalette(c.Theme); !ok {
		return fmt.Errorf("theme: unknown theme %q, available: %v", c.Theme, styles.ThemeNames())
	}

	return nil
}

// SoundEnabled returns the configured initial sound preference (default on).
func (c *Config) SoundEnabled() bool {
	return c.Sound.Enabled == nil || *c.Sound.Enabled
}

// TokenFile returns the path of the stored bearer token.
func (c *Config) TokenFile() string {
	if c.Auth.TokenFile != "" {
		return c.Auth.TokenFile
	}
	return filepath.Join(c.DataDir, "token")
}

// EventsDBPath returns the SQLite path used by the reference server.
func (c *Config) EventsDBPath() string {
	if c.Serve.DBPath != "" {
		return c.Serve.DBPath
	}
	return filepath.Join(c.DataDir, "events.db")
}
