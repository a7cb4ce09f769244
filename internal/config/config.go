// Package config loads offramp settings from viper, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/offramp/internal/anchor"
	"github.com/Veraticus/offramp/internal/common"
	"github.com/Veraticus/offramp/internal/session"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Default values for settings that are not configured.
const (
	DefaultDatabasePath  = "$HOME/.local/share/offramp/offramp.db"
	DefaultLogFile       = "$HOME/.local/share/offramp/offramp.log"
	DefaultPollInterval  = 5 * time.Second
	DefaultAnchorTimeout = 30 * time.Second
	DefaultCurrency      = "USD"
	DefaultAccountID     = "offramp"
)

// Config is the application configuration.
type Config struct {
	Session  session.Session
	Anchor   AnchorConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Export   ExportConfig
	Poll     PollConfig
}

// AnchorConfig configures the wallet backend's anchor endpoints.
type AnchorConfig struct {
	BaseURL      string
	CallbackMode anchor.CallbackMode
	CallbackURL  string
	Timeout      time.Duration
}

// PollConfig configures the status polling loop.
type PollConfig struct {
	Interval    time.Duration
	MaxFailures int
}

// DatabaseConfig configures local persistence.
type DatabaseConfig struct {
	Path string
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string
	Format string
	File   string // used by the TUI, which owns the terminal
}

// ExportConfig configures the OFX statement.
type ExportConfig struct {
	Currency  string
	AccountID string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("anchor.callback_mode", string(anchor.CallbackPostMessage))
	v.SetDefault("anchor.timeout", DefaultAnchorTimeout)
	v.SetDefault("poll.interval", DefaultPollInterval)
	v.SetDefault("poll.max_failures", 0)
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", DefaultLogFile)
	v.SetDefault("export.currency", DefaultCurrency)
	v.SetDefault("export.account_id", DefaultAccountID)
}

// LoadDotEnv loads environment variables from .env files. Missing files are
// not an error; variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(expandPath(p)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the configuration. It follows this precedence:
// 1. Viper configuration (from config file or OFFRAMP_ env vars)
// 2. Direct environment variables (ANCHOR_*)
// 3. Default values.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Anchor: AnchorConfig{
			BaseURL:     v.GetString("anchor.base_url"),
			CallbackURL: v.GetString("anchor.callback_url"),
			Timeout:     v.GetDuration("anchor.timeout"),
		},
		Poll: PollConfig{
			Interval:    v.GetDuration("poll.interval"),
			MaxFailures: v.GetInt("poll.max_failures"),
		},
		Session: session.Session{
			AccessToken: v.GetString("session.access_token"),
			PublicKey:   v.GetString("session.public_key"),
		},
		Database: DatabaseConfig{
			Path: expandPath(orDefault(v.GetString("database.path"), DefaultDatabasePath)),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
			File:   expandPath(orDefault(v.GetString("logging.file"), DefaultLogFile)),
		},
		Export: ExportConfig{
			Currency:  strings.ToUpper(v.GetString("export.currency")),
			AccountID: v.GetString("export.account_id"),
		},
	}

	// Override with direct environment variables if not set
	if cfg.Anchor.BaseURL == "" {
		cfg.Anchor.BaseURL = os.Getenv("ANCHOR_BASE_URL")
	}
	if cfg.Session.AccessToken == "" {
		cfg.Session.AccessToken = os.Getenv("ANCHOR_ACCESS_TOKEN")
	}
	if cfg.Session.PublicKey == "" {
		cfg.Session.PublicKey = os.Getenv("ANCHOR_PUBLIC_KEY")
	}

	mode, err := anchor.ParseCallbackMode(v.GetString("anchor.callback_mode"))
	if err != nil {
		return nil, err
	}
	cfg.Anchor.CallbackMode = mode

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("%w: poll.interval must be positive", common.ErrInvalidConfig)
	}
	if c.Poll.MaxFailures < 0 {
		return fmt.Errorf("%w: poll.max_failures cannot be negative", common.ErrInvalidConfig)
	}
	if c.Anchor.Timeout < 0 {
		return fmt.Errorf("%w: anchor.timeout cannot be negative", common.ErrInvalidConfig)
	}
	if c.Anchor.CallbackMode == anchor.CallbackURL && c.Anchor.CallbackURL == "" {
		return fmt.Errorf("%w: anchor.callback_url is required when anchor.callback_mode is url", common.ErrMissingConfig)
	}
	if len(c.Export.Currency) != 3 {
		return fmt.Errorf("%w: export.currency must be an ISO 4217 code", common.ErrInvalidConfig)
	}
	return nil
}

// RequireAnchor checks the settings needed to talk to the backend.
func (c *Config) RequireAnchor() error {
	if strings.TrimSpace(c.Anchor.BaseURL) == "" {
		return fmt.Errorf("%w: anchor.base_url (or ANCHOR_BASE_URL)", common.ErrMissingConfig)
	}
	return nil
}

// expandPath resolves a leading ~ and $VARS in database, log and .env paths.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return os.ExpandEnv(path)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
