// Package config provides client configuration for lexdesk.
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

	"gopkg.in/ini.v1"
)

// Config is the lexdesk client configuration.
//
// Config file location:
//   - Windows: %USERPROFILE%\.config\lex\config
//   - Unix: ~/.config/lex/config
//
// INI format:
//
//	[engine]
//	socket_path = ~/.config/lex/engine.sock
//	launch_command = lex-engine
//	dial_timeout_seconds = 5
//
//	[ui]
//	error_auto_clear_seconds = 10
//	buffer_rows = 10
//
//	[notifications]
//	enabled = true
type Config struct {
	Engine        EngineConfig
	UI            UIConfig
	Notifications NotificationConfig
}

// EngineConfig describes how to reach (or start) the engine process.
type EngineConfig struct {
	// SocketPath is the engine's unix socket. Empty means the default
	// under ~/.config/lex.
	SocketPath string `ini:"socket_path"`

	// LaunchCommand starts the engine when the socket is unreachable.
	// Space-separated; empty disables auto-launch.
	LaunchCommand string `ini:"launch_command"`

	// DialTimeoutSeconds bounds the initial connection attempt.
	// Default: 5
	DialTimeoutSeconds int `ini:"dial_timeout_seconds"`
}

// UIConfig holds client-side presentation tunables.
type UIConfig struct {
	// ErrorAutoClearSeconds is how long an error banner stays before
	// auto-dismissing. 0 disables auto-clear. Default: 10
	ErrorAutoClearSeconds int `ini:"error_auto_clear_seconds"`

	// BufferRows is the overscan row count on each side of the visible
	// window. Default: 10
	BufferRows int `ini:"buffer_rows"`
}

// NotificationConfig controls desktop notifications.
type NotificationConfig struct {
	// Enabled indicates whether notifications are shown. Default: true
	Enabled bool `ini:"enabled"`
}

// Validation errors
var (
	ErrInvalidDialTimeout = errors.New("dial_timeout_seconds must be between 1 and 60")
	ErrInvalidBufferRows  = errors.New("buffer_rows must be between 0 and 200")
)

// DefaultPath returns the default config file path.
func DefaultPath() (string, error) {
	var configDir string
	if runtime.GOOS == "windows" {
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", errors.New("USERPROFILE environment variable not set")
		}
		configDir = filepath.Join(userProfile, ".config", "lex")
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "lex")
	}
	return filepath.Join(configDir, "config"), nil
}

// New returns a Config with default values.
func New() *Config {
	return &Config{
		Engine: EngineConfig{
			DialTimeoutSeconds: 5,
		},
		UI: UIConfig{
			ErrorAutoClearSeconds: 10,
			BufferRows:            10,
		},
		Notifications: NotificationConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration from an INI file, then applies environment
// overrides. A missing file returns defaults with no error; an invalid
// file is an error.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			cfg.applyEnv()
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); err == nil {
		iniFile, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}

		engineSection := iniFile.Section("engine")
		cfg.Engine.SocketPath = engineSection.Key("socket_path").String()
		cfg.Engine.LaunchCommand = engineSection.Key("launch_command").String()
		cfg.Engine.DialTimeoutSeconds = engineSection.Key("dial_timeout_seconds").MustInt(cfg.Engine.DialTimeoutSeconds)

		uiSection := iniFile.Section("ui")
		cfg.UI.ErrorAutoClearSeconds = uiSection.Key("error_auto_clear_seconds").MustInt(cfg.UI.ErrorAutoClearSeconds)
		cfg.UI.BufferRows = uiSection.Key("buffer_rows").MustInt(cfg.UI.BufferRows)

		notifySection := iniFile.Section("notifications")
		cfg.Notifications.Enabled = notifySection.Key("enabled").MustBool(true)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays LEX_* environment variables on top of file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("LEX_ENGINE_SOCKET"); v != "" {
		c.Engine.SocketPath = v
	}
	if v := os.Getenv("LEX_ENGINE_LAUNCH"); v != "" {
		c.Engine.LaunchCommand = v
	}
	if v := os.Getenv("LEX_NOTIFICATIONS"); v != "" {
		c.Notifications.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("LEX_BUFFER_ROWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.UI.BufferRows = n
		}
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Engine.DialTimeoutSeconds < 1 || c.Engine.DialTimeoutSeconds > 60 {
		return ErrInvalidDialTimeout
	}
	if c.UI.BufferRows < 0 || c.UI.BufferRows > 200 {
		return ErrInvalidBufferRows
	}
	return nil
}

// Save writes the configuration to an INI file, creating parent
// directories as needed. Uses a temp file plus rename for atomicity.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	engineSection, err := iniFile.NewSection("engine")
	if err != nil {
		return fmt.Errorf("failed to create engine section: %w", err)
	}
	engineSection.Key("socket_path").SetValue(cfg.Engine.SocketPath)
	engineSection.Key("launch_command").SetValue(cfg.Engine.LaunchCommand)
	engineSection.Key("dial_timeout_seconds").SetValue(strconv.Itoa(cfg.Engine.DialTimeoutSeconds))

	uiSection, err := iniFile.NewSection("ui")
	if err != nil {
		return fmt.Errorf("failed to create ui section: %w", err)
	}
	uiSection.Key("error_auto_clear_seconds").SetValue(strconv.Itoa(cfg.UI.ErrorAutoClearSeconds))
	uiSection.Key("buffer_rows").SetValue(strconv.Itoa(cfg.UI.BufferRows))

	notifySection, err := iniFile.NewSection("notifications")
	if err != nil {
		return fmt.Errorf("failed to create notifications section: %w", err)
	}
	notifySection.Key("enabled").SetValue(fmt.Sprintf("%t", cfg.Notifications.Enabled))

	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to install config: %w", err)
	}
	return nil
}

// DialTimeout returns the engine dial timeout as a duration.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Engine.DialTimeoutSeconds) * time.Second
}

// ErrorAutoClear returns the error banner auto-clear duration; 0 disables.
func (c *Config) ErrorAutoClear() time.Duration {
	return time.Duration(c.UI.ErrorAutoClearSeconds) * time.Second
}

// LaunchCommand returns the engine launch command split into argv form.
func (c *Config) LaunchCommand() []string {
	return strings.Fields(c.Engine.LaunchCommand)
}
