package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// AllScreens is the screens key that addresses every screen.
const AllScreens = "all"

// PluginOptions holds the stored option values of one plugin. Values are the
// plain YAML scalars or lists; they are converted by the option's type when
// applied.
type PluginOptions struct {
	Display map[string]any            `yaml:"display,omitempty"`
	Screens map[string]map[string]any `yaml:"screens,omitempty"`
}

// ScreenKeys returns the screen keys in application order: "all" first, then
// numeric indices ascending.
func (p PluginOptions) ScreenKeys() []string {
	keys := make([]string, 0, len(p.Screens))
	for k := range p.Screens {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == AllScreens || keys[j] == AllScreens {
			return keys[i] == AllScreens && keys[j] != AllScreens
		}
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a < b
	})
	return keys
}

// Config is the effective daemon configuration.
type Config struct {
	// Display is the X display to manage; empty uses $DISPLAY.
	Display string `yaml:"display"`
	// XAuthority overrides $XAUTHORITY when set.
	XAuthority          string                   `yaml:"xauthority"`
	LogLevel            string                   `yaml:"log_level"`
	PluginDir           string                   `yaml:"plugin_dir"`
	ActivePlugins       []string                 `yaml:"active_plugins"`
	ReconcileIntervalMs int                      `yaml:"reconcile_interval_ms"`
	Options             map[string]PluginOptions `yaml:"options"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:            "info",
		PluginDir:           defaultPluginDir(),
		ActivePlugins:       []string{"core", "regex", "fade", "cube"},
		ReconcileIntervalMs: 250,
		Options:             map[string]PluginOptions{},
	}
}

func defaultPluginDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "compwm", "plugins")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "compwm", "plugins")
}

// DefaultConfigPath returns ~/.config/compwm/config.yaml.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "compwm", "config.yaml"), nil
}

// ReconcileInterval returns the reconcile period.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalMs) * time.Millisecond
}

// SlogLevel maps log_level onto slog levels.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks the effective configuration. Option values are only checked
// for shape here; their types and ranges are enforced by the plugins' setters
// when applied.
func (c *Config) Validate() error {
	if c.LogLevel != "debug" && c.LogLevel != "info" && c.LogLevel != "warning" && c.LogLevel != "error" {
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warning, error")}
	}
	if c.ReconcileIntervalMs < 50 {
		return &ValidationError{Path: "reconcile_interval_ms", Err: fmt.Errorf("reconcile_interval_ms must be >= 50")}
	}
	seen := make(map[string]bool)
	for i, name := range c.ActivePlugins {
		if strings.TrimSpace(name) == "" {
			return &ValidationError{Path: "active_plugins", Err: fmt.Errorf("entry %d is empty", i)}
		}
		if seen[name] {
			return &ValidationError{Path: "active_plugins", Err: fmt.Errorf("plugin %q listed twice", name)}
		}
		seen[name] = true
	}
	for plugin, opts := range c.Options {
		base := "options." + plugin
		if strings.TrimSpace(plugin) == "" {
			return &ValidationError{Path: "options", Err: fmt.Errorf("plugin name is empty")}
		}
		for name := range opts.Display {
			if strings.TrimSpace(name) == "" {
				return &ValidationError{Path: base + ".display", Err: fmt.Errorf("option name is empty")}
			}
		}
		for key, values := range opts.Screens {
			if key != AllScreens {
				if n, err := strconv.Atoi(key); err != nil || n < 0 {
					return &ValidationError{Path: base + ".screens." + key, Err: fmt.Errorf("screen key must be %q or a screen index", AllScreens)}
				}
			}
			for name := range values {
				if strings.TrimSpace(name) == "" {
					return &ValidationError{Path: base + ".screens." + key, Err: fmt.Errorf("option name is empty")}
				}
			}
		}
	}
	return nil
}
