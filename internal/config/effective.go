package config

import (
	"fmt"
)

// ValidationError points at the configuration path that failed validation.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// BuildEffectiveConfig applies raw on top of the defaults.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	if raw.Display != nil {
		cfg.Display = *raw.Display
	}
	if raw.XAuthority != nil {
		cfg.XAuthority = *raw.XAuthority
	}
	if raw.LogLevel != nil {
		cfg.LogLevel = *raw.LogLevel
	}
	if raw.PluginDir != nil {
		cfg.PluginDir = *raw.PluginDir
	}
	if raw.ActivePlugins != nil {
		cfg.ActivePlugins = append([]string(nil), raw.ActivePlugins...)
	}
	if raw.ReconcileIntervalMs != nil {
		cfg.ReconcileIntervalMs = *raw.ReconcileIntervalMs
	}
	for name, opts := range raw.Options {
		if opts.Display == nil && opts.Screens == nil {
			return nil, &ValidationError{Path: "options." + name, Err: fmt.Errorf("expected display or screens")}
		}
		cfg.Options[name] = PluginOptions{Display: opts.Display, Screens: opts.Screens}
	}
	return cfg, nil
}
