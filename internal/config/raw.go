package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

// RawPluginOptions is one plugin's option block as written in a file.
type RawPluginOptions struct {
	Display map[string]any            `yaml:"display"`
	Screens map[string]map[string]any `yaml:"screens"`
}

// RawConfig is one file's content. Nil fields were not set in that file.
type RawConfig struct {
	Include             IncludeList                 `yaml:"include"`
	Display             *string                     `yaml:"display"`
	XAuthority          *string                     `yaml:"xauthority"`
	LogLevel            *string                     `yaml:"log_level"`
	PluginDir           *string                     `yaml:"plugin_dir"`
	ActivePlugins       []string                    `yaml:"active_plugins"`
	ReconcileIntervalMs *int                        `yaml:"reconcile_interval_ms"`
	Options             map[string]RawPluginOptions `yaml:"options"`
}

// merge overlays other onto r. Scalars and active_plugins are replaced;
// option maps are merged key by key.
func (r RawConfig) merge(other RawConfig) RawConfig {
	out := r
	out.Include = nil
	if other.Display != nil {
		out.Display = other.Display
	}
	if other.XAuthority != nil {
		out.XAuthority = other.XAuthority
	}
	if other.LogLevel != nil {
		out.LogLevel = other.LogLevel
	}
	if other.PluginDir != nil {
		out.PluginDir = other.PluginDir
	}
	if other.ActivePlugins != nil {
		out.ActivePlugins = append([]string(nil), other.ActivePlugins...)
	}
	if other.ReconcileIntervalMs != nil {
		out.ReconcileIntervalMs = other.ReconcileIntervalMs
	}
	if len(other.Options) > 0 {
		merged := make(map[string]RawPluginOptions, len(r.Options)+len(other.Options))
		for name, opts := range r.Options {
			merged[name] = opts
		}
		for name, opts := range other.Options {
			merged[name] = mergePluginOptions(merged[name], opts)
		}
		out.Options = merged
	}
	return out
}

func mergePluginOptions(base, over RawPluginOptions) RawPluginOptions {
	out := RawPluginOptions{
		Display: mergeValues(base.Display, over.Display),
	}
	if len(base.Screens) > 0 || len(over.Screens) > 0 {
		out.Screens = make(map[string]map[string]any)
		for k, v := range base.Screens {
			out.Screens[k] = mergeValues(nil, v)
		}
		for k, v := range over.Screens {
			out.Screens[k] = mergeValues(out.Screens[k], v)
		}
	}
	return out
}

func mergeValues(base, over map[string]any) map[string]any {
	if len(base) == 0 && len(over) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}
