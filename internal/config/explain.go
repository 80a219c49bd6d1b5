package config

import (
	"fmt"
	"strings"
)

// Explain returns the effective value at a dotted path and where it came
// from.
//
// Supported paths:
//
//	display
//	xauthority
//	log_level
//	plugin_dir
//	active_plugins
//	reconcile_interval_ms
//	options.<plugin>.display.<option>
//	options.<plugin>.screens.<all|N>.<option>
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}
	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}
	return value, Source{Kind: SourceDefault}, nil
}

func lookupValue(cfg *Config, path string) (any, error) {
	parts := strings.Split(path, ".")
	if parts[0] != "options" && len(parts) != 1 {
		return nil, fmt.Errorf("unknown path %q", path)
	}
	switch parts[0] {
	case "display":
		return cfg.Display, nil
	case "xauthority":
		return cfg.XAuthority, nil
	case "log_level":
		return cfg.LogLevel, nil
	case "plugin_dir":
		return cfg.PluginDir, nil
	case "active_plugins":
		return append([]string(nil), cfg.ActivePlugins...), nil
	case "reconcile_interval_ms":
		return cfg.ReconcileIntervalMs, nil
	case "options":
		return lookupOption(cfg, path, parts[1:])
	}
	return nil, fmt.Errorf("unknown path %q", path)
}

func lookupOption(cfg *Config, path string, parts []string) (any, error) {
	if len(parts) < 2 {
		return nil, fmt.Errorf("path %q: expected options.<plugin>.display.<option> or options.<plugin>.screens.<key>.<option>", path)
	}
	opts, ok := cfg.Options[parts[0]]
	if !ok {
		return nil, fmt.Errorf("path %q: no options stored for plugin %q", path, parts[0])
	}

	var values map[string]any
	var rest []string
	switch parts[1] {
	case "display":
		values, rest = opts.Display, parts[2:]
	case "screens":
		if len(parts) < 3 {
			return nil, fmt.Errorf("path %q: screen key missing", path)
		}
		values, rest = opts.Screens[parts[2]], parts[3:]
	default:
		return nil, fmt.Errorf("path %q: unknown section %q", path, parts[1])
	}
	if len(rest) != 1 {
		return nil, fmt.Errorf("path %q: expected a single option name", path)
	}
	v, ok := values[rest[0]]
	if !ok {
		return nil, fmt.Errorf("path %q: option not set", path)
	}
	return v, nil
}
