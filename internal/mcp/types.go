package mcp

import "github.com/1broseidon/compwm/internal/ipc"

// EmptyInput is the input of tools that take no arguments.
type EmptyInput struct{}

// StatusOutput is the output for the get_status tool.
type StatusOutput struct {
	Display       string   `json:"display"`
	ConfigPath    string   `json:"config_path"`
	ActivePlugins []string `json:"active_plugins"`
	Screens       int      `json:"screens"`
	Windows       int      `json:"windows"`
	MatchPrefixes []string `json:"match_prefixes"`
	UptimeSeconds int64    `json:"uptime_seconds"`
}

// ListPluginsOutput is the output for the list_plugins tool.
type ListPluginsOutput struct {
	Plugins []ipc.PluginInfo `json:"plugins"`
}

// GetOptionsInput is the input for the get_options tool.
type GetOptionsInput struct {
	Plugin string `json:"plugin" jsonschema:"Name of an active plugin (e.g. core, fade, cube)"`
	Scope  string `json:"scope,omitempty" jsonschema:"Option scope: display (default), screens.N or screens.all"`
	Name   string `json:"name,omitempty" jsonschema:"Only return the option with this name"`
}

// GetOptionsOutput is the output for the get_options tool.
type GetOptionsOutput struct {
	Plugin  string           `json:"plugin"`
	Scope   string           `json:"scope"`
	Options []ipc.OptionInfo `json:"options"`
}

// SetOptionInput is the input for the set_option tool.
type SetOptionInput struct {
	Plugin string `json:"plugin" jsonschema:"Name of an active plugin"`
	Scope  string `json:"scope,omitempty" jsonschema:"Option scope: display (default), screens.N or screens.all"`
	Name   string `json:"name" jsonschema:"Option name"`
	Value  any    `json:"value" jsonschema:"New value: a JSON scalar or list, or the option's text form (e.g. #ff0000, Control-Mod1-Down, type=Normal)"`
}

// SetOptionOutput is the output for the set_option tool. Changed is false
// when the value equals the stored one or the option refused it.
type SetOptionOutput struct {
	Changed bool   `json:"changed"`
	Value   string `json:"value"`
}

// PluginInput names a plugin.
type PluginInput struct {
	Name string `json:"name" jsonschema:"Plugin name"`
}

// StackOutput is the plugin stack after a change, bottom first.
type StackOutput struct {
	ActivePlugins []string `json:"active_plugins"`
}

// ListWindowsInput is the input for the list_windows tool.
type ListWindowsInput struct {
	Match  string `json:"match,omitempty" jsonschema:"Only list windows matching this match expression"`
	Screen *int   `json:"screen,omitempty" jsonschema:"Only list windows on this screen"`
}

// ListWindowsOutput is the output for the list_windows tool.
type ListWindowsOutput struct {
	Windows []ipc.WindowInfo `json:"windows"`
}

// MatchInput is the input for the match tools.
type MatchInput struct {
	Expr string `json:"expr" jsonschema:"Match expression, e.g. type=Normal & !class=^Firefox$"`
}

// EvalMatchOutput is the output for the eval_match tool.
type EvalMatchOutput struct {
	Expr    string   `json:"expr"`
	Matches []string `json:"matches"`
	Checked int      `json:"checked"`
}

// ParseMatchOutput is the output for the parse_match tool.
type ParseMatchOutput struct {
	Expr  string `json:"expr"`
	Empty bool   `json:"empty"`
}

// ReloadOutput is the output for the reload_config tool.
type ReloadOutput struct {
	Reloaded      bool     `json:"reloaded"`
	ActivePlugins []string `json:"active_plugins"`
}
