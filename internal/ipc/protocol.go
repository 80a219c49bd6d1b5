package ipc

import (
	"encoding/json"
	"fmt"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload      CommandType = "RELOAD"
	CommandGetStatus   CommandType = "GET_STATUS"
	CommandListPlugins CommandType = "LIST_PLUGINS"
	CommandGetOptions  CommandType = "GET_OPTIONS"
	CommandSetOption   CommandType = "SET_OPTION"
	CommandActivate    CommandType = "ACTIVATE"
	CommandDeactivate  CommandType = "DEACTIVATE"
	CommandListWindows CommandType = "LIST_WINDOWS"
	CommandEvalMatch   CommandType = "EVAL_MATCH"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	Display       string   `json:"display"`
	ConfigPath    string   `json:"config_path"`
	ActivePlugins []string `json:"active_plugins"`
	Screens       int      `json:"screens"`
	Windows       int      `json:"windows"`
	MatchPrefixes []string `json:"match_prefixes"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	DaemonRunning bool     `json:"daemon_running"`
}

// PluginInfo describes one loadable plugin.
type PluginInfo struct {
	Name         string   `json:"name"`
	Active       bool     `json:"active"`
	Position     int      `json:"position"` // index in the stack, -1 when inactive
	Source       string   `json:"source,omitempty"`
	Deps         []string `json:"deps,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// PluginsData represents the data returned by LIST_PLUGINS
type PluginsData struct {
	Plugins []PluginInfo `json:"plugins"`
}

// PluginPayload names the plugin for ACTIVATE and DEACTIVATE.
type PluginPayload struct {
	Name string `json:"name"`
}

// OptionsPayload selects the options returned by GET_OPTIONS. Scope is
// "display", "screens.N" or "screens.all".
type OptionsPayload struct {
	Plugin string `json:"plugin"`
	Scope  string `json:"scope,omitempty"`
}

// OptionInfo describes one option and its current value.
type OptionInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	ElementType string `json:"element_type,omitempty"`
	Short       string `json:"short,omitempty"`
	Long        string `json:"long,omitempty"`
	Value       any    `json:"value"`
	Default     any    `json:"default"`
	Text        string `json:"text"`
	Restriction string `json:"restriction,omitempty"`
}

// OptionsData represents the data returned by GET_OPTIONS
type OptionsData struct {
	Plugin  string       `json:"plugin"`
	Scope   string       `json:"scope"`
	Options []OptionInfo `json:"options"`
}

// SetOptionPayload represents the payload for SET_OPTION. Value is plain
// JSON data or text in the option's textual form.
type SetOptionPayload struct {
	Plugin string `json:"plugin"`
	Scope  string `json:"scope,omitempty"`
	Name   string `json:"name"`
	Value  any    `json:"value"`
}

// SetOptionData reports the outcome of SET_OPTION.
type SetOptionData struct {
	Changed bool   `json:"changed"`
	Value   string `json:"value"`
}

// StackData is returned by ACTIVATE and DEACTIVATE.
type StackData struct {
	ActivePlugins []string `json:"active_plugins"`
}

// WindowInfo describes one managed window.
type WindowInfo struct {
	ID               string `json:"id"`
	Screen           int    `json:"screen"`
	Type             string `json:"type"`
	State            string `json:"state"`
	Title            string `json:"title,omitempty"`
	Class            string `json:"class,omitempty"`
	Instance         string `json:"instance,omitempty"`
	Role             string `json:"role,omitempty"`
	X                int    `json:"x"`
	Y                int    `json:"y"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	Mapped           bool   `json:"mapped"`
	OverrideRedirect bool   `json:"override_redirect,omitempty"`
	Alpha            bool   `json:"alpha,omitempty"`
	Opacity          uint16 `json:"opacity"`
}

// WindowsData represents the data returned by LIST_WINDOWS
type WindowsData struct {
	Windows []WindowInfo `json:"windows"`
}

// EvalMatchPayload represents the payload for EVAL_MATCH.
type EvalMatchPayload struct {
	Expr string `json:"expr"`
}

// EvalMatchData lists the windows an expression matches. Expr is the
// normalised form of the input.
type EvalMatchData struct {
	Expr    string   `json:"expr"`
	Matches []string `json:"matches"`
	Checked int      `json:"checked"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
