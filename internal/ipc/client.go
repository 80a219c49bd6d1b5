package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/compwm/internal/runtimepath"
)

// API is the control surface the daemon serves. *Client implements it; tools
// and tests depend on the interface.
type API interface {
	GetStatus() (*StatusData, error)
	ListPlugins() (*PluginsData, error)
	GetOptions(plugin, scope string) (*OptionsData, error)
	SetOption(plugin, scope, name string, value any) (*SetOptionData, error)
	Activate(name string) (*StackData, error)
	Deactivate(name string) (*StackData, error)
	ListWindows() (*WindowsData, error)
	EvalMatch(expr string) (*EvalMatchData, error)
	Reload() error
}

var _ API = (*Client)(nil)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the default socket path.
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientAt(socketPath)
}

// NewClientAt creates a client for socketPath.
func NewClientAt(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	respData, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return &resp, nil
}

// call sends cmd with payload and decodes the response data into out when
// out is non-nil.
func (c *Client) call(cmd CommandType, payload any, out any) error {
	req := &Request{Command: cmd}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		req.Payload = raw
	}
	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return nil
}

// Reload asks the daemon to reload its configuration file.
func (c *Client) Reload() error {
	return c.call(CommandReload, nil, nil)
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	var out StatusData
	if err := c.call(CommandGetStatus, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPlugins lists active and available plugins.
func (c *Client) ListPlugins() (*PluginsData, error) {
	var out PluginsData
	if err := c.call(CommandListPlugins, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOptions returns a plugin's options in scope.
func (c *Client) GetOptions(plugin, scope string) (*OptionsData, error) {
	var out OptionsData
	if err := c.call(CommandGetOptions, OptionsPayload{Plugin: plugin, Scope: scope}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetOption sets one option. value may be text or decoded JSON data.
func (c *Client) SetOption(plugin, scope, name string, value any) (*SetOptionData, error) {
	var out SetOptionData
	payload := SetOptionPayload{Plugin: plugin, Scope: scope, Name: name, Value: value}
	if err := c.call(CommandSetOption, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Activate pushes a plugin onto the stack.
func (c *Client) Activate(name string) (*StackData, error) {
	var out StackData
	if err := c.call(CommandActivate, PluginPayload{Name: name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Deactivate pops a plugin; it must be on top of the stack.
func (c *Client) Deactivate(name string) (*StackData, error) {
	var out StackData
	if err := c.call(CommandDeactivate, PluginPayload{Name: name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListWindows lists the managed windows.
func (c *Client) ListWindows() (*WindowsData, error) {
	var out WindowsData
	if err := c.call(CommandListWindows, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EvalMatch evaluates expr against every managed window.
func (c *Client) EvalMatch(expr string) (*EvalMatchData, error) {
	var out EvalMatchData
	if err := c.call(CommandEvalMatch, EvalMatchPayload{Expr: expr}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
