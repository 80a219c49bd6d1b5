package ipc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeHandler struct {
	mu      sync.Mutex
	active  []string
	set     []SetOptionPayload
	reloads int
}

func (h *fakeHandler) Status(context.Context) (*StatusData, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &StatusData{Display: ":1", ActivePlugins: h.active, DaemonRunning: true}, nil
}

func (h *fakeHandler) ListPlugins(context.Context) (*PluginsData, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out PluginsData
	for i, name := range h.active {
		out.Plugins = append(out.Plugins, PluginInfo{Name: name, Active: true, Position: i})
	}
	return &out, nil
}

func (h *fakeHandler) GetOptions(_ context.Context, req OptionsPayload) (*OptionsData, error) {
	if req.Plugin != "fade" {
		return nil, fmt.Errorf("%s: plugin is not active", req.Plugin)
	}
	return &OptionsData{Plugin: req.Plugin, Scope: req.Scope, Options: []OptionInfo{
		{Name: "fade_speed", Type: "float", Value: 5.0, Default: 5.0, Text: "5"},
	}}, nil
}

func (h *fakeHandler) SetOption(_ context.Context, req SetOptionPayload) (*SetOptionData, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.set = append(h.set, req)
	return &SetOptionData{Changed: true, Value: fmt.Sprint(req.Value)}, nil
}

func (h *fakeHandler) Activate(_ context.Context, name string) (*StackData, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active = append(h.active, name)
	return &StackData{ActivePlugins: h.active}, nil
}

func (h *fakeHandler) Deactivate(_ context.Context, name string) (*StackData, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.active) == 0 || h.active[len(h.active)-1] != name {
		return nil, fmt.Errorf("%s is not on top of the stack", name)
	}
	h.active = h.active[:len(h.active)-1]
	return &StackData{ActivePlugins: h.active}, nil
}

func (h *fakeHandler) ListWindows(context.Context) (*WindowsData, error) {
	return &WindowsData{Windows: []WindowInfo{{ID: "0x1a00003", Type: "Normal", Title: "xterm"}}}, nil
}

func (h *fakeHandler) EvalMatch(_ context.Context, expr string) (*EvalMatchData, error) {
	return &EvalMatchData{Expr: strings.TrimSpace(expr), Matches: []string{"0x1a00003"}, Checked: 1}, nil
}

func (h *fakeHandler) Reload(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reloads++
	return nil
}

func startServer(t *testing.T, h Handler) *Client {
	t.Helper()
	// Unix socket paths are length limited; keep it short.
	dir, err := os.MkdirTemp("", "compwm")
	if err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	socket := filepath.Join(dir, "s.sock")
	srv := NewServerAt(socket, h, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(srv.Stop)
	return NewClientAt(socket)
}

func TestClientServerRoundTrip(t *testing.T) {
	h := &fakeHandler{active: []string{"core"}}
	c := startServer(t, h)

	status, err := c.GetStatus()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Display != ":1" || !status.DaemonRunning {
		t.Fatalf("unexpected status %+v", status)
	}

	stack, err := c.Activate("fade")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if diff := cmp.Diff([]string{"core", "fade"}, stack.ActivePlugins); diff != "" {
		t.Fatalf("stack (-want +got):\n%s", diff)
	}

	opts, err := c.GetOptions("fade", "display")
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if len(opts.Options) != 1 || opts.Options[0].Value != 5.0 {
		t.Fatalf("unexpected options %+v", opts)
	}

	res, err := c.SetOption("fade", "display", "fade_speed", 2.5)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !res.Changed || res.Value != "2.5" {
		t.Fatalf("unexpected set result %+v", res)
	}
	want := []SetOptionPayload{{Plugin: "fade", Scope: "display", Name: "fade_speed", Value: 2.5}}
	h.mu.Lock()
	got := h.set
	h.mu.Unlock()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("set payloads (-want +got):\n%s", diff)
	}

	m, err := c.EvalMatch(" class=XTerm ")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if m.Expr != "class=XTerm" || m.Checked != 1 {
		t.Fatalf("unexpected eval result %+v", m)
	}

	if err := c.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.reloads != 1 {
		t.Fatalf("expected one reload, got %d", h.reloads)
	}
}

func TestServerErrors(t *testing.T) {
	h := &fakeHandler{active: []string{"core", "fade"}}
	c := startServer(t, h)

	if _, err := c.Deactivate("core"); err == nil || !strings.Contains(err.Error(), "not on top") {
		t.Fatalf("expected handler error, got %v", err)
	}
	if _, err := c.Activate(""); err == nil || !strings.Contains(err.Error(), "plugin name is required") {
		t.Fatalf("expected name error, got %v", err)
	}
	if _, err := c.GetOptions("cube", ""); err == nil {
		t.Fatalf("expected error for inactive plugin")
	}
	if err := c.call(CommandType("BOGUS"), nil, nil); err == nil || !strings.Contains(err.Error(), "Unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
	if err := c.call(CommandEvalMatch, nil, nil); err == nil || !strings.Contains(err.Error(), "missing payload") {
		t.Fatalf("expected missing payload error, got %v", err)
	}
}

func TestClientWithoutDaemon(t *testing.T) {
	c := NewClientAt(filepath.Join(t.TempDir(), "missing.sock"))
	if _, err := c.GetStatus(); err == nil || !strings.Contains(err.Error(), "is the daemon running") {
		t.Fatalf("expected connection error, got %v", err)
	}
}
