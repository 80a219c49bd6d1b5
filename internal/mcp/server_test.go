package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/1broseidon/compwm/internal/ipc"
)

type fakeDaemon struct {
	status   ipc.StatusData
	options  ipc.OptionsData
	windows  []ipc.WindowInfo
	matches  []string
	stack    []string
	setCalls []ipc.SetOptionPayload
	reloaded int
	err      error
}

func (f *fakeDaemon) GetStatus() (*ipc.StatusData, error) {
	if f.err != nil {
		return nil, f.err
	}
	st := f.status
	st.ActivePlugins = f.stack
	return &st, nil
}

func (f *fakeDaemon) ListPlugins() (*ipc.PluginsData, error) {
	return &ipc.PluginsData{}, f.err
}

func (f *fakeDaemon) GetOptions(plugin, scope string) (*ipc.OptionsData, error) {
	if f.err != nil {
		return nil, f.err
	}
	data := f.options
	data.Plugin = plugin
	data.Scope = "display"
	if scope != "" {
		data.Scope = scope
	}
	return &data, nil
}

func (f *fakeDaemon) SetOption(plugin, scope, name string, value any) (*ipc.SetOptionData, error) {
	f.setCalls = append(f.setCalls, ipc.SetOptionPayload{Plugin: plugin, Scope: scope, Name: name, Value: value})
	return &ipc.SetOptionData{Changed: true, Value: "2000"}, f.err
}

func (f *fakeDaemon) Activate(name string) (*ipc.StackData, error) {
	f.stack = append(f.stack, name)
	return &ipc.StackData{ActivePlugins: f.stack}, nil
}

func (f *fakeDaemon) Deactivate(name string) (*ipc.StackData, error) {
	if len(f.stack) == 0 || f.stack[len(f.stack)-1] != name {
		return nil, errors.New("not on top")
	}
	f.stack = f.stack[:len(f.stack)-1]
	return &ipc.StackData{ActivePlugins: f.stack}, nil
}

func (f *fakeDaemon) ListWindows() (*ipc.WindowsData, error) {
	return &ipc.WindowsData{Windows: f.windows}, f.err
}

func (f *fakeDaemon) EvalMatch(expr string) (*ipc.EvalMatchData, error) {
	return &ipc.EvalMatchData{Expr: expr, Matches: f.matches, Checked: len(f.windows)}, f.err
}

func (f *fakeDaemon) Reload() error {
	f.reloaded++
	return f.err
}

func newTestServer(d *fakeDaemon) *Server {
	return NewServer(d, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGetOptionsFiltersByName(t *testing.T) {
	d := &fakeDaemon{options: ipc.OptionsData{Options: []ipc.OptionInfo{
		{Name: "ping_delay", Type: "int", Value: 5000, Text: "5000"},
		{Name: "audible_bell", Type: "bool", Value: true, Text: "true"},
	}}}
	s := newTestServer(d)

	_, out, err := s.handleGetOptions(context.Background(), nil, GetOptionsInput{Plugin: "core", Name: "audible_bell"})
	if err != nil {
		t.Fatalf("handleGetOptions: %v", err)
	}
	want := GetOptionsOutput{
		Plugin:  "core",
		Scope:   "display",
		Options: []ipc.OptionInfo{{Name: "audible_bell", Type: "bool", Value: true, Text: "true"}},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}

	if _, _, err := s.handleGetOptions(context.Background(), nil, GetOptionsInput{Plugin: "core", Name: "missing"}); err == nil {
		t.Error("expected error for unknown option name")
	}
	if _, _, err := s.handleGetOptions(context.Background(), nil, GetOptionsInput{}); err == nil {
		t.Error("expected error for missing plugin")
	}
}

func TestSetOptionForwardsValue(t *testing.T) {
	d := &fakeDaemon{}
	s := newTestServer(d)

	_, out, err := s.handleSetOption(context.Background(), nil, SetOptionInput{Plugin: "core", Name: "ping_delay", Value: 2000.0})
	if err != nil {
		t.Fatalf("handleSetOption: %v", err)
	}
	if diff := cmp.Diff(SetOptionOutput{Changed: true, Value: "2000"}, out); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
	want := []ipc.SetOptionPayload{{Plugin: "core", Name: "ping_delay", Value: 2000.0}}
	if diff := cmp.Diff(want, d.setCalls); diff != "" {
		t.Errorf("calls (-want +got):\n%s", diff)
	}

	if _, _, err := s.handleSetOption(context.Background(), nil, SetOptionInput{Plugin: "core"}); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestPluginStackTools(t *testing.T) {
	d := &fakeDaemon{stack: []string{"core"}}
	s := newTestServer(d)
	ctx := context.Background()

	_, out, err := s.handleActivatePlugin(ctx, nil, PluginInput{Name: "fade"})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if diff := cmp.Diff([]string{"core", "fade"}, out.ActivePlugins); diff != "" {
		t.Errorf("stack (-want +got):\n%s", diff)
	}
	if _, _, err := s.handleDeactivatePlugin(ctx, nil, PluginInput{Name: "core"}); err == nil {
		t.Error("expected error deactivating a plugin below the top")
	}
	_, out, err = s.handleDeactivatePlugin(ctx, nil, PluginInput{Name: "fade"})
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if diff := cmp.Diff([]string{"core"}, out.ActivePlugins); diff != "" {
		t.Errorf("stack (-want +got):\n%s", diff)
	}
}

func TestListWindowsFilters(t *testing.T) {
	d := &fakeDaemon{
		windows: []ipc.WindowInfo{
			{ID: "0x1", Screen: 0, Class: "XTerm"},
			{ID: "0x2", Screen: 1, Class: "XTerm"},
			{ID: "0x3", Screen: 1, Class: "Gimp"},
		},
		matches: []string{"0x1", "0x2"},
	}
	s := newTestServer(d)
	screen := 1

	tests := []struct {
		name string
		in   ListWindowsInput
		want []string
	}{
		{"all", ListWindowsInput{}, []string{"0x1", "0x2", "0x3"}},
		{"screen", ListWindowsInput{Screen: &screen}, []string{"0x2", "0x3"}},
		{"match", ListWindowsInput{Match: "class=XTerm"}, []string{"0x1", "0x2"}},
		{"screen and match", ListWindowsInput{Match: "class=XTerm", Screen: &screen}, []string{"0x2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, err := s.handleListWindows(context.Background(), nil, tt.in)
			if err != nil {
				t.Fatalf("handleListWindows: %v", err)
			}
			var got []string
			for _, w := range out.Windows {
				got = append(got, w.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ids (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseMatchIsOffline(t *testing.T) {
	d := &fakeDaemon{err: errors.New("daemon not running")}
	s := newTestServer(d)

	_, out, err := s.handleParseMatch(context.Background(), nil, MatchInput{Expr: "type=Normal | type=Dialog"})
	if err != nil {
		t.Fatalf("handleParseMatch: %v", err)
	}
	if out.Empty || out.Expr != "type=Normal | type=Dialog" {
		t.Errorf("output = %+v", out)
	}

	if _, _, err := s.handleEvalMatch(context.Background(), nil, MatchInput{Expr: "any"}); err == nil {
		t.Error("eval_match should report the daemon error")
	}
}

func TestReloadConfig(t *testing.T) {
	d := &fakeDaemon{stack: []string{"core", "regex"}}
	s := newTestServer(d)

	_, out, err := s.handleReloadConfig(context.Background(), nil, EmptyInput{})
	if err != nil {
		t.Fatalf("handleReloadConfig: %v", err)
	}
	if d.reloaded != 1 || !out.Reloaded {
		t.Errorf("reloaded = %d, out = %+v", d.reloaded, out)
	}
	if diff := cmp.Diff([]string{"core", "regex"}, out.ActivePlugins); diff != "" {
		t.Errorf("stack (-want +got):\n%s", diff)
	}
}
