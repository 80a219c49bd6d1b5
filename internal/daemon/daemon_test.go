package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/1broseidon/compwm/internal/config"
	"github.com/1broseidon/compwm/internal/ipc"
	"github.com/1broseidon/compwm/internal/platform"
	"github.com/1broseidon/compwm/internal/wm"
)

const testConfig = `
active_plugins: [core, regex]
reconcile_interval_ms: 50
plugin_dir: %s
options:
  core:
    screens:
      "1":
        refresh_rate: 75
  cube:
    display:
      in: true
`

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// startDaemon runs a daemon on a fake backend until the test ends.
func startDaemon(t *testing.T, backend *fakeBackend) (*Daemon, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, fmt.Sprintf(testConfig, filepath.Join(dir, "plugins")))

	res, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	d, err := New(res, Options{Backend: backend, Logger: testLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := len(backend.windows)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("Run: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
	})

	waitFor(t, func() bool {
		st, err := d.Status(context.Background())
		return err == nil && st.Windows == want
	})
	return d, path
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{screens: twoScreens(), windows: sampleWindows(), active: 0x200001}
}

func TestNewRejectsMissingInputs(t *testing.T) {
	if _, err := New(nil, Options{Backend: newFakeBackend()}); err == nil {
		t.Error("expected error for nil config")
	}
	res := &config.LoadResult{Config: config.DefaultConfig()}
	if _, err := New(res, Options{}); err == nil {
		t.Error("expected error for nil backend")
	}
}

func TestDaemonStatusAndPlugins(t *testing.T) {
	d, path := startDaemon(t, newFakeBackend())
	ctx := context.Background()

	st, err := d.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Display != ":9" || st.ConfigPath != path || st.Screens != 2 || st.Windows != 3 {
		t.Errorf("status = %+v", st)
	}
	if diff := cmp.Diff([]string{"core", "regex"}, st.ActivePlugins); diff != "" {
		t.Errorf("active (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"type", "state", "xid", "override_redirect", "rgba", "class", "name", "role", "title"}, st.MatchPrefixes); diff != "" {
		t.Errorf("prefixes (-want +got):\n%s", diff)
	}

	plugins, err := d.ListPlugins(ctx)
	if err != nil {
		t.Fatalf("ListPlugins: %v", err)
	}
	var got []string
	for _, p := range plugins.Plugins {
		got = append(got, p.Name)
		if p.Active != (p.Position >= 0) {
			t.Errorf("plugin %s active=%v position=%d", p.Name, p.Active, p.Position)
		}
	}
	if diff := cmp.Diff([]string{"core", "regex", "cube", "fade"}, got); diff != "" {
		t.Errorf("plugins (-want +got):\n%s", diff)
	}
}

func TestDaemonOptions(t *testing.T) {
	d, _ := startDaemon(t, newFakeBackend())
	ctx := context.Background()

	opts, err := d.GetOptions(ctx, ipc.OptionsPayload{Plugin: "core", Scope: "screens.1"})
	if err != nil {
		t.Fatalf("GetOptions: %v", err)
	}
	var rate *ipc.OptionInfo
	for i := range opts.Options {
		if opts.Options[i].Name == "refresh_rate" {
			rate = &opts.Options[i]
		}
	}
	if rate == nil {
		t.Fatal("refresh_rate missing")
	}
	if rate.Value != 75 || rate.Restriction != "1..200" || rate.Type != "int" {
		t.Errorf("refresh_rate = %+v", *rate)
	}

	set, err := d.SetOption(ctx, ipc.SetOptionPayload{Plugin: "core", Name: "ping_delay", Value: "2000"})
	if err != nil {
		t.Fatalf("SetOption: %v", err)
	}
	if diff := cmp.Diff(&ipc.SetOptionData{Changed: true, Value: "2000"}, set); diff != "" {
		t.Errorf("set (-want +got):\n%s", diff)
	}

	// Out of range values are refused by the setter.
	set, err = d.SetOption(ctx, ipc.SetOptionPayload{Plugin: "core", Name: "ping_delay", Value: 5})
	if err != nil {
		t.Fatalf("SetOption: %v", err)
	}
	if set.Changed || set.Value != "2000" {
		t.Errorf("refused set = %+v", set)
	}

	_, err = d.SetOption(ctx, ipc.SetOptionPayload{Plugin: "core", Name: "nope", Value: 1})
	if !errors.Is(err, wm.ErrUnknownOption) {
		t.Errorf("unknown option error = %v", err)
	}
	_, err = d.GetOptions(ctx, ipc.OptionsPayload{Plugin: "fade"})
	if !errors.Is(err, wm.ErrNotActive) {
		t.Errorf("inactive plugin error = %v", err)
	}
	_, err = d.GetOptions(ctx, ipc.OptionsPayload{Plugin: "core", Scope: "screens.7"})
	if !errors.Is(err, wm.ErrNoScreen) {
		t.Errorf("missing screen error = %v", err)
	}
}

func TestDaemonActivateDeactivate(t *testing.T) {
	d, _ := startDaemon(t, newFakeBackend())
	ctx := context.Background()

	stack, err := d.Activate(ctx, "cube")
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if diff := cmp.Diff([]string{"core", "regex", "cube"}, stack.ActivePlugins); diff != "" {
		t.Errorf("stack (-want +got):\n%s", diff)
	}
	// Stored options are applied on activation.
	opts, err := d.GetOptions(ctx, ipc.OptionsPayload{Plugin: "cube"})
	if err != nil {
		t.Fatalf("GetOptions: %v", err)
	}
	for _, o := range opts.Options {
		if o.Name == "in" && o.Value != true {
			t.Errorf("cube in = %v, want true", o.Value)
		}
	}

	if _, err := d.Activate(ctx, "cube"); !errors.Is(err, wm.ErrAlreadyActive) {
		t.Errorf("second Activate error = %v", err)
	}

	var order *wm.OrderError
	if _, err := d.Deactivate(ctx, "regex"); !errors.As(err, &order) {
		t.Errorf("Deactivate(regex) error = %v, want OrderError", err)
	}
	if _, err := d.Deactivate(ctx, "core"); err == nil {
		t.Error("core must not be deactivated")
	}

	stack, err = d.Deactivate(ctx, "cube")
	if err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if diff := cmp.Diff([]string{"core", "regex"}, stack.ActivePlugins); diff != "" {
		t.Errorf("stack (-want +got):\n%s", diff)
	}
	opts, err = d.GetOptions(ctx, ipc.OptionsPayload{Plugin: "core"})
	if err != nil {
		t.Fatalf("GetOptions: %v", err)
	}
	for _, o := range opts.Options {
		if o.Name == "active_plugins" && o.Text != "[core, regex]" {
			t.Errorf("active_plugins = %s", o.Text)
		}
	}
}

func TestDaemonWindowsAndMatch(t *testing.T) {
	backend := newFakeBackend()
	d, _ := startDaemon(t, backend)
	ctx := context.Background()

	wins, err := d.ListWindows(ctx)
	if err != nil {
		t.Fatalf("ListWindows: %v", err)
	}
	if len(wins.Windows) != 3 {
		t.Fatalf("windows = %d, want 3", len(wins.Windows))
	}
	if w := wins.Windows[1]; w.ID != "0x200002" || w.Type != "ModalDialog" || w.Class != "Gimp" {
		t.Errorf("window = %+v", w)
	}

	m, err := d.EvalMatch(ctx, "class=^XTerm$ | type=ModalDialog")
	if err != nil {
		t.Fatalf("EvalMatch: %v", err)
	}
	if diff := cmp.Diff([]string{"0x200001", "0x200002"}, m.Matches); diff != "" {
		t.Errorf("matches (-want +got):\n%s", diff)
	}
	if m.Checked != 3 {
		t.Errorf("checked = %d, want 3", m.Checked)
	}

	// The reconciler picks up new snapshots.
	backend.setWindows(sampleWindows()[:1])
	waitFor(t, func() bool {
		st, err := d.Status(ctx)
		return err == nil && st.Windows == 1
	})
}

func TestDaemonCloseWindowAction(t *testing.T) {
	backend := newFakeBackend()
	d, _ := startDaemon(t, backend)

	d.trigger("core", "close_window_key")
	waitFor(t, func() bool { return len(backend.closedWindows()) == 1 })
	if diff := cmp.Diff([]platform.WindowID{0x200001}, backend.closedWindows()); diff != "" {
		t.Errorf("closed (-want +got):\n%s", diff)
	}
}

func TestDaemonReload(t *testing.T) {
	d, path := startDaemon(t, newFakeBackend())
	ctx := context.Background()

	writeConfig(t, path, "active_plugins: [core, fade]\n")
	if err := d.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	st, err := d.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if diff := cmp.Diff([]string{"core", "fade"}, st.ActivePlugins); diff != "" {
		t.Errorf("active after reload (-want +got):\n%s", diff)
	}

	// An invalid file keeps the running configuration.
	writeConfig(t, path, "log_level: loud\n")
	if err := d.Reload(ctx); err == nil {
		t.Fatal("expected reload error")
	}
	st, err = d.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if diff := cmp.Diff([]string{"core", "fade"}, st.ActivePlugins); diff != "" {
		t.Errorf("active after failed reload (-want +got):\n%s", diff)
	}
}
