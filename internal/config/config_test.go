package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.TrimSpace(data)+"\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if diff := cmp.Diff([]string{"core", "regex", "fade", "cube"}, cfg.ActivePlugins); diff != "" {
		t.Fatalf("active plugins (-want +got):\n%s", diff)
	}
	if cfg.ReconcileInterval() != 250*time.Millisecond {
		t.Fatalf("unexpected reconcile interval %v", cfg.ReconcileInterval())
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(res.Files) != 0 {
		t.Fatalf("expected no files, got %v", res.Files)
	}
	if res.Config.LogLevel != "info" {
		t.Fatalf("expected default log level, got %q", res.Config.LogLevel)
	}
}

func TestLoadFromPath_DisplayAndXAuthority(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `
display: ":1"
xauthority: "/tmp/test-xauth"
`)

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Display != ":1" || res.Config.XAuthority != "/tmp/test-xauth" {
		t.Fatalf("unexpected display settings: %q %q", res.Config.Display, res.Config.XAuthority)
	}

	val, src, err := Explain(res, "display")
	if err != nil {
		t.Fatalf("explain display: %v", err)
	}
	if val != ":1" {
		t.Fatalf("expected explain display :1, got %#v", val)
	}
	if src.Kind != SourceFile || src.Line != 1 {
		t.Fatalf("expected display from line 1 of the file, got %#v", src)
	}

	_, src, err = Explain(res, "log_level")
	if err != nil {
		t.Fatalf("explain log_level: %v", err)
	}
	if src.Kind != SourceDefault {
		t.Fatalf("expected default source, got %#v", src)
	}
}

func TestLoadFromPath_StrictUnknownKeyErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "unknown_key: 1")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "unknown_key") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("expected error to include file path, got %v", err)
	}
}

func TestLoadFromPath_IncludeDirectoryOrderAndMainOverrides(t *testing.T) {
	dir := t.TempDir()
	configD := filepath.Join(dir, "config.d")
	if err := os.MkdirAll(configD, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, filepath.Join(configD, "10-base.yaml"), `
log_level: debug
options:
  fade:
    display:
      fade_speed: 2.0
      dim_unresponsive: false
`)
	writeFile(t, filepath.Join(configD, "20-override.yaml"), `
options:
  fade:
    display:
      fade_speed: 3.0
  core:
    screens:
      all:
        refresh_rate: 75
`)
	writeFile(t, filepath.Join(configD, "README.txt"), "ignored: true")

	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `
include:
  - config.d
options:
  core:
    screens:
      "1":
        refresh_rate: 144
`)

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := len(res.Files); got != 3 {
		t.Fatalf("expected 3 loaded files, got %v", res.Files)
	}
	if filepath.Base(res.Files[2]) != "config.yaml" {
		t.Fatalf("main file must be applied last: %v", res.Files)
	}
	if res.Config.LogLevel != "debug" {
		t.Fatalf("expected included log level, got %q", res.Config.LogLevel)
	}

	want := map[string]PluginOptions{
		"fade": {Display: map[string]any{"fade_speed": 3.0, "dim_unresponsive": false}},
		"core": {Screens: map[string]map[string]any{
			"all": {"refresh_rate": 75},
			"1":   {"refresh_rate": 144},
		}},
	}
	if diff := cmp.Diff(want, res.Config.Options); diff != "" {
		t.Fatalf("options (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"all", "1"}, res.Config.Options["core"].ScreenKeys()); diff != "" {
		t.Fatalf("screen keys (-want +got):\n%s", diff)
	}

	val, src, err := Explain(res, "options.fade.display.fade_speed")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != 3.0 || filepath.Base(src.File) != "20-override.yaml" {
		t.Fatalf("expected fade_speed 3.0 from 20-override.yaml, got %#v from %s", val, src)
	}
	if _, _, err := Explain(res, "options.core.screens.1.refresh_rate"); err != nil {
		t.Fatalf("explain screen option: %v", err)
	}
	if _, _, err := Explain(res, "options.cube.display.in"); err == nil {
		t.Fatalf("expected error for unset plugin options")
	}
}

func TestLoadFromPath_ActivePluginsReplacedNotMerged(t *testing.T) {
	dir := t.TempDir()
	inc := filepath.Join(dir, "base.yaml")
	writeFile(t, inc, "active_plugins: [core, regex, fade]")
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `
include: base.yaml
active_plugins: [core, cube]
`)

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]string{"core", "cube"}, res.Config.ActivePlugins); diff != "" {
		t.Fatalf("active plugins (-want +got):\n%s", diff)
	}
}

func TestLoadFromPath_IncludeMissingPathHasContext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "include:\n  - missing.yaml")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "include") || !strings.Contains(err.Error(), "missing.yaml") {
		t.Fatalf("expected include error, got %v", err)
	}
	if !strings.Contains(err.Error(), path+":2:") {
		t.Fatalf("expected error to include file:line:col prefix, got %v", err)
	}
}

func TestLoadFromPath_IncludeCycleDetection(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	writeFile(t, a, "include: b.yaml")
	writeFile(t, b, "include: a.yaml")

	_, err := LoadFromPath(a)
	if err == nil {
		t.Fatalf("expected cycle error")
	}
	if !strings.Contains(err.Error(), "include cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestLoadFromPath_ValidationErrorsCarrySource(t *testing.T) {
	tests := []struct {
		name string
		data string
		path string
		line int
	}{
		{"log level", "display: \":0\"\nlog_level: loud", "log_level", 2},
		{"interval", "reconcile_interval_ms: 10", "reconcile_interval_ms", 1},
		{"duplicate plugin", "active_plugins: [core, fade, fade]", "active_plugins", 1},
		{"screen key", "options:\n  core:\n    screens:\n      primary:\n        refresh_rate: 60", "options.core.screens.primary", 5},
		{"empty block", "options:\n  fade: {}", "options.fade", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeFile(t, path, tt.data)

			_, err := LoadFromPath(path)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Path != tt.path {
				t.Fatalf("expected path %q, got %q", tt.path, verr.Path)
			}
			if verr.Source.Kind != SourceFile || verr.Source.Line != tt.line {
				t.Fatalf("expected source at line %d, got %#v", tt.line, verr.Source)
			}
			if !strings.HasPrefix(err.Error(), verr.Source.File+":") {
				t.Fatalf("expected file:line prefix, got %v", err)
			}
		})
	}
}

func TestExplain_UnknownPath(t *testing.T) {
	res := &LoadResult{Config: DefaultConfig()}
	for _, path := range []string{"", "gap_size", "display.x", "options.core", "options.core.windows.x"} {
		if _, _, err := Explain(res, path); err == nil {
			t.Errorf("Explain(%q): expected error", path)
		}
	}
	if _, _, err := Explain(nil, "display"); err == nil {
		t.Fatalf("expected error without a loaded config")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "log_level: info")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan *LoadResult, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(res *LoadResult, err error) {
			if err == nil {
				results <- res
			}
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "log_level: debug")

	select {
	case res := <-results:
		if res.Config.LogLevel != "debug" {
			t.Fatalf("expected reloaded log level debug, got %q", res.Config.LogLevel)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for reload")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("watch did not stop")
	}
}
