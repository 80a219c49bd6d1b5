package wm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/1broseidon/compwm/internal/object"
	"github.com/1broseidon/compwm/internal/option"
	"github.com/1broseidon/compwm/internal/plugin"
)

var errBoom = errors.New("boom")

// fake records every lifecycle call into a shared trace.
type fake struct {
	plugin.Base
	trace      *[]string
	deps       []plugin.Dep
	failScreen int
	failWindow uint32
}

func newFake(name string, trace *[]string, deps ...plugin.Dep) *fake {
	return &fake{Base: plugin.Base{PluginName: name}, trace: trace, deps: deps, failScreen: -1}
}

func (f *fake) log(format string, args ...any) {
	*f.trace = append(*f.trace, f.PluginName+" "+fmt.Sprintf(format, args...))
}

func (f *fake) Deps() []plugin.Dep { return f.deps }

func (f *fake) Init(plugin.Host) error { f.log("init"); return nil }
func (f *fake) Fini(plugin.Host)       { f.log("fini") }

func (f *fake) InitDisplay(*object.Display) error { f.log("initDisplay"); return nil }
func (f *fake) FiniDisplay(*object.Display)       { f.log("finiDisplay") }

func (f *fake) InitScreen(s *object.Screen) error {
	f.log("initScreen %d", s.Index())
	if s.Index() == f.failScreen {
		return errBoom
	}
	return nil
}

func (f *fake) FiniScreen(s *object.Screen) { f.log("finiScreen %d", s.Index()) }

func (f *fake) InitWindow(w *object.Window) error {
	f.log("initWindow %s", object.FormatXID(w.ID))
	if w.ID == f.failWindow {
		return errBoom
	}
	return nil
}

func (f *fake) FiniWindow(w *object.Window) { f.log("finiWindow %s", object.FormatXID(w.ID)) }

func mustPlugin(t *testing.T, vt plugin.VTable) *plugin.Plugin {
	t.Helper()
	p, err := plugin.New(vt, "test")
	if err != nil {
		t.Fatalf("plugin.New: %v", err)
	}
	return p
}

func newRuntime(t *testing.T, screens int) *Runtime {
	t.Helper()
	r, err := New(Config{DisplayName: ":0"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < screens; i++ {
		if _, err := r.AddScreen(i, object.Rect{X: i * 1920, Width: 1920, Height: 1080}); err != nil {
			t.Fatalf("AddScreen(%d): %v", i, err)
		}
	}
	return r
}

func TestPush_ScreenFailureRollsBack(t *testing.T) {
	r := newRuntime(t, 3)
	var trace []string
	f := newFake("zoom", &trace)
	f.failScreen = 1

	err := r.Push(mustPlugin(t, f))
	var ae *ActivationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *ActivationError, got %v", err)
	}
	if ae.Stage != StageScreen || ae.Object != "core/:0/1" || !errors.Is(err, errBoom) {
		t.Fatalf("unexpected error %+v", ae)
	}

	want := []string{
		"zoom init",
		"zoom initDisplay",
		"zoom initScreen 0",
		"zoom initScreen 1",
		"zoom finiScreen 0",
		"zoom finiDisplay",
		"zoom fini",
	}
	if diff := cmp.Diff(want, trace); diff != "" {
		t.Fatalf("trace (-want +got):\n%s", diff)
	}
	if len(r.Active()) != 0 {
		t.Fatalf("failed plugin left on stack: %v", r.Active())
	}
}

func TestPush_WindowFailureRollsBackEveryStage(t *testing.T) {
	r := newRuntime(t, 1)
	s := r.Display().Screen(0)
	for _, id := range []uint32{0x10, 0x20} {
		if err := r.AddWindow(s, object.NewWindow(id)); err != nil {
			t.Fatalf("AddWindow: %v", err)
		}
	}
	var trace []string
	f := newFake("fade", &trace)
	f.failWindow = 0x20

	err := r.Push(mustPlugin(t, f))
	var ae *ActivationError
	if !errors.As(err, &ae) || ae.Stage != StageWindow {
		t.Fatalf("expected window activation error, got %v", err)
	}
	want := []string{
		"fade init",
		"fade initDisplay",
		"fade initScreen 0",
		"fade initWindow 0x10",
		"fade initWindow 0x20",
		"fade finiWindow 0x10",
		"fade finiScreen 0",
		"fade finiDisplay",
		"fade fini",
	}
	if diff := cmp.Diff(want, trace); diff != "" {
		t.Fatalf("trace (-want +got):\n%s", diff)
	}
}

func TestPushPop_Ordering(t *testing.T) {
	r := newRuntime(t, 1)
	var trace []string
	core := mustPlugin(t, newFake("core", &trace))
	cube := mustPlugin(t, newFake("cube", &trace))
	fade := func() *plugin.Plugin {
		return mustPlugin(t, newFake("fade", &trace, plugin.Dep{Rule: plugin.Before, Plugin: "cube"}))
	}

	if err := r.Push(core); err != nil {
		t.Fatalf("push core: %v", err)
	}
	if err := r.Push(cube); err != nil {
		t.Fatalf("push cube: %v", err)
	}
	var de *DependencyError
	if err := r.Push(fade()); !errors.As(err, &de) || de.Dep.Plugin != "cube" {
		t.Fatalf("expected dependency error, got %v", err)
	}

	if _, err := r.Pop(); err != nil {
		t.Fatalf("pop cube: %v", err)
	}
	if err := r.Push(fade()); err != nil {
		t.Fatalf("push fade: %v", err)
	}
	if err := r.Push(cube); err != nil {
		t.Fatalf("push cube again: %v", err)
	}
	if err := r.Push(cube); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
	if diff := cmp.Diff([]string{"core", "fade", "cube"}, r.Active()); diff != "" {
		t.Fatalf("stack (-want +got):\n%s", diff)
	}

	var oe *OrderError
	if _, err := r.Deactivate("fade"); !errors.As(err, &oe) || oe.Top != "cube" {
		t.Fatalf("expected order error, got %v", err)
	}
	for _, name := range []string{"cube", "fade", "core"} {
		p, err := r.Deactivate(name)
		if err != nil || p.Name != name {
			t.Fatalf("deactivate %s = %v, %v", name, p, err)
		}
	}
	if _, err := r.Pop(); !errors.Is(err, ErrEmptyStack) {
		t.Fatalf("expected ErrEmptyStack, got %v", err)
	}
}

func TestAfterDependencyRequiresActive(t *testing.T) {
	r := newRuntime(t, 0)
	var trace []string
	p := mustPlugin(t, newFake("regex-user", &trace, plugin.Dep{Rule: plugin.After, Plugin: "regex"}))
	var de *DependencyError
	if err := r.Push(p); !errors.As(err, &de) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(trace) != 0 {
		t.Fatalf("dependency failure must not call init: %v", trace)
	}
}

func TestPop_FinalisesInReverse(t *testing.T) {
	r := newRuntime(t, 2)
	for i, id := range []uint32{0x10, 0x20} {
		if err := r.AddWindow(r.Display().Screen(i), object.NewWindow(id)); err != nil {
			t.Fatalf("AddWindow: %v", err)
		}
	}
	var trace []string
	if err := r.Push(mustPlugin(t, newFake("cube", &trace))); err != nil {
		t.Fatalf("push: %v", err)
	}
	trace = nil
	if _, err := r.Pop(); err != nil {
		t.Fatalf("pop: %v", err)
	}
	want := []string{
		"cube finiWindow 0x20",
		"cube finiWindow 0x10",
		"cube finiScreen 1",
		"cube finiScreen 0",
		"cube finiDisplay",
		"cube fini",
	}
	if diff := cmp.Diff(want, trace); diff != "" {
		t.Fatalf("trace (-want +got):\n%s", diff)
	}
}

func TestAddRemoveWindow_CascadeOrder(t *testing.T) {
	r := newRuntime(t, 1)
	var trace []string
	for _, name := range []string{"core", "fade", "cube"} {
		if err := r.Push(mustPlugin(t, newFake(name, &trace))); err != nil {
			t.Fatalf("push %s: %v", name, err)
		}
	}
	trace = nil

	s := r.Display().Screen(0)
	w := object.NewWindow(0x1a00003)
	if err := r.AddWindow(s, w); err != nil {
		t.Fatalf("AddWindow: %v", err)
	}
	r.RemoveWindow(w)

	want := []string{
		"core initWindow 0x1a00003",
		"fade initWindow 0x1a00003",
		"cube initWindow 0x1a00003",
		"cube finiWindow 0x1a00003",
		"fade finiWindow 0x1a00003",
		"core finiWindow 0x1a00003",
	}
	if diff := cmp.Diff(want, trace); diff != "" {
		t.Fatalf("trace (-want +got):\n%s", diff)
	}
	if s.FindWindow(0x1a00003) != nil || w.Screen() != nil {
		t.Fatalf("window still attached")
	}
}

func TestAddWindow_FailureDropsWindow(t *testing.T) {
	r := newRuntime(t, 1)
	var trace []string
	bad := newFake("fade", &trace)
	bad.failWindow = 0x30
	for _, vt := range []plugin.VTable{newFake("core", &trace), bad} {
		if err := r.Push(mustPlugin(t, vt)); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	trace = nil

	s := r.Display().Screen(0)
	err := r.AddWindow(s, object.NewWindow(0x30))
	var ae *ActivationError
	if !errors.As(err, &ae) || ae.Plugin != "fade" || ae.Object != "core/:0/0/0x30" {
		t.Fatalf("unexpected error %v", err)
	}
	want := []string{"core initWindow 0x30", "fade initWindow 0x30", "core finiWindow 0x30"}
	if diff := cmp.Diff(want, trace); diff != "" {
		t.Fatalf("trace (-want +got):\n%s", diff)
	}
	if len(s.Windows()) != 0 {
		t.Fatalf("failed window kept")
	}
}

func TestAddWindow_RefusesDuplicateXID(t *testing.T) {
	r := newRuntime(t, 2)
	var trace []string
	if err := r.Push(mustPlugin(t, newFake("fade", &trace))); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := r.AddWindow(r.Display().Screen(0), object.NewWindow(0x40)); err != nil {
		t.Fatalf("AddWindow: %v", err)
	}
	trace = nil

	dup := object.NewWindow(0x40)
	err := r.AddWindow(r.Display().Screen(1), dup)
	if !errors.Is(err, ErrWindowExists) {
		t.Fatalf("second AddWindow(0x40) = %v, want ErrWindowExists", err)
	}
	if len(trace) != 0 {
		t.Errorf("refused window reached plugins: %v", trace)
	}
	if n := len(r.Display().Screen(1).Windows()); n != 0 {
		t.Errorf("screen 1 has %d windows, want 0", n)
	}
	if dup.Screen() != nil {
		t.Error("refused window attached to a screen")
	}
}

// panicky panics from InitScreen on the given screen.
type panicky struct {
	*fake
	panicScreen int
}

func (p *panicky) InitScreen(s *object.Screen) error {
	p.log("initScreen %d", s.Index())
	if s.Index() == p.panicScreen {
		panic(errBoom)
	}
	return nil
}

func TestPush_PanicRollsBackAndRepanics(t *testing.T) {
	r := newRuntime(t, 2)
	var trace []string
	if err := r.Push(mustPlugin(t, newFake("core", &trace))); err != nil {
		t.Fatalf("push core: %v", err)
	}
	trace = nil

	bad := &panicky{fake: newFake("zoom", &trace), panicScreen: 1}
	p := mustPlugin(t, bad)
	func() {
		defer func() {
			if v := recover(); v != errBoom {
				t.Fatalf("recovered %v, want errBoom", v)
			}
		}()
		r.Push(p)
	}()

	want := []string{
		"zoom init",
		"zoom initDisplay",
		"zoom initScreen 0",
		"zoom initScreen 1",
		"zoom finiScreen 0",
		"zoom finiDisplay",
		"zoom fini",
	}
	if diff := cmp.Diff(want, trace); diff != "" {
		t.Fatalf("trace (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"core"}, r.Active()); diff != "" {
		t.Fatalf("stack (-want +got):\n%s", diff)
	}

	// The stack is usable afterwards.
	bad.panicScreen = -1
	trace = nil
	if err := r.Push(p); err != nil {
		t.Fatalf("push after panic: %v", err)
	}
	if diff := cmp.Diff([]string{"core", "zoom"}, r.Active()); diff != "" {
		t.Fatalf("stack (-want +got):\n%s", diff)
	}
}

func TestRemoveScreen_RemovesWindowsFirst(t *testing.T) {
	r := newRuntime(t, 2)
	var trace []string
	if err := r.Push(mustPlugin(t, newFake("core", &trace))); err != nil {
		t.Fatalf("push: %v", err)
	}
	s := r.Display().Screen(1)
	if err := r.AddWindow(s, object.NewWindow(0x40)); err != nil {
		t.Fatalf("AddWindow: %v", err)
	}
	trace = nil
	r.RemoveScreen(s)
	want := []string{"core finiWindow 0x40", "core finiScreen 1"}
	if diff := cmp.Diff(want, trace); diff != "" {
		t.Fatalf("trace (-want +got):\n%s", diff)
	}
	if r.Display().Screen(1) != nil {
		t.Fatalf("screen still present")
	}
}

func TestPushInsideHookPanics(t *testing.T) {
	r := newRuntime(t, 1)
	var trace []string
	late := mustPlugin(t, newFake("late", &trace))

	var panicked bool
	c := r.Core()
	c.Hooks.ObjectAdd.Wrap("test", func(parent, obj *object.Object) {
		defer func() { panicked = recover() != nil }()
		_ = r.Push(late)
	})
	if err := r.AddWindow(r.Display().Screen(0), object.NewWindow(0x50)); err != nil {
		t.Fatalf("AddWindow: %v", err)
	}
	if !panicked {
		t.Fatalf("push from inside a hook did not panic")
	}
	if r.Plugin("late") != nil {
		t.Fatalf("plugin pushed from inside a hook")
	}
}

// optCore is a minimal core plugin carrying active_plugins.
type optCore struct {
	plugin.Base
	active *option.Option
}

func newOptCore() *optCore {
	return &optCore{
		Base:   plugin.Base{PluginName: CorePlugin},
		active: option.NewList("active_plugins", "Active plugins", option.TypeString, option.Restriction{}),
	}
}

func (c *optCore) DisplayOptions(*object.Display) []*option.Option { return []*option.Option{c.active} }

func (c *optCore) SetDisplayOption(_ *object.Display, name string, v option.Value) bool {
	if name != c.active.Name() {
		return false
	}
	return c.active.Set(v)
}

func TestUpdatePlugins(t *testing.T) {
	var trace []string
	reg := plugin.NewRegistry()
	reg.Register(CorePlugin, func() plugin.VTable { return newOptCore() })
	for _, name := range []string{"regex", "fade", "cube"} {
		reg.Register(name, func() plugin.VTable { return newFake(name, &trace) })
	}
	r, err := New(Config{DisplayName: ":0", Loader: reg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := r.UpdatePlugins([]string{"regex", "fade"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if diff := cmp.Diff([]string{"core", "regex", "fade"}, r.Active()); diff != "" {
		t.Fatalf("stack (-want +got):\n%s", diff)
	}

	trace = nil
	err = r.UpdatePlugins([]string{"regex", "missing", "cube", "core"})
	if !plugin.IsNotFound(err) {
		t.Fatalf("expected not found for missing plugin, got %v", err)
	}
	if diff := cmp.Diff([]string{"core", "regex", "cube"}, r.Active()); diff != "" {
		t.Fatalf("stack (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"fade finiDisplay", "fade fini", "cube init", "cube initDisplay"}, trace); diff != "" {
		t.Fatalf("trace (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"core", "regex", "cube"}, r.activePluginsOption()); diff != "" {
		t.Fatalf("active_plugins not synced (-want +got):\n%s", diff)
	}

	changed, err := r.SetOption(DisplayScope(), CorePlugin, "active_plugins", option.StringList("cube"))
	if err != nil || !changed {
		t.Fatalf("set active_plugins = %v, %v", changed, err)
	}
	if diff := cmp.Diff([]string{"core", "cube"}, r.Active()); diff != "" {
		t.Fatalf("stack after option set (-want +got):\n%s", diff)
	}

	if _, err := r.SetOption(DisplayScope(), CorePlugin, "bogus", option.BoolValue(true)); !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("expected ErrUnknownOption, got %v", err)
	}
	if _, err := r.SetOption(DisplayScope(), "fade", "x", option.BoolValue(true)); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
	if _, err := r.Options(ScreenScope(3), CorePlugin); !errors.Is(err, ErrNoScreen) {
		t.Fatalf("expected ErrNoScreen, got %v", err)
	}

	r.Close()
	if len(r.Active()) != 0 || r.Display() != nil {
		t.Fatalf("close left state behind")
	}
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		in      string
		want    Scope
		wantErr bool
	}{
		{"", DisplayScope(), false},
		{"display", DisplayScope(), false},
		{"screens.all", ScreenScope(AllScreens), false},
		{"screens.2", ScreenScope(2), false},
		{"screens.-1", Scope{}, true},
		{"screens.x", Scope{}, true},
		{"window", Scope{}, true},
	}
	for _, tt := range tests {
		got, err := ParseScope(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseScope(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Fatalf("ParseScope(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if err == nil && tt.in != "" {
			if s := got.String(); s != tt.in {
				t.Fatalf("round trip %q -> %q", tt.in, s)
			}
		}
	}
}
