// Package wm owns the plugin stack and the object tree.
//
// A Runtime is created once per display connection. Every method must be
// called from the single control goroutine; none of them may be called from
// inside a hook invocation.
package wm

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/1broseidon/compwm/internal/match"
	"github.com/1broseidon/compwm/internal/object"
	"github.com/1broseidon/compwm/internal/plugin"
)

// CorePlugin is the plugin that always sits at the bottom of the stack.
const CorePlugin = "core"

// Config configures a Runtime.
type Config struct {
	DisplayName string
	Loader      plugin.Loader
	Logger      *slog.Logger
}

// Runtime is the plugin composition runtime for one display.
type Runtime struct {
	core   *object.Core
	engine *match.Engine
	loader plugin.Loader
	logger *slog.Logger
	stack  []*plugin.Plugin
}

var _ plugin.Host = (*Runtime)(nil)

// New creates the core and the display object. Screens and windows are added
// by the caller.
func New(cfg Config) (*Runtime, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	loader := cfg.Loader
	if loader == nil {
		loader = plugin.NewRegistry()
	}

	core := object.NewCore()
	d, err := core.OpenDisplay(cfg.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("open display: %w", err)
	}
	r := &Runtime{
		core:   core,
		engine: match.NewEngine(d, logger),
		loader: loader,
		logger: logger,
	}
	r.engine.OnHandlersChanged(r.recompileMatches)
	return r, nil
}

// Core returns the core object.
func (r *Runtime) Core() *object.Core { return r.core }

// Matcher returns the match engine bound to the display.
func (r *Runtime) Matcher() *match.Engine { return r.engine }

// Logger returns the runtime logger.
func (r *Runtime) Logger() *slog.Logger { return r.logger }

// Display returns the display object.
func (r *Runtime) Display() *object.Display { return r.core.Display() }

// Windows returns every managed window.
func (r *Runtime) Windows() []*object.Window { return r.Display().Windows() }

// Loader returns the plugin loader.
func (r *Runtime) Loader() plugin.Loader { return r.loader }

// Load resolves a plugin by name. It has no effect on live objects.
func (r *Runtime) Load(name string) (*plugin.Plugin, error) {
	return r.loader.Load(name)
}

// Active returns the active plugin names, bottom of the stack first.
func (r *Runtime) Active() []string {
	names := make([]string, len(r.stack))
	for i, p := range r.stack {
		names[i] = p.Name
	}
	return names
}

// Plugin returns the active plugin with name, or nil.
func (r *Runtime) Plugin(name string) *plugin.Plugin {
	for _, p := range r.stack {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (r *Runtime) isActive(name string) bool { return r.Plugin(name) != nil }

func (r *Runtime) checkDeps(p *plugin.Plugin) error {
	for _, dep := range p.Deps {
		active := r.isActive(dep.Plugin)
		if (dep.Rule == plugin.Before && active) || (dep.Rule == plugin.After && !active) {
			return &DependencyError{Plugin: p.Name, Dep: dep}
		}
	}
	return nil
}

// rollbackStep records one completed initialisation.
type rollbackStep struct {
	stage  Stage
	screen *object.Screen
	window *object.Window
}

// Push activates p: it runs the plugin's global init, then display, screen
// and window initialisation for every existing object. Activation is all or
// nothing: on failure every completed step is undone in reverse order and the
// plugin is not left on the stack.
func (r *Runtime) Push(p *plugin.Plugin) error {
	r.core.Guard().Check("push " + p.Name)

	if v := p.VTable.ABIVersion(); v != plugin.ABIVersion {
		return &plugin.LoadError{Kind: plugin.ABIMismatch, Name: p.Name, Err: fmt.Errorf("plugin ABI %d, runtime ABI %d", v, plugin.ABIVersion)}
	}
	if r.isActive(p.Name) {
		return fmt.Errorf("push %s: %w", p.Name, ErrAlreadyActive)
	}
	if err := r.checkDeps(p); err != nil {
		return err
	}

	r.stack = append(r.stack, p)
	var log []rollbackStep
	// A panicking init step is unwound like a failed one, then re-panics.
	done := false
	defer func() {
		if done {
			return
		}
		if v := recover(); v != nil {
			steps := log
			log = nil
			r.rollback(p, steps)
			if n := len(r.stack); n > 0 && r.stack[n-1] == p {
				r.stack = r.stack[:n-1]
			}
			r.logger.Error("plugin activation panicked", "plugin", p.Name, "panic", v)
			panic(v)
		}
	}()
	fail := func(stage Stage, obj *object.Object, err error) error {
		steps := log
		log = nil
		r.rollback(p, steps)
		r.stack = r.stack[:len(r.stack)-1]
		done = true
		ae := &ActivationError{Plugin: p.Name, Stage: stage, Err: err}
		if obj != nil {
			ae.Object = object.Path(obj)
		}
		r.logger.Warn("plugin activation failed", "plugin", p.Name, "stage", stage.String(), "object", ae.Object, "error", err)
		return ae
	}

	if err := p.VTable.Init(r); err != nil {
		r.stack = r.stack[:len(r.stack)-1]
		done = true
		r.logger.Warn("plugin activation failed", "plugin", p.Name, "stage", StageInit.String(), "error", err)
		return &ActivationError{Plugin: p.Name, Stage: StageInit, Err: err}
	}
	log = append(log, rollbackStep{stage: StageInit})

	d := r.Display()
	if h, ok := p.VTable.(plugin.DisplayHandler); ok {
		if err := h.InitDisplay(d); err != nil {
			return fail(StageDisplay, &d.Object, err)
		}
	}
	log = append(log, rollbackStep{stage: StageDisplay})

	sh, hasScreens := p.VTable.(plugin.ScreenHandler)
	for _, s := range d.Screens() {
		if hasScreens {
			if err := sh.InitScreen(s); err != nil {
				return fail(StageScreen, &s.Object, err)
			}
		}
		log = append(log, rollbackStep{stage: StageScreen, screen: s})
	}

	if wh, ok := p.VTable.(plugin.WindowHandler); ok {
		for _, s := range d.Screens() {
			for _, w := range s.Windows() {
				if err := wh.InitWindow(w); err != nil {
					return fail(StageWindow, &w.Object, err)
				}
				log = append(log, rollbackStep{stage: StageWindow, window: w})
			}
		}
	}

	done = true
	r.bindOptions(p)
	r.logger.Info("plugin activated", "plugin", p.Name, "depth", len(r.stack))
	return nil
}

func (r *Runtime) rollback(p *plugin.Plugin, log []rollbackStep) {
	for i := len(log) - 1; i >= 0; i-- {
		step := log[i]
		switch step.stage {
		case StageWindow:
			if h, ok := p.VTable.(plugin.WindowHandler); ok {
				h.FiniWindow(step.window)
			}
		case StageScreen:
			if h, ok := p.VTable.(plugin.ScreenHandler); ok {
				h.FiniScreen(step.screen)
			}
		case StageDisplay:
			if h, ok := p.VTable.(plugin.DisplayHandler); ok {
				h.FiniDisplay(r.Display())
			}
		case StageInit:
			p.VTable.Fini(r)
		}
	}
}

// finiAll undoes a completed activation of p in the reverse of Push's order.
func (r *Runtime) finiAll(p *plugin.Plugin) {
	d := r.Display()
	screens := d.Screens()
	if h, ok := p.VTable.(plugin.WindowHandler); ok {
		for i := len(screens) - 1; i >= 0; i-- {
			windows := screens[i].Windows()
			for j := len(windows) - 1; j >= 0; j-- {
				h.FiniWindow(windows[j])
			}
		}
	}
	if h, ok := p.VTable.(plugin.ScreenHandler); ok {
		for i := len(screens) - 1; i >= 0; i-- {
			h.FiniScreen(screens[i])
		}
	}
	if h, ok := p.VTable.(plugin.DisplayHandler); ok {
		h.FiniDisplay(d)
	}
	p.VTable.Fini(r)
}

// Pop deactivates the plugin on top of the stack and returns it.
func (r *Runtime) Pop() (*plugin.Plugin, error) {
	r.core.Guard().Check("pop")
	if len(r.stack) == 0 {
		return nil, ErrEmptyStack
	}
	p := r.stack[len(r.stack)-1]
	r.finiAll(p)
	r.stack[len(r.stack)-1] = nil
	r.stack = r.stack[:len(r.stack)-1]
	r.logger.Info("plugin deactivated", "plugin", p.Name, "depth", len(r.stack))
	return p, nil
}

// Deactivate pops name, which must be the top of the stack.
func (r *Runtime) Deactivate(name string) (*plugin.Plugin, error) {
	if len(r.stack) == 0 {
		return nil, ErrEmptyStack
	}
	if top := r.stack[len(r.stack)-1].Name; top != name {
		if !r.isActive(name) {
			return nil, fmt.Errorf("deactivate %s: %w", name, ErrNotActive)
		}
		return nil, &OrderError{Plugin: name, Top: top}
	}
	return r.Pop()
}

// Activate loads name and pushes it.
func (r *Runtime) Activate(name string) error {
	p, err := r.Load(name)
	if err != nil {
		return err
	}
	return r.Push(p)
}

// UpdatePlugins reconciles the stack with names. The core plugin is forced to
// the bottom. The stack is popped down to the longest common prefix and the
// remaining names are loaded and pushed in order; names that fail to load or
// activate are skipped and reported in the returned error. The core plugin's
// active_plugins option is updated to the resulting stack.
func (r *Runtime) UpdatePlugins(names []string) error {
	want := []string{CorePlugin}
	seen := map[string]bool{CorePlugin: true}
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		want = append(want, n)
	}

	keep := 0
	for keep < len(r.stack) && keep < len(want) && r.stack[keep].Name == want[keep] {
		keep++
	}
	for len(r.stack) > keep {
		if _, err := r.Pop(); err != nil {
			return err
		}
	}

	var errs []error
	for _, name := range want[keep:] {
		if err := r.Activate(name); err != nil {
			r.logger.Warn("skipping plugin", "plugin", name, "error", err)
			errs = append(errs, err)
		}
	}
	r.syncActivePluginsOption()
	return errors.Join(errs...)
}

// Close pops every plugin and closes the display.
func (r *Runtime) Close() {
	for len(r.stack) > 0 {
		if _, err := r.Pop(); err != nil {
			r.logger.Error("pop during close", "error", err)
			return
		}
	}
	r.core.CloseDisplay()
}

// AddScreen creates a screen and initialises it for every active plugin,
// oldest first. On failure the inits that ran are undone, the screen is
// dropped and an *ActivationError is returned.
func (r *Runtime) AddScreen(index int, geom object.Rect) (*object.Screen, error) {
	r.core.Guard().Check("add screen")
	d := r.Display()
	if s := d.Screen(index); s != nil {
		return s, nil
	}
	s := d.AddScreen(index, geom)
	var inited []plugin.ScreenHandler
	for _, p := range r.stack {
		h, ok := p.VTable.(plugin.ScreenHandler)
		if !ok {
			continue
		}
		if err := h.InitScreen(s); err != nil {
			for i := len(inited) - 1; i >= 0; i-- {
				inited[i].FiniScreen(s)
			}
			d.RemoveScreen(s)
			return nil, &ActivationError{Plugin: p.Name, Stage: StageScreen, Object: object.Path(&s.Object), Err: err}
		}
		inited = append(inited, h)
	}
	r.bindScreenOptions(s)
	r.core.ObjectAdd(&d.Object, &s.Object)
	return s, nil
}

// RemoveScreen removes every window of s, then finalises s for every active
// plugin, newest first.
func (r *Runtime) RemoveScreen(s *object.Screen) {
	r.core.Guard().Check("remove screen")
	for _, w := range s.Windows() {
		r.RemoveWindow(w)
	}
	d := r.Display()
	r.core.ObjectRemove(&d.Object, &s.Object)
	for i := len(r.stack) - 1; i >= 0; i-- {
		if h, ok := r.stack[i].VTable.(plugin.ScreenHandler); ok {
			h.FiniScreen(s)
		}
	}
	d.RemoveScreen(s)
}

// AddWindow attaches w on top of s and initialises it for every active
// plugin, oldest first. On failure the inits that ran are undone, the window
// is dropped and an *ActivationError is returned. A window whose XID is
// already on the display is refused with ErrWindowExists.
func (r *Runtime) AddWindow(s *object.Screen, w *object.Window) error {
	r.core.Guard().Check("add window")
	if r.Display().FindWindow(w.ID) != nil {
		return fmt.Errorf("add window %s: %w", object.FormatXID(w.ID), ErrWindowExists)
	}
	s.InsertWindow(w)
	var inited []plugin.WindowHandler
	for _, p := range r.stack {
		h, ok := p.VTable.(plugin.WindowHandler)
		if !ok {
			continue
		}
		if err := h.InitWindow(w); err != nil {
			for i := len(inited) - 1; i >= 0; i-- {
				inited[i].FiniWindow(w)
			}
			path := object.Path(&w.Object)
			s.RemoveWindow(w)
			return &ActivationError{Plugin: p.Name, Stage: StageWindow, Object: path, Err: err}
		}
		inited = append(inited, h)
	}
	r.core.ObjectAdd(&s.Object, &w.Object)
	w.Damage()
	return nil
}

// RemoveWindow finalises w for every active plugin, newest first, and drops
// it.
func (r *Runtime) RemoveWindow(w *object.Window) {
	r.core.Guard().Check("remove window")
	s := w.Screen()
	if s == nil {
		return
	}
	r.core.ObjectRemove(&s.Object, &w.Object)
	for i := len(r.stack) - 1; i >= 0; i-- {
		if h, ok := r.stack[i].VTable.(plugin.WindowHandler); ok {
			h.FiniWindow(w)
		}
	}
	s.RemoveWindow(w)
}

// Paint runs one paint cycle on every screen that needs it and reports how
// many screens were painted.
func (r *Runtime) Paint(msSinceLastPaint int, force bool) int {
	painted := 0
	for _, s := range r.Display().Screens() {
		if !force && !s.Damaged() {
			continue
		}
		if s.PaintFrame(msSinceLastPaint) {
			painted++
		}
	}
	return painted
}
