// Package plugin defines the interface between the runtime and plugins.
//
// Every plugin provides a VTable. The optional interfaces in this package add
// per-object initialisation, option lists and action handling; the runtime
// discovers them with type assertions, so a plugin implements only what it
// needs.
package plugin

import (
	"fmt"
	"log/slog"

	"github.com/1broseidon/compwm/internal/match"
	"github.com/1broseidon/compwm/internal/object"
	"github.com/1broseidon/compwm/internal/option"
)

// ABIVersion is bumped whenever an interface in this package or a type it
// exposes changes incompatibly.
const ABIVersion = 20261019

// Host is what the runtime exposes to plugins.
type Host interface {
	Core() *object.Core
	Matcher() *match.Engine
	Logger() *slog.Logger
}

// VTable is the mandatory part of a plugin.
type VTable interface {
	Name() string
	ABIVersion() int
	// Init runs once when the plugin is pushed, before any object is
	// initialised.
	Init(h Host) error
	// Fini undoes Init. It must not fail.
	Fini(h Host)
}

// Rule is the kind of ordering constraint a dependency expresses.
type Rule int

const (
	// Before requires the named plugin to be inactive at push time, so this
	// plugin ends up below it in the stack.
	Before Rule = iota
	// After requires the named plugin to be active at push time.
	After
)

func (r Rule) String() string {
	if r == After {
		return "after"
	}
	return "before"
}

// Dep is one declared ordering constraint.
type Dep struct {
	Rule   Rule
	Plugin string
}

func (d Dep) String() string { return d.Rule.String() + " " + d.Plugin }

// Dependent is implemented by plugins that declare ordering constraints.
type Dependent interface {
	Deps() []Dep
}

// DisplayHandler is implemented by plugins with per-display state.
type DisplayHandler interface {
	InitDisplay(d *object.Display) error
	FiniDisplay(d *object.Display)
}

// ScreenHandler is implemented by plugins with per-screen state.
type ScreenHandler interface {
	InitScreen(s *object.Screen) error
	FiniScreen(s *object.Screen)
}

// WindowHandler is implemented by plugins with per-window state.
type WindowHandler interface {
	InitWindow(w *object.Window) error
	FiniWindow(w *object.Window)
}

// DisplayOptioner exposes display scope options.
type DisplayOptioner interface {
	DisplayOptions(d *object.Display) []*option.Option
	// SetDisplayOption stores v through the option's setter and reacts to the
	// change. It reports whether the stored value changed.
	SetDisplayOption(d *object.Display, name string, v option.Value) bool
}

// ScreenOptioner exposes screen scope options.
type ScreenOptioner interface {
	ScreenOptions(s *object.Screen) []*option.Option
	SetScreenOption(s *object.Screen, name string, v option.Value) bool
}

// ActionHandler is implemented by plugins whose action options can be
// triggered, by a key binding or by a control client.
type ActionHandler interface {
	HandleAction(d *object.Display, name string) bool
}

// Plugin is a loaded plugin.
type Plugin struct {
	Name   string
	VTable VTable
	Deps   []Dep
	Source string
}

// New validates vt and wraps it as a loaded plugin.
func New(vt VTable, source string) (*Plugin, error) {
	if vt == nil {
		return nil, &LoadError{Kind: NoVTable, Path: source, Err: fmt.Errorf("nil vtable")}
	}
	if v := vt.ABIVersion(); v != ABIVersion {
		return nil, &LoadError{
			Kind: ABIMismatch,
			Name: vt.Name(),
			Path: source,
			Err:  fmt.Errorf("plugin ABI %d, runtime ABI %d", v, ABIVersion),
		}
	}
	p := &Plugin{Name: vt.Name(), VTable: vt, Source: source}
	if dep, ok := vt.(Dependent); ok {
		p.Deps = append(p.Deps, dep.Deps()...)
	}
	return p, nil
}

// Capabilities lists the optional interfaces the plugin implements.
func (p *Plugin) Capabilities() []string {
	var caps []string
	if _, ok := p.VTable.(DisplayHandler); ok {
		caps = append(caps, "display")
	}
	if _, ok := p.VTable.(ScreenHandler); ok {
		caps = append(caps, "screen")
	}
	if _, ok := p.VTable.(WindowHandler); ok {
		caps = append(caps, "window")
	}
	if _, ok := p.VTable.(DisplayOptioner); ok {
		caps = append(caps, "display-options")
	}
	if _, ok := p.VTable.(ScreenOptioner); ok {
		caps = append(caps, "screen-options")
	}
	if _, ok := p.VTable.(ActionHandler); ok {
		caps = append(caps, "actions")
	}
	return caps
}

// Base provides the mandatory VTable methods for plugins that embed it.
type Base struct {
	PluginName string
}

// Name returns the plugin name.
func (b Base) Name() string { return b.PluginName }

// ABIVersion returns the ABI the plugin was compiled against.
func (b Base) ABIVersion() int { return ABIVersion }

// Init does nothing.
func (b Base) Init(Host) error { return nil }

// Fini does nothing.
func (b Base) Fini(Host) {}
