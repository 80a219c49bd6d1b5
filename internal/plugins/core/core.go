// Package core is the plugin that always sits at the bottom of the stack. It
// owns the runtime-wide options and the unredirect bookkeeping.
package core

import (
	"fmt"
	"log/slog"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/compwm/internal/hook"
	"github.com/1broseidon/compwm/internal/match"
	"github.com/1broseidon/compwm/internal/object"
	"github.com/1broseidon/compwm/internal/option"
	"github.com/1broseidon/compwm/internal/plugin"
	"github.com/1broseidon/compwm/internal/privates"
)

// Name is the plugin name.
const Name = "core"

// Display option names.
const (
	OptActivePlugins  = "active_plugins"
	OptPingDelay      = "ping_delay"
	OptAudibleBell    = "audible_bell"
	OptCloseWindowKey = "close_window_key"
)

// Screen option names.
const (
	OptRefreshRate       = "refresh_rate"
	OptDetectRefreshRate = "detect_refresh_rate"
	OptUnredirectMatch   = "unredirect_match"
)

// DefaultRefreshRate is used while detect_refresh_rate is on and the backend
// reported no rate.
const DefaultRefreshRate = 60

// Option configures the plugin at construction.
type Option func(*Plugin)

// WithCloser sets the function close_window_key runs.
func WithCloser(fn func() error) Option {
	return func(p *Plugin) { p.closer = fn }
}

// WithDefaultPlugins sets the default of active_plugins.
func WithDefaultPlugins(names ...string) Option {
	return func(p *Plugin) { p.defaultPlugins = names }
}

// Plugin is the core plugin.
type Plugin struct {
	plugin.Base

	logger         *slog.Logger
	engine         *match.Engine
	closer         func() error
	defaultPlugins []string

	display []*option.Option

	screens    privates.Key[*screenState]
	windows    privates.Key[*windowState]
	propRecord *hook.Record[object.MatchPropertyChangedFunc]
}

type screenState struct {
	opts []*option.Option
}

type windowState struct {
	unredirected bool
}

// New returns a fresh core plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{Base: plugin.Base{PluginName: Name}, defaultPlugins: []string{Name}}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Init allocates the private indices and declares the display options.
func (p *Plugin) Init(h plugin.Host) error {
	p.logger = h.Logger().With("plugin", Name)
	p.engine = h.Matcher()

	var err error
	if p.screens, err = privates.NewKey[*screenState](h.Core().Table(object.KindScreen)); err != nil {
		return fmt.Errorf("screen private: %w", err)
	}
	if p.windows, err = privates.NewKey[*windowState](h.Core().Table(object.KindWindow)); err != nil {
		p.screens.Release()
		return fmt.Errorf("window private: %w", err)
	}

	defaults := make([]option.Value, len(p.defaultPlugins))
	for i, n := range p.defaultPlugins {
		defaults[i] = option.StringValue(n)
	}
	p.display = []*option.Option{
		option.NewList(OptActivePlugins, "Active plugins", option.TypeString, option.Restriction{}, defaults...).
			WithDescription("Plugins to activate, bottom of the stack first"),
		option.NewInt(OptPingDelay, "Ping delay", 5000, 1000, 30000).
			WithDescription("Milliseconds between pings of client windows"),
		option.NewBool(OptAudibleBell, "Audible bell", true),
		option.NewAction(OptCloseWindowKey, "Close window", option.KeyAction(option.KeyBinding{
			Modifiers: xproto.ModMask1,
			Keysym:    "F4",
		})),
	}
	return nil
}

// Fini releases the private indices.
func (p *Plugin) Fini(plugin.Host) {
	p.windows.Release()
	p.screens.Release()
	p.display = nil
}

// InitDisplay starts tracking match property changes.
func (p *Plugin) InitDisplay(d *object.Display) error {
	p.propRecord = d.Hooks.MatchPropertyChanged.Wrap(Name, func(d *object.Display, w *object.Window) {
		p.updateUnredirect(w)
		p.propRecord.Previous()(d, w)
	})
	return nil
}

// FiniDisplay stops tracking match property changes.
func (p *Plugin) FiniDisplay(d *object.Display) {
	d.Hooks.MatchPropertyChanged.Unwrap(p.propRecord)
	p.propRecord = nil
}

// InitScreen declares the screen options.
func (p *Plugin) InitScreen(s *object.Screen) error {
	st := &screenState{opts: []*option.Option{
		option.NewInt(OptRefreshRate, "Refresh rate", DefaultRefreshRate, 1, 200),
		option.NewBool(OptDetectRefreshRate, "Detect refresh rate", true),
		option.NewMatch(OptUnredirectMatch, "Unredirect windows", "(any) & !(type=Desktop)").
			WithDescription("Fullscreen windows matching this are painted without composition"),
	}}
	for _, o := range st.opts {
		o.BindEngine(p.engine)
	}
	p.screens.Set(s.Privates(), st)
	return nil
}

// FiniScreen drops the screen options.
func (p *Plugin) FiniScreen(s *object.Screen) { p.screens.Delete(s.Privates()) }

// InitWindow records whether the window is unredirected.
func (p *Plugin) InitWindow(w *object.Window) error {
	p.windows.Set(w.Privates(), &windowState{})
	p.updateUnredirect(w)
	return nil
}

// FiniWindow drops the window state.
func (p *Plugin) FiniWindow(w *object.Window) { p.windows.Delete(w.Privates()) }

func (p *Plugin) updateUnredirect(w *object.Window) {
	ws, ok := p.windows.Get(w.Privates())
	if !ok || w.Screen() == nil {
		return
	}
	st, ok := p.screens.Get(w.Screen().Privates())
	if !ok {
		return
	}
	m := option.Find(st.opts, OptUnredirectMatch).Value().Match
	ws.unredirected = w.State&object.WindowStateFullscreen != 0 && m.Eval(w)
}

// Unredirected reports whether w is a fullscreen window matched by its
// screen's unredirect_match.
func (p *Plugin) Unredirected(w *object.Window) bool {
	ws, ok := p.windows.Get(w.Privates())
	return ok && ws.unredirected
}

// DisplayOptions returns the display options.
func (p *Plugin) DisplayOptions(*object.Display) []*option.Option { return p.display }

// SetDisplayOption stores v.
func (p *Plugin) SetDisplayOption(_ *object.Display, name string, v option.Value) bool {
	o := option.Find(p.display, name)
	if o == nil {
		return false
	}
	return o.Set(v)
}

// ScreenOptions returns the options of s.
func (p *Plugin) ScreenOptions(s *object.Screen) []*option.Option {
	st, ok := p.screens.Get(s.Privates())
	if !ok {
		return nil
	}
	return st.opts
}

// SetScreenOption stores v. Setting refresh_rate turns rate detection off;
// changing unredirect_match re-evaluates every window of the screen.
func (p *Plugin) SetScreenOption(s *object.Screen, name string, v option.Value) bool {
	opts := p.ScreenOptions(s)
	o := option.Find(opts, name)
	if o == nil {
		return false
	}
	if !o.Set(v) {
		return false
	}
	switch name {
	case OptRefreshRate:
		option.Find(opts, OptDetectRefreshRate).SetBool(false)
	case OptDetectRefreshRate:
		if v.Bool {
			option.Find(opts, OptRefreshRate).SetInt(DefaultRefreshRate)
		}
	case OptUnredirectMatch:
		for _, w := range s.Windows() {
			p.updateUnredirect(w)
		}
	}
	return true
}

// RefreshRate returns the effective refresh rate of s.
func (p *Plugin) RefreshRate(s *object.Screen) int {
	opts := p.ScreenOptions(s)
	if o := option.Find(opts, OptRefreshRate); o != nil {
		return o.Value().Int
	}
	return DefaultRefreshRate
}

// HandleAction runs close_window_key.
func (p *Plugin) HandleAction(_ *object.Display, name string) bool {
	if name != OptCloseWindowKey || p.closer == nil {
		return false
	}
	if err := p.closer(); err != nil {
		p.logger.Warn("close window failed", "error", err)
		return false
	}
	return true
}
