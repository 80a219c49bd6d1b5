package wm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/1broseidon/compwm/internal/object"
	"github.com/1broseidon/compwm/internal/option"
	"github.com/1broseidon/compwm/internal/plugin"
)

// AllScreens in a Scope addresses every screen at once.
const AllScreens = -1

// Scope selects the object an option belongs to.
type Scope struct {
	Kind   object.Kind
	Screen int
}

// DisplayScope addresses display options.
func DisplayScope() Scope { return Scope{Kind: object.KindDisplay} }

// ScreenScope addresses the options of one screen, or of every screen when
// index is AllScreens.
func ScreenScope(index int) Scope { return Scope{Kind: object.KindScreen, Screen: index} }

func (s Scope) String() string {
	if s.Kind == object.KindScreen {
		if s.Screen == AllScreens {
			return "screens.all"
		}
		return fmt.Sprintf("screens.%d", s.Screen)
	}
	return "display"
}

// ParseScope is the inverse of Scope.String. An empty string is the display
// scope.
func ParseScope(s string) (Scope, error) {
	switch {
	case s == "" || s == "display":
		return DisplayScope(), nil
	case s == "screens.all":
		return ScreenScope(AllScreens), nil
	case strings.HasPrefix(s, "screens."):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "screens."))
		if err != nil || n < 0 {
			return Scope{}, fmt.Errorf("invalid screen scope %q", s)
		}
		return ScreenScope(n), nil
	}
	return Scope{}, fmt.Errorf("invalid scope %q: want display, screens.all or screens.N", s)
}

func (r *Runtime) screensFor(scope Scope) ([]*object.Screen, error) {
	d := r.Display()
	if scope.Screen == AllScreens {
		screens := d.Screens()
		if len(screens) == 0 {
			return nil, ErrNoScreen
		}
		return screens, nil
	}
	s := d.Screen(scope.Screen)
	if s == nil {
		return nil, fmt.Errorf("screen %d: %w", scope.Screen, ErrNoScreen)
	}
	return []*object.Screen{s}, nil
}

// Options returns the options pluginName exposes in scope. For AllScreens the
// options of the lowest screen are returned.
func (r *Runtime) Options(scope Scope, pluginName string) ([]*option.Option, error) {
	p := r.Plugin(pluginName)
	if p == nil {
		return nil, fmt.Errorf("%s: %w", pluginName, ErrNotActive)
	}
	switch scope.Kind {
	case object.KindDisplay:
		o, ok := p.VTable.(plugin.DisplayOptioner)
		if !ok {
			return nil, nil
		}
		return o.DisplayOptions(r.Display()), nil
	case object.KindScreen:
		screens, err := r.screensFor(scope)
		if err != nil {
			return nil, err
		}
		o, ok := p.VTable.(plugin.ScreenOptioner)
		if !ok {
			return nil, nil
		}
		return o.ScreenOptions(screens[0]), nil
	}
	return nil, fmt.Errorf("options are not kept on %s objects", scope.Kind)
}

// SetOption routes v to the plugin's setter for the scope. It reports whether
// any stored value changed. Changing core's active_plugins reconciles the
// plugin stack.
func (r *Runtime) SetOption(scope Scope, pluginName, name string, v option.Value) (bool, error) {
	r.core.Guard().Check("set option " + pluginName + "." + name)
	p := r.Plugin(pluginName)
	if p == nil {
		return false, fmt.Errorf("%s: %w", pluginName, ErrNotActive)
	}

	switch scope.Kind {
	case object.KindDisplay:
		o, ok := p.VTable.(plugin.DisplayOptioner)
		if !ok || option.Find(o.DisplayOptions(r.Display()), name) == nil {
			return false, fmt.Errorf("%s.%s.%s: %w", pluginName, scope, name, ErrUnknownOption)
		}
		changed := o.SetDisplayOption(r.Display(), name, v)
		r.logger.Debug("display option set", "plugin", pluginName, "option", name, "changed", changed)
		if changed && pluginName == CorePlugin && name == "active_plugins" {
			return true, r.UpdatePlugins(r.activePluginsOption())
		}
		return changed, nil

	case object.KindScreen:
		screens, err := r.screensFor(scope)
		if err != nil {
			return false, err
		}
		o, ok := p.VTable.(plugin.ScreenOptioner)
		if !ok || option.Find(o.ScreenOptions(screens[0]), name) == nil {
			return false, fmt.Errorf("%s.%s.%s: %w", pluginName, scope, name, ErrUnknownOption)
		}
		changed := false
		for _, s := range screens {
			if o.SetScreenOption(s, name, v) {
				changed = true
			}
		}
		r.logger.Debug("screen option set", "plugin", pluginName, "scope", scope.String(), "option", name, "changed", changed)
		return changed, nil
	}
	return false, fmt.Errorf("options are not kept on %s objects", scope.Kind)
}

// activePluginsOption reads core's active_plugins list.
func (r *Runtime) activePluginsOption() []string {
	opts, err := r.Options(DisplayScope(), CorePlugin)
	if err != nil {
		return nil
	}
	opt := option.Find(opts, "active_plugins")
	if opt == nil {
		return nil
	}
	var names []string
	for _, v := range opt.Value().List.Values {
		names = append(names, v.String)
	}
	return names
}

// syncActivePluginsOption writes the actual stack into core's active_plugins
// without going through SetOption, so no further reconcile is triggered.
func (r *Runtime) syncActivePluginsOption() {
	opts, err := r.Options(DisplayScope(), CorePlugin)
	if err != nil {
		return
	}
	opt := option.Find(opts, "active_plugins")
	if opt == nil {
		return
	}
	values := make([]option.Value, 0, len(r.stack))
	for _, name := range r.Active() {
		values = append(values, option.StringValue(name))
	}
	opt.SetList(values)
}

func (r *Runtime) bindOptions(p *plugin.Plugin) {
	if o, ok := p.VTable.(plugin.DisplayOptioner); ok {
		for _, opt := range o.DisplayOptions(r.Display()) {
			opt.BindEngine(r.engine)
		}
	}
	if o, ok := p.VTable.(plugin.ScreenOptioner); ok {
		for _, s := range r.Display().Screens() {
			for _, opt := range o.ScreenOptions(s) {
				opt.BindEngine(r.engine)
			}
		}
	}
}

func (r *Runtime) bindScreenOptions(s *object.Screen) {
	for _, p := range r.stack {
		if o, ok := p.VTable.(plugin.ScreenOptioner); ok {
			for _, opt := range o.ScreenOptions(s) {
				opt.BindEngine(r.engine)
			}
		}
	}
}

// recompileMatches runs whenever the set of match handlers changes.
func (r *Runtime) recompileMatches() {
	for _, p := range r.stack {
		r.bindOptions(p)
	}
	r.logger.Debug("match options recompiled", "prefixes", len(r.engine.Prefixes()))
}

// Binding is an action option of an active plugin.
type Binding struct {
	Plugin string
	Option string
	Action option.Action
}

// Bindings lists the display scope action options of every active plugin
// that handles actions, in stack order.
func (r *Runtime) Bindings() []Binding {
	var out []Binding
	for _, p := range r.stack {
		if _, ok := p.VTable.(plugin.ActionHandler); !ok {
			continue
		}
		o, ok := p.VTable.(plugin.DisplayOptioner)
		if !ok {
			continue
		}
		opts := append([]*option.Option(nil), o.DisplayOptions(r.Display())...)
		sort.SliceStable(opts, func(i, j int) bool { return opts[i].Name() < opts[j].Name() })
		for _, opt := range opts {
			if opt.Type() != option.TypeAction {
				continue
			}
			out = append(out, Binding{Plugin: p.Name, Option: opt.Name(), Action: opt.Value().Action})
		}
	}
	return out
}

// TriggerAction runs the named action of an active plugin. It reports whether
// the plugin handled it.
func (r *Runtime) TriggerAction(pluginName, name string) (bool, error) {
	r.core.Guard().Check("trigger action " + pluginName + "." + name)
	p := r.Plugin(pluginName)
	if p == nil {
		return false, fmt.Errorf("%s: %w", pluginName, ErrNotActive)
	}
	h, ok := p.VTable.(plugin.ActionHandler)
	if !ok {
		return false, fmt.Errorf("%s has no actions", pluginName)
	}
	handled := h.HandleAction(r.Display(), name)
	r.logger.Info("action triggered", "plugin", pluginName, "action", name, "handled", handled)
	return handled, nil
}
